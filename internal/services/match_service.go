package services

import (
	"context"
	"regexp"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uoknil/tauschBar/internal/apperr"
	"github.com/uoknil/tauschBar/internal/config"
	"github.com/uoknil/tauschBar/internal/geo"
	"github.com/uoknil/tauschBar/internal/models"
	"github.com/uoknil/tauschBar/internal/utils"
)

// Funnel stage names reported in MatchResult.StagesApplied.
const (
	StageGeoCell      = "geo:cell"
	StageGeoZip       = "geo:zip"
	StageType         = "type"
	StageCategory     = "category"
	StageAvailability = "availability"
	StageKeywords     = "keywords"
)

// Match is one ranked candidate.
type Match struct {
	Listing         models.Listing `json:"listing"`
	Score           int            `json:"score"`
	MatchedKeywords []string       `json:"matched_keywords,omitempty"`
}

// MatchResult is the outcome of one funnel run. Freshly computed per call,
// no side effects.
type MatchResult struct {
	BaseListingID utils.SixID `json:"base_listing_id"`
	Count         int         `json:"count"`
	Matches       []Match     `json:"matches"`
	StagesApplied []string    `json:"stages_applied"`
}

// IMatchService runs the matching funnel for a base listing.
type IMatchService interface {
	FindMatches(ctx context.Context, baseListingID, requestingUserID utils.SixID) (*MatchResult, error)
}

// matchService implements IMatchService. Stages 1-3 plus the availability and
// ownership filters execute as a single indexed query; stage 4 ranks the
// survivors in memory.
type matchService struct {
	db       *mongo.Database
	cfg      *config.Config
	resolver *geo.Resolver
	scorer   Scorer
}

// NewMatchService creates a MatchService. A nil scorer selects the default
// keyword scorer.
func NewMatchService(db *mongo.Database, cfg *config.Config, resolver *geo.Resolver, scorer Scorer) IMatchService {
	if scorer == nil {
		scorer = NewKeywordScorer(cfg.MinKeywordLength)
	}
	return &matchService{db: db, cfg: cfg, resolver: resolver, scorer: scorer}
}

// FindMatches loads the base listing, applies the hard-filter stages as one
// query and ranks the result by keyword overlap.
//
// Geography is mode-exclusive: a base listing with a resolved cell matches
// only cell-indexed candidates in its neighbor ring; a base without a cell
// matches on exact zip equality.
func (s *matchService) FindMatches(ctx context.Context, baseListingID, requestingUserID utils.SixID) (*MatchResult, error) {
	collection := s.db.Collection(listingsCollection)

	var base models.Listing
	err := collection.FindOne(ctx, bson.M{"_id": baseListingID, "is_blocked": false}).Decode(&base)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.NotFound("listing %s not found", baseListingID.String())
		}
		return nil, apperr.Internal(err, "error loading base listing %s", baseListingID.String())
	}

	// Match sets are private to the listing's owner.
	if base.OwnerID != requestingUserID {
		return nil, apperr.Forbidden("listing %s does not belong to user %s", baseListingID.String(), requestingUserID.String())
	}

	filter := bson.M{
		"_id":        bson.M{"$ne": base.ID},
		"owner_id":   bson.M{"$ne": base.OwnerID},
		"is_blocked": false,
		// Stage 2: only the complementary type survives.
		"type": base.Type.Opposite(),
		// Stage 3: case-insensitive exact category match.
		"category": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(base.Category) + "$", Options: "i"},
		// Availability windows must overlap.
		"available_from": bson.M{"$lte": base.AvailableTo},
		"available_to":   bson.M{"$gte": base.AvailableFrom},
	}

	stages := make([]string, 0, 5)

	// Stage 1: geography.
	if base.Cell != "" {
		cells := s.resolver.Neighbors(base.Cell, s.cfg.GeoNeighborRing)
		filter["cell"] = bson.M{"$in": cells}
		stages = append(stages, StageGeoCell)
	} else {
		filter["zip"] = base.Zip
		stages = append(stages, StageGeoZip)
	}
	stages = append(stages, StageType, StageCategory, StageAvailability)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Internal(err, "failed to query match candidates for listing %s", baseListingID.String())
	}
	defer cursor.Close(ctx)

	var candidates []models.Listing
	if err = cursor.All(ctx, &candidates); err != nil {
		return nil, apperr.Internal(err, "failed to decode match candidates for listing %s", baseListingID.String())
	}

	// Stage 4: keyword relevance. Ranking only, never a filter: category is
	// the topical anchor, and dropping zero-score candidates would turn
	// phrases like "no dogs" into false negatives.
	matches := make([]Match, 0, len(candidates))
	for i := range candidates {
		score, matched := s.scorer.Score(&base, &candidates[i])
		matches = append(matches, Match{Listing: candidates[i], Score: score, MatchedKeywords: matched})
	}
	// Candidates arrive newest-first, so a stable sort by score keeps the
	// created_at tie-break for free.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	stages = append(stages, StageKeywords)

	return &MatchResult{
		BaseListingID: base.ID,
		Count:         len(matches),
		Matches:       matches,
		StagesApplied: stages,
	}, nil
}
