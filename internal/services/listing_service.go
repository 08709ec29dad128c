package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uoknil/tauschBar/internal/apperr"
	"github.com/uoknil/tauschBar/internal/config"
	"github.com/uoknil/tauschBar/internal/db"
	"github.com/uoknil/tauschBar/internal/geo"
	"github.com/uoknil/tauschBar/internal/models"
	"github.com/uoknil/tauschBar/internal/utils"
)

// CreateListingInput carries the caller-supplied fields for a new listing.
// Coordinates are optional; when present they are resolved to a spatial cell.
type CreateListingInput struct {
	Title              string
	Type               models.ListingType
	OfferDescription   string
	RequestDescription string
	Category           string
	Zip                string
	Lat                *float64
	Lng                *float64
	AvailableFrom      *time.Time
	AvailableTo        *time.Time
}

// ListingFilter narrows public browse queries. Zero values mean "no filter".
type ListingFilter struct {
	Query    string
	Category string
	Zip      string
	From     *time.Time
	To       *time.Time
}

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, ownerID utils.SixID, in CreateListingInput) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	BrowseListings(ctx context.Context, filter ListingFilter) ([]models.Listing, error)
	ListByOwner(ctx context.Context, ownerID utils.SixID) ([]models.Listing, error)
	DeleteListing(ctx context.Context, listingID, requesterID utils.SixID) error
	BlockListing(ctx context.Context, listingID utils.SixID, reason string) error
	AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error
}

const listingsCollection = "listings"

// listingService implements IListingService.
type listingService struct {
	db       *mongo.Database
	cfg      *config.Config
	resolver *geo.Resolver
}

// NewListingService creates a new ListingService.
func NewListingService(db *mongo.Database, cfg *config.Config, resolver *geo.Resolver) IListingService {
	return &listingService{db: db, cfg: cfg, resolver: resolver}
}

// CreateListing validates and persists a new listing. Validation failures are
// reported before anything is written.
func (s *listingService) CreateListing(ctx context.Context, ownerID utils.SixID, in CreateListingInput) (*models.Listing, error) {
	if !in.Type.Valid() {
		return nil, apperr.Validation("type must be %q or %q", models.ListingTypeOffer, models.ListingTypeRequest)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, apperr.Validation("category is required")
	}

	zip := strings.TrimSpace(in.Zip)
	if len(zip) < 3 {
		return nil, apperr.Validation("zip is required and must be at least 3 characters")
	}

	offerDesc := strings.TrimSpace(in.OfferDescription)
	requestDesc := strings.TrimSpace(in.RequestDescription)
	var desc string
	switch in.Type {
	case models.ListingTypeOffer:
		if requestDesc != "" {
			return nil, apperr.Validation("an offer must not carry a request description")
		}
		desc = offerDesc
	case models.ListingTypeRequest:
		if offerDesc != "" {
			return nil, apperr.Validation("a request must not carry an offer description")
		}
		desc = requestDesc
	}
	if len([]rune(desc)) < s.cfg.MinDescriptionLength {
		return nil, apperr.Validation("description must be at least %d characters", s.cfg.MinDescriptionLength)
	}

	now := time.Now().UTC()
	from := now
	to := now.AddDate(0, 0, s.cfg.DefaultAvailabilityDays)
	if in.AvailableFrom != nil {
		from = in.AvailableFrom.UTC()
	}
	if in.AvailableTo != nil {
		to = in.AvailableTo.UTC()
	}
	if from.After(to) {
		return nil, apperr.Validation("available_from must not be after available_to")
	}

	var cell string
	var location *models.GeoJSON
	if in.Lat != nil && in.Lng != nil {
		c, err := s.resolver.CellOf(*in.Lat, *in.Lng)
		if err != nil {
			// Invalid coordinates degrade to zip-only matching.
			log.Warn().Err(err).Str("zip", zip).Msg("could not resolve listing coordinates, falling back to zip matching")
		} else {
			cell = c
			location = &models.GeoJSON{Type: "Point", Coordinates: []float64{*in.Lng, *in.Lat}}
		}
	}

	collection := s.db.Collection(listingsCollection)
	var newListing *models.Listing

	operation := func() error {
		newListing = &models.Listing{
			ID:                 utils.NewSixID(),
			OwnerID:            ownerID,
			Title:              title,
			Type:               in.Type,
			OfferDescription:   offerDesc,
			RequestDescription: requestDesc,
			Category:           category,
			Zip:                zip,
			Cell:               cell,
			Location:           location,
			AvailableFrom:      from,
			AvailableTo:        to,
			IsBlocked:          false,
			Images:             []string{},
			CreatedAt:          now,
		}
		_, insertErr := collection.InsertOne(ctx, newListing)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, apperr.Internal(err, "failed to insert listing for user %s", ownerID.String())
	}

	return newListing, nil
}

// FindListingByID finds a listing by its ID regardless of its blocked state.
// It does NOT check ownership.
func (s *listingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("listing %s not found", listingID.String())
		}
		return nil, apperr.Internal(err, "error finding listing %s", listingID.String())
	}
	return &listing, nil
}

// BrowseListings returns non-blocked listings matching the filter, newest first.
func (s *listingService) BrowseListings(ctx context.Context, filter ListingFilter) ([]models.Listing, error) {
	query := bson.M{"is_blocked": false}

	if c := strings.TrimSpace(filter.Category); c != "" {
		query["category"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(c) + "$", Options: "i"}
	}
	if z := strings.TrimSpace(filter.Zip); z != "" {
		query["zip"] = z
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"offer_description": rx},
			bson.M{"request_description": rx},
		}
	}
	// Availability overlap: listing.available_from <= to AND listing.available_to >= from
	if filter.From != nil {
		query["available_to"] = bson.M{"$gte": filter.From.UTC()}
	}
	if filter.To != nil {
		query["available_from"] = bson.M{"$lte": filter.To.UTC()}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(listingsCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, apperr.Internal(err, "failed to execute listing browse query")
	}
	defer cursor.Close(ctx)

	var results []models.Listing
	if err = cursor.All(ctx, &results); err != nil {
		return nil, apperr.Internal(err, "failed to decode listing browse results")
	}
	return results, nil
}

// ListByOwner returns all listings created by one user, newest first.
func (s *listingService) ListByOwner(ctx context.Context, ownerID utils.SixID) ([]models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(listingsCollection).Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list listings for user %s", ownerID.String())
	}
	defer cursor.Close(ctx)

	var results []models.Listing
	if err = cursor.All(ctx, &results); err != nil {
		return nil, apperr.Internal(err, "failed to decode listings for user %s", ownerID.String())
	}
	return results, nil
}

// DeleteListing removes a listing owned by the requester.
func (s *listingService) DeleteListing(ctx context.Context, listingID, requesterID utils.SixID) error {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.OwnerID != requesterID {
		return apperr.Forbidden("listing %s does not belong to user %s", listingID.String(), requesterID.String())
	}

	if _, err := s.db.Collection(listingsCollection).DeleteOne(ctx, bson.M{"_id": listingID}); err != nil {
		return apperr.Internal(err, "failed to delete listing %s", listingID.String())
	}
	return nil
}

// BlockListing marks a listing as blocked by moderation. Blocked listings stay
// stored but disappear from browse and matching.
func (s *listingService) BlockListing(ctx context.Context, listingID utils.SixID, reason string) error {
	if reason == "" {
		reason = "Blocked by moderation"
	}
	update := bson.M{"$set": bson.M{"is_blocked": true, "blocked_reason": reason}}
	result, err := s.db.Collection(listingsCollection).UpdateOne(ctx, bson.M{"_id": listingID}, update)
	if err != nil {
		return apperr.Internal(err, "failed to block listing %s", listingID.String())
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("listing %s not found", listingID.String())
	}
	return nil
}

// AddImageToListing adds a processed image key to a listing's image array.
// Called after the image processing task completes.
func (s *listingService) AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error {
	update := bson.M{"$addToSet": bson.M{"images": imageKey}}
	result, err := s.db.Collection(listingsCollection).UpdateOne(ctx, bson.M{"_id": listingID}, update)
	if err != nil {
		return apperr.Internal(err, "failed to add image %s to listing %s", imageKey, listingID.String())
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("listing %s not found", listingID.String())
	}
	if result.ModifiedCount == 0 {
		log.Debug().Str("listing", listingID.String()).Str("image", imageKey).Msg("image key already present")
	}
	return nil
}

