package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/uoknil/tauschBar/internal/apperr"
	"github.com/uoknil/tauschBar/internal/geo"
	"github.com/uoknil/tauschBar/internal/models"
	"github.com/uoknil/tauschBar/internal/utils"
)

// Coordinates in Vienna's first district; close enough that their cells fall
// within one neighbor ring of each other.
const (
	viennaLat = 48.2082
	viennaLng = 16.3738
	nearLat   = 48.2090
	nearLng   = 16.3750
	// Salzburg, well outside any Vienna neighbor ring.
	farLat = 47.8095
	farLng = 13.0550
)

type matchFixture struct {
	db       *mongo.Database
	listings IListingService
	matches  IMatchService
}

func setupMatchFixture(t *testing.T, dbName string) *matchFixture {
	db := utils.SetupTestDB(t, dbName, "listings", "users")
	cfg := testCfg()
	resolver := geo.NewResolver(cfg.GeoCellPrecision)
	return &matchFixture{
		db:       db,
		listings: NewListingService(db, cfg, resolver),
		matches:  NewMatchService(db, cfg, resolver, nil),
	}
}

func (f *matchFixture) newUser(t *testing.T, username string) utils.SixID {
	id := utils.NewSixID()
	require.NoError(t, createTestUser(f.db, id, username))
	return id
}

func (f *matchFixture) newListing(t *testing.T, ownerID utils.SixID, in CreateListingInput) *models.Listing {
	listing, err := f.listings.CreateListing(context.Background(), ownerID, in)
	require.NoError(t, err)
	return listing
}

func TestMatchService_OfferMatchesComplementaryRequest(t *testing.T) {
	f := setupMatchFixture(t, "testdb_match_complement")
	ctx := context.Background()

	anna := f.newUser(t, "anna")
	bert := f.newUser(t, "bert")

	base := f.newListing(t, anna, CreateListingInput{
		Title:            "Bohrmaschine zu verleihen",
		Type:             models.ListingTypeOffer,
		OfferDescription: "Bohrmaschine mit Schlagwerk, wochenweise abzugeben",
		Category:         "Handwerk",
		Zip:              "1010",
		Lat:              floatPtr(viennaLat),
		Lng:              floatPtr(viennaLng),
	})
	candidate := f.newListing(t, bert, CreateListingInput{
		Title:              "Suche Bohrmaschine",
		Type:               models.ListingTypeRequest,
		RequestDescription: "Brauche eine Bohrmaschine für ein Wochenende",
		Category:           "Handwerk",
		Zip:                "1010",
		Lat:                floatPtr(nearLat),
		Lng:                floatPtr(nearLng),
	})
	// Same area and category but the wrong topic; survives the hard filters
	// with score zero.
	f.newListing(t, bert, CreateListingInput{
		Title:              "Suche Stichsäge",
		Type:               models.ListingTypeRequest,
		RequestDescription: "Stichsäge für Laminatarbeiten gesucht",
		Category:           "Handwerk",
		Zip:                "1010",
		Lat:                floatPtr(nearLat),
		Lng:                floatPtr(nearLng),
	})

	result, err := f.matches.FindMatches(ctx, base.ID, anna)
	require.NoError(t, err)
	assert.Equal(t, base.ID, result.BaseListingID)
	assert.Equal(t, 2, result.Count)
	assert.Contains(t, result.StagesApplied, StageGeoCell)
	assert.Contains(t, result.StagesApplied, StageType)
	assert.Contains(t, result.StagesApplied, StageCategory)
	assert.Contains(t, result.StagesApplied, StageKeywords)

	// The keyword hit ranks first: "bohrmaschine" appears in the candidate's
	// title and body, scoring body + title.
	assert.Equal(t, candidate.ID, result.Matches[0].Listing.ID)
	assert.Equal(t, 2, result.Matches[0].Score)
	assert.Contains(t, result.Matches[0].MatchedKeywords, "bohrmaschine")
	assert.Zero(t, result.Matches[1].Score)
}

func TestMatchService_HardFilters(t *testing.T) {
	f := setupMatchFixture(t, "testdb_match_filters")
	ctx := context.Background()

	anna := f.newUser(t, "anna")
	bert := f.newUser(t, "bert")

	base := f.newListing(t, anna, CreateListingInput{
		Title:            "Bohrmaschine zu verleihen",
		Type:             models.ListingTypeOffer,
		OfferDescription: "Bohrmaschine mit Schlagwerk, wochenweise abzugeben",
		Category:         "Handwerk",
		Zip:              "1010",
		Lat:              floatPtr(viennaLat),
		Lng:              floatPtr(viennaLng),
	})

	// Same type as the base: never a match.
	f.newListing(t, bert, CreateListingInput{
		Title:            "Bohrmaschine abzugeben",
		Type:             models.ListingTypeOffer,
		OfferDescription: "Noch eine Bohrmaschine im Angebot",
		Category:         "Handwerk",
		Zip:              "1010",
		Lat:              floatPtr(nearLat),
		Lng:              floatPtr(nearLng),
	})
	// Wrong category.
	f.newListing(t, bert, CreateListingInput{
		Title:              "Suche Bohrmaschine",
		Type:               models.ListingTypeRequest,
		RequestDescription: "Bohrmaschine für den Gartenzaun gesucht",
		Category:           "Garten",
		Zip:                "1010",
		Lat:                floatPtr(nearLat),
		Lng:                floatPtr(nearLng),
	})
	// Too far away.
	f.newListing(t, bert, CreateListingInput{
		Title:              "Suche Bohrmaschine",
		Type:               models.ListingTypeRequest,
		RequestDescription: "Bohrmaschine in Salzburg gesucht",
		Category:           "Handwerk",
		Zip:                "5020",
		Lat:                floatPtr(farLat),
		Lng:                floatPtr(farLng),
	})
	// Availability window ends before the base window starts.
	past := time.Now().UTC().AddDate(0, -2, 0)
	pastEnd := past.AddDate(0, 1, 0)
	f.newListing(t, bert, CreateListingInput{
		Title:              "Suche Bohrmaschine",
		Type:               models.ListingTypeRequest,
		RequestDescription: "Bohrmaschine gesucht, aber nur letzten Monat",
		Category:           "Handwerk",
		Zip:                "1010",
		Lat:                floatPtr(nearLat),
		Lng:                floatPtr(nearLng),
		AvailableFrom:      &past,
		AvailableTo:        &pastEnd,
	})
	// The owner's own other listing never matches.
	f.newListing(t, anna, CreateListingInput{
		Title:              "Suche Bohrmaschine",
		Type:               models.ListingTypeRequest,
		RequestDescription: "Eigene Anfrage der gleichen Person",
		Category:           "Handwerk",
		Zip:                "1010",
		Lat:                floatPtr(nearLat),
		Lng:                floatPtr(nearLng),
	})

	result, err := f.matches.FindMatches(ctx, base.ID, anna)
	require.NoError(t, err)
	assert.Zero(t, result.Count)
	assert.Empty(t, result.Matches)
}

func TestMatchService_BlockedCandidatesExcluded(t *testing.T) {
	f := setupMatchFixture(t, "testdb_match_blocked")
	ctx := context.Background()

	anna := f.newUser(t, "anna")
	bert := f.newUser(t, "bert")

	base := f.newListing(t, anna, CreateListingInput{
		Title:            "Bohrmaschine zu verleihen",
		Type:             models.ListingTypeOffer,
		OfferDescription: "Bohrmaschine mit Schlagwerk, wochenweise abzugeben",
		Category:         "Handwerk",
		Zip:              "1010",
		Lat:              floatPtr(viennaLat),
		Lng:              floatPtr(viennaLng),
	})
	candidate := f.newListing(t, bert, CreateListingInput{
		Title:              "Suche Bohrmaschine",
		Type:               models.ListingTypeRequest,
		RequestDescription: "Brauche eine Bohrmaschine für ein Wochenende",
		Category:           "Handwerk",
		Zip:                "1010",
		Lat:                floatPtr(nearLat),
		Lng:                floatPtr(nearLng),
	})

	require.NoError(t, f.listings.BlockListing(ctx, candidate.ID, "spam"))

	result, err := f.matches.FindMatches(ctx, base.ID, anna)
	require.NoError(t, err)
	assert.Zero(t, result.Count)

	// A blocked base listing yields no match set at all.
	require.NoError(t, f.listings.BlockListing(ctx, base.ID, "spam"))
	_, err = f.matches.FindMatches(ctx, base.ID, anna)
	assert.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMatchService_OwnershipRequired(t *testing.T) {
	f := setupMatchFixture(t, "testdb_match_ownership")
	ctx := context.Background()

	anna := f.newUser(t, "anna")
	bert := f.newUser(t, "bert")

	base := f.newListing(t, anna, CreateListingInput{
		Title:            "Bohrmaschine zu verleihen",
		Type:             models.ListingTypeOffer,
		OfferDescription: "Bohrmaschine mit Schlagwerk, wochenweise abzugeben",
		Category:         "Handwerk",
		Zip:              "1010",
	})

	_, err := f.matches.FindMatches(ctx, base.ID, bert)
	assert.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestMatchService_ZipModeWithoutCoordinates(t *testing.T) {
	f := setupMatchFixture(t, "testdb_match_zipmode")
	ctx := context.Background()

	anna := f.newUser(t, "anna")
	bert := f.newUser(t, "bert")

	// No coordinates anywhere: geography degrades to exact zip equality.
	base := f.newListing(t, anna, CreateListingInput{
		Title:            "Klavierunterricht im Tausch",
		Type:             models.ListingTypeOffer,
		OfferDescription: "Biete Klavierunterricht gegen Gartenarbeit",
		Category:         "Musik",
		Zip:              "1090",
	})
	sameZip := f.newListing(t, bert, CreateListingInput{
		Title:              "Klavierunterricht gesucht",
		Type:               models.ListingTypeRequest,
		RequestDescription: "Suche Klavierunterricht für Anfänger",
		Category:           "Musik",
		Zip:                "1090",
	})
	f.newListing(t, bert, CreateListingInput{
		Title:              "Klavierunterricht gesucht",
		Type:               models.ListingTypeRequest,
		RequestDescription: "Suche Klavierunterricht, anderer Bezirk",
		Category:           "Musik",
		Zip:                "1100",
	})

	result, err := f.matches.FindMatches(ctx, base.ID, anna)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, sameZip.ID, result.Matches[0].Listing.ID)
	assert.Contains(t, result.StagesApplied, StageGeoZip)
	assert.NotContains(t, result.StagesApplied, StageGeoCell)
}

func TestMatchService_RankingIsScoreThenRecency(t *testing.T) {
	f := setupMatchFixture(t, "testdb_match_ranking")
	ctx := context.Background()

	anna := f.newUser(t, "anna")
	bert := f.newUser(t, "bert")

	base := f.newListing(t, anna, CreateListingInput{
		Title:            "Fahrrad Reparatur angeboten",
		Type:             models.ListingTypeOffer,
		OfferDescription: "Repariere Fahrrad und Schaltung aller Art",
		Category:         "Mobilität",
		Zip:              "1010",
	})

	weak := f.newListing(t, bert, CreateListingInput{
		Title:              "Hilfe gesucht",
		Type:               models.ListingTypeRequest,
		RequestDescription: "Mein Fahrrad braucht dringend Pflege",
		Category:           "Mobilität",
		Zip:                "1010",
	})
	time.Sleep(1100 * time.Millisecond)
	strong := f.newListing(t, bert, CreateListingInput{
		Title:              "Fahrrad Schaltung defekt",
		Type:               models.ListingTypeRequest,
		RequestDescription: "Fahrrad Schaltung springt, Reparatur gesucht",
		Category:           "Mobilität",
		Zip:                "1010",
	})
	time.Sleep(1100 * time.Millisecond)
	weakNewer := f.newListing(t, bert, CreateListingInput{
		Title:              "Radhilfe",
		Type:               models.ListingTypeRequest,
		RequestDescription: "Fahrrad einmal durchchecken lassen",
		Category:           "Mobilität",
		Zip:                "1010",
	})

	result, err := f.matches.FindMatches(ctx, base.ID, anna)
	require.NoError(t, err)
	require.Equal(t, 3, result.Count)

	// Highest score first; equal scores keep newest-first order.
	assert.Equal(t, strong.ID, result.Matches[0].Listing.ID)
	assert.Equal(t, weakNewer.ID, result.Matches[1].Listing.ID)
	assert.Equal(t, weak.ID, result.Matches[2].Listing.ID)
	assert.Greater(t, result.Matches[0].Score, result.Matches[1].Score)
}
