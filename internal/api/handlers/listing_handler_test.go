package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/uoknil/tauschBar/internal/apperr"
	"github.com/uoknil/tauschBar/internal/api/handlers"
	"github.com/uoknil/tauschBar/internal/api/middleware"
	"github.com/uoknil/tauschBar/internal/config"
	"github.com/uoknil/tauschBar/internal/models"
	"github.com/uoknil/tauschBar/internal/services"
	"github.com/uoknil/tauschBar/internal/utils"
)

// authAs injects the auth context the way AuthMiddleware would after a valid
// token.
func authAs(userID utils.SixID, isModerator bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, userID.String())
		c.Set(middleware.ContextKeyIsModerator, isModerator)
		c.Next()
	}
}

func newListingTestRouter(userID utils.SixID, listingSvc services.IListingService, matchSvc services.IMatchService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewListingHandler(&config.Config{}, listingSvc, matchSvc, new(MockS3Storage), nil)

	r := gin.New()
	r.GET("/listings", handler.BrowseListings)
	authed := r.Group("/", authAs(userID, false))
	authed.POST("/listings", handler.CreateListing)
	authed.GET("/listings/:id", handler.GetListing)
	authed.DELETE("/listings/:id", handler.DeleteListing)
	authed.GET("/listings/:id/matches", handler.GetMatches)
	return r
}

func TestListingHandler_CreateListing(t *testing.T) {
	userID := utils.NewSixID()
	mockSvc := new(MockListingService)
	r := newListingTestRouter(userID, mockSvc, new(MockMatchService))

	created := &models.Listing{ID: utils.NewSixID(), OwnerID: userID, Title: "Bohrmaschine"}
	mockSvc.On("CreateListing", mock.Anything, userID, mock.Anything).Return(created, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"title":             "Bohrmaschine",
		"type":              "offer",
		"offer_description": "Bohrmaschine mit Zubehör abzugeben",
		"category":          "Handwerk",
		"zip":               "1010",
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/listings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp models.Listing
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)
	mockSvc.AssertExpectations(t)
}

func TestListingHandler_CreateListing_ValidationError(t *testing.T) {
	userID := utils.NewSixID()
	mockSvc := new(MockListingService)
	r := newListingTestRouter(userID, mockSvc, new(MockMatchService))

	mockSvc.On("CreateListing", mock.Anything, userID, mock.Anything).
		Return(nil, apperr.Validation("zip is required and must be at least 3 characters"))

	body, _ := json.Marshal(map[string]interface{}{
		"title":             "Bohrmaschine",
		"type":              "offer",
		"offer_description": "Bohrmaschine mit Zubehör abzugeben",
		"category":          "Handwerk",
		"zip":               "1",
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/listings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "zip")
}

func TestListingHandler_GetListing_NotFound(t *testing.T) {
	userID := utils.NewSixID()
	mockSvc := new(MockListingService)
	r := newListingTestRouter(userID, mockSvc, new(MockMatchService))

	missingID := utils.NewSixID()
	mockSvc.On("FindListingByID", mock.Anything, missingID).
		Return(nil, apperr.NotFound("listing %s not found", missingID.String()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/listings/"+missingID.String(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListingHandler_GetListing_BlockedHiddenFromStrangers(t *testing.T) {
	userID := utils.NewSixID()
	owner := utils.NewSixID()
	mockSvc := new(MockListingService)
	r := newListingTestRouter(userID, mockSvc, new(MockMatchService))

	blocked := &models.Listing{
		ID:        utils.NewSixID(),
		OwnerID:   owner,
		Title:     "Bohrmaschine",
		IsBlocked: true,
	}
	mockSvc.On("FindListingByID", mock.Anything, blocked.ID).Return(blocked, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/listings/"+blocked.ID.String(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListingHandler_DeleteListing_Forbidden(t *testing.T) {
	userID := utils.NewSixID()
	mockSvc := new(MockListingService)
	r := newListingTestRouter(userID, mockSvc, new(MockMatchService))

	listingID := utils.NewSixID()
	mockSvc.On("DeleteListing", mock.Anything, listingID, userID).
		Return(apperr.Forbidden("listing %s does not belong to user %s", listingID.String(), userID.String()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/listings/"+listingID.String(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListingHandler_GetMatches(t *testing.T) {
	userID := utils.NewSixID()
	mockMatch := new(MockMatchService)
	r := newListingTestRouter(userID, new(MockListingService), mockMatch)

	listingID := utils.NewSixID()
	result := &services.MatchResult{
		BaseListingID: listingID,
		Count:         1,
		Matches: []services.Match{
			{Listing: models.Listing{ID: utils.NewSixID(), Title: "Suche Bohrmaschine"}, Score: 2, MatchedKeywords: []string{"bohrmaschine"}},
		},
		StagesApplied: []string{services.StageGeoZip, services.StageType, services.StageCategory, services.StageAvailability, services.StageKeywords},
	}
	mockMatch.On("FindMatches", mock.Anything, listingID, userID).Return(result, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/listings/"+listingID.String()+"/matches", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp services.MatchResult
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 2, resp.Matches[0].Score)
	mockMatch.AssertExpectations(t)
}

func TestListingHandler_BrowseListings_PassesFilter(t *testing.T) {
	userID := utils.NewSixID()
	mockSvc := new(MockListingService)
	r := newListingTestRouter(userID, mockSvc, new(MockMatchService))

	expected := services.ListingFilter{Query: "bohrmaschine", Category: "Handwerk", Zip: "1010"}
	mockSvc.On("BrowseListings", mock.Anything, expected).Return([]models.Listing{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/listings?q=bohrmaschine&category=Handwerk&zip=1010", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}
