package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/uoknil/tauschBar/internal/config"
	"github.com/uoknil/tauschBar/internal/models"
	"github.com/uoknil/tauschBar/internal/services"
	"github.com/uoknil/tauschBar/internal/storage"
	"github.com/uoknil/tauschBar/internal/tasks"
)

// ListingHandler handles listing and matching requests.
type ListingHandler struct {
	cfg            *config.Config
	listingService services.IListingService
	matchService   services.IMatchService
	storage        storage.IS3Storage
	taskClient     *asynq.Client
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(
	cfg *config.Config,
	listingService services.IListingService,
	matchService services.IMatchService,
	s3 storage.IS3Storage,
	taskClient *asynq.Client,
) *ListingHandler {
	return &ListingHandler{
		cfg:            cfg,
		listingService: listingService,
		matchService:   matchService,
		storage:        s3,
		taskClient:     taskClient,
	}
}

type createListingRequest struct {
	Title              string     `json:"title" binding:"required"`
	Type               string     `json:"type" binding:"required"`
	OfferDescription   string     `json:"offer_description"`
	RequestDescription string     `json:"request_description"`
	Category           string     `json:"category" binding:"required"`
	Zip                string     `json:"zip" binding:"required"`
	Lat                *float64   `json:"lat"`
	Lng                *float64   `json:"lng"`
	AvailableFrom      *time.Time `json:"available_from"`
	AvailableTo        *time.Time `json:"available_to"`
}

// CreateListing handles POST /listings.
func (h *ListingHandler) CreateListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), userID, services.CreateListingInput{
		Title:              req.Title,
		Type:               models.ListingType(req.Type),
		OfferDescription:   req.OfferDescription,
		RequestDescription: req.RequestDescription,
		Category:           req.Category,
		Zip:                req.Zip,
		Lat:                req.Lat,
		Lng:                req.Lng,
		AvailableFrom:      req.AvailableFrom,
		AvailableTo:        req.AvailableTo,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// BrowseListings handles GET /listings. Public; supports q, category, zip,
// from and to query filters.
func (h *ListingHandler) BrowseListings(c *gin.Context) {
	filter := services.ListingFilter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Zip:      c.Query("zip"),
	}
	if fromStr := c.Query("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from timestamp"})
			return
		}
		filter.From = &from
	}
	if toStr := c.Query("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to timestamp"})
			return
		}
		filter.To = &to
	}

	listings, err := h.listingService.BrowseListings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listings, "count": len(listings)})
}

// GetListing handles GET /listings/:id. Blocked listings are visible to their
// owner only, who still sees the blocked reason.
func (h *ListingHandler) GetListing(c *gin.Context) {
	listingID, ok := pathID(c, "id")
	if !ok {
		return
	}
	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err)
		return
	}
	if listing.IsBlocked {
		userID, ok := currentUserID(c)
		if !ok || listing.OwnerID != userID {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return
		}
	}
	c.JSON(http.StatusOK, listing)
}

// MyListings handles GET /listings/mine.
func (h *ListingHandler) MyListings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	listings, err := h.listingService.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listings, "count": len(listings)})
}

// DeleteListing handles DELETE /listings/:id.
func (h *ListingHandler) DeleteListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	listingID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.listingService.DeleteListing(c.Request.Context(), listingID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// GetMatches handles GET /listings/:id/matches. Only the listing's owner may
// request its match set.
func (h *ListingHandler) GetMatches(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	listingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.matchService.FindMatches(c.Request.Context(), listingID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RequestImageUpload handles POST /listings/:id/images. It returns a
// presigned PUT URL and schedules the processing task that attaches the
// normalized image to the listing.
func (h *ListingHandler) RequestImageUpload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	listingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err)
		return
	}
	if listing.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your listing"})
		return
	}

	var req pictureUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	url, key, err := h.storage.GeneratePresignedPutURL(c.Request.Context(), userID.String(), listingID.String(), req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}

	task, err := tasks.NewImageProcessTask(tasks.ImageTaskPayload{S3Key: key, ListingID: listingID.String()})
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.taskClient.Enqueue(task, asynq.ProcessIn(time.Minute)); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to enqueue listing image task")
	}

	c.JSON(http.StatusOK, gin.H{"upload_url": url, "key": key})
}
