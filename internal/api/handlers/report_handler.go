package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uoknil/tauschBar/internal/models"
	"github.com/uoknil/tauschBar/internal/services"
	"github.com/uoknil/tauschBar/internal/utils"
)

// ReportHandler handles reporting and moderation requests.
type ReportHandler struct {
	reportService services.IReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService services.IReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

type createReportRequest struct {
	ListingID string `json:"listing_id" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
	Details   string `json:"details"`
}

// CreateReport handles POST /reports.
func (h *ReportHandler) CreateReport(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	listingID, err := utils.ParseSixID(req.ListingID)
	if err != nil || listingID.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing_id"})
		return
	}

	report, err := h.reportService.Create(c.Request.Context(), userID, listingID, req.Reason, req.Details)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// ListReports handles GET /reports. Moderator only; defaults to the open
// queue, ?status= selects another slice.
func (h *ReportHandler) ListReports(c *gin.Context) {
	status := models.ReportStatus(c.DefaultQuery("status", string(models.ReportStatusOpen)))
	if c.Query("status") == "all" {
		status = ""
	}

	views, err := h.reportService.List(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": views, "count": len(views)})
}

type applyActionRequest struct {
	Action string `json:"action" binding:"required"`
	Note   string `json:"note"`
}

// ApplyAction handles PATCH /reports/:id/action. Moderator only.
func (h *ReportHandler) ApplyAction(c *gin.Context) {
	reportID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req applyActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	report, err := h.reportService.Apply(c.Request.Context(), reportID, models.ModerationAction(req.Action), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
