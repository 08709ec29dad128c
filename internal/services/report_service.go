package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uoknil/tauschBar/internal/apperr"
	"github.com/uoknil/tauschBar/internal/db"
	"github.com/uoknil/tauschBar/internal/models"
	"github.com/uoknil/tauschBar/internal/utils"
)

// IReportService defines the interface for reporting and moderation.
type IReportService interface {
	Create(ctx context.Context, reporterID, listingID utils.SixID, reason, details string) (*models.Report, error)
	List(ctx context.Context, status models.ReportStatus) ([]models.ReportView, error)
	Apply(ctx context.Context, reportID utils.SixID, action models.ModerationAction, note string) (*models.Report, error)
}

const reportsCollection = "reports"

type reportService struct {
	db       *mongo.Database
	listings IListingService
	users    IUserService
}

// NewReportService creates a new ReportService.
func NewReportService(database *mongo.Database, listings IListingService, users IUserService) IReportService {
	return &reportService{db: database, listings: listings, users: users}
}

// Create files a report against a listing. The listing must exist and a
// reason is required.
func (s *reportService) Create(ctx context.Context, reporterID, listingID utils.SixID, reason, details string) (*models.Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("a reason is required")
	}

	if _, err := s.listings.FindListingByID(ctx, listingID); err != nil {
		return nil, err
	}

	var report *models.Report
	operation := func() error {
		now := time.Now().UTC()
		report = &models.Report{
			ID:         utils.NewSixID(),
			ListingID:  listingID,
			ReportedBy: reporterID,
			Reason:     reason,
			Details:    strings.TrimSpace(details),
			Status:     models.ReportStatusOpen,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		_, insertErr := s.db.Collection(reportsCollection).InsertOne(ctx, report)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, apperr.Internal(err, "failed to store report for listing %s", listingID.String())
	}
	return report, nil
}

// List returns reports for the moderation queue, newest first, with the
// reporter name and reported listing joined in. An empty status returns all
// reports.
func (s *reportService) List(ctx context.Context, status models.ReportStatus) ([]models.ReportView, error) {
	filter := bson.M{}
	if status != "" {
		if !status.Valid() {
			return nil, apperr.Validation("unknown report status %q", string(status))
		}
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(reportsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load reports")
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err = cursor.All(ctx, &reports); err != nil {
		return nil, apperr.Internal(err, "failed to decode reports")
	}

	views := make([]models.ReportView, 0, len(reports))
	for _, report := range reports {
		view := models.ReportView{Report: report}
		if reporter, err := s.users.FindByID(ctx, report.ReportedBy); err == nil {
			view.ReporterName = reporter.Username
		}
		if listing, err := s.listings.FindListingByID(ctx, report.ListingID); err == nil {
			summary := listing.Summary()
			view.Listing = &summary
		}
		views = append(views, view)
	}
	return views, nil
}

// Apply executes a moderation action on an open report. Reviewed and closed
// reports are terminal; acting on them again is a conflict.
func (s *reportService) Apply(ctx context.Context, reportID utils.SixID, action models.ModerationAction, note string) (*models.Report, error) {
	if !action.Valid() {
		return nil, apperr.Validation("unknown moderation action %q", string(action))
	}

	var report models.Report
	err := s.db.Collection(reportsCollection).FindOne(ctx, bson.M{"_id": reportID}).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("report %s not found", reportID.String())
		}
		return nil, apperr.Internal(err, "error looking up report %s", reportID.String())
	}
	if report.Status != models.ReportStatusOpen {
		return nil, apperr.Conflict("report %s has already been handled", reportID.String())
	}

	note = strings.TrimSpace(note)
	newStatus := models.ReportStatusReviewed

	switch action {
	case models.ActionBlockEntry:
		if note == "" {
			note = "Listing blocked"
		}
		if err := s.listings.BlockListing(ctx, report.ListingID, note); err != nil {
			return nil, err
		}
	case models.ActionWarnUser:
		listing, err := s.listings.FindListingByID(ctx, report.ListingID)
		if err != nil {
			return nil, err
		}
		if note == "" {
			note = "User warned"
		}
		if err := s.users.IncrementWarnings(ctx, listing.OwnerID); err != nil {
			return nil, err
		}
	case models.ActionClose:
		if note == "" {
			note = "Report closed"
		}
		newStatus = models.ReportStatusClosed
	}

	// The status filter guards against a concurrent moderator handling the
	// same report between the read above and this write.
	result, err := s.db.Collection(reportsCollection).UpdateOne(ctx,
		bson.M{"_id": reportID, "status": models.ReportStatusOpen},
		bson.M{"$set": bson.M{
			"status":          newStatus,
			"moderation_note": note,
			"updated_at":      time.Now().UTC(),
		}},
	)
	if err != nil {
		return nil, apperr.Internal(err, "failed to update report %s", reportID.String())
	}
	if result.MatchedCount == 0 {
		if action != models.ActionClose {
			log.Error().
				Str("report_id", reportID.String()).
				Str("action", string(action)).
				Msg("moderation action applied but report was handled concurrently")
		}
		return nil, apperr.Conflict("report %s has already been handled", reportID.String())
	}

	report.Status = newStatus
	report.ModerationNote = note
	return &report, nil
}
