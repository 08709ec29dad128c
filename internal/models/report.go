package models

import (
	"time"

	"github.com/uoknil/tauschBar/internal/utils"
)

// ReportStatus tracks the moderation state of a report.
type ReportStatus string

const (
	ReportStatusOpen     ReportStatus = "open"
	ReportStatusReviewed ReportStatus = "reviewed"
	ReportStatusClosed   ReportStatus = "closed"
)

// Valid reports whether s is a known report status.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusOpen, ReportStatusReviewed, ReportStatusClosed:
		return true
	}
	return false
}

// ModerationAction is an administrative operation applied to an open report.
type ModerationAction string

const (
	ActionBlockEntry ModerationAction = "blockEntry"
	ActionWarnUser   ModerationAction = "warnUser"
	ActionClose      ModerationAction = "close"
)

// Valid reports whether a is a known moderation action.
func (a ModerationAction) Valid() bool {
	switch a {
	case ActionBlockEntry, ActionWarnUser, ActionClose:
		return true
	}
	return false
}

// Report is a user complaint about a listing. Status moves open->reviewed
// (blockEntry/warnUser) or open->closed (close); reviewed and closed are
// terminal.
type Report struct {
	ID             utils.SixID  `bson:"_id,omitempty" json:"id,omitempty"`
	ListingID      utils.SixID  `bson:"listing_id" json:"listing_id"`
	ReportedBy     utils.SixID  `bson:"reported_by" json:"reported_by"`
	Reason         string       `bson:"reason" json:"reason"`
	Details        string       `bson:"details,omitempty" json:"details,omitempty"`
	Status         ReportStatus `bson:"status" json:"status"`
	ModerationNote string       `bson:"moderation_note,omitempty" json:"moderation_note,omitempty"`
	CreatedAt      time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `bson:"updated_at" json:"updated_at"`
}

// ReportView is a report enriched for the moderation queue with the
// reporter's name and the reported listing.
type ReportView struct {
	Report       `bson:",inline"`
	ReporterName string          `bson:"-" json:"reporter_name,omitempty"`
	Listing      *ListingSummary `bson:"-" json:"listing,omitempty"`
}
