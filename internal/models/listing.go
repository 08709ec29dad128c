package models

import (
	"strings"
	"time"

	"github.com/uoknil/tauschBar/internal/utils"
)

// ListingType distinguishes help offers from help requests.
type ListingType string

const (
	ListingTypeOffer   ListingType = "offer"
	ListingTypeRequest ListingType = "request"
)

// Valid reports whether t is one of the known listing types.
func (t ListingType) Valid() bool {
	return t == ListingTypeOffer || t == ListingTypeRequest
}

// Opposite returns the complementary type: an offer matches requests and
// vice versa.
func (t ListingType) Opposite() ListingType {
	if t == ListingTypeOffer {
		return ListingTypeRequest
	}
	return ListingTypeOffer
}

// GeoJSON represents a GeoJSON Point for MongoDB.
type GeoJSON struct {
	Type        string    `bson:"type" json:"type"`               // Should be "Point"
	Coordinates []float64 `bson:"coordinates" json:"coordinates"` // [longitude, latitude]
}

// Listing is a user-submitted offer or request for help, the unit being matched.
// Exactly one of OfferDescription/RequestDescription is populated, matching Type.
type Listing struct {
	ID                 utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID            utils.SixID `bson:"owner_id" json:"owner_id"`
	Title              string      `bson:"title" json:"title"`
	Type               ListingType `bson:"type" json:"type"`
	OfferDescription   string      `bson:"offer_description,omitempty" json:"offer_description,omitempty"`
	RequestDescription string      `bson:"request_description,omitempty" json:"request_description,omitempty"`
	Category           string      `bson:"category" json:"category"`
	Zip                string      `bson:"zip" json:"zip"`
	Cell               string      `bson:"cell,omitempty" json:"cell,omitempty"` // geohash cell, set when coordinates were supplied
	Location           *GeoJSON    `bson:"location,omitempty" json:"location,omitempty"`
	AvailableFrom      time.Time   `bson:"available_from" json:"available_from"`
	AvailableTo        time.Time   `bson:"available_to" json:"available_to"`
	IsBlocked          bool        `bson:"is_blocked" json:"is_blocked"`
	BlockedReason      string      `bson:"blocked_reason,omitempty" json:"blocked_reason,omitempty"`
	Images             []string    `bson:"images" json:"images"` // S3 keys
	CreatedAt          time.Time   `bson:"created_at" json:"created_at"`
}

// Description returns whichever description matches the listing's type.
func (l *Listing) Description() string {
	if l.Type == ListingTypeOffer {
		return l.OfferDescription
	}
	return l.RequestDescription
}

// SearchText is the text the keyword ranker scans: title plus description.
func (l *Listing) SearchText() string {
	return strings.TrimSpace(l.Title + " " + l.Description())
}

// ListingSummary is the compact listing shape embedded in conversation
// listings and match results.
type ListingSummary struct {
	ID       utils.SixID `bson:"_id" json:"id"`
	Title    string      `bson:"title" json:"title"`
	Category string      `bson:"category" json:"category"`
}

// Summary returns the compact shape of the listing.
func (l *Listing) Summary() ListingSummary {
	return ListingSummary{ID: l.ID, Title: l.Title, Category: l.Category}
}
