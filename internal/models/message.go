package models

import (
	"bytes"
	"time"

	"github.com/uoknil/tauschBar/internal/utils"
)

// MaxMessageLength caps message content after trimming.
const MaxMessageLength = 2000

// ConversationKey identifies a message thread between two users about one
// listing. The participant pair is sorted, so the key is identical regardless
// of who is sender or receiver. Equality is structural.
type ConversationKey struct {
	UserA     utils.SixID `bson:"user_a" json:"user_a"`
	UserB     utils.SixID `bson:"user_b" json:"user_b"`
	ListingID utils.SixID `bson:"listing_id" json:"listing_id"`
}

// NewConversationKey builds the key for two participants and a listing.
// The pair is ordered byte-wise so NewConversationKey(a, b, l) equals
// NewConversationKey(b, a, l).
func NewConversationKey(userX, userY, listingID utils.SixID) ConversationKey {
	a, b := userX, userY
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return ConversationKey{UserA: a, UserB: b, ListingID: listingID}
}

// String is the canonical form persisted with each message and used for
// thread lookups.
func (k ConversationKey) String() string {
	return k.UserA.String() + ":" + k.UserB.String() + ":" + k.ListingID.String()
}

// Partner returns the other participant from the viewpoint of userID.
func (k ConversationKey) Partner(userID utils.SixID) utils.SixID {
	if k.UserA == userID {
		return k.UserB
	}
	return k.UserA
}

// Message is one entry in a conversation thread. IsRead transitions
// false->true when the receiver views the thread, and never reverses.
type Message struct {
	ID              utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	ConversationKey string      `bson:"conversation_key" json:"conversation_key"`
	ListingID       utils.SixID `bson:"listing_id" json:"listing_id"`
	SenderID        utils.SixID `bson:"sender_id" json:"sender_id"`
	ReceiverID      utils.SixID `bson:"receiver_id" json:"receiver_id"`
	Content         string      `bson:"content" json:"content"`
	IsRead          bool        `bson:"is_read" json:"is_read"`
	CreatedAt       time.Time   `bson:"created_at" json:"created_at"`
}

// Conversation is the per-thread summary returned by the conversations
// listing: the partner, the listing under discussion, the latest message and
// how many messages addressed to the viewer are still unread.
type Conversation struct {
	ConversationKey string          `json:"conversation_key"`
	Partner         PublicProfile   `json:"partner"`
	Listing         *ListingSummary `json:"listing,omitempty"`
	LastMessage     Message         `json:"last_message"`
	UnreadCount     int             `json:"unread_count"`
}
