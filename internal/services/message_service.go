package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uoknil/tauschBar/internal/apperr"
	"github.com/uoknil/tauschBar/internal/config"
	"github.com/uoknil/tauschBar/internal/db"
	"github.com/uoknil/tauschBar/internal/models"
	"github.com/uoknil/tauschBar/internal/utils"
)

// IMessageService defines the interface for conversation operations.
type IMessageService interface {
	Send(ctx context.Context, senderID, receiverID, listingID utils.SixID, content string) (*models.Message, error)
	ListThread(ctx context.Context, viewerID, otherUserID, listingID utils.SixID) ([]models.Message, error)
	ListConversations(ctx context.Context, userID utils.SixID) ([]models.Conversation, error)
	UnreadCount(ctx context.Context, userID utils.SixID) (int64, error)
	ConversationContext(ctx context.Context, listingID utils.SixID) (*ConversationContext, error)
}

// ConversationContext is what a client needs to open a chat from a listing
// before the first message exists: the listing summary and who owns it.
type ConversationContext struct {
	Listing models.ListingSummary `json:"listing"`
	Owner   models.PublicProfile  `json:"owner"`
}

const messagesCollection = "messages"

// messageService implements IMessageService. Redis caches the unread badge
// count briefly; everything else reads Mongo directly.
type messageService struct {
	db  *mongo.Database
	cfg *config.Config
	rdb *redis.Client
}

// NewMessageService creates a new MessageService.
func NewMessageService(database *mongo.Database, cfg *config.Config, rdb *redis.Client) IMessageService {
	return &messageService{db: database, cfg: cfg, rdb: rdb}
}

// Send validates and persists a message under the derived conversation key.
func (s *messageService) Send(ctx context.Context, senderID, receiverID, listingID utils.SixID, content string) (*models.Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, apperr.Validation("message content is required")
	}
	if len([]rune(trimmed)) > models.MaxMessageLength {
		return nil, apperr.Validation("message content exceeds %d characters", models.MaxMessageLength)
	}
	if senderID == receiverID {
		return nil, apperr.Validation("cannot send a message to yourself")
	}

	// Listing and receiver must exist before anything is written.
	if err := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("listing %s not found", listingID.String())
		}
		return nil, apperr.Internal(err, "error checking listing %s", listingID.String())
	}
	if err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": receiverID}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("receiver %s not found", receiverID.String())
		}
		return nil, apperr.Internal(err, "error checking receiver %s", receiverID.String())
	}

	key := models.NewConversationKey(senderID, receiverID, listingID)

	var msg *models.Message
	operation := func() error {
		msg = &models.Message{
			ID:              utils.NewSixID(),
			ConversationKey: key.String(),
			ListingID:       listingID,
			SenderID:        senderID,
			ReceiverID:      receiverID,
			Content:         trimmed,
			IsRead:          false,
			CreatedAt:       time.Now().UTC(),
		}
		_, insertErr := s.db.Collection(messagesCollection).InsertOne(ctx, msg)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, apperr.Internal(err, "failed to store message in conversation %s", key.String())
	}

	s.invalidateUnreadCount(ctx, receiverID)
	return msg, nil
}

// ListThread returns the full history of one conversation, oldest first, and
// marks every unread message addressed to the viewer as read.
func (s *messageService) ListThread(ctx context.Context, viewerID, otherUserID, listingID utils.SixID) ([]models.Message, error) {
	key := models.NewConversationKey(viewerID, otherUserID, listingID)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(messagesCollection).Find(ctx, bson.M{"conversation_key": key.String()}, opts)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load conversation %s", key.String())
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, apperr.Internal(err, "failed to decode conversation %s", key.String())
	}

	// Viewing the thread is what flips the read flag; the transition never
	// reverses.
	result, err := s.db.Collection(messagesCollection).UpdateMany(ctx,
		bson.M{"conversation_key": key.String(), "receiver_id": viewerID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return nil, apperr.Internal(err, "failed to mark conversation %s as read", key.String())
	}
	if result.ModifiedCount > 0 {
		s.invalidateUnreadCount(ctx, viewerID)
		for i := range messages {
			if messages[i].ReceiverID == viewerID {
				messages[i].IsRead = true
			}
		}
	}

	return messages, nil
}

// ListConversations groups the user's messages by conversation key. One pass
// over the user's messages (newest first) yields the last message and the
// unread count per thread; partners and listing summaries are then batch
// loaded.
func (s *messageService) ListConversations(ctx context.Context, userID utils.SixID) ([]models.Conversation, error) {
	filter := bson.M{"$or": bson.A{bson.M{"sender_id": userID}, bson.M{"receiver_id": userID}}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.db.Collection(messagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load conversations for user %s", userID.String())
	}
	defer cursor.Close(ctx)

	var order []string
	threads := map[string]*models.Conversation{}
	partnerIDs := map[utils.SixID]struct{}{}
	listingIDs := map[utils.SixID]struct{}{}

	for cursor.Next(ctx) {
		var msg models.Message
		if err := cursor.Decode(&msg); err != nil {
			return nil, apperr.Internal(err, "failed to decode message for user %s", userID.String())
		}

		conv, ok := threads[msg.ConversationKey]
		if !ok {
			partnerID := msg.SenderID
			if partnerID == userID {
				partnerID = msg.ReceiverID
			}
			conv = &models.Conversation{
				ConversationKey: msg.ConversationKey,
				Partner:         models.PublicProfile{ID: partnerID},
				LastMessage:     msg,
			}
			threads[msg.ConversationKey] = conv
			order = append(order, msg.ConversationKey)
			partnerIDs[partnerID] = struct{}{}
			listingIDs[msg.ListingID] = struct{}{}
		}
		if msg.ReceiverID == userID && !msg.IsRead {
			conv.UnreadCount++
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.Internal(err, "cursor error loading conversations for user %s", userID.String())
	}

	usernames, err := s.loadUsernames(ctx, partnerIDs)
	if err != nil {
		return nil, err
	}
	summaries, err := s.loadListingSummaries(ctx, listingIDs)
	if err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(order))
	for _, key := range order {
		conv := threads[key]
		conv.Partner.Username = usernames[conv.Partner.ID]
		if summary, ok := summaries[conv.LastMessage.ListingID]; ok {
			conv.Listing = &summary
		}
		conversations = append(conversations, *conv)
	}
	return conversations, nil
}

// UnreadCount returns the total number of unread messages addressed to the
// user, cached briefly in Redis for badge polling.
func (s *messageService) UnreadCount(ctx context.Context, userID utils.SixID) (int64, error) {
	cacheKey := unreadCountCacheKey(userID)
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			if n, parseErr := strconv.ParseInt(cached, 10, 64); parseErr == nil {
				return n, nil
			}
		} else if err != redis.Nil {
			log.Warn().Err(err).Msg("unread count cache read failed")
		}
	}

	count, err := s.db.Collection(messagesCollection).CountDocuments(ctx,
		bson.M{"receiver_id": userID, "is_read": false})
	if err != nil {
		return 0, apperr.Internal(err, "failed to count unread messages for user %s", userID.String())
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, cacheKey, strconv.FormatInt(count, 10), s.cfg.UnreadCountCacheTTL).Err(); err != nil {
			log.Warn().Err(err).Msg("unread count cache write failed")
		}
	}
	return count, nil
}

// ConversationContext resolves the listing and its owner for starting a chat
// from a listing page. Blocked listings are as invisible here as in browse.
func (s *messageService) ConversationContext(ctx context.Context, listingID utils.SixID) (*ConversationContext, error) {
	var listing models.Listing
	err := s.db.Collection(listingsCollection).FindOne(ctx,
		bson.M{"_id": listingID, "is_blocked": false}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("listing %s not found", listingID.String())
		}
		return nil, apperr.Internal(err, "error loading listing %s", listingID.String())
	}

	var owner models.User
	err = s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": listing.OwnerID}).Decode(&owner)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("owner of listing %s not found", listingID.String())
		}
		return nil, apperr.Internal(err, "error loading owner of listing %s", listingID.String())
	}

	return &ConversationContext{Listing: listing.Summary(), Owner: owner.Public()}, nil
}

func (s *messageService) invalidateUnreadCount(ctx context.Context, userID utils.SixID) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, unreadCountCacheKey(userID)).Err(); err != nil {
		log.Warn().Err(err).Msg("unread count cache invalidation failed")
	}
}

func unreadCountCacheKey(userID utils.SixID) string {
	return fmt.Sprintf("unread:%s", userID.String())
}

func (s *messageService) loadUsernames(ctx context.Context, ids map[utils.SixID]struct{}) (map[utils.SixID]string, error) {
	out := make(map[utils.SixID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	idList := make([]utils.SixID, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}
	cursor, err := s.db.Collection(usersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": idList}})
	if err != nil {
		return nil, apperr.Internal(err, "failed to load conversation partners")
	}
	defer cursor.Close(ctx)
	var users []models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, apperr.Internal(err, "failed to decode conversation partners")
	}
	for _, u := range users {
		out[u.ID] = u.Username
	}
	return out, nil
}

func (s *messageService) loadListingSummaries(ctx context.Context, ids map[utils.SixID]struct{}) (map[utils.SixID]models.ListingSummary, error) {
	out := make(map[utils.SixID]models.ListingSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	idList := make([]utils.SixID, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}
	cursor, err := s.db.Collection(listingsCollection).Find(ctx, bson.M{"_id": bson.M{"$in": idList}})
	if err != nil {
		return nil, apperr.Internal(err, "failed to load conversation listings")
	}
	defer cursor.Close(ctx)
	var listings []models.Listing
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, apperr.Internal(err, "failed to decode conversation listings")
	}
	for i := range listings {
		out[listings[i].ID] = listings[i].Summary()
	}
	return out, nil
}
