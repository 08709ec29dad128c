package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uoknil/tauschBar/internal/services"
	"github.com/uoknil/tauschBar/internal/utils"
)

// MessageHandler handles conversation requests.
type MessageHandler struct {
	messageService services.IMessageService
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(messageService services.IMessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	ListingID  string `json:"listing_id" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

// SendMessage handles POST /messages.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	receiverID, err := utils.ParseSixID(req.ReceiverID)
	if err != nil || receiverID.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid receiver_id"})
		return
	}
	listingID, err := utils.ParseSixID(req.ListingID)
	if err != nil || listingID.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing_id"})
		return
	}

	msg, err := h.messageService.Send(c.Request.Context(), userID, receiverID, listingID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListConversations handles GET /messages/conversations.
func (h *MessageHandler) ListConversations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	conversations, err := h.messageService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": conversations, "count": len(conversations)})
}

// GetConversation handles GET /messages/conversation/:visavisId/:listingId.
// Viewing marks incoming unread messages as read.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	visavisID, ok := pathID(c, "visavisId")
	if !ok {
		return
	}
	listingID, ok := pathID(c, "listingId")
	if !ok {
		return
	}

	messages, err := h.messageService.ListThread(c.Request.Context(), userID, visavisID, listingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages, "count": len(messages)})
}

// GetConversationContext handles GET /messages/context/:listingId. It
// resolves the listing summary and the owner's public profile so a client can
// start a chat from a listing page.
func (h *MessageHandler) GetConversationContext(c *gin.Context) {
	listingID, ok := pathID(c, "listingId")
	if !ok {
		return
	}

	context, err := h.messageService.ConversationContext(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, context)
}

// UnreadCount handles GET /messages/unread-count.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	count, err := h.messageService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}
