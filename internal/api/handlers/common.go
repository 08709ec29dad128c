package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/uoknil/tauschBar/internal/apperr"
	"github.com/uoknil/tauschBar/internal/api/middleware"
	"github.com/uoknil/tauschBar/internal/utils"
)

// currentUserID extracts the authenticated user's ID from the Gin context.
// AuthMiddleware stores it as the Crockford string form of the SixID.
func currentUserID(c *gin.Context) (utils.SixID, bool) {
	raw, exists := c.Get(middleware.ContextKeyUserID)
	if !exists {
		return utils.SixID{}, false
	}
	idStr, ok := raw.(string)
	if !ok {
		return utils.SixID{}, false
	}
	id, err := utils.ParseSixID(idStr)
	if err != nil || id.IsZero() {
		return utils.SixID{}, false
	}
	return id, true
}

// respondError translates a service error into an HTTP response. Internal
// errors are logged with their cause and returned opaque.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	msg := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	c.JSON(status, gin.H{"error": msg})
}

// pathID parses a SixID path parameter, responding 400 itself on failure.
func pathID(c *gin.Context, name string) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil || id.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return utils.SixID{}, false
	}
	return id, true
}
