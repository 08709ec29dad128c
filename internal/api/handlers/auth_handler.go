package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/uoknil/tauschBar/internal/auth"
	"github.com/uoknil/tauschBar/internal/config"
	"github.com/uoknil/tauschBar/internal/services"
	"github.com/uoknil/tauschBar/internal/storage"
	"github.com/uoknil/tauschBar/internal/tasks"
)

// AuthHandler handles registration, login and profile requests.
type AuthHandler struct {
	cfg         *config.Config
	userService services.IUserService
	storage     storage.IS3Storage
	taskClient  *asynq.Client
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg *config.Config, userService services.IUserService, s3 storage.IS3Storage, taskClient *asynq.Client) *AuthHandler {
	return &AuthHandler{cfg: cfg, userService: userService, storage: s3, taskClient: taskClient}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Username, user.IsModerator, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"` // username or email
	Password string `json:"password" binding:"required"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Username, user.IsModerator, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

// GetProfile handles GET /auth/profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type updateProfileRequest struct {
	Address string `json:"address"`
	Zip     string `json:"zip"`
}

// UpdateProfile handles PATCH /auth/profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), userID, req.Address, req.Zip)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type pictureUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// RequestProfilePictureUpload handles POST /auth/profile/picture. It returns
// a presigned PUT URL; the follow-up processing task resizes the upload and
// sets it as the profile picture.
func (h *AuthHandler) RequestProfilePictureUpload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req pictureUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	url, key, err := h.storage.GeneratePresignedPutURL(c.Request.Context(), userID.String(), "profile", req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}

	task, err := tasks.NewImageProcessTask(tasks.ImageTaskPayload{S3Key: key, UserID: userID.String()})
	if err != nil {
		respondError(c, err)
		return
	}
	// Give the client time to finish the upload before processing starts.
	if _, err := h.taskClient.Enqueue(task, asynq.ProcessIn(time.Minute)); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to enqueue profile picture task")
	}

	c.JSON(http.StatusOK, gin.H{"upload_url": url, "key": key})
}

// DeleteProfilePicture handles DELETE /auth/profile/picture.
func (h *AuthHandler) DeleteProfilePicture(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if user.ProfilePicture != "" {
		if err := h.storage.DeleteObject(c.Request.Context(), user.ProfilePicture); err != nil {
			log.Warn().Err(err).Str("key", user.ProfilePicture).Msg("failed to delete profile picture object")
		}
	}

	if err := h.userService.ClearProfilePicture(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
