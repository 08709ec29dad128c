package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/uoknil/tauschBar/internal/api/handlers"
	"github.com/uoknil/tauschBar/internal/api/middleware"
	"github.com/uoknil/tauschBar/internal/config"
	"github.com/uoknil/tauschBar/internal/geo"
	"github.com/uoknil/tauschBar/internal/services"
	"github.com/uoknil/tauschBar/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient *asynq.Client) *gin.Engine {
	resolver := geo.NewResolver(cfg.GeoCellPrecision)

	userService := services.NewUserService(db)
	listingService := services.NewListingService(db, cfg, resolver)
	matchService := services.NewMatchService(db, cfg, resolver, nil)
	messageService := services.NewMessageService(db, cfg, rdb)
	reportService := services.NewReportService(db, listingService, userService)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize S3 storage for API")
	}

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(cfg, userService, s3StorageService, taskClient)
	listingHandler := handlers.NewListingHandler(cfg, listingService, matchService, s3StorageService, taskClient)
	messageHandler := handlers.NewMessageHandler(messageService)
	reportHandler := handlers.NewReportHandler(reportService)

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)

		profile := auth.Group("/")
		profile.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			profile.GET("/profile", authHandler.GetProfile)
			profile.PATCH("/profile", authHandler.UpdateProfile)
			profile.POST("/profile/picture", authHandler.RequestProfilePictureUpload)
			profile.DELETE("/profile/picture", authHandler.DeleteProfilePicture)
		}
	}

	listings := r.Group("/listings")
	{
		listings.GET("", listingHandler.BrowseListings)

		authed := listings.Group("/")
		authed.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authed.POST("", listingHandler.CreateListing)
			authed.GET("/mine", listingHandler.MyListings)
			authed.GET("/:id", listingHandler.GetListing)
			authed.DELETE("/:id", listingHandler.DeleteListing)
			authed.GET("/:id/matches", listingHandler.GetMatches)
			authed.POST("/:id/images", listingHandler.RequestImageUpload)
		}
	}

	messages := r.Group("/messages")
	messages.Use(middleware.AuthMiddleware(cfg.JwtSecret))
	{
		messages.POST("", messageHandler.SendMessage)
		messages.GET("/conversations", messageHandler.ListConversations)
		messages.GET("/conversation/:visavisId/:listingId", messageHandler.GetConversation)
		messages.GET("/context/:listingId", messageHandler.GetConversationContext)
		messages.GET("/unread-count", messageHandler.UnreadCount)
	}

	reports := r.Group("/reports")
	reports.Use(middleware.AuthMiddleware(cfg.JwtSecret))
	{
		reports.POST("", reportHandler.CreateReport)

		moderation := reports.Group("/")
		moderation.Use(middleware.ModeratorMiddleware())
		{
			moderation.GET("", reportHandler.ListReports)
			moderation.PATCH("/:id/action", reportHandler.ApplyAction)
		}
	}

	return r
}
