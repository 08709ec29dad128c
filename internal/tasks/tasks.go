package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registered for image.Decode
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uoknil/tauschBar/internal/config"
	"github.com/uoknil/tauschBar/internal/models"
	"github.com/uoknil/tauschBar/internal/services"
	"github.com/uoknil/tauschBar/internal/storage"
	"github.com/uoknil/tauschBar/internal/utils"
)

// Task type names.
const (
	TypeImageProcess = "image:process"
	TypeListingSweep = "listing:sweep"
)

// NewClient creates an asynq client on the same Redis deployment the cache
// uses.
func NewClient(rdb *redis.Client) *asynq.Client {
	opts := rdb.Options()
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// ImageTaskPayload carries one uploaded image to process. Exactly one of
// ListingID and UserID is set: listing images are appended to the listing,
// a user image becomes the profile picture.
type ImageTaskPayload struct {
	S3Key     string `json:"s3_key"`
	ListingID string `json:"listing_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// NewImageProcessTask builds the task for enqueuing.
func NewImageProcessTask(payload ImageTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image task payload: %w", err)
	}
	return asynq.NewTask(TypeImageProcess, data, asynq.Queue("images")), nil
}

// TaskProcessor holds the dependencies task handlers need.
type TaskProcessor struct {
	cfg      *config.Config
	db       *mongo.Database
	storage  storage.IS3Storage
	listings services.IListingService
	users    services.IUserService
}

// NewTaskProcessor creates a TaskProcessor.
func NewTaskProcessor(
	cfg *config.Config,
	db *mongo.Database,
	s3 storage.IS3Storage,
	listings services.IListingService,
	users services.IUserService,
) *TaskProcessor {
	return &TaskProcessor{cfg: cfg, db: db, storage: s3, listings: listings, users: users}
}

// SetupServer configures and returns an asynq server with the handlers
// registered. The caller runs it.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	opts := rdb.Options()
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB},
		asynq.Config{
			Queues: map[string]int{
				"default": 3,
				"images":  5,
				"low":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("task", task.Type()).Msg("task failed")
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
	mux.HandleFunc(TypeListingSweep, processor.HandleListingSweepTask)
	return srv, mux
}

// SetupScheduler registers the periodic jobs. Run alongside the task server
// in worker mode.
func SetupScheduler(rdb *redis.Client) *asynq.Scheduler {
	opts := rdb.Options()
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB},
		&asynq.SchedulerOpts{
			PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
				if err != nil {
					log.Error().Err(err).Msg("failed to enqueue scheduled task")
				}
			},
		},
	)
	if _, err := scheduler.Register("@every 1h",
		asynq.NewTask(TypeListingSweep, nil, asynq.Queue("low"))); err != nil {
		log.Error().Err(err).Msg("failed to register listing sweep")
	}
	return scheduler
}

// HandleImageProcessTask downloads an uploaded image, normalizes it and
// attaches the processed key to its listing or user.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Info().Str("key", payload.S3Key).Msg("processing image")

	imgData, err := p.storage.GetObject(ctx, payload.S3Key)
	if err != nil {
		return fmt.Errorf("failed to download image %s: %w", payload.S3Key, err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Warn().Str("key", payload.S3Key).Int("bytes", len(imgData)).Msg("image exceeds max size, dropping")
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.ImageMaxDimension)
	processed := imgData
	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized image: %w", err)
		}
		processed = buf.Bytes()
		format = "jpeg"
		log.Info().Str("key", payload.S3Key).
			Int("width", resized.Bounds().Dx()).Int("height", resized.Bounds().Dy()).
			Msg("resized image")
	}

	if err := p.storage.PutObject(ctx, payload.S3Key, "image/"+format, processed); err != nil {
		return fmt.Errorf("failed to store processed image %s: %w", payload.S3Key, err)
	}

	switch {
	case payload.ListingID != "":
		listingID, err := utils.ParseSixID(payload.ListingID)
		if err != nil {
			return fmt.Errorf("invalid listing id in payload: %w", asynq.SkipRetry)
		}
		if err := p.listings.AddImageToListing(ctx, listingID, payload.S3Key); err != nil {
			return fmt.Errorf("failed to attach image to listing %s: %w", payload.ListingID, err)
		}
	case payload.UserID != "":
		userID, err := utils.ParseSixID(payload.UserID)
		if err != nil {
			return fmt.Errorf("invalid user id in payload: %w", asynq.SkipRetry)
		}
		if err := p.users.SetProfilePicture(ctx, userID, payload.S3Key); err != nil {
			return fmt.Errorf("failed to set profile picture for user %s: %w", payload.UserID, err)
		}
	default:
		return fmt.Errorf("image task without target: %w", asynq.SkipRetry)
	}

	return nil
}

// HandleListingSweepTask logs listings whose availability window has fully
// lapsed. Observability only; lapsed listings stay stored and queryable.
func (p *TaskProcessor) HandleListingSweepTask(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().UTC()
	filter := bson.M{"available_to": bson.M{"$lt": cutoff}, "is_blocked": false}

	opts := options.Find().SetSort(bson.D{{Key: "available_to", Value: 1}})
	cursor, err := p.db.Collection("listings").Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("failed to query lapsed listings: %w", err)
	}
	defer cursor.Close(ctx)

	lapsed := 0
	for cursor.Next(ctx) {
		var listing models.Listing
		if err := cursor.Decode(&listing); err != nil {
			return fmt.Errorf("failed to decode lapsed listing: %w", err)
		}
		lapsed++
		log.Info().
			Str("listing", listing.ID.String()).
			Str("title", listing.Title).
			Time("available_to", listing.AvailableTo).
			Msg("listing availability lapsed")
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("cursor error during listing sweep: %w", err)
	}

	log.Info().Int("lapsed", lapsed).Msg("listing sweep complete")
	return nil
}
