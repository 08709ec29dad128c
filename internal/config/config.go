package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort string

	// Matching
	GeoCellPrecision int // geohash length for listing cells
	GeoNeighborRing  int // ring distance for stage-1 candidate cells
	MinKeywordLength int // tokens shorter than this are dropped from the base keyword set

	// Listings
	DefaultAvailabilityDays int // default availability window length
	MinDescriptionLength    int

	// AWS S3 (profile pictures and listing images)
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	ImageBaseS3URL     string
	ImageMaxDimension  int
	ImageMaxSizeMB     int

	// Messaging
	UnreadCountCacheTTL time.Duration

	// Rate Limiting
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "tauschbar")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.ImageBaseS3URL = getEnv("IMAGE_BASE_S3_URL", "")

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtTTLSeconds, err := strconv.ParseInt(getEnv("JWT_TTL_SECONDS", "7200"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL_SECONDS: %w", err)
	}
	cfg.JwtTTL = time.Duration(jwtTTLSeconds) * time.Second

	cfg.GeoCellPrecision, err = strconv.Atoi(getEnv("GEO_CELL_PRECISION", "6"))
	if err != nil {
		return nil, fmt.Errorf("invalid GEO_CELL_PRECISION: %w", err)
	}

	cfg.GeoNeighborRing, err = strconv.Atoi(getEnv("GEO_NEIGHBOR_RING", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid GEO_NEIGHBOR_RING: %w", err)
	}

	cfg.MinKeywordLength, err = strconv.Atoi(getEnv("MIN_KEYWORD_LENGTH", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_KEYWORD_LENGTH: %w", err)
	}

	cfg.DefaultAvailabilityDays, err = strconv.Atoi(getEnv("DEFAULT_AVAILABILITY_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_AVAILABILITY_DAYS: %w", err)
	}

	cfg.MinDescriptionLength, err = strconv.Atoi(getEnv("MIN_DESCRIPTION_LENGTH", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_DESCRIPTION_LENGTH: %w", err)
	}

	cfg.ImageMaxDimension, err = strconv.Atoi(getEnv("IMAGE_MAX_DIMENSION", "2048"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_DIMENSION: %w", err)
	}

	cfg.ImageMaxSizeMB, err = strconv.Atoi(getEnv("IMAGE_MAX_SIZE_MB", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_SIZE_MB: %w", err)
	}

	unreadTTLSeconds, err := strconv.ParseInt(getEnv("UNREAD_COUNT_CACHE_TTL_SECONDS", "15"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid UNREAD_COUNT_CACHE_TTL_SECONDS: %w", err)
	}
	cfg.UnreadCountCacheTTL = time.Duration(unreadTTLSeconds) * time.Second

	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
