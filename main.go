package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/uoknil/tauschBar/internal/api"
	"github.com/uoknil/tauschBar/internal/cache"
	"github.com/uoknil/tauschBar/internal/config"
	"github.com/uoknil/tauschBar/internal/db"
	"github.com/uoknil/tauschBar/internal/geo"
	"github.com/uoknil/tauschBar/internal/services"
	"github.com/uoknil/tauschBar/internal/storage"
	"github.com/uoknil/tauschBar/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'worker', 'all' (default)")

func main() {
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Error().Err(err).Msg("error disconnecting from MongoDB")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(ctx, mongoDb); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("failed to ensure indexes")
	}
	cancel()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Error().Err(err).Msg("error disconnecting from Redis")
		}
	}()

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize S3 storage")
	}

	resolver := geo.NewResolver(cfg.GeoCellPrecision)
	userService := services.NewUserService(mongoDb)
	listingService := services.NewListingService(mongoDb, cfg, resolver)

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	taskProcessor := tasks.NewTaskProcessor(cfg, mongoDb, s3StorageService, listingService, userService)

	var wg sync.WaitGroup
	var apiSrv *http.Server
	var taskSrv *asynq.Server
	var scheduler *asynq.Scheduler

	log.Info().Str("mode", cfg.RunMode).Msg("starting")

	apiMode := func() {
		router := api.SetupRouter(cfg, mongoDb, redisClient, taskClient)
		apiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Str("port", cfg.ApiPort).Msg("API listening")
			if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("API server error")
			}
		}()
	}

	workerMode := func() {
		srv, mux := tasks.SetupServer(redisClient, taskProcessor)
		taskSrv = srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("task server starting")
			if err := taskSrv.Run(mux); err != nil {
				log.Fatal().Err(err).Msg("task server error")
			}
		}()

		scheduler = tasks.SetupScheduler(redisClient)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := scheduler.Run(); err != nil {
				log.Fatal().Err(err).Msg("scheduler error")
			}
		}()
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "worker":
		workerMode()
	case "all":
		apiMode()
		workerMode()
	default:
		log.Fatal().Str("mode", cfg.RunMode).Msg("invalid run mode")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if apiSrv != nil {
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}

	wg.Wait()
	log.Info().Msg("stopped")
}
