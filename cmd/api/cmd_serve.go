package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/promora-go-api/internal/attribution"
	"github.com/noah-isme/promora-go-api/internal/config"
	"github.com/noah-isme/promora-go-api/internal/database"
	"github.com/noah-isme/promora-go-api/internal/handler"
	"github.com/noah-isme/promora-go-api/internal/middleware"
	"github.com/noah-isme/promora-go-api/internal/repository"
	"github.com/noah-isme/promora-go-api/internal/router"
	"github.com/noah-isme/promora-go-api/internal/service"
	cloud "github.com/noah-isme/promora-go-api/pkg/cloudinary"
	"github.com/noah-isme/promora-go-api/pkg/tokens"
	"github.com/noah-isme/promora-go-api/pkg/tracking"
)

const shutdownTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set, attribution summaries are disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			return err
		}
		defer natsConn.Drain()
	}

	var upstream attribution.Dispatcher
	if cfg.APIBaseURL != "" {
		client, err := tracking.New(tracking.Config{
			BaseURL:     cfg.APIBaseURL,
			Timeout:     cfg.APITimeout,
			Logger:      logger,
			Correlation: middleware.CorrelationIDFromContext,
		})
		if err != nil {
			return err
		}
		upstream = client
		logger.Info().Str("endpoint", client.Endpoint()).Msg("tracking events forwarded upstream")
	} else {
		logger.Warn().Msg("api base url not set, tracking events are only recorded locally")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	logRepo := repository.NewInteractionLogRepository(db)
	summary := service.NewSummaryStore(redisClient, cfg.SummaryCacheTTL, logger)
	feed := service.NewAttributionFeed(natsConn, logger)
	dispatcher := service.NewTrackingDispatcher(upstream, logRepo, summary, feed, logger)
	registry := attribution.NewRegistry(dispatcher, logger)

	counter := tokens.NewTiktokenCounter()
	if _, err := counter.Count("", "warm up"); err != nil {
		logger.Warn().Err(err).Msg("tokenizer unavailable, passthrough events keep their token counts")
	}

	attributionService := service.NewAttributionService(registry, summary, logRepo, counter, validate, logger)
	attributionHandler := handler.NewAttributionHandler(attributionService, feed, logger)

	var recordingHandler *handler.RecordingHandler
	if cfg.CloudinaryEnabled() {
		storage, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.RecordingFolder,
		}, logger)
		if err != nil {
			return err
		}
		recordingService := service.NewRecordingService(storage, repository.NewRecordingChunkRepository(db), cfg.RecordingMaxChunkMB, logger)
		recordingHandler = handler.NewRecordingHandler(recordingService, logger)
	} else {
		logger.Warn().Msg("cloudinary credentials not set, recording upload routes are disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.RecordingMaxChunkMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
	})
	router.Register(app, cfg, router.Dependencies{
		AttributionHandler: attributionHandler,
		RecordingHandler:   recordingHandler,
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		ReviewerMiddleware: reviewerMiddleware(cfg),
		HealthChecks:       healthChecks(db, redisClient, natsConn),
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return feed.Start(groupCtx)
	})
	group.Go(func() error {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}

// reviewerMiddleware restricts audit endpoints to reviewer roles once tokens
// are verified. Without a JWT secret there are no roles to check.
func reviewerMiddleware(cfg config.Config) fiber.Handler {
	if cfg.JWTSecret == "" {
		return nil
	}
	return middleware.Reviewers()
}

func healthChecks(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) []handler.DependencyCheck {
	checks := []handler.DependencyCheck{{
		Name: "postgres",
		Check: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
	}}

	if redisClient != nil {
		checks = append(checks, handler.DependencyCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}

	if natsConn != nil {
		checks = append(checks, handler.DependencyCheck{
			Name: "nats",
			Check: func(context.Context) error {
				if !natsConn.IsConnected() {
					return fmt.Errorf("nats connection status %s", natsConn.Status())
				}
				return nil
			},
		})
	}

	return checks
}
