// Command intaked serves the parcel intake API.
//
// @title                       Parcel Intake API
// @version                     1.0
// @description                 Tracking number extraction and batch receiving for the parcel intake console.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Operator token: "Bearer <jwt>"
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	_ "github.com/99minutos/parcel-intake/docs"
	"github.com/99minutos/parcel-intake/internal/api"
	"github.com/99minutos/parcel-intake/internal/api/handler"
	"github.com/99minutos/parcel-intake/internal/api/metrics"
	"github.com/99minutos/parcel-intake/internal/core/ports"
	"github.com/99minutos/parcel-intake/internal/core/service"
	mongodb "github.com/99minutos/parcel-intake/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/parcel-intake/internal/infrastructure/db/redis"
	"github.com/99minutos/parcel-intake/internal/infrastructure/ocr"
	"github.com/99minutos/parcel-intake/internal/infrastructure/queue"
	"github.com/99minutos/parcel-intake/internal/infrastructure/remote"
	"github.com/99minutos/parcel-intake/internal/pkg/config"
	"github.com/99minutos/parcel-intake/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "intaked",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("intaked stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		AppName:     "intaked",
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	batchRepo := mongodb.NewBatchRepository(db)
	if err := batchRepo.EnsureIndexes(ctx); err != nil {
		return err
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	receiver, err := remote.NewReceivingClient(remote.Config{
		BaseURL: cfg.Receiving.URL,
		APIKey:  cfg.Receiving.APIKey,
		Timeout: cfg.Receiving.Timeout,
	}, logger.Component("receiving"))
	if err != nil {
		return err
	}

	var labels ports.LabelReader
	if cfg.OCREnabled() {
		labels = ocr.NewLabelReader(ocr.Config{
			Endpoint: cfg.OCR.Endpoint,
			Key:      cfg.OCR.Key,
			Language: cfg.OCR.Language,
		}, logger.Component("ocr"))
	} else {
		log.Warn().Msg("OCR_ENDPOINT not set, label photo scanning disabled")
	}

	// Workers outlive the signal so in-flight requests drain during Shutdown.
	workCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	dispatcher := queue.NewDispatcher(cfg.Dispatcher.Workers, logger.Component("dispatcher"))
	dispatcher.Start(workCtx)
	metrics.RegisterQueueDepth(dispatcher.Pending)

	svc := service.NewIntakeService(service.IntakeDeps{
		Repo:     batchRepo,
		Index:    redisdb.NewBatchIndex(rdb, cfg.Redis.IndexTTL),
		Receiver: receiver,
		Labels:   labels,
		Serial:   dispatcher,
	}, logger.Component("intake"))

	e := api.NewRouter(api.Deps{
		Service: svc,
		Checks: map[string]handler.Check{
			"mongodb": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		JWTSecret: cfg.JWTSecret,
		Logger:    logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("intaked listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}
