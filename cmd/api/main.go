package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/baechuer/rapidphoto/internal/cache"
	"github.com/baechuer/rapidphoto/internal/cleanup"
	"github.com/baechuer/rapidphoto/internal/config"
	"github.com/baechuer/rapidphoto/internal/messaging"
	"github.com/baechuer/rapidphoto/internal/pkg/logger"
	"github.com/baechuer/rapidphoto/internal/repository"
	"github.com/baechuer/rapidphoto/internal/security"
	"github.com/baechuer/rapidphoto/internal/service"
	"github.com/baechuer/rapidphoto/internal/storage"
	"github.com/baechuer/rapidphoto/internal/transport/rest"
)

func main() {
	_ = godotenv.Load()

	log := logger.Init(zerolog.InfoLevel)
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create database pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	s3Client, err := storage.NewS3Client(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create S3 client")
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure bucket")
	}

	publisher, err := messaging.NewPublisher(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create publisher")
	}
	defer publisher.Close()

	urlCache := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer urlCache.Client.Close()

	jobRepo := repository.NewUploadJobRepository(pool)
	photoRepo := repository.NewPhotoRepository(pool)

	uploadSvc := service.NewUploadService(jobRepo, photoRepo, s3Client, publisher, urlCache, cfg, log)
	processingSvc := service.NewProcessingService(photoRepo, log)

	sweeper := cleanup.NewSweeper(jobRepo, cfg.SweepInterval, cfg.SweepBatchSize, log)
	go sweeper.Run(ctx)

	router := rest.NewRouter(rest.RouterDeps{
		Handler:        rest.NewHandler(uploadSvc, processingSvc),
		Verifier:       security.NewHS256Verifier(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
		PipelineSecret: cfg.PipelineSecret,
		Limiter:        urlCache,
		RateLimit:      cfg.RateLimit,
		RateWindow:     cfg.RateLimitWindow,
		Ready: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("rapidphoto api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
