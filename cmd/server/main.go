package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-ingest/internal/cache"
	"github.com/otcheredev/dicom-ingest/internal/config"
	"github.com/otcheredev/dicom-ingest/internal/database"
	"github.com/otcheredev/dicom-ingest/internal/handlers"
	"github.com/otcheredev/dicom-ingest/internal/ingest"
	"github.com/otcheredev/dicom-ingest/internal/metadata"
	"github.com/otcheredev/dicom-ingest/internal/middleware"
	"github.com/otcheredev/dicom-ingest/internal/mrclassifier"
	"github.com/otcheredev/dicom-ingest/internal/repository"
	"github.com/otcheredev/dicom-ingest/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log.Info().Msg("starting DICOM ingestion service")

	if cfg.DatabaseURL != "" {
		if err := database.Connect(database.Config{
			DSN:          cfg.DatabaseURL,
			LogLevel:     cfg.LogLevel,
			MaxOpenConns: cfg.DBMaxOpenConns,
			MaxIdleConns: cfg.DBMaxIdleConns,
		}); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer database.Close()
	} else {
		log.Warn().Msg("DATABASE_URL not set; job persistence disabled")
	}

	var cacheImpl cache.Cache
	if cfg.CacheType == "redis" {
		cacheImpl, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		log.Info().Msg("redis cache initialized")
	} else {
		cacheImpl = cache.NewMemoryCache()
		log.Info().Msg("memory cache initialized")
	}

	mrCfg, err := mrclassifier.LoadConfig(cfg.MRClassifierConfigPath)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load MR classifier config, using defaults")
		mrCfg = mrclassifier.DefaultConfig()
	}

	tagCatalog, err := metadata.LoadCatalog(cfg.TagCatalogDir)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load tag catalog, using built-in minimal set")
		tagCatalog = metadata.EmptyCatalog()
	}

	jobRepo := repository.NewJobRepository()
	auditRepo := repository.NewAuditRepository()
	service := ingest.NewService(cfg, jobRepo, auditRepo, cacheImpl, mrCfg, tagCatalog)

	healthHandler := handlers.NewHealthHandler()
	jobsHandler := handlers.NewJobsHandler(service)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type", "X-Caller-ID"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Use(middleware.CallerID)
		r.Post("/", jobsHandler.Create)
		r.Get("/", jobsHandler.List)
		r.Get("/{id}", jobsHandler.Get)
		r.Get("/{id}/series", jobsHandler.Series)
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
