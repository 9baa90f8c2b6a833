package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/shoply/shoply-api/internal/config"
	"github.com/shoply/shoply-api/internal/domain/image"
	"github.com/shoply/shoply-api/internal/domain/product"
	"github.com/shoply/shoply-api/internal/middleware"
	"github.com/shoply/shoply-api/internal/pkg/database"
	"github.com/shoply/shoply-api/internal/pkg/logger"
	"github.com/shoply/shoply-api/internal/pkg/response"
	"github.com/shoply/shoply-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Shoply API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	// CDN storage client: stateless, shared across handlers
	cdn := storage.NewClient(storage.Config{
		StorageBaseURL: cfg.CDNStorageBaseURL,
		PublicBaseURL:  cfg.CDNPublicBaseURL,
		AccessKey:      cfg.CDNAccessKey,
		ProbeTimeout:   cfg.CDNProbeTimeout,
	})
	if !cdn.IsConfigured() {
		log.Warn().Msg("CDN storage is not configured, uploads will fail")
	}

	resolver := image.NewResolver(cfg.CDNPublicBaseURL, cfg.PassthroughHosts, cfg.LegacyStorageHosts)

	// ---------- Repositories ----------
	productRepo := product.NewRepository(db)
	imageRepo := image.NewRepository(db)

	// ---------- Services ----------
	imageService := image.NewService(imageRepo, productRepo, cdn, resolver, redis)
	productService := product.NewService(productRepo, imageService)

	// ---------- Handlers ----------
	productHandler := product.NewHandler(productService)
	imageHandler := image.NewHandler(imageService)

	// ---------- Router ----------
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	// Storage connectivity check for operators and readiness probes
	r.Get("/health/storage", func(w http.ResponseWriter, req *http.Request) {
		probe := cdn.Probe(req.Context())
		body := map[string]interface{}{
			"configured": cdn.IsConfigured(),
			"success":    probe.Success,
			"status":     probe.Status,
		}
		if probe.Err != nil {
			body["error"] = probe.Err.Error()
		}
		if !probe.Success {
			response.JSON(w, http.StatusServiceUnavailable, body)
			return
		}
		response.OK(w, body)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/products", productHandler.Routes())
		r.Mount("/products/{productID}/images", imageHandler.ProductRoutes())
		r.Mount("/images", imageHandler.Routes())
	})

	// ---------- Server ----------
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
