package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/shoply/shoply-api/internal/config"
	"github.com/shoply/shoply-api/internal/domain/image"
	"github.com/shoply/shoply-api/internal/migration"
	"github.com/shoply/shoply-api/internal/pkg/database"
	"github.com/shoply/shoply-api/internal/pkg/logger"
	"github.com/shoply/shoply-api/internal/pkg/storage"
)

func main() {
	var (
		yes         = flag.Bool("yes", false, "confirm the irreversible purge of all image records")
		dryRun      = flag.Bool("dry-run", false, "inventory and sample only, mutate nothing")
		purgeLegacy = flag.Bool("purge-legacy-objects", false, "also delete legacy-shaped keys from the historical bucket")
	)
	flag.Parse()

	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().Msg("Starting media migration")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	cdn := storage.NewClient(storage.Config{
		StorageBaseURL: cfg.CDNStorageBaseURL,
		PublicBaseURL:  cfg.CDNPublicBaseURL,
		AccessKey:      cfg.CDNAccessKey,
		ProbeTimeout:   cfg.CDNProbeTimeout,
	})

	var legacy migration.LegacyStorage
	if *purgeLegacy {
		if !cfg.HasLegacyS3() {
			log.Fatal().Msg("-purge-legacy-objects requires the legacy bucket settings")
		}
		legacyClient, err := storage.NewLegacyS3(storage.LegacyS3Config{
			AccountID:       cfg.LegacyS3AccountID,
			AccessKeyID:     cfg.LegacyS3AccessKeyID,
			AccessKeySecret: cfg.LegacyS3AccessKeySecret,
			BucketName:      cfg.LegacyS3BucketName,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create legacy bucket client")
		}
		legacy = legacyClient
	}

	job := migration.NewJob(image.NewRepository(db), cdn, legacy, migration.Options{
		Confirm:            *yes,
		DryRun:             *dryRun,
		PurgeLegacyObjects: *purgeLegacy,
		LegacyHosts:        cfg.LegacyStorageHosts,
	})

	summary, err := job.Run(context.Background())
	if err != nil {
		if errors.Is(err, migration.ErrNotConfirmed) {
			log.Error().Msg("Purge requires -yes (use -dry-run to preview)")
		} else {
			log.Error().Err(err).Msg("Migration failed")
		}
		os.Exit(1)
	}

	switch {
	case summary.Empty:
		log.Info().Msg("Store was already empty")
	case summary.DryRun:
		log.Info().
			Int("images", summary.TotalBefore).
			Int("products", summary.ProductsWithImages).
			Msg("Dry run complete, nothing changed")
	default:
		log.Info().
			Int64("purged", summary.Purged).
			Int("remaining", summary.Remaining).
			Msg("Migration finished")
	}
}
