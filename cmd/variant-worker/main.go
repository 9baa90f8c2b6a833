package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/shoply/shoply-api/internal/config"
	"github.com/shoply/shoply-api/internal/domain/image"
	"github.com/shoply/shoply-api/internal/pkg/database"
	pkgimaging "github.com/shoply/shoply-api/internal/pkg/imaging"
	"github.com/shoply/shoply-api/internal/pkg/logger"
	"github.com/shoply/shoply-api/internal/pkg/storage"
)

const (
	pollInterval = 5 * time.Second
	maxAttempts  = 3
	idleLogEvery = 1 * time.Minute
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().Msg("Starting variant-worker")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	cdn := storage.NewClient(storage.Config{
		StorageBaseURL: cfg.CDNStorageBaseURL,
		PublicBaseURL:  cfg.CDNPublicBaseURL,
		AccessKey:      cfg.CDNAccessKey,
		ProbeTimeout:   cfg.CDNProbeTimeout,
	})
	if !cdn.IsConfigured() {
		log.Fatal().Msg("CDN storage is not configured")
	}

	repo := image.NewRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional: Redis pub/sub wake-up (polling still runs)
	wake := make(chan struct{}, 1)
	if rdb != nil {
		go subscribeWakeups(ctx, rdb, wake)
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	lastIdleLog := time.Time{}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("variant-worker stopped")
			return
		case <-wake:
			// immediate poll
		case <-ticker.C:
		}

		// One original at a time; the claim is atomic so more workers can
		// be added later without double processing
		original, ok, err := repo.ClaimNextUnprocessed(ctx, maxAttempts)
		if err != nil {
			log.Error().Err(err).Msg("DB error while claiming original")
			continue
		}
		if !ok {
			now := time.Now()
			if lastIdleLog.IsZero() || now.Sub(lastIdleLog) >= idleLogEvery {
				log.Info().Msg("Idle: no unprocessed originals found")
				lastIdleLog = now
			}
			continue
		}

		start := time.Now()
		log.Info().
			Str("image_id", original.ID.String()).
			Str("key", original.StorageKey).
			Msg("Deriving variants")

		derived, err := deriveOne(ctx, cdn, repo, original)
		if err != nil {
			log.Error().
				Err(err).
				Str("image_id", original.ID.String()).
				Msg("Variant derivation failed")

			if err2 := repo.MarkProcessFailed(ctx, original.ID, err.Error()); err2 != nil {
				log.Error().Err(err2).Str("image_id", original.ID.String()).Msg("Failed to update process status")
			}
			continue
		}

		if err := repo.MarkProcessed(ctx, original.ID); err != nil {
			log.Error().Err(err).Str("image_id", original.ID.String()).Msg("Failed to update process status")
			continue
		}

		log.Info().
			Str("image_id", original.ID.String()).
			Dur("took", time.Since(start)).
			Int("variants", derived).
			Msg("Variants derived")
	}
}

// deriveOne downloads one original, derives every size variant, stores them,
// and creates one metadata record per stored variant. Returns the number of
// variants created.
func deriveOne(ctx context.Context, cdn *storage.Client, repo image.Repository, original *image.Image) (int, error) {
	data, err := cdn.Get(ctx, original.StorageKey)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}

	variants, err := pkgimaging.DeriveVariants(data)
	if err != nil {
		return 0, fmt.Errorf("derive: %w", err)
	}

	created := 0
	for _, v := range variants {
		sum := sha256.Sum256(v.Data)
		hash := hex.EncodeToString(sum[:])

		// Re-runs after a partial failure skip variants that already exist
		existing, err := repo.FindByContentHash(ctx, original.ProductID, hash, image.SizeVariant(v.Name))
		if err != nil {
			return created, fmt.Errorf("dedup lookup %s: %w", v.Name, err)
		}
		if existing != nil {
			continue
		}

		key := storage.GenerateKey(original.ProductID.String(), v.Name, "jpg", baseName(original.StorageKey))
		put, err := cdn.Put(ctx, key, v.Data, v.ContentType)
		if err != nil {
			return created, fmt.Errorf("upload %s: %w", v.Name, err)
		}

		record := &image.Image{
			ID:            uuid.New(),
			ProductID:     original.ProductID,
			StorageKey:    key,
			URL:           put.URL,
			AltText:       original.AltText,
			Position:      original.Position,
			Width:         v.Width,
			Height:        v.Height,
			SizeVariant:   image.SizeVariant(v.Name),
			FileSizeBytes: put.Size,
			ContentType:   v.ContentType,
			ContentHash:   hash,
			ProcessStatus: image.ProcessDone,
			CreatedAt:     time.Now(),
		}

		if err := repo.Create(ctx, record); err != nil {
			// Don't leave an orphaned object behind the failed row
			_ = cdn.Delete(ctx, key)
			return created, fmt.Errorf("create %s record: %w", v.Name, err)
		}
		created++
	}

	return created, nil
}

func baseName(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}

func subscribeWakeups(ctx context.Context, rdb *redis.Client, wake chan<- struct{}) {
	sub := rdb.Subscribe(ctx, image.WakeChannel)
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Channel():
			// non-blocking wake-up
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}
