package migration

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shoply/shoply-api/internal/domain/image"
	"github.com/shoply/shoply-api/internal/pkg/storage"
)

const defaultSampleSize = 5

// smokeAsset is a 1x1 transparent GIF, small enough to round-trip cheaply.
var smokeAsset = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Store is the slice of the image repository the job reads and purges.
type Store interface {
	Count(ctx context.Context) (int, error)
	CountProductsWithImages(ctx context.Context) (int, error)
	Sample(ctx context.Context, limit int) ([]*image.Sample, error)
	ListStorageKeys(ctx context.Context) ([]string, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// ObjectStorage is the slice of the CDN client the job needs.
type ObjectStorage interface {
	IsConfigured() bool
	Probe(ctx context.Context) storage.ProbeResult
	Put(ctx context.Context, key string, data []byte, contentType string) (*storage.PutResult, error)
	Delete(ctx context.Context, key string) error
}

// LegacyStorage deletes objects from the historical bucket. Optional.
type LegacyStorage interface {
	Delete(ctx context.Context, key string) error
}

// Options control the destructive parts of the run.
type Options struct {
	// Confirm must be set for the purge to execute; without it the job
	// refuses rather than silently deleting everything.
	Confirm bool
	// DryRun stops after the sample phase, before any mutation.
	DryRun bool
	// PurgeLegacyObjects also deletes legacy-shaped keys from the
	// historical bucket after the metadata purge.
	PurgeLegacyObjects bool
	// LegacyHosts are the historical storage hosts recognized in keys.
	LegacyHosts []string
	SampleSize  int
}

// Summary is the operator-facing result of a run.
type Summary struct {
	TotalBefore        int
	ProductsWithImages int
	Purged             int64
	Remaining          int
	LegacyDeleted      int
	SmokeKey           string
	SmokeURL           string
	Empty              bool
	DryRun             bool
}

// ErrNotConfirmed is returned when a purge would run without confirmation.
var ErrNotConfirmed = fmt.Errorf("refusing to purge without explicit confirmation")

// Job is the one-shot migration/reconciliation workflow: it inventories the
// image metadata store, purges it, and smoke-tests the CDN storage zone
// before the system accepts new uploads.
//
// The run is strictly sequential. The first failing phase aborts the rest
// and surfaces a single terminal error; nothing is retried, and a purge
// that already committed is never undone by a later failure.
type Job struct {
	store   Store
	storage ObjectStorage
	legacy  LegacyStorage // nil = skip legacy object cleanup
	opts    Options
}

// NewJob creates a migration job.
func NewJob(store Store, objStorage ObjectStorage, legacy LegacyStorage, opts Options) *Job {
	if opts.SampleSize <= 0 {
		opts.SampleSize = defaultSampleSize
	}
	return &Job{store: store, storage: objStorage, legacy: legacy, opts: opts}
}

// Run executes the workflow.
func (j *Job) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{DryRun: j.opts.DryRun}

	// Step 1: configuration
	log.Info().Int("step", 1).Msg("Checking storage configuration")
	if !j.storage.IsConfigured() {
		return nil, fmt.Errorf("storage is not configured: storage base URL, public base URL and access key are all required")
	}

	// Step 2: connectivity
	log.Info().Int("step", 2).Msg("Testing storage connection")
	probe := j.storage.Probe(ctx)
	if !probe.Success {
		return nil, fmt.Errorf("storage connection test failed (status=%d): %w", probe.Status, probe.Err)
	}

	// Step 3: inventory
	log.Info().Int("step", 3).Msg("Counting image records")
	total, err := j.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count images: %w", err)
	}
	summary.TotalBefore = total

	if total == 0 {
		// Nothing to migrate; the run is an idempotent no-op
		log.Info().Msg("No image records found, nothing to do")
		summary.Empty = true
		return summary, nil
	}

	products, err := j.store.CountProductsWithImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count products with images: %w", err)
	}
	summary.ProductsWithImages = products
	log.Info().
		Int("images", total).
		Int("products", products).
		Msg("Inventory complete")

	// Step 4: sample for operator visibility (read-only)
	log.Info().Int("step", 4).Msg("Sampling records")
	samples, err := j.store.Sample(ctx, j.opts.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to sample images: %w", err)
	}
	for _, s := range samples {
		log.Info().
			Str("image_id", s.ID.String()).
			Str("product", s.ProductTitle).
			Str("key", s.StorageKey).
			Str("url", s.URL).
			Msg("Sample record")
	}

	if j.opts.DryRun {
		log.Info().Msg("Dry run: stopping before purge")
		return summary, nil
	}
	if !j.opts.Confirm {
		return nil, ErrNotConfirmed
	}

	// Keys must be collected before the purge removes them
	var legacyKeys []string
	if j.opts.PurgeLegacyObjects && j.legacy != nil {
		keys, err := j.store.ListStorageKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list storage keys: %w", err)
		}
		for _, key := range keys {
			if path, ok := image.LegacyObjectPath(key, j.opts.LegacyHosts); ok {
				legacyKeys = append(legacyKeys, path)
			}
		}
	}

	// Step 5: purge (irreversible)
	log.Info().Int("step", 5).Msg("Purging image records")
	purged, err := j.store.DeleteAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("purge failed: %w", err)
	}
	summary.Purged = purged

	// Step 6: verify purge (best-effort check, a nonzero remainder is a
	// warning, not a failure)
	log.Info().Int("step", 6).Msg("Verifying purge")
	remaining, err := j.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to re-count images: %w", err)
	}
	summary.Remaining = remaining
	if remaining > 0 {
		log.Warn().Int("remaining", remaining).Msg("Records remain after purge")
	}

	// Step 7: legacy object cleanup (optional, best effort)
	if len(legacyKeys) > 0 {
		log.Info().Int("step", 7).Int("keys", len(legacyKeys)).Msg("Deleting legacy objects")
		for _, key := range legacyKeys {
			if err := j.legacy.Delete(ctx, key); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to delete legacy object")
				continue
			}
			summary.LegacyDeleted++
		}
	}

	// Step 8: smoke test (write then delete, leaves no residue on success)
	log.Info().Int("step", 8).Msg("Running storage smoke test")
	smokeKey := fmt.Sprintf("migration-smoke/readiness_%d.gif", time.Now().UnixMilli())
	put, err := j.storage.Put(ctx, smokeKey, smokeAsset, "image/gif")
	if err != nil {
		return nil, fmt.Errorf("smoke test upload failed: %w", err)
	}
	summary.SmokeKey = smokeKey
	summary.SmokeURL = put.URL

	if u, err := url.Parse(put.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("smoke test returned malformed URL %q", put.URL)
	}

	if err := j.storage.Delete(ctx, smokeKey); err != nil {
		return nil, fmt.Errorf("smoke test delete failed: %w", err)
	}

	// Step 9: done
	log.Info().
		Int("images_before", summary.TotalBefore).
		Int("products_with_images", summary.ProductsWithImages).
		Int64("purged", summary.Purged).
		Int("remaining", summary.Remaining).
		Str("smoke_url", summary.SmokeURL).
		Msg("Migration complete; re-upload assets through the normal ingestion path")

	return summary, nil
}
