package migration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/shoply/shoply-api/internal/domain/image"
	"github.com/shoply/shoply-api/internal/pkg/storage"
)

// storeStub is a mock for Store
type storeStub struct {
	count          int
	products       int
	keys           []string
	countCalls     int
	sampleCalls    int
	deleteAllCalls int
}

func (s *storeStub) Count(_ context.Context) (int, error) {
	s.countCalls++
	return s.count, nil
}

func (s *storeStub) CountProductsWithImages(_ context.Context) (int, error) {
	return s.products, nil
}

func (s *storeStub) Sample(_ context.Context, limit int) ([]*image.Sample, error) {
	s.sampleCalls++
	n := limit
	if s.count < n {
		n = s.count
	}
	samples := make([]*image.Sample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, &image.Sample{
			ID:           uuid.New(),
			ProductID:    uuid.New(),
			ProductTitle: "Sample Product",
			StorageKey:   "products/p/images/original/a.jpg",
			URL:          "https://assets.shoply.dev/products/p/images/original/a.jpg",
		})
	}
	return samples, nil
}

func (s *storeStub) ListStorageKeys(_ context.Context) ([]string, error) {
	return s.keys, nil
}

func (s *storeStub) DeleteAll(_ context.Context) (int64, error) {
	s.deleteAllCalls++
	purged := int64(s.count)
	s.count = 0
	return purged, nil
}

// storageStub is a mock for ObjectStorage
type storageStub struct {
	configured  bool
	probeResult storage.ProbeResult
	putKeys     []string
	deletedKeys []string
	putErr      error
}

func (s *storageStub) IsConfigured() bool { return s.configured }

func (s *storageStub) Probe(_ context.Context) storage.ProbeResult { return s.probeResult }

func (s *storageStub) Put(_ context.Context, key string, data []byte, contentType string) (*storage.PutResult, error) {
	if s.putErr != nil {
		return nil, s.putErr
	}
	s.putKeys = append(s.putKeys, key)
	return &storage.PutResult{
		Key:         key,
		URL:         "https://assets.shoply.dev/" + key,
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

func (s *storageStub) Delete(_ context.Context, key string) error {
	s.deletedKeys = append(s.deletedKeys, key)
	return nil
}

// legacyStub is a mock for LegacyStorage
type legacyStub struct {
	deleted []string
}

func (l *legacyStub) Delete(_ context.Context, key string) error {
	l.deleted = append(l.deleted, key)
	return nil
}

func readyStorage() *storageStub {
	return &storageStub{
		configured:  true,
		probeResult: storage.ProbeResult{Success: true, Status: 200},
	}
}

func TestRunEmptyStoreIsNoOp(t *testing.T) {
	store := &storeStub{count: 0}
	st := readyStorage()

	job := NewJob(store, st, nil, Options{Confirm: true})
	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !summary.Empty {
		t.Error("expected empty summary")
	}
	if store.deleteAllCalls != 0 {
		t.Errorf("expected no purge, got %d calls", store.deleteAllCalls)
	}
	if len(st.putKeys) != 0 {
		t.Errorf("expected no storage writes, got %v", st.putKeys)
	}
}

func TestRunPurgesAndSmokeTests(t *testing.T) {
	store := &storeStub{count: 37, products: 12}
	st := readyStorage()

	job := NewJob(store, st, nil, Options{Confirm: true})
	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalBefore != 37 || summary.ProductsWithImages != 12 {
		t.Errorf("unexpected inventory: %+v", summary)
	}
	if summary.Purged != 37 {
		t.Errorf("expected 37 purged, got %d", summary.Purged)
	}
	if summary.Remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", summary.Remaining)
	}

	// Smoke test uploaded and then deleted the same reserved key
	if len(st.putKeys) != 1 || !strings.HasPrefix(st.putKeys[0], "migration-smoke/") {
		t.Fatalf("expected one smoke upload, got %v", st.putKeys)
	}
	if len(st.deletedKeys) != 1 || st.deletedKeys[0] != st.putKeys[0] {
		t.Errorf("expected smoke key deleted, got %v", st.deletedKeys)
	}
	if !strings.HasPrefix(summary.SmokeURL, "https://") {
		t.Errorf("expected well-formed smoke URL, got %q", summary.SmokeURL)
	}
}

func TestRunAbortsOnFailedProbe(t *testing.T) {
	store := &storeStub{count: 37, products: 12}
	st := &storageStub{
		configured: true,
		probeResult: storage.ProbeResult{
			Success: false,
			Status:  401,
			Err:     &storage.TransportError{Op: "probe", Status: 401},
		},
	}

	job := NewJob(store, st, nil, Options{Confirm: true})
	_, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	// No database phase may run after a failed connection test
	if store.countCalls != 0 || store.sampleCalls != 0 || store.deleteAllCalls != 0 {
		t.Errorf("expected no store access, got counts=%d samples=%d purges=%d",
			store.countCalls, store.sampleCalls, store.deleteAllCalls)
	}
}

func TestRunAbortsWhenNotConfigured(t *testing.T) {
	store := &storeStub{count: 5}
	st := &storageStub{configured: false}

	job := NewJob(store, st, nil, Options{Confirm: true})
	_, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if store.countCalls != 0 {
		t.Error("expected no store access before config check passes")
	}
}

func TestRunRefusesPurgeWithoutConfirmation(t *testing.T) {
	store := &storeStub{count: 5, products: 2}
	st := readyStorage()

	job := NewJob(store, st, nil, Options{})
	_, err := job.Run(context.Background())
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if store.deleteAllCalls != 0 {
		t.Error("expected no purge without confirmation")
	}
}

func TestRunDryRunStopsBeforePurge(t *testing.T) {
	store := &storeStub{count: 5, products: 2}
	st := readyStorage()

	job := NewJob(store, st, nil, Options{DryRun: true})
	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !summary.DryRun {
		t.Error("expected dry-run summary")
	}
	if store.deleteAllCalls != 0 {
		t.Error("expected no purge in dry run")
	}
	if store.sampleCalls != 1 {
		t.Errorf("expected sample phase to run, got %d calls", store.sampleCalls)
	}
	if len(st.putKeys) != 0 {
		t.Error("expected no smoke upload in dry run")
	}
}

func TestRunPurgesLegacyObjects(t *testing.T) {
	store := &storeStub{
		count:    3,
		products: 1,
		keys: []string{
			"s3://old-bucket/products/1/a.jpg",
			"old-storage.example.com/products/1/b.jpg",
			"products/1/images/original/c.jpg",
		},
	}
	st := readyStorage()
	legacy := &legacyStub{}

	job := NewJob(store, st, legacy, Options{
		Confirm:            true,
		PurgeLegacyObjects: true,
		LegacyHosts:        []string{"old-storage.example.com"},
	})
	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Only the two legacy-shaped keys reach the historical bucket,
	// stripped down to their bucket-internal paths
	if len(legacy.deleted) != 2 {
		t.Fatalf("expected 2 legacy deletes, got %v", legacy.deleted)
	}
	if legacy.deleted[0] != "products/1/a.jpg" || legacy.deleted[1] != "products/1/b.jpg" {
		t.Errorf("unexpected legacy paths: %v", legacy.deleted)
	}
	if summary.LegacyDeleted != 2 {
		t.Errorf("expected LegacyDeleted=2, got %d", summary.LegacyDeleted)
	}
}
