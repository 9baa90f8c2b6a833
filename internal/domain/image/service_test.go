package image

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/shoply/shoply-api/internal/domain/product"
	"github.com/shoply/shoply-api/internal/pkg/storage"
)

// pngBytes returns a payload that sniffs as image/png. The tail varies the
// content hash between fixtures.
func pngBytes(tail string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), []byte(tail)...)
}

// repoStub is an in-memory mock for Repository
type repoStub struct {
	records   []*Image
	createErr error
	deleted   []uuid.UUID
}

func (r *repoStub) Create(_ context.Context, img *Image) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.records = append(r.records, img)
	return nil
}

func (r *repoStub) GetByID(_ context.Context, id uuid.UUID) (*Image, error) {
	for _, img := range r.records {
		if img.ID == id {
			return img, nil
		}
	}
	return nil, nil
}

func (r *repoStub) ListByProduct(_ context.Context, productID uuid.UUID) ([]*Image, error) {
	var out []*Image
	for _, img := range r.records {
		if img.ProductID == productID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (r *repoStub) FindByContentHash(_ context.Context, productID uuid.UUID, hash string, variant SizeVariant) (*Image, error) {
	for _, img := range r.records {
		if img.ProductID == productID && img.ContentHash == hash && img.SizeVariant == variant {
			return img, nil
		}
	}
	return nil, nil
}

func (r *repoStub) NextPosition(_ context.Context, productID uuid.UUID) (int, error) {
	next := 0
	for _, img := range r.records {
		if img.ProductID == productID && img.Position >= next {
			next = img.Position + 1
		}
	}
	return next, nil
}

func (r *repoStub) Delete(_ context.Context, id uuid.UUID) error {
	r.deleted = append(r.deleted, id)
	for i, img := range r.records {
		if img.ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			break
		}
	}
	return nil
}

func (r *repoStub) DeleteByProduct(_ context.Context, productID uuid.UUID) (int64, error) {
	var kept []*Image
	var removed int64
	for _, img := range r.records {
		if img.ProductID == productID {
			removed++
			continue
		}
		kept = append(kept, img)
	}
	r.records = kept
	return removed, nil
}

func (r *repoStub) Count(_ context.Context) (int, error) { return len(r.records), nil }

func (r *repoStub) CountProductsWithImages(_ context.Context) (int, error) {
	seen := make(map[uuid.UUID]struct{})
	for _, img := range r.records {
		seen[img.ProductID] = struct{}{}
	}
	return len(seen), nil
}

func (r *repoStub) Sample(_ context.Context, limit int) ([]*Sample, error) { return nil, nil }

func (r *repoStub) ListStorageKeys(_ context.Context) ([]string, error) {
	keys := make([]string, 0, len(r.records))
	for _, img := range r.records {
		keys = append(keys, img.StorageKey)
	}
	return keys, nil
}

func (r *repoStub) DeleteAll(_ context.Context) (int64, error) {
	n := int64(len(r.records))
	r.records = nil
	return n, nil
}

func (r *repoStub) ClaimNextUnprocessed(_ context.Context, _ int) (*Image, bool, error) {
	return nil, false, nil
}

func (r *repoStub) MarkProcessed(_ context.Context, _ uuid.UUID) error { return nil }

func (r *repoStub) MarkProcessFailed(_ context.Context, _ uuid.UUID, _ string) error { return nil }

// productStub is a mock for ProductStore
type productStub struct {
	product *product.Product
}

func (p *productStub) GetByID(_ context.Context, id uuid.UUID) (*product.Product, error) {
	if p.product != nil && p.product.ID == id {
		return p.product, nil
	}
	return nil, nil
}

// objectStorageStub is a mock for ObjectStorage
type objectStorageStub struct {
	putKeys     []string
	deletedKeys []string
	putErr      error
}

func (s *objectStorageStub) IsConfigured() bool { return true }

func (s *objectStorageStub) Put(_ context.Context, key string, data []byte, contentType string) (*storage.PutResult, error) {
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

func (s *objectStorageStub) Delete(_ context.Context, key string) error {
	s.deletedKeys = append(s.deletedKeys, key)
	return nil
}

func (s *objectStorageStub) DeleteMany(ctx context.Context, keys []string) storage.BatchResult {
	var result storage.BatchResult
	for _, key := range keys {
		_ = s.Delete(ctx, key)
		result.Successful = append(result.Successful, key)
	}
	return result
}

func (s *objectStorageStub) PublicURL(key string) string {
	return "https://assets.shoply.dev/" + key
}

func newTestService(repo *repoStub, prod *product.Product, st *objectStorageStub) *Service {
	return NewService(repo, &productStub{product: prod}, st, testResolver(), nil)
}

func testProduct() *product.Product {
	return &product.Product{ID: uuid.New(), Title: "Walnut Desk"}
}

func TestIngestPositionAutoAssignment(t *testing.T) {
	repo := &repoStub{}
	prod := testProduct()
	st := &objectStorageStub{}
	svc := newTestService(repo, prod, st)

	var images []*Image
	for _, tail := range []string{"one", "two", "three"} {
		img, created, err := svc.Ingest(context.Background(), prod.ID, "photo.png", bytes.NewReader(pngBytes(tail)), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !created {
			t.Fatal("expected a new record")
		}
		images = append(images, img)
	}

	for i, img := range images {
		if img.Position != i {
			t.Errorf("expected position %d, got %d", i, img.Position)
		}
	}
	if !images[0].IsPrimary() {
		t.Error("expected first image to be primary")
	}
	if images[1].IsPrimary() || images[2].IsPrimary() {
		t.Error("expected later images not to be primary")
	}
}

func TestIngestDedupReturnsExistingRecord(t *testing.T) {
	repo := &repoStub{}
	prod := testProduct()
	st := &objectStorageStub{}
	svc := newTestService(repo, prod, st)

	first, created, err := svc.Ingest(context.Background(), prod.ID, "a.png", bytes.NewReader(pngBytes("same")), "")
	if err != nil || !created {
		t.Fatalf("expected created record, got created=%v err=%v", created, err)
	}

	second, created, err := svc.Ingest(context.Background(), prod.ID, "b.png", bytes.NewReader(pngBytes("same")), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected dedup to reuse the existing record")
	}
	if second.ID != first.ID {
		t.Errorf("expected record %s, got %s", first.ID, second.ID)
	}
	if len(st.putKeys) != 1 {
		t.Errorf("expected a single stored object, got %v", st.putKeys)
	}
	if len(repo.records) != 1 {
		t.Errorf("expected a single record, got %d", len(repo.records))
	}
}

func TestIngestDefaultAltText(t *testing.T) {
	repo := &repoStub{}
	prod := testProduct()
	svc := newTestService(repo, prod, &objectStorageStub{})

	img, _, err := svc.Ingest(context.Background(), prod.ID, "a.png", bytes.NewReader(pngBytes("x")), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.AltText != "Walnut Desk - Product Image" {
		t.Errorf("unexpected default alt text %q", img.AltText)
	}

	img2, _, err := svc.Ingest(context.Background(), prod.ID, "b.png", bytes.NewReader(pngBytes("y")), "Side view")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img2.AltText != "Side view" {
		t.Errorf("expected explicit alt text kept, got %q", img2.AltText)
	}
}

func TestIngestUnknownProduct(t *testing.T) {
	svc := newTestService(&repoStub{}, testProduct(), &objectStorageStub{})

	_, _, err := svc.Ingest(context.Background(), uuid.New(), "a.png", bytes.NewReader(pngBytes("x")), "")
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestIngestRejectsNonImagePayload(t *testing.T) {
	prod := testProduct()
	svc := newTestService(&repoStub{}, prod, &objectStorageStub{})

	_, _, err := svc.Ingest(context.Background(), prod.ID, "a.txt", strings.NewReader("plain text"), "")
	if !errors.Is(err, storage.ErrInvalidMimeType) {
		t.Fatalf("expected ErrInvalidMimeType, got %v", err)
	}
}

func TestIngestCleansUpObjectOnCreateFailure(t *testing.T) {
	repo := &repoStub{createErr: errors.New("insert failed")}
	prod := testProduct()
	st := &objectStorageStub{}
	svc := newTestService(repo, prod, st)

	_, _, err := svc.Ingest(context.Background(), prod.ID, "a.png", bytes.NewReader(pngBytes("x")), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(st.putKeys) != 1 || len(st.deletedKeys) != 1 || st.putKeys[0] != st.deletedKeys[0] {
		t.Errorf("expected stored object cleaned up, put=%v deleted=%v", st.putKeys, st.deletedKeys)
	}
}

func TestRegisterRejectsInvalidVariant(t *testing.T) {
	prod := testProduct()
	svc := newTestService(&repoStub{}, prod, &objectStorageStub{})

	_, err := svc.Register(context.Background(), prod.ID, &RegisterRequest{
		StorageKey:  "products/1/a.jpg",
		URL:         "https://assets.shoply.dev/products/1/a.jpg",
		SizeVariant: "gigantic",
	})
	if !errors.Is(err, ErrInvalidSizeVariant) {
		t.Fatalf("expected ErrInvalidSizeVariant, got %v", err)
	}
}

func TestDeleteRemovesObjectAndRecord(t *testing.T) {
	repo := &repoStub{}
	prod := testProduct()
	st := &objectStorageStub{}
	svc := newTestService(repo, prod, st)

	img, _, err := svc.Ingest(context.Background(), prod.ID, "a.png", bytes.NewReader(pngBytes("x")), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(context.Background(), img.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.deletedKeys) != 1 || st.deletedKeys[0] != img.StorageKey {
		t.Errorf("expected storage delete of %q, got %v", img.StorageKey, st.deletedKeys)
	}
	if len(repo.records) != 0 {
		t.Errorf("expected record removed, got %d", len(repo.records))
	}

	if err := svc.Delete(context.Background(), uuid.New()); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("expected ErrImageNotFound, got %v", err)
	}
}

func TestDeleteByProductRemovesAllObjects(t *testing.T) {
	repo := &repoStub{}
	prod := testProduct()
	st := &objectStorageStub{}
	svc := newTestService(repo, prod, st)

	for _, tail := range []string{"one", "two"} {
		if _, _, err := svc.Ingest(context.Background(), prod.ID, "p.png", bytes.NewReader(pngBytes(tail)), ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := svc.DeleteByProduct(context.Background(), prod.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.deletedKeys) != 2 {
		t.Errorf("expected 2 storage deletes, got %v", st.deletedKeys)
	}
	if len(repo.records) != 0 {
		t.Errorf("expected all records removed, got %d", len(repo.records))
	}
}
