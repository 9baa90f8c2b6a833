package image

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/shoply/shoply-api/internal/domain/product"
	pkgimaging "github.com/shoply/shoply-api/internal/pkg/imaging"
	"github.com/shoply/shoply-api/internal/pkg/storage"
)

const (
	altTextMaxLen = 160
	// Redis channel the variant worker subscribes to for wake-ups
	WakeChannel = "images:created"
)

// ObjectStorage is the slice of the CDN client the service needs.
type ObjectStorage interface {
	IsConfigured() bool
	Put(ctx context.Context, key string, data []byte, contentType string) (*storage.PutResult, error)
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string) storage.BatchResult
	PublicURL(key string) string
}

// ProductStore resolves owning products for alt text and existence checks.
type ProductStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error)
}

// Service handles image ingestion and metadata business logic.
//
// Defaults (alt text, position) are computed here, before the record is
// constructed; the repository never fills fields behind the caller's back.
type Service struct {
	repo     Repository
	products ProductStore
	storage  ObjectStorage
	resolver *Resolver
	wake     *redis.Client // nil = no worker wake-ups

	// Position auto-assignment is a read-then-write; concurrent uploads for
	// the same product must not interleave between NextPosition and Create.
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewService creates image service
func NewService(repo Repository, products ProductStore, objStorage ObjectStorage, resolver *Resolver, wake *redis.Client) *Service {
	return &Service{
		repo:     repo,
		products: products,
		storage:  objStorage,
		resolver: resolver,
		wake:     wake,
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// Ingest validates an uploaded file, stores the original in the CDN, and
// creates its metadata record with computed defaults. Returns the record and
// whether it was newly created: an upload whose content hash matches an
// existing original for the same product short-circuits to that record.
func (s *Service) Ingest(ctx context.Context, productID uuid.UUID, filename string, reader io.Reader, altText string) (*Image, bool, error) {
	prod, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load product: %w", err)
	}
	if prod == nil {
		return nil, false, ErrProductNotFound
	}

	data, mimeType, err := storage.ValidateImage(reader)
	if err != nil {
		return nil, false, fmt.Errorf("validation failed: %w", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	// Dedup across uploads: same bytes for the same product reuse the record
	existing, err := s.repo.FindByContentHash(ctx, productID, hash, VariantOriginal)
	if err != nil {
		return nil, false, fmt.Errorf("dedup lookup failed: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	// Dimension probe is best effort; records without dimensions are valid
	width, height, err := pkgimaging.Dimensions(data)
	if err != nil {
		width, height = 0, 0
	}

	key := storage.GenerateKey(productID.String(), string(VariantOriginal), storage.ExtensionForMime(mimeType), filename)
	put, err := s.storage.Put(ctx, key, data, mimeType)
	if err != nil {
		return nil, false, fmt.Errorf("failed to store file: %w", err)
	}

	if altText == "" {
		altText = defaultAltText(prod.Title)
	}

	unlock := s.lockProduct(productID)
	defer unlock()

	position, err := s.repo.NextPosition(ctx, productID)
	if err != nil {
		_ = s.storage.Delete(ctx, key)
		return nil, false, fmt.Errorf("failed to compute position: %w", err)
	}

	img := &Image{
		ID:            uuid.New(),
		ProductID:     productID,
		StorageKey:    key,
		URL:           put.URL,
		AltText:       altText,
		Position:      position,
		Width:         width,
		Height:        height,
		SizeVariant:   VariantOriginal,
		FileSizeBytes: put.Size,
		ContentType:   mimeType,
		ContentHash:   hash,
		ProcessStatus: ProcessPending,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.Create(ctx, img); err != nil {
		// Cleanup the stored object on DB error
		_ = s.storage.Delete(ctx, key)
		return nil, false, fmt.Errorf("failed to create image record: %w", err)
	}

	s.publishWake(ctx)

	return img, true, nil
}

// Register creates a metadata-only record for an image already hosted
// elsewhere (legacy storage, placeholder hosts). No bytes are moved.
func (s *Service) Register(ctx context.Context, productID uuid.UUID, req *RegisterRequest) (*Image, error) {
	prod, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if prod == nil {
		return nil, ErrProductNotFound
	}

	variant := SizeVariant(req.SizeVariant)
	if req.SizeVariant == "" {
		variant = VariantOriginal
	}
	if !variant.Valid() {
		return nil, ErrInvalidSizeVariant
	}

	altText := req.AltText
	if altText == "" {
		altText = defaultAltText(prod.Title)
	}

	unlock := s.lockProduct(productID)
	defer unlock()

	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		position, err = s.repo.NextPosition(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute position: %w", err)
		}
	}

	img := &Image{
		ID:            uuid.New(),
		ProductID:     productID,
		StorageKey:    req.StorageKey,
		URL:           req.URL,
		AltText:       altText,
		Position:      position,
		Width:         req.Width,
		Height:        req.Height,
		SizeVariant:   variant,
		FileSizeBytes: req.FileSizeBytes,
		ContentType:   req.ContentType,
		ContentHash:   req.ContentHash,
		ProcessStatus: ProcessDone, // registered records are never reprocessed
		CreatedAt:     time.Now(),
	}

	if err := s.repo.Create(ctx, img); err != nil {
		return nil, fmt.Errorf("failed to create image record: %w", err)
	}

	return img, nil
}

// GetByID returns an image record by ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Image, error) {
	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrImageNotFound
	}
	return img, nil
}

// ListByProduct returns a product's images with resolved canonical URLs,
// ordered by position (primary first).
func (s *Service) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*Response, error) {
	images, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	responses := make([]*Response, 0, len(images))
	for _, img := range images {
		responses = append(responses, NewResponse(img, s.resolver.Resolve(img)))
	}
	return responses, nil
}

// CanonicalURL resolves the single authoritative display URL for a record.
func (s *Service) CanonicalURL(img *Image) string {
	return s.resolver.Resolve(img)
}

// Delete removes an image record and its stored object. The object delete
// is best effort; the row goes away regardless.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	img, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if img.StorageKey != "" {
		if err := s.storage.Delete(ctx, img.StorageKey); err != nil {
			log.Warn().Err(err).Str("key", img.StorageKey).Msg("Failed to delete stored object")
		}
	}

	return s.repo.Delete(ctx, id)
}

// DeleteByProduct removes all of a product's image records and their stored
// objects. Object deletion is sequential best effort; failures are logged
// and do not block the metadata delete.
func (s *Service) DeleteByProduct(ctx context.Context, productID uuid.UUID) error {
	images, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(images))
	for _, img := range images {
		if img.StorageKey != "" {
			keys = append(keys, img.StorageKey)
		}
	}

	if len(keys) > 0 {
		result := s.storage.DeleteMany(ctx, keys)
		for _, f := range result.Failed {
			log.Warn().Err(f.Err).Str("key", f.Key).Msg("Failed to delete stored object")
		}
	}

	_, err = s.repo.DeleteByProduct(ctx, productID)
	return err
}

func (s *Service) lockProduct(productID uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.locks[productID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[productID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) publishWake(ctx context.Context) {
	if s.wake == nil {
		return
	}
	if err := s.wake.Publish(ctx, WakeChannel, "1").Err(); err != nil {
		log.Debug().Err(err).Msg("Failed to publish worker wake-up")
	}
}

func defaultAltText(title string) string {
	alt := title + " - Product Image"
	if len(alt) > altTextMaxLen {
		alt = alt[:altTextMaxLen]
	}
	return alt
}
