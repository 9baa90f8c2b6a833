package image

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines image metadata access interface
type Repository interface {
	Create(ctx context.Context, image *Image) error
	GetByID(ctx context.Context, id uuid.UUID) (*Image, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*Image, error)
	FindByContentHash(ctx context.Context, productID uuid.UUID, hash string, variant SizeVariant) (*Image, error)
	NextPosition(ctx context.Context, productID uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByProduct(ctx context.Context, productID uuid.UUID) (int64, error)

	// Migration job queries
	Count(ctx context.Context) (int, error)
	CountProductsWithImages(ctx context.Context) (int, error)
	Sample(ctx context.Context, limit int) ([]*Sample, error)
	ListStorageKeys(ctx context.Context) ([]string, error)
	DeleteAll(ctx context.Context) (int64, error)

	// Variant worker queries
	ClaimNextUnprocessed(ctx context.Context, maxAttempts int) (*Image, bool, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkProcessFailed(ctx context.Context, id uuid.UUID, message string) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates image repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, image *Image) error {
	query := `
		INSERT INTO images (
			id, product_id, storage_key, url, alt_text, position,
			width, height, size_variant, file_size_bytes, content_type, content_hash,
			process_status, process_attempts, process_error, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		image.ID, image.ProductID, image.StorageKey, image.URL, image.AltText, image.Position,
		image.Width, image.Height, image.SizeVariant, image.FileSizeBytes, image.ContentType, image.ContentHash,
		image.ProcessStatus, image.ProcessAttempts, image.ProcessError, image.CreatedAt,
	)
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Image, error) {
	query := `SELECT * FROM images WHERE id = $1`
	var image Image
	err := r.db.GetContext(ctx, &image, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &image, nil
}

func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*Image, error) {
	// Position ties are possible; created_at breaks them deterministically
	query := `SELECT * FROM images WHERE product_id = $1 ORDER BY position, created_at`
	var images []*Image
	err := r.db.SelectContext(ctx, &images, query, productID)
	return images, err
}

func (r *repository) FindByContentHash(ctx context.Context, productID uuid.UUID, hash string, variant SizeVariant) (*Image, error) {
	query := `SELECT * FROM images WHERE product_id = $1 AND content_hash = $2 AND size_variant = $3 LIMIT 1`
	var image Image
	err := r.db.GetContext(ctx, &image, query, productID, hash, variant)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &image, nil
}

func (r *repository) NextPosition(ctx context.Context, productID uuid.UUID) (int, error) {
	// First image of a product gets 0
	query := `SELECT COALESCE(MAX(position) + 1, 0) FROM images WHERE product_id = $1`
	var next int
	err := r.db.GetContext(ctx, &next, query, productID)
	return next, err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM images WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *repository) DeleteByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	query := `DELETE FROM images WHERE product_id = $1`
	result, err := r.db.ExecContext(ctx, query, productID)
	if err != nil {
		return 0, err
	}
	count, _ := result.RowsAffected()
	return count, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM images`
	var count int
	err := r.db.GetContext(ctx, &count, query)
	return count, err
}

func (r *repository) CountProductsWithImages(ctx context.Context) (int, error) {
	query := `SELECT COUNT(DISTINCT product_id) FROM images`
	var count int
	err := r.db.GetContext(ctx, &count, query)
	return count, err
}

func (r *repository) Sample(ctx context.Context, limit int) ([]*Sample, error) {
	query := `
		SELECT i.id, i.product_id, p.title AS product_title, i.storage_key, i.url
		FROM images i
		JOIN products p ON p.id = i.product_id
		ORDER BY i.created_at
		LIMIT $1
	`
	var samples []*Sample
	err := r.db.SelectContext(ctx, &samples, query, limit)
	return samples, err
}

func (r *repository) ListStorageKeys(ctx context.Context) ([]string, error) {
	query := `SELECT storage_key FROM images`
	var keys []string
	err := r.db.SelectContext(ctx, &keys, query)
	return keys, err
}

func (r *repository) DeleteAll(ctx context.Context) (int64, error) {
	// Unconditional hard delete, match-all filter
	result, err := r.db.ExecContext(ctx, `DELETE FROM images`)
	if err != nil {
		return 0, err
	}
	count, _ := result.RowsAffected()
	return count, nil
}

func (r *repository) ClaimNextUnprocessed(ctx context.Context, maxAttempts int) (*Image, bool, error) {
	// Pick candidate
	var image Image
	err := r.db.GetContext(ctx, &image, `
		SELECT * FROM images
		WHERE size_variant = 'original'
		  AND process_status IN ('pending', 'failed')
		  AND process_attempts < $1
		ORDER BY created_at ASC
		LIMIT 1
	`, maxAttempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	// Claim atomically (safe if multiple workers later)
	res, err := r.db.ExecContext(ctx, `
		UPDATE images
		SET process_status = 'processing',
		    process_attempts = process_attempts + 1,
		    process_error = ''
		WHERE id = $1
		  AND process_status IN ('pending', 'failed')
		  AND process_attempts < $2
	`, image.ID, maxAttempts)
	if err != nil {
		return nil, false, err
	}

	aff, _ := res.RowsAffected()
	if aff == 0 {
		return nil, false, nil
	}

	return &image, true, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE images
		SET process_status = 'done',
		    process_error = ''
		WHERE id = $1
	`, id)
	return err
}

func (r *repository) MarkProcessFailed(ctx context.Context, id uuid.UUID, message string) error {
	// attempts already incremented in claim
	if len(message) > 2000 {
		message = message[:2000]
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE images
		SET process_status = 'failed',
		    process_error = $2
		WHERE id = $1
	`, id, message)
	return err
}
