package image

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SizeVariant identifies one derived resolution of a logical image.
// The set is closed: any other value is rejected at write time.
type SizeVariant string

const (
	VariantOriginal SizeVariant = "original"
	VariantThumb    SizeVariant = "thumb"
	VariantMedium   SizeVariant = "medium"
	VariantLarge    SizeVariant = "large"
)

// Valid reports whether v is a member of the closed variant set.
func (v SizeVariant) Valid() bool {
	switch v {
	case VariantOriginal, VariantThumb, VariantMedium, VariantLarge:
		return true
	}
	return false
}

// ProcessStatus tracks variant derivation for original records.
type ProcessStatus string

const (
	ProcessPending    ProcessStatus = "pending"
	ProcessProcessing ProcessStatus = "processing"
	ProcessDone       ProcessStatus = "done"
	ProcessFailed     ProcessStatus = "failed"
)

// Image represents one stored image or one size variant of it
// (metadata only, bytes live in the CDN storage zone).
type Image struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ProductID  uuid.UUID `db:"product_id" json:"product_id"`
	StorageKey string    `db:"storage_key" json:"storage_key"`
	URL        string    `db:"url" json:"url"`
	AltText    string    `db:"alt_text" json:"alt_text"`

	// Position orders images within a product; 0 is the primary image.
	// Uniqueness is not enforced at the storage layer, ties are tolerated.
	Position int `db:"position" json:"position"`

	// Zero means unknown; dimensions are only meaningful when both are set
	Width  int `db:"width" json:"width,omitempty"`
	Height int `db:"height" json:"height,omitempty"`

	SizeVariant   SizeVariant `db:"size_variant" json:"size_variant"`
	FileSizeBytes int64       `db:"file_size_bytes" json:"file_size_bytes,omitempty"`
	ContentType   string      `db:"content_type" json:"content_type,omitempty"`

	// 64-char sha256 hex digest, used for deduplication across uploads
	ContentHash string `db:"content_hash" json:"content_hash,omitempty"`

	// Variant derivation bookkeeping, meaningful for originals only
	ProcessStatus   ProcessStatus `db:"process_status" json:"-"`
	ProcessAttempts int           `db:"process_attempts" json:"-"`
	ProcessError    string        `db:"process_error" json:"-"`

	// Set once at creation; records carry no modification time
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsPrimary returns true for the product's primary image
func (i *Image) IsPrimary() bool {
	return i.Position == 0
}

// HasValidDimensions returns true when both dimensions are known and positive
func (i *Image) HasValidDimensions() bool {
	return i.Width > 0 && i.Height > 0
}

// AspectRatio returns width/height, or 0 when dimensions are unknown.
// Computed on read, never persisted.
func (i *Image) AspectRatio() float64 {
	if !i.HasValidDimensions() {
		return 0
	}
	return float64(i.Width) / float64(i.Height)
}

// HumanFileSize renders the stored size for operator output ("34.2 KB").
// Computed on read, never persisted.
func (i *Image) HumanFileSize() string {
	if i.FileSizeBytes <= 0 {
		return ""
	}
	const unit = 1024
	if i.FileSizeBytes < unit {
		return fmt.Sprintf("%d B", i.FileSizeBytes)
	}
	div, exp := int64(unit), 0
	for n := i.FileSizeBytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(i.FileSizeBytes)/float64(div), "KMGT"[exp])
}

// Sample is an operator-facing slice of a record joined with its product,
// shown by the migration job before a purge.
type Sample struct {
	ID           uuid.UUID `db:"id"`
	ProductID    uuid.UUID `db:"product_id"`
	ProductTitle string    `db:"product_title"`
	StorageKey   string    `db:"storage_key"`
	URL          string    `db:"url"`
}
