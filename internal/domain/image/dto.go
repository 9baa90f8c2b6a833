package image

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest registers an already-hosted image by metadata alone.
// Used for legacy records and external placeholder URLs; no bytes move.
type RegisterRequest struct {
	StorageKey    string `json:"storage_key" validate:"required,min=1,max=512"`
	URL           string `json:"url" validate:"required,min=1,max=512,url"`
	AltText       string `json:"alt_text" validate:"max=160"`
	Position      *int   `json:"position" validate:"omitempty,gte=0"`
	Width         int    `json:"width" validate:"omitempty,gt=0"`
	Height        int    `json:"height" validate:"omitempty,gt=0"`
	SizeVariant   string `json:"size_variant" validate:"size_variant"`
	FileSizeBytes int64  `json:"file_size_bytes" validate:"omitempty,gt=0"`
	ContentType   string `json:"content_type" validate:"max=100"`
	ContentHash   string `json:"content_hash" validate:"content_hash"`
}

// Response is the API shape of an image record. The URL is the resolved
// canonical URL; derived fields are computed on read, never persisted.
type Response struct {
	ID            uuid.UUID   `json:"id"`
	ProductID     uuid.UUID   `json:"product_id"`
	StorageKey    string      `json:"storage_key"`
	URL           string      `json:"url"`
	AltText       string      `json:"alt_text"`
	Position      int         `json:"position"`
	IsPrimary     bool        `json:"is_primary"`
	Width         int         `json:"width,omitempty"`
	Height        int         `json:"height,omitempty"`
	AspectRatio   float64     `json:"aspect_ratio,omitempty"`
	SizeVariant   SizeVariant `json:"size_variant"`
	FileSizeBytes int64       `json:"file_size_bytes,omitempty"`
	HumanFileSize string      `json:"human_file_size,omitempty"`
	ContentType   string      `json:"content_type,omitempty"`
	ContentHash   string      `json:"content_hash,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// NewResponse builds the API shape from a record and its canonical URL.
func NewResponse(img *Image, canonicalURL string) *Response {
	return &Response{
		ID:            img.ID,
		ProductID:     img.ProductID,
		StorageKey:    img.StorageKey,
		URL:           canonicalURL,
		AltText:       img.AltText,
		Position:      img.Position,
		IsPrimary:     img.IsPrimary(),
		Width:         img.Width,
		Height:        img.Height,
		AspectRatio:   img.AspectRatio(),
		SizeVariant:   img.SizeVariant,
		FileSizeBytes: img.FileSizeBytes,
		HumanFileSize: img.HumanFileSize(),
		ContentType:   img.ContentType,
		ContentHash:   img.ContentHash,
		CreatedAt:     img.CreatedAt,
	}
}
