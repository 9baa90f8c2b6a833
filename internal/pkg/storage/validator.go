package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const MaxImageSize = 10 * 1024 * 1024 // 10 MB

var (
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrInvalidMimeType = errors.New("file type not allowed")
	ErrEmptyFile       = errors.New("file is empty")
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// ValidateImage reads an upload into memory, sniffs its MIME type from the
// magic bytes, and rejects empty, oversized, or non-image payloads.
func ValidateImage(reader io.Reader) ([]byte, string, error) {
	// Read limited to MaxImageSize+1 to detect oversized files
	limitedReader := io.LimitReader(reader, MaxImageSize+1)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil, "", ErrEmptyFile
	}
	if int64(len(data)) > MaxImageSize {
		return nil, "", ErrFileTooLarge
	}

	// Detect MIME type from content (magic bytes)
	mimeType := http.DetectContentType(data)
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	allowed := false
	for _, t := range allowedImageTypes {
		if t == mimeType {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, "", ErrInvalidMimeType
	}

	return data, mimeType, nil
}

// ExtensionForMime returns the file extension for a supported image MIME type.
func ExtensionForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
