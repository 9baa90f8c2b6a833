package storage

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const suffixCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9-_]`)

// GenerateKey builds a storage key of the shape
//
//	products/{productID}/images/{variant}/{base}_{millis}_{rand6}.{ext}
//
// where base is the sanitized original filename (extension stripped) or
// "image" when no filename is given. Uniqueness rests on the timestamp and
// random suffix, not on content: collisions are extremely unlikely but not
// impossible, and callers must not treat the key as an exclusivity lock.
func GenerateKey(productID, variant, ext, filename string) string {
	base := "image"
	if filename != "" {
		name := filepath.Base(filename)
		name = strings.TrimSuffix(name, filepath.Ext(name))
		name = unsafeKeyChars.ReplaceAllString(name, "_")
		if name != "" {
			base = name
		}
	}

	ext = strings.TrimPrefix(ext, ".")

	return fmt.Sprintf("products/%s/images/%s/%s_%d_%s.%s",
		productID, variant, base, time.Now().UnixMilli(), randomSuffix(6), ext)
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixCharset[rand.Intn(len(suffixCharset))]
	}
	return string(b)
}
