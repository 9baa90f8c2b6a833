package storage

import (
	"regexp"
	"strings"
	"testing"
)

var keyShape = regexp.MustCompile(`^products/p-42/images/thumb/[A-Za-z0-9-_]+_\d+_[a-z0-9]{6}\.jpg$`)

func TestGenerateKeyShape(t *testing.T) {
	key := GenerateKey("p-42", "thumb", ".jpg", "Summer Dress (red).JPG")
	if !keyShape.MatchString(key) {
		t.Fatalf("unexpected key shape: %q", key)
	}
	if !strings.Contains(key, "Summer_Dress__red_") {
		t.Errorf("expected sanitized filename in key, got %q", key)
	}
}

func TestGenerateKeyWithoutFilename(t *testing.T) {
	key := GenerateKey("p-42", "thumb", "jpg", "")
	if !strings.Contains(key, "/image_") {
		t.Errorf("expected fallback base \"image\", got %q", key)
	}
	if !keyShape.MatchString(key) {
		t.Fatalf("unexpected key shape: %q", key)
	}
}

func TestGenerateKeyCollisions(t *testing.T) {
	// Probabilistic check, not a strict uniqueness proof: timestamp plus a
	// 6-char random suffix should not repeat over 10k calls.
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		key := GenerateKey("p-42", "thumb", "jpg", "photo")
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key generated: %q", key)
		}
		seen[key] = struct{}{}
	}
}
