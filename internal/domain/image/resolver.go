package image

import (
	"net/url"
	"strings"

	"github.com/shoply/shoply-api/internal/pkg/storage"
)

// Resolver maps a stored record to its single canonical display URL,
// regardless of which historical backend produced it. Records carry one of
// three URL shapes: a pass-through host (placeholder images), a current CDN
// URL, or a legacy storage key that must be rewritten onto the CDN.
//
// Resolve is pure: no I/O, no side effects, deterministic for fixed inputs.
type Resolver struct {
	cdnBaseURL       string
	cdnHost          string
	passthroughHosts map[string]struct{}
	legacyHosts      []string
}

// NewResolver creates a resolver for the given CDN public base URL.
func NewResolver(cdnPublicBaseURL string, passthroughHosts, legacyHosts []string) *Resolver {
	r := &Resolver{
		cdnBaseURL:       strings.TrimRight(cdnPublicBaseURL, "/"),
		passthroughHosts: make(map[string]struct{}, len(passthroughHosts)),
		legacyHosts:      legacyHosts,
	}
	if u, err := url.Parse(r.cdnBaseURL); err == nil {
		r.cdnHost = strings.ToLower(u.Host)
	}
	for _, h := range passthroughHosts {
		r.passthroughHosts[strings.ToLower(h)] = struct{}{}
	}
	return r
}

// Resolve returns the canonical URL for a record. Priority order, first
// match wins:
//
//  1. absolute URL on a pass-through host: returned unchanged
//  2. absolute URL already on the CDN host: returned unchanged
//  3. path derived from the storage key, joined onto the CDN base
//  4. empty storage key: the raw stored URL
func (r *Resolver) Resolve(img *Image) string {
	if host, ok := hostOf(img.URL); ok {
		if _, pass := r.passthroughHosts[host]; pass {
			return img.URL
		}
		if r.cdnHost != "" && host == r.cdnHost {
			return img.URL
		}
	}

	if img.StorageKey == "" {
		return img.URL
	}

	return storage.JoinURL(r.cdnBaseURL, r.derivePath(img.StorageKey))
}

// derivePath extracts the object path from a storage key in any of its
// historical shapes.
func (r *Resolver) derivePath(key string) string {
	path, _ := LegacyObjectPath(key, r.legacyHosts)
	return path
}

// LegacyObjectPath extracts the bucket-internal path from a storage key.
// The boolean reports whether the key had a legacy shape; plain CDN keys
// come back verbatim with false.
func LegacyObjectPath(key string, legacyHosts []string) (string, bool) {
	// Key embeds a legacy host URL fragment: keep everything after it
	for _, host := range legacyHosts {
		if idx := strings.Index(key, host+"/"); idx >= 0 {
			return key[idx+len(host)+1:], true
		}
	}

	// Legacy scheme://bucket/path form: strip scheme and bucket segment
	if idx := strings.Index(key, "://"); idx >= 0 {
		rest := key[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			return rest[slash+1:], true
		}
		return rest, true
	}

	return key, false
}

func hostOf(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Host), true
}
