package storage

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultProbeTimeout = 10 * time.Second

	// Stored objects are immutable (keys embed a timestamp+random suffix),
	// so the CDN may cache them for a year.
	cacheControl = "public, max-age=31536000, immutable"
)

// Config holds the CDN storage zone settings. The write endpoint and the
// public read endpoint are configured independently: the storage zone
// accepts PUT/DELETE, the pull zone serves GET traffic.
type Config struct {
	StorageBaseURL string // write endpoint, e.g. https://storage.cdn.example/shoply
	PublicBaseURL  string // read endpoint, e.g. https://assets.shoply.dev
	AccessKey      string
	ProbeTimeout   time.Duration
}

// Client talks to the CDN storage zone over plain HTTP. Its only state is
// read-only configuration, so a single instance is safe to share.
type Client struct {
	cfg  Config
	http *http.Client
}

// PutResult describes a stored object.
type PutResult struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// BatchFailure records a single failed key in a batch delete.
type BatchFailure struct {
	Key string `json:"key"`
	Err error  `json:"-"`
}

// BatchResult partitions a batch delete by outcome.
type BatchResult struct {
	Successful []string       `json:"successful"`
	Failed     []BatchFailure `json:"failed"`
}

// ProbeResult reports storage reachability. Probe never returns an error
// through a second channel; everything lands here.
type ProbeResult struct {
	Success bool
	Status  int
	Err     error
}

// NewClient creates a CDN storage client.
func NewClient(cfg Config) *Client {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	cfg.StorageBaseURL = strings.TrimRight(cfg.StorageBaseURL, "/")
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: transport,
		},
	}
}

// IsConfigured reports whether all three required settings are present.
// Absence of any one is a hard configuration error, not a degraded mode.
func (c *Client) IsConfigured() bool {
	return c.cfg.StorageBaseURL != "" && c.cfg.PublicBaseURL != "" && c.cfg.AccessKey != ""
}

func (c *Client) configError() *ConfigError {
	var missing []string
	if c.cfg.StorageBaseURL == "" {
		missing = append(missing, "storage base URL")
	}
	if c.cfg.PublicBaseURL == "" {
		missing = append(missing, "public base URL")
	}
	if c.cfg.AccessKey == "" {
		missing = append(missing, "access key")
	}
	return &ConfigError{Missing: strings.Join(missing, ", ")}
}

// PublicURL returns the user-facing URL for a stored key.
func (c *Client) PublicURL(key string) string {
	return JoinURL(c.cfg.PublicBaseURL, key)
}

// Put writes an object and returns its public URL. No retries: a failed
// write surfaces immediately as a TransportError.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) (*PutResult, error) {
	if !c.IsConfigured() {
		return nil, c.configError()
	}

	url := c.cfg.StorageBaseURL + "/" + strings.TrimPrefix(key, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return nil, &TransportError{Op: "put", Key: key, Err: err}
	}
	req.Header.Set("AccessKey", c.cfg.AccessKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", cacheControl)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "put", Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, transportError("put", key, resp)
	}

	return &PutResult{
		Key:         key,
		URL:         c.PublicURL(key),
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

// Get fetches an object from the storage zone. Used by the variant worker
// to re-read originals; public traffic goes through the pull zone instead.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, c.configError()
	}

	url := c.cfg.StorageBaseURL + "/" + strings.TrimPrefix(key, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{Op: "get", Key: key, Err: err}
	}
	req.Header.Set("AccessKey", c.cfg.AccessKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "get", Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, transportError("get", key, resp)
	}
	return io.ReadAll(resp.Body)
}

// Delete removes an object. Returns nil only on a 2xx response.
func (c *Client) Delete(ctx context.Context, key string) error {
	if !c.IsConfigured() {
		return c.configError()
	}

	url := c.cfg.StorageBaseURL + "/" + strings.TrimPrefix(key, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return &TransportError{Op: "delete", Key: key, Err: err}
	}
	req.Header.Set("AccessKey", c.cfg.AccessKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "delete", Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return transportError("delete", key, resp)
	}
	return nil
}

// DeleteMany deletes keys sequentially, best effort. A failed key does not
// abort the batch; every key is attempted exactly once. Partial success is
// an expected outcome here, so the result partitions keys instead of the
// method failing.
func (c *Client) DeleteMany(ctx context.Context, keys []string) BatchResult {
	var result BatchResult
	for _, key := range keys {
		if err := c.Delete(ctx, key); err != nil {
			result.Failed = append(result.Failed, BatchFailure{Key: key, Err: err})
			continue
		}
		result.Successful = append(result.Successful, key)
	}
	return result
}

// Probe checks that the storage zone is reachable by listing its root.
// Used for readiness checks only, never for data access. The check is
// bounded by ProbeTimeout and never panics or returns an error directly.
func (c *Client) Probe(ctx context.Context) ProbeResult {
	if !c.IsConfigured() {
		return ProbeResult{Success: false, Err: c.configError()}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.StorageBaseURL+"/", nil)
	if err != nil {
		return ProbeResult{Success: false, Err: err}
	}
	req.Header.Set("AccessKey", c.cfg.AccessKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ProbeResult{Success: false, Err: err}
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ProbeResult{
			Success: false,
			Status:  resp.StatusCode,
			Err:     &TransportError{Op: "probe", Status: resp.StatusCode},
		}
	}
	return ProbeResult{Success: true, Status: resp.StatusCode}
}

// JoinURL joins a base URL and a path with exactly one separator.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func transportError(op, key string, resp *http.Response) *TransportError {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := string(body)
	if readErr != nil {
		msg = "<failed to read body>"
	}
	return &TransportError{Op: op, Key: key, Status: resp.StatusCode, Body: msg}
}
