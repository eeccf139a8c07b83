package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "kalender/internal/log"
)

const (
	defaultFetchTimeout = 15 * time.Second
	maxBodyBytes        = 16 << 20
)

// FetchResult is the payload of one subscription.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool // body came from disk (304, network error or non-OK status)
}

// cacheMeta is the HTTP validator state of one cached feed.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// diskCache stores feed bodies and validators under dir/<hash of url>/.
type diskCache struct {
	dir string
}

func (c diskCache) path(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:8]))
}

func (c diskCache) load(url string) (cacheMeta, []byte) {
	p := c.path(url)
	var meta cacheMeta
	if data, err := os.ReadFile(filepath.Join(p, "meta.json")); err == nil {
		_ = json.Unmarshal(data, &meta)
	}
	body, _ := os.ReadFile(filepath.Join(p, "body.ics"))
	return meta, body
}

func (c diskCache) save(meta cacheMeta, body []byte) error {
	p := c.path(meta.URL)
	if err := os.MkdirAll(p, 0o700); err != nil {
		return err
	}
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(p, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p, "meta.json"), data, 0o600)
}

// Fetcher downloads subscriptions with conditional requests and falls back
// to the last good body when the remote is unreachable.
type Fetcher struct {
	client *http.Client
	cache  diskCache
	now    func() time.Time
}

// NewFetcher creates a Fetcher caching under cacheDir. A nil client gets a
// default one with a 15s timeout.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Fetcher{client: client, cache: diskCache{dir: cacheDir}, now: time.Now}
}

// FetchAll fetches every source in order. A failing source is logged and
// reported in the error slice; it never stops the others.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	var errs []error

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", src.ID, err))
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// FetchOne fetches a single source, sending If-None-Match / If-Modified-Since
// from the cache.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	meta, cached := f.cache.load(src.URL)
	fallback := func(reason error) (FetchResult, error) {
		if len(cached) == 0 {
			return FetchResult{}, reason
		}
		appLog.Warn("ics fetch degraded; using cached body", "id", src.ID, "reason", reason.Error())
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fallback(err)
		}
		next := cacheMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    f.now().UTC(),
		}
		if err := f.cache.save(next, body); err != nil {
			appLog.Error("ics cache save failed", err, "id", src.ID)
		}
		appLog.Info("ics fetch success", "id", src.ID, "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Info("ics fetch not modified", "id", src.ID)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil

	default:
		return fallback(fmt.Errorf("unexpected status %s", resp.Status))
	}
}
