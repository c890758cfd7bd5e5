// Package manifest fetches and validates application descriptors before a
// session is granted. The loader never retries; retry policy belongs to the
// caller.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/sources"
	"github.com/keeperstack/wallet_bridge/internal/httputil"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

const maxManifestBytes = 256 << 10

// Cache stores fetched manifests keyed by URL. Failures are tolerated; the
// cache only ever saves a fetch.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// Loader fetches manifests over HTTP.
type Loader struct {
	client *httputil.Client
	cache  Cache
	ttl    time.Duration
	log    *logger.Logger
}

var _ sources.ManifestSource = (*Loader)(nil)

// NewLoader constructs a loader. cache may be nil.
func NewLoader(client *httputil.Client, cache Cache, ttl time.Duration, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.NewDefault("manifest")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Loader{client: client, cache: cache, ttl: ttl, log: log}
}

// Load fetches and validates the manifest at url. Every failure mode --
// transport error, timeout, 4xx/5xx, malformed body -- maps to
// connect.ErrManifestUnavailable.
func (l *Loader) Load(ctx context.Context, url string) (connect.Manifest, error) {
	if cached, ok := l.cachedManifest(ctx, url); ok {
		return cached, nil
	}

	resp, err := l.client.Get(ctx, url)
	if err != nil {
		return connect.Manifest{}, fmt.Errorf("fetch manifest %s: %v: %w", url, err, connect.ErrManifestUnavailable)
	}
	body, err := httputil.ReadAll(resp, maxManifestBytes)
	if err != nil {
		return connect.Manifest{}, fmt.Errorf("fetch manifest %s: %v: %w", url, err, connect.ErrManifestUnavailable)
	}

	var m connect.Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return connect.Manifest{}, fmt.Errorf("parse manifest %s: %v: %w", url, err, connect.ErrManifestUnavailable)
	}
	if err := m.Validate(); err != nil {
		return connect.Manifest{}, fmt.Errorf("invalid manifest %s: %v: %w", url, err, connect.ErrManifestUnavailable)
	}

	if l.cache != nil {
		l.cache.Set(ctx, url, string(body), l.ttl)
	}
	return m, nil
}

// FetchManifest implements sources.ManifestSource.
func (l *Loader) FetchManifest(ctx context.Context, url string) (connect.Manifest, error) {
	return l.Load(ctx, url)
}

func (l *Loader) cachedManifest(ctx context.Context, url string) (connect.Manifest, bool) {
	if l.cache == nil {
		return connect.Manifest{}, false
	}
	raw, ok := l.cache.Get(ctx, url)
	if !ok {
		return connect.Manifest{}, false
	}
	var m connect.Manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m.Validate() != nil {
		return connect.Manifest{}, false
	}
	return m, true
}
