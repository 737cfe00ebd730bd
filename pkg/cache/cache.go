// Package cache stores intermediate and final pipeline outputs.
//
// Extraction is the expensive stage (one model fit per subgroup level), so
// the pipeline caches the extracted effect rows by a hash of the dataset and
// the extraction settings, and rendered artifacts by a hash of the rows and
// the render settings.
//
// Backends:
//   - [FileCache]: one JSON file per entry, used by the CLI
//   - [RedisCache]: shared cache for the HTTP server
//   - [NullCache]: caching disabled
//
// Keys are produced by a [Keyer]; [ScopedKeyer] prefixes them so several
// tenants can share one backend.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with expiration.
type Cache interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Entry lifetimes.
const (
	TTLRows     = 7 * 24 * time.Hour
	TTLArtifact = 30 * 24 * time.Hour
)
