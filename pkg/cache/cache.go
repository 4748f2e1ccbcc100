// Package cache provides pluggable byte caches for pipeline artifacts:
// resolved dependency graphs, advisory responses, and finished reports.
//
// Backends:
//   - FileCache: per-user directory cache for CLI usage
//   - MemoryCache: bounded in-process LRU with TTL, used by the server
//   - RedisCache: shared cache for multi-instance server deployments
//   - NullCache: disables caching (tests, --refresh)
//
// Keys are generated by a Keyer so that every component hashes its inputs
// the same way; see DefaultKeyer.
package cache

import (
	"context"
	"time"
)

// TTLs for the different artifact classes. Graphs change when upstream
// registries publish; advisories change more often.
const (
	TTLGraph    = 24 * time.Hour
	TTLAdvisory = 6 * time.Hour
)

// Cache is the interface implemented by all cache backends.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A TTL of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// GraphKeyOpts are the resolution parameters that affect graph identity.
type GraphKeyOpts struct {
	MaxDepth int
	MaxNodes int
}

// Keyer generates cache keys for the artifact classes.
type Keyer interface {
	// GraphKey generates a key for a resolved dependency graph.
	GraphKey(ecosystem, manifestHash string, opts GraphKeyOpts) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return &DefaultKeyer{} }

func (k *DefaultKeyer) GraphKey(ecosystem, manifestHash string, opts GraphKeyOpts) string {
	return hashKey("graph", ecosystem, manifestHash, opts.MaxDepth, opts.MaxNodes)
}

