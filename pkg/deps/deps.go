package deps

import "time"

const (
	DefaultMaxDepth = 50             // Default maximum dependency depth
	DefaultMaxNodes = 5000           // Default maximum packages to fetch
	DefaultCacheTTL = 24 * time.Hour // Default HTTP cache duration
)

// Options configures manifest parsing and dependency resolution.
type Options struct {
	MaxDepth int                  // Maximum depth to traverse (default: 50)
	MaxNodes int                  // Maximum packages to fetch (default: 5000)
	CacheTTL time.Duration        // HTTP cache duration (default: 24h)
	Refresh  bool                 // Bypass cache for fresh data
	Logger   func(string, ...any) // Progress/error callback (optional)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = DefaultMaxNodes
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = func(string, ...any) {}
	}
	return opts
}

// Package holds metadata fetched from a package registry during a crawl.
type Package struct {
	Name             string            // Package name
	Version          string            // Resolved version
	Dependencies     []string          // Direct dependency names
	HasInstallScript bool              // Whether install-time hooks are declared
	Scripts          map[string]string // Declared scripts, for evidence
}
