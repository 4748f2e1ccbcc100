// Package cli implements the depsentry command-line interface.
//
// This package provides commands for scanning dependency manifests,
// resolving packages straight from their registries, exporting dependency
// graphs, serving the HTTP API, and managing the HTTP response cache. The
// CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - scan: Analyze a manifest or a registry package for supply-chain risk
//   - report: Display a previously saved analysis report
//   - graph: Export the dependency graph as DOT or SVG
//   - serve: Run the HTTP API server
//   - cache: Manage the HTTP response cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"context"
	"os"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/pkg/buildinfo"
	"github.com/depsentry/depsentry/pkg/cache"
)

// appName is the application name used for directories and display.
const appName = "depsentry"

// Execute runs the depsentry CLI and returns an error if any command fails.
// This is the main entry point for the CLI application.
//
// Logging defaults to info level on stderr; --verbose (-v) raises it to
// debug. The logger is attached to the context and accessible to all
// commands via loggerFromContext.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          appName,
		Short:        "Depsentry analyzes dependency trees for supply-chain risk",
		Long:         `Depsentry builds the dependency graph of a project from its lockfile or straight from a package registry, then runs it through a staged analysis pipeline: known vulnerabilities, registry reputation, install-script inspection, and supply-chain heuristics, condensed into a single risk report.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newScanCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newGraphCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newCompletionCmd())

	return root.ExecuteContext(ctx)
}

// newCacheBackend picks the response cache for registry clients.
func newCacheBackend(noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	backend, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return backend
}

// cacheDir returns the cache directory using XDG standard (~/.cache/depsentry/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
