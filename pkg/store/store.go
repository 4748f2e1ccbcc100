// Package store persists analysis reports. Reports are keyed by their
// uuid; implementations must be safe for concurrent use.
package store

import (
	"context"
	"errors"

	"github.com/depsentry/depsentry/pkg/analysis"
)

// ErrNotFound is returned when no report exists for the given id.
var ErrNotFound = errors.New("report not found")

// Store persists and retrieves analysis reports.
type Store interface {
	// Save persists a report under its ID, overwriting any previous
	// report with the same ID.
	Save(ctx context.Context, report *analysis.Report) error

	// Get retrieves a report by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*analysis.Report, error)

	// List returns the most recent report IDs, newest first, at most
	// limit entries.
	List(ctx context.Context, limit int) ([]string, error)

	// Close releases underlying resources.
	Close(ctx context.Context) error
}
