// Package sqlite provides the public API for the SQLite packet catalog.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"github.com/mesh-intelligence/avmeta/internal/sqlite"
)

// Option configures a catalog backend.
type Option = sqlite.Option

// Backend is the SQLite packet catalog. Besides types.Catalog it offers
// Import, Dump and Load.
type Backend = sqlite.Backend

// DBFile is the database file name inside the data directory.
const DBFile = sqlite.DBFile

var (
	// WithLogger sets the backend logger.
	WithLogger = sqlite.WithLogger
	// WithClock sets the time source for packet timestamps.
	WithClock = sqlite.WithClock
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".avmeta-db",
//	})
//	defer backend.Detach()
func NewBackend(opts ...Option) *Backend {
	return sqlite.NewBackend(opts...)
}
