// Package schemascout provides a minimal public API for embedding the
// crawler's state layer in other Go programs.
//
// Most integrations should run the scout binary and work against its
// database. This package exports only the essential types and functions
// needed for Go programs that want to register sites and inspect crawl
// state programmatically.
package schemascout

import (
	"context"

	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/storage/sqlite"
	"github.com/schemascout/schemascout/internal/types"
)

// Core types for working with crawl state
type (
	User            = types.User
	Site            = types.Site
	File            = types.File
	SiteStatus      = types.SiteStatus
	ProcessingError = types.ProcessingError
	Job             = types.Job
	JobType         = types.JobType
)

// Job type constants
const (
	JobProcessFile        = types.JobProcessFile
	JobProcessRemovedFile = types.JobProcessRemovedFile
)

// Processing error categories
const (
	ErrorExtractionFailed   = types.ErrorExtractionFailed
	ErrorNoIDsFound         = types.ErrorNoIDsFound
	ErrorVectorAddFailed    = types.ErrorVectorAddFailed
	ErrorVectorDeleteFailed = types.ErrorVectorDeleteFailed
)

// Crawl defaults
const (
	DefaultProcessIntervalHours = types.DefaultProcessIntervalHours
	ManualSchemaMap             = types.ManualSchemaMap
)

// Store provides the minimal interface for programmatic access to crawl state
type Store = storage.Store

// OpenSQLite opens a scout SQLite database for programmatic access.
// Most integrations should use this to register sites and read statuses.
func OpenSQLite(ctx context.Context, dbPath string) (Store, error) {
	return sqlite.New(ctx, dbPath)
}

// NormalizeSiteURL canonicalizes a site URL to the form the store keys on.
func NormalizeSiteURL(raw string) string {
	return types.NormalizeSiteURL(raw)
}
