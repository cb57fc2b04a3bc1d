// Package storage defines the interface for crawler state backends.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/schemascout/schemascout/internal/types"
)

// Sentinel errors shared by all backends.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates the backing store connection is lost.
	// Callers must treat the operation as not performed and may retry
	// with backoff.
	ErrUnavailable = errors.New("store unavailable")

	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate")
)

// Store is the durable relational state behind the convergence pipeline:
// users, sites, files, ids and processing errors, keyed by tenant.
//
// Every operation is scoped by user_id; two tenants never share rows, ref
// counts, or index state. All timestamps are stored and returned in UTC.
type Store interface {
	// AddSite registers a site for a user. The URL is normalized by the
	// caller; registering an existing site is a no-op that keeps the
	// existing interval and last_processed.
	AddSite(ctx context.Context, siteURL, userID string, intervalHours int) error

	// RemoveSite deletes the site row only. Files and ids are drained by
	// removal jobs so the index is cleared before rows disappear.
	RemoveSite(ctx context.Context, siteURL, userID string) error

	// GetSite returns the site row or ErrNotFound.
	GetSite(ctx context.Context, siteURL, userID string) (*types.Site, error)

	// ListSites returns all sites of a user, or of all users when userID
	// is empty.
	ListSites(ctx context.Context, userID string) ([]*types.Site, error)

	// DueSites returns every active site whose last_processed is null or
	// older than its process interval, across all users.
	DueSites(ctx context.Context, now time.Time) ([]*types.Site, error)

	// TouchSiteProcessed sets sites.last_processed.
	TouchSiteProcessed(ctx context.Context, siteURL, userID string, at time.Time) error

	// SiteStatus aggregates file and error counts for one site.
	SiteStatus(ctx context.Context, siteURL, userID string) (*types.SiteStatus, error)

	// DiffSiteFiles reconciles the authoritative entries of one schema map
	// against the active file rows recorded for (site, user, schemaMap).
	// New entries are upserted with is_active=1, reactivating tombstones
	// and refreshing schema_map and site_url; entries no longer present
	// are soft-deleted. Id rows of soft-deleted files are kept; the
	// removal job drains them. Concurrent calls for the same site_url are
	// serialized in process.
	DiffSiteFiles(ctx context.Context, siteURL, userID, schemaMap string, entries []types.MapEntry) (*types.FileDiff, error)

	// ListSiteFiles returns all file rows of a site, tombstones included.
	ListSiteFiles(ctx context.Context, siteURL, userID string) ([]*types.File, error)

	// GetFile returns the file row or ErrNotFound.
	GetFile(ctx context.Context, fileURL, userID string) (*types.File, error)

	// AddManualFile registers a hand-added payload file (is_manual=1,
	// schema_map="manual") outside any schema map.
	AddManualFile(ctx context.Context, siteURL, userID, fileURL string) error

	// DeleteFile hard-deletes a file row. Only the process_removed_file
	// path calls this, after the file's ids are drained.
	DeleteFile(ctx context.Context, fileURL, userID string) error

	// DiffFileIDs reconciles the authoritative id set extracted from a
	// payload against the ids table for (file, user): missing rows are
	// inserted, extraneous rows deleted (batched; an empty newIDs takes
	// the wildcard path), then last_read_time and number_of_items are
	// updated. The returned ref counts are read inside the same
	// transaction so callers' index add/delete decisions observe the new
	// state.
	DiffFileIDs(ctx context.Context, fileURL, userID string, newIDs []string) (*types.IDDiff, error)

	// ListFileIDs returns the ids currently recorded for a file.
	ListFileIDs(ctx context.Context, fileURL, userID string) ([]string, error)

	// RefCount returns the number of files of this user currently
	// listing the id.
	RefCount(ctx context.Context, id, userID string) (int, error)

	// LogError appends a processing error for a file.
	LogError(ctx context.Context, perr *types.ProcessingError) error

	// ClearErrors removes all processing errors for a file.
	ClearErrors(ctx context.Context, fileURL, userID string) error

	// ListErrors returns the processing errors recorded for a file,
	// newest first.
	ListErrors(ctx context.Context, fileURL, userID string) ([]*types.ProcessingError, error)

	// GetOrCreateUser returns the existing user row or inserts one with a
	// fresh API key. The input's UserID is required; Email, Name and
	// Provider are stored on insert only.
	GetOrCreateUser(ctx context.Context, u *types.User) (*types.User, error)

	// GetUser returns the user row or ErrNotFound.
	GetUser(ctx context.Context, userID string) (*types.User, error)

	// GetUserByAPIKey resolves an API key to its user or ErrNotFound.
	GetUserByAPIKey(ctx context.Context, apiKey string) (*types.User, error)

	// UpdateUserLogin sets users.last_login.
	UpdateUserLogin(ctx context.Context, userID string, at time.Time) error

	// Ping verifies the backing connection is alive.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
