// Package types defines core data structures for the schemascout crawler.
package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// User represents an authenticated tenant. Users are created on first
// external login and never deleted by the crawler core.
type User struct {
	UserID    string     `json:"user_id"` // "<provider>:<external_id>"
	Email     string     `json:"email,omitempty"`
	Name      string     `json:"name,omitempty"`
	Provider  string     `json:"provider,omitempty"`
	APIKey    string     `json:"api_key,omitempty"` // opaque token, globally unique
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// FormatUserID builds the canonical user id from an auth provider name and
// the provider's external subject id.
func FormatUserID(provider, externalID string) string {
	return fmt.Sprintf("%s:%s", provider, externalID)
}

// NewAPIKey generates a cryptographically random API key.
func NewAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return "sk_" + hex.EncodeToString(buf), nil
}

// Site is a monitored host, keyed by (site_url, user_id).
type Site struct {
	SiteURL              string     `json:"site_url"` // normalized, see NormalizeSiteURL
	UserID               string     `json:"user_id"`
	ProcessIntervalHours int        `json:"process_interval_hours"`
	LastProcessed        *time.Time `json:"last_processed,omitempty"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
}

// DefaultProcessIntervalHours is the crawl interval applied when a site is
// added without an explicit interval.
const DefaultProcessIntervalHours = 24

// Due reports whether the site should be processed at the given instant.
// A site is due when it is active and has never been processed, or when
// last_processed + process_interval_hours has elapsed.
func (s *Site) Due(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.LastProcessed == nil {
		return true
	}
	return !now.Before(s.LastProcessed.Add(time.Duration(s.ProcessIntervalHours) * time.Hour))
}

// ManualSchemaMap is the schema_map value carried by files registered by
// hand rather than discovered through a schema map. Manual files are never
// tombstoned by discovery because no map's authoritative set contains them.
const ManualSchemaMap = "manual"

// File is a payload file discovered through a schema map (or registered
// manually), keyed by (file_url, user_id). IsActive=false marks a tombstone:
// the file vanished from its map and awaits a removal job that will drain
// its ids and clear the index before the row is hard-deleted.
type File struct {
	FileURL       string     `json:"file_url"`
	UserID        string     `json:"user_id"`
	SiteURL       string     `json:"site_url"`
	SchemaMap     string     `json:"schema_map"`
	LastReadTime  *time.Time `json:"last_read_time,omitempty"`
	NumberOfItems int        `json:"number_of_items"`
	IsManual      bool       `json:"is_manual"`
	IsActive      bool       `json:"is_active"`
}

// MapEntry is a single <url> entry of a schema map: the payload location
// and the contentType attribute it was announced with.
type MapEntry struct {
	FileURL     string `json:"file_url"`
	ContentType string `json:"content_type,omitempty"`
}

// FileDiff is the result of reconciling a schema map's entries against the
// store: entries newly present (upserted, possibly reactivated tombstones)
// and file URLs no longer present (soft-deleted).
type FileDiff struct {
	Added   []MapEntry `json:"added"`
	Removed []string   `json:"removed"`
}

// IDRef is an object id together with its per-user reference count as
// observed inside the reconciling transaction. The count gates index
// writes: insert at 1, delete at 0.
type IDRef struct {
	ID       string `json:"id"`
	RefCount int    `json:"ref_count"`
}

// IDDiff is the result of reconciling a file's extracted id set against the
// ids table.
type IDDiff struct {
	Added   []IDRef `json:"added"`
	Removed []IDRef `json:"removed"`
}

// Processing error types recorded per (file_url, user_id).
const (
	ErrorExtractionFailed   = "extraction_failed"
	ErrorNoIDsFound         = "no_ids_found"
	ErrorVectorAddFailed    = "vector_db_add_failed"
	ErrorVectorDeleteFailed = "vector_db_delete_failed"
)

// ProcessingError is an append-only record of a failure while processing a
// file. Successful processing clears all rows for the file.
type ProcessingError struct {
	ID           int64     `json:"id"`
	FileURL      string    `json:"file_url"`
	UserID       string    `json:"user_id"`
	ErrorType    string    `json:"error_type"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ErrorDetails string    `json:"error_details,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// SiteStatus is a per-site rollup across the site's active files.
type SiteStatus struct {
	SiteURL              string     `json:"site_url"`
	UserID               string     `json:"user_id"`
	ProcessIntervalHours int        `json:"process_interval_hours"`
	LastProcessed        *time.Time `json:"last_processed,omitempty"`
	IsActive             bool       `json:"is_active"`
	FileCount            int        `json:"file_count"`
	TotalItems           int        `json:"total_items"`
	LastReadTime         *time.Time `json:"last_read_time,omitempty"`
	ErrorCount           int        `json:"error_count"`
}
