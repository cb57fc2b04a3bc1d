package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/schemascout/schemascout/internal/types"
)

// AddSite registers a site for a user. Existing registrations are left
// untouched so re-adding never resets interval or last_processed.
func (s *SQLiteStore) AddSite(ctx context.Context, siteURL, userID string, intervalHours int) error {
	if intervalHours <= 0 {
		intervalHours = types.DefaultProcessIntervalHours
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sites (site_url, user_id, process_interval_hours, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(site_url, user_id) DO NOTHING`,
		siteURL, userID, intervalHours, time.Now().UTC())
	return wrapDBError("add site", err)
}

// RemoveSite deletes the site row. File and id rows are left for the
// removal jobs so the index is cleared before state disappears.
func (s *SQLiteStore) RemoveSite(ctx context.Context, siteURL, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sites WHERE site_url = ? AND user_id = ?`, siteURL, userID)
	if err != nil {
		return wrapDBError("remove site", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrapDBError("remove site", sql.ErrNoRows)
	}
	return nil
}

// GetSite returns one site row.
func (s *SQLiteStore) GetSite(ctx context.Context, siteURL, userID string) (*types.Site, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT site_url, user_id, process_interval_hours, last_processed, is_active, created_at
		FROM sites WHERE site_url = ? AND user_id = ?`, siteURL, userID)
	site, err := scanSite(row)
	if err != nil {
		return nil, wrapDBErrorf(err, "get site %s", siteURL)
	}
	return site, nil
}

// ListSites returns all sites of a user, or of every user when userID is
// empty.
func (s *SQLiteStore) ListSites(ctx context.Context, userID string) ([]*types.Site, error) {
	query := `
		SELECT site_url, user_id, process_interval_hours, last_processed, is_active, created_at
		FROM sites`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY site_url, user_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list sites", err)
	}
	defer func() { _ = rows.Close() }()

	var sites []*types.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, wrapDBError("list sites", err)
		}
		sites = append(sites, site)
	}
	return sites, wrapDBError("list sites", rows.Err())
}

// DueSites returns active sites whose processing interval has elapsed, or
// that have never been processed, across all users.
func (s *SQLiteStore) DueSites(ctx context.Context, now time.Time) ([]*types.Site, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT site_url, user_id, process_interval_hours, last_processed, is_active, created_at
		FROM sites
		WHERE is_active = 1
		  AND (last_processed IS NULL
		       OR datetime(last_processed, '+' || process_interval_hours || ' hours') <= datetime(?))
		ORDER BY site_url, user_id`, now.UTC())
	if err != nil {
		return nil, wrapDBError("due sites", err)
	}
	defer func() { _ = rows.Close() }()

	var sites []*types.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, wrapDBError("due sites", err)
		}
		sites = append(sites, site)
	}
	return sites, wrapDBError("due sites", rows.Err())
}

// TouchSiteProcessed stamps sites.last_processed.
func (s *SQLiteStore) TouchSiteProcessed(ctx context.Context, siteURL, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sites SET last_processed = ? WHERE site_url = ? AND user_id = ?`,
		at.UTC(), siteURL, userID)
	return wrapDBError("touch site processed", err)
}

// SiteStatus aggregates active-file counts, item totals, the most recent
// read time, and outstanding error rows for one site.
func (s *SQLiteStore) SiteStatus(ctx context.Context, siteURL, userID string) (*types.SiteStatus, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.site_url, s.user_id, s.process_interval_hours, s.last_processed, s.is_active,
		       COUNT(f.file_url),
		       COALESCE(SUM(f.number_of_items), 0),
		       MAX(f.last_read_time)
		FROM sites s
		LEFT JOIN files f ON f.site_url = s.site_url AND f.user_id = s.user_id AND f.is_active = 1
		WHERE s.site_url = ? AND s.user_id = ?
		GROUP BY s.site_url, s.user_id, s.process_interval_hours, s.last_processed, s.is_active`,
		siteURL, userID)

	var st types.SiteStatus
	var lastProcessed, lastRead sql.NullTime
	var isActive int
	if err := row.Scan(&st.SiteURL, &st.UserID, &st.ProcessIntervalHours, &lastProcessed,
		&isActive, &st.FileCount, &st.TotalItems, &lastRead); err != nil {
		return nil, wrapDBErrorf(err, "site status %s", siteURL)
	}
	st.IsActive = isActive != 0
	if lastProcessed.Valid {
		t := lastProcessed.Time.UTC()
		st.LastProcessed = &t
	}
	if lastRead.Valid {
		t := lastRead.Time.UTC()
		st.LastReadTime = &t
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM processing_errors e
		WHERE e.user_id = ?
		  AND e.file_url IN (SELECT file_url FROM files WHERE site_url = ? AND user_id = ?)`,
		userID, siteURL, userID).Scan(&st.ErrorCount); err != nil {
		return nil, wrapDBErrorf(err, "site status errors %s", siteURL)
	}
	return &st, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSite(sc scanner) (*types.Site, error) {
	var site types.Site
	var lastProcessed sql.NullTime
	var isActive int
	if err := sc.Scan(&site.SiteURL, &site.UserID, &site.ProcessIntervalHours,
		&lastProcessed, &isActive, &site.CreatedAt); err != nil {
		return nil, err
	}
	site.IsActive = isActive != 0
	if lastProcessed.Valid {
		t := lastProcessed.Time.UTC()
		site.LastProcessed = &t
	}
	site.CreatedAt = site.CreatedAt.UTC()
	return &site, nil
}
