package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/schemascout/schemascout/internal/types"
)

// DiffSiteFiles reconciles one schema map's entries against the active file
// rows recorded for (site, user, schemaMap). Additions are upserted with
// is_active=1, reactivating tombstones and refreshing schema_map and
// site_url; files no longer listed are soft-deleted. Id rows of
// soft-deleted files are kept for the removal job. Calls for the same
// site_url are serialized in process.
func (s *SQLiteStore) DiffSiteFiles(ctx context.Context, siteURL, userID, schemaMap string, entries []types.MapEntry) (*types.FileDiff, error) {
	unlock := s.siteLocks.Lock(siteURL)
	defer unlock()

	// Dedupe by file_url, first entry wins.
	seen := make(map[string]bool, len(entries))
	newEntries := make([]types.MapEntry, 0, len(entries))
	for _, e := range entries {
		if e.FileURL == "" || seen[e.FileURL] {
			continue
		}
		seen[e.FileURL] = true
		newEntries = append(newEntries, e)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDBError("diff site files", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT file_url FROM files
		WHERE site_url = ? AND user_id = ? AND schema_map = ? AND is_active = 1`,
		siteURL, userID, schemaMap)
	if err != nil {
		return nil, wrapDBError("diff site files", err)
	}
	current := make(map[string]bool)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			_ = rows.Close()
			return nil, wrapDBError("diff site files", err)
		}
		current[u] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapDBError("diff site files", err)
	}
	_ = rows.Close()

	diff := &types.FileDiff{}
	for _, e := range newEntries {
		if current[e.FileURL] {
			continue
		}
		// Reactivation keeps last_read_time and number_of_items so a
		// tombstone that reappears before its removal job drains does not
		// lose provenance.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO files (file_url, user_id, site_url, schema_map, number_of_items, is_manual, is_active)
			VALUES (?, ?, ?, ?, 0, 0, 1)
			ON CONFLICT(file_url, user_id) DO UPDATE SET
				is_active = 1,
				schema_map = excluded.schema_map,
				site_url = excluded.site_url`,
			e.FileURL, userID, siteURL, schemaMap); err != nil {
			return nil, wrapDBErrorf(err, "diff site files: upsert %s", e.FileURL)
		}
		diff.Added = append(diff.Added, e)
	}

	for u := range current {
		if !seen[u] {
			diff.Removed = append(diff.Removed, u)
		}
	}
	for i := 0; i < len(diff.Removed); i += deleteBatchSize {
		end := i + deleteBatchSize
		if end > len(diff.Removed) {
			end = len(diff.Removed)
		}
		batch := diff.Removed[i:end]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]interface{}, 0, len(batch)+1)
		args = append(args, userID)
		for _, u := range batch {
			args = append(args, u)
		}
		query := fmt.Sprintf(
			`UPDATE files SET is_active = 0 WHERE user_id = ? AND file_url IN (%s)`, placeholders)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, wrapDBError("diff site files: tombstone", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapDBError("diff site files", err)
	}
	return diff, nil
}

// ListSiteFiles returns every file row of a site, tombstones included.
func (s *SQLiteStore) ListSiteFiles(ctx context.Context, siteURL, userID string) ([]*types.File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_url, user_id, site_url, schema_map, last_read_time, number_of_items, is_manual, is_active
		FROM files WHERE site_url = ? AND user_id = ?
		ORDER BY file_url`, siteURL, userID)
	if err != nil {
		return nil, wrapDBError("list site files", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*types.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, wrapDBError("list site files", err)
		}
		files = append(files, f)
	}
	return files, wrapDBError("list site files", rows.Err())
}

// GetFile returns one file row, tombstoned or not.
func (s *SQLiteStore) GetFile(ctx context.Context, fileURL, userID string) (*types.File, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT file_url, user_id, site_url, schema_map, last_read_time, number_of_items, is_manual, is_active
		FROM files WHERE file_url = ? AND user_id = ?`, fileURL, userID)
	f, err := scanFile(row)
	if err != nil {
		return nil, wrapDBErrorf(err, "get file %s", fileURL)
	}
	return f, nil
}

// AddManualFile registers a hand-added payload file outside any schema map.
// Manual files use schema_map="manual", which keeps them invisible to
// DiffSiteFiles for real maps.
func (s *SQLiteStore) AddManualFile(ctx context.Context, siteURL, userID, fileURL string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (file_url, user_id, site_url, schema_map, number_of_items, is_manual, is_active)
		VALUES (?, ?, ?, ?, 0, 1, 1)
		ON CONFLICT(file_url, user_id) DO UPDATE SET
			is_active = 1,
			is_manual = 1,
			site_url = excluded.site_url,
			schema_map = excluded.schema_map`,
		fileURL, userID, siteURL, types.ManualSchemaMap)
	return wrapDBErrorf(err, "add manual file %s", fileURL)
}

// DeleteFile hard-deletes a file row and any id rows still attached, so an
// id row never outlives its file.
func (s *SQLiteStore) DeleteFile(ctx context.Context, fileURL, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError("delete file", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ids WHERE file_url = ? AND user_id = ?`, fileURL, userID); err != nil {
		return wrapDBError("delete file ids", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM files WHERE file_url = ? AND user_id = ?`, fileURL, userID); err != nil {
		return wrapDBError("delete file", err)
	}
	return wrapDBError("delete file", tx.Commit())
}

func scanFile(sc scanner) (*types.File, error) {
	var f types.File
	var lastRead sql.NullTime
	var isManual, isActive int
	if err := sc.Scan(&f.FileURL, &f.UserID, &f.SiteURL, &f.SchemaMap,
		&lastRead, &f.NumberOfItems, &isManual, &isActive); err != nil {
		return nil, err
	}
	if lastRead.Valid {
		t := lastRead.Time.UTC()
		f.LastReadTime = &t
	}
	f.IsManual = isManual != 0
	f.IsActive = isActive != 0
	return &f, nil
}
