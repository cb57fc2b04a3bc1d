package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/schemascout/schemascout/internal/types"
)

// deleteBatchSize bounds IN-clause deletes so statements stay well under
// backend parameter limits.
const deleteBatchSize = 500

// DiffFileIDs reconciles the authoritative id set of a payload against the
// ids table for (file, user): inserts missing rows, deletes extraneous rows
// in batches (an empty newIDs takes the wildcard path), then stamps
// last_read_time and number_of_items. Ref counts for added and removed ids
// are read inside the same transaction, so gating decisions observe the
// post-diff state.
func (s *SQLiteStore) DiffFileIDs(ctx context.Context, fileURL, userID string, newIDs []string) (*types.IDDiff, error) {
	// Dedupe preserving first-seen order.
	seen := make(map[string]bool, len(newIDs))
	ordered := make([]string, 0, len(newIDs))
	for _, id := range newIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDBError("diff file ids", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM ids WHERE file_url = ? AND user_id = ?`, fileURL, userID)
	if err != nil {
		return nil, wrapDBError("diff file ids", err)
	}
	current := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, wrapDBError("diff file ids", err)
		}
		current[id] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapDBError("diff file ids", err)
	}
	_ = rows.Close()

	var added []string
	for _, id := range ordered {
		if !current[id] {
			added = append(added, id)
		}
	}
	var removed []string
	for id := range current {
		if !seen[id] {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)

	// Insert missing rows, multi-row batches. INSERT OR IGNORE keeps a
	// redelivered job from tripping on rows a sibling already wrote.
	for i := 0; i < len(added); i += deleteBatchSize {
		end := i + deleteBatchSize
		if end > len(added) {
			end = len(added)
		}
		batch := added[i:end]
		values := strings.TrimSuffix(strings.Repeat("(?, ?, ?),", len(batch)), ",")
		args := make([]interface{}, 0, len(batch)*3)
		for _, id := range batch {
			args = append(args, fileURL, userID, id)
		}
		query := fmt.Sprintf(
			`INSERT OR IGNORE INTO ids (file_url, user_id, id) VALUES %s`, values)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, wrapDBError("diff file ids: insert", err)
		}
	}

	if len(ordered) == 0 {
		// Wildcard path: the payload is empty, drop everything at once.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM ids WHERE file_url = ? AND user_id = ?`, fileURL, userID); err != nil {
			return nil, wrapDBError("diff file ids: clear", err)
		}
	} else {
		for i := 0; i < len(removed); i += deleteBatchSize {
			end := i + deleteBatchSize
			if end > len(removed) {
				end = len(removed)
			}
			batch := removed[i:end]
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
			args := make([]interface{}, 0, len(batch)+2)
			args = append(args, fileURL, userID)
			for _, id := range batch {
				args = append(args, id)
			}
			query := fmt.Sprintf(
				`DELETE FROM ids WHERE file_url = ? AND user_id = ? AND id IN (%s)`, placeholders)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return nil, wrapDBError("diff file ids: delete", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE files SET last_read_time = ?, number_of_items = ?
		WHERE file_url = ? AND user_id = ?`,
		time.Now().UTC(), len(ordered), fileURL, userID); err != nil {
		return nil, wrapDBError("diff file ids: stamp file", err)
	}

	addedRefs, err := refCountsTx(ctx, tx, userID, added)
	if err != nil {
		return nil, err
	}
	removedRefs, err := refCountsTx(ctx, tx, userID, removed)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapDBError("diff file ids", err)
	}
	return &types.IDDiff{Added: addedRefs, Removed: removedRefs}, nil
}

// refCountsTx reads per-user reference counts for a set of ids inside the
// reconciling transaction. Ids with no remaining rows come back as 0.
func refCountsTx(ctx context.Context, tx *sql.Tx, userID string, ids []string) ([]types.IDRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	counts := make(map[string]int, len(ids))
	for i := 0; i < len(ids); i += deleteBatchSize {
		end := i + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]interface{}, 0, len(batch)+1)
		args = append(args, userID)
		for _, id := range batch {
			args = append(args, id)
		}
		query := fmt.Sprintf(
			`SELECT id, COUNT(*) FROM ids WHERE user_id = ? AND id IN (%s) GROUP BY id`, placeholders)
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, wrapDBError("ref counts", err)
		}
		for rows.Next() {
			var id string
			var n int
			if err := rows.Scan(&id, &n); err != nil {
				_ = rows.Close()
				return nil, wrapDBError("ref counts", err)
			}
			counts[id] = n
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, wrapDBError("ref counts", err)
		}
		_ = rows.Close()
	}

	refs := make([]types.IDRef, len(ids))
	for i, id := range ids {
		refs[i] = types.IDRef{ID: id, RefCount: counts[id]}
	}
	return refs, nil
}

// ListFileIDs returns the ids currently recorded for a file.
func (s *SQLiteStore) ListFileIDs(ctx context.Context, fileURL, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM ids WHERE file_url = ? AND user_id = ? ORDER BY id`, fileURL, userID)
	if err != nil {
		return nil, wrapDBError("list file ids", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("list file ids", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapDBError("list file ids", rows.Err())
}

// RefCount returns how many files of this user currently list the id.
func (s *SQLiteStore) RefCount(ctx context.Context, id, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ids WHERE user_id = ? AND id = ?`, userID, id).Scan(&n)
	if err != nil {
		return 0, wrapDBError("ref count", err)
	}
	return n, nil
}
