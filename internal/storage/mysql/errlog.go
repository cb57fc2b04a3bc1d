package mysql

import (
	"context"
	"time"

	"github.com/schemascout/schemascout/internal/types"
)

// LogError appends a processing error for a file.
func (s *MySQLStore) LogError(ctx context.Context, perr *types.ProcessingError) error {
	at := perr.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_errors (file_url, user_id, error_type, error_message, error_details, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		perr.FileURL, perr.UserID, perr.ErrorType, perr.ErrorMessage, perr.ErrorDetails, at.UTC())
	return wrapDBError("log error", err)
}

// ClearErrors removes all processing errors for a file. Called after a
// successful process run.
func (s *MySQLStore) ClearErrors(ctx context.Context, fileURL, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM processing_errors WHERE file_url = ? AND user_id = ?`, fileURL, userID)
	return wrapDBError("clear errors", err)
}

// ListErrors returns the processing errors for a file, newest first.
func (s *MySQLStore) ListErrors(ctx context.Context, fileURL, userID string) ([]*types.ProcessingError, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_url, user_id, error_type, error_message, error_details, occurred_at
		FROM processing_errors
		WHERE file_url = ? AND user_id = ?
		ORDER BY occurred_at DESC, id DESC`, fileURL, userID)
	if err != nil {
		return nil, wrapDBError("list errors", err)
	}
	defer func() { _ = rows.Close() }()

	var errs []*types.ProcessingError
	for rows.Next() {
		var e types.ProcessingError
		if err := rows.Scan(&e.ID, &e.FileURL, &e.UserID, &e.ErrorType,
			&e.ErrorMessage, &e.ErrorDetails, &e.OccurredAt); err != nil {
			return nil, wrapDBError("list errors", err)
		}
		e.OccurredAt = e.OccurredAt.UTC()
		errs = append(errs, &e)
	}
	return errs, wrapDBError("list errors", rows.Err())
}
