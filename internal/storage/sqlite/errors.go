package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/schemascout/schemascout/internal/storage"
)

// wrapDBError wraps a database error with operation context. sql.ErrNoRows
// becomes storage.ErrNotFound, closed/lost connections become
// storage.ErrUnavailable, and unique violations become storage.ErrDuplicate,
// so callers can branch with errors.Is regardless of backend.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if isConnErr(err) {
		return fmt.Errorf("%s: %v: %w", op, err, storage.ErrUnavailable)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint") {
		return fmt.Errorf("%s: %v: %w", op, err, storage.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// wrapDBErrorf is wrapDBError with a formatted operation string.
func wrapDBErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return wrapDBError(fmt.Sprintf(format, args...), err)
}

func isConnErr(err error) bool {
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "connection is already closed")
}
