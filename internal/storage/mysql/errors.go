package mysql

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/schemascout/schemascout/internal/storage"
)

// Server error numbers that matter to callers.
const (
	errDupEntry       = 1062 // ER_DUP_ENTRY
	errServerShutdown = 1053 // ER_SERVER_SHUTDOWN
	errServerGone     = 1077 // ER_NORMAL_SHUTDOWN
)

// wrapDBError wraps a database error with operation context. sql.ErrNoRows
// becomes storage.ErrNotFound, lost connections become
// storage.ErrUnavailable, and duplicate keys become storage.ErrDuplicate,
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
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == errDupEntry {
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

// isConnErr reports whether err indicates the server connection is gone.
// SQLSTATE class 08 is the standard communication-link-failure class.
func isConnErr(err error) bool {
	if errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errServerShutdown, errServerGone:
			return true
		}
		if me.SQLState[0] == '0' && me.SQLState[1] == '8' {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "invalid connection") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}
