// Package mysql implements the storage interface on a MySQL server.
//
// This is the production backend. The schema mirrors the sqlite backend
// with key columns bounded to VARCHAR so composite indexes stay under
// InnoDB's index-size limit.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/schemascout/schemascout/internal/storage"
)

// Config carries the connection settings for a MySQL server.
type Config struct {
	Server   string // host or host:port
	Database string
	Username string
	Password string
	TLS      bool
}

// MySQLStore implements storage.Store on a MySQL database.
type MySQLStore struct {
	db        *sql.DB
	cfg       *Config
	siteLocks *storage.SiteLocks
	closed    atomic.Bool
}

var _ storage.Store = (*MySQLStore)(nil)

var databaseNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// buildDSN constructs a MySQL DSN. An empty database connects without
// selecting one, for bootstrap operations.
func buildDSN(cfg *Config, database string) string {
	var userPart string
	if cfg.Password != "" {
		userPart = fmt.Sprintf("%s:%s", cfg.Username, cfg.Password)
	} else {
		userPart = cfg.Username
	}

	host := cfg.Server
	if !strings.Contains(host, ":") {
		host += ":3306"
	}

	// clientFoundRows makes UPDATE RowsAffected mean "matched", so the
	// zero-rows checks behave like the sqlite backend.
	params := "parseTime=true&loc=UTC&clientFoundRows=true"
	if cfg.TLS {
		params += "&tls=true"
	}

	return fmt.Sprintf("%s@tcp(%s)/%s?%s", userPart, host, database, params)
}

// New opens a connection pool to the configured server, creating the
// database and schema when absent.
func New(ctx context.Context, cfg *Config) (*MySQLStore, error) {
	if cfg.Server == "" {
		return nil, fmt.Errorf("mysql: server is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mysql: database is required")
	}
	if !databaseNameRe.MatchString(cfg.Database) {
		return nil, fmt.Errorf("mysql: invalid database name %q", cfg.Database)
	}

	// Bootstrap connection without a database so the first run can create it.
	initDB, err := sql.Open("mysql", buildDSN(cfg, ""))
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to open init connection: %w", err)
	}
	_, err = initDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.Database)) //nolint:gosec // G201: database name validated above
	cerr := initDB.Close()
	if err != nil {
		return nil, wrapDBError("create database", err)
	}
	if cerr != nil {
		return nil, fmt.Errorf("mysql: failed to close init connection: %w", cerr)
	}

	db, err := sql.Open("mysql", buildDSN(cfg, cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to open connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrapDBError("ping", err)
	}

	// MySQL doesn't support multiple statements in one Exec; run the
	// schema statement by statement.
	for _, stmt := range splitStatements(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, wrapDBErrorf(err, "create schema: %s", truncateForError(stmt))
		}
	}

	return &MySQLStore{
		db:        db,
		cfg:       cfg,
		siteLocks: storage.NewSiteLocks(),
	}, nil
}

// splitStatements breaks a schema blob into individual statements,
// dropping empties and comment-only fragments.
func splitStatements(blob string) []string {
	var stmts []string
	for _, raw := range strings.Split(blob, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" || isOnlyComments(stmt) {
			continue
		}
		stmts = append(stmts, stmt)
	}
	return stmts
}

func isOnlyComments(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		return false
	}
	return true
}

func truncateForError(stmt string) string {
	stmt = strings.Join(strings.Fields(stmt), " ")
	if len(stmt) > 80 {
		return stmt[:80] + "..."
	}
	return stmt
}

// Ping verifies the connection is alive.
func (s *MySQLStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return storage.ErrUnavailable
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %v: %w", err, storage.ErrUnavailable)
	}
	return nil
}

// Close releases the connection pool. Safe to call more than once.
func (s *MySQLStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
