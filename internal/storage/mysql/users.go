package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/types"
)

// GetOrCreateUser returns the existing user row, or inserts one with a
// fresh API key. Email, name and provider from the input are stored on
// insert only; an existing row wins.
func (s *MySQLStore) GetOrCreateUser(ctx context.Context, u *types.User) (*types.User, error) {
	if u == nil || u.UserID == "" {
		return nil, fmt.Errorf("get or create user: %w", storage.ErrNotFound)
	}

	existing, err := s.GetUser(ctx, u.UserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	apiKey := u.APIKey
	if apiKey == "" {
		apiKey, err = types.NewAPIKey()
		if err != nil {
			return nil, fmt.Errorf("get or create user: %w", err)
		}
	}

	// A concurrent first login may have inserted the row since the read;
	// the no-op upsert keeps that row and the re-read below returns it.
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, email, name, provider, api_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE user_id = users.user_id`,
		u.UserID, u.Email, u.Name, u.Provider, apiKey, time.Now().UTC()); err != nil {
		return nil, wrapDBErrorf(err, "create user %s", u.UserID)
	}
	return s.GetUser(ctx, u.UserID)
}

// GetUser returns the user row or storage.ErrNotFound.
func (s *MySQLStore) GetUser(ctx context.Context, userID string) (*types.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, email, name, provider, api_key, created_at, last_login
		FROM users WHERE user_id = ?`, userID)
	u, err := scanUser(row)
	if err != nil {
		return nil, wrapDBErrorf(err, "get user %s", userID)
	}
	return u, nil
}

// GetUserByAPIKey resolves an API key to its user.
func (s *MySQLStore) GetUserByAPIKey(ctx context.Context, apiKey string) (*types.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, email, name, provider, api_key, created_at, last_login
		FROM users WHERE api_key = ?`, apiKey)
	u, err := scanUser(row)
	if err != nil {
		return nil, wrapDBError("get user by api key", err)
	}
	return u, nil
}

// UpdateUserLogin stamps users.last_login.
func (s *MySQLStore) UpdateUserLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE user_id = ?`, at.UTC(), userID)
	if err != nil {
		return wrapDBError("update user login", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrapDBError("update user login", sql.ErrNoRows)
	}
	return nil
}

func scanUser(sc scanner) (*types.User, error) {
	var u types.User
	var lastLogin sql.NullTime
	if err := sc.Scan(&u.UserID, &u.Email, &u.Name, &u.Provider, &u.APIKey,
		&u.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		u.LastLogin = &t
	}
	return &u, nil
}
