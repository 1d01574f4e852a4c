package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vbonduro/kioskinstall/internal/domain"
)

// SessionStore maps a session token to the signed-in user.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Set stores user under token, replacing any earlier value.
func (s *SessionStore) Set(ctx context.Context, token string, user domain.User, expiresAt time.Time) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			user_data  = excluded.user_data,
			expires_at = excluded.expires_at
	`, token, string(data), expiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get returns the user and expiry for token. A missing token yields nil.
func (s *SessionStore) Get(ctx context.Context, token string) (*domain.User, time.Time, error) {
	var (
		data      string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_data, expires_at FROM sessions WHERE token = ?
	`, token).Scan(&data, &expiresAt)

	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to get session: %w", err)
	}

	user := &domain.User{}
	if err := json.Unmarshal([]byte(data), user); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode session user: %w", err)
	}
	return user, time.Unix(expiresAt, 0), nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes sessions whose expiry is at or before now and returns
// their tokens.
func (s *SessionStore) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM sessions WHERE expires_at <= ? RETURNING token
	`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to purge sessions: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan purged session: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return tokens, nil
}
