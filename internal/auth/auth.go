// Package auth issues and resolves signed-in sessions. Workflow and admin
// code only see the resolved domain.User and its role.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/vbonduro/kioskinstall/internal/clock"
	"github.com/vbonduro/kioskinstall/internal/domain"
	"github.com/vbonduro/kioskinstall/internal/store"
)

var (
	ErrSessionExpired = errors.New("session expired")
	ErrNoSession      = errors.New("no session")
)

type Session struct {
	Token     string
	User      domain.User
	ExpiresAt time.Time
}

type Authenticator interface {
	Login(ctx context.Context, role domain.Role) (*Session, error)
	Resolve(ctx context.Context, token string) (*domain.User, error)
	Logout(ctx context.Context, token string) error
	// Purge drops expired sessions and returns their tokens so state kept
	// per session can be released.
	Purge(ctx context.Context) ([]string, error)
}

// SessionStore is the subset of store.SessionStore the authenticator needs.
type SessionStore interface {
	Set(ctx context.Context, token string, user domain.User, expiresAt time.Time) error
	Get(ctx context.Context, token string) (*domain.User, time.Time, error)
	Delete(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context, now time.Time) ([]string, error)
}

var _ SessionStore = (*store.SessionStore)(nil)

// MockAuthenticator signs in one of two fixed demo identities chosen by
// role. Sessions are real: random tokens with an expiry.
type MockAuthenticator struct {
	sessions SessionStore
	clock    clock.Clock
	ttl      time.Duration
	logger   *slog.Logger
}

var _ Authenticator = (*MockAuthenticator)(nil)

func NewMockAuthenticator(sessions SessionStore, clk clock.Clock, ttl time.Duration, logger *slog.Logger) *MockAuthenticator {
	return &MockAuthenticator{sessions: sessions, clock: clk, ttl: ttl, logger: logger}
}

// DemoUser returns the fixed identity for role.
func DemoUser(role domain.Role) (domain.User, error) {
	switch role {
	case domain.RoleAdmin:
		return domain.User{
			ID:        "admin_001",
			Name:      "Admin User",
			Email:     "admin@kioskpro.com",
			Role:      domain.RoleAdmin,
			AvatarURL: avatarURL("Admin"),
		}, nil
	case domain.RoleFieldUser:
		return domain.User{
			ID:        "field_001",
			Name:      "Field Technician",
			Email:     "tech@kioskpro.com",
			Role:      domain.RoleFieldUser,
			AvatarURL: avatarURL("Tech"),
		}, nil
	}
	return domain.User{}, fmt.Errorf("unknown role %q", role)
}

func avatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}

func (a *MockAuthenticator) Login(ctx context.Context, role domain.Role) (*Session, error) {
	user, err := DemoUser(role)
	if err != nil {
		return nil, err
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	expiresAt := a.clock.Now().Add(a.ttl)
	if err := a.sessions.Set(ctx, token, user, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	a.logger.Info("user signed in", "user_id", user.ID, "role", user.Role)
	return &Session{Token: token, User: user, ExpiresAt: expiresAt}, nil
}

func (a *MockAuthenticator) Resolve(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	user, expiresAt, err := a.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoSession
	}
	if !a.clock.Now().Before(expiresAt) {
		if err := a.sessions.Delete(ctx, token); err != nil {
			a.logger.Warn("failed to drop expired session", "error", err)
		}
		return nil, ErrSessionExpired
	}
	return user, nil
}

func (a *MockAuthenticator) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return a.sessions.Delete(ctx, token)
}

func (a *MockAuthenticator) Purge(ctx context.Context) ([]string, error) {
	return a.sessions.PurgeExpired(ctx, a.clock.Now())
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
