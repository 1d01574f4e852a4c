package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/vbonduro/kioskinstall/internal/auth"
	"github.com/vbonduro/kioskinstall/internal/domain"
	"github.com/vbonduro/kioskinstall/internal/service"
)

type ctxKey int

const (
	userKey ctxKey = iota
	tokenKey
)

func userFrom(ctx context.Context) domain.User {
	u, _ := ctx.Value(userKey).(domain.User)
	return u
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// requireRole resolves the session and rejects users without role. An empty
// role admits any signed-in user. Browsers are sent to the login page, API
// calls get a status code.
func (s *Server) requireRole(role domain.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		user, err := s.auth.Resolve(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrSessionExpired):
				s.forget(r.Context(), token)
			case !errors.Is(err, auth.ErrNoSession):
				s.logger.Error("resolve session failed", "error", err)
			}
			if r.Method == http.MethodGet {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			http.Error(w, "sign in required", http.StatusUnauthorized)
			return
		}
		if role != "" && user.Role != role {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, *user)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func homeFor(role domain.Role) string {
	if role == domain.RoleAdmin {
		return "/admin"
	}
	return "/workflow"
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	user, err := s.auth.Resolve(r.Context(), token)
	if errors.Is(err, auth.ErrSessionExpired) {
		s.forget(r.Context(), token)
	}
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, homeFor(user.Role), http.StatusSeeOther)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if err := s.renderPage(w, map[string]any{}, "base.html", "pages/login.html"); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	role, err := domain.ParseRole(r.FormValue("role"))
	if err != nil {
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	session, err := s.auth.Login(r.Context(), role)
	if err != nil {
		http.Error(w, "failed to sign in", http.StatusInternalServerError)
		s.logger.Error("login failed", "role", role, "error", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	http.Redirect(w, r, homeFor(role), http.StatusSeeOther)
}

// handleLogout ends the session. Any unfinished workflow is abandoned.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token != "" {
		s.forget(r.Context(), token)
		if err := s.auth.Logout(r.Context(), token); err != nil {
			s.logger.Error("logout failed", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// forget releases everything held for a session that has ended: its
// unfinished workflow, with the photos taken so far, and its last report.
func (s *Server) forget(ctx context.Context, token string) {
	if err := s.workflows.Discard(ctx, token); err != nil && !errors.Is(err, service.ErrNoWorkflow) {
		s.logger.Error("discard workflow failed", "error", err)
	}
	s.mu.Lock()
	delete(s.reports, token)
	s.mu.Unlock()
}

// PurgeExpired removes expired sessions and the state kept for them. It
// returns how many sessions were removed.
func (s *Server) PurgeExpired(ctx context.Context) (int, error) {
	tokens, err := s.auth.Purge(ctx)
	if err != nil {
		return 0, err
	}
	for _, token := range tokens {
		s.forget(ctx, token)
	}
	return len(tokens), nil
}
