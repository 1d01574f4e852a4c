package web

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vbonduro/kioskinstall/internal/admin"
	"github.com/vbonduro/kioskinstall/internal/auth"
	"github.com/vbonduro/kioskinstall/internal/domain"
	"github.com/vbonduro/kioskinstall/internal/photostore"
	"github.com/vbonduro/kioskinstall/internal/report"
	"github.com/vbonduro/kioskinstall/internal/service"
	"github.com/vbonduro/kioskinstall/internal/watermark"
)

const sessionCookie = "kiosk_session"

type reportExporter interface {
	Export(ctx context.Context, project domain.Project, store domain.Store) (*report.Document, error)
}

// Deps are the collaborators the HTTP surface is built on.
type Deps struct {
	Auth       auth.Authenticator
	Workflows  *service.WorkflowService
	Overview   *admin.Overview
	Exporter   reportExporter
	PhotoStore photostore.PhotoStore
	Templates  fs.FS
	Logger     *slog.Logger
}

type Server struct {
	auth       auth.Authenticator
	workflows  *service.WorkflowService
	overview   *admin.Overview
	exporter   reportExporter
	photoStore photostore.PhotoStore
	templates  fs.FS
	mux        *http.ServeMux
	tmplFuncs  template.FuncMap
	logger     *slog.Logger

	mu      sync.Mutex
	reports map[string]*report.Document // last finished report per session
}

func NewServer(d Deps) *Server {
	s := &Server{
		auth:       d.Auth,
		workflows:  d.Workflows,
		overview:   d.Overview,
		exporter:   d.Exporter,
		photoStore: d.PhotoStore,
		templates:  d.Templates,
		mux:        http.NewServeMux(),
		logger:     d.Logger,
		reports:    make(map[string]*report.Document),
		tmplFuncs: template.FuncMap{
			"inc":      func(i int) int { return i + 1 },
			"sub":      func(a, b int) int { return a - b },
			"lower":    strings.ToLower,
			"location": watermark.FormatLocation,
			"date": func(t time.Time) string {
				return t.Format("Jan 2, 2006")
			},
			"datetime": func(t *time.Time) string {
				if t == nil {
					return ""
				}
				return t.Format("Jan 2, 2006 3:04 PM")
			},
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)

	field := func(h http.HandlerFunc) http.Handler { return s.requireRole(domain.RoleFieldUser, h) }
	s.mux.Handle("GET /workflow", field(s.handleWorkflowPage))
	s.mux.Handle("POST /workflow/store", field(s.handleSelectStore))
	s.mux.Handle("POST /workflow/advance", field(s.handleAdvance))
	s.mux.Handle("POST /workflow/back", field(s.handleBack))
	s.mux.Handle("POST /workflow/capture/{category}/location", field(s.handleLocation))
	s.mux.Handle("POST /workflow/capture/{category}/camera-error", field(s.handleCameraError))
	s.mux.Handle("POST /workflow/capture/{category}", field(s.handleCapture))
	s.mux.Handle("POST /workflow/finish", field(s.handleFinish))
	s.mux.Handle("POST /workflow/discard", field(s.handleDiscard))
	s.mux.Handle("GET /workflow/report", field(s.handleLastReport))

	adminOnly := func(h http.HandlerFunc) http.Handler { return s.requireRole(domain.RoleAdmin, h) }
	s.mux.Handle("GET /admin", adminOnly(s.handleAdminPage))
	s.mux.Handle("GET /admin/projects", adminOnly(s.handleProjectList))
	s.mux.Handle("GET /admin/projects/{id}", adminOnly(s.handleProjectDetail))
	s.mux.Handle("GET /admin/projects/{id}/report", adminOnly(s.handleProjectReport))
	s.mux.Handle("POST /admin/projects/{id}/audit", adminOnly(s.handleAudit))

	s.mux.Handle("GET /photos/{key...}", s.requireRole("", http.HandlerFunc(s.handleGetPhoto)))
}

// securityHeaders adds defensive HTTP response headers to every response.
// Camera and geolocation are allowed for this origin only.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(self), geolocation=(self)")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline' https://unpkg.com; "+
				"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; "+
				"font-src https://fonts.gstatic.com; "+
				"img-src 'self' data: blob: https://ui-avatars.com; "+
				"media-src 'self' blob:; "+
				"connect-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// renderPage parses and executes a full-page template set.
func (s *Server) renderPage(w http.ResponseWriter, data any, files ...string) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tmpl.ExecuteTemplate(w, "base", data)
}

// renderPartial parses and executes a single named partial template.
// The file must contain exactly one {{define "name"}}...{{end}} block.
func (s *Server) renderPartial(w http.ResponseWriter, file string, data any) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, file)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	basename := file
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		basename = file[idx+1:]
	}
	for _, t := range tmpl.Templates() {
		if n := t.Name(); n != "" && n != basename {
			return t.Execute(w, data)
		}
	}
	return tmpl.ExecuteTemplate(w, basename, data)
}
