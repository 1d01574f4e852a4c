package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/kioskinstall/internal/admin"
	"github.com/vbonduro/kioskinstall/internal/audit"
	claudeaudit "github.com/vbonduro/kioskinstall/internal/audit/claude"
	ollamaaudit "github.com/vbonduro/kioskinstall/internal/audit/ollama"
	"github.com/vbonduro/kioskinstall/internal/auth"
	"github.com/vbonduro/kioskinstall/internal/catalog"
	"github.com/vbonduro/kioskinstall/internal/clock"
	"github.com/vbonduro/kioskinstall/internal/config"
	"github.com/vbonduro/kioskinstall/internal/db"
	"github.com/vbonduro/kioskinstall/internal/logging"
	"github.com/vbonduro/kioskinstall/internal/photostore"
	"github.com/vbonduro/kioskinstall/internal/photostore/local"
	"github.com/vbonduro/kioskinstall/internal/photostore/s3"
	"github.com/vbonduro/kioskinstall/internal/photostore/sealed"
	"github.com/vbonduro/kioskinstall/internal/report"
	"github.com/vbonduro/kioskinstall/internal/service"
	"github.com/vbonduro/kioskinstall/internal/store"
)

// app holds everything the commands share. The caller must defer Close.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	stores   catalog.Directory
	projects store.ProjectRepository
	photos   photostore.PhotoStore
	exporter *report.Exporter
	auth     *auth.MockAuthenticator
	overview *admin.Overview
	clock    clock.Clock

	closeLog func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, clock: clock.RealClock{}, closeLog: closeLog}

	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	database, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.db = database

	if a.stores, err = newDirectory(a.cfg); err != nil {
		return err
	}
	if a.projects, err = newProjectRepository(a.cfg, database); err != nil {
		return err
	}
	if a.photos, err = newPhotoStore(ctx, a.cfg, a.logger); err != nil {
		return err
	}

	a.exporter = report.NewExporter(a.photos, a.clock, a.logger)
	a.auth = auth.NewMockAuthenticator(store.NewSessionStore(database), a.clock, a.cfg.SessionTTL, a.logger)
	requester := audit.NewRequester(newAuditModel(a.cfg, a.logger), a.photos, a.logger)
	a.overview = admin.NewOverview(a.projects, a.stores, requester, a.logger)
	return nil
}

func (a *app) workflows() *service.WorkflowService {
	return service.NewWorkflowService(a.projects, a.stores, a.exporter, a.photos, a.clock, clock.UUIDGenerator{}, a.cfg.ReportDir, a.logger)
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}
	a.closeLog()
}

func newDirectory(cfg *config.Config) (catalog.Directory, error) {
	if cfg.StoresFile == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(cfg.StoresFile)
}

func newProjectRepository(cfg *config.Config, database *sql.DB) (store.ProjectRepository, error) {
	switch cfg.ProjectBackend {
	case "sqlite", "":
		return store.NewProjectStore(database), nil
	case "file":
		return store.NewFileProjectStore(cfg.ProjectFile)
	default:
		return nil, fmt.Errorf("unknown PROJECT_BACKEND %q", cfg.ProjectBackend)
	}
}

func newPhotoStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (photostore.PhotoStore, error) {
	var (
		ps  photostore.PhotoStore
		err error
	)
	switch cfg.PhotoBackend {
	case "local", "":
		ps, err = local.NewLocalPhotoStore(cfg.PhotoPath)
	case "s3":
		ps, err = s3.New(ctx, s3.Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown PHOTO_BACKEND %q", cfg.PhotoBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing photo store: %w", err)
	}
	logger.Info("using photo backend", "backend", cfg.PhotoBackend)

	if cfg.PhotoAgeKey == "" {
		return ps, nil
	}
	identity, err := sealed.LoadIdentity(cfg.PhotoAgeKey)
	if err != nil {
		return nil, fmt.Errorf("loading photo key: %w", err)
	}
	logger.Info("photos are encrypted at rest", "recipient", identity.Recipient().String())
	return sealed.New(ps, identity), nil
}

// newAuditModel returns nil when the chosen backend has no credential, which
// makes every audit report the missing key instead of failing.
func newAuditModel(cfg *config.Config, logger *slog.Logger) audit.Model {
	switch cfg.AuditBackend {
	case "ollama":
		logger.Info("using Ollama audit backend", "model", cfg.OllamaModel)
		return ollamaaudit.NewOllamaAuditor(cfg.OllamaHost, cfg.OllamaModel)
	default:
		if cfg.ClaudeAPIKey == "" {
			logger.Warn("CLAUDE_API_KEY is not set; AI audits are disabled")
			return nil
		}
		logger.Info("using Claude audit backend", "model", cfg.ClaudeModel)
		return claudeaudit.NewClaudeAuditor(cfg.ClaudeAPIKey, cfg.ClaudeModel)
	}
}
