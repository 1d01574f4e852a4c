// Package admin derives the dashboard view over all stored projects.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/vbonduro/kioskinstall/internal/audit"
	"github.com/vbonduro/kioskinstall/internal/catalog"
	"github.com/vbonduro/kioskinstall/internal/domain"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrAuditInFlight   = errors.New("an audit is already running for this project")
)

// projectRepository is the subset of store.ProjectRepository the overview requires.
type projectRepository interface {
	List(ctx context.Context) ([]*domain.Project, error)
	Upsert(ctx context.Context, p *domain.Project) error
}

type auditor interface {
	Audit(ctx context.Context, images []domain.CapturedImage) string
}

// Entry is a project joined with its store. Store is zero when the
// project's store is no longer in the directory.
type Entry struct {
	Project domain.Project
	Store   domain.Store
}

func (e Entry) searchText() string {
	return strings.ToLower(e.Store.StoreName + " " + e.Store.District)
}

// Verdict is the grade of the latest audit, UNKNOWN when none has run.
func (e Entry) Verdict() audit.Verdict {
	if e.Project.Audit == "" || audit.Failed(e.Project.Audit) {
		return audit.VerdictUnknown
	}
	return audit.ParseVerdict(e.Project.Audit)
}

type AuditResult struct {
	Text    string
	Verdict audit.Verdict
	// SaveErr is set when the audit ran but could not be persisted. The
	// in-memory entry still carries the new text.
	SaveErr error
}

// Overview holds the loaded project list. The list is replaced wholesale on
// every change, so slices returned earlier are never modified.
type Overview struct {
	projects projectRepository
	stores   catalog.Directory
	auditor  auditor
	logger   *slog.Logger

	mu       sync.RWMutex
	entries  []Entry
	inFlight map[string]bool
}

func NewOverview(projects projectRepository, stores catalog.Directory, auditor auditor, logger *slog.Logger) *Overview {
	return &Overview{
		projects: projects,
		stores:   stores,
		auditor:  auditor,
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// Load reads every project once and joins each with its store.
func (o *Overview) Load(ctx context.Context) error {
	projects, err := o.projects.List(ctx)
	if err != nil {
		return err
	}
	entries := make([]Entry, 0, len(projects))
	for _, p := range projects {
		entries = append(entries, o.entry(*p))
	}

	o.mu.Lock()
	o.entries = entries
	o.mu.Unlock()
	return nil
}

func (o *Overview) entry(p domain.Project) Entry {
	store, err := o.stores.Get(p.StoreID)
	if err != nil {
		o.logger.Warn("project references unknown store", "project_id", p.ID, "store_id", p.StoreID)
	}
	return Entry{Project: p, Store: store}
}

func (o *Overview) Entries() []Entry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.entries
}

func (o *Overview) Stats() domain.DashboardStats {
	entries := o.Entries()
	stats := domain.DashboardStats{Total: len(entries)}
	for _, e := range entries {
		switch e.Project.Status {
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusPending:
			stats.Pending++
		}
	}
	return stats
}

// Filter matches query case-insensitively against "storeName district".
// The query is used as typed, spaces included. An empty query matches
// everything.
func (o *Overview) Filter(query string) []Entry {
	entries := o.Entries()
	q := strings.ToLower(query)
	if q == "" {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		if strings.Contains(e.searchText(), q) {
			out = append(out, e)
		}
	}
	return out
}

func (o *Overview) Find(id string) (Entry, bool) {
	for _, e := range o.Entries() {
		if e.Project.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// RequestAudit grades the project's AFTER images, saves the text on the
// project and swaps the updated entry into the list. Only one audit per
// project runs at a time.
func (o *Overview) RequestAudit(ctx context.Context, id string) (*AuditResult, error) {
	o.mu.Lock()
	if o.inFlight[id] {
		o.mu.Unlock()
		return nil, ErrAuditInFlight
	}
	var (
		target domain.Project
		found  bool
	)
	for _, e := range o.entries {
		if e.Project.ID == id {
			target, found = e.Project, true
			break
		}
	}
	if !found {
		o.mu.Unlock()
		return nil, ErrProjectNotFound
	}
	o.inFlight[id] = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inFlight, id)
		o.mu.Unlock()
	}()

	text := o.auditor.Audit(ctx, target.Images.After)
	target.Audit = text
	result := &AuditResult{Text: text, Verdict: Entry{Project: target}.Verdict()}

	if err := o.projects.Upsert(ctx, &target); err != nil {
		o.logger.Error("failed to save audit", "project_id", id, "error", err)
		result.SaveErr = err
	}
	o.replace(target)

	o.logger.Info("audit completed", "project_id", id, "verdict", result.Verdict)
	return result, nil
}

func (o *Overview) replace(p domain.Project) {
	o.mu.Lock()
	defer o.mu.Unlock()
	next := make([]Entry, len(o.entries))
	copy(next, o.entries)
	for i := range next {
		if next[i].Project.ID == p.ID {
			next[i].Project = p
		}
	}
	o.entries = next
}
