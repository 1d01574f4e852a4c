package web

import (
	"errors"
	"net/http"

	"github.com/vbonduro/kioskinstall/internal/admin"
	"github.com/vbonduro/kioskinstall/internal/domain"
)

type adminView struct {
	User    domain.User
	Stats   domain.DashboardStats
	Entries []admin.Entry
	Query   string
}

func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	if err := s.overview.Load(r.Context()); err != nil {
		http.Error(w, "failed to load projects", http.StatusInternalServerError)
		s.logger.Error("load projects failed", "error", err)
		return
	}

	q := r.URL.Query().Get("q")
	v := adminView{
		User:    userFrom(r.Context()),
		Stats:   s.overview.Stats(),
		Entries: s.overview.Filter(q),
		Query:   q,
	}
	if err := s.renderPage(w, v, "base.html", "pages/admin.html", "partials/project_list.html"); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

// handleProjectList re-filters the already loaded list for the search box.
func (s *Server) handleProjectList(w http.ResponseWriter, r *http.Request) {
	if s.overview.Entries() == nil {
		if err := s.overview.Load(r.Context()); err != nil {
			http.Error(w, "failed to load projects", http.StatusInternalServerError)
			s.logger.Error("load projects failed", "error", err)
			return
		}
	}
	q := r.URL.Query().Get("q")
	if err := s.renderPartial(w, "partials/project_list.html", adminView{Entries: s.overview.Filter(q), Query: q}); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}

// entry finds the project in the loaded list, loading it first when the
// detail page is opened directly.
func (s *Server) entry(w http.ResponseWriter, r *http.Request) (admin.Entry, bool) {
	id := r.PathValue("id")
	e, ok := s.overview.Find(id)
	if !ok {
		if err := s.overview.Load(r.Context()); err != nil {
			http.Error(w, "failed to load projects", http.StatusInternalServerError)
			s.logger.Error("load projects failed", "error", err)
			return admin.Entry{}, false
		}
		e, ok = s.overview.Find(id)
	}
	if !ok {
		http.NotFound(w, r)
		return admin.Entry{}, false
	}
	return e, true
}

func (s *Server) handleProjectDetail(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}

	var sections []categoryView
	for _, cat := range domain.Categories {
		images := e.Project.Images.ByCategory(cat)
		sections = append(sections, categoryView{
			Category: cat,
			Label:    categoryLabel(cat),
			Required: cat.RequiredCount(),
			Count:    len(images),
			Images:   images,
		})
	}

	if err := s.renderPage(w, map[string]any{
		"User":     userFrom(r.Context()),
		"Entry":    e,
		"Sections": sections,
		"Audit":    auditPanel{ProjectID: e.Project.ID, Text: e.Project.Audit, Verdict: string(e.Verdict())},
	}, "base.html", "pages/project_detail.html", "partials/thumbnails.html", "partials/audit_panel.html"); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleProjectReport(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	doc, err := s.exporter.Export(r.Context(), e.Project, e.Store)
	if err != nil {
		http.Error(w, "failed to generate report", http.StatusInternalServerError)
		s.logger.Error("export report failed", "project_id", e.Project.ID, "error", err)
		return
	}
	s.writeReport(w, doc)
}

type auditPanel struct {
	ProjectID string
	Text      string
	Verdict   string
	Warning   string
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}

	result, err := s.overview.RequestAudit(r.Context(), e.Project.ID)
	switch {
	case errors.Is(err, admin.ErrAuditInFlight):
		http.Error(w, "An audit is already running for this project.", http.StatusConflict)
		return
	case errors.Is(err, admin.ErrProjectNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		http.Error(w, "failed to run audit", http.StatusInternalServerError)
		s.logger.Error("audit failed", "project_id", e.Project.ID, "error", err)
		return
	}

	panel := auditPanel{ProjectID: e.Project.ID, Text: result.Text, Verdict: string(result.Verdict)}
	if result.SaveErr != nil {
		panel.Warning = "The audit result could not be saved."
	}
	if err := s.renderPartial(w, "partials/audit_panel.html", panel); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}
