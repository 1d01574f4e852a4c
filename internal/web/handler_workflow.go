package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vbonduro/kioskinstall/internal/capture"
	"github.com/vbonduro/kioskinstall/internal/domain"
	"github.com/vbonduro/kioskinstall/internal/service"
	"github.com/vbonduro/kioskinstall/internal/workflow"
)

const (
	maxFrameSize     = 15 * 1024 * 1024 // 15 MB
	maxCameraMessage = 200              // bytes
)

type stepView struct {
	Number int
	Label  string
	Done   bool
	Active bool
}

type categoryView struct {
	Category  domain.Category
	Label     string
	Required  int
	Count     int
	Remaining int
	Images    []domain.CapturedImage
}

type workflowView struct {
	User       domain.User
	ProjectID  string
	Step       workflow.Step
	Steps      []stepView
	Stores     []domain.Store
	Store      domain.Store
	HasStore   bool
	Capture    *categoryView
	Categories []categoryView
	CanAdvance bool
	CanGoBack  bool
	Error      string
}

func categoryLabel(c domain.Category) string {
	switch c {
	case domain.CategoryBefore:
		return "Before Installation"
	case domain.CategoryAfter:
		return "After Execution"
	case domain.CategoryReceiving:
		return "Receiving Documents"
	default:
		return string(c)
	}
}

func newCategoryView(ctrl *workflow.Controller, c domain.Category) categoryView {
	return categoryView{
		Category:  c,
		Label:     categoryLabel(c),
		Required:  c.RequiredCount(),
		Count:     ctrl.Count(c),
		Remaining: ctrl.Remaining(c),
		Images:    ctrl.Images(c),
	}
}

func (s *Server) buildWorkflowView(user domain.User, ctrl *workflow.Controller) workflowView {
	step := ctrl.Step()
	v := workflowView{
		User:       user,
		ProjectID:  ctrl.ID(),
		Step:       step,
		Stores:     s.workflows.Stores(),
		CanAdvance: ctrl.CanAdvance(),
		CanGoBack:  step > workflow.StepSelectSite,
	}
	v.Store, v.HasStore = ctrl.Store()
	for n := workflow.StepSelectSite; n <= workflow.StepReview; n++ {
		v.Steps = append(v.Steps, stepView{Number: int(n), Label: n.String(), Done: n < step, Active: n == step})
	}
	if cat, ok := step.Category(); ok {
		cv := newCategoryView(ctrl, cat)
		v.Capture = &cv
	}
	for _, cat := range domain.Categories {
		v.Categories = append(v.Categories, newCategoryView(ctrl, cat))
	}
	return v
}

func (s *Server) renderWorkflow(w http.ResponseWriter, r *http.Request, errMsg string) {
	user := userFrom(r.Context())
	ctrl := s.workflows.Start(tokenFrom(r.Context()), user)
	v := s.buildWorkflowView(user, ctrl)
	v.Error = errMsg

	if err := s.renderPage(w, v, "base.html", "pages/workflow.html", "partials/thumbnails.html"); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleWorkflowPage(w http.ResponseWriter, r *http.Request) {
	s.renderWorkflow(w, r, "")
}

// afterAction redirects back to the workflow on success, or re-renders it
// with the error explained.
func (s *Server) afterAction(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.renderWorkflow(w, r, service.ErrorMessage(err))
		return
	}
	http.Redirect(w, r, "/workflow", http.StatusSeeOther)
}

func (s *Server) handleSelectStore(w http.ResponseWriter, r *http.Request) {
	token := tokenFrom(r.Context())
	s.workflows.Start(token, userFrom(r.Context()))
	s.afterAction(w, r, s.workflows.SelectStore(token, r.FormValue("store_id")))
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	_, err := s.workflows.Advance(tokenFrom(r.Context()))
	s.afterAction(w, r, err)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	_, err := s.workflows.Back(tokenFrom(r.Context()))
	s.afterAction(w, r, err)
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	err := s.workflows.Discard(r.Context(), tokenFrom(r.Context()))
	if errors.Is(err, service.ErrNoWorkflow) {
		err = nil
	}
	s.afterAction(w, r, err)
}

func parseCategory(w http.ResponseWriter, r *http.Request) (domain.Category, bool) {
	cat, err := domain.ParseCategory(r.PathValue("category"))
	if err != nil {
		http.Error(w, "invalid category", http.StatusBadRequest)
		return "", false
	}
	return cat, true
}

type locationRequest struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Code int     `json:"code"`
}

type captureStatus struct {
	State   string `json:"state"`
	Ready   bool   `json:"ready"`
	Message string `json:"message,omitempty"`
	Lat     string `json:"lat,omitempty"`
	Lng     string `json:"lng,omitempty"`
}

func statusOf(session *capture.Session) captureStatus {
	st := captureStatus{State: session.State().String(), Message: session.Message()}
	if loc, ok := session.Location(); ok {
		st.Ready = true
		st.Lat = strconv.FormatFloat(loc.Lat, 'f', 6, 64)
		st.Lng = strconv.FormatFloat(loc.Lng, 'f', 6, 64)
	}
	return st
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// handleLocation receives the device's answer to the position request.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	cat, ok := parseCategory(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "invalid location", http.StatusBadRequest)
		return
	}

	session, err := s.workflows.ReportLocation(r.Context(), tokenFrom(r.Context()), cat, service.LocationReport{
		Lat:       req.Lat,
		Lng:       req.Lng,
		ErrorCode: req.Code,
	})
	if session == nil {
		http.Error(w, service.ErrorMessage(err), http.StatusConflict)
		return
	}
	if err := writeJSON(w, http.StatusOK, statusOf(session)); err != nil {
		s.logger.Error("write location response failed", "error", err)
	}
}

func (s *Server) handleCameraError(w http.ResponseWriter, r *http.Request) {
	cat, ok := parseCategory(w, r)
	if !ok {
		return
	}
	msg := truncateMessage(r.FormValue("message"), maxCameraMessage)
	if err := s.workflows.ReportCameraError(tokenFrom(r.Context()), cat, msg); err != nil {
		http.Error(w, service.ErrorMessage(err), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// truncateMessage cuts msg to at most limit bytes without splitting a rune.
// Invalid UTF-8 is replaced first.
func truncateMessage(msg string, limit int) string {
	msg = strings.ToValidUTF8(msg, "\uFFFD")
	if len(msg) <= limit {
		return msg
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

type captureResponse struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Timestamp  string `json:"timestamp"`
	Count      int    `json:"count"`
	Required   int    `json:"required"`
	Remaining  int    `json:"remaining"`
	CanAdvance bool   `json:"canAdvance"`
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	cat, ok := parseCategory(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFrameSize)
	if err := r.ParseMultipartForm(maxFrameSize); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("frame")
	if err != nil {
		http.Error(w, "frame required", http.StatusBadRequest)
		return
	}
	defer closeWithLog(file, "frame upload", s.logger)

	frame, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read frame", http.StatusInternalServerError)
		s.logger.Error("read frame failed", "category", cat, "error", err)
		return
	}
	if _, ok := allowedImageMIME(frame); !ok {
		http.Error(w, "unsupported image format", http.StatusBadRequest)
		return
	}

	token := tokenFrom(r.Context())
	img, err := s.workflows.Capture(r.Context(), token, cat, frame)
	if err != nil {
		status := http.StatusConflict
		if !isUserError(err) {
			status = http.StatusInternalServerError
			s.logger.Error("capture failed", "category", cat, "error", err)
		}
		http.Error(w, service.ErrorMessage(err), status)
		return
	}

	ctrl, err := s.workflows.Get(token)
	if err != nil {
		http.Error(w, service.ErrorMessage(err), http.StatusConflict)
		return
	}
	resp := captureResponse{
		ID:         img.ID,
		URL:        "/photos/" + img.StorageKey,
		Timestamp:  img.Timestamp,
		Count:      ctrl.Count(cat),
		Required:   cat.RequiredCount(),
		Remaining:  ctrl.Remaining(cat),
		CanAdvance: ctrl.CanAdvance(),
	}
	if err := writeJSON(w, http.StatusCreated, resp); err != nil {
		s.logger.Error("write capture response failed", "error", err)
	}
}

func isUserError(err error) bool {
	return errors.Is(err, capture.ErrNotReady) ||
		errors.Is(err, capture.ErrBusy) ||
		errors.Is(err, capture.ErrFrameUnavailable) ||
		errors.Is(err, service.ErrNoCapture) ||
		errors.Is(err, service.ErrNoWorkflow) ||
		errors.Is(err, workflow.ErrWrongStep)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	token := tokenFrom(r.Context())
	result, err := s.workflows.Finish(r.Context(), token)
	if err != nil {
		s.renderWorkflow(w, r, service.ErrorMessage(err))
		return
	}

	if result.Report != nil {
		s.mu.Lock()
		s.reports[token] = result.Report
		s.mu.Unlock()
	}

	if err := s.renderPage(w, map[string]any{
		"User":   userFrom(r.Context()),
		"Result": result,
	}, "base.html", "pages/complete.html"); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

// handleLastReport downloads the report produced by the session's most
// recent finish.
func (s *Server) handleLastReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	doc := s.reports[tokenFrom(r.Context())]
	s.mu.Unlock()
	if doc == nil {
		http.NotFound(w, r)
		return
	}
	s.writeReport(w, doc)
}
