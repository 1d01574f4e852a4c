package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vbonduro/kioskinstall/internal/capture"
	"github.com/vbonduro/kioskinstall/internal/catalog"
	"github.com/vbonduro/kioskinstall/internal/clock"
	"github.com/vbonduro/kioskinstall/internal/domain"
	"github.com/vbonduro/kioskinstall/internal/geo"
	"github.com/vbonduro/kioskinstall/internal/photostore"
	"github.com/vbonduro/kioskinstall/internal/report"
	"github.com/vbonduro/kioskinstall/internal/workflow"
)

var (
	ErrNoWorkflow = errors.New("no active workflow")
	ErrNoCapture  = errors.New("capture has not been opened for this category")
)

// PersistWarning is shown when a finished project could not be saved. The
// workflow still completes; nothing is rolled back.
const PersistWarning = "Warning: the project could not be saved. Please contact support before closing this device."

// projectWriter is the subset of store.ProjectRepository that WorkflowService requires.
type projectWriter interface {
	Upsert(ctx context.Context, p *domain.Project) error
}

type reportExporter interface {
	Export(ctx context.Context, project domain.Project, store domain.Store) (*report.Document, error)
}

// LocationReport is what the device sends back after asking for a position:
// either coordinates or a position error code.
type LocationReport struct {
	Lat       float64
	Lng       float64
	ErrorCode int
}

type FinishResult struct {
	Project    domain.Project
	Store      domain.Store
	Report     *report.Document
	ReportPath string
	Warnings   []string
}

type activeCapture struct {
	fix     *geo.DeviceFix
	session *capture.Session
}

type activeWorkflow struct {
	ctrl     *workflow.Controller
	user     domain.User
	captures map[domain.Category]*activeCapture
}

// WorkflowService holds one in-progress workflow per signed-in session and
// drives it from HTTP requests.
type WorkflowService struct {
	projects      projectWriter
	stores        catalog.Directory
	exporter      reportExporter
	photos        photostore.PhotoStore
	clock         clock.Clock
	ids           clock.IDGenerator
	reportDir     string
	locateTimeout time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	active map[string]*activeWorkflow
}

func NewWorkflowService(
	projects projectWriter,
	stores catalog.Directory,
	exporter reportExporter,
	photos photostore.PhotoStore,
	clk clock.Clock,
	ids clock.IDGenerator,
	reportDir string,
	logger *slog.Logger,
) *WorkflowService {
	return &WorkflowService{
		projects:      projects,
		stores:        stores,
		exporter:      exporter,
		photos:        photos,
		clock:         clk,
		ids:           ids,
		reportDir:     reportDir,
		locateTimeout: 30 * time.Second,
		logger:        logger,
		active:        make(map[string]*activeWorkflow),
	}
}

func (s *WorkflowService) Stores() []domain.Store {
	return s.stores.List()
}

// Start returns the session's workflow, creating one if none is active.
func (s *WorkflowService) Start(key string, user domain.User) *workflow.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wf, ok := s.active[key]; ok {
		return wf.ctrl
	}
	wf := &activeWorkflow{
		ctrl:     workflow.New(s.ids.New(), s.clock),
		user:     user,
		captures: make(map[domain.Category]*activeCapture),
	}
	s.active[key] = wf
	s.logger.Info("workflow started", "project_id", wf.ctrl.ID(), "user_id", user.ID)
	return wf.ctrl
}

func (s *WorkflowService) lookup(key string) (*activeWorkflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.active[key]
	if !ok {
		return nil, ErrNoWorkflow
	}
	return wf, nil
}

func (s *WorkflowService) Get(key string) (*workflow.Controller, error) {
	wf, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	return wf.ctrl, nil
}

func (s *WorkflowService) SelectStore(key, storeID string) error {
	wf, err := s.lookup(key)
	if err != nil {
		return err
	}
	store, err := s.stores.Get(storeID)
	if err != nil {
		return err
	}
	return wf.ctrl.SelectStore(store)
}

func (s *WorkflowService) Advance(key string) (workflow.Step, error) {
	wf, err := s.lookup(key)
	if err != nil {
		return 0, err
	}
	return wf.ctrl.Advance()
}

func (s *WorkflowService) Back(key string) (workflow.Step, error) {
	wf, err := s.lookup(key)
	if err != nil {
		return 0, err
	}
	return wf.ctrl.Back()
}

// OpenCapture returns the capture session for category, which must be the
// current step's category. A session still waiting for a location is
// replaced, so opening again is how the user retries.
func (s *WorkflowService) OpenCapture(key string, category domain.Category) (*capture.Session, error) {
	wf, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	if cat, ok := wf.ctrl.Step().Category(); !ok || cat != category {
		return nil, workflow.ErrWrongStep
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ac, ok := wf.captures[category]; ok && ac.session.State() != capture.AwaitingLocation {
		return ac.session, nil
	}
	fix := geo.NewDeviceFix()
	session := capture.NewSession(category, fix, s.photos, s.clock, s.ids, s.logger)
	wf.captures[category] = &activeCapture{fix: fix, session: session}
	return session, nil
}

func (s *WorkflowService) captureFor(key string, category domain.Category) (*activeWorkflow, *activeCapture, error) {
	wf, err := s.lookup(key)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ac, ok := wf.captures[category]
	if !ok {
		return nil, nil, ErrNoCapture
	}
	return wf, ac, nil
}

// ReportLocation completes the open capture's location request with the
// device's answer. A failed fix leaves capture blocked until reopened.
func (s *WorkflowService) ReportLocation(ctx context.Context, key string, category domain.Category, r LocationReport) (*capture.Session, error) {
	if _, err := s.OpenCapture(key, category); err != nil {
		return nil, err
	}
	_, ac, err := s.captureFor(key, category)
	if err != nil {
		return nil, err
	}

	if r.ErrorCode != 0 {
		ac.fix.Reject(r.ErrorCode)
	} else {
		ac.fix.Resolve(r.Lat, r.Lng)
	}

	ctx, cancel := context.WithTimeout(ctx, s.locateTimeout)
	defer cancel()
	if err := ac.session.Locate(ctx); err != nil {
		return ac.session, err
	}
	return ac.session, nil
}

// ReportCameraError records a camera failure on the open capture.
func (s *WorkflowService) ReportCameraError(key string, category domain.Category, msg string) error {
	_, ac, err := s.captureFor(key, category)
	if err != nil {
		return err
	}
	ac.session.ReportCameraError(msg)
	return nil
}

// Capture stamps raw and appends the result to the workflow. Only the
// current step's category accepts captures.
func (s *WorkflowService) Capture(ctx context.Context, key string, category domain.Category, raw []byte) (domain.CapturedImage, error) {
	wf, ac, err := s.captureFor(key, category)
	if err != nil {
		return domain.CapturedImage{}, err
	}
	if cat, ok := wf.ctrl.Step().Category(); !ok || cat != category {
		return domain.CapturedImage{}, workflow.ErrWrongStep
	}
	img, err := ac.session.Trigger(ctx, raw)
	if err != nil {
		return domain.CapturedImage{}, err
	}
	if err := wf.ctrl.HandleCapture(category, img); err != nil {
		return domain.CapturedImage{}, err
	}
	return img, nil
}

// Finish completes the workflow: the project is saved, the report rendered
// and the session's workflow ended. Save and report failures are returned as
// warnings, not errors.
func (s *WorkflowService) Finish(ctx context.Context, key string) (*FinishResult, error) {
	wf, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	project, err := wf.ctrl.Finish(wf.user)
	if err != nil {
		return nil, err
	}
	store, _ := wf.ctrl.Store()
	result := &FinishResult{Project: project, Store: store}

	if err := s.projects.Upsert(ctx, &project); err != nil {
		s.logger.Error("failed to save project", "project_id", project.ID, "error", err)
		result.Warnings = append(result.Warnings, PersistWarning)
	}

	doc, err := s.exporter.Export(ctx, project, store)
	if err != nil {
		s.logger.Error("failed to export report", "project_id", project.ID, "error", err)
		result.Warnings = append(result.Warnings, "The report could not be generated. An admin can export it later.")
	} else {
		result.Report = doc
		if s.reportDir != "" {
			path, err := report.WriteFile(s.reportDir, doc)
			if err != nil {
				s.logger.Error("failed to write report", "project_id", project.ID, "error", err)
			} else {
				result.ReportPath = path
			}
		}
	}

	s.mu.Lock()
	delete(s.active, key)
	s.mu.Unlock()

	s.logger.Info("workflow finished",
		"project_id", project.ID,
		"store_id", project.StoreID,
		"images", project.Images.Total(),
		"warnings", len(result.Warnings))
	return result, nil
}

// Discard abandons the session's workflow and deletes its stored photos.
func (s *WorkflowService) Discard(ctx context.Context, key string) error {
	s.mu.Lock()
	wf, ok := s.active[key]
	delete(s.active, key)
	s.mu.Unlock()
	if !ok {
		return ErrNoWorkflow
	}

	for _, cat := range domain.Categories {
		for _, img := range wf.ctrl.Images(cat) {
			if err := s.photos.Delete(ctx, img.StorageKey); err != nil && !errors.Is(err, photostore.ErrNotFound) {
				s.logger.Warn("failed to delete discarded photo", "key", img.StorageKey, "error", err)
			}
		}
	}
	s.logger.Info("workflow discarded", "project_id", wf.ctrl.ID())
	return nil
}

// ErrorMessage turns a workflow error into text for the technician.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, workflow.ErrGateClosed):
		return "Capture the required photos before continuing."
	case errors.Is(err, workflow.ErrWrongStep):
		return "That action is not available at this step."
	case errors.Is(err, capture.ErrNotReady):
		return "Waiting for GPS location..."
	case errors.Is(err, capture.ErrBusy):
		return "Capture already in progress."
	case errors.Is(err, capture.ErrFrameUnavailable):
		return "Unable to capture frame. Please try again."
	case errors.Is(err, catalog.ErrStoreNotFound):
		return "Unknown store."
	case errors.Is(err, ErrNoWorkflow), errors.Is(err, ErrNoCapture):
		return "Your session has no active project. Please start again."
	case errors.Is(err, geo.ErrPermissionDenied), errors.Is(err, geo.ErrTimeout), errors.Is(err, geo.ErrUnavailable):
		return geo.Message(err)
	default:
		return "Something went wrong. Please try again."
	}
}
