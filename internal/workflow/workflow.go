// Package workflow sequences a single installation project through site
// selection, the three photo phases and final review.
package workflow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vbonduro/kioskinstall/internal/clock"
	"github.com/vbonduro/kioskinstall/internal/domain"
)

type Step int

const (
	StepSelectSite Step = iota + 1
	StepCaptureBefore
	StepCaptureAfter
	StepCaptureReceiving
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepSelectSite:
		return "Select Site"
	case StepCaptureBefore:
		return "Before Installation"
	case StepCaptureAfter:
		return "After Execution"
	case StepCaptureReceiving:
		return "Receiving Documents"
	case StepReview:
		return "Review & Submit"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Category is the photo phase captured at s, if any.
func (s Step) Category() (domain.Category, bool) {
	switch s {
	case StepCaptureBefore:
		return domain.CategoryBefore, true
	case StepCaptureAfter:
		return domain.CategoryAfter, true
	case StepCaptureReceiving:
		return domain.CategoryReceiving, true
	default:
		return "", false
	}
}

var (
	ErrGateClosed    = errors.New("step requirements not met")
	ErrWrongStep     = errors.New("action not available at this step")
	ErrCategoryMatch = errors.New("image category does not match collection")
)

// Controller owns one project's in-progress state. Image collections are
// replaced, never mutated, so slices handed out earlier stay valid.
type Controller struct {
	clock clock.Clock

	mu        sync.RWMutex
	id        string
	step      Step
	store     *domain.Store
	images    domain.ProjectImages
	startedAt time.Time
}

// New starts a workflow at step 1. The start time is taken now, when the
// technician begins, not when the project is submitted.
func New(id string, clk clock.Clock) *Controller {
	return &Controller{
		clock:     clk,
		id:        id,
		step:      StepSelectSite,
		startedAt: clk.Now(),
	}
}

func (c *Controller) ID() string { return c.id }

func (c *Controller) Step() Step {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.step
}

func (c *Controller) StartedAt() time.Time {
	return c.startedAt
}

func (c *Controller) Store() (domain.Store, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return domain.Store{}, false
	}
	return *c.store, true
}

// SelectStore chooses the site. Only allowed on step 1; choosing again
// replaces the earlier selection.
func (c *Controller) SelectStore(s domain.Store) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepSelectSite {
		return ErrWrongStep
	}
	c.store = &s
	return nil
}

func (c *Controller) CanAdvance() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gateOpen()
}

func (c *Controller) gateOpen() bool {
	switch c.step {
	case StepSelectSite:
		return c.store != nil
	case StepCaptureBefore:
		return len(c.images.Before) >= domain.CategoryBefore.RequiredCount()
	case StepCaptureAfter:
		return len(c.images.After) >= domain.CategoryAfter.RequiredCount()
	case StepCaptureReceiving:
		return len(c.images.Receiving) >= domain.CategoryReceiving.RequiredCount()
	default:
		return false
	}
}

func (c *Controller) Advance() (Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gateOpen() {
		return c.step, ErrGateClosed
	}
	c.step++
	return c.step, nil
}

// Back returns to the previous step. Captured images are kept.
func (c *Controller) Back() (Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step == StepSelectSite {
		return c.step, ErrWrongStep
	}
	c.step--
	return c.step, nil
}

// HandleCapture appends img to its category. There is no cap; a technician
// may capture more than the minimum.
func (c *Controller) HandleCapture(category domain.Category, img domain.CapturedImage) error {
	if img.Category != category {
		return ErrCategoryMatch
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch category {
	case domain.CategoryBefore:
		c.images.Before = appendCopy(c.images.Before, img)
	case domain.CategoryAfter:
		c.images.After = appendCopy(c.images.After, img)
	case domain.CategoryReceiving:
		c.images.Receiving = appendCopy(c.images.Receiving, img)
	default:
		return fmt.Errorf("unknown category %q", category)
	}
	return nil
}

func appendCopy(src []domain.CapturedImage, img domain.CapturedImage) []domain.CapturedImage {
	out := make([]domain.CapturedImage, len(src), len(src)+1)
	copy(out, src)
	return append(out, img)
}

// Images returns the category's collection. Callers must not modify it.
func (c *Controller) Images(category domain.Category) []domain.CapturedImage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.images.ByCategory(category)
}

func (c *Controller) Count(category domain.Category) int {
	return len(c.Images(category))
}

// Remaining is how many more images the category needs to meet its minimum.
func (c *Controller) Remaining(category domain.Category) int {
	return max(0, category.RequiredCount()-c.Count(category))
}

// Finish builds the completed project. It is only reachable from the review
// step, which in turn requires every category to hold its minimum.
func (c *Controller) Finish(user domain.User) (domain.Project, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.step != StepReview {
		return domain.Project{}, ErrWrongStep
	}
	for _, cat := range domain.Categories {
		if len(c.images.ByCategory(cat)) < cat.RequiredCount() {
			return domain.Project{}, fmt.Errorf("%w: %s has %d of %d images",
				ErrGateClosed, cat, len(c.images.ByCategory(cat)), cat.RequiredCount())
		}
	}

	completed := c.clock.Now()
	return domain.Project{
		ID:          c.id,
		StoreID:     c.store.ID,
		UserID:      user.ID,
		Status:      domain.StatusCompleted,
		StartedAt:   c.startedAt,
		CompletedAt: &completed,
		Images:      c.images,
	}, nil
}
