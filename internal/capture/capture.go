// Package capture turns raw camera frames into watermarked, geotagged
// CapturedImages for one photo category.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vbonduro/kioskinstall/internal/clock"
	"github.com/vbonduro/kioskinstall/internal/domain"
	"github.com/vbonduro/kioskinstall/internal/geo"
	"github.com/vbonduro/kioskinstall/internal/photostore"
	"github.com/vbonduro/kioskinstall/internal/watermark"
)

// Frames larger than this are scaled down before stamping.
const (
	MaxFrameWidth  = 1280
	MaxFrameHeight = 720
)

var (
	ErrNotReady         = errors.New("capture is waiting for a location fix")
	ErrBusy             = errors.New("a capture is already in progress")
	ErrFrameUnavailable = errors.New("camera frame unavailable")
)

const frameMessage = "Unable to capture frame. Please try again."

type State int

const (
	AwaitingLocation State = iota
	Ready
	Capturing
)

func (s State) String() string {
	switch s {
	case AwaitingLocation:
		return "awaiting_location"
	case Ready:
		return "ready"
	case Capturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// Session captures images for a single category. It holds one location
// fix, taken once, and reuses it for every shot.
type Session struct {
	category domain.Category
	acquirer geo.Acquirer
	photos   photostore.PhotoStore
	clock    clock.Clock
	ids      clock.IDGenerator
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	location domain.GeoLocation
	message  string
}

func NewSession(
	category domain.Category,
	acquirer geo.Acquirer,
	photos photostore.PhotoStore,
	clk clock.Clock,
	ids clock.IDGenerator,
	logger *slog.Logger,
) *Session {
	return &Session{
		category: category,
		acquirer: acquirer,
		photos:   photos,
		clock:    clk,
		ids:      ids,
		logger:   logger,
		state:    AwaitingLocation,
	}
}

func (s *Session) Category() domain.Category { return s.category }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Message is the blocking explanation shown to the user, empty when none.
func (s *Session) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Location returns the fix and whether one has been obtained.
func (s *Session) Location() (domain.GeoLocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location, s.state != AwaitingLocation
}

// Locate runs the acquirer. A failure leaves the session awaiting a location
// and records the message; there is no automatic retry.
func (s *Session) Locate(ctx context.Context) error {
	s.mu.Lock()
	if s.state != AwaitingLocation {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	loc, err := s.acquirer.Acquire(ctx)
	if err == nil {
		err = geo.Validate(loc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.message = geo.Message(err)
		s.logger.Warn("location unavailable", "category", s.category, "error", err)
		return err
	}
	if s.state == AwaitingLocation {
		s.location = loc
		s.state = Ready
		s.message = ""
	}
	return nil
}

// ReportCameraError records that the device could not open its camera. Only
// the message changes; it is cleared by the next successful Trigger.
func (s *Session) ReportCameraError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg == "" {
		msg = "Unable to access camera. Please allow camera permissions."
	}
	s.message = msg
}

// Trigger watermarks raw and stores it. On any failure no image is returned
// and the session returns to Ready.
func (s *Session) Trigger(ctx context.Context, raw []byte) (domain.CapturedImage, error) {
	s.mu.Lock()
	switch s.state {
	case AwaitingLocation:
		s.mu.Unlock()
		return domain.CapturedImage{}, ErrNotReady
	case Capturing:
		s.mu.Unlock()
		return domain.CapturedImage{}, ErrBusy
	}
	s.state = Capturing
	loc := s.location
	s.mu.Unlock()

	img, err := s.shoot(ctx, raw, loc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Ready
	if err != nil {
		if errors.Is(err, ErrFrameUnavailable) {
			s.message = frameMessage
		}
		return domain.CapturedImage{}, err
	}
	s.message = ""
	return img, nil
}

func (s *Session) shoot(ctx context.Context, raw []byte, loc domain.GeoLocation) (domain.CapturedImage, error) {
	if len(raw) == 0 {
		return domain.CapturedImage{}, ErrFrameUnavailable
	}
	frame, err := watermark.Decode(raw)
	if err != nil {
		return domain.CapturedImage{}, fmt.Errorf("%w: %v", ErrFrameUnavailable, err)
	}
	frame = watermark.Fit(frame, MaxFrameWidth, MaxFrameHeight)

	now := s.clock.Now()
	timestamp := watermark.FormatTimestamp(now)
	encoded, err := watermark.Stamp(frame, loc, timestamp)
	if err != nil {
		return domain.CapturedImage{}, fmt.Errorf("%w: %v", ErrFrameUnavailable, err)
	}

	prefix := strings.ToLower(string(s.category))
	key, err := s.photos.Save(ctx, prefix, watermark.MimeType, bytes.NewReader(encoded))
	if err != nil {
		return domain.CapturedImage{}, fmt.Errorf("failed to store captured image: %w", err)
	}

	s.logger.Info("image captured", "category", s.category, "key", key, "bytes", len(encoded))
	return domain.CapturedImage{
		ID:         s.ids.New(),
		StorageKey: key,
		MimeType:   watermark.MimeType,
		Timestamp:  timestamp,
		CapturedAt: now,
		Location:   loc,
		Category:   s.category,
	}, nil
}
