// Package geo acquires a single location fix for a capture session.
package geo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vbonduro/kioskinstall/internal/domain"
)

var (
	ErrUnavailable      = errors.New("location unavailable")
	ErrPermissionDenied = errors.New("location permission denied")
	ErrTimeout          = errors.New("location request timed out")
)

// Position error codes reported by the device geolocation API.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// Acquirer produces one location reading. It is not a stream: each call
// returns the same outcome once one is known.
type Acquirer interface {
	Acquire(ctx context.Context) (domain.GeoLocation, error)
}

// ErrorForCode maps a device position error code to one of the package errors.
func ErrorForCode(code int) error {
	switch code {
	case CodePermissionDenied:
		return ErrPermissionDenied
	case CodeTimeout:
		return ErrTimeout
	default:
		return ErrUnavailable
	}
}

// Message is the user-facing explanation shown while capture is blocked.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Location permission denied. Please enable GPS for this site."
	case errors.Is(err, ErrTimeout):
		return "Timed out waiting for GPS. Move to an open area and try again."
	default:
		return "Unable to retrieve location. Please enable GPS."
	}
}

// Validate rejects coordinates outside the WGS84 range.
func Validate(loc domain.GeoLocation) error {
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		return fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrUnavailable, loc.Lat, loc.Lng)
	}
	return nil
}

// DeviceFix is a one-shot Acquirer completed by the capturing device, which
// reports either a position or a position error. The first report wins.
type DeviceFix struct {
	// HighAccuracy is forwarded to the device when it requests the fix.
	HighAccuracy bool

	once sync.Once
	done chan struct{}
	loc  domain.GeoLocation
	err  error
}

var _ Acquirer = (*DeviceFix)(nil)

func NewDeviceFix() *DeviceFix {
	return &DeviceFix{HighAccuracy: true, done: make(chan struct{})}
}

// Resolve completes the fix with a reading. Out-of-range coordinates complete
// it with ErrUnavailable instead. Reports false if the fix was already done.
func (f *DeviceFix) Resolve(lat, lng float64) bool {
	loc := domain.GeoLocation{Lat: lat, Lng: lng}
	return f.complete(loc, Validate(loc))
}

// Reject completes the fix with the error for a device position error code.
func (f *DeviceFix) Reject(code int) bool {
	return f.complete(domain.GeoLocation{}, ErrorForCode(code))
}

func (f *DeviceFix) complete(loc domain.GeoLocation, err error) bool {
	completed := false
	f.once.Do(func() {
		f.loc, f.err = loc, err
		close(f.done)
		completed = true
	})
	return completed
}

// Acquire waits for the device report. A context deadline yields ErrTimeout,
// cancellation yields the context error.
func (f *DeviceFix) Acquire(ctx context.Context) (domain.GeoLocation, error) {
	select {
	case <-f.done:
		return f.loc, f.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.GeoLocation{}, ErrTimeout
		}
		return domain.GeoLocation{}, ctx.Err()
	}
}

// Static always returns the same reading. Useful for fixed kiosks and tests.
type Static struct {
	Location domain.GeoLocation
	Err      error
}

func (s Static) Acquire(context.Context) (domain.GeoLocation, error) {
	return s.Location, s.Err
}
