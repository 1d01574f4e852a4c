package geo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/kioskinstall/internal/domain"
)

func TestDeviceFixResolve(t *testing.T) {
	fix := NewDeviceFix()
	assert.True(t, fix.HighAccuracy)

	go fix.Resolve(40.712776, -74.005974)

	loc, err := fix.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.GeoLocation{Lat: 40.712776, Lng: -74.005974}, loc)
}

func TestDeviceFixFirstReportWins(t *testing.T) {
	fix := NewDeviceFix()
	assert.True(t, fix.Resolve(1, 2))
	assert.False(t, fix.Reject(CodePermissionDenied))

	loc, err := fix.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, loc.Lat)
}

func TestDeviceFixReject(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{CodePermissionDenied, ErrPermissionDenied},
		{CodePositionUnavailable, ErrUnavailable},
		{CodeTimeout, ErrTimeout},
		{42, ErrUnavailable},
	}
	for _, tt := range tests {
		fix := NewDeviceFix()
		fix.Reject(tt.code)
		_, err := fix.Acquire(context.Background())
		assert.ErrorIs(t, err, tt.want)
	}
}

func TestDeviceFixOutOfRange(t *testing.T) {
	fix := NewDeviceFix()
	fix.Resolve(91, 0)

	_, err := fix.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDeviceFixDeadline(t *testing.T) {
	fix := NewDeviceFix()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := fix.Acquire(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDeviceFixCancelled(t *testing.T) {
	fix := NewDeviceFix()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fix.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMessage(t *testing.T) {
	assert.Contains(t, Message(ErrPermissionDenied), "permission")
	assert.Contains(t, Message(ErrTimeout), "Timed out")
	assert.Equal(t, "Unable to retrieve location. Please enable GPS.", Message(ErrUnavailable))
}
