package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/kioskinstall/internal/report"
	"github.com/vbonduro/kioskinstall/internal/testutil"
)

func TestAllowedImageMIME(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		wantMIME     string
		wantDetected bool
	}{
		{
			name:         "JPEG",
			data:         []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10},
			wantMIME:     "image/jpeg",
			wantDetected: true,
		},
		{
			name:         "PNG",
			data:         []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00},
			wantMIME:     "image/png",
			wantDetected: true,
		},
		{
			name:         "GIF",
			data:         []byte("GIF89a"),
			wantMIME:     "image/gif",
			wantDetected: true,
		},
		{
			name:         "WebP",
			data:         append([]byte("RIFF\x00\x00\x00\x00WEBP"), make([]byte, 10)...),
			wantMIME:     "image/webp",
			wantDetected: true,
		},
		{
			name: "RIFF but not WebP",
			data: append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 10)...),
		},
		{
			name: "PDF disguised as image",
			data: []byte("%PDF-1.4 malicious content"),
		},
		{
			name: "empty",
			data: []byte{},
		},
		{
			name: "too short for WebP check",
			data: []byte("RIFF"),
		},
		{
			name:         "encoded frame",
			data:         testutil.JPEG(8, 8),
			wantMIME:     "image/jpeg",
			wantDetected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMIME, gotDetected := allowedImageMIME(tt.data)
			assert.Equal(t, tt.wantDetected, gotDetected)
			assert.Equal(t, tt.wantMIME, gotMIME)
		})
	}
}

func newPhotoServer(photos *testutil.MemoryPhotoStore) *Server {
	return &Server{photoStore: photos, logger: slog.Default()}
}

func TestHandleGetPhoto(t *testing.T) {
	photos := testutil.NewMemoryPhotoStore()
	data := testutil.JPEG(4, 4)
	photos.Put("before_1.jpg", "image/jpeg", data)
	s := newPhotoServer(photos)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/photos/before_1.jpg", nil)
		req.SetPathValue("key", "before_1.jpg")
		rec := httptest.NewRecorder()

		s.handleGetPhoto(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
		assert.Equal(t, data, rec.Body.Bytes())
	})

	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/photos/nope.jpg", nil)
		req.SetPathValue("key", "nope.jpg")
		rec := httptest.NewRecorder()

		s.handleGetPhoto(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("close failed") }

func TestCloseWithLog_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() { closeWithLog(failingCloser{}, "test", slog.Default()) })
}

func TestWriteReport(t *testing.T) {
	s := newPhotoServer(testutil.NewMemoryPhotoStore())
	doc := &report.Document{Filename: "Kiosk_Report_101_2024-01-15.pdf", Data: []byte("%PDF-1.3 test")}
	rec := httptest.NewRecorder()

	s.writeReport(rec, doc)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.MimeType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Kiosk_Report_101_2024-01-15.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "13", rec.Header().Get("Content-Length"))
	assert.Equal(t, doc.Data, rec.Body.Bytes())
}
