package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sync"

	"github.com/vbonduro/kioskinstall/internal/photostore"
)

// JPEG encodes a solid-colour w×h frame.
func JPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

type memPhoto struct {
	data     []byte
	mimeType string
}

// MemoryPhotoStore is an in-memory photostore.PhotoStore for tests.
type MemoryPhotoStore struct {
	mu     sync.Mutex
	photos map[string]memPhoto
	seq    int

	// SaveErr, when set, is returned from every Save.
	SaveErr error
}

var _ photostore.PhotoStore = (*MemoryPhotoStore)(nil)

func NewMemoryPhotoStore() *MemoryPhotoStore {
	return &MemoryPhotoStore{photos: make(map[string]memPhoto)}
}

func (m *MemoryPhotoStore) Save(_ context.Context, prefix, mimeType string, r io.Reader) (string, error) {
	if m.SaveErr != nil {
		return "", m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	key := fmt.Sprintf("%s_%d%s", prefix, m.seq, photostore.ExtForMIME(mimeType))
	m.photos[key] = memPhoto{data: data, mimeType: mimeType}
	return key, nil
}

// Put stores data under an explicit key.
func (m *MemoryPhotoStore) Put(key, mimeType string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos[key] = memPhoto{data: data, mimeType: mimeType}
}

func (m *MemoryPhotoStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[key]
	if !ok {
		return nil, "", photostore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(p.data)), p.mimeType, nil
}

func (m *MemoryPhotoStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.photos[key]; !ok {
		return photostore.ErrNotFound
	}
	delete(m.photos, key)
	return nil
}

func (m *MemoryPhotoStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.photos)
}
