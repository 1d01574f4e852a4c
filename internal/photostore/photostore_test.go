package photostore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore map[string][]byte

func (m mapStore) Save(_ context.Context, prefix, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := prefix + ".jpg"
	m[key] = data
	return key, nil
}

func (m mapStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	data, ok := m[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), MIMEForKey(key), nil
}

func (m mapStore) Delete(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

func TestReadAll(t *testing.T) {
	ps := mapStore{}
	key, err := ps.Save(context.Background(), "img", "image/jpeg", bytes.NewReader([]byte{1, 2, 3}))
	require.NoError(t, err)

	data, mimeType, err := ReadAll(context.Background(), ps, key)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, "image/jpeg", mimeType)

	_, _, err = ReadAll(context.Background(), ps, "missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMIMEMapping(t *testing.T) {
	assert.Equal(t, ".png", ExtForMIME("image/png"))
	assert.Equal(t, ".jpg", ExtForMIME("application/octet-stream"))
	assert.Equal(t, "image/webp", MIMEForKey("a/b.WEBP"))
	assert.Equal(t, "image/jpeg", MIMEForKey("a/b"))
}
