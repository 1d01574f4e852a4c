package photostore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrNotFound = errors.New("photo not found")

// PhotoStore holds encoded image payloads addressed by an opaque storage key.
type PhotoStore interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}

// ReadAll fetches a stored photo fully into memory.
func ReadAll(ctx context.Context, ps PhotoStore, storageKey string) ([]byte, string, error) {
	rc, mimeType, err := ps.Get(ctx, storageKey)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", err
	}
	return data, mimeType, nil
}

// ExtForMIME maps an image MIME type to a file extension, defaulting to .jpg.
func ExtForMIME(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// MIMEForKey infers the MIME type from a storage key's extension.
func MIMEForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
