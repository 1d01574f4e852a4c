// Package sealed wraps a PhotoStore so payloads are age-encrypted at rest.
package sealed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/vbonduro/kioskinstall/internal/photostore"
)

type SealedPhotoStore struct {
	inner     photostore.PhotoStore
	identity  age.Identity
	recipient age.Recipient
}

var _ photostore.PhotoStore = (*SealedPhotoStore)(nil)

func New(inner photostore.PhotoStore, identity *age.X25519Identity) *SealedPhotoStore {
	return &SealedPhotoStore{
		inner:     inner,
		identity:  identity,
		recipient: identity.Recipient(),
	}
}

// LoadIdentity reads an X25519 identity from path, generating and writing a
// fresh one when the file does not exist yet.
func LoadIdentity(path string) (*age.X25519Identity, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		identity, err := age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("failed to generate identity: %w", err)
		}
		if err := os.WriteFile(path, []byte(identity.String()+"\n"), 0600); err != nil {
			return nil, fmt.Errorf("failed to write identity file: %w", err)
		}
		return identity, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}

	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse identity: %w", err)
		}
		return identity, nil
	}
	return nil, fmt.Errorf("no identity found in %s", path)
}

func (s *SealedPhotoStore) Save(ctx context.Context, prefix, mimeType string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return "", fmt.Errorf("failed to start encryption: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return "", fmt.Errorf("failed to encrypt photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish encryption: %w", err)
	}
	return s.inner.Save(ctx, prefix, mimeType, &buf)
}

func (s *SealedPhotoStore) Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error) {
	rc, mimeType, err := s.inner.Get(ctx, storageKey)
	if err != nil {
		return nil, "", err
	}
	plain, err := age.Decrypt(rc, s.identity)
	if err != nil {
		rc.Close()
		return nil, "", fmt.Errorf("failed to decrypt photo: %w", err)
	}
	return readCloser{Reader: plain, Closer: rc}, mimeType, nil
}

func (s *SealedPhotoStore) Delete(ctx context.Context, storageKey string) error {
	return s.inner.Delete(ctx, storageKey)
}

type readCloser struct {
	io.Reader
	io.Closer
}
