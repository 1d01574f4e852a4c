package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vbonduro/kioskinstall/internal/domain"
)

// FileProjectStore keeps the whole project list in one JSON file, rewritten
// atomically on every change. It suits a single kiosk with no database.
type FileProjectStore struct {
	path string

	mu sync.Mutex
}

var _ ProjectRepository = (*FileProjectStore)(nil)

func NewFileProjectStore(path string) (*FileProjectStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}
	return &FileProjectStore{path: path}, nil
}

func (s *FileProjectStore) load() ([]*domain.Project, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var projects []*domain.Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode project file: %w", err)
	}
	return projects, nil
}

func (s *FileProjectStore) save(projects []*domain.Project) error {
	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode projects: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write project file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace project file: %w", err)
	}
	return nil
}

func (s *FileProjectStore) Upsert(_ context.Context, p *domain.Project) error {
	if p.ID == "" {
		return fmt.Errorf("project id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.load()
	if err != nil {
		return err
	}

	cp := *p
	replaced := false
	for i, existing := range projects {
		if existing.ID == p.ID {
			projects[i] = &cp
			replaced = true
			break
		}
	}
	if !replaced {
		projects = append(projects, &cp)
	}
	return s.save(projects)
}

func (s *FileProjectStore) Get(_ context.Context, id string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (s *FileProjectStore) List(_ context.Context) ([]*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileProjectStore) ListByStatus(ctx context.Context, status domain.ProjectStatus) ([]*domain.Project, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.Project
	for _, p := range all {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *FileProjectStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.load()
	if err != nil {
		return err
	}
	for i, p := range projects {
		if p.ID == id {
			return s.save(append(projects[:i], projects[i+1:]...))
		}
	}
	return ErrProjectNotFound
}
