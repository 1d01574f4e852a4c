package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vbonduro/kioskinstall/internal/domain"
)

var ErrProjectNotFound = errors.New("project not found")

// ProjectRepository is the persistence boundary for projects. Upsert
// inserts a new id or replaces the existing record with that id.
type ProjectRepository interface {
	Get(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context) ([]*domain.Project, error)
	ListByStatus(ctx context.Context, status domain.ProjectStatus) ([]*domain.Project, error)
	Upsert(ctx context.Context, p *domain.Project) error
	Delete(ctx context.Context, id string) error
}

// ProjectStore keeps each project as a JSON document keyed by id. Status and
// store id are copied into columns for filtering.
type ProjectStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ ProjectRepository = (*ProjectStore)(nil)

func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db, now: time.Now}
}

func (s *ProjectStore) Upsert(ctx context.Context, p *domain.Project) error {
	if p.ID == "" {
		return fmt.Errorf("project id is required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, store_id, user_id, status, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			store_id   = excluded.store_id,
			user_id    = excluded.user_id,
			status     = excluded.status,
			data       = excluded.data,
			updated_at = excluded.updated_at
	`, p.ID, p.StoreID, p.UserID, string(p.Status), string(data), s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	return nil
}

// Get returns nil, nil when no project has the id.
func (s *ProjectStore) Get(ctx context.Context, id string) (*domain.Project, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM projects WHERE id = ?
	`, id).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return decodeProject(data)
}

// List returns projects in the order they were first stored.
func (s *ProjectStore) List(ctx context.Context) ([]*domain.Project, error) {
	return s.query(ctx, `SELECT data FROM projects ORDER BY rowid ASC`)
}

func (s *ProjectStore) ListByStatus(ctx context.Context, status domain.ProjectStatus) ([]*domain.Project, error) {
	return s.query(ctx, `SELECT data FROM projects WHERE status = ? ORDER BY rowid ASC`, string(status))
}

func (s *ProjectStore) query(ctx context.Context, q string, args ...any) ([]*domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p, err := decodeProject(data)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM projects WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProjectNotFound
	}

	return nil
}

func decodeProject(data string) (*domain.Project, error) {
	p := &domain.Project{}
	if err := json.Unmarshal([]byte(data), p); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	return p, nil
}
