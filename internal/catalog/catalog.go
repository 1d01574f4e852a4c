// Package catalog is the read-only directory of kiosk stores.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/vbonduro/kioskinstall/internal/domain"
)

//go:embed stores.toml
var defaultStores []byte

var ErrStoreNotFound = errors.New("store not found")

// Directory looks up stores. Implementations never mutate after construction.
type Directory interface {
	List() []domain.Store
	Get(id string) (domain.Store, error)
	Districts() []string
	ByDistrict(district string) []domain.Store
}

// StaticDirectory is a Directory over a fixed list of stores.
type StaticDirectory struct {
	stores    []domain.Store
	byID      map[string]int
	districts []string
}

var _ Directory = (*StaticDirectory)(nil)

type file struct {
	Stores []domain.Store `toml:"stores"`
}

// Default returns the directory seeded from the embedded stores.toml.
func Default() (*StaticDirectory, error) {
	return Load(bytes.NewReader(defaultStores))
}

// LoadFile reads a stores TOML file from disk.
func LoadFile(path string) (*StaticDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stores file: %w", err)
	}
	defer f.Close()

	d, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("reading stores from %s: %w", path, err)
	}
	return d, nil
}

// Load decodes [[stores]] tables. Store ids must be unique and non-empty.
func Load(r io.Reader) (*StaticDirectory, error) {
	var f file
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode stores: %w", err)
	}
	return New(f.Stores)
}

// New builds a directory from stores, preserving their order.
func New(stores []domain.Store) (*StaticDirectory, error) {
	d := &StaticDirectory{
		stores: slices.Clone(stores),
		byID:   make(map[string]int, len(stores)),
	}
	for i, s := range d.stores {
		if s.ID == "" {
			return nil, fmt.Errorf("store at position %d has no id", i)
		}
		if _, dup := d.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate store id %q", s.ID)
		}
		d.byID[s.ID] = i
		if !slices.Contains(d.districts, s.District) {
			d.districts = append(d.districts, s.District)
		}
	}
	return d, nil
}

func (d *StaticDirectory) List() []domain.Store {
	return slices.Clone(d.stores)
}

func (d *StaticDirectory) Get(id string) (domain.Store, error) {
	i, ok := d.byID[id]
	if !ok {
		return domain.Store{}, fmt.Errorf("%w: %s", ErrStoreNotFound, id)
	}
	return d.stores[i], nil
}

// Districts returns district names in first-seen order.
func (d *StaticDirectory) Districts() []string {
	return slices.Clone(d.districts)
}

func (d *StaticDirectory) ByDistrict(district string) []domain.Store {
	var out []domain.Store
	for _, s := range d.stores {
		if s.District == district {
			out = append(out, s)
		}
	}
	return out
}
