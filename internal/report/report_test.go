package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/kioskinstall/internal/domain"
	"github.com/vbonduro/kioskinstall/internal/testutil"
)

var grandCentral = domain.Store{
	ID:          "s1",
	District:    "North District",
	StoreNumber: "1001",
	StoreName:   "Grand Central Kiosk",
	Address:     "89 E 42nd St, New York, NY",
}

func images(cat domain.Category, n int) []domain.CapturedImage {
	out := make([]domain.CapturedImage, n)
	for i := range out {
		out[i] = domain.CapturedImage{
			ID:         fmt.Sprintf("%s-%d", cat, i),
			StorageKey: fmt.Sprintf("%s_%d.jpg", cat, i),
			Timestamp:  "1/15/2024, 10:30:00 AM",
			Location:   domain.GeoLocation{Lat: 40.752726, Lng: -73.977229},
			Category:   cat,
		}
	}
	return out
}

func project(before, after, receiving int) domain.Project {
	return domain.Project{
		ID:        "p1",
		StoreID:   "s1",
		Status:    domain.StatusCompleted,
		StartedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Images: domain.ProjectImages{
			Before:    images(domain.CategoryBefore, before),
			After:     images(domain.CategoryAfter, after),
			Receiving: images(domain.CategoryReceiving, receiving),
		},
	}
}

func titles(sections []Section) []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Title
	}
	return out
}

func TestPlanMinimumProject(t *testing.T) {
	sections := Plan(project(6, 9, 2))

	require.Len(t, sections, 7)
	assert.Equal(t, SectionTitle, sections[0].Kind)
	assert.Equal(t, []string{
		"Kiosk Installation Report",
		"Before Installation (Part 1)",
		"Before Installation (Part 2)",
		"After Execution (Part 1)",
		"After Execution (Part 2)",
		"After Execution (Part 3)",
		"Receiving / Handover Documents",
	}, titles(sections))
	assert.Len(t, sections[6].Images, 2)
}

func TestPlanOmitsEmptyCategory(t *testing.T) {
	sections := Plan(project(6, 9, 0))

	require.Len(t, sections, 6)
	for _, s := range sections {
		assert.NotEqual(t, domain.CategoryReceiving, s.Category)
	}
}

func TestPlanUnevenChunks(t *testing.T) {
	sections := Plan(project(7, 0, 4))

	assert.Equal(t, []string{
		"Kiosk Installation Report",
		"Before Installation (Part 1)",
		"Before Installation (Part 2)",
		"Before Installation (Part 3)",
		"Receiving / Handover Documents (Part 1)",
		"Receiving / Handover Documents (Part 2)",
	}, titles(sections))
	assert.Len(t, sections[3].Images, 1)
	assert.Len(t, sections[5].Images, 1)
}

func TestPlanKeepsImageOrder(t *testing.T) {
	sections := Plan(project(6, 0, 0))

	var ids []string
	for _, s := range sections[1:] {
		for _, img := range s.Images {
			ids = append(ids, img.ID)
		}
	}
	assert.Equal(t, []string{"BEFORE-0", "BEFORE-1", "BEFORE-2", "BEFORE-3", "BEFORE-4", "BEFORE-5"}, ids)
}

func TestCaption(t *testing.T) {
	img := images(domain.CategoryAfter, 1)[0]
	assert.Equal(t, "1/15/2024, 10:30:00 AM\nLat: 40.7527, Lng: -73.9772", Caption(img))
}

func newExporter(t *testing.T, p domain.Project) (*Exporter, *testutil.MemoryPhotoStore) {
	t.Helper()
	photos := testutil.NewMemoryPhotoStore()
	frame := testutil.JPEG(160, 90)
	for _, cat := range domain.Categories {
		for _, img := range p.Images.ByCategory(cat) {
			photos.Put(img.StorageKey, "image/jpeg", frame)
		}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewExporter(photos, testutil.NewStubClock(time.Date(2024, 2, 3, 8, 0, 0, 0, time.UTC)), logger), photos
}

func TestExportRendersPDF(t *testing.T) {
	p := project(6, 9, 2)
	e, _ := newExporter(t, p)

	doc, err := e.Export(context.Background(), p, grandCentral)
	require.NoError(t, err)

	assert.Equal(t, "Kiosk_Report_1001_2024-02-03.pdf", doc.Filename)
	assert.Len(t, doc.Sections, 7)
	require.Greater(t, len(doc.Data), 4)
	assert.Equal(t, "%PDF", string(doc.Data[:4]))
}

func TestExportSurvivesMissingImage(t *testing.T) {
	p := project(3, 0, 0)
	e, photos := newExporter(t, p)
	require.NoError(t, photos.Delete(context.Background(), p.Images.Before[1].StorageKey))

	doc, err := e.Export(context.Background(), p, grandCentral)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(doc.Data[:4]))
}

func TestExportSurvivesCorruptImage(t *testing.T) {
	p := project(1, 0, 0)
	e, photos := newExporter(t, p)
	photos.Put(p.Images.Before[0].StorageKey, "image/jpeg", []byte("not a jpeg"))

	doc, err := e.Export(context.Background(), p, grandCentral)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Data)
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	doc := &Document{Filename: "Kiosk_Report_1001_2024-02-03.pdf", Data: []byte("%PDF-1.3")}

	path, err := WriteFile(dir, doc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, doc.Filename), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Data, data)
}
