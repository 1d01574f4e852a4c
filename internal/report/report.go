// Package report renders a finished project as a slide-style PDF.
package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"github.com/vbonduro/kioskinstall/internal/clock"
	"github.com/vbonduro/kioskinstall/internal/domain"
	"github.com/vbonduro/kioskinstall/internal/photostore"
)

// Page geometry in inches, 16:9.
const (
	pageWidth  = 10.0
	pageHeight = 5.625

	imageTop    = 1.2
	imageWidth  = 3.0
	imageHeight = 3.3
	imageGap    = 0.2
	marginLeft  = 0.5
)

const MimeType = "application/pdf"

type Document struct {
	Filename string
	Data     []byte
	Sections []Section
}

type Exporter struct {
	photos photostore.PhotoStore
	clock  clock.Clock
	logger *slog.Logger
}

func NewExporter(photos photostore.PhotoStore, clk clock.Clock, logger *slog.Logger) *Exporter {
	return &Exporter{photos: photos, clock: clk, logger: logger}
}

// Filename is Kiosk_Report_{storeNumber}_{YYYY-MM-DD}.pdf for the export day.
func (e *Exporter) Filename(store domain.Store) string {
	return fmt.Sprintf("Kiosk_Report_%s_%s.pdf", store.StoreNumber, e.clock.Now().Format("2006-01-02"))
}

// Export renders one page per planned section. An image whose payload cannot
// be loaded is drawn as a placeholder so the rest of the report survives.
func (e *Exporter) Export(ctx context.Context, project domain.Project, store domain.Store) (*Document, error) {
	sections := Plan(project)

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "in",
		Size:           fpdf.SizeType{Wd: pageHeight, Ht: pageWidth},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Kiosk Installation Report", true)
	pdf.SetCreator("kioskinstall", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, s := range sections {
		pdf.AddPage()
		switch s.Kind {
		case SectionTitle:
			e.titlePage(pdf, tr, project, store)
		case SectionImages:
			e.imagePage(ctx, pdf, tr, s)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return &Document{
		Filename: e.Filename(store),
		Data:     buf.Bytes(),
		Sections: sections,
	}, nil
}

func (e *Exporter) titlePage(pdf *fpdf.Fpdf, tr func(string) string, project domain.Project, store domain.Store) {
	pdf.SetTextColor(0x36, 0x36, 0x36)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.Text(1, 1.5, "Kiosk Installation Report")

	pdf.SetFont("Helvetica", "", 18)
	pdf.Text(1, 2.5, tr("Store Name: "+store.StoreName))
	pdf.Text(1, 3.0, tr("Store #: "+store.StoreNumber))

	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(0x80, 0x80, 0x80)
	pdf.Text(1, 3.5, tr("Address: "+store.Address))

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(0x36, 0x36, 0x36)
	pdf.Text(1, 4.5, "Date: "+project.StartedAt.Format("1/2/2006"))
}

func (e *Exporter) imagePage(ctx context.Context, pdf *fpdf.Fpdf, tr func(string) string, s Section) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(0x00, 0x78, 0xD7)
	pdf.Text(marginLeft, 0.7, tr(s.Title))

	for i, img := range s.Images {
		x := marginLeft + float64(i)*(imageWidth+imageGap)
		e.placeImage(ctx, pdf, img, x, imageTop)

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0x66, 0x66, 0x66)
		pdf.SetXY(x, imageTop+imageHeight+0.1)
		pdf.MultiCell(imageWidth, 0.17, tr(Caption(img)), "", "L", false)
	}
}

func (e *Exporter) placeImage(ctx context.Context, pdf *fpdf.Fpdf, img domain.CapturedImage, x, y float64) {
	data, _, err := photostore.ReadAll(ctx, e.photos, img.StorageKey)
	if err != nil {
		e.logger.Warn("report image unavailable", "key", img.StorageKey, "error", err)
		placeholder(pdf, x, y)
		return
	}

	opt := fpdf.ImageOptions{ImageType: "JPG"}
	info := pdf.RegisterImageOptionsReader(img.StorageKey, opt, bytes.NewReader(data))
	if info == nil || pdf.Err() {
		e.logger.Warn("report image unreadable", "key", img.StorageKey, "error", pdf.Error())
		pdf.ClearError()
		placeholder(pdf, x, y)
		return
	}

	w, h := imageWidth, 0.0
	if info.Width()/info.Height() < imageWidth/imageHeight {
		w, h = 0, imageHeight
	}
	pdf.ImageOptions(img.StorageKey, x, y, w, h, false, opt, 0, "")
}

func placeholder(pdf *fpdf.Fpdf, x, y float64) {
	pdf.SetDrawColor(0xCC, 0xCC, 0xCC)
	pdf.Rect(x, y, imageWidth, imageHeight, "D")
	pdf.SetFont("Helvetica", "I", 10)
	pdf.SetTextColor(0x99, 0x99, 0x99)
	pdf.Text(x+0.9, y+imageHeight/2, "Image unavailable")
}

// Caption is the text printed under each report image.
func Caption(img domain.CapturedImage) string {
	return fmt.Sprintf("%s\nLat: %.4f, Lng: %.4f", img.Timestamp, img.Location.Lat, img.Location.Lng)
}

// WriteFile saves doc into dir and returns its path.
func WriteFile(dir string, doc *Document) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, doc.Filename)
	if err := os.WriteFile(path, doc.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
