// Package watermark burns the capture time and coordinates into a frame.
package watermark

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"github.com/vbonduro/kioskinstall/internal/domain"
)

const (
	BandHeight  = 80
	TextMarginX = 20
	FontSize    = 24
	JPEGQuality = 80
	MimeType    = "image/jpeg"
)

// ErrNoSurface is returned when there is nothing to draw on.
var ErrNoSurface = errors.New("watermark: no drawing surface")

var bandColor = color.NRGBA{A: 153} // black at 60% opacity

var (
	fontOnce sync.Once
	fontData *opentype.Font
	fontErr  error
)

func parsedFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		fontData, fontErr = opentype.Parse(goregular.TTF)
	})
	return fontData, fontErr
}

// Geometry is where the band and the two text lines go for a frame size.
type Geometry struct {
	Band         image.Rectangle
	TimestampDot image.Point
	LocationDot  image.Point
}

// Layout computes the overlay geometry for a frame whose origin is (0,0).
func Layout(bounds image.Rectangle) Geometry {
	w, h := bounds.Dx(), bounds.Dy()
	full := image.Rect(0, 0, w, h)
	return Geometry{
		Band:         image.Rect(0, h-BandHeight, w, h).Intersect(full),
		TimestampDot: image.Pt(TextMarginX, h-45),
		LocationDot:  image.Pt(TextMarginX, h-15),
	}
}

// FormatLocation renders coordinates the way they appear on the photo.
func FormatLocation(loc domain.GeoLocation) string {
	return fmt.Sprintf("Lat: %.6f, Lng: %.6f", loc.Lat, loc.Lng)
}

// FormatTimestamp renders a capture time for display and for the photo.
func FormatTimestamp(t time.Time) string {
	return t.Format("1/2/2006, 3:04:05 PM")
}

// Decode reads a raw JPEG, PNG or WebP frame.
func Decode(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// Fit scales img down so it fits inside maxW x maxH, keeping its aspect
// ratio. Frames that already fit are returned unchanged.
func Fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return img
	}
	scale := min(float64(maxW)/float64(b.Dx()), float64(maxH)/float64(b.Dy()))
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Stamp draws frame onto a new surface, overlays the band with the timestamp
// and coordinates, and encodes the result as JPEG. frame is not modified.
func Stamp(frame image.Image, loc domain.GeoLocation, timestamp string) ([]byte, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrNoSurface
	}

	f, err := parsedFont()
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: FontSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	defer face.Close()

	src := frame.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
	draw.Draw(canvas, canvas.Bounds(), frame, src.Min, draw.Src)

	g := Layout(canvas.Bounds())
	draw.Draw(canvas, g.Band, image.NewUniform(bandColor), image.Point{}, draw.Over)

	d := &font.Drawer{Dst: canvas, Src: image.White, Face: face}
	d.Dot = fixed.P(g.TimestampDot.X, g.TimestampDot.Y)
	d.DrawString(timestamp)
	d.Dot = fixed.P(g.LocationDot.X, g.LocationDot.Y)
	d.DrawString(FormatLocation(loc))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode watermarked frame: %w", err)
	}
	return buf.Bytes(), nil
}
