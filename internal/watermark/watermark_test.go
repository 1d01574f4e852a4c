package watermark

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/kioskinstall/internal/domain"
)

var nyc = domain.GeoLocation{Lat: 40.712776, Lng: -74.005974}

func whiteFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func luma(c color.Color) uint32 {
	r, g, b, _ := c.RGBA()
	return (r + g + b) / 3 >> 8
}

func TestLayout(t *testing.T) {
	g := Layout(image.Rect(0, 0, 1280, 720))

	assert.Equal(t, image.Rect(0, 640, 1280, 720), g.Band)
	assert.Equal(t, image.Pt(20, 675), g.TimestampDot)
	assert.Equal(t, image.Pt(20, 705), g.LocationDot)
}

func TestLayoutShortFrame(t *testing.T) {
	g := Layout(image.Rect(0, 0, 100, 50))
	assert.Equal(t, image.Rect(0, 0, 100, 50), g.Band)
}

func TestLayoutIsDeterministic(t *testing.T) {
	b := image.Rect(0, 0, 640, 480)
	assert.Equal(t, Layout(b), Layout(b))
}

func TestFormatLocation(t *testing.T) {
	assert.Equal(t, "Lat: 40.712776, Lng: -74.005974", FormatLocation(nyc))
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 15, 14, 30, 5, 0, time.UTC)
	assert.Equal(t, "1/15/2024, 2:30:05 PM", FormatTimestamp(ts))
}

func TestStampProducesJPEG(t *testing.T) {
	frame := whiteFrame(640, 480)

	out, err := Stamp(frame, nyc, "1/15/2024, 2:30:05 PM")
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, frame.Bounds(), img.Bounds())

	assert.Greater(t, luma(img.At(5, 5)), uint32(240), "area above the band is untouched")
	assert.Less(t, luma(img.At(635, 475)), uint32(130), "band darkens the bottom edge")
}

func TestStampDoesNotModifyFrame(t *testing.T) {
	frame := whiteFrame(320, 240)

	_, err := Stamp(frame, nyc, "now")
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, frame.RGBAAt(319, 239))
}

func TestStampIsDeterministic(t *testing.T) {
	frame := whiteFrame(320, 240)

	first, err := Stamp(frame, nyc, "1/15/2024, 2:30:05 PM")
	require.NoError(t, err)
	second, err := Stamp(frame, nyc, "1/15/2024, 2:30:05 PM")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStampNoSurface(t *testing.T) {
	_, err := Stamp(nil, nyc, "now")
	assert.ErrorIs(t, err, ErrNoSurface)

	_, err = Stamp(image.NewRGBA(image.Rectangle{}), nyc, "now")
	assert.ErrorIs(t, err, ErrNoSurface)
}

func TestStampOffsetBounds(t *testing.T) {
	frame := whiteFrame(400, 300).SubImage(image.Rect(100, 100, 300, 250))

	out, err := Stamp(frame, nyc, "now")
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 150), img.Bounds())
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, whiteFrame(8, 8)))

	img, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, err = Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestFit(t *testing.T) {
	small := whiteFrame(100, 50)
	assert.Same(t, image.Image(small), Fit(small, 1280, 720))

	big := Fit(whiteFrame(2560, 1440), 1280, 720)
	assert.Equal(t, image.Rect(0, 0, 1280, 720), big.Bounds())

	tall := Fit(whiteFrame(1000, 2000), 1280, 720)
	assert.Equal(t, 360, tall.Bounds().Dx())
	assert.Equal(t, 720, tall.Bounds().Dy())
}
