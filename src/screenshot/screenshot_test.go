package screenshot

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-translate-llm/src/geometry"
)

func checkerboard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	return img
}

func TestCaptureViewport(t *testing.T) {
	// Needs a display; only checks it does not panic in headless environments.
	_, err := DisplayCapturer{}.CaptureViewport(context.Background())
	if err != nil {
		t.Logf("Failed to capture display (expected in headless environment): %v", err)
	}
}

func TestCaptureViewportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DisplayCapturer{}.CaptureViewport(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrop(t *testing.T) {
	src := checkerboard(100, 80)

	got, err := Crop(src, geometry.CaptureArea{Left: 10, Top: 20, Width: 30, Height: 40})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 40), got.Bounds())
	assert.Equal(t, color.RGBA{R: 10, G: 20, A: 255}, got.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 39, G: 59, A: 255}, got.RGBAAt(29, 39))
}

func TestCropOffsetBounds(t *testing.T) {
	src := checkerboard(100, 80).SubImage(image.Rect(50, 40, 100, 80))

	got, err := Crop(src, geometry.CaptureArea{Left: 0, Top: 0, Width: 5, Height: 5})
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 50, G: 40, A: 255}, got.RGBAAt(0, 0))
}

func TestCropClampsToImage(t *testing.T) {
	got, err := Crop(checkerboard(100, 80), geometry.CaptureArea{Left: 90, Top: 70, Width: 50, Height: 50})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), got.Bounds())
}

func TestCropErrors(t *testing.T) {
	_, err := Crop(checkerboard(10, 10), geometry.CaptureArea{Width: 0, Height: 5})
	assert.Error(t, err)

	_, err = Crop(checkerboard(10, 10), geometry.CaptureArea{Left: 50, Top: 50, Width: 5, Height: 5})
	assert.ErrorIs(t, err, ErrAreaOutOfBounds)
}

func TestFitWithin(t *testing.T) {
	img := checkerboard(400, 100)

	assert.Same(t, image.Image(img), FitWithin(img, 0))
	assert.Same(t, image.Image(img), FitWithin(img, 400))

	scaled := FitWithin(img, 200)
	assert.Equal(t, image.Rect(0, 0, 200, 50), scaled.Bounds())

	tall := FitWithin(checkerboard(10, 1000), 100)
	assert.Equal(t, image.Rect(0, 0, 1, 100), tall.Bounds())
}

func TestToPNG(t *testing.T) {
	pngData, err := EncodePNG(checkerboard(20, 20))
	require.NoError(t, err)

	same, err := ToPNG(pngData, 0)
	require.NoError(t, err)
	assert.Equal(t, pngData, same)

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, checkerboard(20, 20), nil))
	converted, err := ToPNG(jpg.Bytes(), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, converted[:4])

	_, err = ToPNG([]byte("not an image"), 0)
	assert.Error(t, err)
}

func TestViewportFor(t *testing.T) {
	vp := ViewportFor(image.Rect(2560, 0, 5120, 1440), 2)
	assert.Equal(t, geometry.Viewport{Width: 1280, Height: 720, ScrollX: 1280, ScrollY: 0, PixelRatio: 2}, vp)

	// A drag on the second display maps back to pixels of that display's capture.
	r := geometry.NormalizeRect(geometry.Point{X: 1380, Y: 100}, geometry.Point{X: 1580, Y: 250}).ToViewport(vp)
	assert.Equal(t, geometry.CaptureArea{Left: 200, Top: 200, Width: 400, Height: 300}, geometry.ToCaptureArea(r, vp.Ratio()))

	assert.Equal(t, 1.0, ViewportFor(image.Rect(0, 0, 10, 10), 0).PixelRatio)
}
