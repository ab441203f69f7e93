package screenshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/kbinani/screenshot"
	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"screen-translate-llm/src/geometry"
)

// ErrAreaOutOfBounds is returned when a capture area misses the captured image.
var ErrAreaOutOfBounds = errors.New("capture area is outside the captured image")

// Capturer grabs the full visible area the user selected from.
type Capturer interface {
	CaptureViewport(ctx context.Context) (*image.RGBA, error)
}

// DisplayCapturer captures one physical display with kbinani/screenshot.
type DisplayCapturer struct {
	Display int
}

// CaptureViewport captures the whole display in device pixels.
func (c DisplayCapturer) CaptureViewport(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	if c.Display < 0 || c.Display >= n {
		return nil, fmt.Errorf("display %d not available (%d active)", c.Display, n)
	}
	img, err := screenshot.CaptureDisplay(c.Display)
	if err != nil {
		return nil, fmt.Errorf("failed to capture display %d: %w", c.Display, err)
	}
	return img, nil
}

// DisplayBounds returns the bounds of the given display in device pixels.
func DisplayBounds(display int) (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	if display < 0 || display >= n {
		return image.Rectangle{}, fmt.Errorf("display %d not available (%d active)", display, n)
	}
	return screenshot.GetDisplayBounds(display), nil
}

// Crop copies area out of img. Area coordinates are relative to the image's
// top-left corner; parts outside the image are dropped.
func Crop(img image.Image, area geometry.CaptureArea) (*image.RGBA, error) {
	if area.Empty() {
		return nil, fmt.Errorf("invalid capture area: width=%d, height=%d", area.Width, area.Height)
	}
	b := img.Bounds()
	src := image.Rect(area.Left, area.Top, area.Left+area.Width, area.Top+area.Height).
		Add(b.Min).
		Intersect(b)
	if src.Empty() {
		return nil, ErrAreaOutOfBounds
	}

	dst := image.NewRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
	xdraw.Copy(dst, image.Point{}, img, src, xdraw.Src, nil)
	return dst, nil
}

// FitWithin downscales img so its longer edge is at most maxEdge pixels.
// maxEdge <= 0 disables scaling.
func FitWithin(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	if maxEdge <= 0 || (b.Dx() <= maxEdge && b.Dy() <= maxEdge) {
		return img
	}
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = max(1, h*maxEdge/w)
		w = maxEdge
	} else {
		w = max(1, w*maxEdge/h)
		h = maxEdge
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// ToPNG decodes PNG, JPEG, GIF, BMP or WebP data and re-encodes it as PNG,
// scaled to maxEdge. PNG input within the limit is returned unchanged.
func ToPNG(data []byte, maxEdge int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}
	b := img.Bounds()
	if format == "png" && (maxEdge <= 0 || (b.Dx() <= maxEdge && b.Dy() <= maxEdge)) {
		return data, nil
	}
	return EncodePNG(FitWithin(img, maxEdge))
}

// ViewportFor describes a display as a viewport. Global pointer positions
// divided by ratio minus the scroll offset land inside the display.
func ViewportFor(bounds image.Rectangle, ratio float64) geometry.Viewport {
	if ratio <= 0 {
		ratio = 1
	}
	return geometry.Viewport{
		Width:      float64(bounds.Dx()) / ratio,
		Height:     float64(bounds.Dy()) / ratio,
		ScrollX:    float64(bounds.Min.X) / ratio,
		ScrollY:    float64(bounds.Min.Y) / ratio,
		PixelRatio: ratio,
	}
}
