package gui

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-translate-llm/src/geometry"
	"screen-translate-llm/src/input"
	"screen-translate-llm/src/messages"
	"screen-translate-llm/src/selection"
)

var retina = geometry.Viewport{Width: 1280, Height: 720, PixelRatio: 2}

func TestLayoutEmptyScene(t *testing.T) {
	f := Layout(selection.Scene{Viewport: retina})
	assert.Equal(t, image.Rect(0, 0, 2560, 1440), f.Screen)
	assert.False(t, f.Overlay)
	assert.True(t, f.Selection.Empty())
	assert.Nil(t, f.Panel)
	assert.Nil(t, f.Toasts)
}

func TestLayoutOverlayAndSelection(t *testing.T) {
	sel := geometry.Rect{Left: 100, Top: 100, Width: 200, Height: 150}
	f := Layout(selection.Scene{
		Viewport:     retina,
		Overlay:      true,
		Instructions: selection.Instructions,
		Selection:    &sel,
	})
	assert.True(t, f.Overlay)
	assert.Equal(t, selection.Instructions, f.Instructions)
	assert.Equal(t, image.Rect(200, 200, 600, 500), f.Selection)
}

func TestLayoutSecondDisplay(t *testing.T) {
	vp := geometry.Viewport{Width: 1920, Height: 1080, ScrollX: 1920, PixelRatio: 1}
	p := selection.Panel{Kind: selection.LoadingPanel, Position: geometry.Position{X: 100, Y: 50}}
	f := Layout(selection.Scene{Viewport: vp, Loading: &p})

	assert.Equal(t, image.Rect(1920, 0, 3840, 1080), f.Screen)
	require.NotNil(t, f.Panel)
	assert.Equal(t, image.Rect(2020, 50, 2320, 240), f.Panel.Bounds)
	assert.True(t, f.Panel.Loading)
	assert.Empty(t, f.Panel.Buttons)
	assert.Equal(t, geometry.Point{X: 2020, Y: 50}, f.PagePoint(f.Panel.Bounds.Min))
}

func TestLayoutResultPanel(t *testing.T) {
	p := selection.Panel{Kind: selection.ResultPanel, Position: geometry.Position{X: 320, Y: 100}, Text: "Hola"}
	f := Layout(selection.Scene{Viewport: retina, Result: &p, Loading: &selection.Panel{}})

	require.NotNil(t, f.Panel)
	assert.False(t, f.Panel.Loading)
	assert.Equal(t, "Hola", f.Panel.Text)
	assert.Equal(t, image.Rect(640, 200, 1240, 580), f.Panel.Bounds)

	want := []Button{
		{Kind: selection.CloseButton, Rect: image.Rect(536, 16, 576, 56), Label: closeLabel},
		{Kind: selection.CopyButton, Rect: image.Rect(24, 300, 192, 356), Label: copyLabel},
		{Kind: selection.NewButton, Rect: image.Rect(208, 300, 468, 356), Label: newLabel},
	}
	assert.Equal(t, want, f.Panel.Buttons)

	p.Copied = true
	f = Layout(selection.Scene{Viewport: retina, Result: &p})
	assert.Equal(t, Button{Kind: selection.CopyButton, Rect: image.Rect(24, 300, 192, 356), Label: copiedLabel, Highlight: true}, f.Panel.Buttons[1])
}

func TestLayoutToastsStackTopRight(t *testing.T) {
	vp := geometry.Viewport{Width: 1000, Height: 600, PixelRatio: 1}
	exp := time.Now()
	f := Layout(selection.Scene{Viewport: vp, Toasts: []selection.Toast{
		{Message: "Capture failed: boom", Expires: exp},
		{Message: "Copy failed: no display", Expires: exp},
	}})

	require.NotNil(t, f.Toasts)
	assert.Equal(t, image.Rect(660, 20, 980, 116), f.Toasts.Bounds)
	assert.Equal(t, []Box{
		{Rect: image.Rect(0, 0, 320, 44), Text: "Capture failed: boom"},
		{Rect: image.Rect(0, 52, 320, 96), Text: "Copy failed: no display"},
	}, f.Toasts.Items)
}

type captureDispatcher struct {
	areas []geometry.CaptureArea
}

func (d *captureDispatcher) Dispatch(_ string, req messages.CaptureVisibleTab) {
	d.areas = append(d.areas, req.Area)
}

type memClipboard struct{ text string }

func (m *memClipboard) WriteText(text string) error {
	m.text = text
	return nil
}

// Pointer events built from what the surface paints must land where the
// controller hit-tests.
func TestSurfacePointsDriveController(t *testing.T) {
	disp := &captureDispatcher{}
	clip := &memClipboard{}
	ctrl, err := selection.NewController(selection.Options{
		Dispatcher: disp,
		Viewport:   func() geometry.Viewport { return retina },
		Clipboard:  clip,
	})
	require.NoError(t, err)
	require.NoError(t, ctrl.Start(selection.CaptureParams{APIKey: "k", TargetLanguage: "Spanish"}))

	f := Layout(ctrl.Scene())
	ctrl.Handle(input.Event{Kind: input.PointerDown, Point: f.OverlayPoint(image.Pt(200, 200))})
	ctrl.Handle(input.Event{Kind: input.PointerMove, Point: f.OverlayPoint(image.Pt(400, 350))})
	ctrl.Handle(input.Event{Kind: input.PointerUp, Point: f.OverlayPoint(image.Pt(600, 500))})

	require.Len(t, disp.areas, 1)
	assert.Equal(t, geometry.CaptureArea{Left: 200, Top: 200, Width: 400, Height: 300}, disp.areas[0])

	require.True(t, ctrl.Show(ctrl.Session(), messages.ShowTranslation{Translation: "Hola"}))
	f = Layout(ctrl.Scene())
	require.NotNil(t, f.Panel)
	copyBtn := f.Panel.Buttons[1]
	click := f.Panel.Bounds.Min.Add(copyBtn.Rect.Min).Add(copyBtn.Rect.Size().Div(2))

	ctrl.Handle(input.Event{Kind: input.PointerDown, Point: f.PagePoint(click)}.OnPanel())
	assert.Equal(t, "Hola", clip.text)
	assert.True(t, ctrl.Scene().Result.Copied)
}
