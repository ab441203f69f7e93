package gui

import (
	"image"
	"math"

	"screen-translate-llm/src/geometry"
	"screen-translate-llm/src/selection"
)

// Toast metrics in page units.
const (
	toastWidth  = 320.0
	toastHeight = 44.0
	toastGap    = 8.0
	toastMargin = 20.0
)

const (
	loadingTitle    = "Translating..."
	loadingSubtitle = "Please wait while we process your image"
	resultTitle     = "Translation Result"
	copyLabel       = "Copy Text"
	copiedLabel     = "Copied!"
	newLabel        = "New Translation"
	closeLabel      = "×"
)

// Frame is a scene laid out in device pixels, ready to paint.
type Frame struct {
	// Screen is the display area the viewport covers, in desktop pixels.
	Screen image.Rectangle
	Ratio  float64

	Overlay      bool
	Instructions string
	// Selection is relative to Screen.Min. Empty when nothing is dragged.
	Selection image.Rectangle

	Panel  *PanelFrame
	Toasts *ToastFrame
}

type PanelFrame struct {
	// Bounds is in desktop pixels.
	Bounds  image.Rectangle
	Loading bool
	Title   string
	Text    string
	Buttons []Button
}

// Button is a labelled rectangle relative to the panel's top-left corner.
type Button struct {
	Kind      selection.Button
	Rect      image.Rectangle
	Label     string
	Highlight bool
}

type ToastFrame struct {
	// Bounds is in desktop pixels; Items are relative to Bounds.Min.
	Bounds image.Rectangle
	Items  []Box
}

type Box struct {
	Rect image.Rectangle
	Text string
}

// Layout converts a scene into device pixels. It is a pure function.
func Layout(s selection.Scene) Frame {
	ratio := s.Viewport.Ratio()
	vp := s.Viewport
	origin := image.Pt(scale(vp.ScrollX, ratio), scale(vp.ScrollY, ratio))
	f := Frame{
		Screen:       image.Rectangle{Min: origin, Max: origin.Add(image.Pt(scale(vp.Width, ratio), scale(vp.Height, ratio)))},
		Ratio:        ratio,
		Overlay:      s.Overlay,
		Instructions: s.Instructions,
	}
	if s.Selection != nil {
		f.Selection = deviceRect(*s.Selection, ratio)
	}

	switch {
	case s.Result != nil:
		f.Panel = resultFrame(*s.Result, origin, ratio)
	case s.Loading != nil:
		f.Panel = loadingFrame(*s.Loading, origin, ratio)
	}

	if len(s.Toasts) > 0 {
		f.Toasts = toastFrame(s.Toasts, f.Screen, ratio)
	}
	return f
}

func loadingFrame(p selection.Panel, origin image.Point, ratio float64) *PanelFrame {
	return &PanelFrame{
		Bounds:  deviceRect(p.Bounds(), ratio).Add(origin),
		Loading: true,
		Title:   loadingTitle,
		Text:    loadingSubtitle,
	}
}

func resultFrame(p selection.Panel, origin image.Point, ratio float64) *PanelFrame {
	local := deviceRect(p.Bounds(), ratio)
	button := func(b selection.Button, label string, highlight bool) Button {
		return Button{
			Kind:      b,
			Rect:      deviceRect(p.ButtonRect(b), ratio).Sub(local.Min),
			Label:     label,
			Highlight: highlight,
		}
	}
	copyText := copyLabel
	if p.Copied {
		copyText = copiedLabel
	}
	return &PanelFrame{
		Bounds: local.Add(origin),
		Title:  resultTitle,
		Text:   p.Text,
		Buttons: []Button{
			button(selection.CloseButton, closeLabel, false),
			button(selection.CopyButton, copyText, p.Copied),
			button(selection.NewButton, newLabel, false),
		},
	}
}

// toastFrame stacks toasts in the top-right corner of the screen.
func toastFrame(toasts []selection.Toast, screen image.Rectangle, ratio float64) *ToastFrame {
	w := scale(toastWidth, ratio)
	h := scale(toastHeight, ratio)
	gap := scale(toastGap, ratio)
	margin := scale(toastMargin, ratio)

	tf := &ToastFrame{}
	for i, t := range toasts {
		y := i * (h + gap)
		tf.Items = append(tf.Items, Box{Rect: image.Rect(0, y, w, y+h), Text: t.Message})
	}
	height := len(toasts)*(h+gap) - gap
	minPt := image.Pt(screen.Max.X-margin-w, screen.Min.Y+margin)
	tf.Bounds = image.Rectangle{Min: minPt, Max: minPt.Add(image.Pt(w, height))}
	return tf
}

// OverlayPoint converts a point in the overlay's client area to page coordinates.
func (f Frame) OverlayPoint(client image.Point) geometry.Point {
	return f.PagePoint(f.Screen.Min.Add(client))
}

// PagePoint converts a desktop pixel to page coordinates, the same space the
// global input hook reports in.
func (f Frame) PagePoint(desktop image.Point) geometry.Point {
	ratio := f.Ratio
	if ratio <= 0 {
		ratio = 1
	}
	return geometry.Point{X: float64(desktop.X) / ratio, Y: float64(desktop.Y) / ratio}
}

func scale(v, ratio float64) int {
	return int(math.Round(v * ratio))
}

func deviceRect(r geometry.Rect, ratio float64) image.Rectangle {
	x, y := scale(r.Left, ratio), scale(r.Top, ratio)
	return image.Rect(x, y, x+scale(r.Width, ratio), y+scale(r.Height, ratio))
}
