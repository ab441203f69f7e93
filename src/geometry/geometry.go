package geometry

import "math"

const (
	// MinSelectionSize is the side length a selection must exceed to be captured.
	MinSelectionSize = 10.0
	// EdgeMargin keeps floating panels away from the viewport edges.
	EdgeMargin = 10.0
	// panelGap separates a panel from the selection it describes.
	panelGap = 20.0
)

// Point is a pointer position in page coordinates.
type Point struct {
	X float64
	Y float64
}

// Rect is a selection rectangle. Width and Height are never negative.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// CaptureArea is a rectangle in device pixels, consumed by the crop step.
type CaptureArea struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Position is the top-left corner of a floating panel in viewport coordinates.
type Position struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
}

// Size is a panel's width and height.
type Size struct {
	Width  float64
	Height float64
}

// Viewport describes the visible area at the time of an event.
type Viewport struct {
	Width      float64
	Height     float64
	ScrollX    float64
	ScrollY    float64
	PixelRatio float64
}

// NormalizeRect builds the rectangle spanned by two corners regardless of drag direction.
func NormalizeRect(p1, p2 Point) Rect {
	return Rect{
		Left:   math.Min(p1.X, p2.X),
		Top:    math.Min(p1.Y, p2.Y),
		Width:  math.Abs(p2.X - p1.X),
		Height: math.Abs(p2.Y - p1.Y),
	}
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.Left + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Valid reports whether both sides exceed MinSelectionSize.
func (r Rect) Valid() bool {
	return r.Width > MinSelectionSize && r.Height > MinSelectionSize
}

// Contains reports whether p lies inside r (edges included).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Right() && p.Y >= r.Top && p.Y <= r.Bottom()
}

// ToViewport converts a page-space rectangle into viewport space.
func (r Rect) ToViewport(vp Viewport) Rect {
	r.Left -= vp.ScrollX
	r.Top -= vp.ScrollY
	return r
}

// Local converts a page-space point into viewport space.
func (vp Viewport) Local(p Point) Point {
	return Point{X: p.X - vp.ScrollX, Y: p.Y - vp.ScrollY}
}

// Ratio returns the device pixel ratio, falling back to 1.
func (vp Viewport) Ratio() float64 {
	if vp.PixelRatio <= 0 {
		return 1
	}
	return vp.PixelRatio
}

// ToCaptureArea scales r by ratio and rounds every field to the nearest integer.
func ToCaptureArea(r Rect, ratio float64) CaptureArea {
	if ratio <= 0 {
		ratio = 1
	}
	return CaptureArea{
		Left:   int(math.Round(r.Left * ratio)),
		Top:    int(math.Round(r.Top * ratio)),
		Width:  int(math.Round(r.Width * ratio)),
		Height: int(math.Round(r.Height * ratio)),
	}
}

// ToRect divides the area back into CSS pixels.
func (a CaptureArea) ToRect(ratio float64) Rect {
	if ratio <= 0 {
		ratio = 1
	}
	return Rect{
		Left:   float64(a.Left) / ratio,
		Top:    float64(a.Top) / ratio,
		Width:  float64(a.Width) / ratio,
		Height: float64(a.Height) / ratio,
	}
}

// Empty reports whether the area has no pixels.
func (a CaptureArea) Empty() bool { return a.Width <= 0 || a.Height <= 0 }

// ClampPosition keeps a panel of the given size fully on screen with EdgeMargin
// on every side. If the viewport is too small, the top-left margin wins.
func ClampPosition(p Position, vp Viewport, panel Size) Position {
	return clampWithin(p, vp, panel, EdgeMargin)
}

// KeepInside keeps a panel fully on screen without any margin. Used while the
// user drags a panel around.
func KeepInside(p Position, vp Viewport, panel Size) Position {
	return clampWithin(p, vp, panel, 0)
}

func clampWithin(p Position, vp Viewport, panel Size, margin float64) Position {
	return Position{
		X: clamp(p.X, margin, vp.Width-panel.Width-margin),
		Y: clamp(p.Y, margin, vp.Height-panel.Height-margin),
	}
}

// PlacePanel picks a default spot for a panel describing sel (viewport coordinates):
// to the right of the selection, else to the left, else below it.
func PlacePanel(sel Rect, vp Viewport, panel Size) Position {
	var p Position
	switch {
	case sel.Right()+panel.Width+panelGap < vp.Width:
		p = Position{X: sel.Right() + panelGap, Y: sel.Top}
	case sel.Left-panel.Width-panelGap > 0:
		p = Position{X: sel.Left - panel.Width - panelGap, Y: sel.Top}
	default:
		p = Position{X: sel.Left, Y: sel.Bottom() + panelGap}
	}
	return ClampPosition(p, vp, panel)
}

// DefaultPosition is used when there is neither a saved position nor a selection.
func DefaultPosition(vp Viewport, panel Size) Position {
	return ClampPosition(Position{X: vp.Width - panel.Width - 50, Y: 50}, vp, panel)
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
