// Package input defines the pointer and keyboard events the page context consumes.
package input

import (
	"fmt"

	"screen-translate-llm/src/geometry"
)

type Kind int

const (
	PointerDown Kind = iota + 1
	PointerMove
	PointerUp
	KeyDown
)

// KeyEscape is the only key name the selection UI reacts to.
const KeyEscape = "Escape"

func (k Kind) String() string {
	switch k {
	case PointerDown:
		return "pointerdown"
	case PointerMove:
		return "pointermove"
	case PointerUp:
		return "pointerup"
	case KeyDown:
		return "keydown"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Source says which surface saw a pointer event. Only events delivered by
// the drawn panel itself may act on the panel.
type Source int

const (
	FromScreen Source = iota
	FromPanel
)

// Event is a single input event. Point is in page coordinates and is only set
// for pointer events; Key is only set for KeyDown.
type Event struct {
	Kind   Kind
	Point  geometry.Point
	Key    string
	Source Source
}

// OnPanel marks e as delivered by the panel surface.
func (e Event) OnPanel() Event {
	e.Source = FromPanel
	return e
}

func Down(x, y float64) Event { return Event{Kind: PointerDown, Point: geometry.Point{X: x, Y: y}} }
func Move(x, y float64) Event { return Event{Kind: PointerMove, Point: geometry.Point{X: x, Y: y}} }
func Up(x, y float64) Event   { return Event{Kind: PointerUp, Point: geometry.Point{X: x, Y: y}} }
func Key(name string) Event   { return Event{Kind: KeyDown, Key: name} }
