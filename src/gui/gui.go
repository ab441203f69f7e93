// Package gui draws the selection scene on the desktop. A layered window dims
// the display and captures the drag, and topmost windows carry the loading
// indicator, the result panel and error toasts. Pointer input seen by those
// windows is fed back to the page context.
package gui

import (
	"errors"

	"screen-translate-llm/src/input"
	"screen-translate-llm/src/selection"
)

// ErrUnsupported is returned by New where no native surface exists. Callers
// fall back to the console view.
var ErrUnsupported = errors.New("native overlay not available on this platform")

type Options struct {
	// OnInput receives pointer events from the overlay and the panel, in page
	// coordinates. Events from the panel are marked with input.FromPanel.
	OnInput func(input.Event)
}

// Surface renders scenes. Render may be called from any goroutine.
type Surface interface {
	Render(selection.Scene)
	Close() error
}

// New opens the native surface for this platform.
func New(opts Options) (Surface, error) {
	return newSurface(opts)
}
