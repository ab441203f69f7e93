package selection

import (
	"time"

	"screen-translate-llm/src/geometry"
)

// Instructions is shown on the dimming overlay while selecting.
const Instructions = "Click and drag to select area to translate. Press ESC to cancel."

// Toast is a transient error message.
type Toast struct {
	Message string
	Expires time.Time
}

// Scene is everything the page context currently shows. The view layer renders
// it and never reaches into the controller.
type Scene struct {
	Viewport geometry.Viewport
	// Overlay is set while the user is choosing a region.
	Overlay      bool
	Instructions string
	// Selection is the rectangle being dragged, in viewport coordinates.
	Selection *geometry.Rect
	Loading   *Panel
	Result    *Panel
	Toasts    []Toast
}

// Empty reports whether nothing at all is on screen.
func (s Scene) Empty() bool {
	return !s.Overlay && s.Selection == nil && s.Loading == nil && s.Result == nil && len(s.Toasts) == 0
}
