package selection

import (
	"time"

	"screen-translate-llm/src/geometry"
)

// PanelSize is the nominal size of both the loading indicator and the result panel.
var PanelSize = geometry.Size{Width: 300, Height: 190}

const (
	panelPadding = 12.0
	buttonHeight = 28.0
	closeSize    = 20.0
	copyWidth    = 84.0
	newWidth     = 130.0
	buttonGap    = 8.0
)

type PanelKind int

const (
	LoadingPanel PanelKind = iota
	ResultPanel
)

// Button identifies a clickable region of the result panel.
type Button int

const (
	NoButton Button = iota
	CloseButton
	CopyButton
	NewButton
)

func (b Button) String() string {
	switch b {
	case CloseButton:
		return "close"
	case CopyButton:
		return "copy"
	case NewButton:
		return "new"
	default:
		return "none"
	}
}

// Panel is a floating box in viewport coordinates: either the loading
// indicator or the translation result.
type Panel struct {
	Kind     PanelKind
	Position geometry.Position
	Text     string
	Image    []byte
	// Copied is true while the "Copied!" feedback is showing.
	Copied bool

	copiedUntil time.Time
	expiresAt   time.Time
}

func (p Panel) Bounds() geometry.Rect {
	return geometry.Rect{Left: p.Position.X, Top: p.Position.Y, Width: PanelSize.Width, Height: PanelSize.Height}
}

// ButtonRect returns where b is drawn. Loading panels have no buttons.
func (p Panel) ButtonRect(b Button) geometry.Rect {
	if p.Kind != ResultPanel {
		return geometry.Rect{}
	}
	x, y := p.Position.X, p.Position.Y
	bottom := y + PanelSize.Height - panelPadding - buttonHeight
	switch b {
	case CloseButton:
		return geometry.Rect{Left: x + PanelSize.Width - panelPadding - closeSize, Top: y + buttonGap, Width: closeSize, Height: closeSize}
	case CopyButton:
		return geometry.Rect{Left: x + panelPadding, Top: bottom, Width: copyWidth, Height: buttonHeight}
	case NewButton:
		return geometry.Rect{Left: x + panelPadding + copyWidth + buttonGap, Top: bottom, Width: newWidth, Height: buttonHeight}
	}
	return geometry.Rect{}
}

// ButtonAt hit-tests pt (viewport coordinates) against the panel's buttons.
func (p Panel) ButtonAt(pt geometry.Point) Button {
	for _, b := range []Button{CloseButton, CopyButton, NewButton} {
		r := p.ButtonRect(b)
		if r.Width > 0 && r.Contains(pt) {
			return b
		}
	}
	return NoButton
}
