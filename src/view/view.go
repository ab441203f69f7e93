// Package view turns a selection.Scene into text for the resident console. It
// is the fallback when no native surface can be drawn.
package view

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"screen-translate-llm/src/selection"
)

const (
	colorAccent = "#4285f4"
	colorError  = "#f44336"
	colorDim    = "#565f89"
	colorText   = "#a9b1d6"
	colorGreen  = "#4caf50"

	panelWidth = 44
)

var (
	overlayStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorText)).
			Background(lipgloss.Color("#000000")).
			Padding(0, 1)

	selectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorAccent))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorAccent)).
			Padding(0, 1).
			Width(panelWidth)

	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorText))
	buttonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent))
	copiedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen))
	closeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorError))

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color(colorError)).
			Padding(0, 1)
)

// Render is a pure function of the scene. An empty scene renders as "".
func Render(s selection.Scene) string {
	var blocks []string

	if s.Overlay {
		blocks = append(blocks, overlayStyle.Render(s.Instructions))
	}
	if s.Selection != nil {
		r := s.Selection
		blocks = append(blocks, selectionStyle.Render(
			fmt.Sprintf("selection %.0fx%.0f at (%.0f, %.0f)", r.Width, r.Height, r.Left, r.Top)))
	}
	if s.Loading != nil {
		blocks = append(blocks, renderLoading(*s.Loading))
	}
	if s.Result != nil {
		blocks = append(blocks, renderResult(*s.Result))
	}
	for _, t := range s.Toasts {
		blocks = append(blocks, toastStyle.Render(t.Message))
	}

	if len(blocks) == 0 {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func renderLoading(p selection.Panel) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Translating..."),
		dimStyle.Render("Please wait while we process your image"),
		position(p),
	)
	return panelStyle.Render(body)
}

func renderResult(p selection.Panel) string {
	copyLabel := buttonStyle.Render("[Copy Text]")
	if p.Copied {
		copyLabel = copiedStyle.Render("[Copied!]")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("Translation Result"),
		strings.Repeat(" ", 2),
		closeStyle.Render("[×]"),
	)
	buttons := lipgloss.JoinHorizontal(lipgloss.Top,
		copyLabel, " ", buttonStyle.Render("[New Translation]"))

	body := lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		p.Text,
		"",
		buttons,
		position(p),
	)
	return panelStyle.Render(body)
}

func position(p selection.Panel) string {
	return dimStyle.Render(fmt.Sprintf("at (%.0f, %.0f)", p.Position.X, p.Position.Y))
}

// Printer writes rendered scenes to w, skipping frames identical to the last one.
type Printer struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Print(s selection.Scene) error {
	out := Render(s)

	p.mu.Lock()
	defer p.mu.Unlock()
	if out == p.last {
		return nil
	}
	p.last = out
	if out == "" {
		return nil
	}
	_, err := fmt.Fprintln(p.w, out)
	return err
}
