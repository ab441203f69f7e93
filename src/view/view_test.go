package view

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-translate-llm/src/geometry"
	"screen-translate-llm/src/selection"
)

func TestRenderEmptyScene(t *testing.T) {
	assert.Equal(t, "", Render(selection.Scene{}))
}

func TestRenderOverlay(t *testing.T) {
	r := geometry.Rect{Left: 100, Top: 100, Width: 200, Height: 150}
	out := Render(selection.Scene{
		Overlay:      true,
		Instructions: selection.Instructions,
		Selection:    &r,
	})
	assert.Contains(t, out, "Press ESC to cancel.")
	assert.Contains(t, out, "selection 200x150 at (100, 100)")
}

func TestRenderLoading(t *testing.T) {
	out := Render(selection.Scene{Loading: &selection.Panel{Position: geometry.Position{X: 320, Y: 100}}})
	assert.Contains(t, out, "Translating...")
	assert.Contains(t, out, "at (320, 100)")
}

func TestRenderResult(t *testing.T) {
	p := &selection.Panel{Kind: selection.ResultPanel, Text: "Hola"}
	out := Render(selection.Scene{Result: p})
	assert.Contains(t, out, "Translation Result")
	assert.Contains(t, out, "Hola")
	assert.Contains(t, out, "[Copy Text]")
	assert.Contains(t, out, "[New Translation]")

	p.Copied = true
	out = Render(selection.Scene{Result: p})
	assert.Contains(t, out, "[Copied!]")
	assert.NotContains(t, out, "[Copy Text]")
}

func TestRenderToasts(t *testing.T) {
	out := Render(selection.Scene{Toasts: []selection.Toast{{Message: "Capture failed: boom"}}})
	assert.Contains(t, out, "Capture failed: boom")
}

func TestPrinterSkipsDuplicates(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	scene := selection.Scene{Toasts: []selection.Toast{{Message: "x"}}}

	require.NoError(t, p.Print(scene))
	require.NoError(t, p.Print(scene))
	assert.Equal(t, 1, strings.Count(buf.String(), "x"))

	require.NoError(t, p.Print(selection.Scene{}))
	require.NoError(t, p.Print(scene))
	assert.Equal(t, 2, strings.Count(buf.String(), "x"))
}
