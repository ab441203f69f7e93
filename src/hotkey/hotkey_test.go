package hotkey

import (
	"testing"

	gohook "github.com/robotn/gohook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-translate-llm/src/geometry"
	"screen-translate-llm/src/input"
)

func TestKeyNameToRawcodes(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		// Modifier keys
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"win", []uint16{91, 92}},
		{"cmd", []uint16{91, 92}},
		{"super", []uint16{91, 92}},

		// Letter keys
		{"a", []uint16{65}},
		{"q", []uint16{81}},
		{"t", []uint16{84}},
		{"z", []uint16{90}},

		// Number keys
		{"0", []uint16{48}},
		{"9", []uint16{57}},

		// Function keys
		{"f1", []uint16{112}},
		{"f12", []uint16{123}},
		{"f24", []uint16{135}},
		{"f25", nil},

		// Special keys
		{"space", []uint16{32}},
		{"enter", []uint16{13}},
		{"esc", []uint16{27}},
		{"pgdn", []uint16{34}},

		{"unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			assert.Equal(t, tt.expected, keyNameToRawcodes(tt.keyName))
		})
	}
}

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Ctrl+Alt+T", []string{"ctrl", "alt", "t"}},
		{"Ctrl+Shift+O", []string{"ctrl", "shift", "o"}},
		{"Alt+F4", []string{"alt", "f4"}},
		{"Control + Alt + t", []string{"ctrl", "alt", "t"}},
		{"Ctrl+Win+E", []string{"ctrl", "cmd", "e"}},
		{"Super+Alt+T", []string{"cmd", "alt", "t"}},
		{"Ctrl++T", []string{"ctrl", "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseHotkey(tt.input))
		})
	}
}

func TestNewListenerRejectsUnknownKeys(t *testing.T) {
	_, err := NewListener(Options{Hotkey: "bogus+nothing"})
	assert.Error(t, err)

	l, err := NewListener(Options{})
	require.NoError(t, err)
	l.Process(gohook.Event{Kind: gohook.KeyHold, Rawcode: 84})
}

func TestCombinationFiresOnce(t *testing.T) {
	fired := 0
	l, err := NewListener(Options{Hotkey: "Ctrl+Alt+T", OnHotkey: func() { fired++ }})
	require.NoError(t, err)

	l.Process(gohook.Event{Kind: gohook.KeyHold, Rawcode: 162})
	l.Process(gohook.Event{Kind: gohook.KeyHold, Rawcode: 165})
	assert.Zero(t, fired)
	l.Process(gohook.Event{Kind: gohook.KeyHold, Rawcode: 84})
	assert.Equal(t, 1, fired)

	// Keys were reset, so T alone does nothing.
	l.Process(gohook.Event{Kind: gohook.KeyHold, Rawcode: 84})
	assert.Equal(t, 1, fired)
}

func TestReleaseBreaksCombination(t *testing.T) {
	fired := 0
	l, err := NewListener(Options{Hotkey: "Ctrl+T", OnHotkey: func() { fired++ }})
	require.NoError(t, err)

	l.Process(gohook.Event{Kind: gohook.KeyHold, Rawcode: 162})
	l.Process(gohook.Event{Kind: gohook.KeyUp, Rawcode: 162})
	l.Process(gohook.Event{Kind: gohook.KeyHold, Rawcode: 84})
	assert.Zero(t, fired)
}

func TestPointerAndEscapeEvents(t *testing.T) {
	var got []input.Event
	l, err := NewListener(Options{PixelRatio: 2, Pointers: true, OnInput: func(e input.Event) { got = append(got, e) }})
	require.NoError(t, err)

	l.Process(gohook.Event{Kind: gohook.MouseHold, X: 200, Y: 200})
	l.Process(gohook.Event{Kind: gohook.MouseDrag, X: 400, Y: 300})
	l.Process(gohook.Event{Kind: gohook.MouseDown, X: 600, Y: 500})
	l.Process(gohook.Event{Kind: gohook.MouseUp, X: 600, Y: 500})
	l.Process(gohook.Event{Kind: gohook.KeyHold, Rawcode: vkEscape})

	require.Len(t, got, 4)
	assert.Equal(t, input.Event{Kind: input.PointerDown, Point: geometry.Point{X: 100, Y: 100}}, got[0])
	assert.Equal(t, input.PointerMove, got[1].Kind)
	assert.Equal(t, input.Event{Kind: input.PointerUp, Point: geometry.Point{X: 300, Y: 250}}, got[2])
	assert.Equal(t, input.Key(input.KeyEscape), got[3])
}

func TestEscapeEmittedOncePerPress(t *testing.T) {
	var got []input.Event
	l, err := NewListener(Options{OnInput: func(e input.Event) { got = append(got, e) }})
	require.NoError(t, err)

	l.Process(gohook.Event{Kind: gohook.KeyHold, Rawcode: vkEscape})
	l.Process(gohook.Event{Kind: gohook.KeyDown, Rawcode: vkEscape})
	l.Process(gohook.Event{Kind: gohook.KeyUp, Rawcode: vkEscape})

	assert.Equal(t, []input.Event{input.Key(input.KeyEscape)}, got)
}

func TestPointersOffIgnoresMouse(t *testing.T) {
	var got []input.Event
	l, err := NewListener(Options{OnInput: func(e input.Event) { got = append(got, e) }})
	require.NoError(t, err)

	l.Process(gohook.Event{Kind: gohook.MouseHold, X: 10, Y: 10})
	l.Process(gohook.Event{Kind: gohook.MouseDrag, X: 50, Y: 50})
	l.Process(gohook.Event{Kind: gohook.MouseDown, X: 90, Y: 90})

	assert.Empty(t, got)
}
