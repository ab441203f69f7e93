package hotkey

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
	"go.uber.org/zap"

	"screen-translate-llm/src/geometry"
	"screen-translate-llm/src/input"
)

type Options struct {
	// Hotkey is a combination like "Ctrl+Alt+T". Empty disables the hotkey.
	Hotkey string
	// PixelRatio converts hook coordinates (device pixels) into page units.
	PixelRatio float64
	OnHotkey   func()
	// OnInput receives Escape presses, and pointer events when Pointers is
	// set. It must not block.
	OnInput func(input.Event)
	// Pointers forwards global mouse events. Leave it off when a drawn
	// surface delivers its own pointer input.
	Pointers bool
}

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// Listener turns the global hook stream into hotkey activations and input events.
type Listener struct {
	mu       sync.Mutex
	combo    string
	keys     []keyState
	ratio    float64
	pointers bool
	onHotkey func()
	onInput  func(input.Event)
}

func NewListener(opts Options) (*Listener, error) {
	l := &Listener{
		combo:    opts.Hotkey,
		ratio:    opts.PixelRatio,
		pointers: opts.Pointers,
		onHotkey: opts.OnHotkey,
		onInput:  opts.OnInput,
	}
	if l.ratio <= 0 {
		l.ratio = 1
	}
	if opts.Hotkey == "" {
		return l, nil
	}

	keys := parseHotkey(opts.Hotkey)
	zap.L().Debug("hotkey: parsed configuration", zap.Strings("keys", keys))
	for _, keyName := range keys {
		rawcodes := keyNameToRawcodes(keyName)
		if len(rawcodes) == 0 {
			zap.L().Error("hotkey: cannot map key to rawcodes", zap.String("key", keyName))
			continue
		}
		l.keys = append(l.keys, keyState{name: keyName, rawcodes: rawcodes})
	}
	if len(l.keys) == 0 {
		return nil, errors.New("no valid keys in hotkey configuration " + strconv.Quote(opts.Hotkey))
	}
	return l, nil
}

// Listen starts the global hook and feeds it to a new Listener until ctx is done.
func Listen(ctx context.Context, opts Options) error {
	l, err := NewListener(opts)
	if err != nil {
		return err
	}

	evChan := gohook.Start()
	if evChan == nil {
		return errors.New("gohook.Start returned nil channel")
	}
	zap.L().Info("hotkey: listener started", zap.String("hotkey", opts.Hotkey))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("hotkey: panic in hook goroutine", zap.Any("panic", r))
			}
		}()
		defer gohook.End()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-evChan:
				if !ok {
					zap.L().Info("hotkey: event channel closed")
					return
				}
				l.Process(ev)
			}
		}
	}()
	return nil
}

// Process handles one hook event.
func (l *Listener) Process(ev gohook.Event) {
	// gohook keeps libuiohook's event order: KeyHold is the physical press,
	// MouseHold a button press and MouseDown its release. MouseUp is the
	// synthetic click that follows a release and is ignored. KeyDown is the
	// typed-character event that follows KeyHold.
	switch ev.Kind {
	case gohook.KeyDown, gohook.KeyHold:
		if ev.Kind == gohook.KeyHold && isEscape(ev) {
			l.emit(input.Key(input.KeyEscape))
		}
		if l.press(ev.Rawcode) && l.onHotkey != nil {
			zap.L().Info("hotkey: combination detected", zap.String("hotkey", l.combo))
			l.onHotkey()
		}
	case gohook.KeyUp:
		l.release(ev.Rawcode)
	case gohook.MouseHold:
		l.emitPointer(input.PointerDown, ev)
	case gohook.MouseMove, gohook.MouseDrag:
		l.emitPointer(input.PointerMove, ev)
	case gohook.MouseDown:
		l.emitPointer(input.PointerUp, ev)
	}
}

func isEscape(ev gohook.Event) bool {
	if code, ok := gohook.Keycode["esc"]; ok && code != 0 && ev.Keycode == code {
		return true
	}
	return ev.Rawcode == vkEscape
}

func (l *Listener) point(ev gohook.Event) geometry.Point {
	return geometry.Point{X: float64(ev.X) / l.ratio, Y: float64(ev.Y) / l.ratio}
}

func (l *Listener) emitPointer(kind input.Kind, ev gohook.Event) {
	if l.pointers {
		l.emit(input.Event{Kind: kind, Point: l.point(ev)})
	}
}

func (l *Listener) emit(e input.Event) {
	if l.onInput != nil {
		l.onInput(e)
	}
}

// press marks rawcode as held and reports whether the whole combination is down.
// Detecting the combination resets it so holding the keys fires once.
func (l *Listener) press(rawcode uint16) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.keys) == 0 {
		return false
	}
	for i := range l.keys {
		if containsCode(l.keys[i].rawcodes, rawcode) {
			l.keys[i].pressed = true
		}
	}
	for i := range l.keys {
		if !l.keys[i].pressed {
			return false
		}
	}
	for i := range l.keys {
		l.keys[i].pressed = false
	}
	return true
}

func (l *Listener) release(rawcode uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.keys {
		if containsCode(l.keys[i].rawcodes, rawcode) {
			l.keys[i].pressed = false
		}
	}
}

func containsCode(codes []uint16, c uint16) bool {
	for _, code := range codes {
		if code == c {
			return true
		}
	}
	return false
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "":
		case "control":
			keys = append(keys, "ctrl")
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}

	return keys
}

const vkEscape = 27

var specialKeys = map[string][]uint16{
	"ctrl":      {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":       {164, 165}, // VK_LMENU, VK_RMENU
	"shift":     {160, 161},
	"cmd":       {91, 92}, // VK_LWIN, VK_RWIN
	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {vkEscape},
	"escape":    {vkEscape},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a key name to its Windows virtual key codes. Modifiers
// map to both their left and right variants.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if keyName == "win" || keyName == "super" {
		keyName = "cmd"
	}
	if codes, ok := specialKeys[keyName]; ok {
		return codes
	}

	if len(keyName) == 1 {
		switch c := keyName[0]; {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(65 + c - 'a')}
		case c >= '0' && c <= '9':
			return []uint16{uint16(48 + c - '0')}
		}
	}

	// F1-F24 are VK 112-135.
	if strings.HasPrefix(keyName, "f") {
		if n, err := strconv.Atoi(keyName[1:]); err == nil && n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)}
		}
	}

	zap.L().Warn("hotkey: unknown key name", zap.String("key", keyName))
	return nil
}
