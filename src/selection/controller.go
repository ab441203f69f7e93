// Package selection implements the on-screen region picker, the loading
// indicator and the result panel. A Controller is owned by a single goroutine
// and is not safe for concurrent use.
package selection

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"screen-translate-llm/src/geometry"
	"screen-translate-llm/src/input"
	"screen-translate-llm/src/messages"
)

var (
	ErrMissingAPIKey      = errors.New("missing Gemini API key")
	ErrSelectionCancelled = errors.New("selection cancelled")
)

const (
	ToastLifetime  = 5 * time.Second
	CopiedFeedback = 2 * time.Second

	missingKeyMessage = "Please enter your Gemini API key first"
)

type State int

const (
	Idle State = iota
	Selecting
	Dragging
	Capturing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Dragging:
		return "dragging"
	case Capturing:
		return "capturing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CaptureParams are the user settings a capture session runs with.
type CaptureParams = messages.TranslationParams

// Dispatcher sends a capture request to the privileged side. The answer comes
// back later through Show and Settle with the same session ID.
type Dispatcher interface {
	Dispatch(sessionID string, req messages.CaptureVisibleTab)
}

type PositionStore interface {
	LoadPosition() (geometry.Position, bool)
	SavePosition(geometry.Position) error
}

type Clipboard interface {
	WriteText(text string) error
}

// Outcome reports how a session ended.
type Outcome struct {
	SessionID   string
	Translation string
	Err         error
}

type Options struct {
	Dispatcher Dispatcher
	Viewport   func() geometry.Viewport
	Positions  PositionStore
	Clipboard  Clipboard
	// PanelTimeout dismisses the result panel automatically. Zero keeps it open.
	PanelTimeout time.Duration
	// OnSettled is called once per session that got past Start.
	OnSettled    func(Outcome)
	Now          func() time.Time
	NewSessionID func() string
}

type panelDrag struct {
	active bool
	target *Panel
	offset geometry.Point
}

type Controller struct {
	opts Options

	state   State
	params  CaptureParams
	session string
	// shown is the last session whose result came in through a push; its
	// reply follows and is expected.
	shown   string
	anchor  geometry.Point
	current geometry.Point

	loading *Panel
	result  *Panel
	toasts  []Toast
	drag    panelDrag
}

func NewController(opts Options) (*Controller, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if opts.Viewport == nil {
		return nil, errors.New("viewport source is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewSessionID == nil {
		opts.NewSessionID = uuid.NewString
	}
	return &Controller{opts: opts}, nil
}

func (c *Controller) State() State { return c.state }

// Session returns the ID of the capture in flight, or "".
func (c *Controller) Session() string { return c.session }

// Listening reports whether the controller has pointer or key listeners attached.
func (c *Controller) Listening() bool { return c.state != Idle }

// Start enters Selecting. It is a no-op while a session is already active.
func (c *Controller) Start(p CaptureParams) error {
	if c.state != Idle {
		zap.L().Debug("selection: start ignored", zap.Stringer("state", c.state))
		return nil
	}
	if strings.TrimSpace(p.APIKey) == "" {
		c.toast(missingKeyMessage)
		c.settled(Outcome{Err: ErrMissingAPIKey})
		return ErrMissingAPIKey
	}
	c.params = p
	c.result = nil
	c.drag = panelDrag{}
	c.state = Selecting
	zap.L().Debug("selection: overlay shown")
	return nil
}

// Handle routes an input event to the matching handler. Pointer events act on
// the panels only when the panel surface delivered them, so clicks elsewhere
// on the desktop never reach an undrawn panel.
func (c *Controller) Handle(ev input.Event) {
	if ev.Source == input.FromPanel {
		c.handlePanel(ev)
		return
	}
	switch ev.Kind {
	case input.PointerDown:
		c.PointerDown(ev.Point)
	case input.PointerMove:
		c.PointerMove(ev.Point)
	case input.PointerUp:
		c.PointerUp(ev.Point)
	case input.KeyDown:
		c.KeyDown(ev.Key)
	}
}

// PointerDown anchors a selection while the overlay is up.
func (c *Controller) PointerDown(p geometry.Point) {
	if c.state == Selecting {
		c.anchor, c.current = p, p
		c.state = Dragging
	}
}

func (c *Controller) PointerMove(p geometry.Point) {
	if c.state == Dragging {
		c.current = p
	}
}

func (c *Controller) PointerUp(p geometry.Point) {
	if c.state == Dragging {
		c.current = p
		c.finishSelection()
	}
}

func (c *Controller) handlePanel(ev input.Event) {
	if c.state == Selecting || c.state == Dragging {
		return
	}
	vp := c.opts.Viewport()
	local := vp.Local(ev.Point)
	switch ev.Kind {
	case input.PointerDown:
		c.panelPointerDown(local)
	case input.PointerMove:
		if c.drag.active {
			pos := geometry.Position{X: local.X - c.drag.offset.X, Y: local.Y - c.drag.offset.Y}
			c.drag.target.Position = geometry.KeepInside(pos, vp, PanelSize)
		}
	case input.PointerUp:
		if c.drag.active {
			pos := c.drag.target.Position
			c.drag = panelDrag{}
			c.savePosition(pos)
		}
	case input.KeyDown:
		c.KeyDown(ev.Key)
	}
}

// KeyDown handles Escape: it aborts an active session or closes the result panel.
func (c *Controller) KeyDown(key string) {
	if key != input.KeyEscape {
		return
	}
	switch c.state {
	case Selecting, Dragging, Capturing:
		c.cancel()
	case Idle:
		if c.result != nil {
			c.dismiss()
		}
	}
}

func (c *Controller) finishSelection() {
	vp := c.opts.Viewport()
	rect := geometry.NormalizeRect(c.anchor, c.current).ToViewport(vp)
	if !rect.Valid() {
		zap.L().Debug("selection: too small, cancelled",
			zap.Float64("width", rect.Width), zap.Float64("height", rect.Height))
		c.state = Idle
		c.settled(Outcome{Err: ErrSelectionCancelled})
		return
	}

	area := geometry.ToCaptureArea(rect, vp.Ratio())
	c.loading = &Panel{Kind: LoadingPanel, Position: c.displayPosition(rect, vp)}
	c.session = c.opts.NewSessionID()
	c.state = Capturing

	zap.L().Info("selection: dispatching capture",
		zap.String("session", c.session),
		zap.Any("area", area))
	c.opts.Dispatcher.Dispatch(c.session, messages.CaptureVisibleTab{
		Area:              area,
		OriginalArea:      rect,
		PixelRatio:        vp.Ratio(),
		TranslationParams: c.params,
	})
}

// displayPosition prefers the position the user last dropped a panel at.
func (c *Controller) displayPosition(sel geometry.Rect, vp geometry.Viewport) geometry.Position {
	if c.opts.Positions != nil {
		if saved, ok := c.opts.Positions.LoadPosition(); ok {
			return geometry.ClampPosition(saved, vp, PanelSize)
		}
	}
	return geometry.PlacePanel(sel, vp, PanelSize)
}

// Show renders a pushed translation. It reports false if sessionID is stale.
func (c *Controller) Show(sessionID string, msg messages.ShowTranslation) bool {
	if !c.accepts(sessionID) {
		return false
	}
	c.showResult(msg.Translation, msg.ImageData)
	return true
}

// Settle handles the bridge reply. A successful reply only renders if the
// push has not done so already.
func (c *Controller) Settle(sessionID string, resp messages.CaptureResponse) bool {
	if !c.accepts(sessionID) {
		return false
	}
	if resp.Success {
		c.showResult(resp.Translation, resp.ImageData)
		return true
	}
	msg := resp.Error
	if msg == "" {
		msg = "Unknown error"
	}
	id := c.session
	c.endSession()
	c.toast("Capture failed: " + msg)
	c.settled(Outcome{SessionID: id, Err: errors.New(msg)})
	return true
}

func (c *Controller) accepts(sessionID string) bool {
	if c.state != Capturing || sessionID == "" || sessionID != c.session {
		if sessionID != "" && sessionID == c.shown {
			zap.L().Debug("selection: reply after push", zap.String("session", sessionID))
			return false
		}
		zap.L().Info("selection: discarding stale response",
			zap.String("session", sessionID),
			zap.String("current", c.session))
		return false
	}
	return true
}

func (c *Controller) showResult(text string, image []byte) {
	id := c.session
	pos := c.loading.Position
	c.shown = id
	c.endSession()
	c.result = &Panel{Kind: ResultPanel, Position: pos, Text: text, Image: image}
	if c.opts.PanelTimeout > 0 {
		c.result.expiresAt = c.opts.Now().Add(c.opts.PanelTimeout)
	}
	c.settled(Outcome{SessionID: id, Translation: text})
}

func (c *Controller) endSession() {
	if c.drag.target == c.loading {
		c.drag = panelDrag{}
	}
	c.loading = nil
	c.session = ""
	c.state = Idle
}

func (c *Controller) cancel() {
	id := c.session
	zap.L().Debug("selection: cancelled", zap.Stringer("state", c.state), zap.String("session", id))
	c.endSession()
	c.settled(Outcome{SessionID: id, Err: ErrSelectionCancelled})
}

func (c *Controller) panelPointerDown(p geometry.Point) {
	target := c.result
	if target == nil {
		target = c.loading
	}
	if target == nil || !target.Bounds().Contains(p) {
		return
	}
	switch target.ButtonAt(p) {
	case CloseButton:
		c.dismiss()
	case CopyButton:
		c.copyResult()
	case NewButton:
		c.newTranslation()
	default:
		c.drag = panelDrag{
			active: true,
			target: target,
			offset: geometry.Point{X: p.X - target.Position.X, Y: p.Y - target.Position.Y},
		}
	}
}

func (c *Controller) dismiss() {
	c.result = nil
	c.drag = panelDrag{}
}

func (c *Controller) copyResult() {
	if c.opts.Clipboard == nil {
		c.toast("Copy failed: clipboard unavailable")
		return
	}
	if err := c.opts.Clipboard.WriteText(c.result.Text); err != nil {
		zap.L().Warn("selection: copy failed", zap.Error(err))
		c.toast("Copy failed: " + err.Error())
		return
	}
	c.result.Copied = true
	c.result.copiedUntil = c.opts.Now().Add(CopiedFeedback)
}

func (c *Controller) newTranslation() {
	c.dismiss()
	if err := c.Start(c.params); err != nil {
		zap.L().Warn("selection: new translation", zap.Error(err))
	}
}

func (c *Controller) savePosition(pos geometry.Position) {
	if c.opts.Positions == nil {
		return
	}
	if err := c.opts.Positions.SavePosition(pos); err != nil {
		zap.L().Warn("selection: failed to save panel position", zap.Error(err))
	}
}

func (c *Controller) toast(msg string) {
	c.toasts = append(c.toasts, Toast{Message: msg, Expires: c.opts.Now().Add(ToastLifetime)})
}

func (c *Controller) settled(o Outcome) {
	if c.opts.OnSettled != nil {
		c.opts.OnSettled(o)
	}
}

// Tick expires toasts, the "Copied!" feedback and the panel timeout. It
// reports whether anything visible changed.
func (c *Controller) Tick(now time.Time) bool {
	changed := false
	kept := c.toasts[:0]
	for _, t := range c.toasts {
		if now.Before(t.Expires) {
			kept = append(kept, t)
		} else {
			changed = true
		}
	}
	c.toasts = kept

	if c.result != nil {
		if c.result.Copied && !now.Before(c.result.copiedUntil) {
			c.result.Copied = false
			changed = true
		}
		if !c.result.expiresAt.IsZero() && !now.Before(c.result.expiresAt) && !c.drag.active {
			c.dismiss()
			changed = true
		}
	}
	return changed
}

// Scene returns a snapshot of what is on screen.
func (c *Controller) Scene() Scene {
	s := Scene{Viewport: c.opts.Viewport()}
	switch c.state {
	case Selecting:
		s.Overlay = true
		s.Instructions = Instructions
	case Dragging:
		s.Overlay = true
		s.Instructions = Instructions
		r := geometry.NormalizeRect(c.anchor, c.current).ToViewport(s.Viewport)
		s.Selection = &r
	}
	if c.loading != nil {
		p := *c.loading
		s.Loading = &p
	}
	if c.result != nil {
		p := *c.result
		s.Result = &p
	}
	if len(c.toasts) > 0 {
		s.Toasts = append([]Toast(nil), c.toasts...)
	}
	return s
}
