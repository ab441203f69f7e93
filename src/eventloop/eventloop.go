// Package eventloop runs the page side of the application: one goroutine owns
// the selection controller and serializes hotkey presses, pointer input,
// bridge traffic and delegated requests.
package eventloop

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"screen-translate-llm/src/bridge"
	"screen-translate-llm/src/geometry"
	"screen-translate-llm/src/input"
	"screen-translate-llm/src/messages"
	"screen-translate-llm/src/selection"
	"screen-translate-llm/src/session"
	"screen-translate-llm/src/singleinstance"
)

const defaultTickInterval = 200 * time.Millisecond

var errShuttingDown = errors.New("shutting down")

// Requester sends a message to the privileged context without blocking.
type Requester interface {
	Go(ctx context.Context, id string, msg messages.Message, done func(messages.CaptureResponse))
}

type Clipboard interface {
	WriteText(text string) error
}

type Options struct {
	Requester Requester
	// Params returns the current user settings. Called on every start.
	Params    func() messages.TranslationParams
	Viewport  func() geometry.Viewport
	Positions selection.PositionStore
	Clipboard Clipboard
	Render    func(selection.Scene)
	// Server accepts delegated requests. Nil disables delegation.
	Server         singleinstance.Server
	PanelTimeout   time.Duration
	RequestTimeout time.Duration
	TickInterval   time.Duration
	// OnBusyChange is called when a session starts or ends.
	OnBusyChange func(busy bool)
	// OnSettled sees every finished session after its target was answered.
	OnSettled func(selection.Outcome)
	Now       func() time.Time
}

// Loop is the single-threaded coordinator for hotkey, tray and delegated flows.
type Loop struct {
	opts Options
	ctrl *selection.Controller

	starts chan messages.StartCapture
	inputs chan input.Event
	bridge chan bridgeEvent
	done   chan struct{}

	ctx    context.Context
	outbox []func()
	target session.ResultTarget
	conn   singleinstance.Conn
	busy   bool
}

// bridgeEvent is either a push or a reply. Both travel on one channel so a
// push is always handled before the reply that follows it.
type bridgeEvent struct {
	id    string
	push  *messages.ShowTranslation
	reply *messages.CaptureResponse
}

func New(opts Options) (*Loop, error) {
	if opts.Requester == nil {
		return nil, errors.New("requester is required")
	}
	if opts.Params == nil {
		return nil, errors.New("params source is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.Render == nil {
		opts.Render = func(selection.Scene) {}
	}

	l := &Loop{
		opts:   opts,
		starts: make(chan messages.StartCapture, 4),
		inputs: make(chan input.Event, 64),
		bridge: make(chan bridgeEvent, 8),
		done:   make(chan struct{}),
		ctx:    context.Background(),
	}
	ctrl, err := selection.NewController(selection.Options{
		Dispatcher:   l,
		Viewport:     opts.Viewport,
		Positions:    opts.Positions,
		Clipboard:    opts.Clipboard,
		PanelTimeout: opts.PanelTimeout,
		OnSettled:    l.onSettled,
		Now:          opts.Now,
	})
	if err != nil {
		return nil, err
	}
	l.ctrl = ctrl
	return l, nil
}

// Trigger asks for a new selection with the current settings.
func (l *Loop) Trigger() {
	l.StartCapture(messages.StartCapture{})
}

// StartCapture asks for a new selection. Blank fields of msg fall back to the
// current settings. Extra requests while one is queued are dropped.
func (l *Loop) StartCapture(msg messages.StartCapture) {
	select {
	case l.starts <- msg:
	default:
	}
}

// Input posts a pointer or key event. Moves are dropped when the loop lags
// behind; presses and releases wait for room.
func (l *Loop) Input(ev input.Event) {
	if ev.Kind == input.PointerMove {
		select {
		case l.inputs <- ev:
		default:
		}
		return
	}
	select {
	case l.inputs <- ev:
	case <-l.done:
	}
}

// Push hands a non-reply envelope from the router inbox to the loop.
func (l *Loop) Push(env messages.Envelope) {
	switch msg := env.Message.(type) {
	case messages.ShowTranslation:
		l.post(bridgeEvent{id: env.ID, push: &msg})
	case messages.StartCapture:
		l.StartCapture(msg)
	default:
		zap.L().Warn("eventloop: unexpected push", zap.String("type", env.Message.Type()))
	}
}

func (l *Loop) post(ev bridgeEvent) {
	select {
	case l.bridge <- ev:
	case <-l.done:
	}
}

// Dispatch queues the capture request for sessionID. It is called by the
// controller on the loop goroutine and sent once the frame without the
// overlay has been rendered, so the capture never contains it.
func (l *Loop) Dispatch(sessionID string, req messages.CaptureVisibleTab) {
	l.outbox = append(l.outbox, func() {
		ctx, cancel := l.ctx, context.CancelFunc(func() {})
		if l.opts.RequestTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, l.opts.RequestTimeout)
		}
		l.opts.Requester.Go(ctx, sessionID, req, func(resp messages.CaptureResponse) {
			cancel()
			l.post(bridgeEvent{id: sessionID, reply: &resp})
		})
	})
}

func (l *Loop) flush() {
	out := l.outbox
	l.outbox = nil
	for _, send := range out {
		send()
	}
}

// Run processes events until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.ctx = ctx
	defer close(l.done)
	defer l.abandon()

	var conns <-chan singleinstance.Conn
	if l.opts.Server != nil {
		if err := l.opts.Server.Start(ctx); err != nil {
			return err
		}
		defer l.opts.Server.Close()
		zap.L().Info("eventloop: resident listening", zap.Int("port", l.opts.Server.Port()))
		conns = l.accept(ctx)
	}

	ticker := time.NewTicker(l.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-l.starts:
			l.start(session.PanelTarget{}, nil, msg)
		case ev := <-l.inputs:
			l.ctrl.Handle(ev)
		case ev := <-l.bridge:
			l.handleBridge(ev)
		case conn, ok := <-conns:
			if !ok {
				conns = nil
				continue
			}
			l.handleConn(conn)
		case now := <-ticker.C:
			if !l.ctrl.Tick(now) {
				continue
			}
		}
		l.refresh()
		l.flush()
	}
}

// accept runs Next in the background so result handling never waits on it.
func (l *Loop) accept(ctx context.Context) <-chan singleinstance.Conn {
	ch := make(chan singleinstance.Conn, 4)
	go func() {
		defer close(ch)
		for {
			conn, err := l.opts.Server.Next(ctx)
			if err != nil {
				return
			}
			select {
			case ch <- conn:
			case <-ctx.Done():
				_ = conn.RespondError(errShuttingDown.Error())
				_ = conn.Close()
				return
			}
		}
	}()
	return ch
}

func (l *Loop) handleConn(conn singleinstance.Conn) {
	req := conn.Request()
	zap.L().Info("eventloop: delegated request",
		zap.String("language", req.TargetLanguage),
		zap.Bool("copy", req.Copy))
	target := session.DelegatedTarget{Conn: conn, Copy: req.Copy, Clipboard: l.opts.Clipboard}
	l.start(target, conn, messages.StartCapture{
		TranslationParams: messages.TranslationParams{TargetLanguage: req.TargetLanguage},
	})
}

func (l *Loop) start(target session.ResultTarget, conn singleinstance.Conn, msg messages.StartCapture) {
	if l.ctrl.State() != selection.Idle || l.target != nil {
		zap.L().Info("eventloop: busy, rejecting start", zap.Stringer("state", l.ctrl.State()))
		_ = target.OnFailure(bridge.ErrBusy)
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	params := l.opts.Params()
	if msg.APIKey != "" {
		params.APIKey = msg.APIKey
	}
	if msg.TargetLanguage != "" {
		params.TargetLanguage = msg.TargetLanguage
	}
	if msg.Model != "" {
		params.Model = msg.Model
	}
	l.target, l.conn = target, conn
	if err := l.ctrl.Start(params); err != nil {
		zap.L().Warn("eventloop: start failed", zap.Error(err))
	}
}

func (l *Loop) handleBridge(ev bridgeEvent) {
	switch {
	case ev.push != nil:
		l.ctrl.Show(ev.id, *ev.push)
	case ev.reply != nil:
		l.ctrl.Settle(ev.id, *ev.reply)
	}
}

// onSettled runs on the loop goroutine, from inside the controller.
func (l *Loop) onSettled(o selection.Outcome) {
	if o.Err != nil {
		zap.L().Info("eventloop: session ended", zap.String("session", o.SessionID), zap.Error(o.Err))
	} else {
		zap.L().Info("eventloop: session translated", zap.String("session", o.SessionID), zap.Int("chars", len(o.Translation)))
	}
	if l.target != nil {
		if err := session.Deliver(l.target, o.Translation, o.Err); err != nil {
			zap.L().Warn("eventloop: delivery failed", zap.Error(err))
		}
		l.release()
	}
	if l.opts.OnSettled != nil {
		l.opts.OnSettled(o)
	}
}

func (l *Loop) release() {
	if l.conn != nil {
		_ = l.conn.Close()
	}
	l.target, l.conn = nil, nil
}

// abandon answers a waiting delegated client on shutdown.
func (l *Loop) abandon() {
	if l.target != nil {
		_ = l.target.OnFailure(errShuttingDown)
		l.release()
	}
}

func (l *Loop) refresh() {
	busy := l.ctrl.State() != selection.Idle
	if busy != l.busy {
		l.busy = busy
		if l.opts.OnBusyChange != nil {
			l.opts.OnBusyChange(busy)
		}
	}
	l.opts.Render(l.ctrl.Scene())
}
