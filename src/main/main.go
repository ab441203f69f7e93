package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"screen-translate-llm/src/bridge"
	"screen-translate-llm/src/clipboard"
	"screen-translate-llm/src/config"
	"screen-translate-llm/src/eventloop"
	"screen-translate-llm/src/geometry"
	"screen-translate-llm/src/gui"
	"screen-translate-llm/src/hotkey"
	"screen-translate-llm/src/input"
	"screen-translate-llm/src/logutil"
	"screen-translate-llm/src/messages"
	"screen-translate-llm/src/runtimeinit"
	"screen-translate-llm/src/screenshot"
	"screen-translate-llm/src/selection"
	"screen-translate-llm/src/session"
	"screen-translate-llm/src/settings"
	"screen-translate-llm/src/singleinstance"
	"screen-translate-llm/src/tray"
	"screen-translate-llm/src/view"
)

const (
	appTitle        = "Screen Translate"
	resultLingering = 3 * time.Second
	replySlack      = 5 * time.Second
)

type mainOptions struct {
	runOnce      bool
	apiKeyPath   string
	settingsPath string
	language     string
}

func main() {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-translate-llm",
		Short:         "Select a screen region and translate its text with Gemini",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.runOnce {
				// .env may move the port range used for delegation.
				_, _ = config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath})
				var runErr error
				handleRunOnceWithDelegation(opts.language, singleinstance.NewClient(), func() {
					runErr = runStandalone(*opts)
				})
				return runErr
			}
			return runResident(*opts)
		},
	}
	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Translate one region, copy the result to the clipboard, and exit")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.settingsPath, "settings", "", "Path to the settings file")
	cmd.Flags().StringVar(&opts.language, "lang", "", "Target language, overriding the saved setting")
	return cmd
}

func normalizeLegacyArgs(args []string) []string {
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"run-once", "api-key-path", "settings", "lang"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}
	return normalized
}

// handleRunOnceWithDelegation hands the request to a running resident and
// falls back to a standalone session when there is none or it fails.
func handleRunOnceWithDelegation(language string, client singleinstance.Client, fallback func()) {
	delegated, text, err := client.TryStart(context.Background(), singleinstance.Request{
		TargetLanguage: language,
		Copy:           true,
	})
	if err != nil {
		zap.L().Warn("delegation error, falling back to standalone", zap.Error(err))
		fallback()
		return
	}
	if !delegated {
		zap.L().Info("no resident detected, running standalone")
		fallback()
		return
	}
	zap.L().Info("delegated to resident", zap.String("text", sanitizeForLogging(text)))
	fmt.Println(text)
}

type app struct {
	cfg    *config.Config
	store  *settings.Store
	loop   *eventloop.Loop
	link   *bridge.Link
	vp     *viewportSource
	screen *renderer
}

// newApp loads configuration, checks the API, and wires the bridge and the
// event loop. Both sides stop when ctx is done.
func newApp(ctx context.Context, opts mainOptions, server singleinstance.Server, screen io.Writer, onSettled func(selection.Outcome)) (*app, error) {
	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			APIKeyPathOverride: opts.apiKeyPath,
			SettingsOverride:   opts.settingsPath,
		},
		SetupLogging: func(cfg *config.Config) {
			logutil.Setup(cfg.EnableFileLogging, logDir())
			enableDPIAwareness()
			logMonitorConfiguration()
		},
		ShowBlockingLLMError: true,
	})
	if err != nil {
		return nil, err
	}
	cfg, store := rt.Config, rt.Settings

	a := &app{cfg: cfg, store: store, vp: newViewportSource(cfg.DisplayIndex, cfg.PixelRatio)}
	var pushTo func(env messages.Envelope)
	a.link, err = bridge.Start(ctx, bridge.ServerOptions{
		Capturer:     screenshot.DisplayCapturer{Display: cfg.DisplayIndex},
		Translator:   rt.Client,
		MaxImageEdge: cfg.MaxImageEdge,
		Timeout:      cfg.RequestTimeout(),
	}, func(env messages.Envelope) { pushTo(env) })
	if err != nil {
		return nil, err
	}

	a.screen = &renderer{printer: view.NewPrinter(screen)}
	if cfg.NativeOverlay {
		surface, err := gui.New(gui.Options{OnInput: func(ev input.Event) { a.loop.Input(ev) }})
		switch {
		case err == nil:
			a.screen.surface = surface
		case errors.Is(err, gui.ErrUnsupported):
			zap.L().Info("native overlay unavailable, using console view")
		default:
			zap.L().Warn("native overlay failed, using console view", zap.Error(err))
		}
	}

	idleTooltip := fmt.Sprintf("%s - Press %s to translate", appTitle, cfg.Hotkey)
	a.loop, err = eventloop.New(eventloop.Options{
		Requester: a.link.Client,
		Params: func() messages.TranslationParams {
			p := store.Get().Params()
			if opts.language != "" {
				p.TargetLanguage = opts.language
			}
			return p
		},
		Viewport:  a.vp.Get,
		Positions: store,
		Clipboard: clipboard.System{},
		Render:    a.screen.Render,
		Server:         server,
		PanelTimeout:   cfg.PanelTimeout(),
		// The server times the job out first so its error reaches the user.
		RequestTimeout: cfg.RequestTimeout() + replySlack,
		OnBusyChange: func(busy bool) {
			if busy {
				tray.UpdateTooltip(appTitle + ": translating...")
			} else {
				tray.UpdateTooltip(idleTooltip)
			}
		},
		OnSettled: onSettled,
	})
	if err != nil {
		return nil, err
	}
	pushTo = a.loop.Push
	return a, nil
}

// trigger refreshes the display geometry and starts a selection.
func (a *app) trigger() {
	a.vp.Refresh()
	a.loop.Trigger()
}

func (a *app) listenInput(ctx context.Context, combo string) error {
	return hotkey.Listen(ctx, hotkey.Options{
		Hotkey:     combo,
		PixelRatio: a.cfg.PixelRatio,
		OnHotkey:   a.trigger,
		OnInput:    a.loop.Input,
		// A drawn surface reports its own clicks; the hook would also see
		// clicks meant for other windows.
		Pointers:   a.screen.surface == nil,
	})
}

func runResident(opts mainOptions) error {
	// .env may move the port range.
	_, _ = config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath})
	startPort, _ := singleinstance.PortRange()
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", startPort))
	if err != nil {
		fmt.Printf("one is already running on port %d\n", startPort)
		return fmt.Errorf("resident already running on port %d", startPort)
	}
	_ = listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cancelOnSignal(cancel)

	a, err := newApp(ctx, opts, singleinstance.NewServer(), os.Stdout, nil)
	if err != nil {
		return err
	}
	defer a.link.Wait()
	defer cancel()
	defer a.screen.Close()

	zap.L().Info("resident initialized",
		zap.String("hotkey", a.cfg.Hotkey),
		zap.String("settings", a.store.Path()),
		zap.Int("port", startPort))

	tray.SetAboutHotkey(a.cfg.Hotkey)
	tray.SetAboutExtra(fmt.Sprintf("Resident TCP port: %d", startPort))
	trayIcon, err := tray.New(tray.Config{
		Title:       appTitle,
		Tooltip:     fmt.Sprintf("%s - Press %s to translate", appTitle, a.cfg.Hotkey),
		OnTranslate: a.trigger,
		OnExit:      cancel,
	})
	if err != nil {
		return err
	}
	go trayIcon.Run()
	defer trayIcon.Destroy()

	if err := a.listenInput(ctx, a.cfg.Hotkey); err != nil {
		return fmt.Errorf("failed to start input hook: %w", err)
	}

	if err := a.loop.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("event loop stopped: %w", err)
	}
	return nil
}

// runStandalone runs one session without a resident, copies the result and
// prints it.
func runStandalone(opts mainOptions) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cancelOnSignal(cancel)

	outcomes := make(chan selection.Outcome, 1)
	var once sync.Once
	a, err := newApp(ctx, opts, nil, os.Stderr, func(o selection.Outcome) {
		once.Do(func() { outcomes <- o })
	})
	if err != nil {
		return err
	}
	defer a.link.Wait()
	defer cancel()
	defer a.screen.Close()

	if err := a.listenInput(ctx, ""); err != nil {
		return fmt.Errorf("failed to start input hook: %w", err)
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- a.loop.Run(ctx) }()
	a.trigger()

	select {
	case o := <-outcomes:
		if o.Err != nil {
			return o.Err
		}
		zap.L().Info("run-once translated", zap.String("text", sanitizeForLogging(o.Translation)))
		out := session.StdoutTarget{Writer: os.Stdout, Clipboard: clipboard.System{}}
		if err := session.Deliver(out, o.Translation, nil); err != nil {
			return err
		}
		// Leave the panel up long enough to be read.
		time.Sleep(resultLingering)
		return nil
	case err := <-loopDone:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cancelOnSignal(cancel context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	cancel()
}

func logDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// renderer draws scenes on the native surface when there is one and prints
// them to the console otherwise.
type renderer struct {
	surface gui.Surface
	printer *view.Printer
}

func (r *renderer) Render(scene selection.Scene) {
	if r.surface != nil {
		r.surface.Render(scene)
		return
	}
	if err := r.printer.Print(scene); err != nil {
		zap.L().Warn("render failed", zap.Error(err))
	}
}

func (r *renderer) Close() {
	if r.surface == nil {
		return
	}
	if err := r.surface.Close(); err != nil {
		zap.L().Warn("failed to close overlay", zap.Error(err))
	}
}

// viewportSource caches the display geometry so pointer moves do not query
// the OS.
type viewportSource struct {
	mu      sync.Mutex
	display int
	ratio   float64
	vp      geometry.Viewport
}

func newViewportSource(display int, ratio float64) *viewportSource {
	v := &viewportSource{display: display, ratio: ratio}
	v.Refresh()
	return v
}

func (v *viewportSource) Refresh() {
	bounds, err := screenshot.DisplayBounds(v.display)
	if err != nil {
		zap.L().Warn("cannot read display bounds", zap.Int("display", v.display), zap.Error(err))
		return
	}
	vp := screenshot.ViewportFor(bounds, v.ratio)
	v.mu.Lock()
	v.vp = vp
	v.mu.Unlock()
}

func (v *viewportSource) Get() geometry.Viewport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vp
}

// sanitizeForLogging shortens text and escapes control characters.
func sanitizeForLogging(text string) string {
	const maxLogLength = 100
	if len(text) > maxLogLength {
		text = text[:maxLogLength] + "..."
	}

	var b strings.Builder
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 32 || r == 127:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
