// Package tray owns the notification-area icon and its menu.
package tray

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"screen-translate-llm/src/notification"
)

type Config struct {
	Title   string
	Tooltip string
	// OnTranslate runs when "Translate region" is clicked. It must not block.
	OnTranslate func()
	OnExit      func()
}

type Tray struct {
	cfg      Config
	quitOnce sync.Once
}

var (
	mu          sync.Mutex
	ready       bool
	aboutHotkey string
	aboutExtra  string
)

func New(cfg Config) (*Tray, error) {
	if strings.TrimSpace(cfg.Title) == "" {
		return nil, errors.New("tray title is required")
	}
	if cfg.Tooltip == "" {
		cfg.Tooltip = cfg.Title
	}
	return &Tray{cfg: cfg}, nil
}

// Run blocks until the tray is destroyed or Quit is chosen.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(Icon())
	systray.SetTitle(t.cfg.Title)
	systray.SetTooltip(t.cfg.Tooltip)

	mTranslate := systray.AddMenuItem("Translate region", "Select a screen region to translate")
	mAbout := systray.AddMenuItem("About", "About "+t.cfg.Title)
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	mu.Lock()
	ready = true
	mu.Unlock()
	zap.L().Info("tray: ready")

	go func() {
		for {
			select {
			case <-mTranslate.ClickedCh:
				if t.cfg.OnTranslate != nil {
					t.cfg.OnTranslate()
				}
			case <-mAbout.ClickedCh:
				go notification.ShowInfo("About "+t.cfg.Title, aboutText(t.cfg.Title))
			case <-mQuit.ClickedCh:
				zap.L().Info("tray: quit requested")
				t.Destroy()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	mu.Lock()
	ready = false
	mu.Unlock()
	if t.cfg.OnExit != nil {
		t.cfg.OnExit()
	}
}

// Destroy removes the icon and makes Run return.
func (t *Tray) Destroy() {
	t.quitOnce.Do(systray.Quit)
}

// UpdateTooltip changes the hover text. It is a no-op before the tray is ready.
func UpdateTooltip(tooltip string) {
	mu.Lock()
	defer mu.Unlock()
	if ready {
		systray.SetTooltip(tooltip)
	}
}

// SetAboutHotkey sets the hotkey shown in the About dialog.
func SetAboutHotkey(hotkey string) {
	mu.Lock()
	aboutHotkey = hotkey
	mu.Unlock()
}

// SetAboutExtra adds a free-form line to the About dialog.
func SetAboutExtra(extra string) {
	mu.Lock()
	aboutExtra = extra
	mu.Unlock()
}

func aboutText(title string) string {
	mu.Lock()
	defer mu.Unlock()

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\nSelect a region of the screen and get it translated by Gemini.")
	if aboutHotkey != "" {
		fmt.Fprintf(&b, "\n\nHotkey: %s", aboutHotkey)
	}
	if aboutExtra != "" {
		b.WriteString("\n")
		b.WriteString(aboutExtra)
	}
	return b.String()
}
