// Package runtimeinit performs the startup sequence shared by the resident
// and the standalone run-once mode.
package runtimeinit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"screen-translate-llm/src/clipboard"
	"screen-translate-llm/src/config"
	"screen-translate-llm/src/llm"
	"screen-translate-llm/src/notification"
	"screen-translate-llm/src/settings"
)

const defaultPingTimeout = 15 * time.Second

// Client is what the rest of the application needs from the Gemini client.
type Client interface {
	llm.Translator
	Ping(ctx context.Context, apiKey, model string) error
}

type Options struct {
	LoadOptions config.LoadOptions
	// SetupLogging runs right after the configuration is loaded.
	SetupLogging         func(cfg *config.Config)
	ShowBlockingLLMError bool
	PingTimeout          time.Duration
	// NewClient defaults to the real Gemini client.
	NewClient func(cfg *config.Config) Client
}

type Runtime struct {
	Config   *config.Config
	Settings *settings.Store
	Client   Client
}

// Bootstrap loads configuration and settings, checks that Gemini answers
// and initializes the clipboard. A missing API key is not an error: the first
// capture shows a toast asking for one.
func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg)
	}

	store, err := settings.Open(cfg.SettingsFile, settings.Settings{
		APIKey:         cfg.APIKey,
		TargetLanguage: cfg.TargetLanguage,
		Model:          cfg.Model,
	})
	if err != nil {
		return nil, err
	}

	newClient := opts.NewClient
	if newClient == nil {
		newClient = func(cfg *config.Config) Client {
			return llm.New(llm.Config{BaseURL: cfg.BaseURL, Timeout: cfg.RequestTimeout()})
		}
	}
	client := newClient(cfg)

	s := store.Get()
	if s.APIKey == "" {
		zap.L().Warn("no Gemini API key configured",
			zap.String("key_file", cfg.APIKeyPath),
			zap.String("settings", store.Path()))
	} else {
		timeout := opts.PingTimeout
		if timeout <= 0 {
			timeout = defaultPingTimeout
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err := client.Ping(pingCtx, s.APIKey, s.Model)
		cancel()
		if err != nil {
			if opts.ShowBlockingLLMError {
				notification.ShowBlockingError("Gemini unavailable",
					fmt.Sprintf("Startup check failed: %v\n\nPlease verify your API key and network connectivity.", err))
			}
			return nil, fmt.Errorf("startup check failed: %w", err)
		}
		zap.L().Info("Gemini ping succeeded", zap.String("model", s.Model))
	}

	if err := clipboard.Init(); err != nil {
		zap.L().Warn("clipboard unavailable", zap.Error(err))
	}

	return &Runtime{Config: cfg, Settings: store, Client: client}, nil
}
