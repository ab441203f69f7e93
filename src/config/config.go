package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	APIKeyEnvVar      = "GEMINI_API_KEY"
	APIKeyPathEnvVar  = "GEMINI_API_KEY_FILE"
	ConfigPathEnvVar  = "SCREEN_TRANSLATE_LLM"
	DefaultHotkey     = "Ctrl+Alt+T"
	DefaultLanguage   = "English"
	DefaultModel      = "gemini-1.5-flash"
	DefaultTimeoutSec = 45
	DefaultMaxEdge    = 2048
)

type LoadOptions struct {
	APIKeyPathOverride string
	SettingsOverride   string
}

type Config struct {
	APIKey            string
	APIKeyPath        string
	TargetLanguage    string
	Model             string
	BaseURL           string
	Hotkey            string
	EnableFileLogging bool
	RequestTimeoutSec int
	PixelRatio        float64
	DisplayIndex      int
	PanelTimeoutSec   int
	MaxImageEdge      int
	SettingsFile      string
	// NativeOverlay draws the selection UI in desktop windows where the
	// platform supports it.
	NativeOverlay bool
}

// RequestTimeout bounds one capture-translate job.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// PanelTimeout is zero when the result panel should stay open.
func (c *Config) PanelTimeout() time.Duration {
	return time.Duration(c.PanelTimeoutSec) * time.Second
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// .env next to the executable first, then the file named by SCREEN_TRANSLATE_LLM.
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		APIKey:            resolveAPIKey(apiKeyPath),
		APIKeyPath:        apiKeyPath,
		TargetLanguage:    getEnvWithDefault("TARGET_LANGUAGE", DefaultLanguage),
		Model:             getEnvWithDefault("MODEL", DefaultModel),
		BaseURL:           os.Getenv("GEMINI_BASE_URL"),
		Hotkey:            getEnvWithDefault("HOTKEY", DefaultHotkey),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		RequestTimeoutSec: positiveInt("REQUEST_TIMEOUT_SEC", DefaultTimeoutSec),
		PixelRatio:        positiveFloat("PIXEL_RATIO", 1),
		DisplayIndex:      nonNegativeInt("DISPLAY_INDEX", 0),
		PanelTimeoutSec:   nonNegativeInt("PANEL_TIMEOUT_SEC", 0),
		MaxImageEdge:      positiveInt("MAX_IMAGE_EDGE", DefaultMaxEdge),
		SettingsFile:      resolveSettingsFile(opts),
		NativeOverlay:     strings.ToLower(os.Getenv("NATIVE_OVERLAY")) != "false",
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(ConfigPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

// resolveAPIKeyPath: flag override > .env value > environment.
func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar))

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if keyPath != "" {
		if data, err := os.ReadFile(keyPath); err == nil {
			if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
				return fileKey
			}
		}
	}

	return strings.TrimSpace(os.Getenv(APIKeyEnvVar))
}

func resolveSettingsFile(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.SettingsOverride); override != "" {
		return override
	}
	if v := strings.TrimSpace(os.Getenv("SETTINGS_FILE")); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "screen-translate-llm", "settings.yaml")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func positiveInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func nonNegativeInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func positiveFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}
