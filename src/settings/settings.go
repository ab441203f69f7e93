// Package settings persists the user's translation settings and the last
// panel position in a YAML file.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"screen-translate-llm/src/geometry"
	"screen-translate-llm/src/logutil"
	"screen-translate-llm/src/messages"
)

const (
	KeyAPIKey         = "api_key"
	KeyTargetLanguage = "target_language"
	KeyModel          = "model"

	keyPositionX = "position.x"
	keyPositionY = "position.y"

	filePerm = 0o600
)

// ErrUnknownKey is returned by Set for keys that are not user settings.
var ErrUnknownKey = errors.New("unknown setting")

type Settings struct {
	APIKey         string `mapstructure:"api_key"`
	TargetLanguage string `mapstructure:"target_language"`
	Model          string `mapstructure:"model"`
}

// Params converts the settings into per-request translation parameters.
func (s Settings) Params() messages.TranslationParams {
	return messages.TranslationParams{
		APIKey:         s.APIKey,
		TargetLanguage: s.TargetLanguage,
		Model:          s.Model,
	}
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	v        *viper.Viper
	path     string
	defaults Settings
}

// Open reads path if it exists. defaults fill in anything the file does not
// set and are never written back.
func Open(path string, defaults Settings) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	// The file holds the API key.
	v.SetConfigPermissions(filePerm)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
		zap.L().Debug("settings: loaded", zap.String("path", path))
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat settings %s: %w", path, err)
	}

	return &Store{v: v, path: path, defaults: defaults}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out Settings
	if err := s.v.Unmarshal(&out); err != nil {
		zap.L().Warn("settings: unmarshal failed", zap.Error(err))
	}
	if out.APIKey == "" {
		out.APIKey = s.defaults.APIKey
	}
	if out.TargetLanguage == "" {
		out.TargetLanguage = s.defaults.TargetLanguage
	}
	if out.Model == "" {
		out.Model = s.defaults.Model
	}
	return out
}

// Keys lists the names accepted by Set.
func Keys() []string {
	keys := []string{KeyAPIKey, KeyTargetLanguage, KeyModel}
	sort.Strings(keys)
	return keys
}

// Set changes one user setting and writes the file.
func (s *Store) Set(key, value string) error {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
	switch key {
	case KeyAPIKey, KeyTargetLanguage, KeyModel:
	default:
		return fmt.Errorf("%w %q (known: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
	value = strings.TrimSpace(value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
	logged := value
	if key == KeyAPIKey {
		logged = logutil.RedactKey(value)
	}
	zap.L().Info("settings: updated", zap.String("key", key), zap.String("value", logged))
	return s.write()
}

// LoadPosition returns the last position a panel was dropped at.
func (s *Store) LoadPosition() (geometry.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.v.IsSet(keyPositionX) || !s.v.IsSet(keyPositionY) {
		return geometry.Position{}, false
	}
	return geometry.Position{X: s.v.GetFloat64(keyPositionX), Y: s.v.GetFloat64(keyPositionY)}, true
}

func (s *Store) SavePosition(p geometry.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(keyPositionX, p.X)
	s.v.Set(keyPositionY, p.Y)
	return s.write()
}

func (s *Store) write() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	// Files written before the mode was tightened keep their old bits.
	if err := os.Chmod(s.path, filePerm); err != nil {
		return fmt.Errorf("failed to restrict settings file: %w", err)
	}
	return nil
}
