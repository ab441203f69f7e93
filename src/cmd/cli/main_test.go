package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-translate-llm/src/config"
	"screen-translate-llm/src/llm"
	"screen-translate-llm/src/screenshot"
	"screen-translate-llm/src/singleinstance"
)

type fakeTranslator struct {
	mu   sync.Mutex
	reqs []llm.Request
	text string
	err  error
}

func (f *fakeTranslator) Translate(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.text, f.err
}

type fakeClient struct {
	delegated bool
	text      string
	err       error
	got       singleinstance.Request
}

func (c *fakeClient) TryStart(_ context.Context, req singleinstance.Request) (bool, string, error) {
	c.got = req
	return c.delegated, c.text, c.err
}

type testEnv struct {
	*env
	stdout     *bytes.Buffer
	translator *fakeTranslator
	client     *fakeClient
	settings   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv(config.ConfigPathEnvVar, "")
	t.Setenv(config.APIKeyPathEnvVar, "")
	t.Setenv(config.APIKeyEnvVar, "test-key-123456")
	t.Setenv("TARGET_LANGUAGE", "")
	t.Setenv("MODEL", "")
	t.Setenv("SETTINGS_FILE", "")

	te := &testEnv{
		stdout:     &bytes.Buffer{},
		translator: &fakeTranslator{text: "Hola mundo"},
		client:     &fakeClient{},
		settings:   filepath.Join(t.TempDir(), "settings.yaml"),
	}
	te.env = &env{
		stdin:         strings.NewReader(""),
		stdout:        te.stdout,
		stderr:        &bytes.Buffer{},
		newTranslator: func(*config.Config) llm.Translator { return te.translator },
		client:        te.client,
	}
	return te
}

func (te *testEnv) run(args ...string) error {
	full := append([]string{"translate-tool", "--settings", te.settings}, args...)
	return runWithArgs(normalizeLegacyArgs(full), te.env)
}

func writePNG(t *testing.T) string {
	t.Helper()
	data, err := screenshot.EncodePNG(image.NewRGBA(image.Rect(0, 0, 16, 16)))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "in.png")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestFileTranslation(t *testing.T) {
	te := newTestEnv(t)
	path := writePNG(t)

	require.NoError(t, te.run("file", "--file", path, "--lang", "Spanish"))
	assert.Equal(t, "Hola mundo\n", te.stdout.String())

	require.Len(t, te.translator.reqs, 1)
	req := te.translator.reqs[0]
	assert.Equal(t, "Spanish", req.TargetLanguage)
	assert.Equal(t, "test-key-123456", req.APIKey)
	assert.Equal(t, config.DefaultModel, req.Model)
}

func TestLegacyFileFlagOnRoot(t *testing.T) {
	te := newTestEnv(t)
	path := writePNG(t)

	require.NoError(t, te.run("-file", path, "-json"))

	var result TranslationResult
	require.NoError(t, json.Unmarshal(te.stdout.Bytes(), &result))
	assert.Equal(t, "Hola mundo", result.Translation)
	assert.Equal(t, path, result.Source)
	assert.Equal(t, config.DefaultLanguage, result.TargetLanguage)
	assert.Equal(t, 10, result.CharCount)
}

func TestFileFromStdin(t *testing.T) {
	te := newTestEnv(t)
	data, err := os.ReadFile(writePNG(t))
	require.NoError(t, err)
	te.stdin = bytes.NewReader(data)

	require.NoError(t, te.run("file", "--file", "-"))
	assert.Equal(t, "Hola mundo\n", te.stdout.String())
}

func TestFileErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not an image"), 0o600))
	big := filepath.Join(dir, "big.png")
	require.NoError(t, os.WriteFile(big, make([]byte, maxFileSize+1), 0o600))

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing", filepath.Join(dir, "nope.png"), "failed to read file"},
		{"empty", empty, "input file is empty"},
		{"not an image", garbage, "unsupported image"},
		{"too big", big, "exceeds maximum size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEnv(t)
			err := te.run("file", "--file", tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, te.translator.reqs)
		})
	}
}

func TestFileTranslatorError(t *testing.T) {
	te := newTestEnv(t)
	te.translator.err = errors.New("API request failed with status 500")

	err := te.run("file", "--file", writePNG(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Empty(t, te.stdout.String())
}

func TestFileMissingAPIKey(t *testing.T) {
	te := newTestEnv(t)
	t.Setenv(config.APIKeyEnvVar, "")

	err := te.run("file", "--file", writePNG(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.APIKeyEnvVar)
}

func TestFileRequiresFlag(t *testing.T) {
	te := newTestEnv(t)
	require.Error(t, te.run("file"))
}

func TestStartDelegates(t *testing.T) {
	te := newTestEnv(t)
	te.client.delegated = true
	te.client.text = "Bonjour"

	require.NoError(t, te.run("start", "--lang", "French", "--copy"))
	assert.Equal(t, "Bonjour\n", te.stdout.String())
	assert.Equal(t, singleinstance.Request{TargetLanguage: "French", Copy: true}, te.client.got)
}

func TestStartWithoutResident(t *testing.T) {
	te := newTestEnv(t)
	err := te.run("start")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no running instance")
}

func TestStartPropagatesResidentError(t *testing.T) {
	te := newTestEnv(t)
	te.client.err = errors.New("busy, please retry")
	err := te.run("start")
	require.EqualError(t, err, "busy, please retry")
}

func TestSettingsSetAndShow(t *testing.T) {
	te := newTestEnv(t)

	require.NoError(t, te.run("settings", "set", "target-language", "German"))
	require.NoError(t, te.run("settings", "set", "api_key", "abcd1234efgh5678"))
	te.stdout.Reset()

	require.NoError(t, te.run("settings", "show"))
	out := te.stdout.String()
	assert.Contains(t, out, "target_language: German")
	assert.Contains(t, out, "api_key: abcd...5678")
	assert.NotContains(t, out, "abcd1234efgh5678")
	assert.Contains(t, out, "model: "+config.DefaultModel)
}

func TestSettingsSetUnknownKey(t *testing.T) {
	te := newTestEnv(t)
	err := te.run("settings", "set", "hotkey", "Ctrl+Q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown setting")
}

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"tool", "-file", "x.png"}, []string{"tool", "--file", "x.png"}},
		{[]string{"tool", "-file=x.png", "-json"}, []string{"tool", "--file=x.png", "--json"}},
		{[]string{"tool", "-api-key-path=/k", "-v"}, []string{"tool", "--api-key-path=/k", "-v"}},
		{[]string{"tool", "--lang", "German"}, []string{"tool", "--lang", "German"}},
		{[]string{"tool", "-lang=German"}, []string{"tool", "--lang=German"}},
		{nil, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeLegacyArgs(tt.in))
	}
}
