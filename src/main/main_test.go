package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-translate-llm/src/geometry"
	"screen-translate-llm/src/selection"
	"screen-translate-llm/src/singleinstance"
	"screen-translate-llm/src/view"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"screen-translate-llm", "-run-once", "-api-key-path", "/tmp/key"},
			out:  []string{"screen-translate-llm", "--run-once", "--api-key-path", "/tmp/key"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"screen-translate-llm", "-run-once=true", "-lang=German"},
			out:  []string{"screen-translate-llm", "--run-once=true", "--lang=German"},
		},
		{
			name: "Leaves other flags unchanged",
			in:   []string{"screen-translate-llm", "--run-once", "--other"},
			out:  []string{"screen-translate-llm", "--run-once", "--other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, normalizeLegacyArgs(tt.in))
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--run-once", "--api-key-path", "/tmp/key", "--lang", "Japanese", "--settings", "/tmp/s.yaml"}))
	assert.True(t, opts.runOnce)
	assert.Equal(t, "/tmp/key", opts.apiKeyPath)
	assert.Equal(t, "Japanese", opts.language)
	assert.Equal(t, "/tmp/s.yaml", opts.settingsPath)
}

type fakeClient struct {
	delegated bool
	err       error
	got       *singleinstance.Request
}

func (f *fakeClient) TryStart(ctx context.Context, req singleinstance.Request) (bool, string, error) {
	f.got = &req
	return f.delegated, "translated", f.err
}

func TestHandleRunOnceWithDelegation(t *testing.T) {
	tests := []struct {
		name         string
		client       *fakeClient
		wantFallback bool
	}{
		{"delegated", &fakeClient{delegated: true}, false},
		{"no resident", &fakeClient{}, true},
		{"delegation error", &fakeClient{err: errors.New("busy")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallbackCalled := false
			handleRunOnceWithDelegation("German", tt.client, func() { fallbackCalled = true })

			require.NotNil(t, tt.client.got, "TryStart was not called")
			assert.Equal(t, singleinstance.Request{TargetLanguage: "German", Copy: true}, *tt.client.got)
			assert.Equal(t, tt.wantFallback, fallbackCalled)
		})
	}
}

func TestSanitizeForLogging(t *testing.T) {
	assert.Equal(t, `a\nb\tc?`, sanitizeForLogging("a\nb\tc\x01"))

	long := strings.Repeat("x", 150)
	got := sanitizeForLogging(long)
	assert.Equal(t, strings.Repeat("x", 100)+"...", got)
}

type fakeSurface struct {
	scenes []selection.Scene
	closed bool
}

func (f *fakeSurface) Render(s selection.Scene) { f.scenes = append(f.scenes, s) }

func (f *fakeSurface) Close() error {
	f.closed = true
	return nil
}

func TestRendererPrefersSurface(t *testing.T) {
	scene := selection.Scene{Viewport: geometry.Viewport{Width: 800, Height: 600}, Overlay: true, Instructions: selection.Instructions}

	var buf bytes.Buffer
	console := &renderer{printer: view.NewPrinter(&buf)}
	console.Render(scene)
	console.Close()
	assert.Contains(t, buf.String(), selection.Instructions)

	buf.Reset()
	surface := &fakeSurface{}
	drawn := &renderer{surface: surface, printer: view.NewPrinter(&buf)}
	drawn.Render(scene)
	drawn.Close()
	assert.Empty(t, buf.String())
	assert.Len(t, surface.scenes, 1)
	assert.True(t, surface.closed)
}
