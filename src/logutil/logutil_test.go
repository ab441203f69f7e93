package logutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "********"},
		{"short", "********"},
		{"12345678", "********"},
		{"AIzaSyExampleKey1234", "AIza...1234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactKey(tt.in))
	}
}

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	L(ctx).Info("hello", zap.String("component", "test"))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello", logs.All()[0].Message)
	assert.NotNil(t, L(context.Background()))
}

func TestSetupWritesFile(t *testing.T) {
	dir := t.TempDir()
	logger := Setup(true, dir)
	defer zap.ReplaceGlobals(zap.NewNop())

	logger.Info("file logging works")
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "file logging works"))
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.log")
	require.NoError(t, os.WriteFile(path, []byte("current"), 0600))
	require.NoError(t, os.WriteFile(archiveName(path, 1), []byte("older"), 0600))

	rotate(path)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	got, err := os.ReadFile(archiveName(path, 1))
	require.NoError(t, err)
	assert.Equal(t, "current", string(got))
	got, err = os.ReadFile(archiveName(path, 2))
	require.NoError(t, err)
	assert.Equal(t, "older", string(got))
}
