package tray

import (
	"bytes"
	"encoding/binary"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresTitle(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	tr, err := New(Config{Title: "Screen Translate"})
	require.NoError(t, err)
	assert.Equal(t, "Screen Translate", tr.cfg.Tooltip)
}

func TestIconPNG(t *testing.T) {
	data := iconData("linux")
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, iconSize, img.Bounds().Dx())
	assert.Equal(t, iconSize, img.Bounds().Dy())
}

func TestIconICO(t *testing.T) {
	data := iconData("windows")
	require.Greater(t, len(data), 22)

	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(data[0:2]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[2:4]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[4:6]))
	size := binary.LittleEndian.Uint32(data[14:18])
	offset := binary.LittleEndian.Uint32(data[18:22])
	assert.Equal(t, uint32(22), offset)
	assert.Equal(t, int(size), len(data)-22)

	_, err := png.Decode(bytes.NewReader(data[offset:]))
	require.NoError(t, err)
}

func TestAboutText(t *testing.T) {
	SetAboutHotkey("Ctrl+Alt+T")
	SetAboutExtra("Resident TCP port: 49560")
	t.Cleanup(func() {
		SetAboutHotkey("")
		SetAboutExtra("")
	})

	text := aboutText("Screen Translate")
	assert.Contains(t, text, "Screen Translate")
	assert.Contains(t, text, "Hotkey: Ctrl+Alt+T")
	assert.Contains(t, text, "Resident TCP port: 49560")
}

func TestUpdateTooltipBeforeReady(t *testing.T) {
	assert.NotPanics(t, func() { UpdateTooltip("busy") })
}
