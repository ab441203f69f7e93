package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"sync"

	xdraw "golang.org/x/image/draw"
)

const iconSize = 32

var (
	iconOnce  sync.Once
	iconBytes []byte
)

// Icon returns the tray icon in the format the current platform expects:
// ICO on Windows, PNG elsewhere.
func Icon() []byte {
	iconOnce.Do(func() {
		iconBytes = iconData(runtime.GOOS)
	})
	return iconBytes
}

func iconData(goos string) []byte {
	pngData := renderIcon()
	if goos == "windows" {
		return wrapICO(pngData, iconSize)
	}
	return pngData
}

// renderIcon draws a dashed selection frame with a bar of "text" inside it.
func renderIcon() []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	frame := color.RGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	text := color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}

	for i := 3; i < iconSize-3; i++ {
		if (i/3)%2 == 1 {
			continue
		}
		for w := 0; w < 2; w++ {
			img.Set(i, 3+w, frame)
			img.Set(i, iconSize-4-w, frame)
			img.Set(3+w, i, frame)
			img.Set(iconSize-4-w, i, frame)
		}
	}
	bar := image.NewUniform(text)
	xdraw.Draw(img, image.Rect(9, 11, 23, 14), bar, image.Point{}, xdraw.Src)
	xdraw.Draw(img, image.Rect(14, 14, 18, 23), bar, image.Point{}, xdraw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

// wrapICO packs a PNG into a single-image ICO container.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	// ICONDIR
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	buf.WriteByte(byte(size % 256))
	buf.WriteByte(byte(size % 256))
	buf.WriteByte(0)
	buf.WriteByte(0)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(6+16))
	buf.Write(pngData)
	return buf.Bytes()
}
