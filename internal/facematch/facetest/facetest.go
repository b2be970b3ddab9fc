// Package facetest provides synthetic face images with known LBP texture for tests.
//
// Each pattern produces a single uniform LBP code in every interior pixel, so
// templates of different patterns are maximally far apart while templates of
// the same pattern are identical.
package facetest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/draw"
)

// Pattern names a synthetic texture.
type Pattern int

const (
	Flat      Pattern = iota // constant intensity
	GradientX                // brightness grows left to right
	GradientY                // brightness grows top to bottom
	MirrorX                  // brightness grows right to left
)

// Gray renders pattern p as a w x h grayscale image.
func Gray(p Pattern, w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: value(p, x, y, w, h)})
		}
	}
	return img
}

func value(p Pattern, x, y, w, h int) uint8 {
	switch p {
	case GradientX:
		return uint8(x * 255 / max(w-1, 1))
	case GradientY:
		return uint8(y * 255 / max(h-1, 1))
	case MirrorX:
		return uint8((w - 1 - x) * 255 / max(w-1, 1))
	default:
		return 128
	}
}

// Patch places a pattern at a position inside a frame.
type Patch struct {
	Pattern Pattern
	Rect    image.Rectangle
}

// Frame renders an RGBA frame of the given size with a dark background and
// the patches drawn on top.
func Frame(w, h int, patches ...Patch) *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(color.RGBA{R: 20, G: 20, B: 20, A: 255}), image.Point{}, draw.Src)
	for _, p := range patches {
		src := Gray(p.Pattern, p.Rect.Dx(), p.Rect.Dy())
		draw.Draw(frame, p.Rect, src, image.Point{}, draw.Src)
	}
	return frame
}

// PNGHeader returns the signature and IHDR chunk of an 8-bit RGBA PNG with the
// given dimensions and no pixel data. Decoders can read its config but not the image.
func PNGHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, w)
	chunk = binary.BigEndian.AppendUint32(chunk, h)
	chunk = append(chunk, 8, 6, 0, 0, 0) // depth, RGBA, deflate, adaptive filter, no interlace

	binary.Write(&buf, binary.BigEndian, uint32(len(chunk)-4))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}
