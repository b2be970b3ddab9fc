package faceservice

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// fitWithin returns dimensions scaled to fit within maxSize keeping aspect ratio,
// and the factor that maps the scaled coordinates back to the original.
func fitWithin(width, height, maxSize int) (int, int, float64) {
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return width, height, 1
	}
	if width > height {
		newHeight := max(1, int(float64(height)*float64(maxSize)/float64(width)))
		return maxSize, newHeight, float64(width) / float64(maxSize)
	}
	newWidth := max(1, int(float64(width)*float64(maxSize)/float64(height)))
	return newWidth, maxSize, float64(height) / float64(maxSize)
}

// EncodeFrame JPEG-encodes a frame, downscaling it to fit within maxSize.
// The returned scale multiplies coordinates in the encoded image back to frame coordinates.
func EncodeFrame(img image.Image, maxSize int) ([]byte, float64, error) {
	bounds := img.Bounds()
	newWidth, newHeight, scale := fitWithin(bounds.Dx(), bounds.Dy(), maxSize)

	src := img
	if scale != 1 {
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		src = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 85}); err != nil {
		return nil, 0, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), scale, nil
}
