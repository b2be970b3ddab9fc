// Package camera provides frame sources for the attendance pipeline: a V4L2
// webcam, an HTTP snapshot endpoint and a directory of still images.
package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// ErrFrameTooLarge is returned for images whose dimensions exceed constants.MaxFramePixels.
var ErrFrameTooLarge = errors.New("frame dimensions exceed limit")

// supportedExtensions lists the still image formats DirSource picks up
var supportedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

// IsImageFile reports whether path has a supported image extension.
func IsImageFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Decode decodes an encoded image in any supported format. The header is
// checked first so oversized images are rejected before pixels are allocated.
func Decode(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > constants.MaxFramePixels {
		return nil, fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrFrameTooLarge)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// DecodeFile reads and decodes an image file.
func DecodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
