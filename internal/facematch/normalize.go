package facematch

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Normalize crops a face region out of a frame and converts it to the canonical
// matcher input: single channel, size x size pixels, histogram equalized.
// Regions are relative to frame.Bounds().Min and are clamped to the frame.
func Normalize(frame image.Image, region FaceRegion, size int) (*image.Gray, error) {
	if size <= 0 {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("face size must be positive, got %d", size)}
	}
	bounds := frame.Bounds()
	clamped := ClampRegion(region, bounds)
	if clamped.Empty() {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("face region %+v lies outside frame %v", region, bounds)}
	}

	gray := toGray(frame, clamped.Rect().Add(bounds.Min))

	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), gray, gray.Bounds(), draw.Src, nil)

	EqualizeHistogram(dst)
	return dst, nil
}

// toGray copies rect out of img as 8-bit luma (ITU-R BT.601).
func toGray(img image.Image, rect image.Rectangle) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))

	if src, ok := img.(*image.Gray); ok {
		for y := range rect.Dy() {
			srcOff := src.PixOffset(rect.Min.X, rect.Min.Y+y)
			copy(out.Pix[y*out.Stride:y*out.Stride+rect.Dx()], src.Pix[srcOff:srcOff+rect.Dx()])
		}
		return out
	}

	for y := range rect.Dy() {
		for x := range rect.Dx() {
			r, g, b, _ := img.At(rect.Min.X+x, rect.Min.Y+y).RGBA()
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			out.Pix[y*out.Stride+x] = uint8(math.Min(255, luma+0.5))
		}
	}
	return out
}

// EqualizeHistogram spreads the intensity histogram of img over 0-255 in place.
// Uniform images are left unchanged.
func EqualizeHistogram(img *image.Gray) {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return
	}

	var hist [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for _, v := range row {
			hist[v]++
		}
	}

	cdfMin := 0
	for _, n := range hist {
		if n > 0 {
			cdfMin = n
			break
		}
	}
	if cdfMin == total {
		return
	}

	var lut [256]uint8
	cdf := 0
	scale := 255.0 / float64(total-cdfMin)
	for i, n := range hist {
		cdf += n
		if cdf <= cdfMin {
			continue // lut[i] stays 0
		}
		lut[i] = uint8(math.Round(float64(cdf-cdfMin) * scale))
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i, v := range row {
			row[i] = lut[v]
		}
	}
}
