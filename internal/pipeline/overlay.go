package pipeline

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	knownColor   = color.RGBA{G: 200, A: 255}
	unknownColor = color.RGBA{R: 220, A: 255}
)

// Annotate returns a copy of img with a box and label drawn for every face:
// green for known faces, red for unknown ones.
func Annotate(img image.Image, result FrameResult) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)

	for _, f := range result.Faces {
		col := unknownColor
		if f.Classification.Known() {
			col = knownColor
		}
		r := f.Region.Rect().Intersect(out.Bounds())
		if r.Empty() {
			continue
		}
		drawBox(out, r, col, 2)
		drawLabel(out, f.Label(), r.Min, col)
	}
	return out
}

func drawBox(dst *image.RGBA, r image.Rectangle, col color.Color, thickness int) {
	src := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text above the box, or inside it at the top edge of the frame.
func drawLabel(dst *image.RGBA, text string, at image.Point, col color.Color) {
	face := basicfont.Face7x13
	baseline := at.Y - 4
	if baseline-face.Ascent < 0 {
		baseline = at.Y + face.Ascent + 2
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(at.X, baseline),
	}
	d.DrawString(text)
}
