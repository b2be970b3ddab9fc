package facematch

import (
	"fmt"
	"image"
	"math/bits"

	"gonum.org/v1/gonum/floats"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// uniformLookup maps an 8-bit LBP code to its histogram bin. The 58 uniform
// patterns (at most two 0/1 transitions) get their own bin, everything else
// shares the last one.
var uniformLookup = buildUniformLookup()

func buildUniformLookup() [256]uint8 {
	var table [256]uint8
	next := uint8(0)
	for code := range 256 {
		c := uint8(code)
		transitions := bits.OnesCount8(c ^ bits.RotateLeft8(c, 1))
		if transitions <= 2 {
			table[code] = next
			next++
		} else {
			table[code] = constants.LBPUniformBins - 1
		}
	}
	return table
}

// neighbour offsets clockwise from the top-left pixel
var lbpOffsets = [8]image.Point{
	{-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0},
}

// ComputeTemplate computes the LBPH template of a normalized face: uniform
// LBP codes (radius 1, 8 neighbours) histogrammed over an 8x8 grid, each cell
// normalized to sum 1.
func ComputeTemplate(face *image.Gray) ([]float32, error) {
	b := face.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < constants.LBPGridX+2 || h < constants.LBPGridY+2 {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("face image %dx%d too small for LBPH", w, h)}
	}

	// LBP codes are defined for interior pixels only.
	innerW, innerH := w-2, h-2
	hist := make([]float64, constants.TemplateDim)

	for y := range innerH {
		cellY := y * constants.LBPGridY / innerH
		for x := range innerW {
			cellX := x * constants.LBPGridX / innerW
			px, py := b.Min.X+x+1, b.Min.Y+y+1
			center := face.GrayAt(px, py).Y

			var code uint8
			for i, off := range lbpOffsets {
				if face.GrayAt(px+off.X, py+off.Y).Y >= center {
					code |= 1 << (7 - i)
				}
			}

			cell := cellY*constants.LBPGridX + cellX
			hist[cell*constants.LBPUniformBins+int(uniformLookup[code])]++
		}
	}

	for cell := range constants.LBPGridX * constants.LBPGridY {
		bins := hist[cell*constants.LBPUniformBins : (cell+1)*constants.LBPUniformBins]
		if sum := floats.Sum(bins); sum > 0 {
			floats.Scale(1/sum, bins)
		}
	}

	template := make([]float32, len(hist))
	for i, v := range hist {
		template[i] = float32(v)
	}
	return template, nil
}

// AverageTemplates combines the templates of several enrollment images into one.
func AverageTemplates(templates [][]float32) ([]float32, error) {
	if len(templates) == 0 {
		return nil, &InvalidInputError{Reason: "no templates to average"}
	}
	acc := make([]float64, len(templates[0]))
	row := make([]float64, len(acc))
	for i, t := range templates {
		if len(t) != len(acc) {
			return nil, &InvalidInputError{Reason: fmt.Sprintf("template %d has length %d, want %d", i, len(t), len(acc))}
		}
		for j, v := range t {
			row[j] = float64(v)
		}
		floats.Add(acc, row)
	}
	floats.Scale(1/float64(len(templates)), acc)

	out := make([]float32, len(acc))
	for i, v := range acc {
		out[i] = float32(v)
	}
	return out, nil
}
