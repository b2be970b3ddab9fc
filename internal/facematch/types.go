// Package facematch provides the recognition core of the attendance pipeline:
// face regions, normalization, LBPH matching and the known/unknown decision.
package facematch

import (
	"fmt"
	"image"
	"math"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// FaceRegion is a bounding box of a face within a frame, in pixels
type FaceRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the region as an image.Rectangle.
func (r FaceRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Corners returns the region as [x1, y1, x2, y2].
func (r FaceRegion) Corners() []float64 {
	return []float64{float64(r.X), float64(r.Y), float64(r.X + r.Width), float64(r.Y + r.Height)}
}

// Empty reports whether the region has no area.
func (r FaceRegion) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// RegionFromRect converts an image.Rectangle to a FaceRegion.
func RegionFromRect(rect image.Rectangle) FaceRegion {
	rect = rect.Canon()
	return FaceRegion{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()}
}

// MatchResult is the closest enrolled identity for a face. Identity is nil when
// nothing could be matched. Lower dissimilarity means a stronger match.
type MatchResult struct {
	Identity      *database.Identity
	Dissimilarity float64
}

// NoMatch is the result for an empty gallery.
func NoMatch() MatchResult {
	return MatchResult{Dissimilarity: math.Inf(1)}
}

// Kind is the outcome of the decision stage
type Kind string

const (
	KindKnown   Kind = "known"
	KindUnknown Kind = "unknown"
)

// UnknownLabel is the display label of unrecognized faces
const UnknownLabel = "Unknown"

// Classification is either Known with an identity or Unknown
type Classification struct {
	Kind          Kind
	Identity      *database.Identity // set only for KindKnown
	Dissimilarity float64
}

// Known reports whether the face was recognized.
func (c Classification) Known() bool {
	return c.Kind == KindKnown && c.Identity != nil
}

// Label returns the overlay label: "Name (ID:7)" for known faces, "Unknown" otherwise.
func (c Classification) Label() string {
	if !c.Known() {
		return UnknownLabel
	}
	return fmt.Sprintf("%s (ID:%d)", c.Identity.DisplayName, c.Identity.ID)
}

// DetectionError is returned by a Locator that could not process a frame.
// The pipeline treats it as "no faces in this frame".
type DetectionError struct {
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("face detection failed: %v", e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// InvalidInputError reports a caller bug, such as a face image of the wrong size.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}
