package facematch

import (
	"context"
	"fmt"
	"image"
	"iter"
	"strconv"
	"strings"
	"sync/atomic"
)

// Locator finds faces in a frame. The returned sequence is finite and can be
// consumed once; regions are relative to frame.Bounds().Min. A frame the
// detector cannot process yields a *DetectionError.
type Locator interface {
	Locate(ctx context.Context, frame image.Image) (iter.Seq[FaceRegion], error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context, frame image.Image) (iter.Seq[FaceRegion], error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context, frame image.Image) (iter.Seq[FaceRegion], error) {
	return f(ctx, frame)
}

// SingleUse wraps regions in a sequence that yields them on the first range
// only. Later ranges yield nothing.
func SingleUse(regions []FaceRegion) iter.Seq[FaceRegion] {
	var used atomic.Bool
	return func(yield func(FaceRegion) bool) {
		if used.Swap(true) {
			return
		}
		for _, r := range regions {
			if !yield(r) {
				return
			}
		}
	}
}

// StaticLocator returns the same detections for every frame, clamped to the
// frame bounds. Used for kiosks where the face is always in the same place.
type StaticLocator struct {
	Detections []Detection
}

// Locate returns the configured detections prepared for this frame.
func (s StaticLocator) Locate(ctx context.Context, frame image.Image) (iter.Seq[FaceRegion], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return SingleUse(PrepareRegions(frame.Bounds(), s.Detections)), nil
}

// ParseStaticLocator builds a StaticLocator from regions written as
// "x,y,w,h" and separated by semicolons, e.g. "100,40,200,200;400,40,200,200".
func ParseStaticLocator(list string) (StaticLocator, error) {
	var loc StaticLocator
	for part := range strings.SplitSeq(list, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 4 {
			return StaticLocator{}, fmt.Errorf("region %q: expected x,y,w,h", part)
		}
		var v [4]int
		for i, f := range fields {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return StaticLocator{}, fmt.Errorf("region %q: %w", part, err)
			}
			v[i] = n
		}
		if v[0] < 0 || v[1] < 0 || v[2] <= 0 || v[3] <= 0 {
			return StaticLocator{}, fmt.Errorf("region %q: position must be non-negative and size positive", part)
		}
		loc.Detections = append(loc.Detections, Detection{
			Region: FaceRegion{X: v[0], Y: v[1], Width: v[2], Height: v[3]},
			Score:  1,
		})
	}
	if len(loc.Detections) == 0 {
		return StaticLocator{}, fmt.Errorf("no regions in %q", list)
	}
	return loc, nil
}

// WholeFrame treats the entire frame as a single face. Suitable for
// pre-cropped face images such as enrollment photos.
var WholeFrame Locator = LocatorFunc(func(ctx context.Context, frame image.Image) (iter.Seq[FaceRegion], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	region := RegionFromRect(frame.Bounds())
	if region.Empty() {
		return SingleUse(nil), nil
	}
	return SingleUse([]FaceRegion{region}), nil
})
