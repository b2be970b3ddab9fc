package facematch

import (
	"image"
	"slices"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)

	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// ConvertPixelBBoxToRelative converts pixel bbox to relative (0-1) coordinates.
// Input bbox is [x1, y1, x2, y2] in pixels, output is [x1, y1, x2, y2] in relative coords.
func ConvertPixelBBoxToRelative(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	return []float64{
		bbox[0] / float64(width),
		bbox[1] / float64(height),
		bbox[2] / float64(width),
		bbox[3] / float64(height),
	}
}

// RegionFromCorners converts a pixel bbox [x1, y1, x2, y2] to a FaceRegion.
// Fractional coordinates are widened to whole pixels.
func RegionFromCorners(bbox []float64) (FaceRegion, bool) {
	if len(bbox) != 4 {
		return FaceRegion{}, false
	}
	x1, y1 := int(bbox[0]), int(bbox[1])
	x2, y2 := int(bbox[2]+0.999), int(bbox[3]+0.999)
	return RegionFromRect(image.Rect(x1, y1, x2, y2)), true
}

// ClampRegion restricts a region to the frame bounds (given relative to the
// frame origin). The result may be empty.
func ClampRegion(r FaceRegion, bounds image.Rectangle) FaceRegion {
	return RegionFromRect(r.Rect().Add(bounds.Min).Intersect(bounds).Sub(bounds.Min))
}

// Detection is a detector hit with its confidence score
type Detection struct {
	Region FaceRegion
	Score  float64
}

// PrepareRegions clamps detections to the frame, drops empty ones and collapses
// overlapping boxes, keeping the highest scoring detection of each cluster.
// Equal scores keep detector order.
func PrepareRegions(bounds image.Rectangle, detections []Detection) []FaceRegion {
	candidates := make([]Detection, 0, len(detections))
	for _, d := range detections {
		d.Region = ClampRegion(d.Region, bounds)
		if d.Region.Empty() {
			continue
		}
		candidates = append(candidates, d)
	}

	slices.SortStableFunc(candidates, func(a, b Detection) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	var kept []FaceRegion
	for _, c := range candidates {
		overlaps := false
		for _, k := range kept {
			if ComputeIoU(c.Region.Corners(), k.Corners()) > constants.RegionOverlapIoU {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c.Region)
		}
	}
	return kept
}
