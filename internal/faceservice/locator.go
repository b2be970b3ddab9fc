package faceservice

import (
	"context"
	"image"
	"iter"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Detector is the subset of Client used by Locator
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) (*FaceResponse, error)
}

// Locator finds faces by sending frames to the face service.
type Locator struct {
	detector Detector
	maxSize  int
	minScore float64
}

// NewLocator creates a locator. Frames larger than maxSize are downscaled
// before upload and detections below minScore are dropped.
func NewLocator(detector Detector, maxSize int, minScore float64) *Locator {
	return &Locator{detector: detector, maxSize: maxSize, minScore: minScore}
}

// Locate uploads the frame and returns the detected regions in frame coordinates.
func (l *Locator) Locate(ctx context.Context, frame image.Image) (iter.Seq[facematch.FaceRegion], error) {
	data, scale, err := EncodeFrame(frame, l.maxSize)
	if err != nil {
		return nil, &facematch.DetectionError{Err: err}
	}

	resp, err := l.detector.DetectFaces(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &facematch.DetectionError{Err: err}
	}

	detections := make([]facematch.Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if f.DetScore < l.minScore || len(f.BBox) != 4 {
			continue
		}
		bbox := []float64{f.BBox[0] * scale, f.BBox[1] * scale, f.BBox[2] * scale, f.BBox[3] * scale}
		region, ok := facematch.RegionFromCorners(bbox)
		if !ok {
			continue
		}
		detections = append(detections, facematch.Detection{Region: region, Score: f.DetScore})
	}

	return facematch.SingleUse(facematch.PrepareRegions(frame.Bounds(), detections)), nil
}

var _ facematch.Locator = (*Locator)(nil)
