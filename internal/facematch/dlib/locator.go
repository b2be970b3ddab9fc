//go:build dlib

// Package dlib locates faces with the dlib HOG detector through go-face.
// Building it requires the dlib headers, so it is only compiled with the
// "dlib" build tag.
package dlib

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"iter"
	"sync"

	"github.com/Kagami/go-face"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Locator wraps a go-face recognizer. The underlying dlib objects are not
// safe for concurrent use.
type Locator struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

// NewLocator loads the dlib models from modelsDir.
func NewLocator(modelsDir string) (*Locator, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models from %s: %w", modelsDir, err)
	}
	return &Locator{rec: rec}, nil
}

// Close releases the dlib models.
func (l *Locator) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rec.Close()
}

// Locate detects faces in frame.
func (l *Locator) Locate(ctx context.Context, frame image.Image) (iter.Seq[facematch.FaceRegion], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return nil, &facematch.DetectionError{Err: fmt.Errorf("encode frame: %w", err)}
	}

	l.mu.Lock()
	faces, err := l.rec.Recognize(buf.Bytes())
	l.mu.Unlock()
	if err != nil {
		return nil, &facematch.DetectionError{Err: err}
	}

	detections := make([]facematch.Detection, 0, len(faces))
	for _, f := range faces {
		// dlib does not expose scores, keep detector order
		detections = append(detections, facematch.Detection{Region: facematch.RegionFromRect(f.Rectangle), Score: 1})
	}
	return facematch.SingleUse(facematch.PrepareRegions(frame.Bounds(), detections)), nil
}

var _ facematch.Locator = (*Locator)(nil)
