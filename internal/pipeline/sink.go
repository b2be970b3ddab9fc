package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// SinkFunc adapts a function to the RenderSink interface.
type SinkFunc func(ctx context.Context, result FrameResult) error

// Render calls f.
func (f SinkFunc) Render(ctx context.Context, result FrameResult) error {
	return f(ctx, result)
}

// MultiSink renders to every sink and joins their errors.
type MultiSink []RenderSink

// Render forwards the result to all sinks.
func (m MultiSink) Render(ctx context.Context, result FrameResult) error {
	var errs []error
	for _, s := range m {
		if err := s.Render(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink logs one line per frame that contains faces.
type LogSink struct{}

// Render logs the labels and outcomes of the faces in result.
func (LogSink) Render(ctx context.Context, result FrameResult) error {
	if len(result.Faces) == 0 {
		return nil
	}
	parts := make([]string, 0, len(result.Faces))
	for _, f := range result.Faces {
		parts = append(parts, fmt.Sprintf("%s [%s]", f.Label(), f.Outcome))
	}
	log.Printf("[FRAME] %s %s: %s", result.CapturedAt.Format("15:04:05"), result.FrameID, strings.Join(parts, ", "))
	return nil
}

// SnapshotSink writes annotated frames with at least one face to a directory
// as JPEG files named after the frame ID.
type SnapshotSink struct {
	Dir string
}

// NewSnapshotSink creates the output directory.
func NewSnapshotSink(dir string) (*SnapshotSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &SnapshotSink{Dir: dir}, nil
}

// Render draws the overlay on a copy of the frame and saves it.
func (s *SnapshotSink) Render(ctx context.Context, result FrameResult) error {
	if len(result.Faces) == 0 || result.Image == nil {
		return nil
	}
	annotated := Annotate(result.Image, result)

	path := filepath.Join(s.Dir, result.FrameID.String()+".jpg")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	return writeSnapshot(f, annotated)
}

// writeSnapshot encodes img as JPEG and closes w. A failed close means the
// file may be incomplete, so it is reported like an encode error.
func writeSnapshot(w io.WriteCloser, img image.Image) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 85}); err != nil {
		w.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return nil
}
