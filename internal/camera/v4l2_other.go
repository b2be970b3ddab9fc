//go:build !linux

package camera

import (
	"context"
	"errors"

	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

// V4L2Source is only available on Linux.
type V4L2Source struct{}

// OpenV4L2 always fails outside Linux.
func OpenV4L2(device string, width, height int) (*V4L2Source, error) {
	return nil, errors.New("V4L2 capture is only supported on Linux")
}

// Next always fails outside Linux.
func (s *V4L2Source) Next(ctx context.Context) (pipeline.Frame, error) {
	return pipeline.Frame{}, errors.New("V4L2 capture is only supported on Linux")
}

// Close is a no-op.
func (s *V4L2Source) Close() error { return nil }
