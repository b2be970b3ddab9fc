package camera

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

// DirSource replays the images of a directory in lexical order, using each
// file's modification time as the capture time.
type DirSource struct {
	paths []string
	next  int
}

// NewDirSource lists the supported images in dir.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.Sort(paths)
	return &DirSource{paths: paths}, nil
}

// NewFileSource replays the given files in order.
func NewFileSource(paths ...string) *DirSource {
	return &DirSource{paths: slices.Clone(paths)}
}

// Len returns the number of frames in the source.
func (s *DirSource) Len() int {
	return len(s.paths)
}

// Paths returns the files in replay order.
func (s *DirSource) Paths() []string {
	return slices.Clone(s.paths)
}

// Next decodes the next file. Unreadable files are returned as errors and
// skipped on the following call.
func (s *DirSource) Next(ctx context.Context) (pipeline.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Frame{}, err
	}
	if s.next >= len(s.paths) {
		return pipeline.Frame{}, io.EOF
	}
	path := s.paths[s.next]
	s.next++

	info, err := os.Stat(path)
	if err != nil {
		return pipeline.Frame{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	img, err := DecodeFile(path)
	if err != nil {
		return pipeline.Frame{}, err
	}
	return pipeline.NewFrame(img, info.ModTime(), path), nil
}
