package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

// HTTPSource polls a camera snapshot URL (as exposed by most IP cameras).
type HTTPSource struct {
	url      string
	interval time.Duration
	client   *http.Client
	last     time.Time
	now      func() time.Time
}

// NewHTTPSource creates a source fetching url at most once per interval.
func NewHTTPSource(url string, interval time.Duration) *HTTPSource {
	return &HTTPSource{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Next fetches and decodes a snapshot, waiting for the polling interval first.
func (s *HTTPSource) Next(ctx context.Context) (pipeline.Frame, error) {
	if wait := s.interval - s.now().Sub(s.last); !s.last.IsZero() && wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return pipeline.Frame{}, ctx.Err()
		case <-timer.C:
		}
	}
	s.last = s.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return pipeline.Frame{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return pipeline.Frame{}, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pipeline.Frame{}, fmt.Errorf("snapshot error (status %d)", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxFrameUploadSize))
	if err != nil {
		return pipeline.Frame{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	img, err := Decode(data)
	if err != nil {
		return pipeline.Frame{}, err
	}
	return pipeline.NewFrame(img, s.last, s.url), nil
}
