package cmd

import (
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

// openSource opens the configured camera. A nil source means no camera is
// configured and frames only arrive through the API.
func openSource(cfg config.CameraConfig) (pipeline.FrameSource, func(), error) {
	switch {
	case cfg.Device != "":
		src, err := camera.OpenV4L2(cfg.Device, cfg.Width, cfg.Height)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open camera: %w", err)
		}
		return src, func() { _ = src.Close() }, nil
	case cfg.URL != "":
		fmt.Printf("Polling snapshots from %s every %s\n", cfg.URL, cfg.Interval)
		return camera.NewHTTPSource(cfg.URL, cfg.Interval), func() {}, nil
	case cfg.Dir != "":
		src, err := camera.NewDirSource(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		fmt.Printf("Reading %d frames from %s\n", src.Len(), cfg.Dir)
		return src, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}
