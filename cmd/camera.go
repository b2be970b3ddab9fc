package cmd

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
)

var cameraTestCmd = &cobra.Command{
	Use:   "camera-test [output.jpg]",
	Short: "Grab one frame from the configured camera and save it",
	Long: `Read a single frame from CAMERA_DEVICE, CAMERA_URL or CAMERA_DIR and write
it as a JPEG, to check that the camera works before running "serve".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCameraTest,
}

func init() {
	rootCmd.AddCommand(cameraTestCmd)

	cameraTestCmd.Flags().Duration("timeout", 10*time.Second, "How long to wait for a frame")
}

func runCameraTest(cmd *cobra.Command, args []string) error {
	output := "camera-test.jpg"
	if len(args) == 1 {
		output = args[0]
	}

	cfg := config.Load()
	src, closeSource, err := openSource(cfg.Camera)
	if err != nil {
		return err
	}
	defer closeSource()
	if src == nil {
		return &config.ConfigurationError{
			Field:  "CAMERA_DEVICE",
			Reason: "one of CAMERA_DEVICE, CAMERA_URL or CAMERA_DIR is required",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), mustGetDuration(cmd, "timeout"))
	defer cancel()
	frame, err := src.Next(ctx)
	if err != nil {
		return fmt.Errorf("failed to read frame: %w", err)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, frame.Image, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	b := frame.Image.Bounds()
	fmt.Printf("Saved %dx%d frame from %s to %s\n", b.Dx(), b.Dy(), frame.Source, output)
	return nil
}
