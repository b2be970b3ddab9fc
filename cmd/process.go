package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

var processCmd = &cobra.Command{
	Use:   "process <image-or-dir>...",
	Short: "Recognize faces in still images and record attendance",
	Long: `Run the recognition pipeline over image files or directories of frames.

Each file is treated as a frame captured at its modification time, so the
attendance cooldown applies across files the same way it does for a camera.

Examples:
  # Process every frame in a directory
  face-attendance process ./frames

  # Print results as JSON lines and save annotated copies
  face-attendance process entrance.jpg --json --snapshot-dir ./out`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().Bool("json", false, "Output one JSON result per frame")
	processCmd.Flags().String("snapshot-dir", "", "Write annotated frames to this directory")
}

// openInputs turns the command arguments into a single frame source.
func openInputs(args []string) (*camera.DirSource, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		dir, err := camera.NewDirSource(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, dir.Paths()...)
	}
	return camera.NewFileSource(files...), nil
}

// printSink prints results as text or JSON lines
func printSink(asJSON bool) pipeline.RenderSink {
	var mu sync.Mutex
	return pipeline.SinkFunc(func(ctx context.Context, result pipeline.FrameResult) error {
		mu.Lock()
		defer mu.Unlock()
		if asJSON {
			return outputJSON(result)
		}
		if result.Err != nil {
			fmt.Printf("%s: error: %v\n", result.Source, result.Err)
			return nil
		}
		fmt.Printf("%s: %d face(s)\n", result.Source, len(result.Faces))
		for _, face := range result.Faces {
			line := "  " + face.Label()
			if face.Outcome.Kind != "" {
				line += " [" + face.Outcome.String() + "]"
			}
			fmt.Println(line)
		}
		return nil
	})
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	// Unreadable files are skipped without waiting.
	cfg.Camera.RetryDelay = 0
	asJSON := mustGetBool(cmd, "json")
	snapshotDir := mustGetString(cmd, "snapshot-dir")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := openInputs(args)
	if err != nil {
		return err
	}
	if src.Len() == 0 {
		return fmt.Errorf("no image files found")
	}

	_, closeStorage, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	p, _, _, _, closeLocator, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocator()

	sinks := pipeline.MultiSink{printSink(asJSON)}
	if snapshotDir != "" {
		snapshots, err := pipeline.NewSnapshotSink(snapshotDir)
		if err != nil {
			return err
		}
		sinks = append(sinks, snapshots)
	}

	start := time.Now()
	stats, err := p.Run(ctx, src, sinks)
	if err != nil {
		return err
	}
	if !asJSON {
		fmt.Printf("\nProcessed %d frames in %s: %d faces, %d known, %d recorded, %d failed, %d unreadable\n",
			stats.Frames, formatDuration(time.Since(start)), stats.Faces, stats.Known,
			stats.Recorded, stats.Failed, stats.ReadErrors)
	}
	return nil
}
