package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/publish"
	"github.com/kozaktomas/face-attendance/internal/scheduler"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run recognition on the camera and serve the HTTP API",
	Long: `Start the attendance service.

The camera is selected by CAMERA_DEVICE (V4L2), CAMERA_URL (HTTP snapshots)
or CAMERA_DIR (still frames), in that order. Without a camera only the HTTP
API runs and frames can be uploaded to POST /api/v1/frames.

Results are logged, streamed to /api/v1/events, published to MQTT when
MQTT_BROKER is set and written as annotated JPEGs when SNAPSHOT_DIR is set.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// buildPipeline loads the gallery into a fresh matcher and wires the pipeline.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, *facematch.Matcher, database.GalleryReader, database.LedgerWriter, func(), error) {
	gallery, err := database.GetGalleryReader(ctx)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	ledger, err := database.GetLedgerWriter(ctx)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	matcher := facematch.NewMatcher(cfg.Recognition.FaceSize)
	n, err := matcher.Reload(ctx, gallery)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to load gallery: %w", err)
	}
	fmt.Printf("Loaded %d enrolled identities\n", n)

	locator, closeLocator, err := newLocator(cfg)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	recorder := attendance.NewRecorder(ledger, cfg.Attendance.Cooldown)
	p := pipeline.New(locator, matcher, gallery, recorder, pipeline.Options{
		Threshold:   cfg.Recognition.Threshold,
		FrameBudget: cfg.Recognition.FrameBudget,
		Workers:     cfg.Recognition.Workers,
		RetryDelay:  cfg.Camera.RetryDelay,
	})
	return p, matcher, gallery, ledger, closeLocator, nil
}

// buildSinks assembles the render sinks enabled by configuration.
func buildSinks(cfg *config.Config, events *handlers.EventBroadcaster) (pipeline.MultiSink, func(), error) {
	sinks := pipeline.MultiSink{pipeline.LogSink{}, events}
	cleanup := func() {}

	if cfg.Camera.SnapshotDir != "" {
		snapshots, err := pipeline.NewSnapshotSink(cfg.Camera.SnapshotDir)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, snapshots)
		fmt.Printf("Writing annotated frames to %s\n", cfg.Camera.SnapshotDir)
	}

	if cfg.MQTT.Broker != "" {
		client, err := publish.Connect(cfg.MQTT)
		if err != nil {
			return nil, nil, err
		}
		sink := publish.NewSink(client, cfg.MQTT.Topic)
		sinks = append(sinks, sink)
		cleanup = func() { client.Disconnect(250) }
		fmt.Printf("Publishing results to %s and %s\n", sink.FramesTopic(), sink.EventsTopic())
	}
	return sinks, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pinger, closeStorage, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStorage()
	fmt.Printf("Using %s backend\n", database.BackendName())

	p, matcher, gallery, ledger, closeLocator, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocator()

	events := handlers.NewEventBroadcaster()
	sinks, closeSinks, err := buildSinks(cfg, events)
	if err != nil {
		return err
	}
	defer closeSinks()

	sched := scheduler.New(ctx, time.Local)
	if err := sched.ScheduleGalleryReload(matcher, gallery, cfg.Gallery.ReloadInterval); err != nil {
		return err
	}
	if err := sched.SchedulePurge(ledger, cfg.Attendance.Retention, cfg.Attendance.PurgeAt); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	server := web.NewServer(cfg.Web, web.Dependencies{
		Matcher:   matcher,
		Processor: p,
		Sink:      sinks,
		Events:    events,
		Pinger:    pinger,
	})

	src, closeSource, err := openSource(cfg.Camera)
	if err != nil {
		return err
	}
	defer closeSource()

	runDone := make(chan struct{})
	if src != nil {
		go func() {
			defer close(runDone)
			start := time.Now()
			stats, err := p.Run(ctx, src, sinks)
			if err != nil {
				fmt.Printf("Recognition stopped: %v\n", err)
			}
			fmt.Printf("Recognition finished after %s: %d frames, %d faces, %d recorded\n",
				formatDuration(time.Since(start)), stats.Frames, stats.Faces, stats.Recorded)
		}()
	} else {
		close(runDone)
		fmt.Println("No camera configured, accepting frames over HTTP only")
	}

	serverErr := make(chan error, 1)
	go func() {
		fmt.Printf("Starting Face Attendance API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
		fmt.Println("Press Ctrl+C to stop")
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		fmt.Println("\nShutting down...")
	case err := <-serverErr:
		if err != nil {
			stop()
			<-runDone
			return err
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
	}
	<-runDone
	return nil
}
