package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Options tune the pipeline
type Options struct {
	Threshold   float64       // acceptance threshold for Classify
	FrameBudget time.Duration // time allowed for detection and matching of one frame
	Workers     int           // frames processed concurrently by Run
	RetryDelay  time.Duration // pause after a failed frame read
}

// DefaultOptions returns the defaults used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		Threshold:   constants.DefaultThreshold,
		FrameBudget: 2 * time.Second,
		Workers:     1,
		RetryDelay:  2 * time.Second,
	}
}

// Pipeline wires locator, matcher and recorder together.
type Pipeline struct {
	locator  facematch.Locator
	matcher  *facematch.Matcher
	gallery  database.GalleryReader // optional, refreshes identities of matched faces
	recorder *attendance.Recorder
	opts     Options
}

// New creates a pipeline. gallery may be nil.
func New(locator facematch.Locator, matcher *facematch.Matcher, gallery database.GalleryReader, recorder *attendance.Recorder, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		locator:  locator,
		matcher:  matcher,
		gallery:  gallery,
		recorder: recorder,
		opts:     opts,
	}
}

// Stats summarizes a Run
type Stats struct {
	Frames       int64
	ReadErrors   int64
	Faces        int64
	Known        int64
	Recorded     int64
	Failed       int64
	RenderErrors int64
}

type runStats struct {
	frames, readErrors, faces, known, recorded, failed, renderErrors atomic.Int64
}

func (s *runStats) add(result FrameResult) {
	s.frames.Add(1)
	s.faces.Add(int64(len(result.Faces)))
	for _, f := range result.Faces {
		if f.Classification.Known() {
			s.known.Add(1)
		}
		switch f.Outcome.Kind {
		case attendance.OutcomeRecorded:
			s.recorded.Add(1)
		case attendance.OutcomeFailed:
			s.failed.Add(1)
		}
	}
}

func (s *runStats) snapshot() Stats {
	return Stats{
		Frames:       s.frames.Load(),
		ReadErrors:   s.readErrors.Load(),
		Faces:        s.faces.Load(),
		Known:        s.known.Load(),
		Recorded:     s.recorded.Load(),
		Failed:       s.failed.Load(),
		RenderErrors: s.renderErrors.Load(),
	}
}

// ProcessFrame locates, recognizes and records every face in frame. Faces are
// handled independently: a failure on one face never affects the others.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame Frame) FrameResult {
	result := FrameResult{
		FrameID:    frame.ID,
		Source:     frame.Source,
		CapturedAt: frame.CapturedAt,
	}
	if frame.Image == nil {
		result.Err = &facematch.InvalidInputError{Reason: "frame without image"}
		return result
	}
	bounds := frame.Image.Bounds()
	result.Width, result.Height = bounds.Dx(), bounds.Dy()
	result.Image = frame.Image

	budgetCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.opts.FrameBudget > 0 {
		budgetCtx, cancel = context.WithTimeout(ctx, p.opts.FrameBudget)
	}
	defer cancel()

	regions, err := p.locator.Locate(budgetCtx, frame.Image)
	if err != nil {
		log.Printf("[PIPELINE] frame %s: %v", frame.ID, err)
		result.Err = err
		return result
	}

	for region := range regions {
		result.Faces = append(result.Faces, p.processFace(ctx, budgetCtx, frame, region))
	}
	return result
}

func (p *Pipeline) processFace(ctx, budgetCtx context.Context, frame Frame, region facematch.FaceRegion) AnnotatedFace {
	face := AnnotatedFace{
		Region:         region,
		Classification: facematch.Classify(facematch.NoMatch(), p.opts.Threshold),
	}

	normalized, err := facematch.Normalize(frame.Image, region, p.matcher.FaceSize())
	if err != nil {
		log.Printf("[PIPELINE] frame %s: region %+v: %v", frame.ID, region, err)
		return face
	}

	match, err := p.matcher.Match(budgetCtx, normalized)
	if err != nil {
		log.Printf("[PIPELINE] frame %s: match failed: %v", frame.ID, err)
		return face
	}

	face.Classification = facematch.Classify(match, p.opts.Threshold)
	if !face.Classification.Known() {
		return face
	}

	if p.gallery != nil {
		identity, err := p.gallery.Lookup(ctx, face.Classification.Identity.ID)
		switch {
		case err != nil:
			face.Outcome = attendance.Outcome{Kind: attendance.OutcomeFailed, Err: database.WrapStorage("lookup identity", err)}
			return face
		case identity == nil:
			log.Printf("[PIPELINE] identity %d matched but no longer enrolled, reporting unknown",
				face.Classification.Identity.ID)
			face.Classification = facematch.Classification{Kind: facematch.KindUnknown, Dissimilarity: match.Dissimilarity}
			return face
		default:
			face.Classification.Identity = identity
		}
	}

	face.Outcome = p.recorder.RecordPresence(ctx, face.Classification.Identity.ID, frame.CapturedAt)
	return face
}

// Run reads frames from src until it returns io.EOF or ctx is cancelled,
// rendering every result to sink. Read errors are retried after RetryDelay.
// A cancelled context is a normal stop and is not returned as an error.
func (p *Pipeline) Run(ctx context.Context, src FrameSource, sink RenderSink) (Stats, error) {
	var stats runStats
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.opts.Workers)

	handle := func(frame Frame) {
		result := p.ProcessFrame(ctx, frame)
		stats.add(result)
		if err := sink.Render(ctx, result); err != nil {
			stats.renderErrors.Add(1)
			log.Printf("[PIPELINE] render frame %s: %v", frame.ID, err)
		}
	}

	for ctx.Err() == nil {
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			stats.readErrors.Add(1)
			log.Printf("[PIPELINE] frame read failed: %v (retrying in %s)", err, p.opts.RetryDelay)
			if !sleepCtx(ctx, p.opts.RetryDelay) {
				break
			}
			continue
		}

		if p.opts.Workers == 1 {
			handle(frame)
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			handle(frame)
		}()
	}

	wg.Wait()
	s := stats.snapshot()
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return s, fmt.Errorf("pipeline stopped: %w", err)
	}
	return s, nil
}

// sleepCtx waits for d or until ctx is done. Returns false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
