package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/facematch/facetest"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

// Two face positions used by every frame in these tests.
var (
	leftRect  = image.Rect(10, 10, 110, 110)
	rightRect = image.Rect(150, 10, 250, 110)
)

type fixture struct {
	gallery  *mock.MockGallery
	ledger   *mock.MockLedger
	matcher  *facematch.Matcher
	pipeline *Pipeline
}

func newFixture(t *testing.T, enrolled map[int64]facetest.Pattern) *fixture {
	t.Helper()
	gallery := mock.NewMockGallery()
	for id, p := range enrolled {
		face, err := facematch.Normalize(facetest.Gray(p, 100, 100), facematch.FaceRegion{Width: 100, Height: 100}, 100)
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		template, err := facematch.ComputeTemplate(face)
		if err != nil {
			t.Fatalf("template: %v", err)
		}
		gallery.AddIdentity(database.Identity{ID: id, DisplayName: "Person " + string(rune('A'+id-1)), Template: template})
	}

	matcher := facematch.NewMatcher(100)
	if _, err := matcher.Reload(context.Background(), gallery); err != nil {
		t.Fatalf("reload: %v", err)
	}

	ledger := mock.NewMockLedger()
	locator := facematch.StaticLocator{Detections: []facematch.Detection{
		{Region: facematch.RegionFromRect(leftRect), Score: 0.9},
		{Region: facematch.RegionFromRect(rightRect), Score: 0.8},
	}}
	opts := DefaultOptions()
	opts.RetryDelay = time.Millisecond

	return &fixture{
		gallery:  gallery,
		ledger:   ledger,
		matcher:  matcher,
		pipeline: New(locator, matcher, gallery, attendance.NewRecorder(ledger, 300*time.Second), opts),
	}
}

func frameAt(t time.Time, left, right facetest.Pattern) Frame {
	img := facetest.Frame(320, 240,
		facetest.Patch{Pattern: left, Rect: leftRect},
		facetest.Patch{Pattern: right, Rect: rightRect},
	)
	return NewFrame(img, t, "test")
}

func TestProcessFrame_EmptyGallery(t *testing.T) {
	f := newFixture(t, nil)

	result := f.pipeline.ProcessFrame(context.Background(), frameAt(t0, facetest.GradientX, facetest.GradientY))

	if len(result.Faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(result.Faces))
	}
	for _, face := range result.Faces {
		if face.Classification.Kind != facematch.KindUnknown {
			t.Errorf("expected Unknown, got %s", face.Classification.Kind)
		}
		if face.Label() != facematch.UnknownLabel {
			t.Errorf("expected label %q, got %q", facematch.UnknownLabel, face.Label())
		}
		if face.Outcome.Kind != attendance.OutcomeNone {
			t.Errorf("expected no recording attempt, got %s", face.Outcome)
		}
	}
	if len(f.ledger.Events()) != 0 {
		t.Error("expected no ledger writes")
	}
}

func TestProcessFrame_CooldownAcrossFrames(t *testing.T) {
	f := newFixture(t, map[int64]facetest.Pattern{1: facetest.GradientX})

	steps := []struct {
		offset time.Duration
		want   attendance.OutcomeKind
	}{
		{0, attendance.OutcomeRecorded},
		{120 * time.Second, attendance.OutcomeSkipped},
		{400 * time.Second, attendance.OutcomeRecorded},
	}

	for _, step := range steps {
		// the right patch is flat and matches nobody
		result := f.pipeline.ProcessFrame(context.Background(), frameAt(t0.Add(step.offset), facetest.GradientX, facetest.Flat))
		face := result.Faces[0]
		if !face.Classification.Known() || face.Classification.Identity.ID != 1 {
			t.Fatalf("t=%s: expected identity 1, got %+v", step.offset, face.Classification)
		}
		if face.Outcome.Kind != step.want {
			t.Errorf("t=%s: expected %s, got %s", step.offset, step.want, face.Outcome)
		}
	}

	if got := len(f.ledger.Events()); got != 2 {
		t.Errorf("expected 2 ledger rows, got %d", got)
	}
}

func TestProcessFrame_KnownAndUnknown(t *testing.T) {
	f := newFixture(t, map[int64]facetest.Pattern{1: facetest.GradientX, 2: facetest.Flat})

	result := f.pipeline.ProcessFrame(context.Background(), frameAt(t0, facetest.GradientX, facetest.GradientY))

	if len(result.Faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(result.Faces))
	}
	known, unknown := result.Faces[0], result.Faces[1]
	if !known.Classification.Known() || known.Classification.Identity.ID != 1 {
		t.Errorf("expected left face known as 1, got %+v", known.Classification)
	}
	if known.Label() != "Person A (ID:1)" {
		t.Errorf("unexpected label %q", known.Label())
	}
	if unknown.Classification.Known() {
		t.Errorf("expected right face unknown, got %+v", unknown.Classification)
	}
	if result.Known() != 1 {
		t.Errorf("expected 1 known face, got %d", result.Known())
	}

	events := f.ledger.Events()
	if len(events) != 1 || events[0].IdentityID != 1 {
		t.Errorf("expected one event for identity 1, got %+v", events)
	}
}

func TestProcessFrame_LedgerFailure(t *testing.T) {
	f := newFixture(t, map[int64]facetest.Pattern{1: facetest.GradientX})
	f.ledger.AppendError = errors.New("disk full")

	result := f.pipeline.ProcessFrame(context.Background(), frameAt(t0, facetest.GradientX, facetest.Flat))
	face := result.Faces[0]
	if face.Outcome.Kind != attendance.OutcomeFailed {
		t.Fatalf("expected Failed, got %s", face.Outcome)
	}
	var storageErr *database.StorageError
	if !errors.As(face.Outcome.Err, &storageErr) {
		t.Errorf("expected StorageError, got %v", face.Outcome.Err)
	}
	if !face.Classification.Known() {
		t.Error("expected face still classified as known")
	}

	f.ledger.AppendError = nil
	result = f.pipeline.ProcessFrame(context.Background(), frameAt(t0.Add(time.Second), facetest.GradientX, facetest.Flat))
	if result.Faces[0].Outcome.Kind != attendance.OutcomeRecorded {
		t.Errorf("expected next frame recorded, got %s", result.Faces[0].Outcome)
	}
}

func TestProcessFrame_IdentityRemovedFromGallery(t *testing.T) {
	f := newFixture(t, map[int64]facetest.Pattern{1: facetest.GradientX})
	if err := f.gallery.Delete(context.Background(), 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	result := f.pipeline.ProcessFrame(context.Background(), frameAt(t0, facetest.GradientX, facetest.Flat))
	if result.Faces[0].Classification.Known() {
		t.Error("expected identity missing from gallery to be reported unknown")
	}
	if len(f.ledger.Events()) != 0 {
		t.Error("expected no ledger writes")
	}
}

func TestProcessFrame_DetectionError(t *testing.T) {
	f := newFixture(t, map[int64]facetest.Pattern{1: facetest.GradientX})
	f.pipeline.locator = facematch.LocatorFunc(func(ctx context.Context, frame image.Image) (iter.Seq[facematch.FaceRegion], error) {
		return nil, &facematch.DetectionError{Err: errors.New("lens covered")}
	})

	result := f.pipeline.ProcessFrame(context.Background(), frameAt(t0, facetest.GradientX, facetest.Flat))
	if len(result.Faces) != 0 {
		t.Errorf("expected no faces, got %d", len(result.Faces))
	}
	var detErr *facematch.DetectionError
	if !errors.As(result.Err, &detErr) {
		t.Errorf("expected DetectionError on result, got %v", result.Err)
	}
}

func TestProcessFrame_BudgetExceeded(t *testing.T) {
	f := newFixture(t, map[int64]facetest.Pattern{1: facetest.GradientX})
	f.pipeline.opts.FrameBudget = 10 * time.Millisecond
	f.pipeline.locator = facematch.LocatorFunc(func(ctx context.Context, frame image.Image) (iter.Seq[facematch.FaceRegion], error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	result := f.pipeline.ProcessFrame(context.Background(), frameAt(t0, facetest.GradientX, facetest.Flat))
	if len(result.Faces) != 0 {
		t.Errorf("expected slow detection to yield no faces, got %d", len(result.Faces))
	}
	if !errors.Is(result.Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", result.Err)
	}
}

func TestFrameResult_MarshalJSON(t *testing.T) {
	f := newFixture(t, map[int64]facetest.Pattern{1: facetest.GradientX})
	result := f.pipeline.ProcessFrame(context.Background(), frameAt(t0, facetest.GradientX, facetest.Flat))

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		FrameID string `json:"frame_id"`
		Faces   []struct {
			Kind          string    `json:"kind"`
			Label         string    `json:"label"`
			IdentityID    int64     `json:"identity_id"`
			Dissimilarity *float64  `json:"dissimilarity"`
			Outcome       string    `json:"outcome"`
			RelativeBox   []float64 `json:"relative_box"`
		} `json:"faces"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.FrameID != result.FrameID.String() {
		t.Errorf("unexpected frame id %s", decoded.FrameID)
	}
	if len(decoded.Faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(decoded.Faces))
	}
	if decoded.Faces[0].IdentityID != 1 || decoded.Faces[0].Outcome != "recorded" {
		t.Errorf("unexpected known face %+v", decoded.Faces[0])
	}
	for _, face := range decoded.Faces {
		if len(face.RelativeBox) != 4 {
			t.Fatalf("expected relative box, got %v", face.RelativeBox)
		}
		for _, v := range face.RelativeBox {
			if v < 0 || v > 1 {
				t.Errorf("relative box out of range: %v", face.RelativeBox)
			}
		}
	}
	if strings.Contains(string(data), "Template") {
		t.Error("templates must not be serialized")
	}
}

// sliceSource yields the given frames, injecting read errors where nil.
type sliceSource struct {
	mu     sync.Mutex
	frames []*Frame
}

func (s *sliceSource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return Frame{}, io.EOF
	}
	next := s.frames[0]
	s.frames = s.frames[1:]
	if next == nil {
		return Frame{}, errors.New("camera busy")
	}
	return *next, nil
}

type collectSink struct {
	mu      sync.Mutex
	results []FrameResult
}

func (c *collectSink) Render(ctx context.Context, result FrameResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
	return nil
}

func TestRun_UntilEOF(t *testing.T) {
	f := newFixture(t, map[int64]facetest.Pattern{1: facetest.GradientX})
	first := frameAt(t0, facetest.GradientX, facetest.GradientY)
	second := frameAt(t0.Add(10*time.Second), facetest.GradientX, facetest.GradientY)
	src := &sliceSource{frames: []*Frame{&first, nil, &second}}
	sink := &collectSink{}

	stats, err := f.pipeline.Run(context.Background(), src, sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Frames != 2 || stats.ReadErrors != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Faces != 4 || stats.Known != 2 || stats.Recorded != 1 {
		t.Errorf("unexpected face stats %+v", stats)
	}
	if len(sink.results) != 2 {
		t.Errorf("expected 2 rendered frames, got %d", len(sink.results))
	}
}

func TestRun_ConcurrentWorkersSingleWrite(t *testing.T) {
	f := newFixture(t, map[int64]facetest.Pattern{1: facetest.GradientX})
	f.pipeline.opts.Workers = 4
	f.ledger.AppendDelay = 5 * time.Millisecond

	var frames []*Frame
	for i := range 8 {
		fr := frameAt(t0.Add(time.Duration(i)*time.Second), facetest.GradientX, facetest.Flat)
		frames = append(frames, &fr)
	}

	stats, err := f.pipeline.Run(context.Background(), &sliceSource{frames: frames}, &collectSink{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Frames != 8 {
		t.Errorf("expected 8 frames, got %d", stats.Frames)
	}
	if got := len(f.ledger.Events()); got != 1 {
		t.Errorf("expected a single ledger row, got %d", got)
	}
}

type blockingSource struct{}

func (blockingSource) Next(ctx context.Context) (Frame, error) {
	<-ctx.Done()
	return Frame{}, ctx.Err()
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Run(ctx, blockingSource{}, &collectSink{})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestMultiSink_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	sink := MultiSink{
		SinkFunc(func(ctx context.Context, r FrameResult) error { calls++; return boom }),
		SinkFunc(func(ctx context.Context, r FrameResult) error { calls++; return nil }),
	}
	err := sink.Render(context.Background(), FrameResult{})
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected both sinks called, got %d", calls)
	}
}
