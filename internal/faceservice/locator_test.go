package faceservice

import (
	"context"
	"errors"
	"image/color"
	"slices"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

type fakeDetector struct {
	resp *FaceResponse
	err  error
	got  []byte
}

func (f *fakeDetector) DetectFaces(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	f.got = imageData
	return f.resp, f.err
}

func TestLocator_ScalesDetectionsBack(t *testing.T) {
	detector := &fakeDetector{resp: &FaceResponse{Faces: []FaceDetection{
		{BBox: []float64{10, 10, 30, 30}, DetScore: 0.9},
		{BBox: []float64{60, 10, 80, 30}, DetScore: 0.2}, // below min score
		{BBox: []float64{1, 2}, DetScore: 0.9},           // malformed
	}}}
	loc := NewLocator(detector, 100, 0.5)

	seq, err := loc.Locate(context.Background(), createTestImage(400, 200, color.White))
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	got := slices.Collect(seq)
	want := []facematch.FaceRegion{{X: 40, Y: 40, Width: 80, Height: 80}}
	if !slices.Equal(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(detector.got) == 0 {
		t.Error("expected frame to be uploaded")
	}
}

func TestLocator_DetectionError(t *testing.T) {
	loc := NewLocator(&fakeDetector{err: errors.New("connection refused")}, 100, 0)

	_, err := loc.Locate(context.Background(), createTestImage(50, 50, color.White))
	var detErr *facematch.DetectionError
	if !errors.As(err, &detErr) {
		t.Errorf("expected DetectionError, got %v", err)
	}
}

func TestLocator_NoFaces(t *testing.T) {
	loc := NewLocator(&fakeDetector{resp: &FaceResponse{}}, 100, 0)

	seq, err := loc.Locate(context.Background(), createTestImage(50, 50, color.White))
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got := slices.Collect(seq); len(got) != 0 {
		t.Errorf("expected no regions, got %+v", got)
	}
}
