package facematch

import (
	"context"
	"errors"
	"image"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch/facetest"
)

func testIdentity(id int64, name string) *database.Identity {
	return &database.Identity{ID: id, DisplayName: name}
}

// enrolled builds an identity whose template is computed from a synthetic pattern.
func enrolled(t *testing.T, id int64, name string, p facetest.Pattern) database.Identity {
	t.Helper()
	template, err := ComputeTemplate(facetest.Gray(p, 100, 100))
	if err != nil {
		t.Fatalf("compute template: %v", err)
	}
	return database.Identity{ID: id, DisplayName: name, Template: template}
}

func TestMatcher_EmptyGallery(t *testing.T) {
	m := NewMatcher(100)

	result, err := m.Match(context.Background(), facetest.Gray(facetest.GradientX, 100, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Identity != nil {
		t.Errorf("expected no identity, got %+v", result.Identity)
	}
	if !math.IsInf(result.Dissimilarity, 1) {
		t.Errorf("expected +Inf dissimilarity, got %v", result.Dissimilarity)
	}
	if Classify(result, 70).Kind != KindUnknown {
		t.Error("expected Unknown for empty gallery")
	}
}

func TestMatcher_FindsClosestIdentity(t *testing.T) {
	m := NewMatcher(100)
	loaded := m.Load([]database.Identity{
		enrolled(t, 1, "Flat", facetest.Flat),
		enrolled(t, 2, "Horizontal", facetest.GradientX),
		enrolled(t, 3, "Vertical", facetest.GradientY),
	})
	if loaded != 3 {
		t.Fatalf("expected 3 loaded, got %d", loaded)
	}

	result, err := m.Match(context.Background(), facetest.Gray(facetest.GradientY, 100, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Identity == nil || result.Identity.ID != 3 {
		t.Fatalf("expected identity 3, got %+v", result.Identity)
	}
	if result.Dissimilarity != 0 {
		t.Errorf("expected dissimilarity 0, got %v", result.Dissimilarity)
	}
}

func TestMatcher_WrongSize(t *testing.T) {
	m := NewMatcher(100)
	m.Load([]database.Identity{enrolled(t, 1, "Flat", facetest.Flat)})

	for _, face := range []*image.Gray{nil, facetest.Gray(facetest.Flat, 50, 100)} {
		_, err := m.Match(context.Background(), face)
		var invalid *InvalidInputError
		if !errors.As(err, &invalid) {
			t.Errorf("expected InvalidInputError, got %v", err)
		}
	}
}

func TestNewMatcher_DefaultFaceSize(t *testing.T) {
	if got := NewMatcher(0).FaceSize(); got != constants.DefaultFaceSize {
		t.Errorf("expected default face size %d, got %d", constants.DefaultFaceSize, got)
	}
}

func TestMatcher_SkipsInvalidTemplates(t *testing.T) {
	m := NewMatcher(100)
	loaded := m.Load([]database.Identity{
		enrolled(t, 1, "Flat", facetest.Flat),
		{ID: 2, DisplayName: "Broken", Template: []float32{1, 2, 3}},
		{ID: 3, DisplayName: "Missing"},
	})
	if loaded != 1 || m.Size() != 1 {
		t.Errorf("expected only the valid identity loaded, got %d", loaded)
	}
}

func TestMatcher_CancelledContext(t *testing.T) {
	m := NewMatcher(100)
	m.Load([]database.Identity{enrolled(t, 1, "Flat", facetest.Flat)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Match(ctx, facetest.Gray(facetest.Flat, 100, 100))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMatcher_UsesIndexForLargeGallery(t *testing.T) {
	m := NewMatcher(100)
	m.SetIndexThreshold(2)
	m.Load([]database.Identity{
		enrolled(t, 1, "Flat", facetest.Flat),
		enrolled(t, 2, "Horizontal", facetest.GradientX),
		enrolled(t, 3, "Mirror", facetest.MirrorX),
	})

	result, err := m.Match(context.Background(), facetest.Gray(facetest.MirrorX, 100, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Identity == nil || result.Identity.ID != 3 {
		t.Fatalf("expected identity 3 via index, got %+v", result.Identity)
	}
}

func TestMatcher_IndexedMatchEqualsExactScan(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	noise := func() *image.Gray {
		img := image.NewGray(image.Rect(0, 0, 100, 100))
		for i := range img.Pix {
			img.Pix[i] = uint8(rng.IntN(256))
		}
		return img
	}

	gallery := make([]database.Identity, 600)
	for i := range gallery {
		template, err := ComputeTemplate(noise())
		if err != nil {
			t.Fatalf("compute template: %v", err)
		}
		gallery[i] = database.Identity{ID: int64(i + 1), Template: template}
	}

	indexed := NewMatcher(100)
	indexed.Load(gallery)
	exact := NewMatcher(100)
	exact.SetIndexThreshold(0)
	exact.Load(gallery)

	ctx := context.Background()
	for q := range 100 {
		face := noise()
		got, err := indexed.Match(ctx, face)
		if err != nil {
			t.Fatalf("query %d: %v", q, err)
		}
		want, err := exact.Match(ctx, face)
		if err != nil {
			t.Fatalf("query %d: %v", q, err)
		}
		if got.Identity == nil || got.Identity.ID != want.Identity.ID || got.Dissimilarity != want.Dissimilarity {
			t.Fatalf("query %d: indexed match %+v (%v), exact scan %d (%v)",
				q, got.Identity, got.Dissimilarity, want.Identity.ID, want.Dissimilarity)
		}
	}
}

func TestMatcher_TiesResolveToFirstEnrolled(t *testing.T) {
	m := NewMatcher(100)
	m.SetIndexThreshold(2)
	m.Load([]database.Identity{
		enrolled(t, 1, "Flat", facetest.Flat),
		enrolled(t, 2, "Mirror", facetest.MirrorX),
		enrolled(t, 3, "Mirror again", facetest.MirrorX),
	})

	result, err := m.Match(context.Background(), facetest.Gray(facetest.MirrorX, 100, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Identity == nil || result.Identity.ID != 2 {
		t.Fatalf("expected identity 2, got %+v", result.Identity)
	}
}

func TestMatcher_Reload(t *testing.T) {
	gallery := mock.NewMockGallery()
	gallery.AddIdentity(enrolled(t, 5, "Ana", facetest.GradientX))

	m := NewMatcher(100)
	n, err := m.Reload(context.Background(), gallery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 identity, got %d", n)
	}

	gallery.AllError = errors.New("db down")
	_, err = m.Reload(context.Background(), gallery)
	var storageErr *database.StorageError
	if !errors.As(err, &storageErr) {
		t.Errorf("expected StorageError, got %v", err)
	}
	if m.Size() != 1 {
		t.Error("expected failed reload to keep the previous gallery")
	}
}
