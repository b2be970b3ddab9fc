package facematch

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"sync/atomic"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// gallerySnapshot is an immutable view of the enrolled identities.
type gallerySnapshot struct {
	identities []database.Identity
	index      *database.TemplateIndex // nil for small galleries
}

// Matcher finds the closest enrolled identity for a normalized face.
// Reloads swap the whole snapshot, so frames in flight never see a partial gallery.
type Matcher struct {
	faceSize   int
	indexFrom  int
	checkEvery int
	snapshot   atomic.Pointer[gallerySnapshot]
}

// NewMatcher creates a matcher for faceSize x faceSize inputs with an empty gallery.
// A non-positive faceSize selects constants.DefaultFaceSize.
func NewMatcher(faceSize int) *Matcher {
	if faceSize <= 0 {
		faceSize = constants.DefaultFaceSize
	}
	m := &Matcher{
		faceSize:   faceSize,
		indexFrom:  constants.HNSWMinGallery,
		checkEvery: 64,
	}
	m.snapshot.Store(&gallerySnapshot{})
	return m
}

// FaceSize returns the expected edge length of input faces.
func (m *Matcher) FaceSize() int {
	return m.faceSize
}

// SetIndexThreshold sets the gallery size from which the HNSW index is used.
// Takes effect on the next Load.
func (m *Matcher) SetIndexThreshold(n int) {
	m.indexFrom = n
}

// Load replaces the gallery. Identities without a valid template are skipped.
// Returns the number of identities loaded.
func (m *Matcher) Load(identities []database.Identity) int {
	valid := make([]database.Identity, 0, len(identities))
	for _, id := range identities {
		if len(id.Template) != constants.TemplateDim {
			log.Printf("[MATCHER] skipping identity %d (%s): template has %d values, want %d",
				id.ID, id.DisplayName, len(id.Template), constants.TemplateDim)
			continue
		}
		valid = append(valid, id)
	}

	snap := &gallerySnapshot{identities: valid}
	if m.indexFrom > 0 && len(valid) >= m.indexFrom {
		snap.index = database.NewTemplateIndex()
		snap.index.Build(valid)
	}
	m.snapshot.Store(snap)
	return len(valid)
}

// Reload fetches all identities from the gallery and loads them.
func (m *Matcher) Reload(ctx context.Context, gallery database.GalleryReader) (int, error) {
	identities, err := gallery.All(ctx)
	if err != nil {
		return 0, database.WrapStorage("load gallery", err)
	}
	return m.Load(identities), nil
}

// Size returns the number of identities in the current gallery.
func (m *Matcher) Size() int {
	return len(m.snapshot.Load().identities)
}

// Match returns the enrolled identity closest to face. The face must be a
// FaceSize x FaceSize grayscale image produced by Normalize. An empty gallery
// yields NoMatch. Returns ctx.Err() when the context ends mid-scan.
func (m *Matcher) Match(ctx context.Context, face *image.Gray) (MatchResult, error) {
	if face == nil {
		return MatchResult{}, &InvalidInputError{Reason: "nil face image"}
	}
	if b := face.Bounds(); b.Dx() != m.faceSize || b.Dy() != m.faceSize {
		return MatchResult{}, &InvalidInputError{
			Reason: fmt.Sprintf("face must be %dx%d, got %dx%d", m.faceSize, m.faceSize, b.Dx(), b.Dy()),
		}
	}

	snap := m.snapshot.Load()
	if len(snap.identities) == 0 {
		return NoMatch(), nil
	}

	template, err := ComputeTemplate(face)
	if err != nil {
		return MatchResult{}, err
	}

	bound := math.Inf(1)
	if snap.index != nil {
		// The index only seeds the bound; the scan below keeps the result exact.
		hits, err := snap.index.Search(template, 1)
		if err == nil && len(hits) > 0 {
			bound = hits[0].Distance
		}
	}

	return m.scan(ctx, snap.identities, template, bound)
}

// scan returns the first identity with the smallest distance. Identities
// whose distance exceeds bound are abandoned early and cannot win.
func (m *Matcher) scan(ctx context.Context, identities []database.Identity, template []float32, bound float64) (MatchResult, error) {
	best := NoMatch()
	for i := range identities {
		if i%m.checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return MatchResult{}, err
			}
		}
		d, ok := database.ChiSquareDistanceWithin(template, identities[i].Template, bound)
		if ok && d < best.Dissimilarity {
			best = MatchResult{Identity: &identities[i], Dissimilarity: d}
			bound = d
		}
	}
	return best, nil
}
