package database

import (
	"errors"
	"slices"

	"github.com/coder/hnsw"
)

// TemplateIndex wraps the HNSW graph for approximate template search over large galleries.
// Candidates returned by the graph are rescored with the exact chi-square distance.
// An index is built once and then only read.
type TemplateIndex struct {
	graph        *hnsw.Graph[int64]
	idToIdentity map[int64]*Identity // Maps HNSW node ID to identity
}

// IndexHit is a single search result.
type IndexHit struct {
	Identity *Identity
	Distance float64
}

// NewTemplateIndex creates a new empty template index.
func NewTemplateIndex() *TemplateIndex {
	return &TemplateIndex{
		idToIdentity: make(map[int64]*Identity),
	}
}

func newTemplateGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = chiSquareGraphDistance
	return g
}

// Build rebuilds the index from a slice of identities. Identities without a
// template are skipped.
func (t *TemplateIndex) Build(identities []Identity) {
	t.idToIdentity = make(map[int64]*Identity, len(identities))
	if len(identities) == 0 {
		t.graph = nil
		return
	}

	g := newTemplateGraph()
	for i := range identities {
		id := &identities[i]
		if len(id.Template) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(id.ID, id.Template))
		t.idToIdentity[id.ID] = id
	}
	t.graph = g
}

// Search finds up to k near identities to the query template, ordered by
// exact distance (closest first). Results are approximate: the true nearest
// neighbour may be missing.
func (t *TemplateIndex) Search(query []float32, k int) ([]IndexHit, error) {
	if t.graph == nil {
		return nil, errors.New("index not initialized")
	}
	if k <= 0 || t.graph.Len() == 0 {
		return nil, nil
	}

	neighbors := t.graph.Search(query, k*HNSWSearchMultiplier)
	hits := make([]IndexHit, 0, len(neighbors))
	for _, n := range neighbors {
		identity, ok := t.idToIdentity[n.Key]
		if !ok {
			continue
		}
		hits = append(hits, IndexHit{
			Identity: identity,
			Distance: ChiSquareDistance(query, identity.Template),
		})
	}

	slices.SortFunc(hits, func(a, b IndexHit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
