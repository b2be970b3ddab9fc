package database

// HNSW index parameters for LBPH templates
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// before exact rescoring.
	HNSWSearchMultiplier = 3
)
