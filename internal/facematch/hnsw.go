package facematch

import (
	"slices"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/descriptor"
)

// HNSWSearcher finds candidates through an approximate nearest neighbor graph.
// The graph is rebuilt lazily whenever the store version changes.
// Results are always ordered by distance, so it only serves PolicyBest.
type HNSWSearcher struct {
	mu      sync.Mutex
	graph   *hnsw.Graph[uint64]
	entries map[uint64]descriptor.Entry
	version uint64
	built   bool

	// K is the number of neighbors fetched per probe
	K int
	// Distance re-checks graph results exactly
	Distance DistanceFunc
}

// NewHNSWSearcher creates an empty HNSWSearcher.
func NewHNSWSearcher() *HNSWSearcher {
	return &HNSWSearcher{
		K:        constants.HNSWSearchK,
		Distance: EuclideanDistance,
	}
}

func toVector(v []float64) hnsw.Vector {
	out := make(hnsw.Vector, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// rebuild replaces the graph with the contents of snap.
func (h *HNSWSearcher) rebuild(snap descriptor.Snapshot) {
	h.entries = make(map[uint64]descriptor.Entry, len(snap.Entries))
	h.graph = nil
	h.version = snap.Version
	h.built = true

	if len(snap.Entries) == 0 {
		return
	}

	g := hnsw.NewGraph[uint64]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance
	g.EfSearch = constants.HNSWSearchK * 2

	for _, e := range snap.Entries {
		g.Add(hnsw.MakeNode(e.Seq, toVector(e.Embedding)))
		h.entries[e.Seq] = e
	}
	h.graph = g
}

// Len returns the number of indexed descriptors.
func (h *HNSWSearcher) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Candidates ignores policy and returns graph neighbors within tolerance,
// closest first. Ties are broken by enrollment order.
func (h *HNSWSearcher) Candidates(snap descriptor.Snapshot, probe []float64, tolerance float64, _ Policy) []Candidate {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.built || h.version != snap.Version {
		h.rebuild(snap)
	}
	if h.graph == nil {
		return nil
	}

	k := min(max(h.K, 1), len(h.entries))
	distance := h.Distance
	if distance == nil {
		distance = EuclideanDistance
	}

	var out []Candidate
	for _, n := range h.graph.Search(toVector(probe), k) {
		e, ok := h.entries[n.Key]
		if !ok {
			continue
		}
		if d := distance(probe, e.Embedding); d <= tolerance {
			out = append(out, Candidate{Entry: e, Distance: d})
		}
	}

	slices.SortFunc(out, func(a, b Candidate) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		case a.Entry.Seq < b.Entry.Seq:
			return -1
		case a.Entry.Seq > b.Entry.Seq:
			return 1
		}
		return 0
	})
	return out
}
