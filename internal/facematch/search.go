package facematch

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/kozaktomas/face-attendance/internal/descriptor"
)

// Policy decides which candidate wins when several are within tolerance.
type Policy string

const (
	// PolicyFirst picks the earliest enrolled candidate.
	PolicyFirst Policy = "first"
	// PolicyBest picks the closest candidate.
	PolicyBest Policy = "best"
)

// ParsePolicy converts a configuration value into a Policy. Empty means PolicyFirst.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyBest:
		return PolicyBest, nil
	default:
		return "", fmt.Errorf("unknown match policy %q", s)
	}
}

// Candidate is a stored descriptor within tolerance of the probe.
type Candidate struct {
	Entry    descriptor.Entry
	Distance float64
}

// Searcher finds the candidates of a probe in a snapshot, ordered by policy.
type Searcher interface {
	Candidates(snap descriptor.Snapshot, probe []float64, tolerance float64, policy Policy) []Candidate
}

// LinearSearcher compares the probe with every descriptor.
type LinearSearcher struct {
	Distance DistanceFunc
}

// NewLinearSearcher returns a LinearSearcher using Euclidean distance.
func NewLinearSearcher() *LinearSearcher {
	return &LinearSearcher{Distance: EuclideanDistance}
}

// Candidates keeps insertion order for PolicyFirst and sorts by ascending
// distance for PolicyBest. Ties keep insertion order.
func (s *LinearSearcher) Candidates(snap descriptor.Snapshot, probe []float64, tolerance float64, policy Policy) []Candidate {
	if len(snap.Entries) == 0 {
		return nil
	}
	distance := s.Distance
	if distance == nil {
		distance = EuclideanDistance
	}

	var out []Candidate
	for _, e := range snap.Entries {
		if d := distance(probe, e.Embedding); d <= tolerance {
			out = append(out, Candidate{Entry: e, Distance: d})
		}
	}

	if policy == PolicyBest {
		sortByDistance(out)
	}
	return out
}

func sortByDistance(c []Candidate) {
	slices.SortStableFunc(c, func(a, b Candidate) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
}
