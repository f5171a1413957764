// Package facematch identifies the owner of a probe descriptor among the
// enrolled descriptors and repairs descriptors whose owner no longer exists.
package facematch

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/descriptor"
	"go.uber.org/zap"
)

// ErrNoMatch is returned when no stored descriptor of an existing owner is
// within tolerance of the probe.
var ErrNoMatch = errors.New("no matching face")

// Match is a successful identification.
type Match struct {
	Owner    database.Owner
	Distance float64
	Seq      uint64 // descriptor that matched
	Evicted  int    // orphaned descriptors removed while searching
}

// Options configures a Matcher. Zero values select the defaults.
type Options struct {
	Policy    Policy
	Tolerance float64
	Searcher  Searcher
	Logger    *zap.Logger
}

// Matcher compares probes against a descriptor store.
type Matcher struct {
	store     *descriptor.Store
	owners    database.OwnerReader
	searcher  Searcher
	policy    Policy
	tolerance float64
	logger    *zap.Logger
}

// NewMatcher creates a Matcher over store, verifying owners through owners.
func NewMatcher(store *descriptor.Store, owners database.OwnerReader, opts Options) *Matcher {
	m := &Matcher{
		store:     store,
		owners:    owners,
		searcher:  opts.Searcher,
		policy:    opts.Policy,
		tolerance: opts.Tolerance,
		logger:    opts.Logger,
	}
	if m.searcher == nil {
		m.searcher = NewLinearSearcher()
	}
	if m.policy == "" {
		m.policy = PolicyFirst
	}
	if m.tolerance <= 0 {
		m.tolerance = constants.DefaultTolerance
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// Tolerance returns the default tolerance.
func (m *Matcher) Tolerance() float64 {
	return m.tolerance
}

// Policy returns the candidate selection policy.
func (m *Matcher) Policy() Policy {
	return m.policy
}

// Match identifies the owner of probe. A tolerance <= 0 uses the default.
//
// Candidates are verified in policy order. A candidate whose owner is gone is
// evicted from the store and the search continues with the next one.
func (m *Matcher) Match(ctx context.Context, probe []float64, tolerance float64) (*Match, error) {
	snap := m.store.Snapshot()
	if len(snap.Entries) == 0 {
		return nil, ErrNoMatch
	}
	if len(probe) == 0 || (snap.Dim > 0 && len(probe) != snap.Dim) {
		return nil, fmt.Errorf("%w: probe has %d dimensions, store has %d",
			descriptor.ErrInvalidDescriptor, len(probe), snap.Dim)
	}
	if tolerance <= 0 {
		tolerance = m.tolerance
	}

	candidates := m.searcher.Candidates(snap, probe, tolerance, m.policy)

	evicted := 0
	missing := make(map[string]bool)
	for _, c := range candidates {
		if !missing[c.Entry.OwnerID] {
			owner, err := database.WithRetryValue(ctx, func() (*database.Owner, error) {
				return m.owners.GetOwner(ctx, c.Entry.OwnerID)
			})
			if err != nil {
				return nil, fmt.Errorf("verify owner %s: %w", c.Entry.OwnerID, err)
			}
			if owner != nil {
				return &Match{Owner: *owner, Distance: c.Distance, Seq: c.Entry.Seq, Evicted: evicted}, nil
			}
			missing[c.Entry.OwnerID] = true
		}

		if m.evict(c.Entry) {
			evicted++
		}
	}

	if evicted > 0 {
		m.logger.Info("no match after repairing descriptors", zap.Int("evicted", evicted))
	}
	return nil, ErrNoMatch
}

// evict removes an orphaned descriptor. Persist failures are logged only.
func (m *Matcher) evict(e descriptor.Entry) bool {
	found, err := m.store.Evict(e.Seq)
	if err != nil {
		m.logger.Warn("failed to persist descriptor eviction",
			zap.String("owner_id", e.OwnerID), zap.Uint64("seq", e.Seq), zap.Error(err))
	}
	if found {
		m.logger.Info("evicted descriptor of missing owner",
			zap.String("owner_id", e.OwnerID), zap.Uint64("seq", e.Seq))
	}
	return found
}
