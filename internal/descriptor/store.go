// Package descriptor holds the enrolled face descriptors in memory and
// mirrors them to a flat file after every mutation.
package descriptor

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/google/renameio"
	"go.uber.org/zap"
)

// ErrInvalidDescriptor is returned when an embedding does not match the
// dimensionality of the store.
var ErrInvalidDescriptor = errors.New("invalid descriptor")

// Entry is one enrolled descriptor.
// Seq identifies the entry for its whole lifetime, positions shift on eviction.
type Entry struct {
	Seq       uint64
	OwnerID   string
	Embedding []float64
}

// Snapshot is a consistent copy of the store taken under the read lock.
type Snapshot struct {
	Entries []Entry
	Version uint64
	Dim     int
}

// Store is an append-only list of (owner, embedding) pairs.
type Store struct {
	mu      sync.RWMutex
	path    string
	dim     int  // expected length, 0 until known
	fixed   bool // dim comes from configuration
	entries []Entry
	nextSeq uint64
	version uint64
	logger  *zap.Logger

	writeFile func(filename string, data []byte, perm os.FileMode) error
}

// NewStore creates an empty store backed by path.
// An empty path keeps descriptors in memory only. dim > 0 pins the expected
// descriptor length, otherwise it is taken from the first descriptor.
func NewStore(path string, dim int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:      path,
		dim:       dim,
		fixed:     dim > 0,
		nextSeq:   1,
		logger:    logger,
		writeFile: renameio.WriteFile,
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of stored descriptors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dim returns the established descriptor length, 0 if not yet known.
func (s *Store) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Version increments on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns a copy of all entries in insertion order.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		entries[i] = Entry{Seq: e.Seq, OwnerID: e.OwnerID, Embedding: slices.Clone(e.Embedding)}
	}
	return Snapshot{Entries: entries, Version: s.version, Dim: s.dim}
}

// OwnerIDs returns the distinct owners with at least one descriptor, in
// order of first enrollment.
func (s *Store) OwnerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, e := range s.entries {
		if _, ok := seen[e.OwnerID]; ok {
			continue
		}
		seen[e.OwnerID] = struct{}{}
		ids = append(ids, e.OwnerID)
	}
	return ids
}

// Check validates an embedding against the store dimensionality without storing it.
func (s *Store) Check(embedding []float64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkLocked(embedding)
}

func (s *Store) checkLocked(embedding []float64) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding", ErrInvalidDescriptor)
	}
	if s.dim > 0 && len(embedding) != s.dim {
		return fmt.Errorf("%w: expected %d dimensions, got %d", ErrInvalidDescriptor, s.dim, len(embedding))
	}
	return nil
}

// Append stores a descriptor and persists the store.
// If persisting fails the descriptor is removed again and the error returned.
func (s *Store) Append(ownerID string, embedding []float64) (Entry, error) {
	if ownerID == "" {
		return Entry{}, fmt.Errorf("%w: owner id is required", ErrInvalidDescriptor)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(embedding); err != nil {
		return Entry{}, err
	}

	prevDim := s.dim
	entry := Entry{Seq: s.nextSeq, OwnerID: ownerID, Embedding: slices.Clone(embedding)}
	s.entries = append(s.entries, entry)
	s.dim = len(embedding)

	if err := s.persistLocked(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		s.dim = prevDim
		return Entry{}, err
	}

	s.nextSeq++
	s.version++
	return entry, nil
}

// Evict removes the descriptor identified by seq and persists the store.
// It reports whether the entry was present. The in-memory removal stands even
// when persisting fails, the next successful persist writes it out.
func (s *Store) Evict(seq uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.entries, func(e Entry) bool { return e.Seq == seq })
	if idx < 0 {
		return false, nil
	}
	s.entries = slices.Delete(s.entries, idx, idx+1)
	s.version++

	if err := s.persistLocked(); err != nil {
		return true, err
	}
	return true, nil
}

// EvictOwner removes every descriptor of ownerID and returns how many were removed.
func (s *Store) EvictOwner(ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.entries)
	s.entries = slices.DeleteFunc(s.entries, func(e Entry) bool { return e.OwnerID == ownerID })
	removed := before - len(s.entries)
	if removed == 0 {
		return 0, nil
	}
	s.version++

	if err := s.persistLocked(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Persist writes the current contents to the backing file.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := encodeFile(s.dim, s.entries)
	if err != nil {
		return fmt.Errorf("encode descriptors: %w", err)
	}
	if err := s.writeFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write descriptors to %s: %w", s.path, err)
	}
	return nil
}

// Load replaces the in-memory contents with the backing file.
// A missing or unreadable file leaves the store empty; this is logged, never fatal.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	if !s.fixed {
		s.dim = 0
	}
	s.version++

	if s.path == "" {
		return
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("descriptor file not found, starting empty", zap.String("path", s.path))
		return
	}
	if err != nil {
		s.logger.Warn("failed to read descriptor file, starting empty", zap.String("path", s.path), zap.Error(err))
		return
	}

	file, err := decodeFile(data)
	if err != nil {
		s.logger.Warn("corrupt descriptor file, starting empty", zap.String("path", s.path), zap.Error(err))
		return
	}

	if s.fixed && file.Dim != 0 && file.Dim != s.dim {
		s.logger.Warn("descriptor file dimensionality differs from configuration, starting empty",
			zap.String("path", s.path), zap.Int("file_dim", file.Dim), zap.Int("expected_dim", s.dim))
		return
	}

	s.entries = make([]Entry, len(file.IDs))
	for i := range file.IDs {
		s.entries[i] = Entry{Seq: s.nextSeq, OwnerID: file.IDs[i], Embedding: file.Encodings[i]}
		s.nextSeq++
	}
	if file.Dim != 0 {
		s.dim = file.Dim
	}

	s.logger.Info("loaded descriptors", zap.String("path", s.path), zap.Int("count", len(s.entries)), zap.Int("dim", s.dim))
}
