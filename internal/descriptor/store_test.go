package descriptor

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func vec(values ...float64) []float64 {
	return values
}

func newTestStore(t *testing.T, dim int) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "encodings.gob")
	return NewStore(path, dim, nil), path
}

func TestStore_AppendAndReload(t *testing.T) {
	store, path := newTestStore(t, 0)
	store.Load()

	if _, err := store.Append("owner-a", vec(0.1, 0.2, 0.3)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.Append("owner-b", vec(0.4, 0.5, 0.6)); err != nil {
		t.Fatalf("append: %v", err)
	}

	reloaded := NewStore(path, 0, nil)
	reloaded.Load()

	snap := reloaded.Snapshot()
	if len(snap.Entries) != 2 {
		t.Fatalf("expected 2 entries after reload, got %d", len(snap.Entries))
	}
	if snap.Entries[0].OwnerID != "owner-a" || snap.Entries[1].OwnerID != "owner-b" {
		t.Errorf("unexpected order: %s, %s", snap.Entries[0].OwnerID, snap.Entries[1].OwnerID)
	}
	if snap.Dim != 3 {
		t.Errorf("expected dim 3, got %d", snap.Dim)
	}
	if snap.Entries[1].Embedding[2] != 0.6 {
		t.Errorf("expected embedding to survive reload, got %v", snap.Entries[1].Embedding)
	}
}

func TestStore_AppendRejectsDimensionMismatch(t *testing.T) {
	store, _ := newTestStore(t, 0)

	if _, err := store.Append("owner-a", vec(1, 2, 3)); err != nil {
		t.Fatalf("append: %v", err)
	}

	_, err := store.Append("owner-b", vec(1, 2))
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("expected store to be unchanged, got %d entries", store.Len())
	}
}

func TestStore_FixedDimension(t *testing.T) {
	store, _ := newTestStore(t, 4)

	if _, err := store.Append("owner-a", vec(1, 2, 3)); !errors.Is(err, ErrInvalidDescriptor) {
		t.Fatalf("expected ErrInvalidDescriptor on first append, got %v", err)
	}
	if err := store.Check(vec(1, 2, 3, 4)); err != nil {
		t.Errorf("expected 4-dim embedding to be valid, got %v", err)
	}
}

func TestStore_AppendRejectsEmpty(t *testing.T) {
	store, _ := newTestStore(t, 0)

	if _, err := store.Append("owner-a", nil); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("expected ErrInvalidDescriptor for empty embedding, got %v", err)
	}
	if _, err := store.Append("", vec(1)); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("expected ErrInvalidDescriptor for empty owner, got %v", err)
	}
}

func TestStore_AppendRollsBackOnPersistFailure(t *testing.T) {
	store, _ := newTestStore(t, 0)
	store.writeFile = func(string, []byte, os.FileMode) error {
		return errors.New("disk full")
	}

	if _, err := store.Append("owner-a", vec(1, 2)); err == nil {
		t.Fatal("expected persist error")
	}
	if store.Len() != 0 {
		t.Errorf("expected rollback, got %d entries", store.Len())
	}
	if store.Dim() != 0 {
		t.Errorf("expected dim to be reset, got %d", store.Dim())
	}
	if store.Version() != 0 {
		t.Errorf("expected version to be unchanged, got %d", store.Version())
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	store, _ := newTestStore(t, 0)
	store.Load()

	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
}

func TestStore_LoadCorruptFile(t *testing.T) {
	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{"garbage", func(t *testing.T) []byte { return []byte("not a gob stream") }},
		{"empty", func(t *testing.T) []byte { return nil }},
		{"length mismatch", func(t *testing.T) []byte {
			return encodeRawFile(t, &fileData{
				Version:   1,
				Dim:       2,
				Encodings: [][]float64{{1, 2}},
				IDs:       []string{"a", "b"},
			})
		}},
		{"mixed dimensions", func(t *testing.T) []byte {
			return encodeRawFile(t, &fileData{
				Version:   1,
				Encodings: [][]float64{{1, 2}, {1, 2, 3}},
				IDs:       []string{"a", "b"},
			})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, path := newTestStore(t, 0)
			if err := os.WriteFile(path, tt.data(t), 0o644); err != nil {
				t.Fatal(err)
			}

			store.Load()

			if store.Len() != 0 {
				t.Errorf("expected corrupt file to load empty, got %d entries", store.Len())
			}
			if _, err := store.Append("owner", vec(1, 2, 3)); err != nil {
				t.Errorf("expected store to be usable after corrupt load, got %v", err)
			}
		})
	}
}

func TestStore_LoadDimensionConflict(t *testing.T) {
	store, path := newTestStore(t, 0)
	if _, err := store.Append("owner-a", vec(1, 2)); err != nil {
		t.Fatal(err)
	}

	pinned := NewStore(path, 3, nil)
	pinned.Load()

	if pinned.Len() != 0 {
		t.Errorf("expected conflicting file to be ignored, got %d entries", pinned.Len())
	}
	if pinned.Dim() != 3 {
		t.Errorf("expected configured dim to win, got %d", pinned.Dim())
	}
}

func TestStore_Evict(t *testing.T) {
	store, path := newTestStore(t, 0)
	a, _ := store.Append("owner-a", vec(1, 1))
	b, _ := store.Append("owner-b", vec(2, 2))
	c, _ := store.Append("owner-c", vec(3, 3))

	found, err := store.Evict(b.Seq)
	if err != nil || !found {
		t.Fatalf("evict: found=%v err=%v", found, err)
	}

	// Evicting again is a no-op.
	found, err = store.Evict(b.Seq)
	if err != nil || found {
		t.Errorf("expected second evict to find nothing, found=%v err=%v", found, err)
	}

	snap := store.Snapshot()
	if len(snap.Entries) != 2 || snap.Entries[0].Seq != a.Seq || snap.Entries[1].Seq != c.Seq {
		t.Fatalf("unexpected entries after evict: %+v", snap.Entries)
	}

	reloaded := NewStore(path, 0, nil)
	reloaded.Load()
	ids := reloaded.OwnerIDs()
	if len(ids) != 2 || ids[0] != "owner-a" || ids[1] != "owner-c" {
		t.Errorf("expected eviction to be persisted, got %v", ids)
	}
}

func TestStore_EvictOwner(t *testing.T) {
	store, _ := newTestStore(t, 0)
	store.Append("owner-a", vec(1, 1))
	store.Append("owner-b", vec(2, 2))
	store.Append("owner-a", vec(1.1, 1.1))

	removed, err := store.EvictOwner("owner-a")
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if ids := store.OwnerIDs(); len(ids) != 1 || ids[0] != "owner-b" {
		t.Errorf("unexpected owners: %v", ids)
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	store, _ := newTestStore(t, 0)
	store.Append("owner-a", vec(1, 2))

	snap := store.Snapshot()
	snap.Entries[0].Embedding[0] = 99

	if store.Snapshot().Entries[0].Embedding[0] != 1 {
		t.Error("expected snapshot mutation not to affect the store")
	}
}

func TestStore_InMemoryOnly(t *testing.T) {
	store := NewStore("", 0, nil)
	store.Load()

	if _, err := store.Append("owner-a", vec(1, 2)); err != nil {
		t.Fatalf("append without path: %v", err)
	}
	if err := store.Persist(); err != nil {
		t.Errorf("persist without path: %v", err)
	}
}

func TestStore_ConcurrentAppend(t *testing.T) {
	store, path := newTestStore(t, 0)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Append("owner", vec(float64(i), 0)); err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	reloaded := NewStore(path, 0, nil)
	reloaded.Load()
	if reloaded.Len() != 20 {
		t.Errorf("expected 20 persisted entries, got %d", reloaded.Len())
	}

	seen := make(map[uint64]bool)
	for _, e := range store.Snapshot().Entries {
		if seen[e.Seq] {
			t.Errorf("duplicate seq %d", e.Seq)
		}
		seen[e.Seq] = true
	}
}
