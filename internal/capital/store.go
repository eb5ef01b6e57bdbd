package capital

import (
	"context"
	"sync"

	riskerr "riskgate/internal/errors"
)

// Store persists capital snapshots. CreateOnce is the single
// linearization point of the gate: N concurrent first-evaluations of a
// trading day must converge to one snapshot.
type Store interface {
	// Get returns the snapshot for key, or errors.ErrNotFound.
	Get(ctx context.Context, key Key) (*Snapshot, error)
	// CreateOnce atomically creates the snapshot if absent. Losers of a
	// race read back the winner's snapshot rather than erroring.
	CreateOnce(ctx context.Context, snap *Snapshot) (*Snapshot, error)
}

// GetOrCreateOnce reads, and only creates on a miss. A conflict during
// create falls back to the stored winner rather than propagating.
func GetOrCreateOnce(ctx context.Context, store Store, snap *Snapshot) (*Snapshot, error) {
	got, err := store.Get(ctx, snap.Key())
	if err == nil {
		return got, nil
	}
	if !riskerr.Is(err, riskerr.ErrNotFound) {
		return nil, err
	}
	return store.CreateOnce(ctx, snap)
}

// MemoryStore is the in-process reference implementation of Store. A
// single mutex provides the compare-and-create semantics.
type MemoryStore struct {
	mu    sync.Mutex
	snaps map[Key]*Snapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[Key]*Snapshot)}
}

// Get implements Store. Every load re-verifies the fingerprint.
func (m *MemoryStore) Get(_ context.Context, key Key) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.snaps[key]
	if !ok {
		return nil, riskerr.NewStoreError("get", key.String(), riskerr.ErrNotFound)
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// CreateOnce implements Store.
func (m *MemoryStore) CreateOnce(_ context.Context, snap *Snapshot) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := snap.Key()
	if existing, ok := m.snaps[key]; ok {
		if err := existing.Verify(); err != nil {
			return nil, err
		}
		return existing.Clone(), nil
	}

	stored := snap.Clone()
	if err := stored.Verify(); err != nil {
		return nil, err
	}
	m.snaps[key] = stored
	return stored.Clone(), nil
}
