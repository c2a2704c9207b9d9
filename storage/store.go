package storage

import "sync"

// Store is the versioned façade the rest of the shell programs against. All
// mutation happens through a WriteSet committed atomically at block
// boundaries, matching spec.md §5 "only the shell's main task writes".
type Store struct {
	mu      sync.RWMutex
	backend Backend
	height  uint64
}

// NewStore wraps a Backend at height 0.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Height returns the last committed block height.
func (s *Store) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// Get performs a point lookup against committed state.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	v, err := s.backend.Get(key)
	if err == ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Has reports whether key exists in committed state.
func (s *Store) Has(key []byte) (bool, error) { return s.backend.Has(key) }

// IteratePrefix returns an ordered iterator over committed keys sharing prefix.
func (s *Store) IteratePrefix(prefix []byte) Iterator { return s.backend.Iterator(prefix) }

// View is a height-stamped read handle. Both Snapshot (the pre view) and the
// WriteSet overlay (the post view) implement View; native validity
// predicates read through View and have no write access to the store.
type View interface {
	Get(key []byte) ([]byte, bool)
	Height() uint64
}

// Snapshot is a read view of committed state stamped with the height at
// which it was taken. It is the "pre" view passed to native validity
// predicates. It keeps no copy or version of the data: reads go to the
// store's current committed state, so a Snapshot observes commits made after
// it was taken while its Height stays fixed.
type Snapshot struct {
	store  *Store
	height uint64
}

// Snapshot captures the store's current committed height. Reads against the
// Snapshot match that height's state only for as long as no later Commit
// has run.
func (s *Store) Snapshot() *Snapshot {
	return &Snapshot{store: s, height: s.Height()}
}

func (sn *Snapshot) Get(key []byte) ([]byte, bool) {
	v, ok, err := sn.store.Get(key)
	if err != nil {
		return nil, false
	}
	return v, ok
}

func (sn *Snapshot) Height() uint64 { return sn.height }

// Commit applies a WriteSet's buffered diff to the backend key by key and
// advances the store's height by one. Commits are serialized with each
// other; reads do not take the store lock, so a concurrent reader can
// observe a diff that is only partly applied.
func (s *Store) Commit(ws *WriteSet) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range ws.dirty {
		if entry.deleted {
			if err := s.backend.Delete([]byte(key)); err != nil {
				return s.height, err
			}
			continue
		}
		if err := s.backend.Put([]byte(key), entry.value); err != nil {
			return s.height, err
		}
	}
	s.height++
	return s.height, nil
}

// Close releases the underlying backend.
func (s *Store) Close() error { return s.backend.Close() }
