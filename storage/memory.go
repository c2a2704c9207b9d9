package storage

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryBackend is an in-memory Backend, safe for concurrent use. Grounded
// in the teacher's core/rawdb.MemoryKVStore: copy-on-read/copy-on-write so
// returned slices never alias internal storage.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *MemoryBackend) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[string(key)] = cp
	return nil
}

func (m *MemoryBackend) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemoryBackend) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *MemoryBackend) Close() error { return nil }

// Iterator returns a point-in-time snapshot iterator over all keys sharing
// prefix, in ascending order. Snapshotting the key set at creation time
// keeps the iterator safe against concurrent writers, matching the
// "snapshots, not live references" discipline of spec.md design note 9.
func (m *MemoryBackend) Iterator(prefix []byte) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0)
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	entries := make([]kv, len(keys))
	for i, k := range keys {
		v := m.data[k]
		cp := make([]byte, len(v))
		copy(cp, v)
		entries[i] = kv{key: []byte(k), value: cp}
	}
	return &sliceIterator{entries: entries, pos: -1}
}

type kv struct {
	key   []byte
	value []byte
}

type sliceIterator struct {
	entries []kv
	pos     int
}

func (it *sliceIterator) Next() bool {
	it.pos++
	return it.pos < len(it.entries)
}

func (it *sliceIterator) Key() []byte   { return it.entries[it.pos].key }
func (it *sliceIterator) Value() []byte { return it.entries[it.pos].value }
func (it *sliceIterator) Release()      {}
