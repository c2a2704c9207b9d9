// Package storage implements the versioned key-value façade of spec.md's
// component A: point lookup, prefix scan, and a transient write set per tx
// that native validity predicates read through pre/post views. The
// on-disk store itself is an external collaborator per spec.md §1 ("assumed
// to offer point lookup, prefix scan, and versioning by block height"); this
// package defines the façade the rest of the shell programs against plus two
// concrete backends (in-memory and goleveldb-backed), grounded in the
// teacher's core/rawdb.MemoryKVStore.
package storage

import "errors"

// ErrNotFound is returned by Backend.Get when the key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// Backend is the minimal key-value contract a storage implementation must
// satisfy: point lookup, write, delete, existence check, and ordered
// prefix iteration.
type Backend interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	Iterator(prefix []byte) Iterator
	Close() error
}

// Iterator walks key-value pairs in ascending key order, scoped to a prefix.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

// KV is a single key-value pair, used by prefix query results.
type KV struct {
	Key   []byte
	Value []byte
}
