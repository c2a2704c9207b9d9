// Package txqueue implements the FIFO of accepted wrappers (spec.md
// component D): wrappers accepted in block N are enqueued by the applier
// and drained, one per matching decrypted tx, in block N+1. Persisted as
// part of state so it survives a process restart and participates in
// Commit semantics (spec.md §9 "Queue"). Grounded in the teacher's
// encrypted.EncryptedPool commit-reveal bookkeeping, generalized from a
// hash-keyed commit/reveal map to an ordered FIFO since this spec's queue
// discipline requires positional matching, not just a hash lookup.
package txqueue

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/anoma-network/ledger/txtypes"
)

var (
	ErrEmpty        = errors.New("txqueue: queue is empty")
	ErrHeadMismatch = errors.New("txqueue: popped wrapper does not match expected head")
)

const keyPrefix = "queue/"

// Reader is the read half of storage.View the queue needs.
type Reader interface {
	Get(key []byte) ([]byte, bool)
}

// Writer is the write half a transient write set provides.
type Writer interface {
	Put(key, value []byte)
	Delete(key []byte)
}

func lengthKey() []byte { return []byte(keyPrefix + "len") }
func headKey() []byte   { return []byte(keyPrefix + "head") }

func entryKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%sentry/%020d", keyPrefix, index))
}

// IsQueueKey reports whether key belongs to the queue's own keyspace, i.e.
// is queue bookkeeping rather than a PoS or balance write.
func IsQueueKey(key []byte) bool {
	return len(key) >= len(keyPrefix) && string(key[:len(keyPrefix)]) == keyPrefix
}

func getUint64(r Reader, key []byte) uint64 {
	b, ok := r.Get(key)
	if !ok || len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func putUint64(w Writer, key []byte, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.Put(key, b[:])
}

// Len returns the number of wrappers currently queued.
func Len(r Reader) uint64 {
	return getUint64(r, lengthKey()) - getUint64(r, headKey())
}

// Push enqueues a wrapper, persisted under the storage façade's queue
// keyspace. Called from the applier when a Wrapper tx is finalized (spec.md
// §4.F.1: "push wrapper onto the queue").
func Push(rw interface {
	Reader
	Writer
}, w *txtypes.Wrapper) {
	tail := getUint64(rw, lengthKey())
	rw.Put(entryKey(tail), txtypes.EncodeWrapper(w, true))
	putUint64(rw, lengthKey(), tail+1)
}

// Peek returns the wrapper at the head of the queue without removing it,
// used by process-proposal's decrypted-tx ordering check (spec.md §4.E).
func Peek(r Reader) (*txtypes.Wrapper, error) {
	head := getUint64(r, headKey())
	length := getUint64(r, lengthKey())
	if head >= length {
		return nil, ErrEmpty
	}
	b, ok := r.Get(entryKey(head))
	if !ok {
		return nil, ErrEmpty
	}
	return txtypes.DecodeWrapper(b)
}

// Pop removes and returns the head wrapper, verifying it matches expected
// (by tx_hash) before removing it -- a mismatch is a consensus-level bug
// per spec.md §4.F "Queue discipline", not a validation outcome, so it is
// returned as an error rather than silently accepted.
func Pop(rw interface {
	Reader
	Writer
}, expectedHash txtypes.Hash) (*txtypes.Wrapper, error) {
	head := getUint64(rw, headKey())
	length := getUint64(rw, lengthKey())
	if head >= length {
		return nil, ErrEmpty
	}
	b, ok := rw.Get(entryKey(head))
	if !ok {
		return nil, ErrEmpty
	}
	w, err := txtypes.DecodeWrapper(b)
	if err != nil {
		return nil, err
	}
	if w.TxHash != expectedHash {
		return nil, ErrHeadMismatch
	}
	rw.Delete(entryKey(head))
	putUint64(rw, headKey(), head+1)
	return w, nil
}

// IsEmpty reports whether the queue currently holds no wrappers.
func IsEmpty(r Reader) bool { return Len(r) == 0 }
