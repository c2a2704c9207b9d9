package txqueue

import (
	"testing"

	"github.com/anoma-network/ledger/addr"
	"github.com/anoma-network/ledger/txtypes"
	"github.com/holiman/uint256"
)

type memRW struct{ data map[string][]byte }

func newMemRW() *memRW { return &memRW{data: make(map[string][]byte)} }

func (m *memRW) Get(key []byte) ([]byte, bool) {
	v, ok := m.data[string(key)]
	return v, ok
}

func (m *memRW) Put(key, value []byte) { m.data[string(key)] = value }
func (m *memRW) Delete(key []byte)     { delete(m.data, string(key)) }

func testWrapper(tag byte) *txtypes.Wrapper {
	return &txtypes.Wrapper{
		Fee:        txtypes.Fee{Token: addr.PoS, Amount: uint256.NewInt(uint64(tag))},
		FeePayerPK: []byte{tag},
		FeePayer:   addr.NewImplicit([]byte{tag}),
		Epoch:      uint64(tag),
		GasLimit:   100,
		Ciphertext: []byte{tag, tag},
		TxHash:     txtypes.BytesToHash([]byte{tag}),
		Signature:  []byte{tag},
	}
}

func TestPushPeekPopFIFOOrder(t *testing.T) {
	rw := newMemRW()
	w0, w1, w2 := testWrapper(1), testWrapper(2), testWrapper(3)
	Push(rw, w0)
	Push(rw, w1)
	Push(rw, w2)

	if Len(rw) != 3 {
		t.Fatalf("expected length 3, got %d", Len(rw))
	}

	peeked, err := Peek(rw)
	if err != nil || peeked.TxHash != w0.TxHash {
		t.Fatalf("expected peek to return head w0, got %v err=%v", peeked, err)
	}

	got, err := Pop(rw, w0.TxHash)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if got.TxHash != w0.TxHash {
		t.Fatalf("expected popped w0, got %v", got.TxHash)
	}
	if Len(rw) != 2 {
		t.Fatalf("expected length 2 after pop, got %d", Len(rw))
	}

	if _, err := Pop(rw, w0.TxHash); err != ErrHeadMismatch {
		t.Fatalf("expected ErrHeadMismatch popping stale hash, got %v", err)
	}

	if _, err := Pop(rw, w1.TxHash); err != nil {
		t.Fatalf("pop w1: %v", err)
	}
	if _, err := Pop(rw, w2.TxHash); err != nil {
		t.Fatalf("pop w2: %v", err)
	}
	if !IsEmpty(rw) {
		t.Fatal("expected queue empty after draining all entries")
	}
}

func TestPopFromEmptyQueueReturnsErrEmpty(t *testing.T) {
	rw := newMemRW()
	if _, err := Pop(rw, txtypes.Hash{}); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := Peek(rw); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty from Peek, got %v", err)
	}
}

func TestIsQueueKeyRecognizesQueueKeyspace(t *testing.T) {
	if !IsQueueKey(entryKey(0)) {
		t.Fatal("expected entry key to be recognized as a queue key")
	}
	if IsQueueKey([]byte("PoS/params")) {
		t.Fatal("expected PoS key to not be recognized as a queue key")
	}
}
