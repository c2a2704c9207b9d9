package applier

import (
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"github.com/anoma-network/ledger/addr"
	"github.com/anoma-network/ledger/epoch"
	"github.com/anoma-network/ledger/fees"
	"github.com/anoma-network/ledger/pos"
	"github.com/anoma-network/ledger/storage"
	"github.com/anoma-network/ledger/txqueue"
	"github.com/anoma-network/ledger/txtypes"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	return storage.NewStore(storage.NewMemoryBackend())
}

func newClock(t *testing.T) *epoch.Clock {
	t.Helper()
	c, err := epoch.New(epoch.DefaultParams(), 0, time.Unix(0, 0), func(epoch.Number, epoch.Number, uint64) error { return nil })
	if err != nil {
		t.Fatalf("epoch.New: %v", err)
	}
	return c
}

func testWrapper(tag byte, amount uint64, payer addr.Address) *txtypes.Wrapper {
	return &txtypes.Wrapper{
		Fee:        txtypes.Fee{Token: addr.PoS, Amount: uint256.NewInt(amount)},
		FeePayerPK: []byte{tag},
		FeePayer:   payer,
		Epoch:      0,
		GasLimit:   100,
		Ciphertext: []byte{tag, tag},
		TxHash:     txtypes.BytesToHash([]byte{tag}),
		Signature:  []byte{tag},
	}
}

// noopExecutor touches nothing, signals no verifiers.
type noopExecutor struct{}

func (noopExecutor) Execute(ws *storage.WriteSet, inner []byte) (map[addr.Address]bool, uint64, error) {
	return map[addr.Address]bool{}, 7, nil
}

type failingExecutor struct{ err error }

func (f failingExecutor) Execute(ws *storage.WriteSet, inner []byte) (map[addr.Address]bool, uint64, error) {
	return nil, 0, f.err
}

func TestApplyWrapperDebitsAndEnqueues(t *testing.T) {
	store := newStore(t)
	payer := addr.NewImplicit([]byte("payer"))
	ws := storage.NewWriteSet(store.Snapshot())
	fees.Credit(ws, addr.PoS, payer, uint256.NewInt(100))
	if _, err := store.Commit(ws); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	a := New(store, noopExecutor{}, pos.DefaultParams(), newClock(t))
	w := testWrapper(1, 10, payer)
	out, err := a.ApplyWrapper(w)
	if err != nil {
		t.Fatalf("ApplyWrapper: %v", err)
	}
	if out.Code != Ok {
		t.Fatalf("expected Ok, got %v: %s", out.Code, out.Info)
	}

	sn := store.Snapshot()
	bal := fees.GetBalance(sn, addr.PoS, payer)
	if bal.Uint64() != 90 {
		t.Fatalf("expected balance 90 after fee debit, got %s", bal.String())
	}
	if txqueue.Len(sn) != 1 {
		t.Fatalf("expected queue length 1, got %d", txqueue.Len(sn))
	}
	head, err := txqueue.Peek(sn)
	if err != nil || head.TxHash != w.TxHash {
		t.Fatalf("expected queue head to be the wrapper just applied, got %v err=%v", head, err)
	}
}

func TestApplyWrapperFailsOnInsufficientBalance(t *testing.T) {
	store := newStore(t)
	payer := addr.NewImplicit([]byte("broke"))
	a := New(store, noopExecutor{}, pos.DefaultParams(), newClock(t))
	w := testWrapper(1, 10, payer)

	if _, err := a.ApplyWrapper(w); err == nil {
		t.Fatal("expected debit error for a payer with zero balance")
	}
	if txqueue.Len(store.Snapshot()) != 0 {
		t.Fatal("expected no enqueue on a failed debit")
	}
}

func TestApplyDecryptedUndecryptableDequeuesWithoutEffect(t *testing.T) {
	store := newStore(t)
	payer := addr.NewImplicit([]byte("payer"))
	w := testWrapper(1, 0, payer)
	ws := storage.NewWriteSet(store.Snapshot())
	txqueue.Push(ws, w)
	if _, err := store.Commit(ws); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	a := New(store, noopExecutor{}, pos.DefaultParams(), newClock(t))
	out, err := a.ApplyDecryptedUndecryptable(w)
	if err != nil {
		t.Fatalf("ApplyDecryptedUndecryptable: %v", err)
	}
	if out.Code != Ok {
		t.Fatalf("expected Ok, got %v", out.Code)
	}
	if !txqueue.IsEmpty(store.Snapshot()) {
		t.Fatal("expected queue drained after undecryptable dequeue")
	}
}

func TestApplyDecryptedCommitsOnSuccessfulExecution(t *testing.T) {
	store := newStore(t)
	payer := addr.NewImplicit([]byte("payer"))
	plaintext := []byte("inner tx bytes")
	w := testWrapper(1, 0, payer)
	w.TxHash = txtypes.Keccak256Hash(plaintext)
	ws := storage.NewWriteSet(store.Snapshot())
	txqueue.Push(ws, w)
	if _, err := store.Commit(ws); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	a := New(store, noopExecutor{}, pos.DefaultParams(), newClock(t))
	out, err := a.ApplyDecrypted(w.TxHash, plaintext, nil)
	if err != nil {
		t.Fatalf("ApplyDecrypted: %v", err)
	}
	if out.Code != Ok {
		t.Fatalf("expected Ok, got %v: %s", out.Code, out.Info)
	}
	if out.GasUsed != 7 {
		t.Fatalf("expected gas used propagated from executor, got %d", out.GasUsed)
	}
	if !txqueue.IsEmpty(store.Snapshot()) {
		t.Fatal("expected queue drained after decrypted application")
	}
}

func TestApplyDecryptedMismatchedHeadFailsWithoutCommitting(t *testing.T) {
	store := newStore(t)
	payer := addr.NewImplicit([]byte("payer"))
	w := testWrapper(1, 0, payer)
	ws := storage.NewWriteSet(store.Snapshot())
	txqueue.Push(ws, w)
	if _, err := store.Commit(ws); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	a := New(store, noopExecutor{}, pos.DefaultParams(), newClock(t))
	wrongHash := txtypes.BytesToHash([]byte("not the head"))
	if _, err := a.ApplyDecrypted(wrongHash, []byte("x"), nil); err != txqueue.ErrHeadMismatch {
		t.Fatalf("expected ErrHeadMismatch, got %v", err)
	}
	if txqueue.Len(store.Snapshot()) != 1 {
		t.Fatal("expected queue untouched on a failed pop")
	}
}

func TestApplyDecryptedDiscardsWriteSetOnExecutorError(t *testing.T) {
	store := newStore(t)
	payer := addr.NewImplicit([]byte("payer"))
	w := testWrapper(1, 0, payer)
	ws := storage.NewWriteSet(store.Snapshot())
	txqueue.Push(ws, w)
	if _, err := store.Commit(ws); err != nil {
		t.Fatalf("seed commit: %v", err)
	}
	heightBefore := store.Height()

	a := New(store, failingExecutor{err: errors.New("wasm trap")}, pos.DefaultParams(), newClock(t))
	out, err := a.ApplyDecrypted(w.TxHash, []byte("x"), nil)
	if err != nil {
		t.Fatalf("ApplyDecrypted: %v", err)
	}
	if out.Code != WasmRuntimeError {
		t.Fatalf("expected WasmRuntimeError, got %v", out.Code)
	}
	if store.Height() != heightBefore {
		t.Fatal("expected no commit on executor failure")
	}
	if txqueue.Len(store.Snapshot()) != 1 {
		t.Fatal("expected queue entry preserved since the pop was discarded with the rest of the write set")
	}
}

// vpRejectExecutor writes a malformed PoS key directly, to exercise the
// native validity predicate's rejection path.
type vpRejectExecutor struct{}

func (vpRejectExecutor) Execute(ws *storage.WriteSet, inner []byte) (map[addr.Address]bool, uint64, error) {
	ws.Put([]byte("PoS/bogus/not-a-recognized-key"), []byte{1})
	return map[addr.Address]bool{}, 0, nil
}

func TestApplyDecryptedDiscardsWriteSetOnVPRejection(t *testing.T) {
	store := newStore(t)
	payer := addr.NewImplicit([]byte("payer"))
	w := testWrapper(1, 0, payer)
	ws := storage.NewWriteSet(store.Snapshot())
	txqueue.Push(ws, w)
	if _, err := store.Commit(ws); err != nil {
		t.Fatalf("seed commit: %v", err)
	}
	heightBefore := store.Height()

	a := New(store, vpRejectExecutor{}, pos.DefaultParams(), newClock(t))
	out, err := a.ApplyDecrypted(w.TxHash, []byte("x"), nil)
	if err != nil {
		t.Fatalf("ApplyDecrypted: %v", err)
	}
	if out.Code != WasmRuntimeError {
		t.Fatalf("expected WasmRuntimeError from VP rejection, got %v: %s", out.Code, out.Info)
	}
	if store.Height() != heightBefore {
		t.Fatal("expected no commit on VP rejection")
	}
}
