// Package applier implements the tx applier (spec.md component F,
// FinalizeBlock): debits and enqueues wrappers, executes decrypted inner
// txs against a transient write set, and gates every PoS-touching write
// through the native validity predicate before committing. Grounded in the
// teacher's txpool/encrypted_protocol.go message-dispatch loop, generalized
// from protocol-message handling to the wrapper/decrypted/undecryptable
// tag dispatch this spec requires.
package applier

import (
	"errors"

	"github.com/anoma-network/ledger/addr"
	"github.com/anoma-network/ledger/epoch"
	"github.com/anoma-network/ledger/fees"
	"github.com/anoma-network/ledger/pos"
	"github.com/anoma-network/ledger/storage"
	"github.com/anoma-network/ledger/txqueue"
	"github.com/anoma-network/ledger/txtypes"
)

// Code mirrors the subset of spec.md §4.E's taxonomy the applier itself can
// emit: Ok on success, WasmRuntimeError when a native or sandboxed VP
// rejects the write set.
type Code uint8

const (
	Ok               Code = 0
	WasmRuntimeError Code = 3
)

// Outcome is the event the applier produces for one finalized tx (spec.md
// §6 event stream attributes, narrowed to what the applier itself knows).
type Outcome struct {
	Hash                txtypes.Hash
	Code                Code
	Info                string
	GasUsed             uint64
	InitializedAccounts []addr.Address
}

// Executor runs a decrypted inner tx's code against a transient write set
// and reports which addresses' storage it touched. The sandboxed user-code
// execution environment itself is an external collaborator (spec.md §1);
// this interface is the shell's own seam into it.
type Executor interface {
	Execute(ws *storage.WriteSet, inner []byte) (verifiers map[addr.Address]bool, gasUsed uint64, err error)
}

var ErrQueueMismatch = errors.New("applier: queue head does not match delivered decrypted tx")

// Applier owns the per-block tx-application logic.
type Applier struct {
	Store   *storage.Store
	Exec    Executor
	Params  pos.Params
	Clock   *epoch.Clock
}

// New creates an Applier wired to a storage handle, an inner-tx executor,
// and PoS parameters.
func New(store *storage.Store, exec Executor, params pos.Params, clock *epoch.Clock) *Applier {
	return &Applier{Store: store, Exec: exec, Params: params, Clock: clock}
}

// ApplyWrapper implements spec.md §4.F.1: debit the fee, push the wrapper
// onto the queue. No user code runs. Commits its own single-tx write set.
func (a *Applier) ApplyWrapper(w *txtypes.Wrapper) (Outcome, error) {
	ws := storage.NewWriteSet(a.Store.Snapshot())
	if err := fees.Debit(ws, w.Fee.Token, w.FeePayer, w.Fee.Amount); err != nil {
		return Outcome{}, err // a wrapper reaching the applier already passed the balance check at proposal time
	}
	txqueue.Push(ws, w)
	if _, err := a.Store.Commit(ws); err != nil {
		return Outcome{}, err
	}
	return Outcome{Hash: w.TxHash, Code: Ok}, nil
}

// ApplyDecryptedUndecryptable implements spec.md §4.F.3: pop the queue
// head, no further effect.
func (a *Applier) ApplyDecryptedUndecryptable(w *txtypes.Wrapper) (Outcome, error) {
	ws := storage.NewWriteSet(a.Store.Snapshot())
	if _, err := txqueue.Pop(ws, w.TxHash); err != nil {
		return Outcome{}, err
	}
	if _, err := a.Store.Commit(ws); err != nil {
		return Outcome{}, err
	}
	return Outcome{Hash: w.TxHash, Code: Ok}, nil
}

// ApplyDecrypted implements spec.md §4.F.2: pop the queue head (which must
// equal the committed wrapper), execute inner.code against a transient
// write set, then invoke every touched address's validity predicate
// (native PoS for PoS-keyspace writes). A VP rejection discards the write
// set and reports a WasmRuntimeError outcome instead of committing.
func (a *Applier) ApplyDecrypted(committedHash txtypes.Hash, inner []byte, proposalID []byte) (Outcome, error) {
	pre := a.Store.Snapshot()
	ws := storage.NewWriteSet(pre)

	if _, err := txqueue.Pop(ws, committedHash); err != nil {
		return Outcome{}, err
	}

	verifiers, gasUsed, err := a.Exec.Execute(ws, inner)
	if err != nil {
		ws.Discard()
		return Outcome{Hash: committedHash, Code: WasmRuntimeError, Info: err.Error()}, nil
	}

	touched := ws.TouchedKeys()
	changes := pos.CollectChanges(touched, pre, ws.PostView())
	if len(changes) > 0 {
		req := pos.Request{
			Changes:      changes,
			Verifiers:    verifiers,
			CurrentEpoch: a.Clock.Current(),
			Params:       a.Params,
			ProposalID:   proposalID,
		}
		if errs := pos.Validate(req); len(errs) > 0 {
			ws.Discard()
			return Outcome{Hash: committedHash, Code: WasmRuntimeError, Info: errs[0].Error()}, nil
		}
	}

	if _, err := a.Store.Commit(ws); err != nil {
		return Outcome{}, err
	}
	return Outcome{Hash: committedHash, Code: Ok, GasUsed: gasUsed}, nil
}
