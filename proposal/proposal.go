// Package proposal implements the process-proposal validator (spec.md
// component E): classifies each tx in a proposed block and returns a
// stable (code, info) pair. Grounded in the teacher's
// txpool/encrypted_protocol.go dispatch-on-message-kind structure,
// generalized from commit/reveal protocol messages to this spec's
// Raw/Wrapper/Decrypted/Protocol tagged sum.
package proposal

import (
	"fmt"

	"github.com/anoma-network/ledger/addr"
	"github.com/anoma-network/ledger/epoch"
	"github.com/anoma-network/ledger/fees"
	"github.com/anoma-network/ledger/shielded"
	"github.com/anoma-network/ledger/txqueue"
	"github.com/anoma-network/ledger/txtypes"
)

// Code is the stable numeric classifier taxonomy of spec.md §4.E.
type Code uint8

const (
	Ok Code = iota
	InvalidTx
	InvalidSig
	WasmRuntimeError
	InvalidOrder
	ExtraTxs
)

func (c Code) String() string {
	switch c {
	case Ok:
		return "Ok"
	case InvalidTx:
		return "InvalidTx"
	case InvalidSig:
		return "InvalidSig"
	case WasmRuntimeError:
		return "WasmRuntimeError"
	case InvalidOrder:
		return "InvalidOrder"
	case ExtraTxs:
		return "ExtraTxs"
	default:
		return "Unknown"
	}
}

// Result is the (code, info) pair returned per tx.
type Result struct {
	Code Code
	Info string

	// DecryptedOut is populated only by the decryption-coupled path
	// (spec.md §4.E "Decryption-coupled path"): the synthesized Decrypted
	// payload downstream observers should see instead of the raw Wrapper.
	DecryptedOut *txtypes.Tx
}

func reject(code Code, info string) Result { return Result{Code: code, Info: info} }

// QueueReader is the read half of the tx queue the Decrypted-variant check
// needs (peeking the head without popping it — the applier pops).
type QueueReader interface {
	Get(key []byte) ([]byte, bool)
}

// BalanceReader is the read half of fee-payer balance lookups.
type BalanceReader = fees.Reader

// BalanceWriter additionally allows the decryption-coupled path to enqueue
// the wrapper as a side effect (spec.md §4.E "appends the wrapper to the
// queue as a side effect").
type BalanceWriter interface {
	BalanceReader
	Put(key, value []byte)
	Delete(key []byte)
}

// ActiveSet is the minimal validator-membership test a Protocol tx's
// signer is checked against.
type ActiveSet interface {
	Contains(v addr.Address) bool
}

// Validator runs the per-tx classification of spec.md §4.E.
type Validator struct {
	Shielded shielded.Primitive
}

// New creates a Validator backed by the given shielded-pool primitive.
func New(prim shielded.Primitive) *Validator { return &Validator{Shielded: prim} }

// ValidateRaw always rejects: spec.md §4.E "Raw → always (1, ...)".
func (v *Validator) ValidateRaw() Result {
	return reject(InvalidTx, "Non-encrypted transactions are not supported")
}

// ValidateWrapper runs the wrapper per-variant contract (spec.md §4.E): (a)
// ciphertext structural validity, (b) fee-payer balance sufficiency. A
// forged envelope signature is expected to have been rejected upstream at
// parse time (signerVerified == false models that upstream rejection).
func (v *Validator) ValidateWrapper(r BalanceReader, w *txtypes.Wrapper, signerVerified bool) Result {
	if !signerVerified {
		return reject(InvalidSig, "Signature verification failed")
	}
	if err := v.Shielded.ValidateCiphertext(w.Ciphertext); err != nil {
		return reject(InvalidTx, fmt.Sprintf("invalid ciphertext: %v", err))
	}
	balance := fees.GetBalance(r, w.Fee.Token, w.FeePayer)
	if balance.Lt(w.Fee.Amount) {
		return reject(InvalidTx, fmt.Sprintf("%s %s", w.FeePayer, fees.ErrInsufficientBalance))
	}
	return Result{Code: Ok}
}

// ValidateDecrypted runs the decrypted per-variant contract (spec.md §4.E):
// queue-empty check, head-wrapper hash-commitment match, and (for
// Undecryptable payloads) agreement with what the shielded primitive
// actually produces. The queue is not popped here; the applier does that.
func (v *Validator) ValidateDecrypted(q QueueReader, d *txtypes.Decrypted) Result {
	head, err := txqueue.Peek(q)
	if err == txqueue.ErrEmpty {
		return reject(ExtraTxs, "decrypted tx delivered with an empty queue")
	}
	if err != nil {
		return reject(InvalidTx, err.Error())
	}

	switch d.Kind {
	case txtypes.KindDecrypted:
		if d.HashCommitment() != head.TxHash {
			return reject(InvalidOrder, "decrypted tx does not match the head of the queue")
		}
	case txtypes.KindUndecryptable:
		if d.Wrapper == nil || d.Wrapper.TxHash != head.TxHash {
			return reject(InvalidOrder, "decrypted tx does not match the head of the queue")
		}
		if _, err := v.Shielded.Decrypt(head.Ciphertext); err != shielded.ErrUndecryptable {
			return reject(InvalidTx, "undecryptable witness does not match shielded primitive's own decrypt result")
		}
	}
	return Result{Code: Ok}
}

// ValidateProtocol resolves the signer to an active-set validator and, on
// success, dispatches a kind-specific stateless check (spec.md §4.E
// "Protocol"). kindCheck is supplied by the caller per ProtocolKind since
// DKG/key-rotation/eth-bridge checks are each their own stateless rule.
func (v *Validator) ValidateProtocol(active ActiveSet, signer addr.Address, p *txtypes.Protocol, kindCheck func(*txtypes.Protocol) error) Result {
	if !active.Contains(signer) {
		return reject(InvalidSig, "protocol tx signer is not in the active validator set")
	}
	if kindCheck != nil {
		if err := kindCheck(p); err != nil {
			return reject(InvalidTx, err.Error())
		}
	}
	return Result{Code: Ok}
}

// DecryptionCoupled implements spec.md §4.E's "Decryption-coupled path":
// run the wrapper check, and only on success decrypt, synthesize the
// Decrypted payload, enqueue the wrapper as a side effect, and re-run
// validation on the synthesized payload so the emitted event carries
// post-decryption bytes.
func (v *Validator) DecryptionCoupled(rw BalanceWriter, w *txtypes.Wrapper, signerVerified bool) Result {
	wrapperResult := v.ValidateWrapper(rw, w, signerVerified)
	if wrapperResult.Code != Ok {
		return wrapperResult
	}

	plaintext, err := v.Shielded.Decrypt(w.Ciphertext)
	var decrypted *txtypes.Decrypted
	if err == shielded.ErrUndecryptable {
		decrypted = &txtypes.Decrypted{Kind: txtypes.KindUndecryptable, Wrapper: w}
	} else if err != nil {
		return reject(InvalidTx, fmt.Sprintf("decrypt: %v", err))
	} else {
		decrypted = &txtypes.Decrypted{Kind: txtypes.KindDecrypted, Inner: plaintext}
	}

	txqueue.Push(rw, w)

	out := &txtypes.Tx{Variant: txtypes.VariantDecrypted, Decrypted: decrypted}
	inner := v.ValidateDecrypted(rw, decrypted)
	inner.DecryptedOut = out
	return inner
}

// EpochActiveSetSignerCheck is the implemented Open Question (a) decision:
// a Protocol tx's signer is checked against the active set of the epoch at
// which the tx appears (the current epoch at process-proposal time), not
// the pipeline's next epoch.
func EpochActiveSetSignerCheck(clock interface{ Current() epoch.Number }) epoch.Number {
	return clock.Current()
}
