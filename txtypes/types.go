// Package txtypes defines the tagged-sum transaction model of spec.md §3:
// Raw, Wrapper, Decrypted (Decrypted|Undecryptable), and Protocol variants,
// plus their canonical encode/decode (codec.go) and hash commitments
// (hash.go). Grounded in the teacher's txpool/encrypted commit-reveal types
// (CommitTx/RevealTx/CommitEntry), generalized from a two-phase commit-reveal
// mempool to the wrapper/decrypted two-block pipeline this spec requires.
package txtypes

import (
	"errors"

	"github.com/anoma-network/ledger/addr"
	"github.com/holiman/uint256"
)

// Variant tags which alternative of the tx tagged sum is populated.
type Variant uint8

const (
	VariantRaw Variant = iota
	VariantWrapper
	VariantDecrypted
	VariantProtocol
)

func (v Variant) String() string {
	switch v {
	case VariantRaw:
		return "raw"
	case VariantWrapper:
		return "wrapper"
	case VariantDecrypted:
		return "decrypted"
	case VariantProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// PubKey is an opaque public key, kept as raw bytes: the shielded/signature
// cryptography behind it is an external collaborator per spec.md §1.
type PubKey []byte

// Signature is an opaque signature over an envelope's signing bytes.
type Signature []byte

// Fee is the wrapper tx's fee specification: an amount of a token, debited
// from the fee payer at acceptance time (spec.md §3 invariant).
type Fee struct {
	Token  addr.Address
	Amount *uint256.Int
}

// Raw is an unencrypted inner tx. Per spec.md §4.E it is accepted only
// through internal paths and always rejected at proposal time.
type Raw struct {
	Inner []byte
}

// Wrapper is the fee-payer-signed envelope committing to a ciphertext and to
// the hash of its eventual plaintext.
type Wrapper struct {
	Fee         Fee
	FeePayerPK  PubKey
	FeePayer    addr.Address
	Epoch       uint64
	GasLimit    uint64
	Ciphertext  []byte
	TxHash      Hash // commitment to the eventual decrypted plaintext
	Signature   Signature
}

// DecryptedKind distinguishes a successfully decrypted payload from the
// failure witness produced when decryption fails.
type DecryptedKind uint8

const (
	KindDecrypted DecryptedKind = iota
	KindUndecryptable
)

// Decrypted is the plaintext (or failure witness) produced one block after
// wrapper acceptance.
type Decrypted struct {
	Kind DecryptedKind

	// Populated when Kind == KindDecrypted: the plaintext inner tx bytes
	// (code + data), assumed canonically encoded by the wire codec.
	Inner []byte

	// Populated when Kind == KindUndecryptable: the original wrapper, the
	// failure witness per spec.md §3 "Undecryptable(w) is legal iff
	// decrypt(ciphertext) = ⊥".
	Wrapper *Wrapper
}

// HashCommitment returns keccak256(Inner) for a successfully decrypted
// payload. It must equal the committing wrapper's TxHash (spec.md §3
// invariant); callers should not call this for KindUndecryptable.
func (d *Decrypted) HashCommitment() Hash {
	return Keccak256Hash(d.Inner)
}

// ProtocolKind enumerates validator-origin control message kinds. DKGMessage
// and KeyRotation come from spec.md §3; EthBridgeUpdate supplements the
// distilled spec from the original's eth_bridge module (see SPEC_FULL.md §3).
type ProtocolKind uint8

const (
	ProtocolDKGMessage ProtocolKind = iota
	ProtocolKeyRotation
	ProtocolEthBridgeUpdate
)

// Protocol is a validator-origin control message, signed by a validator's
// protocol key.
type Protocol struct {
	Kind      ProtocolKind
	Data      []byte
	SignerPK  PubKey
	Signature Signature
}

// Tx is the tagged sum over the four tx variants. Exactly one of the
// pointer fields matching Variant is non-nil.
type Tx struct {
	Variant   Variant
	Raw       *Raw
	Wrapper   *Wrapper
	Decrypted *Decrypted
	Protocol  *Protocol
}

var ErrMalformedTx = errors.New("txtypes: malformed transaction envelope")

// Validate checks that exactly the variant-matching field is populated.
func (t *Tx) Validate() error {
	switch t.Variant {
	case VariantRaw:
		if t.Raw == nil {
			return ErrMalformedTx
		}
	case VariantWrapper:
		if t.Wrapper == nil {
			return ErrMalformedTx
		}
	case VariantDecrypted:
		if t.Decrypted == nil {
			return ErrMalformedTx
		}
		if t.Decrypted.Kind == KindUndecryptable && t.Decrypted.Wrapper == nil {
			return ErrMalformedTx
		}
	case VariantProtocol:
		if t.Protocol == nil {
			return ErrMalformedTx
		}
	default:
		return ErrMalformedTx
	}
	return nil
}
