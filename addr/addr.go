// Package addr defines the three disjoint address variants of the ledger
// shell: Established, Implicit, and Internal. Grounded in the teacher's
// core/types address handling (fixed-length byte arrays with hex codecs),
// generalized to a tagged sum instead of a single flat Address type because
// the three kinds have different existence and validity-predicate rules.
package addr

import (
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Length is the fixed byte length of the raw address payload, independent
// of variant.
const Length = 20

// Kind tags which of the three disjoint address variants a value holds.
type Kind uint8

const (
	// Established addresses are hash-derived and require a stored validity
	// predicate to exist before any transaction may target them.
	Established Kind = iota
	// Implicit addresses are derived from a public key and exist by
	// construction -- no stored VP is required.
	Implicit
	// Internal addresses are a small fixed set of well-known system
	// principals (PoS, EthBridge, MASP, ...).
	Internal
)

func (k Kind) String() string {
	switch k {
	case Established:
		return "established"
	case Implicit:
		return "implicit"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Address is a tagged, fixed-length address value.
type Address struct {
	Kind  Kind
	Bytes [Length]byte
}

var ErrInvalidHex = errors.New("addr: invalid hex encoding")

// Internal well-known principals, per spec.md §3 "Internal (a small fixed
// set of well-known system principals, e.g. PoS, EthBridge, MASP)".
var (
	PoS       = internalAddress("PoS")
	EthBridge = internalAddress("EthBridge")
	MASP      = internalAddress("MASP")
)

func internalAddress(label string) Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("internal:" + label))
	sum := h.Sum(nil)
	var a Address
	a.Kind = Internal
	copy(a.Bytes[:], sum[:Length])
	return a
}

// NewEstablished derives an Established address from the hash of its
// initializing transaction data (e.g. the tx_init_account payload).
func NewEstablished(seed []byte) Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("established:"))
	h.Write(seed)
	sum := h.Sum(nil)
	var a Address
	a.Kind = Established
	copy(a.Bytes[:], sum[:Length])
	return a
}

// NewImplicit derives an Implicit address from a public key. It exists by
// construction: no validity-predicate lookup is required to use it.
func NewImplicit(pubkey []byte) Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("implicit:"))
	h.Write(pubkey)
	sum := h.Sum(nil)
	var a Address
	a.Kind = Implicit
	copy(a.Bytes[:], sum[:Length])
	return a
}

// IsZero reports whether the address payload is the all-zero value.
func (a Address) IsZero() bool { return a.Bytes == [Length]byte{} }

// Equal reports whether two addresses have the same kind and bytes.
func (a Address) Equal(b Address) bool {
	return a.Kind == b.Kind && a.Bytes == b.Bytes
}

// Hex returns the "kind:0x..." human-readable form.
func (a Address) Hex() string {
	return fmt.Sprintf("%s:0x%s", a.Kind, hex.EncodeToString(a.Bytes[:]))
}

func (a Address) String() string { return a.Hex() }

// RequiresStoredVP reports whether this address variant requires a stored
// validity predicate to exist before it can be a tx target, per spec.md §3.
func (a Address) RequiresStoredVP() bool { return a.Kind == Established }

// ParseHex parses the "kind:0x..." form produced by Hex back into an
// Address. Used by components (e.g. the PoS VP's key classifier) that must
// recover an address from a storage key built with Hex.
func ParseHex(s string) (Address, bool) {
	var a Address
	sep := -1
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			sep = i
			break
		}
	}
	if sep < 0 || sep+3 > len(s) || s[sep+1:sep+3] != "0x" {
		return a, false
	}
	switch s[:sep] {
	case "established":
		a.Kind = Established
	case "implicit":
		a.Kind = Implicit
	case "internal":
		a.Kind = Internal
	default:
		return a, false
	}
	raw, err := hex.DecodeString(s[sep+3:])
	if err != nil || len(raw) != Length {
		return a, false
	}
	copy(a.Bytes[:], raw)
	return a, true
}
