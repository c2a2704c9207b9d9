package txtypes

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// HashLength is the byte length of a canonical tx hash.
const HashLength = 32

// Hash is a 32-byte canonical-encoding hash, used for tx hash commitments
// and storage keys that reference a transaction.
type Hash [HashLength]byte

// BytesToHash left-pads b to HashLength and wraps it.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }
func (h Hash) Hex() string   { return fmt.Sprintf("0x%s", hex.EncodeToString(h[:])) }
func (h Hash) String() string { return h.Hex() }
func (h Hash) IsZero() bool  { return h == Hash{} }

// Keccak256Hash hashes the concatenation of data and returns it as a Hash.
// This is the canonical hashing primitive used throughout the shell for tx
// hash commitments (spec.md §3 "hash_commitment").
func Keccak256Hash(data ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	var h Hash
	d.Sum(h[:0])
	return h
}
