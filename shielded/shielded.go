// Package shielded models the opaque shielded-pool primitive that spec.md §1
// lists as an external collaborator: "decrypt, validate_ciphertext,
// hash_commitment". The actual zk-SNARK circuits are out of scope (spec.md
// Non-goals); this package defines the narrow interface the rest of the
// shell depends on and a concrete threshold-decryption implementation
// grounded in the teacher's txpool/encrypted threshold decryptor, adapted
// from a commit-reveal mempool mechanism to the wrapper/decrypted ciphertext
// pipeline this spec requires.
package shielded

import (
	"errors"

	"github.com/anoma-network/ledger/txtypes"
)

// ErrUndecryptable is the ⊥ (bottom) result of spec.md §3: "Undecryptable(w)
// is legal iff the shielded primitive's decrypt(ciphertext) = ⊥".
var ErrUndecryptable = errors.New("shielded: ciphertext could not be decrypted")

// Primitive is the opaque interface the shell depends on. It is deliberately
// narrow: everything about how the ciphertext is constructed and how the
// zero-knowledge proof behind it is verified belongs to the shielded-pool
// circuits, which are explicitly out of scope.
type Primitive interface {
	// ValidateCiphertext checks structural validity of a ciphertext without
	// decrypting it (used by the process-proposal wrapper check, spec.md
	// §4.E "verify ciphertext structural validity via the shielded
	// primitive").
	ValidateCiphertext(ciphertext []byte) error

	// Decrypt attempts to recover the plaintext inner tx bytes. Returns
	// ErrUndecryptable (⊥) if decryption fails for any reason; the shell
	// must treat that as a legal outcome, not a fault.
	Decrypt(ciphertext []byte) ([]byte, error)
}

// HashCommitment computes the canonical commitment hash for a plaintext, the
// same primitive spec.md §3 calls "hash_commitment". Delegated to txtypes's
// canonical hashing so the commitment used here and the one checked by
// Decrypted.HashCommitment agree by construction.
func HashCommitment(plaintext []byte) txtypes.Hash {
	return txtypes.Keccak256Hash(plaintext)
}
