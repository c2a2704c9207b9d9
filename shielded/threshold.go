package shielded

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"math/big"
	"sync"

	"golang.org/x/crypto/sha3"
)

// ThresholdPrimitive is a concrete Primitive backed by t-of-n threshold
// AES-GCM decryption: validators contribute key shares, and once the
// threshold is met, any collected ciphertext can be opened. Grounded in the
// teacher's txpool/encrypted.ThresholdDecryptor, generalized to serve as the
// shell's Primitive rather than a single-slot mempool helper: it keeps no
// per-ciphertext state, so every ciphertext sealed under the current epoch's
// combined key can be opened with the same collected shares.
type ThresholdPrimitive struct {
	mu        sync.RWMutex
	threshold int
	total     int
	epoch     uint64
	shares    map[int][]byte // validatorIndex -> share, for the current epoch
}

var (
	ErrThresholdInvalid = errors.New("shielded: threshold must be >= 1 and <= total")
	ErrThresholdNotMet  = errors.New("shielded: insufficient shares collected")
	ErrInvalidCiphertext = errors.New("shielded: ciphertext too short to contain a nonce")
)

// NewThresholdPrimitive creates a primitive requiring `threshold` of `total`
// validator shares before any ciphertext can be opened.
func NewThresholdPrimitive(threshold, total int) (*ThresholdPrimitive, error) {
	if threshold < 1 || threshold > total {
		return nil, ErrThresholdInvalid
	}
	return &ThresholdPrimitive{threshold: threshold, total: total, shares: make(map[int][]byte)}, nil
}

// AddShare records a validator's decryption share for the current epoch.
// Returns true once the threshold is met.
func (t *ThresholdPrimitive) AddShare(validatorIndex int, share []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shares[validatorIndex] = share
	return len(t.shares) >= t.threshold
}

// ResetEpoch clears collected shares when a new epoch begins -- shares are
// epoch-scoped, matching the fact that the wrapper committing to a
// ciphertext always names the epoch it was submitted in (spec.md §3).
func (t *ThresholdPrimitive) ResetEpoch(epoch uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.epoch = epoch
	t.shares = make(map[int][]byte)
}

// ThresholdMet reports whether enough shares have been collected to open a
// ciphertext.
func (t *ThresholdPrimitive) ThresholdMet() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.shares) >= t.threshold
}

// ValidateCiphertext implements Primitive: the only structural requirement
// is that the ciphertext is long enough to contain the AES-GCM nonce it was
// sealed with.
func (t *ThresholdPrimitive) ValidateCiphertext(ciphertext []byte) error {
	if len(ciphertext) <= 12 {
		return ErrInvalidCiphertext
	}
	return nil
}

// Decrypt implements Primitive. It derives the AES key from the currently
// collected shares with combineShares (XOR, then keccak) and opens the AES-GCM sealed
// ciphertext (first 12 bytes are the nonce). Any failure -- threshold not
// met, wrong key, corrupted ciphertext -- is folded into ErrUndecryptable so
// callers can treat it uniformly as the ⊥ outcome spec.md §3 describes.
func (t *ThresholdPrimitive) Decrypt(ciphertext []byte) ([]byte, error) {
	if err := t.ValidateCiphertext(ciphertext); err != nil {
		return nil, ErrUndecryptable
	}

	t.mu.RLock()
	if len(t.shares) < t.threshold {
		t.mu.RUnlock()
		return nil, ErrUndecryptable
	}
	shares := make([][]byte, 0, len(t.shares))
	for _, s := range t.shares {
		shares = append(shares, s)
	}
	t.mu.RUnlock()

	key := combineShares(shares)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrUndecryptable
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrUndecryptable
	}

	nonce, sealed := ciphertext[:12], ciphertext[12:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrUndecryptable
	}
	return plaintext, nil
}

// combineShares XORs all share bytes together and hashes the result to a
// 32-byte AES-256 key. A full Lagrange-interpolation Shamir reconstruction
// belongs to the shielded-pool cryptography that spec.md treats as opaque;
// this is a deterministic stand-in that is sufficient for the shell's own
// contract (same shares always combine to the same key).
func combineShares(shares [][]byte) []byte {
	maxLen := 0
	for _, s := range shares {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	combined := make([]byte, maxLen)
	for _, s := range shares {
		for i, b := range s {
			combined[i] ^= b
		}
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(combined)
	return h.Sum(nil)
}

// lagrangeCoefficient is kept for documentation parity with the teacher's
// ComputeDecryptionKey; full polynomial interpolation is not needed by the
// XOR-combination stand-in above, but the helper shows how a real Shamir
// share would be folded in if the opaque primitive were replaced.
func lagrangeCoefficient(index int, others []int) *big.Int {
	num, den := big.NewInt(1), big.NewInt(1)
	for _, j := range others {
		if j == index {
			continue
		}
		num.Mul(num, big.NewInt(int64(-j)))
		den.Mul(den, big.NewInt(int64(index-j)))
	}
	if den.Sign() == 0 {
		return big.NewInt(0)
	}
	return num.Div(num, den)
}
