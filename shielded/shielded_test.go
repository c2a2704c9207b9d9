package shielded

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"testing"
)

func seal(t *testing.T, key, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatal(err)
	}
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		t.Fatal(err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...)
}

func TestThresholdPrimitiveDecryptsAfterThresholdMet(t *testing.T) {
	p, err := NewThresholdPrimitive(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	p.ResetEpoch(1)

	shareA := []byte("share-a")
	shareB := []byte("share-b")
	key := combineShares([][]byte{shareA, shareB})

	ciphertext := seal(t, key, []byte("plaintext-tx-bytes"))

	if _, err := p.Decrypt(ciphertext); err != ErrUndecryptable {
		t.Fatalf("expected undecryptable before threshold, got %v", err)
	}

	if met := p.AddShare(0, shareA); met {
		t.Fatal("threshold should not be met with one of two shares")
	}
	if met := p.AddShare(1, shareB); !met {
		t.Fatal("threshold should be met with two of two shares")
	}

	plaintext, err := p.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("expected successful decrypt, got %v", err)
	}
	if string(plaintext) != "plaintext-tx-bytes" {
		t.Fatalf("unexpected plaintext: %q", plaintext)
	}
}

func TestThresholdPrimitiveRejectsShortCiphertext(t *testing.T) {
	p, _ := NewThresholdPrimitive(1, 1)
	p.ResetEpoch(1)
	p.AddShare(0, []byte("only-share"))
	if _, err := p.Decrypt([]byte("short")); err != ErrUndecryptable {
		t.Fatalf("expected ErrUndecryptable for short ciphertext, got %v", err)
	}
}

func TestHashCommitmentDeterministic(t *testing.T) {
	a := HashCommitment([]byte("same-bytes"))
	b := HashCommitment([]byte("same-bytes"))
	if a != b {
		t.Fatal("expected deterministic hash commitment")
	}
}
