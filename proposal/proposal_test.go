package proposal

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/anoma-network/ledger/addr"
	"github.com/anoma-network/ledger/fees"
	"github.com/anoma-network/ledger/shielded"
	"github.com/anoma-network/ledger/txqueue"
	"github.com/anoma-network/ledger/txtypes"
)

type memRW struct{ data map[string][]byte }

func newMemRW() *memRW { return &memRW{data: make(map[string][]byte)} }

func (m *memRW) Get(key []byte) ([]byte, bool) {
	v, ok := m.data[string(key)]
	return v, ok
}
func (m *memRW) Put(key, value []byte) { m.data[string(key)] = value }
func (m *memRW) Delete(key []byte)     { delete(m.data, string(key)) }

// stubPrimitive is a deterministic shielded.Primitive stand-in for tests.
type stubPrimitive struct {
	validateErr error
	plaintext   []byte
	decryptErr  error
}

func (s *stubPrimitive) ValidateCiphertext(ciphertext []byte) error { return s.validateErr }
func (s *stubPrimitive) Decrypt(ciphertext []byte) ([]byte, error) {
	return s.plaintext, s.decryptErr
}

func testWrapper(feeAmount uint64, payer addr.Address) *txtypes.Wrapper {
	return &txtypes.Wrapper{
		Fee:        txtypes.Fee{Token: addr.PoS, Amount: uint256.NewInt(feeAmount)},
		FeePayerPK: []byte{1},
		FeePayer:   payer,
		Epoch:      0,
		GasLimit:   100,
		Ciphertext: []byte{1, 2, 3},
		TxHash:     txtypes.BytesToHash([]byte("tx")),
		Signature:  []byte{9},
	}
}

func TestValidateRawAlwaysRejected(t *testing.T) {
	v := New(&stubPrimitive{})
	res := v.ValidateRaw()
	if res.Code != InvalidTx {
		t.Fatalf("expected InvalidTx, got %v", res.Code)
	}
}

// Boundary scenario 1: unsigned wrapper rejected.
func TestValidateWrapperUnsignedRejected(t *testing.T) {
	rw := newMemRW()
	v := New(&stubPrimitive{})
	payer := addr.NewImplicit([]byte("payer"))
	w := testWrapper(1, payer)

	res := v.ValidateWrapper(rw, w, false)
	if res.Code != InvalidSig {
		t.Fatalf("expected InvalidSig, got %v: %s", res.Code, res.Info)
	}
}

// Boundary scenario 3: unknown payer, non-zero fee.
func TestValidateWrapperInsufficientBalanceRejected(t *testing.T) {
	rw := newMemRW()
	v := New(&stubPrimitive{})
	payer := addr.NewImplicit([]byte("fresh"))
	w := testWrapper(1, payer)

	res := v.ValidateWrapper(rw, w, true)
	if res.Code != InvalidTx {
		t.Fatalf("expected InvalidTx, got %v", res.Code)
	}
}

func TestValidateWrapperAcceptedWithSufficientBalance(t *testing.T) {
	rw := newMemRW()
	v := New(&stubPrimitive{})
	payer := addr.NewImplicit([]byte("rich"))
	fees.Credit(rw, addr.PoS, payer, uint256.NewInt(100))
	w := testWrapper(1, payer)

	res := v.ValidateWrapper(rw, w, true)
	if res.Code != Ok {
		t.Fatalf("expected Ok, got %v: %s", res.Code, res.Info)
	}
}

func TestValidateWrapperRejectsInvalidCiphertext(t *testing.T) {
	rw := newMemRW()
	v := New(&stubPrimitive{validateErr: errors.New("bad ciphertext")})
	payer := addr.NewImplicit([]byte("rich"))
	fees.Credit(rw, addr.PoS, payer, uint256.NewInt(100))
	w := testWrapper(1, payer)

	res := v.ValidateWrapper(rw, w, true)
	if res.Code != InvalidTx {
		t.Fatalf("expected InvalidTx, got %v", res.Code)
	}
}

// Boundary scenario 5: extra decrypted with empty queue.
func TestValidateDecryptedExtraTxsOnEmptyQueue(t *testing.T) {
	rw := newMemRW()
	v := New(&stubPrimitive{})
	d := &txtypes.Decrypted{Kind: txtypes.KindDecrypted, Inner: []byte("x")}

	res := v.ValidateDecrypted(rw, d)
	if res.Code != ExtraTxs {
		t.Fatalf("expected ExtraTxs, got %v", res.Code)
	}
}

// Boundary scenario 4: decrypted out of order.
func TestValidateDecryptedOutOfOrderRejected(t *testing.T) {
	rw := newMemRW()
	v := New(&stubPrimitive{})
	w0 := testWrapper(1, addr.NewImplicit([]byte("p0")))
	w1 := testWrapper(1, addr.NewImplicit([]byte("p1")))
	txqueue.Push(rw, w0)
	txqueue.Push(rw, w1)

	// the inner plaintext does not hash-commit to w0 (head), simulating a
	// decrypted payload for a later queue position delivered first
	wrong := &txtypes.Decrypted{Kind: txtypes.KindDecrypted, Inner: []byte("not w0's plaintext")}
	res := v.ValidateDecrypted(rw, wrong)
	if res.Code != InvalidOrder {
		t.Fatalf("expected InvalidOrder, got %v", res.Code)
	}
}

func TestValidateDecryptedAcceptsMatchingHeadCommitment(t *testing.T) {
	rw := newMemRW()
	v := New(&stubPrimitive{})
	plaintext := []byte("inner tx bytes")
	w0 := testWrapper(1, addr.NewImplicit([]byte("p0")))
	w0.TxHash = txtypes.Keccak256Hash(plaintext)
	txqueue.Push(rw, w0)

	d := &txtypes.Decrypted{Kind: txtypes.KindDecrypted, Inner: plaintext}
	res := v.ValidateDecrypted(rw, d)
	if res.Code != Ok {
		t.Fatalf("expected Ok, got %v: %s", res.Code, res.Info)
	}
}

func TestValidateDecryptedUndecryptableMustMatchPrimitive(t *testing.T) {
	rw := newMemRW()
	w0 := testWrapper(1, addr.NewImplicit([]byte("p0")))
	txqueue.Push(rw, w0)

	// primitive says it actually decrypts fine -- the Undecryptable claim is a lie
	v := New(&stubPrimitive{plaintext: []byte("ok"), decryptErr: nil})
	d := &txtypes.Decrypted{Kind: txtypes.KindUndecryptable, Wrapper: w0}
	res := v.ValidateDecrypted(rw, d)
	if res.Code != InvalidTx {
		t.Fatalf("expected InvalidTx for false Undecryptable claim, got %v", res.Code)
	}

	v2 := New(&stubPrimitive{decryptErr: shielded.ErrUndecryptable})
	res2 := v2.ValidateDecrypted(rw, d)
	if res2.Code != Ok {
		t.Fatalf("expected Ok for genuine Undecryptable witness, got %v: %s", res2.Code, res2.Info)
	}
}

type fakeActiveSet struct{ members map[addr.Address]bool }

func (f fakeActiveSet) Contains(v addr.Address) bool { return f.members[v] }

func TestValidateProtocolRejectsNonValidatorSigner(t *testing.T) {
	v := New(&stubPrimitive{})
	signer := addr.NewImplicit([]byte("not-a-validator"))
	res := v.ValidateProtocol(fakeActiveSet{members: map[addr.Address]bool{}}, signer, &txtypes.Protocol{}, nil)
	if res.Code != InvalidSig {
		t.Fatalf("expected InvalidSig, got %v", res.Code)
	}
}

func TestValidateProtocolAcceptsActiveValidatorSigner(t *testing.T) {
	v := New(&stubPrimitive{})
	signer := addr.NewImplicit([]byte("validator"))
	res := v.ValidateProtocol(fakeActiveSet{members: map[addr.Address]bool{signer: true}}, signer, &txtypes.Protocol{}, nil)
	if res.Code != Ok {
		t.Fatalf("expected Ok, got %v: %s", res.Code, res.Info)
	}
}
