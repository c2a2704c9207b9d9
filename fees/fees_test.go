package fees

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/anoma-network/ledger/addr"
)

type memRW struct{ data map[string][]byte }

func newMemRW() *memRW { return &memRW{data: make(map[string][]byte)} }

func (m *memRW) Get(key []byte) ([]byte, bool) {
	v, ok := m.data[string(key)]
	return v, ok
}

func (m *memRW) Put(key, value []byte) { m.data[string(key)] = value }

func TestDebitRejectsInsufficientBalance(t *testing.T) {
	rw := newMemRW()
	token := addr.NewImplicit([]byte("xan"))
	payer := addr.NewImplicit([]byte("payer"))

	err := Debit(rw, token, payer, uint256.NewInt(1))
	if err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestDebitSucceedsAndUpdatesBalance(t *testing.T) {
	rw := newMemRW()
	token := addr.NewImplicit([]byte("xan"))
	payer := addr.NewImplicit([]byte("payer"))
	Credit(rw, token, payer, uint256.NewInt(100))

	if err := Debit(rw, token, payer, uint256.NewInt(40)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	got := GetBalance(rw, token, payer)
	if !got.Eq(uint256.NewInt(60)) {
		t.Fatalf("expected balance 60, got %s", got)
	}
}

func TestTransferMovesBalanceAtomically(t *testing.T) {
	rw := newMemRW()
	token := addr.NewImplicit([]byte("xan"))
	src := addr.NewImplicit([]byte("src"))
	dst := addr.NewImplicit([]byte("dst"))
	Credit(rw, token, src, uint256.NewInt(100))

	if err := Transfer(rw, token, src, dst, uint256.NewInt(30)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := GetBalance(rw, token, src); !got.Eq(uint256.NewInt(70)) {
		t.Fatalf("expected src balance 70, got %s", got)
	}
	if got := GetBalance(rw, token, dst); !got.Eq(uint256.NewInt(30)) {
		t.Fatalf("expected dst balance 30, got %s", got)
	}
}

func TestTransferRejectsInsufficientFunds(t *testing.T) {
	rw := newMemRW()
	token := addr.NewImplicit([]byte("xan"))
	src := addr.NewImplicit([]byte("src"))
	dst := addr.NewImplicit([]byte("dst"))

	if err := Transfer(rw, token, src, dst, uint256.NewInt(1)); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}
