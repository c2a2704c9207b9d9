// Package fees implements fee and balance accounting (spec.md component I):
// debiting a wrapper's fee payer at acceptance time and the transparent
// Transfer semantics a decrypted tx's inner code may invoke. Grounded in
// the teacher's consensus.DepositConfig/deposit-processing style (a small
// config struct plus pure functions operating over explicit storage reads/
// writes rather than a live object graph), generalized from Gwei deposit
// accounting to per-token uint256 balances.
package fees

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/anoma-network/ledger/addr"
)

// ErrInsufficientBalance is returned when a debit would drive a balance
// negative. Its message matches spec.md §8 boundary scenario 3's expected
// info string verbatim, since process-proposal's InvalidTx event surfaces
// it directly.
var ErrInsufficientBalance = errors.New("does not have sufficient balance to pay fee")

// ErrInsufficientFunds is the general (non-fee) insufficient-balance error
// for transparent Transfer execution inside the applier.
var ErrInsufficientFunds = errors.New("fees: insufficient balance for transfer")

const keyPrefix = "balance/"

// BalanceKey is the storage key for owner's balance of token.
func BalanceKey(token, owner addr.Address) []byte {
	return []byte(fmt.Sprintf("%s%s/%s", keyPrefix, token.Hex(), owner.Hex()))
}

// IsBalanceKey reports whether key is a balance-keyspace key, i.e. a write
// touching fee/transfer accounting (not the PoS keyspace, which has its own
// internal-address balance key).
func IsBalanceKey(key []byte) bool { return bytes.HasPrefix(key, []byte(keyPrefix)) }

// Reader is the read half of storage.View, narrowed to what balance lookups
// need.
type Reader interface {
	Get(key []byte) ([]byte, bool)
}

// Writer is the write half a transient write set provides.
type Writer interface {
	Put(key, value []byte)
}

// GetBalance reads owner's balance of token; absence reads as zero.
func GetBalance(r Reader, token, owner addr.Address) *uint256.Int {
	b, ok := r.Get(BalanceKey(token, owner))
	if !ok {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).SetBytes(b)
}

func putBalance(w Writer, token, owner addr.Address, amount *uint256.Int) {
	w.Put(BalanceKey(token, owner), amount.Bytes())
}

// Debit subtracts amount of token from owner's balance. Returns
// ErrInsufficientBalance if the balance is insufficient, leaving storage
// untouched (spec.md §4.E.b: wrapper fee checks must not mutate state on
// rejection).
func Debit(rw interface {
	Reader
	Writer
}, token, owner addr.Address, amount *uint256.Int) error {
	bal := GetBalance(rw, token, owner)
	if bal.Lt(amount) {
		return ErrInsufficientBalance
	}
	next := new(uint256.Int).Sub(bal, amount)
	putBalance(rw, token, owner, next)
	return nil
}

// Credit adds amount of token to owner's balance.
func Credit(rw interface {
	Reader
	Writer
}, token, owner addr.Address, amount *uint256.Int) {
	bal := GetBalance(rw, token, owner)
	next := new(uint256.Int).Add(bal, amount)
	putBalance(rw, token, owner, next)
}

// Transfer moves amount of token from src to dst as a single atomic
// storage mutation, the transparent Transfer semantics spec.md §4.F
// describes for decrypted inner tx code.
func Transfer(rw interface {
	Reader
	Writer
}, token, src, dst addr.Address, amount *uint256.Int) error {
	bal := GetBalance(rw, token, src)
	if bal.Lt(amount) {
		return ErrInsufficientFunds
	}
	next := new(uint256.Int).Sub(bal, amount)
	putBalance(rw, token, src, next)
	Credit(rw, token, dst, amount)
	return nil
}
