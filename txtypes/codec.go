package txtypes

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/anoma-network/ledger/addr"
	"github.com/holiman/uint256"
)

// Canonical binary encoding for the tx tagged sum. The wire codec proper is
// an external collaborator (spec.md §1); this is the shell's own internal
// canonical form used for hash commitments, storage persistence, and
// round-trip tests, deterministic and order-preserving like the teacher's
// rlp package but hand-written for this fixed set of structs rather than
// reflection-driven.

var (
	ErrShortBuffer   = errors.New("txtypes: buffer too short")
	ErrUnknownVariant = errors.New("txtypes: unknown tx variant byte")
)

func writeUint64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func writeBytes(w *bytes.Buffer, b []byte) {
	writeUint64(w, uint64(len(b)))
	w.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, ErrShortBuffer
		}
	}
	return buf, nil
}

func writeAddress(w *bytes.Buffer, a addr.Address) {
	w.WriteByte(byte(a.Kind))
	w.Write(a.Bytes[:])
}

func readAddress(r *bytes.Reader) (addr.Address, error) {
	var a addr.Address
	kb, err := r.ReadByte()
	if err != nil {
		return a, ErrShortBuffer
	}
	a.Kind = addr.Kind(kb)
	if _, err := io.ReadFull(r, a.Bytes[:]); err != nil {
		return a, ErrShortBuffer
	}
	return a, nil
}

func writeUint256Val(w *bytes.Buffer, v *uint256.Int) {
	if v == nil {
		v = uint256.NewInt(0)
	}
	b := v.Bytes32()
	w.Write(b[:])
}

func readUint256Val(r *bytes.Reader) (*uint256.Int, error) {
	var b [32]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, ErrShortBuffer
	}
	return new(uint256.Int).SetBytes(b[:]), nil
}

func writeHash(w *bytes.Buffer, h Hash) { w.Write(h[:]) }

func readHash(r *bytes.Reader) (Hash, error) {
	var h Hash
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return h, ErrShortBuffer
	}
	return h, nil
}

// encodeFee writes a canonical Fee.
func encodeFee(w *bytes.Buffer, f Fee) {
	writeAddress(w, f.Token)
	writeUint256Val(w, f.Amount)
}

func decodeFee(r *bytes.Reader) (Fee, error) {
	tok, err := readAddress(r)
	if err != nil {
		return Fee{}, err
	}
	amt, err := readUint256Val(r)
	if err != nil {
		return Fee{}, err
	}
	return Fee{Token: tok, Amount: amt}, nil
}

// EncodeWrapper produces the canonical encoding of a Wrapper, excluding its
// own signature (the signing bytes), or including it when full=true.
func EncodeWrapper(w *Wrapper, full bool) []byte {
	var buf bytes.Buffer
	encodeFee(&buf, w.Fee)
	writeBytes(&buf, w.FeePayerPK)
	writeAddress(&buf, w.FeePayer)
	writeUint64(&buf, w.Epoch)
	writeUint64(&buf, w.GasLimit)
	writeBytes(&buf, w.Ciphertext)
	writeHash(&buf, w.TxHash)
	if full {
		writeBytes(&buf, w.Signature)
	}
	return buf.Bytes()
}

// SigningBytes returns the bytes the fee payer signs over: everything in the
// wrapper except the signature itself. Used both to produce and to verify
// signatures, so a malleated-then-resigned fee can never reuse an old
// signature (boundary scenario 2 in spec.md §8).
func (w *Wrapper) SigningBytes() []byte { return EncodeWrapper(w, false) }

// DecodeWrapper parses the canonical encoding produced by EncodeWrapper(w, true).
func DecodeWrapper(b []byte) (*Wrapper, error) {
	r := bytes.NewReader(b)
	fee, err := decodeFee(r)
	if err != nil {
		return nil, err
	}
	pk, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	payer, err := readAddress(r)
	if err != nil {
		return nil, err
	}
	epoch, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	gas, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	ct, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	hash, err := readHash(r)
	if err != nil {
		return nil, err
	}
	sig, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	return &Wrapper{
		Fee:        fee,
		FeePayerPK: pk,
		FeePayer:   payer,
		Epoch:      epoch,
		GasLimit:   gas,
		Ciphertext: ct,
		TxHash:     hash,
		Signature:  sig,
	}, nil
}

// EncodeTx produces the canonical encoding of an entire Tx, variant-tagged.
func EncodeTx(tx *Tx) ([]byte, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte(byte(tx.Variant))

	switch tx.Variant {
	case VariantRaw:
		writeBytes(&buf, tx.Raw.Inner)
	case VariantWrapper:
		buf.Write(EncodeWrapper(tx.Wrapper, true))
	case VariantDecrypted:
		buf.WriteByte(byte(tx.Decrypted.Kind))
		if tx.Decrypted.Kind == KindDecrypted {
			writeBytes(&buf, tx.Decrypted.Inner)
		} else {
			buf.Write(EncodeWrapper(tx.Decrypted.Wrapper, true))
		}
	case VariantProtocol:
		buf.WriteByte(byte(tx.Protocol.Kind))
		writeBytes(&buf, tx.Protocol.Data)
		writeBytes(&buf, tx.Protocol.SignerPK)
		writeBytes(&buf, tx.Protocol.Signature)
	}
	return buf.Bytes(), nil
}

// DecodeTx parses the canonical encoding produced by EncodeTx.
func DecodeTx(b []byte) (*Tx, error) {
	if len(b) < 1 {
		return nil, ErrShortBuffer
	}
	variant := Variant(b[0])
	r := bytes.NewReader(b[1:])

	tx := &Tx{Variant: variant}
	switch variant {
	case VariantRaw:
		inner, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		tx.Raw = &Raw{Inner: inner}
	case VariantWrapper:
		rest, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		w, err := DecodeWrapper(rest)
		if err != nil {
			return nil, err
		}
		tx.Wrapper = w
	case VariantDecrypted:
		kb, err := r.ReadByte()
		if err != nil {
			return nil, ErrShortBuffer
		}
		kind := DecryptedKind(kb)
		d := &Decrypted{Kind: kind}
		if kind == KindDecrypted {
			inner, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			d.Inner = inner
		} else {
			rest, err := io.ReadAll(r)
			if err != nil {
				return nil, err
			}
			w, err := DecodeWrapper(rest)
			if err != nil {
				return nil, err
			}
			d.Wrapper = w
		}
		tx.Decrypted = d
	case VariantProtocol:
		kb, err := r.ReadByte()
		if err != nil {
			return nil, ErrShortBuffer
		}
		data, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		pk, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		sig, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		tx.Protocol = &Protocol{Kind: ProtocolKind(kb), Data: data, SignerPK: pk, Signature: sig}
	default:
		return nil, ErrUnknownVariant
	}

	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}
