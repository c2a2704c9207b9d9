package addr

import "testing"

func TestInternalAddressesAreDistinctAndStable(t *testing.T) {
	if PoS.Equal(EthBridge) || PoS.Equal(MASP) || EthBridge.Equal(MASP) {
		t.Fatal("expected distinct internal addresses")
	}
	if PoS.Kind != Internal {
		t.Fatalf("expected PoS to be Internal, got %s", PoS.Kind)
	}
	// Recomputing must be deterministic.
	if !PoS.Equal(internalAddress("PoS")) {
		t.Fatal("expected internal address derivation to be deterministic")
	}
}

func TestEstablishedRequiresStoredVP(t *testing.T) {
	e := NewEstablished([]byte("seed"))
	if !e.RequiresStoredVP() {
		t.Fatal("expected Established address to require a stored VP")
	}
	i := NewImplicit([]byte{1, 2, 3})
	if i.RequiresStoredVP() {
		t.Fatal("expected Implicit address to not require a stored VP")
	}
	if PoS.RequiresStoredVP() {
		t.Fatal("expected Internal address to not require a stored VP")
	}
}

func TestDifferentSeedsProduceDifferentAddresses(t *testing.T) {
	a := NewEstablished([]byte("alice"))
	b := NewEstablished([]byte("bob"))
	if a.Equal(b) {
		t.Fatal("expected different seeds to produce different addresses")
	}
}

func TestParseHexRoundTrips(t *testing.T) {
	for _, a := range []Address{PoS, EthBridge, MASP, NewEstablished([]byte("x")), NewImplicit([]byte("y"))} {
		got, ok := ParseHex(a.Hex())
		if !ok {
			t.Fatalf("ParseHex(%q) failed", a.Hex())
		}
		if !got.Equal(a) {
			t.Fatalf("round trip mismatch: got %s, want %s", got, a)
		}
	}
}

func TestParseHexRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "nope", "established:0xzz", "established:" + "00"} {
		if _, ok := ParseHex(s); ok {
			t.Fatalf("expected ParseHex(%q) to fail", s)
		}
	}
}
