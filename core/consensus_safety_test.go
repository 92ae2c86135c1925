package core

import "testing"

func TestCheckFloatAcceptsStableComputation(t *testing.T) {
	v, err := CheckFloat("behavior", func() float64 { return 0.42 })
	if err != nil {
		t.Fatalf("CheckFloat failed on a stable computation: %v", err)
	}
	if v != 0.42 {
		t.Fatalf("CheckFloat returned %v, want 0.42", v)
	}
}

func TestCheckFloatRejectsUnstableComputation(t *testing.T) {
	calls := 0
	results := []float64{0.1, 0.9, 0.1}
	_, err := CheckFloat("behavior", func() float64 {
		v := results[calls]
		calls++
		return v
	})
	if err == nil {
		t.Fatalf("expected CheckFloat to reject a computation that disagrees across calls")
	}
	if _, ok := err.(*DeterminismError); !ok {
		t.Fatalf("error type = %T, want *DeterminismError", err)
	}
}

func TestCheckIntRequiresByteExactAgreement(t *testing.T) {
	calls := 0
	results := []uint64{100, 100, 101}
	_, err := CheckInt("gas", func() uint64 {
		v := results[calls]
		calls++
		return v
	})
	if err == nil {
		t.Fatalf("expected CheckInt to reject a non-byte-exact computation")
	}
}

func TestDeriveComponentHashesDeterministic(t *testing.T) {
	b := TrustBreakdown{Behavior: 0.5, WoT: 0.2, Economic: 0.8, Temporal: 0.1}
	a := DeriveComponentHashes(b, 75, 1000)
	b2 := DeriveComponentHashes(b, 75, 1000)
	if a.Composite != b2.Composite {
		t.Fatalf("DeriveComponentHashes is not deterministic")
	}
	other := DeriveComponentHashes(b, 76, 1000)
	if a.Composite == other.Composite {
		t.Fatalf("expected a different final score to change the composite hash")
	}
}

func TestTrustGraphStateDigestVariesWithInputs(t *testing.T) {
	a := TrustGraphStateDigest(1, 2, 3, 4)
	b := TrustGraphStateDigest(1, 2, 3, 5)
	if a == b {
		t.Fatalf("expected TrustGraphStateDigest to vary with slashedVotes")
	}
}

func TestCheckedGasDiscountIsDeterministic(t *testing.T) {
	v, err := CheckedGasDiscount(1_000_000, 80)
	if err != nil {
		t.Fatalf("CheckedGasDiscount failed: %v", err)
	}
	if v != GasDiscount(1_000_000, 80) {
		t.Fatalf("CheckedGasDiscount = %d, want %d", v, GasDiscount(1_000_000, 80))
	}
}
