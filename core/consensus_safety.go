package core

// Consensus-Safety Validator (§2 component G, §4.5): wraps every
// consensus-influencing computation in a triple re-evaluation, checks
// integer-exact / float-tolerance agreement, and derives the per-component
// and composite execution hashes together with the trust-graph state hash
// exchanged with peers. Grounded on consensus_safety.cpp's re-evaluation
// loop, generalized from its fixed HAT-only call sites into a reusable
// generic checker any component can wrap a computation with.

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// DeterminismEpsilon is the floating-point agreement tolerance (§4.5 step 1).
const DeterminismEpsilon = 1e-4

// CheckFloat recomputes fn twice more and requires all three results agree
// within DeterminismEpsilon (§4.5 step 1). Returns the agreed value or a
// *DeterminismError.
func CheckFloat(component string, fn func() float64) (float64, error) {
	a := fn()
	b := fn()
	c := fn()
	if math.Abs(a-b) > DeterminismEpsilon {
		return 0, &DeterminismError{Component: component, Delta: math.Abs(a - b), Tolerance: DeterminismEpsilon}
	}
	if math.Abs(a-c) > DeterminismEpsilon {
		return 0, &DeterminismError{Component: component, Delta: math.Abs(a - c), Tolerance: DeterminismEpsilon}
	}
	return a, nil
}

// CheckInt recomputes fn twice more and requires byte-exact agreement
// (§4.5 step 1: "Integer results must be byte-equal").
func CheckInt(component string, fn func() uint64) (uint64, error) {
	a := fn()
	b := fn()
	c := fn()
	if a != b || a != c {
		return 0, &DeterminismError{Component: component, Delta: float64(a) - float64(b), Tolerance: 0}
	}
	return a, nil
}

// ComponentHashes is the per-component hash set plus the composite execution
// hash (§4.5 step 2).
type ComponentHashes struct {
	Behavior  Hash256
	WoT       Hash256
	Economic  Hash256
	Temporal  Hash256
	Composite Hash256
}

func hashFloat(v float64) Hash256 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	return sha256.Sum256(buf[:])
}

// DeriveComponentHashes computes H(b), H(w), H(e), H(t) and the composite
// H(b || w || e || t || final || height) per §4.5 step 2.
func DeriveComponentHashes(b TrustBreakdown, final int, height uint64) ComponentHashes {
	hb := hashFloat(b.Behavior)
	hw := hashFloat(b.WoT)
	he := hashFloat(b.Economic)
	ht := hashFloat(b.Temporal)

	buf := make([]byte, 0, 32*4+8+8)
	buf = append(buf, hb[:]...)
	buf = append(buf, hw[:]...)
	buf = append(buf, he[:]...)
	buf = append(buf, ht[:]...)
	var finalBuf [8]byte
	binary.BigEndian.PutUint64(finalBuf[:], uint64(int64(final)))
	buf = append(buf, finalBuf[:]...)
	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], height)
	buf = append(buf, heightBuf[:]...)

	return ComponentHashes{Behavior: hb, WoT: hw, Economic: he, Temporal: ht, Composite: sha256.Sum256(buf)}
}

// TrustGraphStateDigest summarizes H(total_edges || total_votes ||
// total_disputes || slashed_votes) for peer exchange (§4.5 step 3).
func TrustGraphStateDigest(totalEdges, totalVotes, totalDisputes, slashedVotes uint64) Hash256 {
	buf := make([]byte, 32)
	binary.BigEndian.PutUint64(buf[0:8], totalEdges)
	binary.BigEndian.PutUint64(buf[8:16], totalVotes)
	binary.BigEndian.PutUint64(buf[16:24], totalDisputes)
	binary.BigEndian.PutUint64(buf[24:32], slashedVotes)
	return sha256.Sum256(buf)
}

// RequestDelta is raised by the caller when two peers' TrustGraphStateDigest
// values disagree (§4.5 step 3: "mismatches trigger a delta request").
type RequestDelta struct {
	Local  Hash256
	Remote Hash256
}

func (e *RequestDelta) Error() string {
	return fmt.Sprintf("cvm: trust-graph state digest mismatch: local=%s remote=%s", e.Local, e.Remote)
}

// CheckedGasDiscount wraps GasDiscount in the integer determinism check
// (§4.5 step 4).
func CheckedGasDiscount(base uint64, rep int) (uint64, error) {
	return CheckInt("gas_discount", func() uint64 { return GasDiscount(base, rep) })
}

// CheckedFreeGasAllowance wraps FreeGasAllowance in the integer determinism
// check (§4.5 step 4).
func CheckedFreeGasAllowance(base uint64, rep int) (uint64, error) {
	return CheckInt("free_gas_allowance", func() uint64 { return FreeGasAllowance(base, rep) })
}
