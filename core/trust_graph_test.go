package core

import "testing"

func addr(b byte) Address {
	var a Address
	a[19] = b
	return a
}

func TestPutEdgeEnforcesBondInvariant(t *testing.T) {
	st := newTestStore(t)
	g, err := NewTrustGraph(st, nil)
	if err != nil {
		t.Fatalf("NewTrustGraph failed: %v", err)
	}
	e := TrustEdge{From: addr(1), To: addr(2), Weight: 10, BondAmount: MinBond - 1}
	if err := g.PutEdge(e); err == nil {
		t.Fatalf("expected error for insufficient bond")
	}
}

func TestPutEdgeAndRetrieve(t *testing.T) {
	st := newTestStore(t)
	g, err := NewTrustGraph(st, nil)
	if err != nil {
		t.Fatalf("NewTrustGraph failed: %v", err)
	}
	e := TrustEdge{From: addr(1), To: addr(2), Weight: 50, BondAmount: MinBond}
	if err := g.PutEdge(e); err != nil {
		t.Fatalf("PutEdge failed: %v", err)
	}
	got, ok := g.Edge(addr(1), addr(2))
	if !ok {
		t.Fatalf("expected edge to be present")
	}
	if got.Weight != 50 {
		t.Fatalf("Weight = %d, want 50", got.Weight)
	}
}

func TestSlashedEdgeIsMonotonic(t *testing.T) {
	st := newTestStore(t)
	g, err := NewTrustGraph(st, nil)
	if err != nil {
		t.Fatalf("NewTrustGraph failed: %v", err)
	}
	e := TrustEdge{From: addr(1), To: addr(2), Weight: 50, BondAmount: MinBond}
	if err := g.PutEdge(e); err != nil {
		t.Fatalf("PutEdge failed: %v", err)
	}
	if err := g.SlashEdge(addr(1), addr(2)); err != nil {
		t.Fatalf("SlashEdge failed: %v", err)
	}
	e.Slashed = false
	if err := g.PutEdge(e); err == nil {
		t.Fatalf("expected error un-slashing a slashed edge")
	}
}

func TestOutgoingIncomingSortedByCounterparty(t *testing.T) {
	st := newTestStore(t)
	g, err := NewTrustGraph(st, nil)
	if err != nil {
		t.Fatalf("NewTrustGraph failed: %v", err)
	}
	_ = g.PutEdge(TrustEdge{From: addr(1), To: addr(3), Weight: 1, BondAmount: MinBond})
	_ = g.PutEdge(TrustEdge{From: addr(1), To: addr(2), Weight: 1, BondAmount: MinBond})

	out := g.Outgoing(addr(1))
	if len(out) != 2 {
		t.Fatalf("Outgoing length = %d, want 2", len(out))
	}
	if out[0].To.String() > out[1].To.String() {
		t.Fatalf("Outgoing is not sorted by counterparty")
	}
}

func TestWeightedReputationIgnoresSlashed(t *testing.T) {
	st := newTestStore(t)
	g, err := NewTrustGraph(st, nil)
	if err != nil {
		t.Fatalf("NewTrustGraph failed: %v", err)
	}
	_ = g.PutEdge(TrustEdge{From: addr(1), To: addr(9), Weight: 20, BondAmount: MinBond})
	_ = g.PutEdge(TrustEdge{From: addr(2), To: addr(9), Weight: 30, BondAmount: MinBond})
	_ = g.SlashEdge(addr(2), addr(9))

	rep := g.WeightedReputation(addr(9))
	if rep != 20 {
		t.Fatalf("WeightedReputation = %d, want 20 (slashed edge excluded)", rep)
	}
}
