package core

import (
	"testing"
)

func newTestPropagator(t *testing.T) (*Store, *TrustGraph, *WalletClusterer, *TrustPropagator) {
	t.Helper()
	st := newTestStore(t)
	g, err := NewTrustGraph(st, nil)
	if err != nil {
		t.Fatalf("NewTrustGraph failed: %v", err)
	}
	c := NewWalletClusterer(st, nil)
	p, err := NewTrustPropagator(st, g, c, nil)
	if err != nil {
		t.Fatalf("NewTrustPropagator failed: %v", err)
	}
	return st, g, c, p
}

func TestPropagateFansOutAcrossCluster(t *testing.T) {
	_, _, c, p := newTestPropagator(t)
	if _, err := c.Propose(addr(2), addr(3), 1.0); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}

	edge := TrustEdge{From: addr(1), To: addr(2), Weight: 40, BondAmount: MinBond, BondTx: Hash256{9}}
	n, err := p.Propagate(edge)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Propagate wrote %d edges, want 2 (addr2 and addr3)", n)
	}
}

func TestPropagateSkipsSelfLoop(t *testing.T) {
	_, _, c, p := newTestPropagator(t)
	if _, err := c.Propose(addr(1), addr(2), 1.0); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	edge := TrustEdge{From: addr(1), To: addr(2), Weight: 40, BondAmount: MinBond, BondTx: Hash256{9}}
	n, err := p.Propagate(edge)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Propagate wrote %d edges, want 1 (self-loop onto addr1 skipped)", n)
	}
}

func TestUpdateSourceRewritesPropagatedWeight(t *testing.T) {
	_, _, c, p := newTestPropagator(t)
	if _, err := c.Propose(addr(2), addr(3), 1.0); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	edge := TrustEdge{From: addr(1), To: addr(2), Weight: 40, BondAmount: MinBond, BondTx: Hash256{9}}
	if _, err := p.Propagate(edge); err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}

	n, err := p.UpdateSource(Hash256{9}, 10)
	if err != nil {
		t.Fatalf("UpdateSource failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("UpdateSource touched %d edges, want 2", n)
	}
}

func TestDeleteSourceRemovesPropagatedEdges(t *testing.T) {
	_, _, c, p := newTestPropagator(t)
	if _, err := c.Propose(addr(2), addr(3), 1.0); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	edge := TrustEdge{From: addr(1), To: addr(2), Weight: 40, BondAmount: MinBond, BondTx: Hash256{9}}
	if _, err := p.Propagate(edge); err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}

	n, err := p.DeleteSource(Hash256{9})
	if err != nil {
		t.Fatalf("DeleteSource failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("DeleteSource removed %d edges, want 2", n)
	}
	n2, err := p.DeleteSource(Hash256{9})
	if err != nil {
		t.Fatalf("second DeleteSource failed: %v", err)
	}
	if n2 != 0 {
		t.Fatalf("expected the second DeleteSource to find nothing left, got %d", n2)
	}
}

func TestClusterTrustSummaryCountsMembers(t *testing.T) {
	_, g, c, p := newTestPropagator(t)
	if _, err := c.Propose(addr(1), addr(2), 1.0); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if err := g.PutEdge(TrustEdge{From: addr(9), To: addr(1), Weight: 30, BondAmount: MinBond}); err != nil {
		t.Fatalf("PutEdge failed: %v", err)
	}

	summary := p.ClusterTrustSummary(addr(1))
	if summary.MemberCount != 2 {
		t.Fatalf("MemberCount = %d, want 2", summary.MemberCount)
	}
	if summary.TotalIncoming != 1 {
		t.Fatalf("TotalIncoming = %d, want 1", summary.TotalIncoming)
	}
}

func TestIsNewerEdgePrefersLaterTimestamp(t *testing.T) {
	older := PropagatedTrustEdge{SourceEdgeTx: Hash256{1}}
	newer := PropagatedTrustEdge{SourceEdgeTx: Hash256{2}}
	newer.OriginalTimestamp = older.OriginalTimestamp.Add(1)
	if !isNewerEdge(newer, older) {
		t.Fatalf("expected the later-timestamped edge to win")
	}
	if isNewerEdge(older, newer) {
		t.Fatalf("expected the earlier-timestamped edge to lose")
	}
}
