package core

import (
	"testing"
	"time"
)

func TestScoreDeterministic(t *testing.T) {
	st := newTestStore(t)
	g, err := NewTrustGraph(st, nil)
	if err != nil {
		t.Fatalf("NewTrustGraph failed: %v", err)
	}
	c := NewWalletClusterer(st, nil)
	scorer := NewHATScorer(g, c)
	scorer.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	bm := BehaviorMetrics{TotalTrades: 100, SuccessTrades: 95, UniquePartners: 20, VolumeTotal: 500000}
	stake := StakeInfo{StakeAmount: 5_000_000, StakeStart: time.Unix(1_600_000_000, 0)}
	tm := TemporalMetrics{FirstSeen: time.Unix(1_500_000_000, 0), LastActivity: time.Unix(1_699_000_000, 0)}

	a := scorer.Score(addr(1), addr(2), bm, stake, tm)
	b := scorer.Score(addr(1), addr(2), bm, stake, tm)
	c2 := scorer.Score(addr(1), addr(2), bm, stake, tm)

	if a.Final != b.Final || b.Final != c2.Final {
		t.Fatalf("Score is not deterministic: %d %d %d", a.Final, b.Final, c2.Final)
	}
	if a.Final < 0 || a.Final > 100 {
		t.Fatalf("Final out of range: %d", a.Final)
	}
}

func TestScoreWithoutWoTUsesNoWoTWeights(t *testing.T) {
	st := newTestStore(t)
	g, err := NewTrustGraph(st, nil)
	if err != nil {
		t.Fatalf("NewTrustGraph failed: %v", err)
	}
	c := NewWalletClusterer(st, nil)
	scorer := NewHATScorer(g, c)

	bm := BehaviorMetrics{}
	stake := StakeInfo{}
	tm := TemporalMetrics{}

	score := scorer.Score(addr(1), addr(2), bm, stake, tm)
	if score.HasWoT {
		t.Fatalf("expected HasWoT=false with an empty trust graph")
	}
	if score.Breakdown.WoT != 0 {
		t.Fatalf("expected zero WoT breakdown without a path")
	}
}

func TestScoreWithWoTPath(t *testing.T) {
	st := newTestStore(t)
	g, err := NewTrustGraph(st, nil)
	if err != nil {
		t.Fatalf("NewTrustGraph failed: %v", err)
	}
	if err := g.PutEdge(TrustEdge{From: addr(2), To: addr(1), Weight: 80, BondAmount: MinBond}); err != nil {
		t.Fatalf("PutEdge failed: %v", err)
	}
	c := NewWalletClusterer(st, nil)
	scorer := NewHATScorer(g, c)

	score := scorer.Score(addr(1), addr(2), BehaviorMetrics{}, StakeInfo{}, TemporalMetrics{})
	if !score.HasWoT {
		t.Fatalf("expected HasWoT=true with a direct edge viewer->target")
	}
	if score.WoTPathCount == 0 {
		t.Fatalf("expected at least one WoT path")
	}
}

func TestWoTComponentNegativeTrustStaysInRange(t *testing.T) {
	st := newTestStore(t)
	g, err := NewTrustGraph(st, nil)
	if err != nil {
		t.Fatalf("NewTrustGraph failed: %v", err)
	}
	if err := g.PutEdge(TrustEdge{From: addr(2), To: addr(1), Weight: -80, BondAmount: MinBond}); err != nil {
		t.Fatalf("PutEdge failed: %v", err)
	}
	c := NewWalletClusterer(st, nil)
	scorer := NewHATScorer(g, c)

	score := scorer.Score(addr(1), addr(2), BehaviorMetrics{}, StakeInfo{}, TemporalMetrics{})
	if !score.HasWoT {
		t.Fatalf("expected HasWoT=true with a direct negative-weight edge viewer->target")
	}
	if score.Breakdown.WoT < 0 || score.Breakdown.WoT > 1 {
		t.Fatalf("WoT breakdown out of [0,1] for a net-negative-trust path: %v", score.Breakdown.WoT)
	}
}

func TestClampScore(t *testing.T) {
	if clampScore(-5) != 0 {
		t.Fatalf("clampScore(-5) should clamp to 0")
	}
	if clampScore(150) != 100 {
		t.Fatalf("clampScore(150) should clamp to 100")
	}
}
