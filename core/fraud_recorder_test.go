package core

import "testing"

func TestRecordRejectsSmallDelta(t *testing.T) {
	st := newTestStore(t)
	r, err := NewFraudRecorder(st, nil)
	if err != nil {
		t.Fatalf("NewFraudRecorder failed: %v", err)
	}
	_, err = r.Record(Hash256{1}, addr(1), 50, 48, 1000, 100)
	if err == nil {
		t.Fatalf("expected error for a delta below FraudMinDelta")
	}
}

func TestRecordAppliesPenaltySchedule(t *testing.T) {
	st := newTestStore(t)
	r, err := NewFraudRecorder(st, nil)
	if err != nil {
		t.Fatalf("NewFraudRecorder failed: %v", err)
	}

	low, err := r.Record(Hash256{1}, addr(1), 50, 40, 1_000_000, 100)
	if err != nil {
		t.Fatalf("Record (low tier) failed: %v", err)
	}
	if low.ReputationPenalty != FraudPenaltyLow || low.BondSlashed != 0 {
		t.Fatalf("low-tier record = %+v, want penalty %d slash 0", low, FraudPenaltyLow)
	}

	mid, err := r.Record(Hash256{2}, addr(2), 80, 60, 1_000_000, 100)
	if err != nil {
		t.Fatalf("Record (mid tier) failed: %v", err)
	}
	if mid.ReputationPenalty != FraudPenaltyMid || mid.BondSlashed != 1_000_000/20 {
		t.Fatalf("mid-tier record = %+v", mid)
	}

	high, err := r.Record(Hash256{3}, addr(3), 99, 20, 1_000_000, 100)
	if err != nil {
		t.Fatalf("Record (high tier) failed: %v", err)
	}
	if high.ReputationPenalty != FraudPenaltyHigh || high.BondSlashed != 1_000_000/10 {
		t.Fatalf("high-tier record = %+v", high)
	}
}

func TestRecordRejectsClusterSaturation(t *testing.T) {
	st := newTestStore(t)
	c := NewWalletClusterer(st, nil)
	if _, err := c.Propose(addr(1), addr(2), 1.0); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	r, err := NewFraudRecorder(st, c)
	if err != nil {
		t.Fatalf("NewFraudRecorder failed: %v", err)
	}

	height := uint64(100)
	for i := 0; i < FraudClusterMaxInWindow+1; i++ {
		if _, err := r.Record(Hash256{byte(i)}, addr(1), 50, 30, 1000, height); err != nil {
			t.Fatalf("Record #%d failed: %v", i, err)
		}
	}
	if _, err := r.Record(Hash256{99}, addr(2), 50, 30, 1000, height); err == nil {
		t.Fatalf("expected cluster-saturation error once the shared cluster exceeds the window limit")
	}
}

func TestEnvelopeRoundTripForFraudRecord(t *testing.T) {
	f := FraudRecord{TxHash: Hash256{7}, Fraudster: addr(4), Claimed: 90, Actual: 40, ScoreDifference: 50, ReputationPenalty: FraudPenaltyHigh}

	raw, err := EmitEnvelope(f)
	if err != nil {
		t.Fatalf("EmitEnvelope failed: %v", err)
	}
	got, err := ExtractRecord(raw)
	if err != nil {
		t.Fatalf("ExtractRecord failed: %v", err)
	}
	if got.TxHash != f.TxHash || got.Fraudster != f.Fraudster || got.ScoreDifference != f.ScoreDifference {
		t.Fatalf("round-tripped record = %+v, want %+v", got, f)
	}
}

func TestForAddressFiltersByFraudster(t *testing.T) {
	st := newTestStore(t)
	r, err := NewFraudRecorder(st, nil)
	if err != nil {
		t.Fatalf("NewFraudRecorder failed: %v", err)
	}
	if _, err := r.Record(Hash256{1}, addr(1), 50, 30, 1000, 10); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := r.Record(Hash256{2}, addr(2), 50, 30, 1000, 10); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	got := r.ForAddress(addr(1))
	if len(got) != 1 || got[0].Fraudster != addr(1) {
		t.Fatalf("ForAddress(addr1) = %+v, want one record for addr1", got)
	}
}
