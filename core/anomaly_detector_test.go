package core

import (
	"testing"
	"time"
)

func TestObserveScoreFlagsSpike(t *testing.T) {
	st := newTestStore(t)
	d := NewAnomalyDetector(st)
	base := time.Unix(1_700_000_000, 0)
	tick := 0
	d.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	scores := []int{48, 52, 50, 51, 52, 53, 52, 51, 50, 49, 48, 47, 48, 49, 50, 51, 52, 53, 52, 51}
	for _, s := range scores {
		if alert := d.ObserveScore(addr(1), s); alert != nil {
			t.Fatalf("unexpected alert on stable scores: %+v", alert)
		}
	}
	alert := d.ObserveScore(addr(1), 100)
	if alert == nil {
		t.Fatalf("expected a spike alert after a sudden jump")
	}
	if alert.Type != "REPUTATION_SPIKE" {
		t.Fatalf("Type = %q, want REPUTATION_SPIKE", alert.Type)
	}
}

func TestObserveResponseFlagsSlowResponse(t *testing.T) {
	st := newTestStore(t)
	d := NewAnomalyDetector(st)

	var last *AnomalyAlert
	for i := 0; i < 10; i++ {
		last = d.ObserveResponse(addr(2), 10*time.Second, VoteAccept)
	}
	if last == nil {
		t.Fatalf("expected a slow-response alert")
	}
	if last.Type != "SLOW_RESPONSE" {
		t.Fatalf("Type = %q, want SLOW_RESPONSE", last.Type)
	}
}

func TestObserveResponseFlagsBias(t *testing.T) {
	st := newTestStore(t)
	d := NewAnomalyDetector(st)

	var last *AnomalyAlert
	for i := 0; i < BiasMinVotes; i++ {
		last = d.ObserveResponse(addr(3), time.Second, VoteAccept)
	}
	if last == nil {
		t.Fatalf("expected a bias alert after %d identical votes", BiasMinVotes)
	}
	if last.Type != "VALIDATOR_BIAS" {
		t.Fatalf("Type = %q, want VALIDATOR_BIAS", last.Type)
	}
}

func TestCoordinatedVotingFlagsTightSpread(t *testing.T) {
	st := newTestStore(t)
	d := NewAnomalyDetector(st)
	now := time.Unix(1_700_000_000, 0)

	responses := make([]ValidationResponse, 0, 6)
	for i := byte(0); i < 6; i++ {
		responses = append(responses, ValidationResponse{
			Validator: addr(i + 1), Vote: VoteAccept, Timestamp: now.Add(time.Duration(i) * 10 * time.Millisecond),
		})
	}
	alert := d.CoordinatedVoting(Hash256{1}, responses)
	if alert == nil {
		t.Fatalf("expected a coordinated-voting alert")
	}
	if alert.Type != "VOTE_MANIPULATION" {
		t.Fatalf("Type = %q, want VOTE_MANIPULATION", alert.Type)
	}
}

func TestCoordinatedVotingIgnoresWideSpread(t *testing.T) {
	st := newTestStore(t)
	d := NewAnomalyDetector(st)
	now := time.Unix(1_700_000_000, 0)

	responses := make([]ValidationResponse, 0, 6)
	for i := byte(0); i < 6; i++ {
		responses = append(responses, ValidationResponse{
			Validator: addr(i + 1), Vote: VoteAccept, Timestamp: now.Add(time.Duration(i) * time.Minute),
		})
	}
	if alert := d.CoordinatedVoting(Hash256{1}, responses); alert != nil {
		t.Fatalf("unexpected alert for widely spread votes: %+v", alert)
	}
}

func TestSybilClusterFlagsSimilarProfiles(t *testing.T) {
	st := newTestStore(t)
	d := NewAnomalyDetector(st)

	profiles := make([]ValidatorVoteProfile, 0, 4)
	for i := byte(0); i < 4; i++ {
		profiles = append(profiles, ValidatorVoteProfile{
			Address: addr(i + 1), AcceptRate: 0.95, RejectRate: 0.05, VoteCount: SybilMinVotesEach,
		})
	}
	alert := d.SybilCluster(profiles)
	if alert == nil {
		t.Fatalf("expected a sybil-cluster alert for near-identical profiles")
	}
	if alert.Type != "SYBIL_CLUSTER" {
		t.Fatalf("Type = %q, want SYBIL_CLUSTER", alert.Type)
	}
}

func TestIsDiverseSetRejectsSameSubnet(t *testing.T) {
	members := make([]ValidatorSetMember, 0, 5)
	for i := byte(0); i < 5; i++ {
		members = append(members, ValidatorSetMember{
			Address: addr(i + 1), IPSubnet24: "10.0.0", StakeSource: "pool-a", HasWoT: i%2 == 0,
		})
	}
	if IsDiverseSet(members) {
		t.Fatalf("expected IsDiverseSet=false when every member shares one subnet")
	}
}

func TestIsDiverseSetAcceptsDiverseSet(t *testing.T) {
	members := []ValidatorSetMember{
		{Address: addr(1), IPSubnet24: "10.0.0", StakeSource: "pool-a", HasWoT: false},
		{Address: addr(2), IPSubnet24: "10.0.1", StakeSource: "pool-b", HasWoT: false},
		{Address: addr(3), IPSubnet24: "10.0.2", StakeSource: "pool-c", HasWoT: true},
		{Address: addr(4), IPSubnet24: "10.0.3", StakeSource: "pool-d", HasWoT: true},
	}
	if !IsDiverseSet(members) {
		t.Fatalf("expected IsDiverseSet=true for a diverse member set")
	}
}
