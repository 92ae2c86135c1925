package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
)

func TestSelectValidatorsDeterministic(t *testing.T) {
	pool := make([]ValidatorInfo, 0, 20)
	for i := byte(0); i < 20; i++ {
		pool = append(pool, ValidatorInfo{Address: addr(i + 1), Stake: EligibleStakeMinimum, Reputation: 80})
	}
	seed := SeedSelection(Hash256{1}, Hash256{2}, 100)

	a := SelectValidators(pool, seed, MinValidators)
	b := SelectValidators(pool, seed, MinValidators)
	if len(a) != MinValidators || len(b) != MinValidators {
		t.Fatalf("expected %d validators selected", MinValidators)
	}
	for i := range a {
		if a[i].Address != b[i].Address {
			t.Fatalf("SelectValidators is not deterministic at index %d", i)
		}
	}
}

func TestSeedSelectionVariesWithInputs(t *testing.T) {
	s1 := SeedSelection(Hash256{1}, Hash256{2}, 100)
	s2 := SeedSelection(Hash256{1}, Hash256{2}, 101)
	if s1 == s2 {
		t.Fatalf("SeedSelection should vary with height")
	}
}

func TestSignAndVerifyResponse(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey failed: %v", err)
	}
	validatorAddr := AddressFromPubKey(priv.PubKey().SerializeCompressed())

	resp := ValidationResponse{
		TxHash:         Hash256{9},
		Validator:      validatorAddr,
		CalculatedScore: 72,
		Vote:           VoteAccept,
		Confidence:     0.9,
		ChallengeNonce: Hash256{3},
		Timestamp:      time.Unix(1_700_000_000, 0),
	}
	SignResponse(&resp, priv)

	if err := VerifyResponse(resp); err != nil {
		t.Fatalf("VerifyResponse failed: %v", err)
	}

	tampered := resp
	tampered.CalculatedScore = 1
	if err := VerifyResponse(tampered); err == nil {
		t.Fatalf("expected VerifyResponse to reject a tampered response")
	}
}

func TestDecideAcceptsAboveThreshold(t *testing.T) {
	st := newTestStore(t)
	e, err := NewConsensusEngine(st, nil)
	if err != nil {
		t.Fatalf("NewConsensusEngine failed: %v", err)
	}
	tx := Hash256{5}
	e.OpenSession(ValidationRequest{TxHash: tx, ChallengeNonce: Hash256{7}}, time.Now().Add(time.Hour))

	for i := byte(0); i < 10; i++ {
		priv, _ := btcec.NewPrivateKey()
		va := AddressFromPubKey(priv.PubKey().SerializeCompressed())
		resp := ValidationResponse{
			TxHash: tx, Validator: va, Vote: VoteAccept, Confidence: 1.0,
			HasWoT: i < 4, ChallengeNonce: Hash256{7}, Timestamp: time.Now(),
		}
		SignResponse(&resp, priv)
		if err := e.Submit(resp, time.Now()); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	result, err := e.Decide(tx)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !result.ConsensusReached || !result.Approved {
		t.Fatalf("expected consensus reached and approved, got %+v", result)
	}
}

func TestDecideRequiresWoTCoverage(t *testing.T) {
	st := newTestStore(t)
	e, err := NewConsensusEngine(st, nil)
	if err != nil {
		t.Fatalf("NewConsensusEngine failed: %v", err)
	}
	tx := Hash256{6}
	e.OpenSession(ValidationRequest{TxHash: tx, ChallengeNonce: Hash256{7}}, time.Now().Add(time.Hour))

	for i := byte(0); i < 10; i++ {
		priv, _ := btcec.NewPrivateKey()
		va := AddressFromPubKey(priv.PubKey().SerializeCompressed())
		resp := ValidationResponse{
			TxHash: tx, Validator: va, Vote: VoteAccept, Confidence: 1.0,
			HasWoT: false, ChallengeNonce: Hash256{7}, Timestamp: time.Now(),
		}
		SignResponse(&resp, priv)
		if err := e.Submit(resp, time.Now()); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	result, err := e.Decide(tx)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if result.ConsensusReached {
		t.Fatalf("expected no consensus without sufficient WoT coverage, got %+v", result)
	}
}

func TestDeriveChallengeNonceVariesWithInputs(t *testing.T) {
	opened := time.Unix(1_700_000_000, 0)
	n1 := DeriveChallengeNonce(Hash256{1}, addr(1), opened)
	n2 := DeriveChallengeNonce(Hash256{1}, addr(2), opened)
	n3 := DeriveChallengeNonce(Hash256{1}, addr(1), opened.Add(time.Second))
	if n1 == n2 {
		t.Fatalf("DeriveChallengeNonce should vary with sender")
	}
	if n1 == n3 {
		t.Fatalf("DeriveChallengeNonce should vary with open time")
	}
	if n1 != DeriveChallengeNonce(Hash256{1}, addr(1), opened) {
		t.Fatalf("DeriveChallengeNonce should be deterministic for identical inputs")
	}
}

func TestDecideOpensDisputeOnNoConsensus(t *testing.T) {
	st := newTestStore(t)
	e, err := NewConsensusEngine(st, nil)
	if err != nil {
		t.Fatalf("NewConsensusEngine failed: %v", err)
	}
	tx := Hash256{11}
	e.OpenSession(ValidationRequest{TxHash: tx, ChallengeNonce: Hash256{7}}, time.Now().Add(time.Hour))

	for i := byte(0); i < 5; i++ {
		priv, _ := btcec.NewPrivateKey()
		va := AddressFromPubKey(priv.PubKey().SerializeCompressed())
		vote := VoteAccept
		if i%2 == 0 {
			vote = VoteReject
		}
		resp := ValidationResponse{
			TxHash: tx, Validator: va, Vote: vote, Confidence: 1.0,
			HasWoT: false, ChallengeNonce: Hash256{7}, Timestamp: time.Now(),
		}
		SignResponse(&resp, priv)
		if err := e.Submit(resp, time.Now()); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	result, err := e.Decide(tx)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if result.ConsensusReached {
		t.Fatalf("expected no consensus, got %+v", result)
	}
	if e.TxState(tx) != TxDisputed {
		t.Fatalf("expected TxDisputed after a failed round, got %s", e.TxState(tx))
	}
	dc, err := e.Dispute(tx)
	if err != nil {
		t.Fatalf("Dispute lookup failed: %v", err)
	}
	if dc.Resolved {
		t.Fatalf("expected a freshly opened dispute to be unresolved")
	}
	if len(dc.Responses) != 5 {
		t.Fatalf("expected the dispute evidence to carry all 5 responses, got %d", len(dc.Responses))
	}
}

func TestResolveDisputeTransitionsTxState(t *testing.T) {
	st := newTestStore(t)
	e, err := NewConsensusEngine(st, nil)
	if err != nil {
		t.Fatalf("NewConsensusEngine failed: %v", err)
	}
	tx := Hash256{12}
	e.OpenSession(ValidationRequest{TxHash: tx, ChallengeNonce: Hash256{7}}, time.Now().Add(time.Hour))
	for i := byte(0); i < 5; i++ {
		priv, _ := btcec.NewPrivateKey()
		va := AddressFromPubKey(priv.PubKey().SerializeCompressed())
		vote := VoteAccept
		if i%2 == 0 {
			vote = VoteReject
		}
		resp := ValidationResponse{
			TxHash: tx, Validator: va, Vote: vote, Confidence: 1.0,
			HasWoT: false, ChallengeNonce: Hash256{7}, Timestamp: time.Now(),
		}
		SignResponse(&resp, priv)
		if err := e.Submit(resp, time.Now()); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	if _, err := e.Decide(tx); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if e.TxState(tx) != TxDisputed {
		t.Fatalf("expected TxDisputed before resolution, got %s", e.TxState(tx))
	}

	dc, err := e.ResolveDispute(tx, true, time.Now())
	if err != nil {
		t.Fatalf("ResolveDispute failed: %v", err)
	}
	if !dc.Resolved || !dc.Approved {
		t.Fatalf("expected a resolved, approved dispute, got %+v", dc)
	}
	if e.TxState(tx) != TxValidated {
		t.Fatalf("expected TxValidated after DAO approval, got %s", e.TxState(tx))
	}
	if _, err := e.ResolveDispute(tx, false, time.Now()); err == nil {
		t.Fatalf("expected ResolveDispute to reject an already-resolved dispute")
	}
}

func TestSelectValidatorsEscalatesOnSybilFailure(t *testing.T) {
	st := newTestStore(t)
	e, err := NewConsensusEngine(st, nil)
	if err != nil {
		t.Fatalf("NewConsensusEngine failed: %v", err)
	}

	pool := make([]ValidatorInfo, 0, MaxValidatorExtension)
	members := make(map[Address]ValidatorSetMember, MaxValidatorExtension)
	for i := byte(0); i < MaxValidatorExtension; i++ {
		a := addr(i + 1)
		pool = append(pool, ValidatorInfo{Address: a, Stake: EligibleStakeMinimum, Reputation: 80})
		// Every member shares one subnet and stake source: never diverse,
		// at MinValidators or after extension to MaxValidatorExtension.
		members[a] = ValidatorSetMember{Address: a, IPSubnet24: "10.0.0.0/24", StakeSource: "exchange-x", HasWoT: false}
	}
	tx := Hash256{13}
	seed := SeedSelection(tx, Hash256{2}, 100)

	_, err = e.SelectValidators(tx, pool, members, seed)
	if err == nil {
		t.Fatalf("expected SelectValidators to escalate and return an error for a non-diverse pool")
	}
	if e.TxState(tx) != TxDisputed {
		t.Fatalf("expected TxDisputed after Sybil escalation, got %s", e.TxState(tx))
	}
	if _, err := e.Dispute(tx); err != nil {
		t.Fatalf("expected an escalated DisputeCase to be persisted: %v", err)
	}
}

func TestSelectValidatorsAcceptsDiversePool(t *testing.T) {
	st := newTestStore(t)
	e, err := NewConsensusEngine(st, nil)
	if err != nil {
		t.Fatalf("NewConsensusEngine failed: %v", err)
	}

	pool := make([]ValidatorInfo, 0, MinValidators)
	members := make(map[Address]ValidatorSetMember, MinValidators)
	for i := byte(0); i < MinValidators; i++ {
		a := addr(i + 1)
		pool = append(pool, ValidatorInfo{Address: a, Stake: EligibleStakeMinimum, Reputation: 80})
		members[a] = ValidatorSetMember{
			Address:     a,
			IPSubnet24:  fmt.Sprintf("10.0.%d.0/24", i),
			StakeSource: fmt.Sprintf("source-%d", i),
			HasWoT:      i%2 == 0,
		}
	}
	tx := Hash256{14}
	seed := SeedSelection(tx, Hash256{2}, 100)

	selected, err := e.SelectValidators(tx, pool, members, seed)
	if err != nil {
		t.Fatalf("expected a diverse pool to be accepted, got error: %v", err)
	}
	if len(selected) != MinValidators {
		t.Fatalf("expected %d validators selected, got %d", MinValidators, len(selected))
	}
	if e.TxState(tx) != TxPendingValidation {
		t.Fatalf("expected no escalation for a diverse pool, got state %s", e.TxState(tx))
	}
}

func TestSubmitRejectsDuplicateResponse(t *testing.T) {
	st := newTestStore(t)
	e, err := NewConsensusEngine(st, nil)
	if err != nil {
		t.Fatalf("NewConsensusEngine failed: %v", err)
	}
	tx := Hash256{8}
	e.OpenSession(ValidationRequest{TxHash: tx, ChallengeNonce: Hash256{1}}, time.Now().Add(time.Hour))

	priv, _ := btcec.NewPrivateKey()
	va := AddressFromPubKey(priv.PubKey().SerializeCompressed())
	resp := ValidationResponse{TxHash: tx, Validator: va, Vote: VoteAccept, Confidence: 1, ChallengeNonce: Hash256{1}, Timestamp: time.Now()}
	SignResponse(&resp, priv)

	if err := e.Submit(resp, time.Now()); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	if err := e.Submit(resp, time.Now()); err == nil {
		t.Fatalf("expected duplicate-response error on second Submit")
	}
}
