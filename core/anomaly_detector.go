package core

// Anomaly Detector (§2 component F, §4.4): reputation-score anomalies,
// validator-behavior anomalies, coordinated voting, and Sybil-cluster
// detection over validator response patterns. Read-only against the trust
// graph; grounded on the teacher's anomaly_detection.go z-score/window
// pattern, generalized from its single-metric window to the several
// fixed-size rolling windows §4.4 specifies.

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Window sizes and thresholds (§4.4).
const (
	ReputationWindow = 100
	ValidatorWindow  = 100

	ZSpikeThreshold        = 2.5
	ZDropThreshold         = -2.5
	OscillationRateThresh  = 0.70
	OscillationMinSamples  = 10

	SlowResponseSeconds  = 5.0
	SlowResponseFraction = 0.50
	ErraticCVThreshold   = 1.5
	BiasRateThreshold    = 0.95
	BiasMinVotes         = 20

	CoordinatedMinResponses = 5
	CoordinatedVoteFraction = 0.80
	CoordinatedSpreadMax    = time.Second

	SybilMinAddresses  = 3
	SybilMinVotesEach  = 10
	SybilSimilarityTol = 0.1
	SybilPairFraction  = 0.80

	EclipseMaxSameSubnetFrac = 0.25
	EclipseMaxOverlapFrac    = 0.50
	EclipseMinStakeSources   = 3
	EclipseMinNonWoTFraction = 0.40

	HighConfidencePersist = 0.80
)

var alertIDCounter uint64

func nextAlertID() uint64 { return atomic.AddUint64(&alertIDCounter, 1) }

// scoreSample is one observation in a per-address reputation window.
type scoreSample struct {
	score int
	at    time.Time
}

// responseSample is one observation in a per-validator response window.
type responseSample struct {
	latency time.Duration
	vote    Vote
	at      time.Time
}

// AnomalyDetector tracks rolling windows and emits AnomalyAlerts. Read-only
// against TrustGraph/ConsensusEngine; its own state is exclusively locked
// per §5.
type AnomalyDetector struct {
	mu         sync.Mutex
	st         *Store
	scoreHist  map[Address][]scoreSample
	respHist   map[Address][]responseSample
	now        func() time.Time
}

// NewAnomalyDetector constructs a detector backed by st for persisting
// high-confidence alerts.
func NewAnomalyDetector(st *Store) *AnomalyDetector {
	return &AnomalyDetector{
		st:        st,
		scoreHist: make(map[Address][]scoreSample),
		respHist:  make(map[Address][]responseSample),
		now:       time.Now,
	}
}

// ObserveScore appends a HAT v2 score sample and returns a SPIKE/DROP/
// OSCILLATION alert if the rolling statistics trip (§4.4 "Reputation
// anomalies").
func (d *AnomalyDetector) ObserveScore(addr Address, score int) *AnomalyAlert {
	d.mu.Lock()
	defer d.mu.Unlock()

	hist := append(d.scoreHist[addr], scoreSample{score: score, at: d.now().UTC()})
	if len(hist) > ReputationWindow {
		hist = hist[len(hist)-ReputationWindow:]
	}
	d.scoreHist[addr] = hist

	if len(hist) < 3 {
		return nil
	}
	mean, stddev := scoreMeanStddev(hist[:len(hist)-1])
	if stddev == 0 {
		return nil
	}
	z := (float64(score) - mean) / stddev

	var kind string
	switch {
	case z > ZSpikeThreshold:
		kind = "REPUTATION_SPIKE"
	case z < ZDropThreshold:
		kind = "REPUTATION_DROP"
	}
	if kind == "" && len(hist) >= OscillationMinSamples {
		if rate := directionChangeRate(hist); rate > OscillationRateThresh {
			kind = "REPUTATION_OSCILLATION"
		}
	}
	if kind == "" {
		return nil
	}
	alert := d.newAlert(kind, addr, nil, math.Min(1, math.Abs(z)/5), map[string]string{"z_score": fmtFloat(z)})
	d.persistIfHighConfidence(alert)
	return &alert
}

func scoreMeanStddev(hist []scoreSample) (mean, stddev float64) {
	if len(hist) == 0 {
		return 0, 0
	}
	for _, h := range hist {
		mean += float64(h.score)
	}
	mean /= float64(len(hist))
	var variance float64
	for _, h := range hist {
		d := float64(h.score) - mean
		variance += d * d
	}
	variance /= float64(len(hist))
	return mean, math.Sqrt(variance)
}

func directionChangeRate(hist []scoreSample) float64 {
	if len(hist) < 3 {
		return 0
	}
	changes, total := 0, 0
	prevDir := 0
	for i := 1; i < len(hist); i++ {
		d := hist[i].score - hist[i-1].score
		dir := 0
		if d > 0 {
			dir = 1
		} else if d < 0 {
			dir = -1
		}
		if dir == 0 {
			continue
		}
		if prevDir != 0 {
			total++
			if dir != prevDir {
				changes++
			}
		}
		prevDir = dir
	}
	if total == 0 {
		return 0
	}
	return float64(changes) / float64(total)
}

// ObserveResponse appends a validator-response sample and checks for
// SLOW_RESPONSE/ERRATIC_TIMING/BIAS over ValidatorWindow (§4.4 "Validator
// behavior").
func (d *AnomalyDetector) ObserveResponse(validator Address, latency time.Duration, vote Vote) *AnomalyAlert {
	d.mu.Lock()
	defer d.mu.Unlock()

	hist := append(d.respHist[validator], responseSample{latency: latency, vote: vote, at: d.now().UTC()})
	if len(hist) > ValidatorWindow {
		hist = hist[len(hist)-ValidatorWindow:]
	}
	d.respHist[validator] = hist

	if slow := slowFraction(hist); slow > SlowResponseFraction {
		alert := d.newAlert("SLOW_RESPONSE", validator, nil, slow, map[string]string{"slow_fraction": fmtFloat(slow)})
		d.persistIfHighConfidence(alert)
		return &alert
	}
	if cv := latencyCV(hist); cv > ErraticCVThreshold {
		alert := d.newAlert("ERRATIC_TIMING", validator, nil, math.Min(1, cv/3), map[string]string{"cv": fmtFloat(cv)})
		d.persistIfHighConfidence(alert)
		return &alert
	}
	if len(hist) >= BiasMinVotes {
		accept, reject := voteRates(hist)
		if accept > BiasRateThreshold || reject > BiasRateThreshold {
			alert := d.newAlert("VALIDATOR_BIAS", validator, nil, math.Max(accept, reject), map[string]string{
				"accept_rate": fmtFloat(accept), "reject_rate": fmtFloat(reject),
			})
			d.persistIfHighConfidence(alert)
			return &alert
		}
	}
	return nil
}

func slowFraction(hist []responseSample) float64 {
	if len(hist) == 0 {
		return 0
	}
	slow := 0
	for _, h := range hist {
		if h.latency.Seconds() > SlowResponseSeconds {
			slow++
		}
	}
	return float64(slow) / float64(len(hist))
}

func latencyCV(hist []responseSample) float64 {
	if len(hist) < 2 {
		return 0
	}
	mean := 0.0
	for _, h := range hist {
		mean += h.latency.Seconds()
	}
	mean /= float64(len(hist))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, h := range hist {
		d := h.latency.Seconds() - mean
		variance += d * d
	}
	variance /= float64(len(hist))
	return math.Sqrt(variance) / mean
}

func voteRates(hist []responseSample) (accept, reject float64) {
	var a, r int
	for _, h := range hist {
		switch h.vote {
		case VoteAccept:
			a++
		case VoteReject:
			r++
		}
	}
	n := float64(len(hist))
	if n == 0 {
		return 0, 0
	}
	return float64(a) / n, float64(r) / n
}

// CoordinatedVoting inspects one transaction's full response set for
// VOTE_MANIPULATION (§4.4 "Coordinated voting").
func (d *AnomalyDetector) CoordinatedVoting(txHash Hash256, responses []ValidationResponse) *AnomalyAlert {
	if len(responses) < CoordinatedMinResponses {
		return nil
	}
	counts := map[Vote]int{}
	var minTS, maxTS time.Time
	related := make([]Address, 0, len(responses))
	for i, r := range responses {
		counts[r.Vote]++
		related = append(related, r.Validator)
		if i == 0 || r.Timestamp.Before(minTS) {
			minTS = r.Timestamp
		}
		if i == 0 || r.Timestamp.After(maxTS) {
			maxTS = r.Timestamp
		}
	}
	majorityVote, majorityCount := VoteAbstain, 0
	for v, c := range counts {
		if c > majorityCount {
			majorityVote, majorityCount = v, c
		}
	}
	frac := float64(majorityCount) / float64(len(responses))
	if frac <= CoordinatedVoteFraction || maxTS.Sub(minTS) >= CoordinatedSpreadMax {
		return nil
	}
	alert := d.newAlert("VOTE_MANIPULATION", Address{}, related, frac, map[string]string{
		"tx_hash": txHash.String(), "majority_vote": majorityVote.String(), "fraction": fmtFloat(frac),
	})
	d.persistIfHighConfidence(alert)
	return &alert
}

// ValidatorVoteProfile is the per-validator aggregate used by SybilCluster.
type ValidatorVoteProfile struct {
	Address    Address
	AcceptRate float64
	RejectRate float64
	VoteCount  int
}

// SybilCluster flags a set of validators whose accept/reject profiles are
// suspiciously similar (§4.4 "Sybil cluster").
func (d *AnomalyDetector) SybilCluster(profiles []ValidatorVoteProfile) *AnomalyAlert {
	eligible := make([]ValidatorVoteProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.VoteCount >= SybilMinVotesEach {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) < SybilMinAddresses {
		return nil
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Address.String() < eligible[j].Address.String() })

	pairs, similar := 0, 0
	for i := 0; i < len(eligible); i++ {
		for j := i + 1; j < len(eligible); j++ {
			pairs++
			if math.Abs(eligible[i].AcceptRate-eligible[j].AcceptRate) <= SybilSimilarityTol &&
				math.Abs(eligible[i].RejectRate-eligible[j].RejectRate) <= SybilSimilarityTol {
				similar++
			}
		}
	}
	if pairs == 0 {
		return nil
	}
	frac := float64(similar) / float64(pairs)
	if frac <= SybilPairFraction {
		return nil
	}
	related := make([]Address, 0, len(eligible))
	for _, p := range eligible {
		related = append(related, p.Address)
	}
	alert := d.newAlert("SYBIL_CLUSTER", Address{}, related, frac, map[string]string{"pair_similarity": fmtFloat(frac)})
	d.persistIfHighConfidence(alert)
	return &alert
}

// ValidatorSetMember is one selected validator's network/stake metadata,
// input to IsDiverseSet.
type ValidatorSetMember struct {
	Address        Address
	IPSubnet24     string
	PeerOverlapPct float64
	StakeSource    string
	HasWoT         bool
}

// IsDiverseSet applies the §4.4 "Eclipse/Sybil for validator sets"
// diversity predicate.
func IsDiverseSet(members []ValidatorSetMember) bool {
	if len(members) == 0 {
		return false
	}
	subnetCounts := map[string]int{}
	stakeSources := map[string]bool{}
	nonWoT := 0
	var maxOverlap float64
	for _, m := range members {
		subnetCounts[m.IPSubnet24]++
		stakeSources[m.StakeSource] = true
		if !m.HasWoT {
			nonWoT++
		}
		if m.PeerOverlapPct > maxOverlap {
			maxOverlap = m.PeerOverlapPct
		}
	}
	maxSameSubnet := 0
	for _, c := range subnetCounts {
		if c > maxSameSubnet {
			maxSameSubnet = c
		}
	}
	sameSubnetFrac := float64(maxSameSubnet) / float64(len(members))
	nonWoTFrac := float64(nonWoT) / float64(len(members))

	return sameSubnetFrac <= EclipseMaxSameSubnetFrac &&
		maxOverlap < EclipseMaxOverlapFrac &&
		len(stakeSources) >= EclipseMinStakeSources &&
		nonWoTFrac >= EclipseMinNonWoTFraction
}

func (d *AnomalyDetector) newAlert(kind string, primary Address, related []Address, confidence float64, evidence map[string]string) AnomalyAlert {
	severity := confidence
	return AnomalyAlert{
		ID:               nextAlertID(),
		Type:             kind,
		PrimaryAddress:   primary,
		RelatedAddresses: related,
		Severity:         severity,
		Confidence:       confidence,
		Description:      kind,
		Evidence:         evidence,
		Timestamp:        d.now().UTC(),
	}
}

func (d *AnomalyDetector) persistIfHighConfidence(a AnomalyAlert) {
	if d.st == nil || a.Confidence < HighConfidencePersist {
		return
	}
	raw, err := marshalAlert(a)
	if err != nil {
		return
	}
	key := keyWithString("alert:", fmtUint(a.ID))
	_ = d.st.Set(append([]byte{PrefixAlert}, key...), raw)
}
