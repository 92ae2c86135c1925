package core

// Validator Consensus (§2 component E, §4.2): validator selection, the
// challenge/vote/aggregate/decide pipeline, validator-reputation feedback,
// and the transaction state machine. Selection and signing are grounded on
// the pack's UTXO-chain stack (btcec/v2 + chaincfg/chainhash, already pulled
// in by leanlp-BTC-coinjoin for a sibling Bitcoin-adjacent tool) rather than
// the teacher's own libp2p-oriented consensus code, since the host chain
// here is UTXO-based.

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// Consensus constants (§4.2).
const (
	MinValidators          = 10
	MaxValidatorExtension  = 2 * MinValidators
	EligibleStakeMinimum   = 100_000_000 // COIN, in satoshi-equivalent units
	EligibleReputationMin  = 70
	EligibleActivityBlocks = 1000

	WoTVoteWeight    = 1.0
	NonWoTVoteWeight = 0.5

	WoTCoverageThreshold = 0.30
	AcceptRatio          = 0.70
	RejectRatio          = 0.70

	BehaviorTolerance = 0.03
	EconomicTolerance = 0.03
	TemporalTolerance = 0.03
	WoTTolerance       = 0.05

	ReputationRiseAccuracy = 0.95
	ReputationFallAccuracy = 0.70
	ReputationRiseDelta    = 1
	ReputationFallDelta    = -2
)

// ValidatorInfo is the eligibility input for validator selection.
type ValidatorInfo struct {
	Address       Address
	Stake         uint64
	Reputation    int
	LastActiveBlk uint64
	PubKey        []byte
}

// IsEligible applies the §4.2 step 2 eligibility filter at the given height.
func (v ValidatorInfo) IsEligible(height uint64) bool {
	if v.Stake < EligibleStakeMinimum || v.Reputation < EligibleReputationMin {
		return false
	}
	if height > v.LastActiveBlk && height-v.LastActiveBlk > EligibleActivityBlocks {
		return false
	}
	return true
}

// AddressFromPubKey derives an Address as the low 20 bytes of SHA-256(pubkey)
// (§6: Address "derived from the host chain's key/script hash").
func AddressFromPubKey(pub []byte) Address {
	sum := chainhash.HashB(pub)
	var a Address
	copy(a[:], sum[:20])
	return a
}

// SeedSelection derives the Fisher-Yates PRNG seed H(tx_hash || block_hash ||
// height) (§4.2 step 2).
func SeedSelection(txHash, blockHash Hash256, height uint64) uint64 {
	buf := make([]byte, 32+32+8)
	copy(buf[0:32], txHash[:])
	copy(buf[32:64], blockHash[:])
	binary.BigEndian.PutUint64(buf[64:72], height)
	sum := sha256.Sum256(buf)
	return binary.BigEndian.Uint64(sum[:8])
}

// DeriveChallengeNonce derives a validation round's challenge nonce from the
// transaction hash, the submitting sender, and the round's open time, using
// blake2b so the nonce space is cryptographically distinct from the
// Fisher-Yates selection seed SeedSelection derives via sha256 (§4.2 steps 1
// and 5).
func DeriveChallengeNonce(txHash Hash256, sender Address, opened time.Time) Hash256 {
	buf := make([]byte, 32+20+8)
	copy(buf[0:32], txHash[:])
	copy(buf[32:52], sender[:])
	binary.BigEndian.PutUint64(buf[52:60], uint64(opened.UTC().UnixNano()))
	return Hash256(blake2b.Sum256(buf))
}

// splitmix64 is a small, fast, well-distributed deterministic PRNG — used
// here instead of math/rand so the byte-for-byte sequence is specified and
// stable across Go versions (§4.2 determinism requirement; §8 property 2).
type splitmix64 struct{ state uint64 }

func newSplitmix64(seed uint64) *splitmix64 { return &splitmix64{state: seed} }

func (s *splitmix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// intn returns a uniform value in [0, n).
func (s *splitmix64) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.next() % uint64(n))
}

// SelectValidators runs Fisher-Yates over the eligible pool under the
// deterministic seed and returns the first n (§4.2 step 2). Extension beyond
// MinValidators (for diversity/Sybil strip-and-extend) is the caller's
// responsibility via limit.
func SelectValidators(eligible []ValidatorInfo, seed uint64, limit int) []ValidatorInfo {
	pool := append([]ValidatorInfo(nil), eligible...)
	sort.Slice(pool, func(i, j int) bool { return pool[i].Address.String() < pool[j].Address.String() })

	rng := newSplitmix64(seed)
	for i := len(pool) - 1; i > 0; i-- {
		j := rng.intn(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	if limit > len(pool) {
		limit = len(pool)
	}
	if limit > MaxValidatorExtension {
		limit = MaxValidatorExtension
	}
	return pool[:limit]
}

// SelectValidators runs the deterministic Fisher-Yates selection for txHash
// and enforces the §4.4 Eclipse/Sybil diversity predicate on the result
// (§4.2 step 2: "extend selection / strip suspicious subset on diversity
// failure"). members supplies the network/stake metadata IsDiverseSet needs,
// keyed by the same addresses as eligible; a validator missing from members
// is treated as unscored and excluded from the diversity check rather than
// failing it.
//
// If the initial MinValidators-sized selection fails the diversity check,
// the pool is extended once toward MaxValidatorExtension. If the extended
// pool is still not diverse, the round is escalated to DAO review via
// EscalateSybilDetectionToDAO instead of silently retrying with the same
// suspicious subset.
func (e *ConsensusEngine) SelectValidators(txHash Hash256, eligible []ValidatorInfo, members map[Address]ValidatorSetMember, seed uint64) ([]ValidatorInfo, error) {
	selected := SelectValidators(eligible, seed, MinValidators)
	if isDiverseSelection(selected, members) {
		return selected, nil
	}

	extended := SelectValidators(eligible, seed, MaxValidatorExtension)
	if isDiverseSelection(extended, members) {
		return extended, nil
	}

	if _, err := e.EscalateSybilDetectionToDAO(txHash, selectionSetMembers(extended, members)); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: validator pool failed the diversity check after extension to %d, escalated to DAO review", ErrInvalidState, MaxValidatorExtension)
}

// isDiverseSelection applies IsDiverseSet over the subset of pool that
// carries diversity metadata in members. An empty subset (no metadata
// supplied at all) is treated as diverse, since there is nothing to flag.
func isDiverseSelection(pool []ValidatorInfo, members map[Address]ValidatorSetMember) bool {
	set := selectionSetMembers(pool, members)
	if len(set) == 0 {
		return true
	}
	return IsDiverseSet(set)
}

func selectionSetMembers(pool []ValidatorInfo, members map[Address]ValidatorSetMember) []ValidatorSetMember {
	out := make([]ValidatorSetMember, 0, len(pool))
	for _, v := range pool {
		if m, ok := members[v.Address]; ok {
			out = append(out, m)
		}
	}
	return out
}

// EscalateSybilDetectionToDAO opens a DAO-review DisputeCase when validator
// selection cannot assemble a diverse set for txHash (§4.2 step 2, §4.4
// "Eclipse/Sybil for validator sets"), so a failed selection round surfaces
// for governance review instead of being retried indefinitely against the
// same suspicious subset.
func (e *ConsensusEngine) EscalateSybilDetectionToDAO(txHash Hash256, suspicious []ValidatorSetMember) (DisputeCase, error) {
	evidence, err := json.Marshal(suspicious)
	if err != nil {
		return DisputeCase{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	dc := DisputeCase{
		DisputeID:    txHash,
		EvidenceBlob: evidence,
	}
	if err := e.persistDispute(dc); err != nil {
		return DisputeCase{}, err
	}
	e.setTxState(txHash, TxDisputed)
	ConsensusOutcomes.WithLabelValues("sybil_escalated").Inc()
	return dc, nil
}

// canonicalResponseFields is the RLP-encoded, deterministic field order a
// ValidationResponse signature covers: every field except the signature
// itself and ValidatorPubKey (§4.2 step 5). The public key is not encoded;
// VerifyResponse binds it by requiring that it hash to the signed Validator
// address. RLP's length-prefixed framing removes any ambiguity
// about field widths that a hand-rolled byte buffer would otherwise have to
// fix by convention.
type canonicalResponseFields struct {
	TxHash            []byte
	Validator         []byte
	CalculatedScore   uint64
	Vote              uint8
	ConfidenceScaled  uint64
	HasWoT            uint8
	TrustPaths        uint64
	ChallengeNonce    []byte
	Components        []byte
	TimestampUnixNano uint64
}

func canonicalResponseBytes(r ValidationResponse) []byte {
	hasWoT := uint8(0)
	if r.HasWoT {
		hasWoT = 1
	}
	fields := canonicalResponseFields{
		TxHash:            append([]byte(nil), r.TxHash[:]...),
		Validator:         append([]byte(nil), r.Validator[:]...),
		CalculatedScore:   uint64(int64(r.CalculatedScore)),
		Vote:              byte(r.Vote),
		ConfidenceScaled:  uint64(int64(r.Confidence * 1e6)),
		HasWoT:            hasWoT,
		TrustPaths:        uint64(r.TrustPaths),
		ChallengeNonce:    append([]byte(nil), r.ChallengeNonce[:]...),
		Components:        componentStatusBytes(r.ComponentStatus),
		TimestampUnixNano: uint64(r.Timestamp.UTC().UnixNano()),
	}
	raw, err := rlp.EncodeToBytes(fields)
	if err != nil {
		// Every field above is a plain uint/[]byte; a failure here means a
		// field type was broken at this call site, not a runtime condition.
		panic(fmt.Sprintf("canonicalResponseBytes: rlp encode: %v", err))
	}
	return raw
}

// componentStatusBytes serializes the per-component checked/match bits and
// delta in sorted-name order, so two validators checking the same components
// always produce identical bytes regardless of map iteration order.
func componentStatusBytes(m map[string]ComponentStatus) []byte {
	var buf bytes.Buffer
	for _, name := range sortedComponentNames(m) {
		cs := m[name]
		buf.WriteString(name)
		if cs.Checked {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		if cs.Match {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		var delta [8]byte
		binary.BigEndian.PutUint64(delta[:], math.Float64bits(cs.Delta))
		buf.Write(delta[:])
	}
	return buf.Bytes()
}

func sortedComponentNames(m map[string]ComponentStatus) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SignResponse signs r's canonical encoding with priv and fills in the
// validator's public key and signature (§4.2 step 5).
func SignResponse(r *ValidationResponse, priv *btcec.PrivateKey) {
	digest := chainhash.HashB(canonicalResponseBytes(*r))
	sig := ecdsa.Sign(priv, digest)
	r.ValidatorPubKey = priv.PubKey().SerializeCompressed()
	r.Signature = sig.Serialize()
}

// VerifyResponse checks the signature and that the public key hashes to the
// claimed validator address (§4.2 step 5).
func VerifyResponse(r ValidationResponse) error {
	if AddressFromPubKey(r.ValidatorPubKey) != r.Validator {
		return fmt.Errorf("%w: pubkey does not hash to claimed validator address", ErrInvalidSignature)
	}
	pub, err := btcec.ParsePubKey(r.ValidatorPubKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	sig, err := ecdsa.ParseDERSignature(r.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	digest := chainhash.HashB(canonicalResponseBytes(r))
	if !sig.Verify(digest, pub) {
		return ErrInvalidSignature
	}
	return nil
}

// session tracks one in-flight validation round (§4.2, §5 cancellation).
type session struct {
	req       ValidationRequest
	responses map[Address]ValidationResponse
	nonces    map[Hash256]bool
	deadline  time.Time
}

// ConsensusEngine drives the challenge/vote/aggregate/decide pipeline.
// Exclusive lock ordered before the global chain lock (§5).
type ConsensusEngine struct {
	mu       sync.Mutex
	log      *logrus.Logger
	st       *Store
	stats    map[Address]*ValidatorStats
	sessions map[Hash256]*session
	txStates map[Hash256]TxState
}

// NewConsensusEngine constructs an engine backed by st, replaying persisted
// ValidatorStats.
func NewConsensusEngine(st *Store, log *logrus.Logger) (*ConsensusEngine, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &ConsensusEngine{
		log:      log,
		st:       st,
		stats:    make(map[Address]*ValidatorStats),
		sessions: make(map[Hash256]*session),
		txStates: make(map[Hash256]TxState),
	}
	if st == nil {
		return e, nil
	}
	it, err := st.Iterator([]byte{PrefixValidatorStats})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for it.Valid() {
		var s ValidatorStats
		if err := json.Unmarshal(it.Value(), &s); err == nil {
			cp := s
			e.stats[s.Address] = &cp
		}
		it.Next()
	}
	return e, it.Error()
}

// OpenSession begins a validation round for req, timing out at deadline
// (§4.2 step 1, §5 cancellation).
func (e *ConsensusEngine) OpenSession(req ValidationRequest, deadline time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[req.TxHash] = &session{
		req:       req,
		responses: make(map[Address]ValidationResponse),
		nonces:    make(map[Hash256]bool),
		deadline:  deadline,
	}
}

// Submit records one validator's signed response, deduplicating by validator,
// rejecting a challenge nonce that differs from the open request's, and
// dropping late arrivals (§4.2 step 6). No per-nonce deduplication is done
// beyond that match.
func (e *ConsensusEngine) Submit(resp ValidationResponse, now time.Time) error {
	if err := VerifyResponse(resp); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[resp.TxHash]
	if !ok {
		return ErrNotFound
	}
	if now.After(sess.deadline) {
		return ErrTimeout
	}
	if resp.ChallengeNonce != sess.req.ChallengeNonce {
		return fmt.Errorf("%w: nonce mismatch", ErrInvalidNonce)
	}
	if _, dup := sess.responses[resp.Validator]; dup {
		return ErrDuplicateResponse
	}
	sess.responses[resp.Validator] = resp
	return nil
}

// Decide aggregates and resolves a session per §4.2 steps 6-7. Returns the
// result and closes the session.
func (e *ConsensusEngine) Decide(txHash Hash256) (ConsensusResult, error) {
	e.mu.Lock()
	sess, ok := e.sessions[txHash]
	if !ok {
		e.mu.Unlock()
		return ConsensusResult{}, ErrNotFound
	}
	responses := make([]ValidationResponse, 0, len(sess.responses))
	for _, r := range sess.responses {
		responses = append(responses, r)
	}
	delete(e.sessions, txHash)
	e.mu.Unlock()

	sort.Slice(responses, func(i, j int) bool { return responses[i].Validator.String() < responses[j].Validator.String() })

	result := ConsensusResult{TxHash: txHash}
	wotResponders := 0
	for _, r := range responses {
		switch r.Vote {
		case VoteAccept:
			result.RawAccept++
		case VoteReject:
			result.RawReject++
		default:
			result.RawAbstain++
		}
		weight := NonWoTVoteWeight
		if r.HasWoT {
			weight = WoTVoteWeight
			wotResponders++
		}
		weight *= r.Confidence
		switch r.Vote {
		case VoteAccept:
			result.WeightedAccept += weight
		case VoteReject:
			result.WeightedReject += weight
		default:
			result.WeightedAbstain += weight
		}
	}
	if len(responses) > 0 {
		result.WoTCoverage = float64(wotResponders) / float64(len(responses))
	}

	if result.WoTCoverage < WoTCoverageThreshold {
		result.ConsensusReached = false
		result.RequiresDAOReview = true
		ConsensusOutcomes.WithLabelValues("no_consensus").Inc()
		e.openDispute(result, responses)
		return result, nil
	}

	total := result.WeightedAccept + result.WeightedReject + result.WeightedAbstain
	if total == 0 {
		result.ConsensusReached = false
		result.RequiresDAOReview = true
		ConsensusOutcomes.WithLabelValues("no_consensus").Inc()
		e.openDispute(result, responses)
		return result, nil
	}
	acceptRatio := result.WeightedAccept / total
	rejectRatio := result.WeightedReject / total

	switch {
	case acceptRatio >= AcceptRatio:
		result.ConsensusReached = true
		result.Approved = true
		ConsensusOutcomes.WithLabelValues("accepted").Inc()
		e.setTxState(txHash, TxValidated)
	case rejectRatio >= RejectRatio:
		result.ConsensusReached = true
		result.Approved = false
		ConsensusOutcomes.WithLabelValues("rejected").Inc()
		e.setTxState(txHash, TxRejected)
	default:
		result.ConsensusReached = false
		result.RequiresDAOReview = true
		ConsensusOutcomes.WithLabelValues("disputed").Inc()
		e.openDispute(result, responses)
	}

	e.updateReputations(responses, result)
	return result, nil
}

// openDispute persists a DisputeCase for a round that failed to reach
// consensus and marks the transaction DISPUTED (§3, §4.2 step 9): "a
// DisputeCase is created when consensus fails". The collected responses
// become the DAO's evidence for resolution.
func (e *ConsensusEngine) openDispute(result ConsensusResult, responses []ValidationResponse) {
	evidence, err := json.Marshal(result)
	if err != nil {
		evidence = nil
	}
	dc := DisputeCase{
		DisputeID:    result.TxHash,
		Responses:    responses,
		EvidenceBlob: evidence,
	}
	e.setTxState(result.TxHash, TxDisputed)
	if err := e.persistDispute(dc); err != nil {
		e.log.WithError(err).Warnf("consensus: failed to persist dispute case %s", result.TxHash)
	}
}

func (e *ConsensusEngine) persistDispute(dc DisputeCase) error {
	if e.st == nil {
		return nil
	}
	raw, err := json.Marshal(dc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return e.st.Set(keyWithHash(PrefixDispute, dc.DisputeID), raw)
}

// Dispute returns the persisted dispute case opened for txHash, if any.
func (e *ConsensusEngine) Dispute(txHash Hash256) (DisputeCase, error) {
	if e.st == nil {
		return DisputeCase{}, ErrNotFound
	}
	raw, err := e.st.Get(keyWithHash(PrefixDispute, txHash))
	if err != nil {
		return DisputeCase{}, err
	}
	if raw == nil {
		return DisputeCase{}, ErrNotFound
	}
	var dc DisputeCase
	if err := json.Unmarshal(raw, &dc); err != nil {
		return DisputeCase{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return dc, nil
}

// ResolveDispute closes an open DisputeCase per a DAO vote outcome (§3:
// DisputeCase lifecycle is "created when consensus fails; closed by DAO
// resolution"), transitioning the transaction to VALIDATED or REJECTED.
func (e *ConsensusEngine) ResolveDispute(txHash Hash256, approved bool, now time.Time) (DisputeCase, error) {
	dc, err := e.Dispute(txHash)
	if err != nil {
		return DisputeCase{}, err
	}
	if dc.Resolved {
		return DisputeCase{}, fmt.Errorf("%w: dispute %s already resolved", ErrInvalidState, txHash)
	}
	dc.Resolved = true
	dc.Approved = approved
	dc.ResolutionTS = now.UTC()
	if err := e.persistDispute(dc); err != nil {
		return DisputeCase{}, err
	}
	if approved {
		e.setTxState(txHash, TxValidated)
	} else {
		e.setTxState(txHash, TxRejected)
	}
	ConsensusOutcomes.WithLabelValues("dao_resolved").Inc()
	return dc, nil
}

func (e *ConsensusEngine) setTxState(txHash Hash256, state TxState) {
	e.mu.Lock()
	e.txStates[txHash] = state
	e.mu.Unlock()
}

// TxState returns the current lifecycle state of txHash (§4.2 step 9),
// defaulting to PENDING_VALIDATION if no round has decided it yet.
func (e *ConsensusEngine) TxState(txHash Hash256) TxState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.txStates[txHash]; ok {
		return s
	}
	return TxPendingValidation
}

// updateReputations applies §4.2 step 8: mark accurate iff the vote matched
// consensus; adjust the long-run accuracy-gated reputation; skip entirely
// when no consensus was reached.
func (e *ConsensusEngine) updateReputations(responses []ValidationResponse, result ConsensusResult) {
	if !result.ConsensusReached {
		return
	}
	consensusVote := VoteReject
	if result.Approved {
		consensusVote = VoteAccept
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range responses {
		stats, ok := e.stats[r.Validator]
		if !ok {
			stats = &ValidatorStats{Address: r.Validator, ValidatorReputation: 70}
			e.stats[r.Validator] = stats
		}
		stats.Total++
		if r.Vote == consensusVote {
			stats.Accurate++
		} else if r.Vote == VoteAbstain {
			stats.Abstentions++
		} else {
			stats.Inaccurate++
		}
		if stats.Total > 0 {
			stats.AccuracyRate = float64(stats.Accurate) / float64(stats.Total)
		}
		switch {
		case stats.AccuracyRate >= ReputationRiseAccuracy:
			stats.ValidatorReputation = clampInt(stats.ValidatorReputation+ReputationRiseDelta, 0, 100)
		case stats.AccuracyRate < ReputationFallAccuracy:
			stats.ValidatorReputation = clampInt(stats.ValidatorReputation+ReputationFallDelta, 0, 100)
		}
		stats.LastActivity = time.Now().UTC()
		ValidatorAccuracy.WithLabelValues(r.Validator.String()).Set(stats.AccuracyRate)
		e.persistStats(stats)
	}
}

// ExpireTimeouts penalizes non-responders for sessions past their deadline
// (§4.2 "Cancellation"): accuracy-rate decay and +1 timeout count, then
// deletes the session. No abandoned marker is recorded; the transaction's
// TxState is left as it was.
func (e *ConsensusEngine) ExpireTimeouts(txHash Hash256, expectedValidators []Address, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[txHash]
	if !ok || !now.After(sess.deadline) {
		return
	}
	for _, v := range expectedValidators {
		if _, responded := sess.responses[v]; responded {
			continue
		}
		stats, ok := e.stats[v]
		if !ok {
			stats = &ValidatorStats{Address: v, ValidatorReputation: 70}
			e.stats[v] = stats
		}
		stats.TimeoutCount++
		stats.Total++
		stats.AccuracyRate = float64(stats.Accurate) / float64(stats.Total)
		e.persistStats(stats)
	}
	delete(e.sessions, txHash)
}

func (e *ConsensusEngine) persistStats(s *ValidatorStats) {
	if e.st == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = e.st.Set(keyWithAddr(PrefixValidatorStats, s.Address), raw)
}

// Stats returns a copy of a validator's current stats.
func (e *ConsensusEngine) Stats(addr Address) (ValidatorStats, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.stats[addr]
	if !ok {
		return ValidatorStats{}, false
	}
	return *s, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
