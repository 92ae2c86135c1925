// Package core implements the Cascoin Validator Module: the reputation and
// consensus-safety kernel layered on top of the host UTXO chain. This file
// declares the shared data types referenced across the package, mirroring
// the teacher convention of a single struct-definitions file with no
// behaviour attached.
package core

import (
	"encoding/hex"
	"time"
)

// Address is a 20-byte identifier derived from the host chain's key/script
// hash.
type Address [20]byte

// String renders the address as lower-case hex.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool { return a == Address{} }

// Hash256 is a 32-byte content hash.
type Hash256 [32]byte

// String renders the hash as lower-case hex.
func (h Hash256) String() string { return hex.EncodeToString(h[:]) }

// Vote is a validator's decision on a ValidationRequest.
type Vote uint8

const (
	VoteAbstain Vote = iota
	VoteAccept
	VoteReject
)

func (v Vote) String() string {
	switch v {
	case VoteAccept:
		return "ACCEPT"
	case VoteReject:
		return "REJECT"
	default:
		return "ABSTAIN"
	}
}

// TxState is the lifecycle state of a CVM-bearing transaction per §4.2 step 9.
type TxState uint8

const (
	TxPendingValidation TxState = iota
	TxValidated
	TxRejected
	TxDisputed
)

func (s TxState) String() string {
	switch s {
	case TxValidated:
		return "VALIDATED"
	case TxRejected:
		return "REJECTED"
	case TxDisputed:
		return "DISPUTED"
	default:
		return "PENDING_VALIDATION"
	}
}

// TrustEdge is a bonded, directed trust edge between two addresses (§3).
type TrustEdge struct {
	From       Address   `json:"from"`
	To         Address   `json:"to"`
	Weight     int8      `json:"weight"` // in [-100, 100]
	BondAmount uint64    `json:"bond_amount"`
	BondTx     Hash256   `json:"bond_tx"`
	Timestamp  time.Time `json:"timestamp"`
	Reason     string    `json:"reason"`
	Slashed    bool      `json:"slashed"`
}

// BondedVote is the envelope-level record that spawns or updates a TrustEdge.
type BondedVote struct {
	Voter     Address   `json:"voter"`
	Target    Address   `json:"target"`
	Value     int8      `json:"value"`
	Bond      uint64    `json:"bond"`
	Timestamp time.Time `json:"timestamp"`
	Tx        Hash256   `json:"tx"`
}

// WalletCluster is a set of addresses presumed to belong to one entity.
type WalletCluster struct {
	ClusterID  string             `json:"cluster_id"`
	Members    map[Address]bool   `json:"members"`
	Confidence float64            `json:"confidence"`
}

// PropagatedTrustEdge is a trust edge materialized onto a cluster member by
// the Trust Propagator (§4.6).
type PropagatedTrustEdge struct {
	From              Address   `json:"from"`
	To                Address   `json:"to"`
	OriginalTarget    Address   `json:"original_target"`
	SourceEdgeTx      Hash256   `json:"source_edge_tx"`
	Weight            int8      `json:"weight"`
	PropagationTime   time.Time `json:"propagation_time"`
	OriginalTimestamp time.Time `json:"original_timestamp"`
	BondAmount        uint64    `json:"bond_amount"`
}

// BehaviorMetrics accumulates on-chain evidence for the behavior component of
// HAT v2 (§4.1).
type BehaviorMetrics struct {
	Address        Address `json:"address"`
	TotalTrades    uint64  `json:"total_trades"`
	SuccessTrades  uint64  `json:"success_trades"`
	UniquePartners uint64  `json:"unique_partners"`
	VolumeTotal    uint64  `json:"volume_total"`
	FraudCount     uint32  `json:"fraud_count"`
	AnomalyCount   uint32  `json:"anomaly_count"`
}

// StakeInfo is the economic component's raw input.
type StakeInfo struct {
	Address       Address   `json:"address"`
	StakeAmount   uint64    `json:"stake_amount"`
	StakeStart    time.Time `json:"stake_start"`
	StakeWithdrew bool      `json:"stake_withdrew"`
}

// TemporalMetrics is the temporal component's raw input.
type TemporalMetrics struct {
	Address       Address     `json:"address"`
	FirstSeen     time.Time   `json:"first_seen"`
	LastActivity  time.Time   `json:"last_activity"`
	ActivityStamp []time.Time `json:"activity_stamps"`
}

// TrustBreakdown exposes the raw HAT v2 components for contract-level
// auditing (§4.1).
type TrustBreakdown struct {
	Behavior float64 `json:"behavior"`
	WoT      float64 `json:"wot"`
	Economic float64 `json:"economic"`
	Temporal float64 `json:"temporal"`
}

// HATv2Score is the deterministic, 4-component trust score for a
// (target, viewer) pair (§3, §4.1).
type HATv2Score struct {
	Address        Address        `json:"address"`
	Final          int            `json:"final"` // in [0, 100]
	Breakdown      TrustBreakdown `json:"breakdown"`
	HasWoT         bool           `json:"has_wot"`
	WoTPathCount   int            `json:"wot_path_count"`
	WoTPathStrength float64       `json:"wot_path_strength"`
	Timestamp      time.Time      `json:"timestamp"`
}

// ValidationRequest opens a validator-consensus session for one tx (§4.2).
type ValidationRequest struct {
	TxHash            Hash256   `json:"tx_hash"`
	Sender            Address   `json:"sender"`
	SelfReportedScore int       `json:"self_reported_score"`
	ChallengeNonce    Hash256   `json:"challenge_nonce"`
	Timestamp         time.Time `json:"timestamp"`
	BlockHeight       uint64    `json:"block_height"`
}

// ComponentStatus records, per HAT component, whether a validator checked it
// and whether it matched.
type ComponentStatus struct {
	Checked bool    `json:"checked"`
	Match   bool    `json:"match"`
	Delta   float64 `json:"delta"`
}

// ValidationResponse is one validator's signed reply to a ValidationRequest
// (§4.2 step 5, §3).
type ValidationResponse struct {
	TxHash          Hash256                    `json:"tx_hash"`
	Validator       Address                    `json:"validator"`
	CalculatedScore int                        `json:"calculated_score"`
	Vote            Vote                       `json:"vote"`
	Confidence      float64                    `json:"confidence"`
	HasWoT          bool                       `json:"has_wot"`
	TrustPaths      int                        `json:"trust_paths"`
	ComponentStatus map[string]ComponentStatus `json:"component_status"`
	ValidatorPubKey []byte                     `json:"validator_pubkey"`
	Signature       []byte                     `json:"signature"`
	ChallengeNonce  Hash256                    `json:"challenge_nonce"`
	Timestamp       time.Time                  `json:"timestamp"`
}

// ConsensusResult is the ephemeral, derived outcome of one validation round
// (§4.2 step 7).
type ConsensusResult struct {
	TxHash            Hash256 `json:"tx_hash"`
	ConsensusReached  bool    `json:"consensus_reached"`
	Approved          bool    `json:"approved"`
	RequiresDAOReview bool    `json:"requires_dao_review"`
	RawAccept         int     `json:"raw_accept"`
	RawReject         int     `json:"raw_reject"`
	RawAbstain        int     `json:"raw_abstain"`
	WeightedAccept    float64 `json:"weighted_accept"`
	WeightedReject    float64 `json:"weighted_reject"`
	WeightedAbstain   float64 `json:"weighted_abstain"`
	WoTCoverage       float64 `json:"wot_coverage"`
}

// DisputeCase is opened when a validation round fails to reach consensus
// (§3, §4.2 step 9).
type DisputeCase struct {
	DisputeID    Hash256               `json:"dispute_id"` // == tx_hash
	Responses    []ValidationResponse  `json:"responses"`
	EvidenceBlob []byte                `json:"evidence_blob"`
	Resolved     bool                  `json:"resolved"`
	Approved     bool                  `json:"approved"`
	ResolutionTS time.Time             `json:"resolution_ts"`
}

// FraudRecord is the canonical, DAO-confirmed fraud record (§3, §4.3).
type FraudRecord struct {
	TxHash            Hash256   `json:"tx_hash"`
	Fraudster         Address   `json:"fraudster"`
	Claimed           int       `json:"claimed"`
	Actual            int       `json:"actual"`
	ScoreDifference   int       `json:"score_difference"`
	Timestamp         time.Time `json:"timestamp"`
	BlockHeight       uint64    `json:"block_height"`
	ReputationPenalty int       `json:"reputation_penalty"`
	BondSlashed       uint64    `json:"bond_slashed"`
}

// ValidatorStats tracks a validator's accuracy over time (§3, §4.2 step 8).
type ValidatorStats struct {
	Address             Address   `json:"address"`
	Total               uint64    `json:"total"`
	Accurate            uint64    `json:"accurate"`
	Inaccurate          uint64    `json:"inaccurate"`
	Abstentions         uint64    `json:"abstentions"`
	TimeoutCount        uint64    `json:"timeout_count"`
	AccuracyRate        float64   `json:"accuracy_rate"`
	ValidatorReputation int       `json:"validator_reputation"` // [0, 100]
	LastActivity        time.Time `json:"last_activity"`
}

// AnomalyAlert is the common envelope emitted by every detector (§3, §4.4).
type AnomalyAlert struct {
	ID               uint64            `json:"id"`
	Type             string            `json:"type"`
	PrimaryAddress   Address           `json:"primary_address"`
	RelatedAddresses []Address         `json:"related_addresses"`
	Severity         float64           `json:"severity"`
	Confidence       float64           `json:"confidence"`
	Description      string            `json:"description"`
	Evidence         map[string]string `json:"evidence"`
	Timestamp        time.Time         `json:"timestamp"`
	BlockHeight      uint64            `json:"block_height"`
	Acknowledged     bool              `json:"acknowledged"`
	Resolved         bool              `json:"resolved"`
}
