package core

// Fraud Recorder (§2 component H, §4.3): DAO-gated fraud-record emission,
// the penalty/slash schedule, and the OP_RETURN "FRAUD" envelope round trip.
// Grounded on envelope.go's codec (component J) and the teacher's
// governance_reputation_voting.go DAO-gated-action pattern, generalized to
// score-delta-driven penalties instead of direct vote tallies.

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Fraud thresholds and penalty schedule (§4.3).
const (
	FraudMinDelta              = 5
	FraudDeltaLowMax           = 10
	FraudDeltaMidMax           = 30
	FraudClusterWindowBlocks   = 1000
	FraudClusterMaxInWindow    = 5

	FraudPenaltyLow  = 5
	FraudPenaltyMid  = 15
	FraudPenaltyHigh = 30
)

// FraudRecorder validates and records DAO-confirmed fraud outcomes.
// Exclusive lock per §5.
type FraudRecorder struct {
	mu      sync.Mutex
	st      *Store
	cluster *WalletClusterer
	history []FraudRecord // append-only: persisted records in tx-hash key order, then new ones in recording order
}

// NewFraudRecorder constructs a recorder backed by st, replaying persisted
// fraud history.
func NewFraudRecorder(st *Store, cluster *WalletClusterer) (*FraudRecorder, error) {
	r := &FraudRecorder{st: st, cluster: cluster}
	if st == nil {
		return r, nil
	}
	it, err := st.Iterator([]byte{PrefixFraud})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for it.Valid() {
		var f FraudRecord
		if err := json.Unmarshal(it.Value(), &f); err == nil {
			r.history = append(r.history, f)
		}
		it.Next()
	}
	return r, it.Error()
}

// Record validates and persists a fraud outcome per §4.3, returning the
// completed FraudRecord or an error if the delta is too small or the
// accused's cluster is already saturated with recent fraud records.
func (r *FraudRecorder) Record(txHash Hash256, fraudster Address, claimed, actual int, stake uint64, height uint64) (FraudRecord, error) {
	delta := claimed - actual
	if delta < 0 {
		delta = -delta
	}
	if delta < FraudMinDelta {
		return FraudRecord{}, fmt.Errorf("%w: |delta| %d below minimum %d, treated as measurement variance", ErrInvalidState, delta, FraudMinDelta)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clusterSaturated(fraudster, height) {
		return FraudRecord{}, fmt.Errorf("%w: accused cluster exceeded %d fraud records in the last %d blocks, escalating to DAO review",
			ErrInvalidState, FraudClusterMaxInWindow, FraudClusterWindowBlocks)
	}

	penalty, slash := penaltySchedule(delta, stake)
	record := FraudRecord{
		TxHash:            txHash,
		Fraudster:         fraudster,
		Claimed:           claimed,
		Actual:            actual,
		ScoreDifference:   delta,
		Timestamp:         time.Now().UTC(),
		BlockHeight:       height,
		ReputationPenalty: penalty,
		BondSlashed:       slash,
	}

	if err := r.persist(record); err != nil {
		return FraudRecord{}, err
	}
	r.history = append(r.history, record)
	FraudRecords.WithLabelValues(penaltyTier(delta)).Inc()
	zap.L().Sugar().Infow("fraud record confirmed",
		"tx_hash", txHash.String(),
		"fraudster", fraudster.String(),
		"claimed", claimed,
		"actual", actual,
		"delta", delta,
		"reputation_penalty", penalty,
		"bond_slashed", slash,
		"block_height", height,
	)
	return record, nil
}

func penaltyTier(delta int) string {
	switch {
	case delta <= FraudDeltaLowMax:
		return "low"
	case delta <= FraudDeltaMidMax:
		return "mid"
	default:
		return "high"
	}
}

// penaltySchedule implements the §4.3 table.
func penaltySchedule(delta int, stake uint64) (penalty int, slash uint64) {
	switch {
	case delta <= FraudDeltaLowMax:
		return FraudPenaltyLow, 0
	case delta <= FraudDeltaMidMax:
		return FraudPenaltyMid, stake / 20
	default:
		return FraudPenaltyHigh, stake / 10
	}
}

// clusterSaturated checks whether fraudster's cluster already produced more
// than FraudClusterMaxInWindow records in the last FraudClusterWindowBlocks
// (§4.3 anti-coordinated-false-accusation guard).
func (r *FraudRecorder) clusterSaturated(fraudster Address, height uint64) bool {
	if r.cluster == nil {
		return false
	}
	members := make(map[Address]bool)
	for _, m := range r.cluster.Members(fraudster) {
		members[m] = true
	}
	count := 0
	var floor uint64
	if height > FraudClusterWindowBlocks {
		floor = height - FraudClusterWindowBlocks
	}
	for _, f := range r.history {
		if f.BlockHeight < floor {
			continue
		}
		if members[f.Fraudster] {
			count++
		}
	}
	return count > FraudClusterMaxInWindow
}

func (r *FraudRecorder) persist(f FraudRecord) error {
	if r.st == nil {
		return nil
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return r.st.Set(keyWithHash(PrefixFraud, f.TxHash), raw)
}

// EmitEnvelope serializes f and frames it as the "FRAUD" OP_RETURN payload
// for inclusion in the next block (§4.3).
func EmitEnvelope(f FraudRecord) ([]byte, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return EncodeFraudEnvelope(raw), nil
}

// ExtractRecord is the deterministic inverse of EmitEnvelope (§4.3).
func ExtractRecord(raw []byte) (FraudRecord, error) {
	payload, err := DecodeFraudEnvelope(raw)
	if err != nil {
		return FraudRecord{}, err
	}
	var f FraudRecord
	if err := json.Unmarshal(payload, &f); err != nil {
		return FraudRecord{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return f, nil
}

// ApplyToBehavior feeds a fraud record back into BehaviorMetrics (§4.3
// "Fraud records feed back into BehaviorMetrics").
func ApplyToBehavior(bm *BehaviorMetrics, f FraudRecord) {
	bm.FraudCount++
}

// ForAddress returns every fraud record naming addr as the fraudster, in
// history order (see FraudRecorder.history); the result is not sorted by
// BlockHeight or Timestamp.
func (r *FraudRecorder) ForAddress(addr Address) []FraudRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []FraudRecord
	for _, f := range r.history {
		if f.Fraudster == addr {
			out = append(out, f)
		}
	}
	return out
}
