package core

// HAT v2 Scorer (§2 component D, §4.1): the four-component deterministic
// trust score. Mirrors original_source/src/cvm/hat_consensus.cpp's weight
// split (0.57/0.29/0.14 proportional re-weighting when no WoT path exists,
// §9 Open Question "retire ASRS, HAT v2 only"); its ±tolerance constants
// live in validator_consensus.go. The scorer is generalized here into a pure function of BehaviorMetrics/StakeInfo/
// TemporalMetrics/TrustGraph rather than the C++ struct-mutation style.

import (
	"math"
	"sort"
	"time"
)

// Weighting per §4.1.
const (
	wBehaviorWithWoT = 0.40
	wWoTWithWoT      = 0.30
	wEconomicWithWoT = 0.20
	wTemporalWithWoT = 0.10

	wBehaviorNoWoT = 0.57
	wEconomicNoWoT = 0.29
	wTemporalNoWoT = 0.14
)

// WoTMaxDepth bounds the directed-path search from viewer to target (§4.1).
const WoTMaxDepth = 3

// StakeAgeCapDays is the point past which additional stake age earns no
// further economic-component credit (§4.1 "rewarded linearly up to a cap").
const StakeAgeCapDays = 365.0

// clusterPathThreshold: K paths sharing a cluster trigger the WoT cluster
// penalty (§4.1).
const clusterPathThreshold = 3

// wotNegativeTrustCeiling bounds the WoT component when the viewer's paths
// to target are net-negative: the component stays low but never drops below
// 0 (§3 HATv2Score invariant: every breakdown component is in [0,1]).
const wotNegativeTrustCeiling = 0.3

// HATScorer computes HAT v2 scores. Stateless aside from its dependencies;
// no lock of its own since it never mutates shared state (§5).
type HATScorer struct {
	graph   *TrustGraph
	cluster *WalletClusterer
	now     func() time.Time
}

// NewHATScorer constructs a scorer over graph/cluster. now defaults to
// time.Now and is overridable for deterministic tests.
func NewHATScorer(graph *TrustGraph, cluster *WalletClusterer) *HATScorer {
	return &HATScorer{graph: graph, cluster: cluster, now: time.Now}
}

// Score computes HATv2Score(target, viewer) per §4.1.
func (s *HATScorer) Score(target, viewer Address, bm BehaviorMetrics, stake StakeInfo, temporal TemporalMetrics) HATv2Score {
	behavior := s.behaviorComponent(bm)
	economic := s.economicComponent(stake)
	temp := s.temporalComponent(temporal)

	pathCount, pathStrength, hasWoT := 0, 0.0, false
	wot := 0.0
	if s.graph != nil && viewer != target {
		paths := s.findPaths(viewer, target, WoTMaxDepth)
		pathCount = len(paths)
		hasWoT = pathCount > 0
		if hasWoT {
			wot, pathStrength = s.wotComponent(paths, target)
		}
	}

	var final float64
	var breakdown TrustBreakdown
	if hasWoT {
		final = wBehaviorWithWoT*behavior + wWoTWithWoT*wot + wEconomicWithWoT*economic + wTemporalWithWoT*temp
		breakdown = TrustBreakdown{Behavior: behavior, WoT: wot, Economic: economic, Temporal: temp}
	} else {
		final = wBehaviorNoWoT*behavior + wEconomicNoWoT*economic + wTemporalNoWoT*temp
		breakdown = TrustBreakdown{Behavior: behavior, Economic: economic, Temporal: temp}
	}

	clamped := clampScore(roundHalfAwayFromZero(final * 100))

	return HATv2Score{
		Address:         target,
		Final:           clamped,
		Breakdown:       breakdown,
		HasWoT:          hasWoT,
		WoTPathCount:    pathCount,
		WoTPathStrength: pathStrength,
		Timestamp:       s.now().UTC(),
	}
}

// behaviorComponent: success rate, partner diversity, volume, and fraud
// history combine multiplicatively with penalties (§4.1).
func (s *HATScorer) behaviorComponent(bm BehaviorMetrics) float64 {
	if bm.TotalTrades == 0 {
		return 0.5 // no evidence: neutral prior
	}
	successRate := float64(bm.SuccessTrades) / float64(bm.TotalTrades)
	diversity := diminishingReturns(float64(bm.UniquePartners), 20)
	volumeFactor := diminishingReturns(float64(bm.VolumeTotal), 1_000_000)

	raw := 0.6*successRate + 0.25*diversity + 0.15*volumeFactor

	fraudPenalty := math.Pow(0.5, float64(bm.FraudCount))
	anomalyPenalty := math.Pow(0.8, float64(bm.AnomalyCount))

	return clamp01(raw * fraudPenalty * anomalyPenalty)
}

// economicComponent: a logistic of stake amount times a linear, capped
// stake-age factor (§4.1).
func (s *HATScorer) economicComponent(stake StakeInfo) float64 {
	if stake.StakeAmount == 0 || stake.StakeWithdrew {
		return 0
	}
	amountFactor := logistic(float64(stake.StakeAmount), 5_000_000, 2_000_000)
	ageDays := s.now().UTC().Sub(stake.StakeStart).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	ageFactor := math.Min(ageDays, StakeAgeCapDays) / StakeAgeCapDays
	return clamp01(amountFactor * (0.5 + 0.5*ageFactor))
}

// temporalComponent: account age and activity regularity, penalizing idle
// gaps and clustered bursts (§4.1).
func (s *HATScorer) temporalComponent(tm TemporalMetrics) float64 {
	if tm.FirstSeen.IsZero() {
		return 0.3 // unknown account age: conservative default
	}
	now := s.now().UTC()
	ageDays := now.Sub(tm.FirstSeen).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	ageFactor := diminishingReturns(ageDays, 180)

	idleDays := now.Sub(tm.LastActivity).Hours() / 24
	if tm.LastActivity.IsZero() {
		idleDays = ageDays
	}
	idlePenalty := 1.0
	if idleDays > 30 {
		idlePenalty = math.Max(0, 1-(idleDays-30)/365)
	}

	regularity := activityRegularity(tm.ActivityStamp)

	return clamp01(0.4*ageFactor + 0.3*idlePenalty + 0.3*regularity)
}

// activityRegularity scores 1.0 for evenly spaced activity and decays
// toward 0 for tightly clustered bursts, via the coefficient of variation
// of inter-event gaps (§4.1 "penalizes ... bursty, clustered-in-time
// activity").
func activityRegularity(stamps []time.Time) float64 {
	if len(stamps) < 3 {
		return 0.5
	}
	sorted := append([]time.Time(nil), stamps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].Sub(sorted[i-1]).Seconds())
	}
	mean := 0.0
	for _, g := range gaps {
		mean += g
	}
	mean /= float64(len(gaps))
	if mean == 0 {
		return 0 // every event at the same instant: maximally bursty
	}
	variance := 0.0
	for _, g := range gaps {
		d := g - mean
		variance += d * d
	}
	variance /= float64(len(gaps))
	cv := math.Sqrt(variance) / mean
	return clamp01(1 / (1 + cv))
}

// wotPath is one directed trail from viewer to target.
type wotPath struct {
	addrs    []Address
	strength float64
}

// findPaths does a depth-bounded DFS over outgoing trust edges (§4.1:
// "searching up to WOT_MAX_DEPTH directed paths from viewer to target").
func (s *HATScorer) findPaths(viewer, target Address, maxDepth int) []wotPath {
	var paths []wotPath
	visited := map[Address]bool{viewer: true}
	var walk func(cur Address, depth int, product float64, trail []Address)
	walk = func(cur Address, depth int, product float64, trail []Address) {
		if depth > maxDepth {
			return
		}
		for _, e := range s.graph.Outgoing(cur) {
			if e.Slashed || e.Weight == 0 {
				continue
			}
			if visited[e.To] {
				continue
			}
			nextProduct := product * (float64(e.Weight) / 100)
			nextTrail := append(append([]Address(nil), trail...), e.To)
			if e.To == target {
				paths = append(paths, wotPath{addrs: nextTrail, strength: nextProduct / float64(len(nextTrail))})
				continue
			}
			visited[e.To] = true
			walk(e.To, depth+1, nextProduct, nextTrail)
			delete(visited, e.To)
		}
	}
	walk(viewer, 1, 1.0, []Address{viewer})
	return paths
}

// wotComponent aggregates paths with diminishing returns, a cluster penalty
// when >= clusterPathThreshold paths terminate through the same wallet
// cluster, and a centrality bonus for reaching target via diverse sources
// (§4.1).
func (s *HATScorer) wotComponent(paths []wotPath, target Address) (component float64, avgStrength float64) {
	if len(paths) == 0 {
		return 0, 0
	}
	total := 0.0
	sourceClusters := make(map[string]int)
	for _, p := range paths {
		total += math.Abs(p.strength)
		if s.cluster != nil && len(p.addrs) > 1 {
			sourceClusters[s.cluster.ClusterOf(p.addrs[len(p.addrs)-2])]++
		}
	}
	avgStrength = total / float64(len(paths))

	base := diminishingReturns(total, float64(len(paths)))

	clusterPenalty := 1.0
	for id, n := range sourceClusters {
		if id != "" && n >= clusterPathThreshold {
			clusterPenalty = 0.7
			break
		}
	}

	diversity := float64(len(distinctFirstHops(paths)))
	centralityBonus := 1.0 + 0.05*math.Min(diversity-1, 4)
	if diversity <= 1 {
		centralityBonus = 1.0
	}

	weighted := clamp01(base * clusterPenalty * centralityBonus)
	if negativePathMajority(paths) {
		// Net-negative trust still earns a score in [0,1], per the
		// component-score invariant; a stronger negative consensus (higher
		// weighted magnitude) pushes it closer to 0 rather than letting it
		// go negative.
		return wotNegativeTrustCeiling * (1 - weighted), avgStrength
	}

	return weighted, avgStrength
}

func distinctFirstHops(paths []wotPath) map[Address]bool {
	out := make(map[Address]bool)
	for _, p := range paths {
		if len(p.addrs) > 1 {
			out[p.addrs[1]] = true
		}
	}
	return out
}

func negativePathMajority(paths []wotPath) bool {
	neg := 0
	for _, p := range paths {
		if p.strength < 0 {
			neg++
		}
	}
	return neg*2 > len(paths)
}

// diminishingReturns maps a non-negative raw value onto [0,1] with
// logarithmic diminishing returns; it reaches 1 at value == scale and is
// clamped to 1 beyond that.
func diminishingReturns(value, scale float64) float64 {
	if scale <= 0 || value <= 0 {
		return 0
	}
	return clamp01(math.Log1p(value/scale) / math.Log1p(1))
}

// logistic is a standard sigmoid centered at midpoint with the given scale.
func logistic(value, midpoint, scale float64) float64 {
	if scale <= 0 {
		scale = 1
	}
	return 1 / (1 + math.Exp(-(value-midpoint)/scale))
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// roundHalfAwayFromZero fixes the rounding mode so repeated evaluation of
// identical inputs always agrees exactly (§4.1 determinism requirement).
func roundHalfAwayFromZero(v float64) int {
	if v >= 0 {
		return int(math.Floor(v + 0.5))
	}
	return int(math.Ceil(v - 0.5))
}
