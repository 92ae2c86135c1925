package core

// Trust-Graph Manipulation Detector (§2 component F, §4.4 last subsection):
// detects artificial path creation, circular trust rings, rapid
// accumulation, coordinated boosts, intra-cluster Sybil density, trust
// washing, and reciprocal abuse, plus the exposed trust_graph_health_score.
// Grounded directly on original_source/src/cvm/trust_graph_manipulation_detector.cpp
// (AnalyzeAddress / FindCircularPath / CalculateTimeClusteringScore /
// CalculateTrustGraphHealthScore), translated from its uint160/CVMDatabase
// idiom into the package's Address/Store idiom.

import (
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"
)

// Manipulation-pattern thresholds (§4.4).
const (
	GenuineHistoryMinAgeDays       = 7
	GenuineHistoryMinActivity      = 5
	GenuineHistoryMinCounterparties = 3

	ArtificialPathConfidence = 0.60

	CircularRingMaxDepth = 6

	RapidAccumulationEdgesPerHour  = 5.0
	RapidAccumulationWeightPerHour = 200.0

	CoordinatedTimeWindow        = time.Hour
	CoordinatedBoostMinEdges     = 3
	CoordinatedBoostIntraCluster = 0.30

	IntraClusterSybilDensity  = 0.30
	IntraClusterSybilMinEdges = 3

	TrustWashingWindow = 24 * time.Hour

	ReciprocalWeightDiffMax  = 10
	ReciprocalTimeDiffMax    = time.Hour
	ReciprocalActivityMax    = 10
)

// ManipulationResult mirrors the original's TrustManipulationResult: a set
// of named findings with an overall confidence and the addresses involved.
type ManipulationResult struct {
	Address    Address   `json:"address"`
	Findings   []string  `json:"findings"`
	Confidence float64   `json:"confidence"`
	Suspects   []Address `json:"suspects"`
	Timestamp  time.Time `json:"timestamp"`
}

// ActivityProvider supplies the genuine-history predicate's external facts
// (account age, activity count, distinct counterparties) that the trust
// graph alone doesn't carry.
type ActivityProvider interface {
	AccountAgeDays(addr Address) float64
	ActivityCount(addr Address) int
	UniqueCounterparties(addr Address) int
}

// TrustGraphDetector runs the §4.4 manipulation checks against a TrustGraph.
// Read-only; flags are persisted separately from the graph itself.
type TrustGraphDetector struct {
	mu      sync.Mutex
	graph   *TrustGraph
	cluster *WalletClusterer
	act     ActivityProvider
	st      *Store
	flagged map[Address]ManipulationResult
	now     func() time.Time
}

// NewTrustGraphDetector constructs a detector over graph/cluster, persisting
// flags through st.
func NewTrustGraphDetector(graph *TrustGraph, cluster *WalletClusterer, act ActivityProvider, st *Store) *TrustGraphDetector {
	return &TrustGraphDetector{
		graph:   graph,
		cluster: cluster,
		act:     act,
		st:      st,
		flagged: make(map[Address]ManipulationResult),
		now:     time.Now,
	}
}

func genuineHistory(act ActivityProvider, addr Address) bool {
	if act == nil {
		return false
	}
	return act.AccountAgeDays(addr) >= GenuineHistoryMinAgeDays &&
		act.ActivityCount(addr) >= GenuineHistoryMinActivity &&
		act.UniqueCounterparties(addr) >= GenuineHistoryMinCounterparties
}

// AnalyzeAddress runs every manipulation check for target and returns the
// combined result, flagging target if any check fires (§4.4).
func (d *TrustGraphDetector) AnalyzeAddress(target Address) ManipulationResult {
	result := ManipulationResult{Address: target, Timestamp: d.now().UTC()}
	incoming := d.graph.Incoming(target)

	if f, conf, suspects := d.artificialPathCreation(target, incoming); f {
		result.Findings = append(result.Findings, "ARTIFICIAL_PATH_CREATION")
		result.Confidence = math.Max(result.Confidence, conf)
		result.Suspects = append(result.Suspects, suspects...)
	}
	if cycle, ok := d.findCircularPath(target, target, CircularRingMaxDepth, map[Address]bool{}); ok {
		result.Findings = append(result.Findings, "CIRCULAR_TRUST_RING")
		result.Confidence = math.Max(result.Confidence, 0.70)
		result.Suspects = append(result.Suspects, cycle...)
	}
	if f, conf := d.rapidAccumulation(incoming, time.Hour); f {
		result.Findings = append(result.Findings, "RAPID_ACCUMULATION")
		result.Confidence = math.Max(result.Confidence, conf)
	}
	if f, conf, suspects := d.coordinatedBoost(target, incoming); f {
		result.Findings = append(result.Findings, "COORDINATED_BOOST")
		result.Confidence = math.Max(result.Confidence, conf)
		result.Suspects = append(result.Suspects, suspects...)
	}
	if f, conf := d.intraClusterSybil(target); f {
		result.Findings = append(result.Findings, "INTRA_CLUSTER_SYBIL")
		result.Confidence = math.Max(result.Confidence, conf)
	}
	if f, conf, suspects := d.trustWashing(target, incoming); f {
		result.Findings = append(result.Findings, "TRUST_WASHING")
		result.Confidence = math.Max(result.Confidence, conf)
		result.Suspects = append(result.Suspects, suspects...)
	}
	if f, conf, suspects := d.reciprocalAbuse(target); f {
		result.Findings = append(result.Findings, "RECIPROCAL_ABUSE")
		result.Confidence = math.Max(result.Confidence, conf)
		result.Suspects = append(result.Suspects, suspects...)
	}

	if len(result.Findings) > 0 {
		d.flag(target, result)
	}
	return result
}

// artificialPathCreation combines time-clustering, weight-similarity and a
// suspicious-source ratio (§4.4).
func (d *TrustGraphDetector) artificialPathCreation(target Address, incoming []TrustEdge) (bool, float64, []Address) {
	if len(incoming) == 0 {
		return false, 0, nil
	}
	timeScore := timeClusteringScore(incoming)
	weightScore := weightSimilarityScore(incoming)

	var suspicious []Address
	for _, e := range incoming {
		if !genuineHistory(d.act, e.From) {
			suspicious = append(suspicious, e.From)
		}
	}
	suspiciousRatio := float64(len(suspicious)) / float64(len(incoming))

	confidence := timeScore*0.3 + weightScore*0.3 + suspiciousRatio*0.4
	if confidence >= ArtificialPathConfidence {
		return true, confidence, suspicious
	}
	return false, confidence, nil
}

// timeClusteringScore: low coefficient of variation of inter-arrival times
// means the edges are clustered (suspicious). Score is 1-cv, clamped.
func timeClusteringScore(edges []TrustEdge) float64 {
	if len(edges) < 2 {
		return 0
	}
	sorted := append([]TrustEdge(nil), edges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	diffs := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		diffs = append(diffs, sorted[i].Timestamp.Sub(sorted[i-1].Timestamp).Seconds())
	}
	mean := 0.0
	for _, v := range diffs {
		mean += v
	}
	mean /= float64(len(diffs))
	if mean == 0 {
		return 1
	}
	var variance float64
	for _, v := range diffs {
		dv := v - mean
		variance += dv * dv
	}
	variance /= float64(len(diffs))
	cv := math.Sqrt(variance) / mean
	return clamp01(1 - cv)
}

func weightSimilarityScore(edges []TrustEdge) float64 {
	if len(edges) < 2 {
		return 0
	}
	mean := 0.0
	for _, e := range edges {
		mean += float64(e.Weight)
	}
	mean /= float64(len(edges))
	var variance float64
	for _, e := range edges {
		dv := float64(e.Weight) - mean
		variance += dv * dv
	}
	variance /= float64(len(edges))
	stddev := math.Sqrt(variance)
	// Low spread in weight relative to the possible [-100,100] range means
	// the edges look copy-pasted rather than independently formed.
	return clamp01(1 - stddev/50)
}

// findCircularPath is a depth-bounded DFS looking for a cycle returning to
// start (§4.4 "Circular trust ring").
func (d *TrustGraphDetector) findCircularPath(start, current Address, depthLeft int, visited map[Address]bool) ([]Address, bool) {
	if depthLeft == 0 {
		return nil, false
	}
	for _, e := range d.graph.Outgoing(current) {
		if e.Weight == 0 || e.Slashed {
			continue
		}
		if e.To == start {
			return []Address{current, e.To}, true
		}
		if visited[e.To] {
			continue
		}
		visited[e.To] = true
		if path, ok := d.findCircularPath(start, e.To, depthLeft-1, visited); ok {
			return append([]Address{current}, path...), true
		}
		delete(visited, e.To)
	}
	return nil, false
}

// rapidAccumulation flags >5 edges/hour or >200 weight/hour (§4.4).
func (d *TrustGraphDetector) rapidAccumulation(incoming []TrustEdge, window time.Duration) (bool, float64) {
	if len(incoming) == 0 {
		return false, 0
	}
	cutoff := d.now().UTC().Add(-window)
	count, totalWeight := 0, 0
	for _, e := range incoming {
		if e.Timestamp.After(cutoff) {
			count++
			totalWeight += abs8(e.Weight)
		}
	}
	hours := window.Hours()
	edgesPerHour := float64(count) / hours
	weightPerHour := float64(totalWeight) / hours

	edgeScore := math.Min(1, edgesPerHour/RapidAccumulationEdgesPerHour)
	weightScore := math.Min(1, weightPerHour/RapidAccumulationWeightPerHour)
	confidence := edgeScore*0.5 + weightScore*0.5
	return edgesPerHour > RapidAccumulationEdgesPerHour || weightPerHour > RapidAccumulationWeightPerHour, confidence
}

// coordinatedBoost flags >=3 edges landing in the same sliding window with
// >=30% intra-cluster source pairs (§4.4).
func (d *TrustGraphDetector) coordinatedBoost(target Address, incoming []TrustEdge) (bool, float64, []Address) {
	if len(incoming) < CoordinatedBoostMinEdges {
		return false, 0, nil
	}
	sorted := append([]TrustEdge(nil), incoming...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	for i := 0; i < len(sorted); i++ {
		var group []TrustEdge
		for j := i; j < len(sorted); j++ {
			if sorted[j].Timestamp.Sub(sorted[i].Timestamp) > CoordinatedTimeWindow {
				break
			}
			group = append(group, sorted[j])
		}
		if len(group) < CoordinatedBoostMinEdges {
			continue
		}
		pairs, intraCluster := 0, 0
		for a := 0; a < len(group); a++ {
			for b := a + 1; b < len(group); b++ {
				pairs++
				if d.cluster != nil && d.cluster.ClusterOf(group[a].From) != "" &&
					d.cluster.ClusterOf(group[a].From) == d.cluster.ClusterOf(group[b].From) {
					intraCluster++
				}
			}
		}
		if pairs == 0 {
			continue
		}
		frac := float64(intraCluster) / float64(pairs)
		if frac >= CoordinatedBoostIntraCluster {
			suspects := make([]Address, 0, len(group))
			for _, e := range group {
				suspects = append(suspects, e.From)
			}
			return true, math.Min(1, frac+0.3), suspects
		}
	}
	return false, 0, nil
}

// intraClusterSybil computes trust density within addr's wallet cluster
// (§4.4).
func (d *TrustGraphDetector) intraClusterSybil(addr Address) (bool, float64) {
	if d.cluster == nil {
		return false, 0
	}
	members := d.cluster.Members(addr)
	if len(members) < 2 {
		return false, 0
	}
	memberSet := make(map[Address]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	intraEdges := 0
	for _, m := range members {
		for _, e := range d.graph.Outgoing(m) {
			if memberSet[e.To] && e.To != m {
				intraEdges++
			}
		}
	}
	maxPossible := len(members) * (len(members) - 1)
	if maxPossible == 0 {
		return false, 0
	}
	density := float64(intraEdges) / float64(maxPossible)
	return density >= IntraClusterSybilDensity && intraEdges >= IntraClusterSybilMinEdges, density
}

// trustWashing flags an intermediary that received trust and re-emitted it
// to target within 24h (§4.4).
func (d *TrustGraphDetector) trustWashing(target Address, incoming []TrustEdge) (bool, float64, []Address) {
	var suspects []Address
	for _, e := range incoming {
		for _, upstream := range d.graph.Incoming(e.From) {
			if e.Timestamp.Sub(upstream.Timestamp) >= 0 && e.Timestamp.Sub(upstream.Timestamp) <= TrustWashingWindow {
				suspects = append(suspects, e.From)
			}
		}
	}
	if len(suspects) == 0 {
		return false, 0, nil
	}
	confidence := math.Min(1, float64(len(suspects))/5)
	return true, confidence, suspects
}

// reciprocalAbuse flags bidirectional edges with small weight/time diff
// where at least one party has thin activity (§4.4).
func (d *TrustGraphDetector) reciprocalAbuse(addr Address) (bool, float64, []Address) {
	var pairs []Address
	for _, out := range d.graph.Outgoing(addr) {
		back, ok := d.graph.Edge(out.To, addr)
		if !ok {
			continue
		}
		weightDiff := abs8(out.Weight - back.Weight)
		timeDiff := out.Timestamp.Sub(back.Timestamp)
		if timeDiff < 0 {
			timeDiff = -timeDiff
		}
		activityLow := d.act != nil && d.act.ActivityCount(out.To) < ReciprocalActivityMax
		if weightDiff <= ReciprocalWeightDiffMax && timeDiff <= ReciprocalTimeDiffMax && activityLow {
			pairs = append(pairs, out.To)
		}
	}
	if len(pairs) == 0 {
		return false, 0, nil
	}
	return true, math.Min(1, float64(len(pairs))/3), pairs
}

func abs8(v int8) int {
	if v < 0 {
		return int(-v)
	}
	return int(v)
}

// CalculateHealthScore exposes trust_graph_health_score in [0,100]: a
// penalty-weighted combination of the address's live manipulation findings
// and its raw weighted reputation (§4.4).
func (d *TrustGraphDetector) CalculateHealthScore(addr Address) int {
	base := 100
	d.mu.Lock()
	result, flagged := d.flagged[addr]
	d.mu.Unlock()
	if flagged {
		base -= int(20 * float64(len(result.Findings)))
	}
	rep := d.graph.WeightedReputation(addr)
	if rep < 0 {
		base += rep // negative reputation drags the score down further
	}
	return clampScore(base)
}

func (d *TrustGraphDetector) flag(addr Address, result ManipulationResult) {
	d.mu.Lock()
	d.flagged[addr] = result
	d.mu.Unlock()
	if d.st == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = d.st.Set(append([]byte{PrefixAlert}, keyWithString(KeyNamespaceFlag, addr.String())...), raw)
}

// IsFlagged reports whether addr currently carries a manipulation flag.
func (d *TrustGraphDetector) IsFlagged(addr Address) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.flagged[addr]
	return ok
}

// Unflag clears addr's manipulation flag, e.g. after a DAO review clears it.
func (d *TrustGraphDetector) Unflag(addr Address) {
	d.mu.Lock()
	delete(d.flagged, addr)
	d.mu.Unlock()
	if d.st != nil {
		_ = d.st.Delete(append([]byte{PrefixAlert}, keyWithString(KeyNamespaceFlag, addr.String())...))
	}
}
