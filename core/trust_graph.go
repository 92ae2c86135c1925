package core

// Trust Graph (§2 component A, §3 TrustEdge, §4.6 invariants): a typed
// directed graph of bonded trust edges, persisted flat and keyed by (from, to)
// (§9 "arena addressing" design note) and mirrored in in-memory outgoing and
// incoming maps for enumeration — depth-bounded traversal replaces unbounded
// recursion.

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Bond economics (§3 invariants).
const (
	MinBond      uint64 = 1_000_000 // smallest bonded-vote stake, in satoshi-equivalent units
	BondPerPoint uint64 = 10_000    // bond required per point of |weight|
)

// TrustGraph owns every TrustEdge. Exclusive lock per component per §5.
type TrustGraph struct {
	mu  sync.RWMutex
	log *logrus.Logger
	st  *Store

	// in-memory index mirrors the persisted T-prefixed keys for O(1)
	// incoming/outgoing enumeration without a full prefix scan per query.
	out map[Address]map[Address]*TrustEdge
	in  map[Address]map[Address]*TrustEdge
}

// NewTrustGraph constructs a graph backed by st, replaying any persisted
// edges into the in-memory index.
func NewTrustGraph(st *Store, log *logrus.Logger) (*TrustGraph, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	g := &TrustGraph{
		log: log,
		st:  st,
		out: make(map[Address]map[Address]*TrustEdge),
		in:  make(map[Address]map[Address]*TrustEdge),
	}
	if st == nil {
		return g, nil
	}
	it, err := st.Iterator([]byte{PrefixTrustEdge})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for it.Valid() {
		var e TrustEdge
		if err := json.Unmarshal(it.Value(), &e); err == nil {
			g.index(&e)
		}
		it.Next()
	}
	return g, it.Error()
}

func (g *TrustGraph) index(e *TrustEdge) {
	if g.out[e.From] == nil {
		g.out[e.From] = make(map[Address]*TrustEdge)
	}
	g.out[e.From][e.To] = e
	if g.in[e.To] == nil {
		g.in[e.To] = make(map[Address]*TrustEdge)
	}
	g.in[e.To][e.From] = e
}

func (g *TrustGraph) unindex(from, to Address) {
	delete(g.out[from], to)
	delete(g.in[to], from)
}

// validateBond enforces "weight != 0 => bond_amount >= MIN_BOND" and
// "bond_amount >= |weight| * BOND_PER_POINT" (§3 TrustEdge invariants).
func validateBond(weight int8, bond uint64) error {
	if weight == 0 {
		return nil
	}
	if bond < MinBond {
		return fmt.Errorf("%w: bond %d below minimum %d", ErrInvalidState, bond, MinBond)
	}
	abs := uint64(weight)
	if weight < 0 {
		abs = uint64(-weight)
	}
	if bond < abs*BondPerPoint {
		return fmt.Errorf("%w: bond %d insufficient for weight %d", ErrInvalidState, bond, weight)
	}
	return nil
}

// PutEdge creates or overwrites the edge (from, to), enforcing §3's bond
// invariant and persisting in a single atomic write.
func (g *TrustGraph) PutEdge(e TrustEdge) error {
	if err := validateBond(e.Weight, e.BondAmount); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.out[e.From][e.To]; ok && existing.Slashed && !e.Slashed {
		return fmt.Errorf("%w: slashed edges are monotonic", ErrInvalidState)
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if g.st != nil {
		if err := g.st.Set(keyWithAddrPair(PrefixTrustEdge, e.From, e.To), raw); err != nil {
			return err
		}
	}
	cp := e
	g.index(&cp)
	g.log.WithFields(logrus.Fields{"from": e.From, "to": e.To, "weight": e.Weight}).Debug("trust_graph: edge written")
	return nil
}

// DeleteEdge removes an edge. Per §3, deletion is only ever performed by an
// authoritative rewrite (e.g. a DAO-confirmed correction), never ad hoc.
func (g *TrustGraph) DeleteEdge(from, to Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.st != nil {
		if err := g.st.Delete(keyWithAddrPair(PrefixTrustEdge, from, to)); err != nil {
			return err
		}
	}
	g.unindex(from, to)
	return nil
}

// Edge returns the edge (from, to) if present.
func (g *TrustGraph) Edge(from, to Address) (TrustEdge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.out[from][to]
	if !ok {
		return TrustEdge{}, false
	}
	return *e, true
}

// Outgoing enumerates every edge originating at addr, sorted by target for
// determinism across nodes.
func (g *TrustGraph) Outgoing(addr Address) []TrustEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]TrustEdge, 0, len(g.out[addr]))
	for _, e := range g.out[addr] {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].To.String() < out[j].To.String() })
	return out
}

// Incoming enumerates every edge terminating at addr, sorted by source for
// determinism across nodes.
func (g *TrustGraph) Incoming(addr Address) []TrustEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]TrustEdge, 0, len(g.in[addr]))
	for _, e := range g.in[addr] {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From.String() < out[j].From.String() })
	return out
}

// WeightedReputation sums the incoming edge weights for addr, a cheap
// aggregate used by detectors and the economic-adjacent checks; it is not
// itself a HAT v2 component.
func (g *TrustGraph) WeightedReputation(addr Address) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	total := 0
	for _, e := range g.in[addr] {
		if !e.Slashed {
			total += int(e.Weight)
		}
	}
	return total
}

// EdgeCount returns the total number of live (non-tombstoned) edges, used by
// the Consensus-Safety trust-graph state hash (§4.5 step 3).
func (g *TrustGraph) EdgeCount() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var n uint64
	for _, m := range g.out {
		n += uint64(len(m))
	}
	return n
}

// SlashedCount returns the number of edges currently marked slashed.
func (g *TrustGraph) SlashedCount() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var n uint64
	for _, m := range g.out {
		for _, e := range m {
			if e.Slashed {
				n++
			}
		}
	}
	return n
}

// RecordBondedVote turns a bonded-vote envelope into a TrustEdge, per §3
// BondedVote lifecycle ("spawns or updates a TrustEdge").
func (g *TrustGraph) RecordBondedVote(v BondedVote) error {
	e := TrustEdge{
		From:       v.Voter,
		To:         v.Target,
		Weight:     v.Value,
		BondAmount: v.Bond,
		BondTx:     v.Tx,
		Timestamp:  v.Timestamp,
		Reason:     "bonded_vote",
	}
	return g.PutEdge(e)
}

// SlashEdge marks an edge slashed following a DAO ruling (§3: "slashed is
// monotonic").
func (g *TrustGraph) SlashEdge(from, to Address) error {
	g.mu.Lock()
	e, ok := g.out[from][to]
	g.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	cp := *e
	cp.Slashed = true
	return g.PutEdge(cp)
}
