package core

// Wallet Clusterer (§2 component B, §3 WalletCluster): heuristic grouping of
// addresses presumed to belong to one entity. Membership is maintained as an
// equivalence relation — clusters may merge but never split silently.

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// WalletClusterer owns cluster membership. Exclusive lock per §5.
type WalletClusterer struct {
	mu       sync.RWMutex
	log      *logrus.Logger
	st       *Store
	clusters map[string]*WalletCluster
	member   map[Address]string // address -> cluster_id
}

// NewWalletClusterer constructs a clusterer backed by st.
func NewWalletClusterer(st *Store, log *logrus.Logger) *WalletClusterer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WalletClusterer{
		log:      log,
		st:       st,
		clusters: make(map[string]*WalletCluster),
		member:   make(map[Address]string),
	}
}

// ClusterOf returns the cluster_id containing addr, or "" if addr belongs to
// no known cluster (a singleton of itself).
func (c *WalletClusterer) ClusterOf(addr Address) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.member[addr]
}

// Members returns every address in addr's cluster, or just {addr} if addr
// belongs to no cluster.
func (c *WalletClusterer) Members(addr Address) []Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.member[addr]
	if !ok {
		return []Address{addr}
	}
	cl := c.clusters[id]
	out := make([]Address, 0, len(cl.Members))
	for m := range cl.Members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Propose merges addr into target's cluster (creating one if target has
// none), the heuristic-match growth path named in §3's WalletCluster
// lifecycle ("grows on heuristic match").
func (c *WalletClusterer) Propose(target, addr Address, confidence float64) (string, error) {
	if confidence < 0 || confidence > 1 {
		return "", fmt.Errorf("%w: confidence out of range", ErrInvalidState)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.member[target]
	if !ok {
		id = uuid.New().String()
		c.clusters[id] = &WalletCluster{ClusterID: id, Members: map[Address]bool{target: true}, Confidence: confidence}
		c.member[target] = id
	}
	cl := c.clusters[id]
	if existing, already := c.member[addr]; already && existing != id {
		return c.mergeLocked(existing, id, confidence)
	}
	cl.Members[addr] = true
	c.member[addr] = id
	if confidence < cl.Confidence {
		cl.Confidence = confidence // conservative: confidence of the weakest evidence
	}
	return id, c.persistLocked(cl)
}

// Merge combines two clusters into one, per §4.6 "on cluster merge", and
// returns the surviving cluster_id. The survivor is always the
// lexicographically smaller of the two ids, whichever order they are passed
// in, so independently-built graphs converge (§8 property 7). The merged
// cluster keeps the lower of the two confidences.
func (c *WalletClusterer) Merge(c1, c2 string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergeLocked(c1, c2, 0)
}

func (c *WalletClusterer) mergeLocked(c1, c2 string, minConfidence float64) (string, error) {
	if c1 == c2 {
		return c1, nil
	}
	a, ok1 := c.clusters[c1]
	b, ok2 := c.clusters[c2]
	if !ok1 || !ok2 {
		return "", ErrNotFound
	}
	survivor, absorbed := a, b
	if c2 < c1 {
		survivor, absorbed = b, a
	}
	for m := range absorbed.Members {
		survivor.Members[m] = true
		c.member[m] = survivor.ClusterID
	}
	if absorbed.Confidence < survivor.Confidence {
		survivor.Confidence = absorbed.Confidence
	}
	if minConfidence > 0 && minConfidence < survivor.Confidence {
		survivor.Confidence = minConfidence
	}
	delete(c.clusters, absorbed.ClusterID)
	if c.st != nil {
		_ = c.st.Delete(keyWithString("cluster:", absorbed.ClusterID))
	}
	return survivor.ClusterID, c.persistLocked(survivor)
}

func (c *WalletClusterer) persistLocked(cl *WalletCluster) error {
	if c.st == nil {
		return nil
	}
	raw, err := json.Marshal(cl)
	if err != nil {
		return err
	}
	return c.st.Set(keyWithString("cluster:", cl.ClusterID), raw)
}

// Size returns the member count of addr's cluster (1 if it has none).
func (c *WalletClusterer) Size(addr Address) int {
	return len(c.Members(addr))
}
