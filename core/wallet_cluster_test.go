package core

import "testing"

func TestProposeCreatesClusterAndGrows(t *testing.T) {
	st := newTestStore(t)
	c := NewWalletClusterer(st, nil)

	id, err := c.Propose(addr(1), addr(2), 0.9)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if id == "" {
		t.Fatalf("expected non-empty cluster id")
	}
	members := c.Members(addr(1))
	if len(members) != 2 {
		t.Fatalf("Members length = %d, want 2", len(members))
	}
}

func TestProposeTakesConservativeConfidence(t *testing.T) {
	st := newTestStore(t)
	c := NewWalletClusterer(st, nil)

	if _, err := c.Propose(addr(1), addr(2), 0.9); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if _, err := c.Propose(addr(1), addr(3), 0.4); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	id := c.ClusterOf(addr(1))
	cl := c.clusters[id]
	if cl.Confidence != 0.4 {
		t.Fatalf("Confidence = %v, want 0.4 (conservative minimum)", cl.Confidence)
	}
}

func TestMergeSurvivorIsLexicographicallySmaller(t *testing.T) {
	st := newTestStore(t)
	c := NewWalletClusterer(st, nil)

	id1, _ := c.Propose(addr(1), addr(2), 1.0)
	id2, _ := c.Propose(addr(3), addr(4), 1.0)

	survivor, err := c.Merge(id1, id2)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	want := id1
	if id2 < id1 {
		want = id2
	}
	if survivor != want {
		t.Fatalf("Merge survivor = %q, want %q", survivor, want)
	}
	if len(c.Members(addr(1))) != 4 {
		t.Fatalf("expected merged cluster to contain all 4 members")
	}
}

func TestMergeSameClusterIsNoop(t *testing.T) {
	st := newTestStore(t)
	c := NewWalletClusterer(st, nil)
	id, _ := c.Propose(addr(1), addr(2), 1.0)
	survivor, err := c.Merge(id, id)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if survivor != id {
		t.Fatalf("Merge(id, id) = %q, want %q", survivor, id)
	}
}
