package core

// Persistence layer (§6, component K): a single sorted byte-key space with
// prefix scans and atomic batch commits. Backed by cometbft-db, the same KV
// abstraction certenIO-certen-validator/pkg/kvdb wraps over a CometBFT
// dbm.DB — here opened directly against its goleveldb implementation, which
// gives the sorted-key-space and atomic-batch guarantees §5 and §6 require
// without hand-rolling a WAL.

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/sirupsen/logrus"
)

// Key-space prefixes, one byte discriminators per §6.
const (
	PrefixTrustEdge      = byte('T')
	PrefixBondedVote     = byte('V')
	PrefixPropagated     = byte('P')
	PrefixPropagationIdx = byte('I')
	PrefixClusterCache   = byte('C')
	PrefixAlert          = byte('Z')
	PrefixDispute        = byte('D')
	PrefixFraud          = byte('F')
	PrefixValidatorStats = byte('S')
	PrefixSession        = byte('E')
)

const (
	KeyNamespaceFlag    = "flag:"
	KeyNamespacePenalty = "penalty:"
)

// Store wraps a cometbft-db backend behind the package's KVStore contract.
type Store struct {
	db  dbm.DB
	log *logrus.Logger
	mu  sync.Mutex // not taken by any Store method; atomicity comes from Batch.Write
}

// KVStore is the typed key-value contract every component persists through.
// Mirrors the shape the teacher exposes via core.CurrentStore(), generalized
// to a real embedded backend instead of an in-memory map.
type KVStore interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	NewBatch() Batch
	Iterator(prefix []byte) (Iterator, error)
	Close() error
}

// Batch groups writes pertaining to one externally observable event into a
// single atomic commit (§5 "Shared resources").
type Batch interface {
	Set(key, value []byte) error
	Delete(key []byte) error
	Write() error
	Close() error
}

// Iterator walks a sorted key range. Close must always be called.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// NewStore opens (or creates) a persistence store at dir using the named
// cometbft-db backend ("goleveldb" in production, "memdb" for tests).
func NewStore(name, dir, backend string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	bt := dbm.BackendType(backend)
	db, err := dbm.NewDB(name, bt, dir)
	if err != nil {
		return nil, fmt.Errorf("store: open %s (%s): %w", name, backend, err)
	}
	log.Infof("store: opened %s backend=%s dir=%s", name, backend, dir)
	return &Store{db: db, log: log}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return v, nil
}

func (s *Store) Set(key, value []byte) error {
	if err := s.db.SetSync(key, value); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *Store) Delete(key []byte) error {
	if err := s.db.DeleteSync(key); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *Store) Has(key []byte) (bool, error) {
	ok, err := s.db.Has(key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return ok, nil
}

func (s *Store) NewBatch() Batch {
	return &batchAdapter{b: s.db.NewBatch()}
}

// Iterator returns a sorted iterator over every key sharing the given
// prefix; deletes committed through Batch.Delete surface as tombstones
// (absence), matching §6 "deletes are tombstones on commit".
func (s *Store) Iterator(prefix []byte) (Iterator, error) {
	end := prefixUpperBound(prefix)
	it, err := s.db.Iterator(prefix, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &iterAdapter{it: it}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// prefixUpperBound returns the smallest key greater than every key sharing
// prefix, or nil if prefix is all 0xFF (unbounded scan).
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

type batchAdapter struct{ b dbm.Batch }

func (a *batchAdapter) Set(key, value []byte) error    { return a.b.Set(key, value) }
func (a *batchAdapter) Delete(key []byte) error         { return a.b.Delete(key) }
func (a *batchAdapter) Write() error                    { return a.b.WriteSync() }
func (a *batchAdapter) Close() error                    { return a.b.Close() }

type iterAdapter struct{ it dbm.Iterator }

func (a *iterAdapter) Valid() bool      { return a.it.Valid() }
func (a *iterAdapter) Next()            { a.it.Next() }
func (a *iterAdapter) Key() []byte      { return a.it.Key() }
func (a *iterAdapter) Value() []byte    { return a.it.Value() }
func (a *iterAdapter) Error() error     { return a.it.Error() }
func (a *iterAdapter) Close() error     { return a.it.Close() }

//---------------------------------------------------------------------
// Global accessor, mirroring the teacher's CurrentStore()/appStore idiom.
//---------------------------------------------------------------------

var (
	storeOnce sync.Once
	appStore  *Store
)

// InitStore wires the global store used by every component's package-level
// helpers. Safe to call multiple times; only the first call has effect.
func InitStore(s *Store) {
	storeOnce.Do(func() { appStore = s })
}

// CurrentStore returns the globally configured store, or nil if InitStore
// has not run yet.
func CurrentStore() *Store { return appStore }

// ResetStoreForTest clears the global singleton so tests can install a fresh
// in-memory store between cases. Never call this from production code.
func ResetStoreForTest(s *Store) {
	appStore = s
	storeOnce = sync.Once{}
}

// keyWithAddrPair builds a "<prefix><from><to>" key, used by TrustEdge,
// PropagatedTrustEdge and the propagation index (§6).
func keyWithAddrPair(prefix byte, from, to Address) []byte {
	k := make([]byte, 1+20+20)
	k[0] = prefix
	copy(k[1:21], from[:])
	copy(k[21:41], to[:])
	return k
}

func keyWithHash(prefix byte, h Hash256) []byte {
	k := make([]byte, 1+32)
	k[0] = prefix
	copy(k[1:], h[:])
	return k
}

func keyWithAddr(prefix byte, a Address) []byte {
	k := make([]byte, 1+20)
	k[0] = prefix
	copy(k[1:], a[:])
	return k
}

func keyWithString(ns string, id string) []byte {
	return append([]byte(ns), []byte(id)...)
}

var errStoreNil = errors.New("cvm: store not initialised")

func mustStore() (*Store, error) {
	s := CurrentStore()
	if s == nil {
		return nil, errStoreNil
	}
	return s, nil
}

// hasPrefix is a thin wrapper over bytes.HasPrefix; nothing in the package
// calls it, since Iterator bounds its scans with prefixUpperBound instead.
func hasPrefix(key, prefix []byte) bool { return bytes.HasPrefix(key, prefix) }
