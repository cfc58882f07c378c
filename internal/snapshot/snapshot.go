// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package snapshot caches coreference-compressed graphs in BadgerDB, keyed
// by a content hash of the input records and clusters, so an unchanged
// knowledge base is not compressed twice.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

const prefixGraph = "graph/"

// Cache is a badger-backed store of compressed graph records.
type Cache struct {
	db *badger.DB
}

// Open opens or creates a cache in dir.
func Open(dir string) (*Cache, error) {
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory opens a cache that is discarded on Close.
func OpenInMemory() (*Cache, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Cache, error) {
	opts = opts.
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close flushes and closes the cache.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key hashes the records and clusters that determine a compressed graph.
// Record order matters; callers pass records as read.
func Key(raw types.RawGraph, clusters []types.Cluster) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	if err := enc.Encode(raw); err != nil {
		return "", fmt.Errorf("hashing graph: %w", err)
	}
	if err := enc.Encode(clusters); err != nil {
		return "", fmt.Errorf("hashing clusters: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the graph stored under key. ok is false on a miss.
func (c *Cache) Get(key string) (raw types.RawGraph, ok bool, err error) {
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixGraph + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &raw)
		})
	})
	if err != nil {
		return types.RawGraph{}, false, fmt.Errorf("reading snapshot %s: %w", key, err)
	}
	return raw, ok, nil
}

// Put stores raw under key, replacing any previous value.
func (c *Cache) Put(key string, raw types.RawGraph) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", key, err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixGraph+key), data)
	})
	if err != nil {
		return fmt.Errorf("writing snapshot %s: %w", key, err)
	}
	return nil
}
