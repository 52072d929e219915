// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package featurestore persists windowed user and item aggregates so the
// online scorer can serve the same aggregate features the model was trained
// on. It is backed by BadgerDB.
package featurestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/marquee/internal/cache"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/ranking"
	"github.com/tomtom215/marquee/internal/ranking/dataset"
)

// Key layout. Aggregates live under a per-generation prefix such as
// "agg:g3:user:u1"; metaKey holds the SnapshotInfo naming the live generation.
const (
	keyPrefix = "agg:"
	userKind  = "user:"
	itemKind  = "item:"
	metaKey   = "meta:snapshot"
)

func generationPrefix(gen uint64) string {
	return keyPrefix + "g" + strconv.FormatUint(gen, 10) + ":"
}

func userKey(gen uint64, id string) string { return generationPrefix(gen) + userKind + id }
func itemKey(gen uint64, id string) string { return generationPrefix(gen) + itemKind + id }

// ErrNoSnapshot is returned by Snapshot when nothing has been written yet.
var ErrNoSnapshot = errors.New("no aggregate snapshot")

// Options configures Open.
type Options struct {
	Path     string
	InMemory bool

	// CacheSize is the number of aggregates kept in memory in front of
	// BadgerDB. 0 disables the cache.
	CacheSize int

	// CacheTTL bounds how long a cached aggregate is served. Default: 5m
	CacheTTL time.Duration
}

type cachedAggregates struct {
	agg   ranking.Aggregates
	found bool
}

// SnapshotInfo describes the aggregates currently stored.
type SnapshotInfo struct {
	Generation   uint64        `json:"generation"`
	ModelVersion int           `json:"model_version"`
	Cutoff       time.Time     `json:"cutoff"`
	Window       time.Duration `json:"window"`
	Users        int           `json:"users"`
	Items        int           `json:"items"`
	WrittenAt    time.Time     `json:"written_at"`
}

// Lookup is the result of one request-time read.
type Lookup struct {
	User  ranking.Aggregates
	Items map[string]ranking.Aggregates

	// Missing counts requested ids that had no stored aggregates.
	Missing int
}

// Store reads and writes aggregate snapshots.
type Store struct {
	db    *badger.DB
	owned bool
	cache *cache.LRU[cachedAggregates]

	// writeMu serializes Replace so generations are allocated once.
	writeMu sync.Mutex
}

// Open opens (or creates) a BadgerDB at opts.Path, or an in-memory
// database when opts.InMemory is set.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", opts.Path).
		Bool("in_memory", opts.InMemory).
		Int("cache_size", opts.CacheSize).
		Msg("Feature store opened")

	s := &Store{db: db, owned: true}
	if opts.CacheSize > 0 {
		s.cache = cache.NewLRU[cachedAggregates](opts.CacheSize, opts.CacheTTL)
	}
	return s, nil
}

// New wraps an existing database without a read cache. Close does not
// close db.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close closes the database if Open created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Replace writes table as a new generation, then switches readers to it with
// a single write of the snapshot record. A Lookup sees either the old
// snapshot or the new one, never a mix and never an empty store.
//
// The previous generation is kept until the next Replace so a read that
// resolved it just before the switch can still finish; older generations
// are dropped.
//
//nolint:gocritic // AggregateTable is maps and small scalars
func (s *Store) Replace(ctx context.Context, table dataset.AggregateTable, modelVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev, err := s.Snapshot()
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return err
	}
	gen := prev.Generation + 1

	if err := s.writeGeneration(ctx, gen, table); err != nil {
		if dropErr := s.db.DropPrefix([]byte(generationPrefix(gen))); dropErr != nil {
			logging.Warn().Err(dropErr).Uint64("generation", gen).Msg("Failed to clean up partial aggregate snapshot")
		}
		return err
	}

	info, err := json.Marshal(SnapshotInfo{
		Generation:   gen,
		ModelVersion: modelVersion,
		Cutoff:       table.Cutoff,
		Window:       table.Window,
		Users:        len(table.Users),
		Items:        len(table.Items),
		WrittenAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot info: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaKey), info)
	})
	if err != nil {
		return fmt.Errorf("set snapshot info: %w", err)
	}

	// Cache keys carry the generation, so entries from prev are never hit
	// again. Clearing only releases their memory.
	if s.cache != nil {
		s.cache.Clear()
	}

	if prev.Generation > 1 {
		stale := prev.Generation - 1
		if err := s.db.DropPrefix([]byte(generationPrefix(stale))); err != nil {
			logging.Warn().Err(err).Uint64("generation", stale).Msg("Failed to drop stale aggregate snapshot")
		}
	}
	return nil
}

//nolint:gocritic // AggregateTable is maps and small scalars
func (s *Store) writeGeneration(ctx context.Context, gen uint64, table dataset.AggregateTable) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	write := func(key func(uint64, string) string, rows map[string]ranking.Aggregates) error {
		for id, agg := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := json.Marshal(agg)
			if err != nil {
				return fmt.Errorf("marshal aggregates for %s: %w", id, err)
			}
			if err := wb.Set([]byte(key(gen, id)), data); err != nil {
				return fmt.Errorf("set aggregates for %s: %w", id, err)
			}
		}
		return nil
	}
	if err := write(userKey, table.Users); err != nil {
		return err
	}
	if err := write(itemKey, table.Items); err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush aggregates: %w", err)
	}
	return nil
}

// Lookup reads the user's aggregates and those of every item in one
// read transaction against the live generation. Ids without stored
// aggregates get zero values.
func (s *Store) Lookup(ctx context.Context, userID string, itemIDs []string) (Lookup, error) {
	if err := ctx.Err(); err != nil {
		return Lookup{}, err
	}

	out := Lookup{Items: make(map[string]ranking.Aggregates, len(itemIDs))}
	err := s.db.View(func(txn *badger.Txn) error {
		info, err := snapshotInfo(txn)
		if errors.Is(err, ErrNoSnapshot) {
			out.Missing = 1 + len(itemIDs)
			for _, id := range itemIDs {
				out.Items[id] = ranking.Aggregates{}
			}
			return nil
		}
		if err != nil {
			return err
		}

		agg, found, err := s.read(txn, userKey(info.Generation, userID))
		if err != nil {
			return err
		}
		if !found {
			out.Missing++
		}
		out.User = agg

		for _, id := range itemIDs {
			agg, found, err := s.read(txn, itemKey(info.Generation, id))
			if err != nil {
				return err
			}
			if !found {
				out.Missing++
			}
			out.Items[id] = agg
		}
		return nil
	})
	if err != nil {
		return Lookup{}, err
	}
	return out, nil
}

// read consults the cache before txn. Absent keys are cached too, so
// unknown ids do not hit BadgerDB on every request.
func (s *Store) read(txn *badger.Txn, key string) (ranking.Aggregates, bool, error) {
	if s.cache != nil {
		if c, ok := s.cache.Get(key); ok {
			return c.agg, c.found, nil
		}
	}
	agg, found, err := get(txn, key)
	if err != nil {
		return agg, false, err
	}
	if s.cache != nil {
		s.cache.Add(key, cachedAggregates{agg: agg, found: found})
	}
	return agg, found, nil
}

func get(txn *badger.Txn, key string) (ranking.Aggregates, bool, error) {
	var agg ranking.Aggregates
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return agg, false, nil
	}
	if err != nil {
		return agg, false, fmt.Errorf("get %s: %w", key, err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &agg)
	})
	if err != nil {
		return agg, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return agg, true, nil
}

// Snapshot returns information about the live generation.
func (s *Store) Snapshot() (SnapshotInfo, error) {
	var info SnapshotInfo
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		info, err = snapshotInfo(txn)
		return err
	})
	return info, err
}

func snapshotInfo(txn *badger.Txn) (SnapshotInfo, error) {
	var info SnapshotInfo
	item, err := txn.Get([]byte(metaKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return info, ErrNoSnapshot
	}
	if err != nil {
		return info, fmt.Errorf("get snapshot info: %w", err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &info)
	})
	if err != nil {
		return info, fmt.Errorf("decode snapshot info: %w", err)
	}
	return info, nil
}
