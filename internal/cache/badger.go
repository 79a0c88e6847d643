// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/recengine/internal/logging"
)

// BadgerConfig configures the Badger backend.
type BadgerConfig struct {
	// Path is the database directory. Empty runs Badger in memory.
	Path string

	// GCInterval is how often value log GC runs. Zero disables the loop.
	GCInterval time.Duration

	// SyncWrites makes every write durable before returning.
	SyncWrites bool
}

// Badger is a Backend persisted in an embedded BadgerDB, so a single node
// keeps its warm cache across restarts. Expiry uses Badger entry TTLs.
type Badger struct {
	db *badger.DB

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewBadger opens (or creates) the database.
func NewBadger(cfg BadgerConfig) (*Badger, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	b := &Badger{db: db, stop: make(chan struct{})}
	if cfg.GCInterval > 0 && cfg.Path != "" {
		b.wg.Add(1)
		go b.gcLoop(cfg.GCInterval)
	}
	return b, nil
}

// Get returns the value stored under key.
func (b *Badger) Get(_ context.Context, key string) ([]byte, bool, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get: %w", err)
	}
	return val, true, nil
}

// Set stores value under key. A non-positive ttl stores without expiry.
func (b *Badger) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

// Delete removes key.
func (b *Badger) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// DeleteMatching removes every live key matching pattern. Only keys under
// the pattern's literal prefix are visited.
func (b *Badger) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	prefix := []byte(LiteralPrefix(pattern))

	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if item.IsDeletedOrExpired() {
				continue
			}
			if MatchPattern(pattern, string(item.Key())) {
				keys = append(keys, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("badger batch delete: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("badger flush deletes: %w", err)
	}
	return len(keys), nil
}

// Ping reports whether the database is open.
func (b *Badger) Ping(context.Context) error {
	if b.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// RunGC reclaims value log space until Badger reports nothing to rewrite.
func (b *Badger) RunGC() error {
	for {
		err := b.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// gcLoop runs RunGC every interval until Close.
func (b *Badger) gcLoop(interval time.Duration) {
	defer b.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Badger cache GC failed")
			}
		}
	}
}

// Close stops the GC loop and closes the database.
func (b *Badger) Close() error {
	var err error
	b.stopOnce.Do(func() {
		close(b.stop)
		b.wg.Wait()
		err = b.db.Close()
	})
	return err
}
