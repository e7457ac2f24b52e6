// Package cachestore persists instance cache snapshots in a badger database
// so that probably free instances and cursors survive across sessions.
package cachestore

import (
	"bytes"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/vulpemventures/go-polyderive/cache"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/instance"
	"go.uber.org/zap"
)

// Options configures the store.
type Options struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps the database in memory only.
	InMemory bool
	Logger   *zap.Logger
}

// Store saves and loads cache snapshots.
type Store struct {
	db     *badgerdb.DB
	logger *zap.Logger
}

// Open opens, creating it if needed, the database described by opts.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dbOpts := badgerdb.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	dbOpts.Logger = &badgerLogger{logger: logger.Sugar()}

	db, err := badgerdb.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("cachestore: open: %w", err)
	}
	logger.Debug("cache store opened", zap.String("dir", opts.Dir), zap.Bool("in_memory", opts.InMemory))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored snapshot with the content of c.
func (s *Store) Save(c *cache.Cache) error {
	snapshot := c.Snapshot()

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		for _, prefix := range [][]byte{poolPrefix, cursorPrefix} {
			keys, err := keysWithPrefix(txn, prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
		}
		for r, items := range snapshot.Pools {
			if err := txn.Set(poolKey(r), encodePool(items)); err != nil {
				return err
			}
		}
		for r, cursor := range snapshot.Cursors {
			if err := txn.Set(cursorKey(r), encodeCursor(cursor)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cachestore: save: %w", err)
	}

	s.logger.Debug("cache saved",
		zap.Int("pools", len(snapshot.Pools)),
		zap.Int("cursors", len(snapshot.Cursors)),
	)
	return nil
}

// Load returns a cache holding the stored snapshot, or an empty cache when
// nothing was saved yet.
func (s *Store) Load() (*cache.Cache, error) {
	snapshot := cache.Snapshot{
		Pools:   make(map[derivation.Request][]instance.FactorInstance),
		Cursors: make(map[derivation.Request]uint32),
	}

	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(poolPrefix); it.ValidForPrefix(poolPrefix); it.Next() {
			item := it.Item()
			req, err := decodeRequest(bytes.TrimPrefix(item.Key(), poolPrefix))
			if err != nil {
				return fmt.Errorf("%w: key %x: %s", ErrCorruptEntry, item.Key(), err)
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			items, err := decodePool(req, value)
			if err != nil {
				return fmt.Errorf("%w: pool %s: %s", ErrCorruptEntry, req, err)
			}
			snapshot.Pools[req] = items
		}

		for it.Seek(cursorPrefix); it.ValidForPrefix(cursorPrefix); it.Next() {
			item := it.Item()
			req, err := decodeRequest(bytes.TrimPrefix(item.Key(), cursorPrefix))
			if err != nil {
				return fmt.Errorf("%w: key %x: %s", ErrCorruptEntry, item.Key(), err)
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			cursor, err := decodeCursor(value)
			if err != nil {
				return fmt.Errorf("%w: cursor %s: %s", ErrCorruptEntry, req, err)
			}
			snapshot.Cursors[req] = cursor
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cachestore: load: %w", err)
	}

	return cache.Restore(snapshot), nil
}

func keysWithPrefix(txn *badgerdb.Txn, prefix []byte) ([][]byte, error) {
	opts := badgerdb.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

// badgerLogger routes badger logs to zap.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("[badger] "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf("[badger] "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf("[badger] "+format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf("[badger] "+format, args...)
}
