// Package storage is the badger-backed key/value engine whose writes feed
// cluster notifications.
package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"globaldb/pkg/cluster"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

const (
	DefaultGCInterval = 5 * time.Minute
	gcDiscardRatio    = 0.7
	keySeparator      = "\x00"
)

var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid group or key")
	ErrClosed     = errors.New("store closed")

	// ErrValueTooLarge is returned by Put for values above Options.MaxValueSize.
	ErrValueTooLarge = errors.New("value too large")
)

// Observer is told about every committed write. The dispatcher implements it.
type Observer interface {
	OnMutation(group, key string, value []byte, op cluster.Op) int
}

type Options struct {
	Dir        string
	InMemory   bool
	GCInterval time.Duration
	// MaxValueSize limits Put values in bytes. Zero means no limit.
	MaxValueSize int64
}

type Store struct {
	db       *badger.DB
	observer Observer
	maxValue int64
	logger   *zap.Logger

	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Open opens or creates a store. observer may be nil.
func Open(opts Options, observer Observer, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Dir == "" {
		opts.InMemory = true
	}
	if opts.GCInterval <= 0 {
		opts.GCInterval = DefaultGCInterval
	}

	bopts := badger.DefaultOptions(opts.Dir).
		WithInMemory(opts.InMemory).
		WithLogger(&badgerLogger{logger: logger.Named("badger").Sugar()})
	if opts.InMemory {
		bopts.Dir = ""
		bopts.ValueDir = ""
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	s := &Store{
		db:       db,
		observer: observer,
		maxValue: opts.MaxValueSize,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	if !opts.InMemory {
		s.wg.Add(1)
		go s.gcLoop(opts.GCInterval)
	}

	logger.Info("Store opened",
		zap.String("dir", opts.Dir),
		zap.Bool("in_memory", opts.InMemory))
	return s, nil
}

func storageKey(group, key string) ([]byte, error) {
	if group == "" || key == "" || strings.Contains(group, keySeparator) {
		return nil, fmt.Errorf("%w: group=%q key=%q", ErrInvalidKey, group, key)
	}
	return []byte(group + keySeparator + key), nil
}

// Put writes value under group/key and notifies the observer. It returns the
// number of notifications queued.
func (s *Store) Put(group, key string, value []byte) (int, error) {
	k, err := storageKey(group, key)
	if err != nil {
		return 0, err
	}
	if s.maxValue > 0 && int64(len(value)) > s.maxValue {
		return 0, fmt.Errorf("%w: %d bytes exceeds %d", ErrValueTooLarge, len(value), s.maxValue)
	}
	if value == nil {
		value = []byte{}
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, value)
	})
	if err != nil {
		return 0, s.wrap("put", err)
	}
	return s.notify(group, key, value, cluster.OpPut), nil
}

// Delete removes group/key and notifies the observer. Deleting a missing key
// returns ErrNotFound and notifies nobody.
func (s *Store) Delete(group, key string) (int, error) {
	k, err := storageKey(group, key)
	if err != nil {
		return 0, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); err != nil {
			return err
		}
		return txn.Delete(k)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, s.wrap("delete", err)
	}
	return s.notify(group, key, nil, cluster.OpDelete), nil
}

// Get returns a copy of the value stored under group/key.
func (s *Store) Get(group, key string) ([]byte, error) {
	k, err := storageKey(group, key)
	if err != nil {
		return nil, err
	}

	var value []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.wrap("get", err)
	}
	return value, nil
}

// Keys lists the keys stored in group in ascending order.
func (s *Store) Keys(group string) ([]string, error) {
	if group == "" || strings.Contains(group, keySeparator) {
		return nil, fmt.Errorf("%w: group=%q", ErrInvalidKey, group)
	}
	prefix := []byte(group + keySeparator)

	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap("keys", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) notify(group, key string, value []byte, op cluster.Op) int {
	if s.observer == nil {
		return 0
	}
	return s.observer.OnMutation(group, key, value, op)
}

func (s *Store) wrap(op string, err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return fmt.Errorf("store %s: %w", op, err)
}

func (s *Store) gcLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			reclaimed := 0
			for s.db.RunValueLogGC(gcDiscardRatio) == nil {
				reclaimed++
			}
			if reclaimed > 0 {
				s.logger.Debug("Value log GC reclaimed files", zap.Int("rounds", reclaimed))
			}
		}
	}
}

// Close stops background GC and closes the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		err = s.db.Close()
		s.logger.Info("Store closed")
	})
	return err
}

// badgerLogger routes badger's logging through zap.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(strings.TrimSpace(format), args...)
}
