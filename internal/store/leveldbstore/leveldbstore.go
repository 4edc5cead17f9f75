// Package leveldbstore backs the store.KV contract with goleveldb.
package leveldbstore

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	ldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/olindqvist/terrain-grid-cache/internal/store"
)

type Store struct {
	db *leveldb.DB
}

var _ store.KV = (*Store)(nil)

// Open opens (creating if missing) the database at path with a bloom
// filter and enlarged write buffer, mirroring the tuning the terrain
// workload was profiled with.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		Filter:             filter.NewBloomFilter(10),
		WriteBuffer:        64 * opt.MiB,
		BlockCacheCapacity: 100 * opt.MiB,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenMem opens a memory-backed instance with identical semantics.
// Used by tests and the loadgen dry mode.
func OpenMem() (*Store, error) {
	db, err := leveldb.Open(ldbstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory leveldb: %w", err)
	}
	return &Store{db: db}, nil
}

func writeOpts(durable bool) *opt.WriteOptions {
	if durable {
		return &opt.WriteOptions{Sync: true}
	}
	return nil
}

func (s *Store) Put(key, value string, durable bool) error {
	if err := s.db.Put([]byte(key), []byte(value), writeOpts(durable)); err != nil {
		return fmt.Errorf("leveldb put: %w", err)
	}
	return nil
}

func (s *Store) Get(key string) (string, error) {
	v, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("leveldb get: %w", err)
	}
	return string(v), nil
}

func (s *Store) Delete(key string, durable bool) error {
	if err := s.db.Delete([]byte(key), writeOpts(durable)); err != nil {
		return fmt.Errorf("leveldb delete: %w", err)
	}
	return nil
}

func (s *Store) Exists(key string) (bool, error) {
	ok, err := s.db.Has([]byte(key), nil)
	if err != nil {
		return false, fmt.Errorf("leveldb has: %w", err)
	}
	return ok, nil
}

func (s *Store) NewBatch() store.Batch {
	return &batch{db: s.db, b: new(leveldb.Batch)}
}

func (s *Store) RangeScan(start, end string, visit func(key, value string) error) error {
	var rng *util.Range
	if start != "" || end != "" {
		rng = &util.Range{}
		if start != "" {
			rng.Start = []byte(start)
		}
		if end != "" {
			rng.Limit = []byte(end)
		}
	}
	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()
	for iter.Next() {
		if err := visit(string(iter.Key()), string(iter.Value())); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("leveldb range scan: %w", err)
	}
	return nil
}

func (s *Store) PrefixScan(prefix string, visit func(key, value string) error) error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		if err := visit(string(iter.Key()), string(iter.Value())); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("leveldb prefix scan: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type batch struct {
	db *leveldb.DB
	b  *leveldb.Batch
}

func (b *batch) Put(key, value string) { b.b.Put([]byte(key), []byte(value)) }
func (b *batch) Delete(key string)     { b.b.Delete([]byte(key)) }
func (b *batch) Reset()                { b.b.Reset() }

func (b *batch) Commit(durable bool) error {
	if err := b.db.Write(b.b, writeOpts(durable)); err != nil {
		return fmt.Errorf("leveldb batch write: %w", err)
	}
	b.b.Reset()
	return nil
}
