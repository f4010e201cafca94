package kvstore

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketBlobs = []byte("blobs")
	bucketRoots = []byte("roots")
)

// BoltStore is a bbolt-backed Store: one bucket holds content-addressed
// blobs (trie nodes and out-of-line values), a second holds the four named
// roots. Durability and atomicity are delegated entirely to bbolt, which
// already gives single-writer/multi-reader transactions matching spec §5.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if absent) a bbolt file under dataDir.
func OpenBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "state.db")
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBlobs); err != nil {
			return fmt.Errorf("create blobs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketRoots); err != nil {
			return fmt.Errorf("create roots bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) Get(key []byte) []byte {
	var out []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlobs).Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out
}

func (s *BoltStore) Has(key []byte) bool {
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketBlobs).Get(key) != nil
		return nil
	})
	return found
}

func (s *BoltStore) Put(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).Put(key, value)
	})
}

func (s *BoltStore) Remove(key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).Delete(key)
	})
}

func (s *BoltStore) GetRoot(name RootName) ([]byte, bool) {
	var out []byte
	var found bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRoots).Get([]byte(name))
		if v != nil {
			found = true
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, found
}

func (s *BoltStore) Iterate(f func(k, v []byte) bool) {
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBlobs).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !f(append([]byte(nil), k...), append([]byte(nil), v...)) {
				break
			}
		}
		return nil
	})
}

func (s *BoltStore) IterateKeys(f func(k []byte) bool) {
	s.Iterate(func(k, _ []byte) bool { return f(k) })
}

// WriteBatch runs fn inside a single bbolt read-write transaction: if fn (or
// the underlying tx.Commit) fails, bbolt rolls the whole transaction back,
// so the four roots either all advance or none do.
func (s *BoltStore) WriteBatch(fn func(b Batch) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := &boltBatch{tx: tx}
		if err := fn(b); err != nil {
			return err
		}
		return b.err
	})
}

type boltBatch struct {
	tx  *bolt.Tx
	err error
}

func (b *boltBatch) Set(key, value []byte) {
	if b.err != nil {
		return
	}
	if value == nil {
		b.err = b.tx.Bucket(bucketBlobs).Delete(key)
		return
	}
	b.err = b.tx.Bucket(bucketBlobs).Put(key, value)
}

func (b *boltBatch) Remove(key []byte) {
	if b.err != nil {
		return
	}
	b.err = b.tx.Bucket(bucketBlobs).Delete(key)
}

func (b *boltBatch) SetRoot(name RootName, value []byte) {
	if b.err != nil {
		return
	}
	b.err = b.tx.Bucket(bucketRoots).Put([]byte(name), value)
}
