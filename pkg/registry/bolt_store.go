package registry

import (
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/quorumlabs/raftwire/pkg/raft"
)

// Bucket holding administered server addresses, keyed by the raw 16-byte
// server id with the address string as value.
var serversBucket = []byte("servers")

// BoltStore persists administered address mappings using BoltDB. Thread
// safety comes from BoltDB's transaction model: concurrent View transactions
// are allowed and Update transactions are serialized internally, so no
// additional locking is needed here.
type BoltStore struct {
	db   *bbolt.DB
	path string
}

// Compile-time check that BoltStore implements Store.
var _ Store = (*BoltStore)(nil)

// NewBoltStore opens or creates the database file at path and initializes
// the servers bucket.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(serversBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create servers bucket: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Load returns every persisted mapping.
func (b *BoltStore) Load() (map[raft.ServerID]string, error) {
	out := make(map[raft.ServerID]string)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(serversBucket)
		return bucket.ForEach(func(k, v []byte) error {
			u, err := uuid.FromBytes(k)
			if err != nil {
				return fmt.Errorf("corrupt server id key: %w", err)
			}
			out[raft.ServerID(u)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put stores or replaces the address for id.
func (b *BoltStore) Put(id raft.ServerID, addr string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(serversBucket)
		if err := bucket.Put(id[:], []byte(addr)); err != nil {
			return fmt.Errorf("failed to store address mapping: %w", err)
		}
		return nil
	})
}

// Delete removes the address for id. Deleting an absent id is a no-op.
func (b *BoltStore) Delete(id raft.ServerID) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(serversBucket)
		return bucket.Delete(id[:])
	})
}

// Close releases the database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
