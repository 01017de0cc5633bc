// Package paramstore is the badger-backed data-identifier parameter
// backend used by RDBI/WDBI (SID 0x22/0x2E). It holds two independent
// keyspaces — "extended" and "general" — matching the two handlers the
// server's chain tries in order before giving up (spec §4.4 "0x22/0x2E"
// "multi-backend lookup").
package paramstore

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Keyspace names one of the two independent DID backends a server can
// consult.
type Keyspace string

const (
	KeyspaceExtended Keyspace = "extended"
	KeyspaceGeneral  Keyspace = "general"
)

// ErrNotFound is returned when a DID has no value in the requested
// keyspace.
var ErrNotFound = fmt.Errorf("paramstore: did not found")

// Store wraps a badger.DB with the two-keyspace DID parameter layout.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a badger database at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("paramstore: open %q: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func key(ks Keyspace, did uint16) []byte {
	b := make([]byte, len(ks)+1+2)
	n := copy(b, ks)
	b[n] = ':'
	binary.BigEndian.PutUint16(b[n+1:], did)
	return b
}

// Get reads the current value stored for did in ks. Returns ErrNotFound
// if no value has ever been written.
func (s *Store) Get(ks Keyspace, did uint16) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(ks, did))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = append([]byte{}, val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value for did in ks, overwriting any previous value.
func (s *Store) Set(ks Keyspace, did uint16, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(ks, did), value)
	})
}

// Has reports whether ks defines a value for did without reading it,
// used by the RDBI/WDBI handlers to decide whether to claim the request
// or fall through to the next backend in the chain.
func (s *Store) Has(ks Keyspace, did uint16) bool {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(ks, did))
		return err
	})
	return err == nil
}
