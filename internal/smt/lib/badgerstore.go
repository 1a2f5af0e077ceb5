package lib

import (
	"errors"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// leafKeyPrefix namespaces leaf records inside the badger keyspace.
var leafKeyPrefix = []byte("leaf/")

// BadgerLeafStore is a LeafStore backed by a badger database. Leaves are
// stored under their CID in the canonical encoding, so a record read back
// from disk re-verifies like any other leaf.
type BadgerLeafStore struct {
	db *badger.DB
}

// OpenBadgerLeafStore opens (or creates) a badger-backed store at the given
// directory.
func OpenBadgerLeafStore(path string) (*BadgerLeafStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, types.NewDagError(types.ErrIo, "", err)
	}
	return &BadgerLeafStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BadgerLeafStore) Close() error {
	return s.db.Close()
}

func leafKey(hash string) []byte {
	return append(append([]byte(nil), leafKeyPrefix...), hash...)
}

func (s *BadgerLeafStore) StoreLeaf(leaf *types.Leaf) error {
	data, err := EncodeLeaf(leaf, false)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(leafKey(leaf.Hash), data)
	})
	if err != nil {
		return types.NewDagError(types.ErrIo, leaf.Hash, err)
	}
	return nil
}

func (s *BadgerLeafStore) RetrieveLeaf(hash string) (*types.Leaf, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(leafKey(hash))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewDagError(types.ErrIo, hash, err)
	}
	return DecodeLeaf(data, false)
}

func (s *BadgerLeafStore) HasLeaf(hash string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(leafKey(hash))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, types.NewDagError(types.ErrIo, hash, err)
	}
	return true, nil
}

func (s *BadgerLeafStore) DeleteLeaf(hash string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(leafKey(hash))
	})
	if err != nil {
		return types.NewDagError(types.ErrIo, hash, err)
	}
	return nil
}

func (s *BadgerLeafStore) GetAllLeafHashes() ([]string, error) {
	var hashes []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = leafKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			hashes = append(hashes, string(key[len(leafKeyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, types.NewDagError(types.ErrIo, "", err)
	}
	return hashes, nil
}
