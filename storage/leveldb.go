package storage

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBBackend is an on-disk Backend for validator nodes that need state
// to survive process restarts without relying on an external KV service.
// The spec treats the on-disk store as an external collaborator; this is
// the shell's own reference implementation of that collaborator's contract.
type LevelDBBackend struct {
	db *leveldb.DB
}

// OpenLevelDBBackend opens (creating if absent) a goleveldb database at path.
func OpenLevelDBBackend(path string) (*LevelDBBackend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBBackend{db: db}, nil
}

func (l *LevelDBBackend) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (l *LevelDBBackend) Put(key, value []byte) error { return l.db.Put(key, value, nil) }
func (l *LevelDBBackend) Delete(key []byte) error      { return l.db.Delete(key, nil) }

func (l *LevelDBBackend) Has(key []byte) (bool, error) { return l.db.Has(key, nil) }

func (l *LevelDBBackend) Close() error { return l.db.Close() }

// Iterator returns an ordered iterator over all keys sharing prefix.
func (l *LevelDBBackend) Iterator(prefix []byte) Iterator {
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	return &levelDBIterator{it: it}
}

type levelDBIterator struct {
	it interface {
		Next() bool
		Key() []byte
		Value() []byte
		Release()
	}
}

func (i *levelDBIterator) Next() bool    { return i.it.Next() }
func (i *levelDBIterator) Key() []byte   { return i.it.Key() }
func (i *levelDBIterator) Value() []byte { return i.it.Value() }
func (i *levelDBIterator) Release()      { i.it.Release() }
