package cache

import (
	"context"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"
)

// Badger is an embedded Store for installations without a Redis.
// Badger keeps keys in LSM order, so SearchPrefix is a real indexed
// prefix seek rather than a full scan.
type Badger struct {
	db *badger.DB
}

func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Close() error { return b.db.Close() }

func (b *Badger) Get(_ context.Context, key string) ([]Record, error) {
	var recs []Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			recs, derr = decodeRecords(val)
			return derr
		})
	})
	if err != nil {
		return nil, fmt.Errorf("cache get %q: %w", key, err)
	}
	return recs, nil
}

func (b *Badger) Set(_ context.Context, key string, records []Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
}

func (b *Badger) SetMany(_ context.Context, items map[string][]Record) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for k, v := range items {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("cache set_many %q: %w", k, err)
		}
		if err := wb.Set([]byte(k), raw); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (b *Badger) SearchPrefix(_ context.Context, prefix string) (map[string][]Record, error) {
	out := make(map[string][]Record)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				recs, derr := decodeRecords(val)
				if derr != nil {
					return derr
				}
				out[key] = recs
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
