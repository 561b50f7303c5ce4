package badger

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/google/uuid"

	"github.com/akhenakh/concentratord/metrics"
	"github.com/akhenakh/concentratord/storage"
)

type Journal struct {
	*badger.DB

	// TTL is the retention of an entry, 0 keeps entries forever
	TTL time.Duration
}

func (j *Journal) entry(k, v []byte) *badger.Entry {
	e := badger.NewEntry(k, v)
	if j.TTL > 0 {
		e = e.WithTTL(j.TTL)
	}
	return e
}

// StoreTx stores v under a time ordered key plus an id index entry.
func (j *Journal) StoreTx(txi storage.Tx, id uuid.UUID, v []byte, t time.Time) error {
	tx, ok := txi.(*badger.Txn)
	if !ok {
		return errors.New("invalid tx passed")
	}

	dk := storage.DataKey(t, id)

	// storing D
	if err := tx.SetEntry(j.entry(dk, v)); err != nil {
		return err
	}

	// storing I
	if err := tx.SetEntry(j.entry(storage.IDKey(id), dk)); err != nil {
		return err
	}

	return nil
}

// Store stores v in its own transaction.
func (j *Journal) Store(id uuid.UUID, v []byte, t time.Time) error {
	txn := j.NewTransaction(true)
	defer txn.Discard()

	if err := j.StoreTx(txn, id, v, t); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return err
	}
	metrics.JournalInsertCounter.Inc()
	return nil
}

// Last returns up to count entries, most recent first.
func (j *Journal) Last(count int) ([]storage.Record, error) {
	var res []storage.Record
	err := j.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = count
		if opts.PrefetchSize <= 0 {
			opts.PrefetchSize = 10
		}
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := storage.DataPrefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if count > 0 && len(res) >= count {
				break
			}

			item := it.Item()
			t, id, err := storage.ReadDataKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}

			valc, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			res = append(res, storage.Record{
				ID:    id,
				Time:  t,
				Value: valc,
			})
		}
		return nil
	})

	return res, err
}

// Get returns the entry stored for id, nil if not found.
func (j *Journal) Get(id uuid.UUID) (*storage.Record, error) {
	var rec *storage.Record
	err := j.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storage.IDKey(id))
		if err != nil {
			return err
		}
		dk, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err = txn.Get(dk)
		if err != nil {
			return err
		}
		t, _, err := storage.ReadDataKey(dk)
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec = &storage.Record{ID: id, Time: t, Value: v}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return rec, err
}

func (j *Journal) Begin() storage.Tx {
	return j.NewTransaction(true)
}
