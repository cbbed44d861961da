// Package builtin implements the bolt backed build history store.
package builtin

import (
	"context"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/platform/history"
)

const (
	// HistoryBucket is keyed by the record timestamp, so iteration
	// returns runs in chronological order.
	HistoryBucket = "antirevoke.BuildHistory"
)

type DB struct {
	*bolt.DB
}

func NewDB(db *bolt.DB) (*DB, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(HistoryBucket))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s bucket", HistoryBucket)
	}
	datastore := &DB{
		DB: db,
	}
	return datastore, nil
}

func (db *DB) Save(_ context.Context, r *history.Record) error {
	data, err := history.MarshalRecord(r)
	if err != nil {
		return errors.Wrap(err, "marshalling build record")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(HistoryBucket))
		if bkt == nil {
			return errors.Errorf("bucket %q not found", HistoryBucket)
		}
		return bkt.Put([]byte(r.Key()), data)
	})
	return errors.Wrap(err, "put build record to boltdb")
}

func (db *DB) List(_ context.Context) ([]history.Record, error) {
	var list []history.Record
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(HistoryBucket))
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var r history.Record
			if err := history.UnmarshalRecord(v, &r); err != nil {
				return err
			}
			list = append(list, r)
		}
		return nil
	})
	return list, err
}
