package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/ariebrainware/medelle-reminder/model"
)

const bucketName = "patient_records"

// BoltStore keeps records in a single BoltDB file, one key per record.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a BoltDB database at path and ensures the
// records bucket exists.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("bolt store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func idKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func (s *BoltStore) List(_ context.Context) ([]model.PatientRecord, error) {
	records := []model.PatientRecord{}

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.ForEach(func(k, v []byte) error {
			var r model.PatientRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	model.SortByReturnDate(records)
	return records, nil
}

func (s *BoltStore) Append(_ context.Context, record *model.PatientRecord) (int64, error) {
	prepareRecord(record)

	data, err := json.Marshal(record)
	if err != nil {
		return 0, err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(idKey(record.ID), data)
	})
	if err != nil {
		return 0, err
	}
	return record.ID, nil
}

// Remove deletes a record by id. Deleting an absent key is a no-op in bolt.
func (s *BoltStore) Remove(_ context.Context, id int64) (bool, error) {
	removed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		key := idKey(id)
		if b.Get(key) == nil {
			return nil
		}
		removed = true
		return b.Delete(key)
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (s *BoltStore) MarkNotified(_ context.Context, id int64, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		key := idKey(id)
		v := b.Get(key)
		if v == nil {
			return ErrNotFound
		}

		var r model.PatientRecord
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		r.NotifiedAt = &at

		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *BoltStore) Reset(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Close releases the database file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
