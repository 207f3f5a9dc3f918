package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	runDomain "github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/run"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/domain"
	bolt "go.etcd.io/bbolt"
)

var runBucket = []byte("run_records")

// boltRunRecord is the JSON value stored per key in the run_records bucket.
type boltRunRecord struct {
	ID       int64   `json:"id"`
	Distance float64 `json:"distance"`
	Time     string  `json:"time"`
	Date     string  `json:"date"`
}

// BoltRunRepository is a single-file bbolt implementation of run.Repository
// for running without a Postgres instance. Keys are big-endian ids so the
// bucket iterates in id order.
type BoltRunRepository struct {
	db   *bolt.DB
	gate initGate
}

// NewBoltRunRepository opens (or creates) the bolt file at path.
func NewBoltRunRepository(path string) (*BoltRunRepository, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, domain.NewStorageInitError("failed to open bolt store", err)
	}
	return &BoltRunRepository{db: db}, nil
}

// Initialize creates the run_records bucket if it is missing.
func (r *BoltRunRepository) Initialize(_ context.Context) error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(runBucket)
		return e
	})
	r.gate.record(err)
	if err != nil {
		return domain.NewStorageInitError("failed to create run_records bucket", err)
	}
	return nil
}

// Create appends a new run record stamped with the current time.
func (r *BoltRunRepository) Create(_ context.Context, distanceKilometers float64, duration string) (int64, error) {
	if err := r.gate.check(); err != nil {
		return 0, err
	}
	if err := runDomain.ValidateNew(distanceKilometers, duration); err != nil {
		return 0, err
	}

	var id int64
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(runBucket)
		if b == nil {
			return fmt.Errorf("bucket %s not found", runBucket)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec := boltRunRecord{
			ID:       int64(seq),
			Distance: distanceKilometers,
			Time:     duration,
			Date:     runDomain.FormatTimestamp(time.Now()),
		}
		val, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put(itob(seq), val); err != nil {
			return err
		}
		id = rec.ID
		return nil
	})
	if err != nil {
		return 0, domain.NewStorageError("create run record", err)
	}
	return id, nil
}

// List returns every run record ordered by id.
func (r *BoltRunRepository) List(_ context.Context) ([]runDomain.RunRecord, error) {
	if err := r.gate.check(); err != nil {
		return nil, err
	}

	records := make([]runDomain.RunRecord, 0)
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(runBucket)
		if b == nil {
			return fmt.Errorf("bucket %s not found", runBucket)
		}
		return b.ForEach(func(_, val []byte) error {
			var rec boltRunRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			recordedAt, err := runDomain.ParseTimestamp(rec.Date)
			if err != nil {
				return fmt.Errorf("failed to parse date of run record %d: %w", rec.ID, err)
			}
			records = append(records, runDomain.ReconstructRunRecord(rec.ID, rec.Distance, rec.Time, recordedAt))
			return nil
		})
	})
	if err != nil {
		return nil, domain.NewStorageError("list run records", err)
	}
	return records, nil
}

// Ping reports whether the bolt file is still open.
func (r *BoltRunRepository) Ping(_ context.Context) error {
	return r.db.View(func(*bolt.Tx) error { return nil })
}

// Close closes the bolt file.
func (r *BoltRunRepository) Close() error {
	return r.db.Close()
}

// itob returns an 8-byte big endian representation of v.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
