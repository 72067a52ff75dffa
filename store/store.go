// Package store persists the clinic's patient follow-up records.
//
// Every backend keeps the same contract: List returns the records sorted by
// return date, Append assigns an id when none is set, Remove treats an absent
// id as a successful no-op.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariebrainware/medelle-reminder/config"
	"github.com/ariebrainware/medelle-reminder/model"
)

// ErrNotFound is returned by MarkNotified when the record does not exist.
var ErrNotFound = errors.New("patient record not found")

// Store is the record store used by the HTTP API and the reminder sweep.
type Store interface {
	List(ctx context.Context) ([]model.PatientRecord, error)
	Append(ctx context.Context, record *model.PatientRecord) (int64, error)
	Remove(ctx context.Context, id int64) (bool, error)
	MarkNotified(ctx context.Context, id int64, at time.Time) error
	Reset(ctx context.Context) error
	Close() error
}

// New opens the backend selected by cfg.StoreDriver.
func New(cfg *config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case "json":
		return NewJSONFileStore(cfg.StorePath)
	case "bolt":
		return NewBoltStore(cfg.StorePath)
	case "sqlite", "mysql", "postgres":
		db, err := config.ConnectDatabase(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", cfg.StoreDriver, err)
		}
		return NewGormStore(db)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// prepareRecord assigns an id to records that do not carry one yet.
func prepareRecord(record *model.PatientRecord) {
	if record.ID == 0 {
		record.ID = model.NextID()
	}
}
