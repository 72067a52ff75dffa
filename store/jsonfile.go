package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ariebrainware/medelle-reminder/model"
	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/google/renameio/v2"
)

// JSONFileStore keeps every record in one pretty-printed JSON array. Each
// mutation rewrites the whole file through a temporary file and an atomic
// rename, so a crash never leaves a half written document behind.
type JSONFileStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONFileStore returns a store backed by the file at path. The file is
// created lazily on the first mutation.
func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if path == "" {
		return nil, errors.New("json store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &JSONFileStore{path: path}, nil
}

// load reads the file. A missing or unreadable document counts as an empty store.
func (s *JSONFileStore) load() []model.PatientRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			util.Logger().Warn().Err(err).Str("path", s.path).Msg("store file unreadable, treating as empty")
		}
		return []model.PatientRecord{}
	}

	var records []model.PatientRecord
	if err := json.Unmarshal(data, &records); err != nil {
		util.Logger().Warn().Err(err).Str("path", s.path).Msg("store file corrupt, treating as empty")
		return []model.PatientRecord{}
	}
	if records == nil {
		records = []model.PatientRecord{}
	}
	return records
}

func (s *JSONFileStore) save(records []model.PatientRecord) error {
	if records == nil {
		records = []model.PatientRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

func (s *JSONFileStore) List(_ context.Context) ([]model.PatientRecord, error) {
	s.mu.Lock()
	records := s.load()
	s.mu.Unlock()

	model.SortByReturnDate(records)
	return records, nil
}

func (s *JSONFileStore) Append(_ context.Context, record *model.PatientRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	prepareRecord(record)
	records = append(records, *record)
	if err := s.save(records); err != nil {
		return 0, err
	}
	return record.ID, nil
}

func (s *JSONFileStore) Remove(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	kept := make([]model.PatientRecord, 0, len(records))
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return false, nil
	}
	if err := s.save(kept); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JSONFileStore) MarkNotified(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	for i := range records {
		if records[i].ID == id {
			stamp := at
			records[i].NotifiedAt = &stamp
			return s.save(records)
		}
	}
	return ErrNotFound
}

func (s *JSONFileStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(nil)
}

func (s *JSONFileStore) Close() error {
	return nil
}
