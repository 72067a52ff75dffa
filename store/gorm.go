package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ariebrainware/medelle-reminder/model"
	"gorm.io/gorm"
)

// GormStore keeps records in a SQL table through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the records table and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&model.PatientRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) List(ctx context.Context) ([]model.PatientRecord, error) {
	records := []model.PatientRecord{}
	if err := s.db.WithContext(ctx).Order("return_date ASC").Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *GormStore) Append(ctx context.Context, record *model.PatientRecord) (int64, error) {
	prepareRecord(record)
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return 0, err
	}
	return record.ID, nil
}

func (s *GormStore) Remove(ctx context.Context, id int64) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&model.PatientRecord{}, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) MarkNotified(ctx context.Context, id int64, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&model.PatientRecord{}).Where("id = ?", id).Update("notified_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&model.PatientRecord{}).Error
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
