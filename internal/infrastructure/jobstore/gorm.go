package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// reportJobModel is the persistence row for one job. Result is stored as
// serialized JSON rather than relational columns; the payload is opaque
// to the store.
type reportJobModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Kind      string `gorm:"size:32;not null"`
	Month     int    `gorm:"not null"`
	Year      int    `gorm:"not null"`
	Status    string `gorm:"size:16;not null;index"`
	Error     string
	Result    []byte    `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (reportJobModel) TableName() string { return "report_jobs" }

// GormStore implements Store on a relational database. Expired rows are
// filtered on read and reaped opportunistically on write, so a reboot
// does not lose in-flight job records.
type GormStore struct {
	db        *gorm.DB
	retention time.Duration
}

// NewGormStore creates a database-backed job store and migrates its table.
func NewGormStore(db *gorm.DB, retention time.Duration) (*GormStore, error) {
	if retention <= 0 {
		retention = defaultRetention
	}
	if err := db.AutoMigrate(&reportJobModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate report_jobs: %w", err)
	}
	return &GormStore{db: db, retention: retention}, nil
}

// Put upserts the job row and restarts its retention clock.
func (s *GormStore) Put(ctx context.Context, job *Job) error {
	now := time.Now()
	row := reportJobModel{
		ID:        job.ID,
		Kind:      job.Kind,
		Month:     job.Month,
		Year:      job.Year,
		Status:    string(job.Status),
		Error:     job.Error,
		Result:    []byte(job.Result),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
		ExpiresAt: now.Add(s.retention),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}

	// Reap lapsed rows while we hold a connection anyway.
	s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&reportJobModel{})

	return nil
}

// Get returns the stored job, or ErrNotFound once its retention lapses.
func (s *GormStore) Get(ctx context.Context, id string) (*Job, error) {
	var row reportJobModel
	err := s.db.WithContext(ctx).
		Where("id = ? AND expires_at >= ?", id, time.Now()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	return &Job{
		ID:        row.ID,
		Kind:      row.Kind,
		Month:     row.Month,
		Year:      row.Year,
		Status:    Status(row.Status),
		Error:     row.Error,
		Result:    json.RawMessage(row.Result),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

var _ Store = (*GormStore)(nil)
