package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"eldercare-comm/internal/domain"
	"eldercare-comm/internal/repository"
)

// GormCallRepository implements repository.CallRepository.
type GormCallRepository struct {
	db *gorm.DB
}

// NewGormCallRepository creates the repository.
func NewGormCallRepository(db *gorm.DB) *GormCallRepository {
	if db == nil {
		panic("database connection cannot be nil for GormCallRepository")
	}
	return &GormCallRepository{db: db}
}

// Create persists a new call record.
func (r *GormCallRepository) Create(ctx context.Context, call *domain.CallRecord) error {
	if err := r.db.WithContext(ctx).Create(call).Error; err != nil {
		return fmt.Errorf("gorm: create call record: %w", err)
	}
	return nil
}

// FindByID loads a call record by primary key.
func (r *GormCallRepository) FindByID(ctx context.Context, id uint) (*domain.CallRecord, error) {
	var call domain.CallRecord
	err := r.db.WithContext(ctx).First(&call, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCallNotFound
		}
		return nil, fmt.Errorf("gorm: find call record by id %d: %w", id, err)
	}
	return &call, nil
}

// Finish terminates an open record. The end_time IS NULL guard makes the
// terminal transition happen at most once even under concurrent updates.
func (r *GormCallRepository) Finish(ctx context.Context, id uint, endTime time.Time, duration int, status domain.CallStatus) error {
	result := r.db.WithContext(ctx).
		Model(&domain.CallRecord{}).
		Where("id = ? AND end_time IS NULL", id).
		Updates(map[string]interface{}{
			"end_time": endTime,
			"duration": duration,
			"status":   status,
		})
	if result.Error != nil {
		return fmt.Errorf("gorm: finish call record %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.CallRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("gorm: recheck call record %d: %w", id, err)
		}
		if count == 0 {
			return repository.ErrCallNotFound
		}
		return repository.ErrStaleRecord
	}
	return nil
}

// HistoryFor returns every call where the user is caller or receiver, newest
// first by start time.
func (r *GormCallRepository) HistoryFor(ctx context.Context, userID uint) ([]domain.CallRecord, error) {
	var calls []domain.CallRecord
	err := r.db.WithContext(ctx).
		Where("caller_id = ? OR receiver_id = ?", userID, userID).
		Order("start_time DESC").
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: call history for %d: %w", userID, err)
	}
	return calls, nil
}
