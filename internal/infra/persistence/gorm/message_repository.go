// Package gormpersistence provides the GORM/MySQL implementations of the
// repository contracts.
package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"eldercare-comm/internal/domain"
	"eldercare-comm/internal/repository"
)

// GormMessageRepository implements repository.MessageRepository.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates the repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// Create persists a new message.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create message: %w", err)
	}
	return nil
}

// FindByID loads a message by primary key.
func (r *GormMessageRepository) FindByID(ctx context.Context, id uint) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).First(&msg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMessageNotFound
		}
		return nil, fmt.Errorf("gorm: find message by id %d: %w", id, err)
	}
	return &msg, nil
}

// UpdateStatus advances the status with compare-and-set semantics so two
// concurrent transitions on the same record cannot lose updates.
func (r *GormMessageRepository) UpdateStatus(ctx context.Context, id uint, expected, next domain.MessageStatus) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND status = ?", id, expected).
		Update("status", next)
	if result.Error != nil {
		return fmt.Errorf("gorm: update message %d status: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing record from a concurrent change.
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.Message{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("gorm: recheck message %d: %w", id, err)
		}
		if count == 0 {
			return repository.ErrMessageNotFound
		}
		return repository.ErrStaleRecord
	}
	return nil
}

// History returns the conversation between two users in both directions,
// newest first.
func (r *GormMessageRepository) History(ctx context.Context, userID, contactID uint) ([]domain.Message, error) {
	var msgs []domain.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, contactID, contactID, userID).
		Order("timestamp DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: message history %d<->%d: %w", userID, contactID, err)
	}
	return msgs, nil
}

// isDuplicateEntry detects a MySQL unique-constraint violation.
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
