package repository

import (
	"context"

	"eldercare-comm/internal/domain"
)

// MessageRepository defines storage for chat messages.
type MessageRepository interface {
	// Create persists a new message and fills in its ID.
	Create(ctx context.Context, msg *domain.Message) error

	// FindByID returns the message or ErrMessageNotFound.
	FindByID(ctx context.Context, id uint) (*domain.Message, error)

	// UpdateStatus advances the status of a message with compare-and-set
	// semantics: the update only applies if the stored status still equals
	// expected. Returns ErrStaleRecord when the record changed concurrently
	// and ErrMessageNotFound when the id is unknown.
	UpdateStatus(ctx context.Context, id uint, expected, next domain.MessageStatus) error

	// History returns every message exchanged between the two users in either
	// direction, newest first.
	History(ctx context.Context, userID, contactID uint) ([]domain.Message, error)
}
