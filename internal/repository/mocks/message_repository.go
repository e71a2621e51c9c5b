// Package mocks contains testify mocks for the repository contracts.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"eldercare-comm/internal/domain"
)

// MessageRepository is a mock of repository.MessageRepository.
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepository) FindByID(ctx context.Context, id uint) (*domain.Message, error) {
	args := m.Called(ctx, id)
	var msg *domain.Message
	if args.Get(0) != nil {
		msg = args.Get(0).(*domain.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepository) UpdateStatus(ctx context.Context, id uint, expected, next domain.MessageStatus) error {
	args := m.Called(ctx, id, expected, next)
	return args.Error(0)
}

func (m *MessageRepository) History(ctx context.Context, userID, contactID uint) ([]domain.Message, error) {
	args := m.Called(ctx, userID, contactID)
	var msgs []domain.Message
	if args.Get(0) != nil {
		msgs = args.Get(0).([]domain.Message)
	}
	return msgs, args.Error(1)
}
