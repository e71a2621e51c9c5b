package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"eldercare-comm/internal/domain"
)

// CallRepository is a mock of repository.CallRepository.
type CallRepository struct {
	mock.Mock
}

func (m *CallRepository) Create(ctx context.Context, call *domain.CallRecord) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

func (m *CallRepository) FindByID(ctx context.Context, id uint) (*domain.CallRecord, error) {
	args := m.Called(ctx, id)
	var call *domain.CallRecord
	if args.Get(0) != nil {
		call = args.Get(0).(*domain.CallRecord)
	}
	return call, args.Error(1)
}

func (m *CallRepository) Finish(ctx context.Context, id uint, endTime time.Time, duration int, status domain.CallStatus) error {
	args := m.Called(ctx, id, endTime, duration, status)
	return args.Error(0)
}

func (m *CallRepository) HistoryFor(ctx context.Context, userID uint) ([]domain.CallRecord, error) {
	args := m.Called(ctx, userID)
	var calls []domain.CallRecord
	if args.Get(0) != nil {
		calls = args.Get(0).([]domain.CallRecord)
	}
	return calls, args.Error(1)
}
