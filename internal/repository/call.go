package repository

import (
	"context"
	"time"

	"eldercare-comm/internal/domain"
)

// CallRepository defines storage for call history records.
type CallRepository interface {
	// Create persists a new call record and fills in its ID.
	Create(ctx context.Context, call *domain.CallRecord) error

	// FindByID returns the record or ErrCallNotFound.
	FindByID(ctx context.Context, id uint) (*domain.CallRecord, error)

	// Finish terminates an open call record exactly once: it sets end time,
	// derived duration and final status, guarded on end_time still being
	// unset. Returns ErrStaleRecord if the record was already finished and
	// ErrCallNotFound when the id is unknown.
	Finish(ctx context.Context, id uint, endTime time.Time, duration int, status domain.CallStatus) error

	// HistoryFor returns every call record where the user is either party,
	// newest first by start time.
	HistoryFor(ctx context.Context, userID uint) ([]domain.CallRecord, error)
}
