package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"eldercare-comm/internal/domain"
	identitymocks "eldercare-comm/internal/identity/mocks"
	"eldercare-comm/internal/repository"
	"eldercare-comm/internal/repository/mocks"
	"eldercare-comm/internal/service"
)

type fixtures struct {
	messages *mocks.MessageRepository
	calls    *mocks.CallRepository
	identity *identitymocks.Provider
	svc      *service.CommunicationService
}

func newFixtures() *fixtures {
	f := &fixtures{
		messages: new(mocks.MessageRepository),
		calls:    new(mocks.CallRepository),
		identity: new(identitymocks.Provider),
	}
	f.svc = service.NewCommunicationService(f.messages, f.calls, f.identity)
	return f
}

func TestSendMessage_Success(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()

	f.identity.On("FindByID", ctx, uint(2)).
		Return(&domain.Contact{ID: 2, Name: "Wang"}, nil).Once()
	f.messages.On("Create", ctx, mock.MatchedBy(func(m *domain.Message) bool {
		assert.Equal(t, uint(1), m.SenderID)
		assert.Equal(t, uint(2), m.ReceiverID)
		assert.Equal(t, "hi", m.Content)
		assert.Equal(t, domain.MessageKindText, m.Kind, "default kind is text")
		assert.Equal(t, domain.MessageStatusSent, m.Status)
		assert.False(t, m.Timestamp.IsZero())
		return true
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Message).ID = 7
	}).Return(nil).Once()

	msg, err := f.svc.SendMessage(ctx, 1, 2, "hi", "")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, uint(7), msg.ID)
	assert.Equal(t, domain.MessageStatusSent, msg.Status)

	f.identity.AssertExpectations(t)
	f.messages.AssertExpectations(t)
}

func TestSendMessage_UnknownReceiver(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()

	f.identity.On("FindByID", ctx, uint(99)).
		Return(nil, repository.ErrContactNotFound).Once()

	_, err := f.svc.SendMessage(ctx, 1, 99, "hi", "text")
	assert.True(t, errors.Is(err, service.ErrContactNotFound))
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendMessage_Validation(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, 1, 2, "", "text")
	assert.True(t, errors.Is(err, service.ErrValidation), "empty content rejected")

	_, err = f.svc.SendMessage(ctx, 1, 2, "hi", "smoke-signal")
	assert.True(t, errors.Is(err, service.ErrValidation), "unknown kind rejected")

	f.identity.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestAdvanceMessageStatus_ForwardOnly(t *testing.T) {
	// Scenario: a sent message is marked read, then a later attempt to move
	// it back to sent fails and leaves the record unchanged.
	f := newFixtures()
	ctx := context.Background()

	f.messages.On("FindByID", ctx, uint(7)).
		Return(&domain.Message{ID: 7, Status: domain.MessageStatusSent}, nil).Once()
	f.messages.On("UpdateStatus", ctx, uint(7), domain.MessageStatusSent, domain.MessageStatusRead).
		Return(nil).Once()

	msg, err := f.svc.AdvanceMessageStatus(ctx, 7, "read")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusRead, msg.Status)

	f.messages.On("FindByID", ctx, uint(7)).
		Return(&domain.Message{ID: 7, Status: domain.MessageStatusRead}, nil).Once()

	_, err = f.svc.AdvanceMessageStatus(ctx, 7, "sent")
	assert.True(t, errors.Is(err, service.ErrInvalidTransition))
	f.messages.AssertNumberOfCalls(t, "UpdateStatus", 1)
}

func TestAdvanceMessageStatus_SameStatusIsIdempotent(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()

	f.messages.On("FindByID", ctx, uint(7)).
		Return(&domain.Message{ID: 7, Status: domain.MessageStatusRead}, nil).Once()

	msg, err := f.svc.AdvanceMessageStatus(ctx, 7, "read")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusRead, msg.Status)
	f.messages.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdvanceMessageStatus_StaleRetry(t *testing.T) {
	// A concurrent writer advanced the record between our read and our CAS.
	// The retry re-reads and succeeds from the new baseline.
	f := newFixtures()
	ctx := context.Background()

	f.messages.On("FindByID", ctx, uint(7)).
		Return(&domain.Message{ID: 7, Status: domain.MessageStatusSent}, nil).Once()
	f.messages.On("UpdateStatus", ctx, uint(7), domain.MessageStatusSent, domain.MessageStatusRead).
		Return(repository.ErrStaleRecord).Once()
	f.messages.On("FindByID", ctx, uint(7)).
		Return(&domain.Message{ID: 7, Status: domain.MessageStatusDelivered}, nil).Once()
	f.messages.On("UpdateStatus", ctx, uint(7), domain.MessageStatusDelivered, domain.MessageStatusRead).
		Return(nil).Once()

	msg, err := f.svc.AdvanceMessageStatus(ctx, 7, "read")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusRead, msg.Status)
	f.messages.AssertExpectations(t)
}

func TestAdvanceMessageStatus_UnknownMessage(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()

	f.messages.On("FindByID", ctx, uint(404)).
		Return(nil, repository.ErrMessageNotFound).Once()

	_, err := f.svc.AdvanceMessageStatus(ctx, 404, "read")
	assert.True(t, errors.Is(err, service.ErrMessageNotFound))
}

func TestStartCall_Success(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()

	f.identity.On("FindByID", ctx, uint(2)).
		Return(&domain.Contact{ID: 2}, nil).Once()
	f.calls.On("Create", ctx, mock.MatchedBy(func(c *domain.CallRecord) bool {
		assert.Equal(t, uint(1), c.CallerID)
		assert.Equal(t, uint(2), c.ReceiverID)
		assert.Equal(t, domain.CallKindVoice, c.Kind)
		assert.Equal(t, domain.CallStatusAnswered, c.Status)
		assert.False(t, c.StartTime.IsZero())
		assert.Nil(t, c.EndTime)
		assert.Nil(t, c.Duration)
		return true
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.CallRecord).ID = 3
	}).Return(nil).Once()

	call, err := f.svc.StartCall(ctx, 1, 2, "voice", "answered")
	require.NoError(t, err)
	assert.Equal(t, uint(3), call.ID)
	assert.Nil(t, call.Duration, "duration stays unset until the call is finished")
}

func TestStartCall_Validation(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()

	_, err := f.svc.StartCall(ctx, 1, 2, "telepathy", "answered")
	assert.True(t, errors.Is(err, service.ErrValidation))

	_, err = f.svc.StartCall(ctx, 1, 2, "voice", "ongoing")
	assert.True(t, errors.Is(err, service.ErrValidation))

	f.calls.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestFinishCall_DerivesDuration(t *testing.T) {
	// Scenario: a call started at T finished at T+90s yields duration 90.
	f := newFixtures()
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)

	f.calls.On("FindByID", ctx, uint(3)).
		Return(&domain.CallRecord{ID: 3, StartTime: start, Status: domain.CallStatusAnswered}, nil).Once()
	f.calls.On("Finish", ctx, uint(3), end, 90, domain.CallStatusAnswered).
		Return(nil).Once()

	call, err := f.svc.FinishCall(ctx, 3, end, "answered")
	require.NoError(t, err)
	require.NotNil(t, call.EndTime)
	require.NotNil(t, call.Duration)
	assert.Equal(t, 90, *call.Duration)
	assert.Equal(t, end, *call.EndTime)
	f.calls.AssertExpectations(t)
}

func TestFinishCall_TerminalRecordRejected(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)
	end := start.Add(30 * time.Second)
	duration := 30

	f.calls.On("FindByID", ctx, uint(3)).
		Return(&domain.CallRecord{ID: 3, StartTime: start, EndTime: &end, Duration: &duration}, nil).Once()

	_, err := f.svc.FinishCall(ctx, 3, time.Now(), "answered")
	assert.True(t, errors.Is(err, service.ErrInvalidTransition))
	f.calls.AssertNotCalled(t, "Finish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFinishCall_NegativeDurationRejected(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()
	start := time.Now()

	f.calls.On("FindByID", ctx, uint(3)).
		Return(&domain.CallRecord{ID: 3, StartTime: start}, nil).Once()

	_, err := f.svc.FinishCall(ctx, 3, start.Add(-time.Second), "missed")
	assert.True(t, errors.Is(err, service.ErrValidation))
	f.calls.AssertNotCalled(t, "Finish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFinishCall_LostRaceIsInvalidTransition(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)
	end := time.Now()

	f.calls.On("FindByID", ctx, uint(3)).
		Return(&domain.CallRecord{ID: 3, StartTime: start}, nil).Once()
	f.calls.On("Finish", ctx, uint(3), end, mock.AnythingOfType("int"), domain.CallStatusAnswered).
		Return(repository.ErrStaleRecord).Once()

	_, err := f.svc.FinishCall(ctx, 3, end, "answered")
	assert.True(t, errors.Is(err, service.ErrInvalidTransition))
}

func TestCallHistory(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()
	records := []domain.CallRecord{{ID: 2}, {ID: 1}}

	f.calls.On("HistoryFor", ctx, uint(1)).Return(records, nil).Once()

	got, err := f.svc.CallHistory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestContacts_Delegation(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()
	contacts := []domain.Contact{{ID: 2, Name: "Wang"}}

	f.identity.On("ContactsOf", ctx, uint(1)).Return(contacts, nil).Once()

	got, err := f.svc.Contacts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, contacts, got)
}

func TestMarkDelivered_AlreadyReadIsNoop(t *testing.T) {
	f := newFixtures()
	ctx := context.Background()

	f.messages.On("FindByID", ctx, uint(7)).
		Return(&domain.Message{ID: 7, Status: domain.MessageStatusRead}, nil).Once()

	err := f.svc.MarkDelivered(ctx, 7)
	assert.NoError(t, err, "a message already read needs no delivered transition")
	f.messages.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
