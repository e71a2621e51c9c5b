// Package service implements the business rules of the communication core:
// message and call persistence, the forward-only status machine, and the
// read-only contact lookup delegated to the external identity provider.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eldercare-comm/internal/domain"
	"eldercare-comm/internal/identity"
	"eldercare-comm/internal/repository"

	"github.com/sirupsen/logrus"
)

// CommunicationService owns the durable path: it is the single writer of
// record for messages and call records. The realtime hub never writes through
// it directly; background workers and the REST facade do.
type CommunicationService struct {
	messages repository.MessageRepository
	calls    repository.CallRepository
	identity identity.Provider
}

// NewCommunicationService wires the service with its persistence contracts
// and the external identity collaborator.
func NewCommunicationService(messages repository.MessageRepository, calls repository.CallRepository, provider identity.Provider) *CommunicationService {
	if messages == nil {
		panic("MessageRepository cannot be nil for CommunicationService")
	}
	if calls == nil {
		panic("CallRepository cannot be nil for CommunicationService")
	}
	if provider == nil {
		panic("identity.Provider cannot be nil for CommunicationService")
	}
	return &CommunicationService{messages: messages, calls: calls, identity: provider}
}

// SendMessage creates a message with status sent and the current timestamp.
// The receiver must resolve through the identity provider.
func (s *CommunicationService) SendMessage(ctx context.Context, senderID, receiverID uint, content, kind string) (*domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{"sender_id": senderID, "receiver_id": receiverID})

	if content == "" || receiverID == 0 {
		return nil, fmt.Errorf("%w: receiverId and content are required", ErrValidation)
	}
	msgKind, err := domain.ParseMessageKind(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if _, err := s.identity.FindByID(ctx, receiverID); err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			logCtx.Warn("SendMessage: receiver does not resolve")
			return nil, ErrContactNotFound
		}
		logCtx.WithError(err).Error("SendMessage: identity lookup failed")
		return nil, ErrInternalServer
	}

	msg := &domain.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Kind:       msgKind,
		Status:     domain.MessageStatusSent,
		Timestamp:  time.Now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		logCtx.WithError(err).Error("SendMessage: failed to persist message")
		return nil, ErrInternalServer
	}
	logCtx.WithField("message_id", msg.ID).Info("Message persisted")
	return msg, nil
}

// MessageHistory returns the full conversation between the caller and a
// contact, newest first.
func (s *CommunicationService) MessageHistory(ctx context.Context, userID, contactID uint) ([]domain.Message, error) {
	msgs, err := s.messages.History(ctx, userID, contactID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"user_id": userID, "contact_id": contactID}).
			Error("MessageHistory: repository error")
		return nil, ErrInternalServer
	}
	return msgs, nil
}

// AdvanceMessageStatus moves a message forward along sent -> delivered ->
// read. Setting the current status again is an idempotent no-op; any backward
// move is rejected with ErrInvalidTransition and the record stays unchanged.
// The update is compare-and-set against the status the caller observed, so
// two near-simultaneous advances cannot lose each other's writes.
func (s *CommunicationService) AdvanceMessageStatus(ctx context.Context, id uint, status string) (*domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{"message_id": id, "target_status": status})

	target, err := domain.ParseMessageStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// One retry after a stale CAS: the concurrent writer may have advanced the
	// record to exactly the status we want.
	for attempt := 0; attempt < 2; attempt++ {
		msg, err := s.messages.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrMessageNotFound) {
				return nil, ErrMessageNotFound
			}
			logCtx.WithError(err).Error("AdvanceMessageStatus: repository error")
			return nil, ErrInternalServer
		}

		if msg.Status == target {
			return msg, nil
		}
		if !msg.Status.CanAdvanceTo(target) {
			logCtx.WithField("current_status", msg.Status).Warn("AdvanceMessageStatus: backward transition rejected")
			return nil, fmt.Errorf("%w: cannot move %s back to %s", ErrInvalidTransition, msg.Status, target)
		}

		err = s.messages.UpdateStatus(ctx, id, msg.Status, target)
		if err == nil {
			msg.Status = target
			logCtx.Info("Message status advanced")
			return msg, nil
		}
		if errors.Is(err, repository.ErrStaleRecord) {
			logCtx.Debug("AdvanceMessageStatus: stale update, re-reading")
			continue
		}
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		logCtx.WithError(err).Error("AdvanceMessageStatus: update failed")
		return nil, ErrInternalServer
	}
	return nil, ErrInvalidTransition
}

// StartCall creates a call record with StartTime set to now. Duration stays
// unset until the call is finished.
func (s *CommunicationService) StartCall(ctx context.Context, callerID, receiverID uint, kind, status string) (*domain.CallRecord, error) {
	logCtx := logrus.WithFields(logrus.Fields{"caller_id": callerID, "receiver_id": receiverID})

	if receiverID == 0 {
		return nil, fmt.Errorf("%w: receiverId is required", ErrValidation)
	}
	callKind, err := domain.ParseCallKind(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	callStatus, err := domain.ParseCallStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if _, err := s.identity.FindByID(ctx, receiverID); err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrContactNotFound
		}
		logCtx.WithError(err).Error("StartCall: identity lookup failed")
		return nil, ErrInternalServer
	}

	call := &domain.CallRecord{
		CallerID:   callerID,
		ReceiverID: receiverID,
		Kind:       callKind,
		Status:     callStatus,
		StartTime:  time.Now(),
	}
	if err := s.calls.Create(ctx, call); err != nil {
		logCtx.WithError(err).Error("StartCall: failed to persist call record")
		return nil, ErrInternalServer
	}
	logCtx.WithField("call_id", call.ID).Info("Call record created")
	return call, nil
}

// FinishCall terminates a call record exactly once: EndTime and the derived
// Duration are set together with the final status. A record that already has
// an end time is terminal and any further update is ErrInvalidTransition.
func (s *CommunicationService) FinishCall(ctx context.Context, id uint, endTime time.Time, status string) (*domain.CallRecord, error) {
	logCtx := logrus.WithField("call_id", id)

	if endTime.IsZero() {
		return nil, fmt.Errorf("%w: endTime is required", ErrValidation)
	}
	callStatus, err := domain.ParseCallStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	call, err := s.calls.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCallNotFound) {
			return nil, ErrCallNotFound
		}
		logCtx.WithError(err).Error("FinishCall: repository error")
		return nil, ErrInternalServer
	}
	if call.Finished() {
		logCtx.Warn("FinishCall: record already terminal")
		return nil, fmt.Errorf("%w: call record already finished", ErrInvalidTransition)
	}

	duration, err := call.DurationFor(endTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	err = s.calls.Finish(ctx, id, endTime, duration, callStatus)
	if err != nil {
		if errors.Is(err, repository.ErrStaleRecord) {
			// Lost the race to another terminating update.
			return nil, fmt.Errorf("%w: call record already finished", ErrInvalidTransition)
		}
		if errors.Is(err, repository.ErrCallNotFound) {
			return nil, ErrCallNotFound
		}
		logCtx.WithError(err).Error("FinishCall: update failed")
		return nil, ErrInternalServer
	}

	call.EndTime = &endTime
	call.Duration = &duration
	call.Status = callStatus
	logCtx.WithField("duration_s", duration).Info("Call record finished")
	return call, nil
}

// CallHistory returns every call involving the user, newest first.
func (s *CommunicationService) CallHistory(ctx context.Context, userID uint) ([]domain.CallRecord, error) {
	calls, err := s.calls.HistoryFor(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("CallHistory: repository error")
		return nil, ErrInternalServer
	}
	return calls, nil
}

// Contacts is a read-only delegation to the identity provider. Contact
// mutation is owned elsewhere.
func (s *CommunicationService) Contacts(ctx context.Context, userID uint) ([]domain.Contact, error) {
	contacts, err := s.identity.ContactsOf(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrContactNotFound
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Contacts: provider error")
		return nil, ErrInternalServer
	}
	return contacts, nil
}

// MarkDelivered advances a message to delivered if it is still in sent state.
// It is called from the background worker after a live relay reached at least
// one recipient; a message already delivered or read is left alone.
func (s *CommunicationService) MarkDelivered(ctx context.Context, id uint) error {
	_, err := s.AdvanceMessageStatus(ctx, id, string(domain.MessageStatusDelivered))
	if errors.Is(err, ErrInvalidTransition) {
		// Already read; nothing to do.
		return nil
	}
	return err
}
