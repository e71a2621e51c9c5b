package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"eldercare-comm/internal/service"
	"eldercare-comm/internal/tasks"
)

// MessageDeliveredHandler processes delivered-status tasks enqueued by the
// hub after a successful relay.
type MessageDeliveredHandler struct {
	comms *service.CommunicationService
}

// NewMessageDeliveredHandler creates the handler.
func NewMessageDeliveredHandler(comms *service.CommunicationService) *MessageDeliveredHandler {
	if comms == nil {
		panic("CommunicationService cannot be nil for MessageDeliveredHandler")
	}
	return &MessageDeliveredHandler{comms: comms}
}

// ProcessTask advances the message to delivered through the normal
// forward-only rules. A message already delivered or read is a no-op, and an
// unknown id is not retried: the relay path makes no durability promise.
func (h *MessageDeliveredHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.MessageDeliveredPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w: %v", tasks.TypeMessageDelivered, asynq.SkipRetry, err)
	}

	logCtx := logrus.WithFields(logrus.Fields{"component": "worker", "message_id": payload.MessageID})

	err := h.comms.MarkDelivered(ctx, payload.MessageID)
	if err != nil {
		if errors.Is(err, service.ErrMessageNotFound) {
			logCtx.Warn("Delivered task references unknown message, skipping")
			return nil
		}
		logCtx.WithError(err).Error("Failed to mark message delivered")
		return err
	}
	logCtx.Debug("Message marked delivered")
	return nil
}
