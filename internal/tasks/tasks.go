// Package tasks defines the background task types exchanged between the hub
// and the worker through asynq.
package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// TypeMessageDelivered advances a persisted message to delivered after a
	// live relay reached at least one recipient.
	TypeMessageDelivered = "message:delivered"
)

// MessageDeliveredPayload identifies the message to advance.
type MessageDeliveredPayload struct {
	MessageID uint `json:"message_id"`
}

// NewMessageDeliveredTask builds the asynq task for a delivered-status
// advance.
func NewMessageDeliveredTask(messageID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(MessageDeliveredPayload{MessageID: messageID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeMessageDelivered, payload), nil
}
