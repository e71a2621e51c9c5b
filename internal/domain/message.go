// Package domain holds the persistent entities of the communication core and
// the transition rules they enforce.
package domain

import (
	"fmt"
	"time"
)

// MessageKind is the content type of a chat message.
type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindVoice MessageKind = "voice"
)

// ParseMessageKind validates a kind string. The empty string defaults to
// text, matching what clients omit most of the time.
func ParseMessageKind(s string) (MessageKind, error) {
	switch MessageKind(s) {
	case "":
		return MessageKindText, nil
	case MessageKindText, MessageKindImage, MessageKindVoice:
		return MessageKind(s), nil
	default:
		return "", fmt.Errorf("invalid message type: %q", s)
	}
}

// MessageStatus is the delivery state of a message. Transitions only move
// forward: sent -> delivered -> read.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// ParseMessageStatus validates a status string.
func ParseMessageStatus(s string) (MessageStatus, error) {
	switch MessageStatus(s) {
	case MessageStatusSent, MessageStatusDelivered, MessageStatusRead:
		return MessageStatus(s), nil
	default:
		return "", fmt.Errorf("invalid message status: %q", s)
	}
}

// rank orders statuses along the pipeline. Unknown values rank below sent so
// they can never gate an advance.
func (s MessageStatus) rank() int {
	switch s {
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	default:
		return 0
	}
}

// CanAdvanceTo reports whether moving to target is a strictly forward
// transition. Re-setting the current status is not an advance.
func (s MessageStatus) CanAdvanceTo(target MessageStatus) bool {
	return target.rank() > s.rank()
}

// Message is a persisted chat message between two users. Rows are written by
// the REST facade only; the realtime relay never touches this table.
type Message struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	SenderID   uint          `gorm:"not null;index" json:"senderId"`
	ReceiverID uint          `gorm:"not null;index" json:"receiverId"`
	Content    string        `gorm:"type:text;not null" json:"content"`
	Kind       MessageKind   `gorm:"column:type;type:varchar(16);not null;default:'text'" json:"type"`
	Status     MessageStatus `gorm:"type:varchar(16);not null;default:'sent'" json:"status"`
	Timestamp  time.Time     `gorm:"not null;index" json:"timestamp"`
}
