package domain

import (
	"fmt"
	"time"
)

// CallKind distinguishes voice from video calls. It only labels the record;
// media never flows through this service.
type CallKind string

const (
	CallKindVoice CallKind = "voice"
	CallKindVideo CallKind = "video"
)

// ParseCallKind validates a call kind string.
func ParseCallKind(s string) (CallKind, error) {
	switch CallKind(s) {
	case CallKindVoice, CallKindVideo:
		return CallKind(s), nil
	default:
		return "", fmt.Errorf("invalid call type: %q", s)
	}
}

// CallStatus is the recorded outcome of a call.
type CallStatus string

const (
	CallStatusAnswered CallStatus = "answered"
	CallStatusMissed   CallStatus = "missed"
	CallStatusRejected CallStatus = "rejected"
)

// ParseCallStatus validates a call status string.
func ParseCallStatus(s string) (CallStatus, error) {
	switch CallStatus(s) {
	case CallStatusAnswered, CallStatusMissed, CallStatusRejected:
		return CallStatus(s), nil
	default:
		return "", fmt.Errorf("invalid call status: %q", s)
	}
}

// CallRecord is the persisted history entry of a call. EndTime and Duration
// stay unset while the call is in flight; setting them is the one terminal
// transition the record allows.
type CallRecord struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CallerID   uint       `gorm:"not null;index" json:"callerId"`
	ReceiverID uint       `gorm:"not null;index" json:"receiverId"`
	Kind       CallKind   `gorm:"column:type;type:varchar(16);not null" json:"type"`
	Status     CallStatus `gorm:"type:varchar(16);not null" json:"status"`
	StartTime  time.Time  `gorm:"not null;index" json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Duration   *int       `json:"duration,omitempty"`
}

// Finished reports whether the record is terminal.
func (c *CallRecord) Finished() bool {
	return c.EndTime != nil
}

// DurationFor derives the call duration in whole seconds for a given end
// time. An end before the start is a data-integrity error.
func (c *CallRecord) DurationFor(end time.Time) (int, error) {
	d := end.Sub(c.StartTime)
	if d < 0 {
		return 0, fmt.Errorf("endTime %s precedes startTime %s", end.Format(time.RFC3339), c.StartTime.Format(time.RFC3339))
	}
	return int(d.Seconds()), nil
}
