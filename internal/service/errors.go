package service

import "errors"

// Business errors surfaced to the HTTP and WebSocket boundaries. Handlers map
// these to status codes; anything not in this list is treated as internal.
var (
	ErrValidation        = errors.New("invalid request payload")
	ErrMessageNotFound   = errors.New("message not found")
	ErrCallNotFound      = errors.New("call record not found")
	ErrContactNotFound   = errors.New("contact not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInternalServer    = errors.New("internal server error")
)
