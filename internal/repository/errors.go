package repository

import (
	"errors"
	"fmt"
)

// Generic repository errors. Service code matches on these with errors.Is and
// maps them to business errors; GORM or driver errors never cross the
// repository boundary unwrapped.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry indicates a unique-constraint violation.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrStaleRecord indicates a compare-and-set update matched zero rows
	// because the record changed underneath the caller.
	ErrStaleRecord = errors.New("repository: stale record")
)

// Per-entity not-found sentinels. Each wraps ErrNotFound but stays distinct,
// so errors.Is on one never matches another entity's miss.
var (
	ErrMessageNotFound = fmt.Errorf("%w: message", ErrNotFound)
	ErrCallNotFound    = fmt.Errorf("%w: call record", ErrNotFound)
	ErrContactNotFound = fmt.Errorf("%w: contact", ErrNotFound)
)
