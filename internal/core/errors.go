package core

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is().
var (
	// ErrUserNotFound means the punch identifier resolved to nobody. The
	// punch is dropped silently; readers send garbage all the time.
	ErrUserNotFound = errors.New("user not found")

	// ErrRestWindowNotFound means no dated rest window covers the date.
	ErrRestWindowNotFound = errors.New("rest window not found")

	// ErrSegmentNotFound means an edit referenced a segment that is gone.
	ErrSegmentNotFound = errors.New("time segment not found")

	// ErrStampingClosed means the month has an approval application in
	// flight and no longer accepts punches.
	ErrStampingClosed = errors.New("stamping closed for month")
)

// DataIntegrityError means required reference data is missing, e.g. an
// attendance-type catalog entry. The operation aborts; independent events
// keep flowing.
type DataIntegrityError struct {
	Entity string
	Key    string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %s %q missing", e.Entity, e.Key)
}

// ValidationError rejects a bad edit before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
