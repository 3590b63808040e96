package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when the trigger is not permitted from the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrLocked is returned when the transition exists but the form is locked
	ErrLocked = errors.New("form is locked")
)
