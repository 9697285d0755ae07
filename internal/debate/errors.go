package debate

import (
	"errors"
	"fmt"
)

// ValidationError rejects a malformed debate request before any provider
// call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("debate: invalid request: %s %s", e.Field, e.Reason)
}

// IsValidation reports whether the error chain contains a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TurnError identifies the exact turn at which a debate run aborted.
type TurnError struct {
	Round         int
	ParticipantID string
	Provider      string
	Err           error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("debate: round %d participant %s (%s): %v", e.Round, e.ParticipantID, e.Provider, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// AsTurnError extracts a TurnError from the error chain, if present.
func AsTurnError(err error) (*TurnError, bool) {
	var te *TurnError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
