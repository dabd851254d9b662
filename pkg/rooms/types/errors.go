package types

import "errors"

// ValidationError indicates a missing or non-finite required field.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AuthorizationError indicates a token mismatch or a token-gated call
// for an unknown user. The message is deliberately generic so callers
// cannot distinguish the two cases.
type AuthorizationError struct{}

func (e *AuthorizationError) Error() string {
	return "unauthorized"
}

func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
