package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrLimitExceeded is returned when a user already holds the maximum number of cards.
	ErrLimitExceeded = errors.New("card limit exceeded")

	// ErrDuplicateRecord is returned when the user already stored a card with the same last six digits.
	ErrDuplicateRecord = errors.New("duplicated record")

	// ErrCardOperationInProgress is returned when another card creation for the same user holds the lock.
	ErrCardOperationInProgress = errors.New("card operation in progress")

	// ErrProviderError is returned when the payment provider call fails.
	ErrProviderError = errors.New("payment provider error")

	// ErrUserProvisioning is returned when an internal buyer account cannot be created.
	ErrUserProvisioning = errors.New("user provisioning failed")

	// ErrUserExists is returned when a username or email is already registered.
	ErrUserExists = errors.New("user already exists")

	// ErrUsernameTaken and ErrEmailTaken say which field collided. Both match ErrUserExists.
	ErrUsernameTaken = fmt.Errorf("%w: username", ErrUserExists)
	ErrEmailTaken    = fmt.Errorf("%w: email", ErrUserExists)

	// ErrUnauthenticated is returned when an operation needs a caller identity.
	ErrUnauthenticated = errors.New("authentication required")
)

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ProviderError wraps a failed provider operation.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider %s: %v", e.Op, e.Err)
}

// Is matches ErrProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderError
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
