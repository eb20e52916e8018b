package shared

import (
	"errors"
	"fmt"
)

// Sentinel kinds for domain failures. Services wrap these with a message;
// the HTTP layer maps each kind to a status code via errors.Is.
var (
	// ErrNotFound indicates the target entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a business-rule violation (terminal status,
	// insufficient balance, duplicate natural key).
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed input caught before storage.
	ErrValidation = errors.New("validation failed")
	// ErrInfrastructure indicates a transient storage or connectivity failure.
	ErrInfrastructure = errors.New("infrastructure error")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf wraps ErrConflict with a formatted message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Infraf wraps ErrInfrastructure with a formatted message.
func Infraf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInfrastructure, fmt.Sprintf(format, args...))
}

// UserSafeMessage returns a message suitable for API clients. Infrastructure
// details are hidden; business rejections keep their text.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInfrastructure):
		return "Terjadi kesalahan internal, coba lagi"
	default:
		return err.Error()
	}
}
