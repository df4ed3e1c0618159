package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Send pipeline
	ErrParse            = fmt.Errorf("malformed message envelope")
	ErrDecode           = fmt.Errorf("malformed attachment encoding")
	ErrReceiverNotFound = fmt.Errorf("receiver not found")
	ErrPersistence      = fmt.Errorf("message persistence failed")
	ErrTransport        = fmt.Errorf("transport failure")

	// Accounts & admission
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidEmail       = fmt.Errorf("invalid email")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrMissingToken       = fmt.Errorf("authorization token is missing")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
	ErrGroupClosed        = fmt.Errorf("broadcast group is drained")

	// Storage
	ErrUnknownUser = fmt.Errorf("constraint violation: unknown user")
)

// ReceiverNotFoundError carries the receiver id as the client sent it.
type ReceiverNotFoundError struct {
	ReceiverID string
}

func (e ReceiverNotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", ErrReceiverNotFound, e.ReceiverID)
}

func (e ReceiverNotFoundError) Unwrap() error {
	return ErrReceiverNotFound
}
