package auth

import "errors"

var (
	// ErrInvalidCredentials covers unknown usernames, wrong passwords and
	// federated accounts without a local password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already exists")

	// ErrInvalidInput is returned when a form field fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError describes the form field that failed validation. It
// matches ErrInvalidInput under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }
