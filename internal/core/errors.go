package core

import "errors"

// Error kinds. Match them with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("auth error")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage error")
	ErrNetwork    = errors.New("network error")
)

// Error is a typed failure carrying a message fit for direct display.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func ValidationError(msg string, cause error) *Error { return newError(ErrValidation, msg, cause) }
func AuthError(msg string, cause error) *Error       { return newError(ErrAuth, msg, cause) }
func NotFoundError(msg string, cause error) *Error   { return newError(ErrNotFound, msg, cause) }
func StorageError(msg string, cause error) *Error    { return newError(ErrStorage, msg, cause) }
func NetworkError(msg string, cause error) *Error    { return newError(ErrNetwork, msg, cause) }

// Message returns the display message of err, falling back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
