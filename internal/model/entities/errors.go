package entities

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is matched with errors.Is by transports to answer with a
// client-side fault.
var ErrInvalidInput = errors.New("invalid input")

// InputError is a caller mistake detected before any state is touched.
type InputError struct {
	Field   string
	Message string
}

func NewInputError(field, format string, args ...any) *InputError {
	return &InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *InputError) Error() string { return e.Message }

func (e *InputError) Unwrap() error { return ErrInvalidInput }
