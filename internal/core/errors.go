package core

import (
	"errors"
	"strings"
)

var (
	ErrTransformFailed = errors.New("transform failed")
	ErrDurableStore    = errors.New("durable store failure")
	ErrRecording       = errors.New("recording metadata failed")
)

// ValidationError rejects an upload before anything is staged or stored.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	return e.Errors
}
