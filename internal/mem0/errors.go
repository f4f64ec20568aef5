package mem0

import (
	"errors"
	"fmt"
)

// Common errors for the memory service client.
var (
	ErrUnavailable     = errors.New("memory service unavailable")
	ErrUnauthorized    = errors.New("memory service rejected credentials")
	ErrRateLimited     = errors.New("rate limited by memory service")
	ErrEmptyInput      = errors.New("empty input")
	ErrContextCanceled = errors.New("memory service call canceled")
)

// ClientError wraps errors with the operation that produced them.
type ClientError struct {
	Op  string
	Err error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("mem0: %s: %v", e.Op, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError creates a new ClientError.
func NewClientError(op string, err error) error {
	return &ClientError{Op: op, Err: err}
}
