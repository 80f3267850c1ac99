package services

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeServiceUnavailable means the time service gave no usable answer
	ErrTimeServiceUnavailable = errors.New("time service unavailable")
	// ErrMalformedModelOutput means a completion could not be decoded into the expected shape
	ErrMalformedModelOutput = errors.New("malformed model output")
	// ErrDispatchFailed means the scheduling endpoint did not accept the reminder
	ErrDispatchFailed = errors.New("dispatch failed")
	// ErrUnauthenticated means no PIN was presented in the message or its history
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnreachableToolName means the model called a tool that was never registered
	ErrUnreachableToolName = errors.New("unreachable tool name")
)

// DispatchError describes a non-200 answer from the scheduling endpoint
type DispatchError struct {
	StatusCode int
	Body       string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%v: scheduler returned status %d: %s", ErrDispatchFailed, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrDispatchFailed
func (e *DispatchError) Unwrap() error {
	return ErrDispatchFailed
}
