package sdr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed or out of range arguments, it is
	// always detected before the device is touched
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrResourceExhausted is returned when a request exceeds the capacity of the backend
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrDevice is returned when the receiver or its transport fails
	ErrDevice = errors.New("device failure")

	// ErrShortRead is returned when the receiver delivered fewer samples than requested.
	// The device remains usable and the read can be repeated.
	ErrShortRead = fmt.Errorf("%w: short read", ErrDevice)

	// ErrDeviceClosed is returned when a closed device is used
	ErrDeviceClosed = fmt.Errorf("%w: device is closed", ErrDevice)

	// ErrPrecondition is returned when inputs do not satisfy an operation precondition
	ErrPrecondition = errors.New("precondition violation")

	// ErrNumerical is returned when a computation would produce NaN or Inf
	ErrNumerical = errors.New("numerical degeneracy")
)

// GainFormatError is returned when a gain setting cannot be parsed
type GainFormatError struct {
	Text string
	Err  error
}

func (e *GainFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid gain string %q: %s", e.Text, e.Err)
	}
	return fmt.Sprintf("invalid gain string %q", e.Text)
}

// Unwrap allows errors.Is(err, ErrInvalidArgument) to match
func (e *GainFormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidArgument, e.Err}
	}
	return []error{ErrInvalidArgument}
}

// ConfigError is a custom error type for backend configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// Unwrap allows errors.Is(err, ErrInvalidArgument) to match
func (e *ConfigError) Unwrap() error {
	return ErrInvalidArgument
}
