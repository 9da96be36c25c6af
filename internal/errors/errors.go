// Package errors provides the sentinel error taxonomy shared by the
// linescan reader, stream and worker packages, plus small wrapping helpers.
// All sentinels are meant to be checked with errors.Is after wrapping.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// File/IO errors
	ErrOpenFailed = errors.New("open failed")
	ErrReadFailed = errors.New("read failed")
	ErrCloseFailed = errors.New("close failed")

	// Codec errors
	ErrMalformedInput = errors.New("malformed compressed input")
	ErrUnknownCodec   = errors.New("unknown compression codec")

	// Reader errors
	ErrLineTooLong = errors.New("line exceeds enforced maximum length")
	ErrBufferFull  = errors.New("buffer full")

	// Worker group errors
	ErrGroupActive   = errors.New("worker group is active")
	ErrGroupInactive = errors.New("worker group is not active")

	// General errors
	ErrInvalidArgument = errors.New("invalid argument")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is checks if an error matches a sentinel.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to extract a specific error type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// WithSecondary attaches a secondary error (typically a close failure) to a
// primary one without masking it. The primary error remains the errors.Is
// match target; the secondary is preserved in the message and is also
// matchable.
func WithSecondary(primary, secondary error) error {
	if primary == nil {
		return secondary
	}
	if secondary == nil {
		return primary
	}
	return &secondaryError{primary: primary, secondary: secondary}
}

type secondaryError struct {
	primary   error
	secondary error
}

func (e *secondaryError) Error() string {
	return fmt.Sprintf("%v (also: %v)", e.primary, e.secondary)
}

func (e *secondaryError) Unwrap() []error {
	return []error{e.primary, e.secondary}
}
