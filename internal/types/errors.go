package types

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFormat = errors.New("invalid format")
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrFatalConfig aborts a run: missing or unreadable data root, invalid settings.
	ErrFatalConfig = errors.New("fatal configuration error")

	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrCacheInvalid marks a pricing cache that is absent, stale, corrupt or
	// from another schema version. The run continues on built-in pricing.
	ErrCacheInvalid = errors.New("pricing cache invalid")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error in field %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// LoaderError is a file that could not be read; the file is skipped.
type LoaderError struct {
	Path string
	Err  error
}

func (e LoaderError) Error() string {
	return fmt.Sprintf("failed to load from %s: %v", e.Path, e.Err)
}

func (e LoaderError) Unwrap() error {
	return e.Err
}

// ParseError is a line that could not be decoded or normalized; the line is skipped.
type ParseError struct {
	Line int
	Err  error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %v", e.Line, e.Err)
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatalConfig) || errors.Is(err, ErrInvalidConfig)
}
