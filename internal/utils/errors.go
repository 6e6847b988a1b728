package utils

import (
	"errors"
	"fmt"
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// ErrModelNotLoaded signals that the requested model contract was never loaded
// at startup. Surfaced to callers as a service-unavailable response.
var ErrModelNotLoaded = errors.New("model not loaded")

// ErrDataSourceUnavailable signals that the event or aggregate store could not
// be reached. Callers degrade to default statistics instead of failing.
var ErrDataSourceUnavailable = errors.New("data source unavailable")

// FeatureMismatchError reports a feature name a loaded model expects that no
// known producer can supply. Caught at startup validation, not at request time.
type FeatureMismatchError struct {
	Contract string
	Feature  string
}

func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("contract %s requires feature %q with no known producer", e.Contract, e.Feature)
}
