package workflow

import "fmt"

// ValidationError means the request is malformed or breaks a workflow rule;
// the entity was not touched.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError means the request raced with another writer or targets an
// entity whose state moved on. Safe to retry after re-reading.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }

func conflictf(format string, args ...any) error {
	return ConflictError{Msg: fmt.Sprintf(format, args...)}
}
