package domain

import "fmt"

// ValidationError rejects malformed input: bad date format, empty or
// over-long task text. Never fatal to the process.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError means the task id is not present in the target day.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// InvalidOperationError rejects operations that are well-formed but not
// allowed, e.g. creating a task for a past date.
type InvalidOperationError struct {
	Msg string
}

func (e *InvalidOperationError) Error() string { return e.Msg }

// StorageError wraps lock-timeout, I/O and corrupt-data failures from the
// durable store. The request fails; the process stays alive.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s tasks file: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
