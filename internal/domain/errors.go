package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports every violation found in a registration batch,
// not just the first, so one call surfaces all configuration mistakes.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("feature validation failed (%d violations): %s",
		len(e.Violations), strings.Join(e.Violations, "; "))
}

// ConflictError means a spec was re-registered under an existing name with a
// different definition and no override was requested.
type ConflictError struct {
	Name   string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("feature %q conflicts with registered definition: %s", e.Name, e.Reason)
}

// SourceReadError means upstream source data stayed unavailable after the
// bounded retry budget was spent.
type SourceReadError struct {
	Source   string
	Attempts int
	Err      error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("reading source %q failed after %d attempts: %v", e.Source, e.Attempts, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// PartialWriteError means a subset of offline or online writes failed. The
// run as a whole is not aborted; failed keys are reported for retry.
type PartialWriteError struct {
	Succeeded  int
	Failed     int
	FailedKeys []string
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write: %d succeeded, %d failed (failed keys: %s)",
		e.Succeeded, e.Failed, strings.Join(e.FailedKeys, ", "))
}
