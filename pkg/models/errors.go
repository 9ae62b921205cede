package models

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is against the typed errors below
var (
	ErrMalformedListing  = errors.New("malformed listing")
	ErrComparison        = errors.New("comparison error")
	ErrOperationFailure  = errors.New("operation failure")
	ErrDependencyBlocked = errors.New("dependency blocked")
)

// MalformedListingError aborts loading a tree
type MalformedListingError struct {
	Root   string
	Path   string
	Reason string
	Err    error
}

func (e *MalformedListingError) Error() string {
	msg := "malformed listing"
	if e.Root != "" {
		msg += " of " + e.Root
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" at %q", e.Path)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedListingError) Unwrap() error { return e.Err }

func (e *MalformedListingError) Is(target error) bool { return target == ErrMalformedListing }

// ComparisonError is a structural conflict the differ cannot resolve
type ComparisonError struct {
	Path   string
	Reason string
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("comparison error at %q: %s", e.Path, e.Reason)
}

func (e *ComparisonError) Is(target error) bool { return target == ErrComparison }

// OperationFailure wraps an engine error for one attempt of an operation
type OperationFailure struct {
	Op      Operation
	Attempt int
	Timeout bool
	Err     error
}

func (e *OperationFailure) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: attempt %d timed out: %v", e.Op, e.Attempt, e.Err)
	}
	return fmt.Sprintf("%s: attempt %d failed: %v", e.Op, e.Attempt, e.Err)
}

func (e *OperationFailure) Unwrap() error { return e.Err }

func (e *OperationFailure) Is(target error) bool { return target == ErrOperationFailure }

// DependencyBlockedError marks an operation never attempted because a
// prerequisite failed permanently
type DependencyBlockedError struct {
	Op      Operation
	Blocker Operation
}

func (e *DependencyBlockedError) Error() string {
	return fmt.Sprintf("%s: blocked by failed %s", e.Op, e.Blocker)
}

func (e *DependencyBlockedError) Is(target error) bool { return target == ErrDependencyBlocked }
