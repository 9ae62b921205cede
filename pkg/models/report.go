package models

import (
	"time"
)

// OpStatus is the execution state of a single operation
type OpStatus string

const (
	OpPending    OpStatus = "pending"
	OpInProgress OpStatus = "in_progress"
	// OpRetried means the last attempt failed and another is queued
	OpRetried OpStatus = "retried"
	OpDone    OpStatus = "done"
	// OpFailed means every attempt failed
	OpFailed OpStatus = "failed"
	// OpSkippedDependency means a prerequisite failed permanently
	OpSkippedDependency OpStatus = "skipped_due_to_dependency"
	// OpCancelled means the run was cancelled before dispatch
	OpCancelled OpStatus = "cancelled"
)

// Terminal reports whether the status can no longer change
func (s OpStatus) Terminal() bool {
	switch s {
	case OpDone, OpFailed, OpSkippedDependency, OpCancelled:
		return true
	}
	return false
}

// SyncStatus represents the overall result
type SyncStatus string

const (
	// StatusRunning indicates the run has not finished
	StatusRunning SyncStatus = "running"
	// StatusSuccess indicates all operations completed successfully
	StatusSuccess SyncStatus = "success"
	// StatusPartial indicates some operations failed
	StatusPartial SyncStatus = "partial"
	// StatusFailed indicates the sync operation failed
	StatusFailed SyncStatus = "failed"
	// StatusCancelled indicates the operation was cancelled
	StatusCancelled SyncStatus = "cancelled"
)

// ExitCode returns the appropriate exit code for the sync status
func (s SyncStatus) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 2
	}
}

// Summary counts operation outcomes of a run
type Summary struct {
	Total                  int   `json:"total"`
	Done                   int   `json:"done"`
	Failed                 int   `json:"failed"`
	SkippedDueToDependency int   `json:"skipped_due_to_dependency"`
	Cancelled              int   `json:"cancelled"`
	Retries                int   `json:"retries"`
	BytesTransferred       int64 `json:"bytes_transferred"`
}

// Status derives the run status from the outcome counts
func (s Summary) Status(cancelled bool) SyncStatus {
	switch {
	case cancelled:
		return StatusCancelled
	case s.Failed == 0 && s.SkippedDueToDependency == 0:
		return StatusSuccess
	case s.Done == 0 && s.Total > 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// OpError is a failed or blocked operation as reported to the user
type OpError struct {
	Path      string    `json:"path"`
	Operation OpKind    `json:"operation"`
	Status    OpStatus  `json:"status"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// DiffCounts tallies diff nodes per status
type DiffCounts map[DiffStatus]int

// Changed is the number of nodes that are not identical
func (c DiffCounts) Changed() int {
	n := 0
	for status, count := range c {
		if status != StatusIdentical {
			n += count
		}
	}
	return n
}

// RunReport is the outcome of a compare or sync run
type RunReport struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Destination string     `json:"destination"`
	Mode        SyncMode   `json:"mode"`
	Engine      string     `json:"engine"`
	DryRun      bool       `json:"dry_run"`
	Status      SyncStatus `json:"status"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	Counts  DiffCounts `json:"diff_counts"`
	Summary Summary    `json:"summary"`

	Conflicts           []ConflictReport `json:"conflicts,omitempty"`
	Duplicates          []DuplicateGroup `json:"duplicates,omitempty"`
	DuplicateCandidates []RelPath        `json:"duplicate_candidates,omitempty"`
	Errors              []OpError        `json:"errors,omitempty"`
}
