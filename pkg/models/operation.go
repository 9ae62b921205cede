package models

import (
	"fmt"
	"time"
)

// SyncMode is the reconciliation policy
type SyncMode string

const (
	// ModeUpdate copies new and modified entries from source to destination
	ModeUpdate SyncMode = "update"
	// ModeMirror makes the destination an exact copy of the source
	ModeMirror SyncMode = "mirror"
	// ModeSync propagates changes in both directions
	ModeSync SyncMode = "sync"
	// ModeDedupe reports duplicates and never mutates either tree
	ModeDedupe SyncMode = "dedupe"
)

// ParseSyncMode validates a mode name
func ParseSyncMode(s string) (SyncMode, error) {
	switch m := SyncMode(s); m {
	case ModeUpdate, ModeMirror, ModeSync, ModeDedupe:
		return m, nil
	}
	return "", &ValidationError{Field: "Mode", Message: fmt.Sprintf("unknown sync mode %q (want update, mirror, sync or dedupe)", s)}
}

// OpKind is what an operation does to a tree
type OpKind string

const (
	OpCopyToDestination     OpKind = "copy_to_destination"
	OpCopyToSource          OpKind = "copy_to_source"
	OpDeleteFromDestination OpKind = "delete_from_destination"
	OpDeleteFromSource      OpKind = "delete_from_source"
	OpSkip                  OpKind = "skip"
)

// IsCopy reports whether the operation creates or overwrites an entry
func (k OpKind) IsCopy() bool {
	return k == OpCopyToDestination || k == OpCopyToSource
}

// IsDelete reports whether the operation removes an entry
func (k OpKind) IsDelete() bool {
	return k == OpDeleteFromDestination || k == OpDeleteFromSource
}

// Target returns the side the operation mutates
func (k OpKind) Target() Side {
	switch k {
	case OpCopyToSource, OpDeleteFromSource:
		return SideSource
	}
	return SideDestination
}

// Operation is one step of a plan. It is consumed exactly once by the coordinator.
type Operation struct {
	ID   int
	Kind OpKind
	Path RelPath

	IsDir bool

	// Size is the number of bytes a copy moves, -1 when unknown
	Size int64

	// ModTime is the modification time of the copied entry, preserved on the target
	ModTime time.Time

	// Rank orders the plan: deletes deepest first, then copies shallowest first
	Rank int

	Reason string
}

func (op Operation) String() string {
	return fmt.Sprintf("%s %s", op.Kind, op.Path)
}

// Plan is the ordered output of the reconciler
type Plan struct {
	Mode       SyncMode
	Operations []Operation

	// Skipped holds no-op decisions with their reason
	Skipped []Operation

	Conflicts           []ConflictReport
	Duplicates          []DuplicateGroup
	DuplicateCandidates []RelPath
}

// TotalBytes sums the known sizes of copy operations
func (p *Plan) TotalBytes() int64 {
	var total int64
	for _, op := range p.Operations {
		if op.Kind.IsCopy() && op.Size > 0 {
			total += op.Size
		}
	}
	return total
}

// CountByKind tallies operations per kind
func (p *Plan) CountByKind() map[OpKind]int {
	counts := make(map[OpKind]int)
	for _, op := range p.Operations {
		counts[op.Kind]++
	}
	return counts
}

// RunOptions configures a single comparison or sync run
type RunOptions struct {
	ID              string
	SourcePath      string
	DestPath        string
	Mode            SyncMode
	ExcludePatterns []string
	IncludePatterns []string
	ExcludeHidden   bool
	CaseInsensitive bool
	Checksum        bool
	ModifyWindow    time.Duration
	DryRun          bool
	Stateful        bool

	MaxWorkers       int
	RetryLimit       int
	RetryDelay       time.Duration
	OperationTimeout time.Duration
	BandwidthLimit   int64 // bytes per second, 0 = unlimited

	CreatedAt time.Time
}

// Validate checks if the run configuration is valid
func (o *RunOptions) Validate() error {
	if o.SourcePath == "" {
		return &ValidationError{Field: "SourcePath", Message: "source path is required"}
	}
	if o.DestPath == "" && o.Mode != ModeDedupe {
		return &ValidationError{Field: "DestPath", Message: "destination path is required"}
	}
	if _, err := ParseSyncMode(string(o.Mode)); err != nil {
		return err
	}
	if o.MaxWorkers < 1 {
		return &ValidationError{Field: "MaxWorkers", Message: "max workers must be at least 1"}
	}
	if o.RetryLimit < 0 {
		return &ValidationError{Field: "RetryLimit", Message: "retry limit cannot be negative"}
	}
	if o.OperationTimeout < 0 {
		return &ValidationError{Field: "OperationTimeout", Message: "operation timeout cannot be negative"}
	}
	if o.ModifyWindow < 0 {
		return &ValidationError{Field: "ModifyWindow", Message: "modify window cannot be negative"}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
