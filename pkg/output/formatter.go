package output

import (
	"io"
	"time"

	"github.com/sdejongh/robinhood/pkg/models"
)

// Progress event types
const (
	EventStart    = "op_start"
	EventProgress = "op_progress"
	EventComplete = "op_complete"
	EventRetry    = "op_retry"
	EventError    = "op_error"
	EventBlocked  = "op_blocked"
)

// ProgressUpdate represents a progress notification during execution
type ProgressUpdate struct {
	Type      string
	Operation models.Operation
	Attempt   int

	// OpBytes is the byte count of the current attempt of Operation
	OpBytes int64

	BytesDone  int64
	BytesTotal int64
	OpsDone    int
	OpsTotal   int
	ETA        time.Duration

	Error error
}

// Formatter defines the interface for output formatting
// Implementations include human-readable, JSON and progress bar formatters
type Formatter interface {
	// Start initializes the formatter for a plan about to be executed
	// maxWorkers indicates the number of parallel workers for display purposes
	Start(writer io.Writer, plan *models.Plan, maxWorkers int) error

	// Progress reports progress during execution
	Progress(update ProgressUpdate) error

	// Complete finalizes output and displays summary
	Complete(report *models.RunReport) error

	// Error reports an error that aborted the run
	Error(err error) error

	// Name returns the formatter name
	Name() string
}

// NullFormatter discards everything
type NullFormatter struct{}

func (NullFormatter) Start(io.Writer, *models.Plan, int) error { return nil }
func (NullFormatter) Progress(ProgressUpdate) error            { return nil }
func (NullFormatter) Complete(*models.RunReport) error         { return nil }
func (NullFormatter) Error(error) error                        { return nil }
func (NullFormatter) Name() string                             { return "null" }
