package sync

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sdejongh/robinhood/pkg/models"
)

// OpState is the execution record of one operation
type OpState struct {
	Op       models.Operation `json:"-"`
	Status   models.OpStatus  `json:"status"`
	Attempts int              `json:"attempts"`
	Bytes    int64            `json:"bytes"`
	Err      error            `json:"-"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Snapshot is a consistent copy of the execution state for display
type Snapshot struct {
	ID         string            `json:"id"`
	Status     models.SyncStatus `json:"status"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time"`
	Elapsed    time.Duration     `json:"elapsed"`
	BytesDone  int64             `json:"bytes_done"`
	BytesTotal int64             `json:"bytes_total"`
	OpsDone    int               `json:"ops_done"`
	OpsTotal   int               `json:"ops_total"`
	ETA        time.Duration     `json:"eta"`
	Summary    models.Summary    `json:"summary"`
}

// ExecutionState tracks one plan execution. It is owned by the coordinator;
// other goroutines read it through Snapshot.
type ExecutionState struct {
	mu    sync.Mutex
	id    string
	clock clockwork.Clock

	ops        []OpState
	bytesTotal int64
	bytesDone  int64
	opsDone    int
	retries    int

	startTime time.Time
	endTime   time.Time
	status    models.SyncStatus
}

func newExecutionState(id string, ops []models.Operation, clock clockwork.Clock) *ExecutionState {
	s := &ExecutionState{
		id:        id,
		clock:     clock,
		ops:       make([]OpState, len(ops)),
		startTime: clock.Now(),
		status:    models.StatusRunning,
	}
	for i, op := range ops {
		s.ops[i] = OpState{Op: op, Status: models.OpPending}
		if op.Kind.IsCopy() && op.Size > 0 {
			s.bytesTotal += op.Size
		}
	}
	return s
}

// ID returns the run identifier
func (s *ExecutionState) ID() string {
	return s.id
}

// Op returns the record of operation i
func (s *ExecutionState) Op(i int) OpState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops[i]
}

// Ops returns a copy of every operation record, in plan order
func (s *ExecutionState) Ops() []OpState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OpState, len(s.ops))
	copy(out, s.ops)
	return out
}

func (s *ExecutionState) opStatus(i int) models.OpStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops[i].Status
}

// start begins a new attempt. Bytes of a previous attempt are discarded.
func (s *ExecutionState) start(i, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := &s.ops[i]
	s.bytesDone -= op.Bytes
	op.Bytes = 0
	op.Attempts = attempt
	op.Status = models.OpInProgress
	if attempt == 1 {
		op.StartedAt = s.clock.Now()
	}
}

// progress records the byte count of the running attempt
func (s *ExecutionState) progress(i int, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := &s.ops[i]
	if op.Status != models.OpInProgress {
		return
	}
	s.bytesDone += bytes - op.Bytes
	op.Bytes = bytes
}

func (s *ExecutionState) retry(i int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[i].Status = models.OpRetried
	s.ops[i].Err = err
	s.retries++
}

// finish moves operation i to a terminal status
func (s *ExecutionState) finish(i int, status models.OpStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := &s.ops[i]
	if op.Status.Terminal() {
		return
	}
	op.Status = status
	op.Err = err
	op.FinishedAt = s.clock.Now()
	s.opsDone++

	// Operations never attempted (dry run) move no bytes
	if status == models.OpDone && op.Attempts > 0 && op.Op.Kind.IsCopy() && op.Op.Size > 0 {
		s.bytesDone += op.Op.Size - op.Bytes
		op.Bytes = op.Op.Size
	}
}

// complete fixes the final run status
func (s *ExecutionState) complete(cancelled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endTime = s.clock.Now()
	s.status = s.summary().Status(cancelled)
}

func (s *ExecutionState) summary() models.Summary {
	sum := models.Summary{
		Total:            len(s.ops),
		Retries:          s.retries,
		BytesTransferred: s.bytesDone,
	}
	for _, op := range s.ops {
		switch op.Status {
		case models.OpDone:
			sum.Done++
		case models.OpFailed:
			sum.Failed++
		case models.OpSkippedDependency:
			sum.SkippedDueToDependency++
		case models.OpCancelled:
			sum.Cancelled++
		}
	}
	return sum
}

// Summary counts operation outcomes
func (s *ExecutionState) Summary() models.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary()
}

// Status returns the run status, running until the execution completes
func (s *ExecutionState) Status() models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a consistent view of the aggregate progress
func (s *ExecutionState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if !s.endTime.IsZero() {
		now = s.endTime
	}
	elapsed := now.Sub(s.startTime)

	return Snapshot{
		ID:         s.id,
		Status:     s.status,
		StartTime:  s.startTime,
		EndTime:    s.endTime,
		Elapsed:    elapsed,
		BytesDone:  s.bytesDone,
		BytesTotal: s.bytesTotal,
		OpsDone:    s.opsDone,
		OpsTotal:   len(s.ops),
		ETA:        s.eta(elapsed),
		Summary:    s.summary(),
	}
}

// eta extrapolates the byte rate, or the operation rate when no bytes
// have moved yet. Zero means unknown or finished.
func (s *ExecutionState) eta(elapsed time.Duration) time.Duration {
	if elapsed <= 0 || !s.endTime.IsZero() {
		return 0
	}
	if s.bytesTotal > 0 && s.bytesDone > 0 {
		remaining := s.bytesTotal - s.bytesDone
		if remaining <= 0 {
			return 0
		}
		return time.Duration(float64(elapsed) * float64(remaining) / float64(s.bytesDone))
	}
	if s.opsDone > 0 {
		remaining := len(s.ops) - s.opsDone
		return time.Duration(float64(elapsed) * float64(remaining) / float64(s.opsDone))
	}
	return 0
}

// Errors lists failed and blocked operations
func (s *ExecutionState) Errors() []models.OpError {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.OpError
	for _, op := range s.ops {
		if op.Status != models.OpFailed && op.Status != models.OpSkippedDependency {
			continue
		}
		e := models.OpError{
			Path:      op.Op.Path.String(),
			Operation: op.Op.Kind,
			Status:    op.Status,
			Attempts:  op.Attempts,
			Timestamp: op.FinishedAt,
		}
		if op.Err != nil {
			e.Error = op.Err.Error()
		}
		out = append(out, e)
	}
	return out
}

type runLogOp struct {
	ID     int           `json:"id"`
	Kind   models.OpKind `json:"kind"`
	Path   string        `json:"path"`
	IsDir  bool          `json:"is_dir,omitempty"`
	Size   int64         `json:"size"`
	Reason string        `json:"reason,omitempty"`
	Error  string        `json:"error,omitempty"`
	OpState
}

type runLog struct {
	Snapshot
	Operations []runLogOp `json:"operations"`
}

// Archive writes the state as a JSON run log
func (s *ExecutionState) Archive(w io.Writer) error {
	log := runLog{Snapshot: s.Snapshot()}
	for _, op := range s.Ops() {
		entry := runLogOp{
			ID:      op.Op.ID,
			Kind:    op.Op.Kind,
			Path:    op.Op.Path.String(),
			IsDir:   op.Op.IsDir,
			Size:    op.Op.Size,
			Reason:  op.Op.Reason,
			OpState: op,
		}
		if op.Err != nil {
			entry.Error = op.Err.Error()
		}
		log.Operations = append(log.Operations, entry)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(log); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}
	return nil
}
