// Package sync executes reconciliation plans and orchestrates whole runs.
package sync

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/sdejongh/robinhood/internal/platform"
	"github.com/sdejongh/robinhood/pkg/logging"
	"github.com/sdejongh/robinhood/pkg/models"
	"github.com/sdejongh/robinhood/pkg/output"
	"github.com/sdejongh/robinhood/pkg/transfer"
)

// Roots are the two trees a plan applies to
type Roots struct {
	Source platform.Root
	Dest   platform.Root
}

// Side returns the root of the given side
func (r Roots) Side(s models.Side) platform.Root {
	if s == models.SideSource {
		return r.Source
	}
	return r.Dest
}

// CoordinatorOptions configures plan execution
type CoordinatorOptions struct {
	// Concurrency is the maximum number of operations in flight
	Concurrency int

	// RetryLimit is the number of retries after the first attempt
	RetryLimit int
	RetryDelay time.Duration

	// OperationTimeout bounds each attempt, 0 = no limit
	OperationTimeout time.Duration

	DryRun          bool
	CaseInsensitive bool

	RunID     string
	Clock     clockwork.Clock
	Logger    logging.Logger
	Formatter output.Formatter
}

// Coordinator runs plan operations on a transfer engine with bounded
// concurrency, honouring the dependencies between them
type Coordinator struct {
	engine transfer.Engine
	roots  Roots
	opts   CoordinatorOptions

	state atomic.Pointer[ExecutionState]

	cancelOnce sync.Once
	cancelCh   chan struct{}
}

type result struct {
	index  int
	status models.OpStatus
	err    error
}

// NewCoordinator creates a coordinator
func NewCoordinator(engine transfer.Engine, roots Roots, opts CoordinatorOptions) *Coordinator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.RetryLimit < 0 {
		opts.RetryLimit = 0
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNullLogger()
	}
	if opts.Formatter == nil {
		opts.Formatter = output.NullFormatter{}
	}
	return &Coordinator{
		engine:   engine,
		roots:    roots,
		opts:     opts,
		cancelCh: make(chan struct{}),
	}
}

// Cancel stops dispatching. Operations in flight run to completion.
// Safe to call from any goroutine, any number of times.
func (c *Coordinator) Cancel() {
	c.cancelOnce.Do(func() { close(c.cancelCh) })
}

// State returns the state of the current execution, nil before Execute
func (c *Coordinator) State() *ExecutionState {
	return c.state.Load()
}

// Execute runs the plan and returns its final state. The returned error is
// only set when the caller's context ended the run; operation failures are
// recorded in the state.
func (c *Coordinator) Execute(ctx context.Context, plan *models.Plan) (*ExecutionState, error) {
	ops := plan.Operations
	state := newExecutionState(c.opts.RunID, ops, c.opts.Clock)
	c.state.Store(state)

	logger := c.opts.Logger.WithFields(logging.Fields{"run_id": state.ID()})
	logger.Info(ctx, "Execution started", logging.Fields{
		"operations": len(ops),
		"bytes":      plan.TotalBytes(),
		"workers":    c.opts.Concurrency,
		"dry_run":    c.opts.DryRun,
	})

	if c.opts.DryRun {
		for i := range ops {
			state.finish(i, models.OpDone, nil)
		}
		state.complete(false)
		logger.Info(ctx, "Dry run complete", nil)
		return state, nil
	}

	g := buildGraph(ops, c.opts.CaseInsensitive)
	waiting := make([]int, len(ops))
	var ready []int
	for i := range ops {
		waiting[i] = len(g.deps[i])
		if waiting[i] == 0 {
			ready = append(ready, i)
		}
	}

	// In-flight operations outlive the caller's cancellation
	opCtx := context.WithoutCancel(ctx)
	results := make(chan result)
	inFlight := 0
	cancelled := false
	done, cancelCh := ctx.Done(), c.cancelCh

	for {
		if !cancelled {
			select {
			case <-done:
				cancelled = true
			case <-cancelCh:
				cancelled = true
			default:
			}
		}

		for !cancelled && inFlight < c.opts.Concurrency && len(ready) > 0 {
			i := ready[0]
			ready = ready[1:]
			inFlight++
			go func() {
				results <- c.run(ctx, opCtx, state, i, ops[i])
			}()
		}

		if inFlight == 0 {
			break
		}

		select {
		case r := <-results:
			inFlight--
			ready = c.settle(ctx, logger, state, g, r, waiting, ready)
		case <-done:
			cancelled = true
			done = nil
		case <-cancelCh:
			cancelled = true
			cancelCh = nil
		}
	}

	if cancelled {
		for i := range ops {
			if !state.opStatus(i).Terminal() {
				state.finish(i, models.OpCancelled, nil)
			}
		}
	}
	state.complete(cancelled)

	sum := state.Summary()
	logger.Info(ctx, "Execution finished", logging.Fields{
		"status":  state.Status(),
		"done":    sum.Done,
		"failed":  sum.Failed,
		"blocked": sum.SkippedDueToDependency,
		"retries": sum.Retries,
		"bytes":   sum.BytesTransferred,
	})

	if cancelled && ctx.Err() != nil {
		return state, ctx.Err()
	}
	return state, nil
}

// settle records a finished operation and releases or blocks its dependents
func (c *Coordinator) settle(ctx context.Context, logger logging.Logger, state *ExecutionState, g *graph, r result, waiting, ready []int) []int {
	op := state.Op(r.index).Op
	state.finish(r.index, r.status, r.err)

	switch r.status {
	case models.OpDone:
		logger.Debug(ctx, "Operation done", logging.Fields{"op": op.String()})
		c.notify(state, output.EventComplete, r.index, nil)

		released := false
		for _, d := range g.dependents[r.index] {
			waiting[d]--
			if waiting[d] == 0 && state.opStatus(d) == models.OpPending {
				ready = append(ready, d)
				released = true
			}
		}
		if released {
			slices.Sort(ready)
		}

	case models.OpFailed:
		logger.Error(ctx, "Operation failed", r.err, logging.Fields{"op": op.String()})
		c.notify(state, output.EventError, r.index, r.err)

		for _, d := range g.transitiveDependents(r.index) {
			if state.opStatus(d).Terminal() {
				continue
			}
			blocked := &models.DependencyBlockedError{Op: state.Op(d).Op, Blocker: op}
			state.finish(d, models.OpSkippedDependency, blocked)
			logger.Warn(ctx, "Operation skipped", logging.Fields{"op": state.Op(d).Op.String(), "blocker": op.String()})
			c.notify(state, output.EventBlocked, d, blocked)
		}
	}
	return ready
}

// run performs every attempt of one operation
func (c *Coordinator) run(ctx, opCtx context.Context, state *ExecutionState, i int, op models.Operation) result {
	maxAttempts := 1 + c.opts.RetryLimit
	for attempt := 1; ; attempt++ {
		state.start(i, attempt)
		c.notify(state, output.EventStart, i, nil)

		err := c.attempt(opCtx, state, i, op)
		if err == nil {
			return result{index: i, status: models.OpDone}
		}
		if attempt >= maxAttempts {
			return result{index: i, status: models.OpFailed, err: err}
		}
		if c.stopped(ctx) {
			return result{index: i, status: models.OpCancelled, err: err}
		}

		state.retry(i, err)
		c.opts.Logger.Warn(opCtx, "Retrying operation", logging.Fields{
			"op":      op.String(),
			"attempt": attempt,
			"error":   err.Error(),
		})
		c.notify(state, output.EventRetry, i, err)

		if c.opts.RetryDelay > 0 {
			select {
			case <-c.opts.Clock.After(c.opts.RetryDelay):
			case <-ctx.Done():
				return result{index: i, status: models.OpCancelled, err: err}
			case <-c.cancelCh:
				return result{index: i, status: models.OpCancelled, err: err}
			}
		}
	}
}

// stopped reports whether the run was cancelled, without blocking
func (c *Coordinator) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.cancelCh:
		return true
	default:
		return false
	}
}

// attempt issues a single engine call
func (c *Coordinator) attempt(ctx context.Context, state *ExecutionState, i int, op models.Operation) error {
	attempt := state.Op(i).Attempts
	if c.opts.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.OperationTimeout)
		defer cancel()
	}

	target := op.Kind.Target()
	var err error
	switch {
	case op.Kind.IsCopy():
		req := transfer.CopyRequest{
			From:    c.roots.Side(target.Opposite()),
			To:      c.roots.Side(target),
			Path:    op.Path,
			IsDir:   op.IsDir,
			Size:    op.Size,
			ModTime: op.ModTime,
		}
		err = c.engine.Copy(ctx, req, func(n int64) {
			state.progress(i, n)
			c.notify(state, output.EventProgress, i, nil)
		})
	case op.Kind.IsDelete():
		err = c.engine.Delete(ctx, transfer.DeleteRequest{
			Root:  c.roots.Side(target),
			Path:  op.Path,
			IsDir: op.IsDir,
		})
	default:
		return nil
	}

	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
	if err == nil && !timedOut {
		return nil
	}
	if err == nil {
		err = context.DeadlineExceeded
	}
	return &models.OperationFailure{Op: op, Attempt: attempt, Timeout: timedOut, Err: err}
}

func (c *Coordinator) notify(state *ExecutionState, event string, i int, err error) {
	rec := state.Op(i)
	snap := state.Snapshot()
	c.opts.Formatter.Progress(output.ProgressUpdate{
		Type:       event,
		Operation:  rec.Op,
		Attempt:    rec.Attempts,
		OpBytes:    rec.Bytes,
		BytesDone:  snap.BytesDone,
		BytesTotal: snap.BytesTotal,
		OpsDone:    snap.OpsDone,
		OpsTotal:   snap.OpsTotal,
		ETA:        snap.ETA,
		Error:      err,
	})
}
