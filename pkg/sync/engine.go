package sync

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sdejongh/robinhood/internal/platform"
	"github.com/sdejongh/robinhood/pkg/compare"
	"github.com/sdejongh/robinhood/pkg/filter"
	"github.com/sdejongh/robinhood/pkg/logging"
	"github.com/sdejongh/robinhood/pkg/models"
	"github.com/sdejongh/robinhood/pkg/output"
	"github.com/sdejongh/robinhood/pkg/reconcile"
	"github.com/sdejongh/robinhood/pkg/transfer"
	"github.com/sdejongh/robinhood/pkg/tree"
)

// Config wires a run
type Config struct {
	Options  models.RunOptions
	Transfer transfer.Engine

	Formatter output.Formatter
	Writer    io.Writer
	Logger    logging.Logger
	Clock     clockwork.Clock

	// States persists baselines for stateful runs, the default store when nil
	States *StateStore
}

// Comparison is the result of loading, diffing and planning
type Comparison struct {
	Source *tree.Tree
	Dest   *tree.Tree
	Diff   *compare.DiffTree
	Plan   *models.Plan

	// State is the stored pair state of a stateful run
	State *PairState
}

// Engine orchestrates a run: load both trees, diff, plan, execute
type Engine struct {
	cfg    Config
	roots  Roots
	single bool
	filter *filter.Set

	mu          sync.Mutex
	coordinator *Coordinator
	cancelled   bool
}

// NewEngine validates the run options and resolves both roots
func NewEngine(cfg Config) (*Engine, error) {
	opts := &cfg.Options
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if cfg.Transfer == nil {
		return nil, fmt.Errorf("no transfer engine configured")
	}

	source, err := platform.ParseRoot(opts.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("invalid source: %w", err)
	}

	e := &Engine{cfg: cfg, roots: Roots{Source: source}}
	if opts.DestPath == "" {
		e.single = true
	} else {
		dest, err := platform.ParseRoot(opts.DestPath)
		if err != nil {
			return nil, fmt.Errorf("invalid destination: %w", err)
		}
		if opts.Mode != models.ModeDedupe && source.Overlaps(dest) {
			return nil, &models.ValidationError{Field: "DestPath", Message: "source and destination overlap"}
		}
		e.roots.Dest = dest
	}

	e.filter, err = filter.New(filter.Options{
		Exclude:         opts.ExcludePatterns,
		Include:         opts.IncludePatterns,
		ExcludeHidden:   opts.ExcludeHidden,
		CaseInsensitive: opts.CaseInsensitive,
	})
	if err != nil {
		return nil, err
	}

	if e.cfg.Formatter == nil {
		e.cfg.Formatter = output.NullFormatter{}
	}
	if e.cfg.Writer == nil {
		e.cfg.Writer = io.Discard
	}
	if e.cfg.Logger == nil {
		e.cfg.Logger = logging.NewNullLogger()
	}
	if e.cfg.Clock == nil {
		e.cfg.Clock = clockwork.NewRealClock()
	}
	if opts.Stateful && e.cfg.States == nil {
		e.cfg.States = NewStateStore(nil, "")
	}
	return e, nil
}

// Roots returns the resolved roots
func (e *Engine) Roots() Roots {
	return e.roots
}

// Cancel stops the run. Before execution starts it prevents any dispatch.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelled = true
	if e.coordinator != nil {
		e.coordinator.Cancel()
	}
}

// Compare loads both trees, diffs them and plans the mode's operations
func (e *Engine) Compare(ctx context.Context) (*Comparison, error) {
	opts := e.cfg.Options
	logger := e.cfg.Logger

	src, dst, err := e.loadBothSides(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Trees loaded", logging.Fields{
		"source_entries": src.Len(),
		"dest_entries":   dst.Len(),
		"source_bytes":   src.Bytes(),
		"dest_bytes":     dst.Bytes(),
	})

	cmp := &Comparison{Source: src, Dest: dst}
	diffOpts := compare.Options{
		Filter:          e.filter,
		CaseInsensitive: opts.CaseInsensitive,
		ModifyWindow:    opts.ModifyWindow,
	}

	if opts.Stateful && !e.single {
		state, err := e.cfg.States.Load(opts.SourcePath, opts.DestPath)
		if err != nil {
			return nil, err
		}
		cmp.State = state
		if !state.IsFirstSync() {
			diffOpts.Baseline = state.Baseline
		}
	}

	cmp.Diff, err = compare.Diff(src, dst, diffOpts)
	if err != nil {
		return nil, fmt.Errorf("comparison failed: %w", err)
	}

	cmp.Plan, err = reconcile.Plan(cmp.Diff, opts.Mode)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Plan ready", logging.Fields{
		"mode":       opts.Mode,
		"operations": len(cmp.Plan.Operations),
		"skipped":    len(cmp.Plan.Skipped),
		"conflicts":  len(cmp.Plan.Conflicts),
		"bytes":      cmp.Plan.TotalBytes(),
	})
	return cmp, nil
}

// loadBothSides lists source and destination concurrently
func (e *Engine) loadBothSides(ctx context.Context) (*tree.Tree, *tree.Tree, error) {
	var wg sync.WaitGroup
	var src, dst *tree.Tree
	var srcErr, dstErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		src, srcErr = e.load(ctx, e.roots.Source)
	}()

	if e.single {
		dst, dstErr = tree.Load("", tree.FromEntries(nil))
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dst, dstErr = e.load(ctx, e.roots.Dest)
		}()
	}
	wg.Wait()

	if srcErr != nil {
		return nil, nil, fmt.Errorf("failed to load source: %w", srcErr)
	}
	if dstErr != nil {
		return nil, nil, fmt.Errorf("failed to load destination: %w", dstErr)
	}
	return src, dst, nil
}

func (e *Engine) load(ctx context.Context, root platform.Root) (*tree.Tree, error) {
	e.cfg.Logger.Debug(ctx, "Loading tree", logging.Fields{"root": root.String(), "engine": e.cfg.Transfer.Name()})
	return tree.Load(root.String(), e.cfg.Transfer.List(ctx, root))
}

// Run compares and executes the plan. The error is only set when the run
// could not start; execution outcomes are in the report's status.
func (e *Engine) Run(ctx context.Context) (*models.RunReport, *ExecutionState, error) {
	opts := e.cfg.Options
	formatter := e.cfg.Formatter
	start := e.cfg.Clock.Now()

	cmp, err := e.Compare(ctx)
	if err != nil {
		formatter.Error(err)
		return nil, nil, err
	}

	coordinator := NewCoordinator(e.cfg.Transfer, e.roots, CoordinatorOptions{
		Concurrency:      opts.MaxWorkers,
		RetryLimit:       opts.RetryLimit,
		RetryDelay:       opts.RetryDelay,
		OperationTimeout: opts.OperationTimeout,
		DryRun:           opts.DryRun || opts.Mode == models.ModeDedupe,
		CaseInsensitive:  opts.CaseInsensitive,
		RunID:            opts.ID,
		Clock:            e.cfg.Clock,
		Logger:           e.cfg.Logger,
		Formatter:        formatter,
	})
	e.mu.Lock()
	e.coordinator = coordinator
	if e.cancelled {
		coordinator.Cancel()
	}
	e.mu.Unlock()

	if err := formatter.Start(e.cfg.Writer, cmp.Plan, opts.MaxWorkers); err != nil {
		return nil, nil, fmt.Errorf("failed to start output: %w", err)
	}

	state, execErr := coordinator.Execute(ctx, cmp.Plan)
	if execErr != nil {
		e.cfg.Logger.Warn(ctx, "Execution interrupted", logging.Fields{"error": execErr.Error()})
	}

	report := e.report(cmp, state, start)

	if cmp.State != nil && !opts.DryRun && opts.Mode != models.ModeDedupe {
		cmp.State.Baseline = nextBaseline(cmp, state, opts.CaseInsensitive)
		cmp.State.LastSyncTime = report.EndTime
		cmp.State.LastRunID = report.ID
		if err := e.cfg.States.Save(cmp.State); err != nil {
			e.cfg.Logger.Error(ctx, "Failed to save sync state", err, nil)
		}
	}

	if err := formatter.Complete(report); err != nil {
		return report, state, fmt.Errorf("failed to write report: %w", err)
	}
	return report, state, nil
}

func (e *Engine) report(cmp *Comparison, state *ExecutionState, start time.Time) *models.RunReport {
	opts := e.cfg.Options
	snap := state.Snapshot()
	end := e.cfg.Clock.Now()

	return &models.RunReport{
		ID:                  state.ID(),
		Source:              e.roots.Source.String(),
		Destination:         e.destString(),
		Mode:                opts.Mode,
		Engine:              e.cfg.Transfer.Name(),
		DryRun:              opts.DryRun,
		Status:              snap.Status,
		StartTime:           start,
		EndTime:             end,
		Duration:            end.Sub(start),
		Counts:              cmp.Diff.Counts(),
		Summary:             snap.Summary,
		Conflicts:           cmp.Plan.Conflicts,
		Duplicates:          cmp.Plan.Duplicates,
		DuplicateCandidates: cmp.Plan.DuplicateCandidates,
		Errors:              state.Errors(),
	}
}

func (e *Engine) destString() string {
	if e.single {
		return ""
	}
	return e.roots.Dest.String()
}

// nextBaseline computes the paths present on both sides after execution.
// A deletion whose operation did not complete stays in the baseline so the
// next run still detects it.
func nextBaseline(cmp *Comparison, state *ExecutionState, fold bool) *compare.Baseline {
	keyOf := func(p models.RelPath) string {
		if fold {
			return strings.ToLower(p.String())
		}
		return p.String()
	}

	outcome := make(map[string][]OpState)
	for _, rec := range state.Ops() {
		key := keyOf(rec.Op.Path)
		outcome[key] = append(outcome[key], rec)
	}

	var previous *compare.Baseline
	if cmp.State != nil {
		previous = cmp.State.Baseline
	}

	next := compare.NewBaseline()
	for n := range cmp.Diff.All() {
		key := n.Path.String()
		both := n.Source != nil && n.Dest != nil
		pending := false

		for _, rec := range outcome[keyOf(n.Path)] {
			switch {
			case rec.Status != models.OpDone:
				pending = true
			case rec.Op.Kind.IsCopy():
				both = true
			case rec.Op.Kind.IsDelete():
				both = false
			}
		}

		deletion := n.Status == models.StatusDeletedInSource || n.Status == models.StatusDeletedInDestination
		switch {
		case deletion && pending && previous != nil && previous.Contains(n.Path):
			next.Paths[key] = previous.Paths[key]
		case both:
			next.Add(n.Path, *n.Entry())
		}
	}
	return next
}
