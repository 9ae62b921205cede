package output

import (
	"fmt"
	"io"
	"time"

	"github.com/sdejongh/robinhood/pkg/models"
)

// HumanFormatter prints one line per finished operation and a final summary
type HumanFormatter struct {
	writer  io.Writer
	verbose bool
}

// NewHumanFormatter creates a new human-readable formatter. Verbose also
// prints operations as they start.
func NewHumanFormatter(verbose bool) *HumanFormatter {
	return &HumanFormatter{verbose: verbose}
}

// Start prints the plan overview
func (f *HumanFormatter) Start(writer io.Writer, plan *models.Plan, maxWorkers int) error {
	f.writer = writer
	if f.writer == nil {
		f.writer = io.Discard
	}
	writePlanHeader(f.writer, plan, maxWorkers)
	return nil
}

// Progress reports operation lifecycle events
func (f *HumanFormatter) Progress(update ProgressUpdate) error {
	if f.writer == nil {
		return nil
	}

	op := update.Operation
	switch update.Type {
	case EventStart:
		if f.verbose {
			fmt.Fprintf(f.writer, "[%d/%d] %s %s...\n", update.OpsDone, update.OpsTotal, verb(op), op.Path)
		}
	case EventComplete:
		fmt.Fprintf(f.writer, "[%d/%d] ✓ %s %s%s\n", update.OpsDone, update.OpsTotal, verb(op), op.Path, sizeSuffix(op))
	case EventRetry:
		fmt.Fprintf(f.writer, "[%d/%d] ↻ %s %s (attempt %d): %v\n", update.OpsDone, update.OpsTotal, verb(op), op.Path, update.Attempt, update.Error)
	case EventError:
		fmt.Fprintf(f.writer, "[%d/%d] ✗ %s %s: %v\n", update.OpsDone, update.OpsTotal, verb(op), op.Path, update.Error)
	case EventBlocked:
		fmt.Fprintf(f.writer, "[%d/%d] ⊘ %s %s: %v\n", update.OpsDone, update.OpsTotal, verb(op), op.Path, update.Error)
	}
	return nil
}

// Complete displays the run summary
func (f *HumanFormatter) Complete(report *models.RunReport) error {
	if f.writer == nil {
		f.writer = io.Discard
	}
	writeSummary(f.writer, report)
	return nil
}

// Error reports an error
func (f *HumanFormatter) Error(err error) error {
	if f.writer != nil {
		fmt.Fprintf(f.writer, "Error: %v\n", err)
	}
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

func writePlanHeader(w io.Writer, plan *models.Plan, maxWorkers int) {
	if len(plan.Operations) == 0 {
		fmt.Fprintf(w, "Nothing to do (%s)\n", plan.Mode)
		return
	}

	counts := plan.CountByKind()
	fmt.Fprintf(w, "Starting %s: %d operations, %s to transfer, %d workers\n",
		plan.Mode, len(plan.Operations), formatBytes(plan.TotalBytes()), maxWorkers)
	for _, kind := range []models.OpKind{
		models.OpCopyToDestination,
		models.OpCopyToSource,
		models.OpDeleteFromDestination,
		models.OpDeleteFromSource,
	} {
		if counts[kind] > 0 {
			fmt.Fprintf(w, "  %-24s %d\n", kind, counts[kind])
		}
	}
}

func writeSummary(w io.Writer, report *models.RunReport) {
	title := "Run"
	if report.DryRun {
		title = "Dry run"
	}
	fmt.Fprintf(w, "\n%s completed in %s\n\n", title, report.Duration.Round(time.Millisecond))

	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Source:       %s\n", report.Source)
	if report.Destination != "" {
		fmt.Fprintf(w, "  Destination:  %s\n", report.Destination)
	}
	fmt.Fprintf(w, "  Mode:         %s (%s engine)\n", report.Mode, report.Engine)
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "  Differences:\n")
	for _, status := range models.AllDiffStatuses {
		if n := report.Counts[status]; n > 0 {
			fmt.Fprintf(w, "    %-24s %d\n", status, n)
		}
	}
	fmt.Fprintf(w, "\n")

	s := report.Summary
	fmt.Fprintf(w, "  Operations:\n")
	fmt.Fprintf(w, "    Done:       %d/%d\n", s.Done, s.Total)
	fmt.Fprintf(w, "    Failed:     %d\n", s.Failed)
	fmt.Fprintf(w, "    Blocked:    %d\n", s.SkippedDueToDependency)
	fmt.Fprintf(w, "    Cancelled:  %d\n", s.Cancelled)
	fmt.Fprintf(w, "    Retries:    %d\n", s.Retries)
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "  Transfer:\n")
	fmt.Fprintf(w, "    Data:           %s\n", formatBytes(s.BytesTransferred))
	if report.Duration.Seconds() > 0 {
		avgSpeed := float64(s.BytesTransferred) / report.Duration.Seconds()
		fmt.Fprintf(w, "    Average speed:  %s/s\n", formatBytes(int64(avgSpeed)))
	}

	if len(report.Conflicts) > 0 {
		fmt.Fprintf(w, "\nConflicts (left unresolved):\n")
		for _, c := range report.Conflicts {
			fmt.Fprintf(w, "  %s: %s in source, %s in destination\n", c.Path, c.SourceKind, c.DestKind)
		}
	}

	if len(report.Duplicates) > 0 {
		var wasted int64
		fmt.Fprintf(w, "\nDuplicates:\n")
		for _, g := range report.Duplicates {
			keep := g.Members[0]
			fmt.Fprintf(w, "  keep %s:%s (%s)\n", keep.Side, keep.Path, formatBytes(g.Size))
			for _, m := range g.Redundant() {
				fmt.Fprintf(w, "    duplicate %s:%s\n", m.Side, m.Path)
			}
			wasted += g.WastedBytes()
		}
		fmt.Fprintf(w, "  %d groups, %s reclaimable\n", len(report.Duplicates), formatBytes(wasted))
	}
	if len(report.DuplicateCandidates) > 0 {
		fmt.Fprintf(w, "\nDuplicate candidates (same path, different content): %d\n", len(report.DuplicateCandidates))
		for _, p := range report.DuplicateCandidates {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}

	fmt.Fprintf(w, "\nStatus: %s\n", report.Status)

	if len(report.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s %s (%s, %d attempts): %s\n", e.Operation, e.Path, e.Status, e.Attempts, e.Error)
		}
	}
}

func verb(op models.Operation) string {
	switch op.Kind {
	case models.OpCopyToDestination:
		if op.IsDir {
			return "mkdir →"
		}
		return "copy →"
	case models.OpCopyToSource:
		if op.IsDir {
			return "mkdir ←"
		}
		return "copy ←"
	case models.OpDeleteFromDestination:
		return "delete →"
	case models.OpDeleteFromSource:
		return "delete ←"
	}
	return string(op.Kind)
}

func sizeSuffix(op models.Operation) string {
	if !op.Kind.IsCopy() || op.IsDir || op.Size < 0 {
		return ""
	}
	return " (" + formatBytes(op.Size) + ")"
}

// formatBytes formats bytes in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats duration in human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
