package output

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"github.com/sdejongh/robinhood/pkg/models"
)

const (
	barTemplate = `{{string . "ops"}} {{bar . "[" "=" ">" " " "]"}} {{counters . }} {{percent . }} {{speed . }} ETA {{string . "eta"}} {{string . "current"}}`
	opsTemplate = `{{string . "ops"}} {{bar . "[" "=" ">" " " "]"}} {{percent . }} ETA {{string . "eta"}} {{string . "current"}}`

	maxPathWidth = 40
)

// getUpdateInterval returns the progress update interval based on OS
// Windows terminals have higher latency with ANSI sequences, so we use a longer interval
func getUpdateInterval() time.Duration {
	if runtime.GOOS == "windows" {
		return 300 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// ProgressFormatter draws a single live progress bar on a terminal. Bytes
// are tracked when the plan has copies of known size, operations otherwise.
// Off a terminal it prints lines like HumanFormatter.
type ProgressFormatter struct {
	writer   io.Writer
	fallback *HumanFormatter
	forceTTY bool

	mu       sync.Mutex
	bar      *pb.ProgressBar
	byOps    bool
	problems []string
}

// NewProgressFormatter creates a new progress bar formatter
func NewProgressFormatter() *ProgressFormatter {
	return &ProgressFormatter{}
}

func isTerminal(w io.Writer) (int, bool) {
	file, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil || width <= 0 {
		width = 120
	}
	return width, true
}

// Start prints the plan overview and starts the bar
func (f *ProgressFormatter) Start(writer io.Writer, plan *models.Plan, maxWorkers int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer

	width, tty := isTerminal(writer)
	if !tty && !f.forceTTY {
		f.fallback = NewHumanFormatter(false)
		return f.fallback.Start(writer, plan, maxWorkers)
	}

	writePlanHeader(writer, plan, maxWorkers)
	if len(plan.Operations) == 0 {
		return nil
	}

	total := plan.TotalBytes()
	f.byOps = total == 0
	tmpl := barTemplate
	if f.byOps {
		total = int64(len(plan.Operations))
		tmpl = opsTemplate
	}

	bar := pb.New64(total)
	bar.SetTemplateString(tmpl)
	bar.SetWriter(writer)
	bar.SetRefreshRate(getUpdateInterval())
	bar.Set(pb.Bytes, !f.byOps)
	bar.Set(pb.Terminal, true)
	if width > 0 {
		bar.SetWidth(width)
	}
	bar.Set("ops", fmt.Sprintf("0/%d", len(plan.Operations)))
	bar.Set("eta", "-")
	bar.Set("current", "")
	if err := bar.Err(); err != nil {
		return fmt.Errorf("invalid progress template: %w", err)
	}
	f.bar = bar.Start()
	return nil
}

// Progress updates the bar
func (f *ProgressFormatter) Progress(update ProgressUpdate) error {
	if f.fallback != nil {
		return f.fallback.Progress(update)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bar == nil {
		return nil
	}

	if f.byOps {
		f.bar.SetCurrent(int64(update.OpsDone))
	} else {
		f.bar.SetCurrent(update.BytesDone)
	}
	f.bar.Set("ops", fmt.Sprintf("%d/%d", update.OpsDone, update.OpsTotal))
	if update.ETA > 0 {
		f.bar.Set("eta", formatDuration(update.ETA))
	}

	op := update.Operation
	switch update.Type {
	case EventStart:
		f.bar.Set("current", truncatePath(op.Path.String(), maxPathWidth))
	case EventRetry:
		f.problems = append(f.problems, fmt.Sprintf("↻ %s %s (attempt %d): %v", verb(op), op.Path, update.Attempt, update.Error))
	case EventError:
		f.problems = append(f.problems, fmt.Sprintf("✗ %s %s: %v", verb(op), op.Path, update.Error))
	case EventBlocked:
		f.problems = append(f.problems, fmt.Sprintf("⊘ %s %s: %v", verb(op), op.Path, update.Error))
	}
	return nil
}

// Complete stops the bar and displays the summary
func (f *ProgressFormatter) Complete(report *models.RunReport) error {
	if f.fallback != nil {
		return f.fallback.Complete(report)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.finish()

	if f.writer == nil {
		f.writer = io.Discard
	}
	for _, p := range f.problems {
		fmt.Fprintln(f.writer, p)
	}
	writeSummary(f.writer, report)
	return nil
}

func (f *ProgressFormatter) finish() {
	if f.bar == nil {
		return
	}
	f.bar.Set("current", "")
	f.bar.Finish()
	f.bar = nil
}

// Error reports an error
func (f *ProgressFormatter) Error(err error) error {
	if f.fallback != nil {
		return f.fallback.Error(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.finish()
	w := f.writer
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}

// truncatePath keeps the end of p, which holds the file name
func truncatePath(p string, width int) string {
	runes := []rune(p)
	if len(runes) <= width {
		return p
	}
	return "..." + strings.TrimLeft(string(runes[len(runes)-width+3:]), "/")
}
