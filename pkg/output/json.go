package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sdejongh/robinhood/pkg/models"
)

// JSONFormatter formats output as JSON for automation and scripting.
// By default only the final report is written; with events enabled every
// lifecycle event is written as one JSON line before it.
type JSONFormatter struct {
	writer io.Writer
	events bool
	clock  clockwork.Clock

	mu  sync.Mutex
	enc *json.Encoder
}

// JSONEvent represents a single event in the JSON output stream
type JSONEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
}

// JSONStartData represents the data for a start event
type JSONStartData struct {
	Mode       models.SyncMode `json:"mode"`
	Operations int             `json:"operations"`
	TotalBytes int64           `json:"total_bytes"`
	Workers    int             `json:"workers"`
}

// JSONOperationData represents an operation event
type JSONOperationData struct {
	Kind       models.OpKind  `json:"kind"`
	Path       models.RelPath `json:"path"`
	Attempt    int            `json:"attempt,omitempty"`
	BytesDone  int64          `json:"bytes_done"`
	BytesTotal int64          `json:"bytes_total"`
	OpsDone    int            `json:"ops_done"`
	OpsTotal   int            `json:"ops_total"`
	ETASeconds float64        `json:"eta_seconds,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(events bool) *JSONFormatter {
	return &JSONFormatter{events: events, clock: clockwork.NewRealClock()}
}

// Start initializes the formatter
func (f *JSONFormatter) Start(writer io.Writer, plan *models.Plan, maxWorkers int) error {
	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer
	f.enc = json.NewEncoder(writer)

	return f.emit(JSONEvent{
		Type: "start",
		Data: JSONStartData{
			Mode:       plan.Mode,
			Operations: len(plan.Operations),
			TotalBytes: plan.TotalBytes(),
			Workers:    maxWorkers,
		},
	})
}

// Progress writes lifecycle events. Byte progress is never streamed.
func (f *JSONFormatter) Progress(update ProgressUpdate) error {
	if update.Type == EventProgress {
		return nil
	}

	data := JSONOperationData{
		Kind:       update.Operation.Kind,
		Path:       update.Operation.Path,
		Attempt:    update.Attempt,
		BytesDone:  update.BytesDone,
		BytesTotal: update.BytesTotal,
		OpsDone:    update.OpsDone,
		OpsTotal:   update.OpsTotal,
		ETASeconds: update.ETA.Seconds(),
	}
	if update.Error != nil {
		data.Error = update.Error.Error()
	}
	return f.emit(JSONEvent{Type: update.Type, Data: data})
}

func (f *JSONFormatter) emit(event JSONEvent) error {
	if !f.events || f.enc == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	event.Timestamp = f.clock.Now().UTC()
	return f.enc.Encode(event)
}

// Complete writes the run report
func (f *JSONFormatter) Complete(report *models.RunReport) error {
	if f.writer == nil {
		f.writer = os.Stdout
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	encoder := json.NewEncoder(f.writer)
	if f.events {
		// Keep the stream line-delimited
		return encoder.Encode(JSONEvent{Timestamp: f.clock.Now().UTC(), Type: "complete", Data: report})
	}
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// Error reports an error that aborted the run
func (f *JSONFormatter) Error(err error) error {
	w := f.writer
	if w == nil {
		w = os.Stdout
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return json.NewEncoder(w).Encode(JSONEvent{
		Timestamp: f.clock.Now().UTC(),
		Type:      "error",
		Data:      map[string]string{"error": err.Error()},
	})
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}
