package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sdejongh/robinhood/pkg/models"
)

// DiffReport is the outcome of a comparison: the changed paths and the
// operations the mode would apply
type DiffReport struct {
	Generated   time.Time               `json:"generated"`
	Source      string                  `json:"source"`
	Destination string                  `json:"destination"`
	Mode        models.SyncMode         `json:"mode"`
	Counts      models.DiffCounts       `json:"counts"`
	Differences []DiffEntry             `json:"differences"`
	Operations  []PlanEntry             `json:"operations"`
	Conflicts   []models.ConflictReport `json:"conflicts,omitempty"`
	Duplicates  []models.DuplicateGroup `json:"duplicates,omitempty"`
}

// DiffEntry is one changed path
type DiffEntry struct {
	Path   models.RelPath    `json:"path"`
	Status models.DiffStatus `json:"status"`
	Reason string            `json:"reason,omitempty"`
	Source *EntryInfo        `json:"source,omitempty"`
	Dest   *EntryInfo        `json:"destination,omitempty"`
}

// EntryInfo describes one side of a changed path
type EntryInfo struct {
	Kind     models.Kind     `json:"kind"`
	Size     int64           `json:"size"`
	ModTime  *time.Time      `json:"mod_time,omitempty"`
	Checksum models.Checksum `json:"checksum,omitempty"`
}

// PlanEntry is one planned operation
type PlanEntry struct {
	Kind   models.OpKind  `json:"kind"`
	Path   models.RelPath `json:"path"`
	Size   int64          `json:"size,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// NewDiffReport builds a report from the changed nodes of a diff and its plan
func NewDiffReport(source, dest string, changed []models.DiffNode, counts models.DiffCounts, plan *models.Plan) *DiffReport {
	r := &DiffReport{
		Generated:   time.Now().UTC(),
		Source:      source,
		Destination: dest,
		Mode:        plan.Mode,
		Counts:      counts,
		Differences: make([]DiffEntry, 0, len(changed)),
		Operations:  make([]PlanEntry, 0, len(plan.Operations)),
		Conflicts:   plan.Conflicts,
		Duplicates:  plan.Duplicates,
	}
	for _, n := range changed {
		r.Differences = append(r.Differences, DiffEntry{
			Path:   n.Path,
			Status: n.Status,
			Reason: n.Reason,
			Source: entryInfo(n.Source),
			Dest:   entryInfo(n.Dest),
		})
	}
	for _, op := range plan.Operations {
		pe := PlanEntry{Kind: op.Kind, Path: op.Path, Reason: op.Reason}
		if op.Kind.IsCopy() && !op.IsDir {
			pe.Size = op.Size
		}
		r.Operations = append(r.Operations, pe)
	}
	return r
}

func entryInfo(e *models.Entry) *EntryInfo {
	if e == nil {
		return nil
	}
	info := &EntryInfo{Kind: e.Kind, Size: e.Size, Checksum: e.Checksum}
	if e.HasModTime() {
		t := e.ModTime.UTC()
		info.ModTime = &t
	}
	return info
}

// WriteDiffReportFile writes the report to a file. Nothing is written when
// the trees are in sync.
func WriteDiffReportFile(report *DiffReport, path string, format string) error {
	if len(report.Differences) == 0 {
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create differences file: %w", err)
	}
	if err := WriteDiffReport(file, report, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteDiffReport writes the report as "human" or "json"
func WriteDiffReport(w io.Writer, report *DiffReport, format string) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}
	return writeDiffHuman(w, report)
}

var statusLabels = map[models.DiffStatus]string{
	models.StatusNewInSource:          "Only in Source",
	models.StatusNewInDestination:     "Only in Destination",
	models.StatusModified:             "Modified",
	models.StatusConflict:             "Conflicts",
	models.StatusDeletedInSource:      "Deleted in Source",
	models.StatusDeletedInDestination: "Deleted in Destination",
}

func writeDiffHuman(w io.Writer, report *DiffReport) error {
	fmt.Fprintf(w, "Differences Report\n")
	fmt.Fprintf(w, "==================\n\n")
	fmt.Fprintf(w, "Generated: %s\n", report.Generated.Format(time.RFC3339))
	fmt.Fprintf(w, "Source: %s\n", report.Source)
	if report.Destination != "" {
		fmt.Fprintf(w, "Destination: %s\n", report.Destination)
	}
	fmt.Fprintf(w, "Mode: %s\n\n", report.Mode)

	if len(report.Differences) == 0 {
		fmt.Fprintf(w, "Trees are in sync (%d identical)\n", report.Counts[models.StatusIdentical])
	} else {
		fmt.Fprintf(w, "Total Differences: %d\n\n", len(report.Differences))
	}

	byStatus := make(map[models.DiffStatus][]DiffEntry)
	for _, d := range report.Differences {
		byStatus[d.Status] = append(byStatus[d.Status], d)
	}

	for _, status := range models.AllDiffStatuses {
		entries := byStatus[status]
		if len(entries) == 0 {
			continue
		}

		label := fmt.Sprintf("%s (%d)", statusLabels[status], len(entries))
		fmt.Fprintf(w, "%s\n", label)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))

		for _, d := range entries {
			fmt.Fprintf(w, "  %s\n", d.Path)
			if d.Reason != "" {
				fmt.Fprintf(w, "    Details: %s\n", d.Reason)
			}
			writeEntryInfo(w, "Source: ", d.Source)
			writeEntryInfo(w, "Dest:   ", d.Dest)
		}
		fmt.Fprintf(w, "\n")
	}

	if len(report.Operations) > 0 {
		label := fmt.Sprintf("Planned Operations (%d)", len(report.Operations))
		fmt.Fprintf(w, "%s\n%s\n", label, strings.Repeat("-", len(label)))
		for _, op := range report.Operations {
			fmt.Fprintf(w, "  %-24s %s\n", op.Kind, op.Path)
		}
	}
	return nil
}

func writeEntryInfo(w io.Writer, label string, info *EntryInfo) {
	if info == nil {
		return
	}
	fmt.Fprintf(w, "    %s %s", label, info.Kind)
	if info.Kind != models.KindDir {
		fmt.Fprintf(w, ", %s", formatBytes(info.Size))
	}
	if info.ModTime != nil {
		fmt.Fprintf(w, ", %s", info.ModTime.Format(time.RFC3339))
	}
	if digest := info.Checksum.Digest(); digest != "" {
		fmt.Fprintf(w, ", %s: %s", info.Checksum.Algorithm(), digest[:min(12, len(digest))])
	}
	fmt.Fprintf(w, "\n")
}
