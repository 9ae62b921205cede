package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdejongh/robinhood/pkg/output"
)

// NewCompareCommand creates the compare command
func NewCompareCommand(global *GlobalFlags) *cobra.Command {
	f := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two trees and show the planned operations",
		Long: `Compare source and destination and report every difference together
with the operations the selected mode would perform. Nothing is modified.
Exits with 0 when the trees are in sync and 1 otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, global, f)
		},
	}

	addRootFlags(cmd, f)
	addCompareFlags(cmd, f)
	return cmd
}

func runCompare(cmd *cobra.Command, global *GlobalFlags, f *RunFlags) error {
	ctx := cmd.Context()

	setup, err := resolveRun(cmd, global, f, "")
	if err != nil {
		return err
	}
	engine, cleanup, err := newEngine(ctx, cmd, global, f, setup)
	if err != nil {
		return err
	}
	defer cleanup()

	cmp, err := engine.Compare(ctx)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	roots := engine.Roots()
	dest := ""
	if setup.opts.DestPath != "" {
		dest = roots.Dest.String()
	}
	report := output.NewDiffReport(roots.Source.String(), dest, cmp.Diff.Changed(), cmp.Diff.Counts(), cmp.Plan)

	if !setup.cfg.Output.Quiet {
		if err := output.WriteDiffReport(cmd.OutOrStdout(), report, setup.cfg.Output.Format); err != nil {
			return fmt.Errorf("failed to write comparison: %w", err)
		}
	}

	if f.DiffReport != "" {
		if err := output.WriteDiffReportFile(report, f.DiffReport, f.DiffFormat); err != nil {
			return fmt.Errorf("failed to write differences report: %w", err)
		}
	}

	if cmp.Diff.InSync() {
		return nil
	}
	return exitCode(1)
}
