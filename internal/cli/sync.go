package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdejongh/robinhood/pkg/models"
)

// NewSyncCommand creates the sync command
func NewSyncCommand(global *GlobalFlags) *cobra.Command {
	f := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize two trees",
		Long: `Compare source and destination, plan the operations of the selected
mode and execute them in parallel. Modes:
  update   copy new and modified entries to the destination
  mirror   make the destination an exact copy of the source
  sync     propagate changes both ways, newer wins

Exit codes: 0 success, 1 partial, 2 failed, 3 cancelled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, global, f, "")
		},
	}

	addRootFlags(cmd, f)
	addCompareFlags(cmd, f)
	addExecFlags(cmd, f)
	return cmd
}

func runSync(cmd *cobra.Command, global *GlobalFlags, f *RunFlags, mode models.SyncMode) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	setup, err := resolveRun(cmd, global, f, mode)
	if err != nil {
		return err
	}
	if !setup.opts.DryRun && setup.opts.Mode != models.ModeDedupe {
		if err := prepareDest(setup.opts.DestPath, f.CreateDest); err != nil {
			return err
		}
	}

	engine, cleanup, err := newEngine(ctx, cmd, global, f, setup)
	if err != nil {
		return err
	}
	defer cleanup()

	report, state, err := engine.Run(ctx)
	if err != nil && report == nil {
		return fmt.Errorf("%s failed: %w", setup.opts.Mode, err)
	}

	if f.RunLog != "" && state != nil {
		if err := writeRunLog(f.RunLog, state); err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}
	return exitCode(report.Status.ExitCode())
}
