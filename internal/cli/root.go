package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ExitError carries a process exit code for a command that finished
// without an error message to print
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// exitCode returns nil for success so cobra treats the run as clean
func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}

// NewRootCommand builds the robinhood command tree
func NewRootCommand() *cobra.Command {
	global := &GlobalFlags{}

	rootCmd := &cobra.Command{
		Use:   "robinhood",
		Short: "Compare and synchronize directory trees",
		Long: `robinhood compares two directory trees (local, rclone remotes or S3),
plans the operations a sync mode requires, and executes them in parallel
through rclone or its built-in transfer engine.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(rootCmd, global)

	rootCmd.AddCommand(NewCompareCommand(global))
	rootCmd.AddCommand(NewSyncCommand(global))
	rootCmd.AddCommand(NewDedupeCommand(global))
	rootCmd.AddCommand(NewConfigCommand(global))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
