package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
}

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command, f *GlobalFlags) {
	cmd.PersistentFlags().StringVar(
		&f.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/robinhood/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&f.Verbose,
		"verbose",
		"v",
		false,
		"verbose output and debug logging to stderr",
	)
	cmd.PersistentFlags().BoolVarP(
		&f.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
}

// RunFlags holds the flags shared by compare, sync and dedupe
type RunFlags struct {
	Source  string
	Dest    string
	Profile string
	Mode    string

	Exclude         []string
	Include         []string
	ExcludeHidden   bool
	CaseInsensitive bool
	Checksum        string
	ModifyWindow    time.Duration

	Output     string
	Events     bool
	DiffReport string
	DiffFormat string

	// Execution flags, sync and dedupe only
	Parallel   int
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
	DryRun     bool
	Engine     string
	Bandwidth  string
	Stateful   bool
	RunLog     string
	CreateDest bool

	LogFile   string
	LogFormat string
	LogLevel  string
}

func addRootFlags(cmd *cobra.Command, f *RunFlags) {
	cmd.Flags().StringVarP(&f.Source, "source", "s", "", "source root: local path, remote:path or s3://bucket/prefix")
	cmd.Flags().StringVarP(&f.Dest, "dest", "d", "", "destination root")
	cmd.Flags().StringVar(&f.Profile, "profile", "", "use a named profile from the config file")
}

func addCompareFlags(cmd *cobra.Command, f *RunFlags) {
	cmd.Flags().StringVarP(&f.Mode, "mode", "m", "", "sync mode: update, mirror, sync, dedupe (default from config)")
	cmd.Flags().StringSliceVar(&f.Exclude, "exclude", nil, "glob patterns to exclude")
	cmd.Flags().StringSliceVar(&f.Include, "include", nil, "glob patterns to include, everything else is excluded")
	cmd.Flags().BoolVar(&f.ExcludeHidden, "exclude-hidden", false, "exclude dot files and directories")
	cmd.Flags().BoolVar(&f.CaseInsensitive, "case-insensitive", false, "match paths case-insensitively")
	cmd.Flags().StringVar(&f.Checksum, "checksum", "", "list and compare checksums: md5, blake3")
	cmd.Flags().Lookup("checksum").NoOptDefVal = "md5"
	cmd.Flags().DurationVar(&f.ModifyWindow, "modify-window", 0, "maximum modification time difference treated as equal")
	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "output format: human, json")
	cmd.Flags().BoolVar(&f.Events, "events", false, "with -o json, stream one JSON line per operation event")
	cmd.Flags().StringVar(&f.DiffReport, "diff-report", "", "write differences report to file")
	cmd.Flags().StringVar(&f.DiffFormat, "diff-format", "human", "differences report format: human, json")
	cmd.Flags().StringVar(&f.Engine, "engine", "", "transfer engine: rclone, direct")
}

func addExecFlags(cmd *cobra.Command, f *RunFlags) {
	cmd.Flags().IntVarP(&f.Parallel, "parallel", "p", 0, "number of concurrent operations")
	cmd.Flags().IntVar(&f.Retries, "retries", 0, "retries per failed operation")
	cmd.Flags().DurationVar(&f.RetryDelay, "retry-delay", 0, "delay between attempts")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 0, "per-operation timeout, 0 = none")
	cmd.Flags().BoolVar(&f.DryRun, "dry-run", false, "plan and report without changing anything")
	cmd.Flags().StringVarP(&f.Bandwidth, "bandwidth", "b", "", "bandwidth limit (e.g., \"10M\", \"1G\")")
	cmd.Flags().BoolVar(&f.Stateful, "stateful", false, "remember synced paths so deletions propagate on the next run")
	cmd.Flags().StringVar(&f.RunLog, "run-log", "", "write a JSON log of every operation to file")
	cmd.Flags().BoolVar(&f.CreateDest, "create-dest", false, "create a local destination directory if it doesn't exist")

	cmd.Flags().StringVar(&f.LogFile, "log-file", "", "write logs to file (enables logging)")
	cmd.Flags().StringVar(&f.LogFormat, "log-format", "", "log format: text, json")
	cmd.Flags().StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error")
}
