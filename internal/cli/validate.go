package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sdejongh/robinhood/internal/platform"
	"github.com/sdejongh/robinhood/pkg/config"
	"github.com/sdejongh/robinhood/pkg/logging"
	"github.com/sdejongh/robinhood/pkg/models"
	"github.com/sdejongh/robinhood/pkg/output"
	"github.com/sdejongh/robinhood/pkg/storage"
	"github.com/sdejongh/robinhood/pkg/sync"
	"github.com/sdejongh/robinhood/pkg/transfer"
)

// runSetup is everything a command needs to build a sync.Engine
type runSetup struct {
	cfg       *config.Config
	opts      models.RunOptions
	checksum  string
	engine    string
	bandwidth int64
}

// loadConfig loads configuration from file or returns default
func loadConfig(global *GlobalFlags) (*config.Config, error) {
	if global.ConfigFile != "" {
		return config.LoadFromFile(global.ConfigFile)
	}
	return config.LoadDefault()
}

// resolveRun merges the config file, the selected profile and the flags
// that were set on the command line, in that order of precedence
func resolveRun(cmd *cobra.Command, global *GlobalFlags, f *RunFlags, forceMode models.SyncMode) (*runSetup, error) {
	cfg, err := loadConfig(global)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	changed := cmd.Flags().Changed

	source, dest := f.Source, f.Dest
	mode := cfg.Sync.Mode
	exclude := cfg.Exclude
	include := cfg.Include

	if f.Profile != "" {
		p, err := cfg.Profile(f.Profile)
		if err != nil {
			return nil, err
		}
		if source == "" {
			source = p.Source
		}
		if dest == "" {
			dest = p.Destination
		}
		if p.Mode != "" {
			mode = p.Mode
		}
		exclude = append(append([]string(nil), exclude...), p.Exclude...)
		include = append(append([]string(nil), include...), p.Include...)
	}

	if changed("mode") {
		mode = models.SyncMode(f.Mode)
	}
	if forceMode != "" {
		mode = forceMode
	}
	if _, err := models.ParseSyncMode(string(mode)); err != nil {
		return nil, err
	}

	if changed("exclude") {
		exclude = append(exclude, f.Exclude...)
	}
	if changed("include") {
		include = append(include, f.Include...)
	}
	if changed("exclude-hidden") {
		cfg.ExcludeHidden = f.ExcludeHidden
	}
	if changed("case-insensitive") {
		cfg.Sync.CaseSensitive = !f.CaseInsensitive
	}
	if changed("checksum") {
		cfg.Sync.Checksum = f.Checksum
	}
	if changed("modify-window") {
		cfg.Sync.ModifyWindow = f.ModifyWindow
	}
	if changed("output") {
		cfg.Output.Format = f.Output
	}
	if changed("engine") {
		cfg.Engine.Type = f.Engine
	}
	if changed("parallel") {
		cfg.Performance.MaxWorkers = f.Parallel
	}
	if changed("retries") {
		cfg.Performance.RetryLimit = f.Retries
	}
	if changed("retry-delay") {
		cfg.Performance.RetryDelay = f.RetryDelay
	}
	if changed("timeout") {
		cfg.Performance.OperationTimeout = f.Timeout
	}
	if changed("bandwidth") {
		cfg.Performance.BandwidthLimit = f.Bandwidth
	}
	if changed("stateful") {
		cfg.Sync.Stateful = f.Stateful
	}
	if changed("log-file") {
		cfg.Logging.Enabled = f.LogFile != ""
		cfg.Logging.File = f.LogFile
	}
	if changed("log-format") {
		cfg.Logging.Format = f.LogFormat
	}
	if changed("log-level") {
		cfg.Logging.Level = f.LogLevel
	}
	if global.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}
	cfg.Sync.Mode = mode

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bandwidth, err := cfg.BandwidthLimit()
	if err != nil {
		return nil, err
	}

	setup := &runSetup{
		cfg:       cfg,
		checksum:  cfg.Sync.Checksum,
		engine:    cfg.Engine.Type,
		bandwidth: bandwidth,
		opts: models.RunOptions{
			ID:               uuid.New().String(),
			SourcePath:       source,
			DestPath:         dest,
			Mode:             mode,
			ExcludePatterns:  exclude,
			IncludePatterns:  include,
			ExcludeHidden:    cfg.ExcludeHidden,
			CaseInsensitive:  !cfg.Sync.CaseSensitive,
			Checksum:         cfg.Sync.Checksum != storage.ChecksumNone,
			ModifyWindow:     cfg.Sync.ModifyWindow,
			DryRun:           f.DryRun,
			Stateful:         cfg.Sync.Stateful,
			MaxWorkers:       cfg.Performance.MaxWorkers,
			RetryLimit:       cfg.Performance.RetryLimit,
			RetryDelay:       cfg.Performance.RetryDelay,
			OperationTimeout: cfg.Performance.OperationTimeout,
			BandwidthLimit:   bandwidth,
			CreatedAt:        time.Now(),
		},
	}
	if err := setup.opts.Validate(); err != nil {
		return nil, err
	}
	return setup, nil
}

// prepareDest checks that a local destination exists, creating it when asked
func prepareDest(dest string, create bool) error {
	if dest == "" {
		return nil
	}
	root, err := platform.ParseRoot(dest)
	if err != nil {
		return err
	}
	if root.Kind != platform.RootLocal {
		return nil
	}

	info, err := os.Stat(root.Path)
	switch {
	case os.IsNotExist(err):
		if !create {
			return fmt.Errorf("destination path does not exist: %s (use --create-dest to create it)", dest)
		}
		if err := os.MkdirAll(root.Path, 0755); err != nil {
			return fmt.Errorf("failed to create destination directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to access destination path: %w", err)
	case !info.IsDir():
		return fmt.Errorf("destination path exists but is not a directory: %s", dest)
	}
	return nil
}

// createLogger logs to the configured file, to stderr when verbose, or nowhere
func createLogger(cfg *config.Config, verbose bool) (logging.Logger, error) {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.Enabled && cfg.Logging.File != "" {
		format, err := logging.ParseFormat(cfg.Logging.Format)
		if err != nil {
			return nil, err
		}
		return logging.NewFileLogger(logging.FileLoggerConfig{
			Path:       cfg.Logging.File,
			Format:     format,
			Level:      level,
			MaxSize:    cfg.Logging.MaxSize,
			MaxBackups: cfg.Logging.MaxBackups,
		})
	}
	if verbose {
		return logging.NewConsoleLogger(logging.DebugLevel), nil
	}
	if cfg.Logging.Enabled {
		return logging.NewConsoleLogger(level), nil
	}
	return logging.NewNullLogger(), nil
}

// createFormatter picks the run output
func createFormatter(cfg *config.Config, f *RunFlags, verbose bool) output.Formatter {
	switch {
	case cfg.Output.Format == "json":
		return output.NewJSONFormatter(f.Events)
	case cfg.Output.Quiet:
		return output.NullFormatter{}
	case cfg.Output.Progress && !verbose:
		return output.NewProgressFormatter()
	default:
		return output.NewHumanFormatter(verbose)
	}
}

// closableEngine is a transfer engine plus whatever it holds open
type closableEngine struct {
	transfer.Engine
	close func() error
}

func (e closableEngine) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

// newTransferEngine builds the configured engine. rclone must be installed
// and recent enough.
func newTransferEngine(ctx context.Context, setup *runSetup, logger logging.Logger) (closableEngine, error) {
	cfg := setup.cfg
	switch setup.engine {
	case config.EngineDirect:
		direct := transfer.NewDirect(transfer.DirectOptions{
			Storage: storage.OpenOptions{
				Checksum: setup.checksum,
				S3: storage.S3Options{
					Region:      cfg.Engine.S3Region,
					Profile:     cfg.Engine.S3Profile,
					ReadModTime: cfg.Engine.S3ReadModTime,
				},
			},
			BandwidthLimit: setup.bandwidth,
		})
		return closableEngine{Engine: direct, close: direct.Close}, nil

	case config.EngineRclone:
		rclone := transfer.NewRclone(transfer.RcloneOptions{
			Binary:         cfg.Engine.RclonePath,
			Checksum:       setup.checksum,
			BandwidthLimit: setup.bandwidth,
			ExtraFlags:     cfg.Engine.RcloneFlags,
		})
		v, err := rclone.CheckVersion(ctx)
		if err != nil {
			return closableEngine{}, fmt.Errorf("rclone engine unavailable (use --engine direct for local and S3 roots): %w", err)
		}
		logger.Debug(ctx, "Using rclone", logging.Fields{"version": v.String(), "binary": cfg.Engine.RclonePath})
		return closableEngine{Engine: rclone}, nil
	}
	return closableEngine{}, fmt.Errorf("unknown engine %q", setup.engine)
}

// newEngine wires a sync.Engine for the resolved run
func newEngine(ctx context.Context, cmd *cobra.Command, global *GlobalFlags, f *RunFlags, setup *runSetup) (*sync.Engine, func(), error) {
	logger, err := createLogger(setup.cfg, global.Verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	te, err := newTransferEngine(ctx, setup, logger)
	if err != nil {
		logger.Close()
		return nil, nil, err
	}

	engine, err := sync.NewEngine(sync.Config{
		Options:   setup.opts,
		Transfer:  te,
		Formatter: createFormatter(setup.cfg, f, global.Verbose),
		Writer:    cmd.OutOrStdout(),
		Logger:    logger.WithFields(logging.Fields{"run_id": setup.opts.ID}),
		States:    sync.NewStateStore(nil, setup.cfg.Sync.StateDir),
	})
	cleanup := func() {
		te.Close()
		logger.Close()
	}
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, cleanup, nil
}

// writeRunLog archives the execution state as JSON
func writeRunLog(path string, state *sync.ExecutionState) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create run log: %w", err)
	}
	if err := state.Archive(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write run log: %w", err)
	}
	return file.Close()
}
