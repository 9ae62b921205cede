package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/sdejongh/robinhood/pkg/compare"
	"github.com/sdejongh/robinhood/pkg/logging"
	"github.com/sdejongh/robinhood/pkg/models"
	"github.com/sdejongh/robinhood/pkg/ratelimit"
	"github.com/sdejongh/robinhood/pkg/storage"
)

// Engine types
const (
	EngineRclone = "rclone"
	EngineDirect = "direct"
)

// Config represents the application configuration
type Config struct {
	Sync          SyncConfig         `yaml:"sync"`
	Performance   PerformanceConfig  `yaml:"performance"`
	Engine        EngineConfig       `yaml:"engine"`
	Output        OutputConfig       `yaml:"output"`
	Logging       LoggingConfig      `yaml:"logging"`
	Exclude       []string           `yaml:"exclude"`
	Include       []string           `yaml:"include,omitempty"`
	ExcludeHidden bool               `yaml:"exclude_hidden"`
	Profiles      map[string]Profile `yaml:"profiles,omitempty"`
}

// SyncConfig holds sync-related settings
type SyncConfig struct {
	Mode          models.SyncMode `yaml:"mode"`
	CaseSensitive bool            `yaml:"case_sensitive"`
	ModifyWindow  time.Duration   `yaml:"modify_window"`
	// Checksum is the digest listed and compared: md5, blake3, or empty for none
	Checksum string `yaml:"checksum"`
	Stateful bool   `yaml:"stateful"`
	// StateDir overrides where baselines are stored
	StateDir string `yaml:"state_dir,omitempty"`
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	MaxWorkers       int           `yaml:"max_workers"`
	RetryLimit       int           `yaml:"retry_limit"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	// BandwidthLimit accepts suffixed rates such as "10M", empty = unlimited
	BandwidthLimit string `yaml:"bandwidth_limit"`
}

// EngineConfig selects and configures the transfer engine
type EngineConfig struct {
	Type        string   `yaml:"type"` // "rclone" or "direct"
	RclonePath  string   `yaml:"rclone_path"`
	RcloneFlags []string `yaml:"rclone_flags,omitempty"`
	S3Region    string   `yaml:"s3_region,omitempty"`
	S3Profile   string   `yaml:"s3_profile,omitempty"`
	// S3ReadModTime recovers the stored modification times with one HEAD
	// request per object. When disabled, S3 objects carry their upload time
	// and every file on an S3 root compares as modified against its source.
	S3ReadModTime bool `yaml:"s3_read_mod_time"`
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Format     string `yaml:"format"` // "json" or "text"
	Level      string `yaml:"level"`  // "debug", "info", "warn", "error"
	File       string `yaml:"file"`   // Log file path (empty = stderr)
	MaxSize    int64  `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// Profile is a named source/destination pair with its own filters
type Profile struct {
	Source      string          `yaml:"source"`
	Destination string          `yaml:"destination,omitempty"`
	Mode        models.SyncMode `yaml:"mode,omitempty"`
	Exclude     []string        `yaml:"exclude,omitempty"`
	Include     []string        `yaml:"include,omitempty"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			Mode:          models.ModeUpdate,
			CaseSensitive: true,
			ModifyWindow:  compare.DefaultModifyWindow,
			Checksum:      storage.ChecksumNone,
		},
		Performance: PerformanceConfig{
			MaxWorkers: 4,
			RetryLimit: 2,
			RetryDelay: time.Second,
		},
		Engine: EngineConfig{
			Type:          EngineRclone,
			RclonePath:    "rclone",
			S3ReadModTime: true,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Format:     "json",
			Level:      "info",
			MaxSize:    10 << 20,
			MaxBackups: 3,
		},
		Exclude: []string{
			"*.tmp",
			".git/",
			"node_modules/",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := models.ParseSyncMode(string(c.Sync.Mode)); err != nil {
		return &models.ValidationError{Field: "sync.mode", Message: "must be update, mirror, sync or dedupe"}
	}
	if c.Sync.ModifyWindow < 0 {
		return &models.ValidationError{Field: "sync.modify_window", Message: "cannot be negative"}
	}
	if err := storage.ValidateChecksum(c.Sync.Checksum); err != nil {
		return &models.ValidationError{Field: "sync.checksum", Message: err.Error()}
	}

	if c.Performance.MaxWorkers < 1 {
		return &models.ValidationError{Field: "performance.max_workers", Message: "must be at least 1"}
	}
	if c.Performance.RetryLimit < 0 {
		return &models.ValidationError{Field: "performance.retry_limit", Message: "cannot be negative"}
	}
	if c.Performance.RetryDelay < 0 || c.Performance.OperationTimeout < 0 {
		return &models.ValidationError{Field: "performance", Message: "durations cannot be negative"}
	}
	if _, err := c.BandwidthLimit(); err != nil {
		return &models.ValidationError{Field: "performance.bandwidth_limit", Message: err.Error()}
	}

	if c.Engine.Type != EngineRclone && c.Engine.Type != EngineDirect {
		return &models.ValidationError{Field: "engine.type", Message: "must be 'rclone' or 'direct'"}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{Field: "output.format", Message: "must be 'human' or 'json'"}
	}

	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return &models.ValidationError{Field: "logging.format", Message: "must be 'json' or 'text'"}
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{Field: "logging.level", Message: "must be 'debug', 'info', 'warn', or 'error'"}
	}

	for name, p := range c.Profiles {
		if p.Source == "" {
			return &models.ValidationError{Field: "profiles." + name + ".source", Message: "is required"}
		}
		if p.Mode != "" {
			if _, err := models.ParseSyncMode(string(p.Mode)); err != nil {
				return &models.ValidationError{Field: "profiles." + name + ".mode", Message: "must be update, mirror, sync or dedupe"}
			}
		}
	}
	return nil
}

// BandwidthLimit returns the configured rate in bytes per second
func (c *Config) BandwidthLimit() (int64, error) {
	return ratelimit.ParseRate(c.Performance.BandwidthLimit)
}

// Profile looks up a named profile
func (c *Config) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (known: %v)", name, c.ProfileNames())
	}
	return p, nil
}

// ProfileNames lists profiles in sorted order
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
