package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/sdejongh/robinhood/pkg/models"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Sync.ModifyWindow != time.Second {
		t.Errorf("ModifyWindow = %v, want 1s", cfg.Sync.ModifyWindow)
	}
	if !cfg.Engine.S3ReadModTime {
		t.Error("S3ReadModTime should default to true")
	}
}

func TestLoadFromFile_ExactModifyWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sync:
  modify_window: 0s
engine:
  s3_read_mod_time: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Sync.ModifyWindow != 0 {
		t.Errorf("ModifyWindow = %v, want 0", cfg.Sync.ModifyWindow)
	}
	if cfg.Engine.S3ReadModTime {
		t.Error("S3ReadModTime = true, want false from file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"Mode", func(c *Config) { c.Sync.Mode = "oneway" }, "sync.mode"},
		{"ModifyWindow", func(c *Config) { c.Sync.ModifyWindow = -time.Second }, "sync.modify_window"},
		{"Checksum", func(c *Config) { c.Sync.Checksum = "crc32" }, "sync.checksum"},
		{"Workers", func(c *Config) { c.Performance.MaxWorkers = 0 }, "performance.max_workers"},
		{"Retries", func(c *Config) { c.Performance.RetryLimit = -1 }, "performance.retry_limit"},
		{"Bandwidth", func(c *Config) { c.Performance.BandwidthLimit = "fast" }, "performance.bandwidth_limit"},
		{"Engine", func(c *Config) { c.Engine.Type = "rsync" }, "engine.type"},
		{"OutputFormat", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"LogFormat", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"LogLevel", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"ProfileSource", func(c *Config) { c.Profiles = map[string]Profile{"p": {}} }, "profiles.p.source"},
		{"ProfileMode", func(c *Config) { c.Profiles = map[string]Profile{"p": {Source: "/a", Mode: "x"}} }, "profiles.p.mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			var verr *models.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("Validate() error = %v, want field %s", err, tt.field)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sync:
  mode: mirror
  modify_window: 2s
  checksum: blake3
performance:
  max_workers: 8
  retry_delay: 500ms
  bandwidth_limit: 10M
engine:
  type: direct
profiles:
  photos:
    source: ~/Pictures
    destination: s3://backup/photos
    mode: sync
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Sync.Mode != models.ModeMirror || cfg.Sync.ModifyWindow != 2*time.Second || cfg.Sync.Checksum != "blake3" {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.Performance.MaxWorkers != 8 || cfg.Performance.RetryDelay != 500*time.Millisecond {
		t.Errorf("Performance = %+v", cfg.Performance)
	}
	if limit, _ := cfg.BandwidthLimit(); limit != 10<<20 {
		t.Errorf("BandwidthLimit() = %d, want %d", limit, 10<<20)
	}
	// Unset keys keep defaults
	if cfg.Performance.RetryLimit != Default().Performance.RetryLimit || cfg.Output.Format != "human" {
		t.Error("missing keys should keep default values")
	}

	p, err := cfg.Profile("photos")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	home, _ := homedir.Dir()
	if p.Source != filepath.Join(home, "Pictures") || p.Destination != "s3://backup/photos" {
		t.Errorf("Profile = %+v, want expanded source", p)
	}
	if _, err := cfg.Profile("music"); err == nil {
		t.Error("Profile(music) should fail")
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("sync: [unterminated"), 0644)
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("malformed YAML should fail")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("performance:\n  max_workers: 0\n"), 0644)
	if _, err := LoadFromFile(invalid); err == nil {
		t.Error("invalid values should fail")
	}
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Sync.Stateful = true
	cfg.Performance.OperationTimeout = time.Minute
	cfg.Profiles = map[string]Profile{"docs": {Source: "/docs", Destination: "/backup/docs"}}

	if err := SaveToFile(cfg, path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if !loaded.Sync.Stateful || loaded.Performance.OperationTimeout != time.Minute {
		t.Errorf("loaded = %+v", loaded)
	}
	if names := loaded.ProfileNames(); len(names) != 1 || names[0] != "docs" {
		t.Errorf("ProfileNames() = %v", names)
	}

	cfg.Output.Format = "xml"
	if err := SaveToFile(cfg, path); err == nil {
		t.Error("SaveToFile() should reject an invalid config")
	}
}
