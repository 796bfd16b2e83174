// Package config handles patcher configuration loading and management.
package config

import "fmt"

// Config holds the patcher's collaborator contract plus the surrounding
// fields needed to shape a realistic on-disk document. Mirrors and
// PatchListURL are carried for document shape only: this package never
// dereferences a mirror URL or performs network I/O, which remains the
// downloader collaborator's job (spec.md §6).
type Config struct {
	Patcher PatcherConfig `yaml:"patcher"`
	Logging LoggingConfig `yaml:"logging"`
}

// PatcherConfig carries exactly the three fields spec.md §6 names as the
// configuration source's collaborator contract, plus Mirrors/PatchListURL
// for a realistic patch-list document shape.
type PatcherConfig struct {
	Mirrors          []MirrorConfig `yaml:"mirrors"`
	PatchListURL     string         `yaml:"patch_list_url"`
	TargetGRFPath    string         `yaml:"target_grf_path"`
	AllowManualPatch bool           `yaml:"allow_manual_patch"`
	VerifyChecksums  bool           `yaml:"verify_checksums"`
}

// MirrorConfig names one download mirror the (out-of-scope) downloader
// collaborator may select between.
type MirrorConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Priority int    `yaml:"priority"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// LogLevel satisfies internal/logger.LoggingConfig.
func (l LoggingConfig) LogLevel() string { return l.Level }

// LogFilePath satisfies internal/logger.LoggingConfig.
func (l LoggingConfig) LogFilePath() string { return l.LogFile }

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Patcher: PatcherConfig{
			Mirrors: []MirrorConfig{
				{Name: "Primary Mirror", URL: "https://patch.example.com", Priority: 1},
			},
			PatchListURL:     "https://patch.example.com/patchlist.txt",
			TargetGRFPath:    "data.grf",
			AllowManualPatch: true,
			VerifyChecksums:  true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports whether the configuration is fit for use by the patch
// orchestrator, following original_source/beam-core/src/config.rs's
// validate() checks.
func (c *Config) Validate() error {
	if len(c.Patcher.Mirrors) == 0 {
		return fmt.Errorf("at least one mirror must be configured")
	}
	if c.Patcher.PatchListURL == "" {
		return fmt.Errorf("patch list URL cannot be empty")
	}
	if c.Patcher.TargetGRFPath == "" {
		return fmt.Errorf("target GRF path cannot be empty")
	}
	return nil
}
