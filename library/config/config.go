package config

import (
	"fmt"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// CueRetention represents how cue markers are carried into the target format.
type CueRetention string

const (
	CueKeepAll    CueRetention = "keep-all"
	CueFirstEight CueRetention = "first-8"
	CueDropAll    CueRetention = "drop-all"
)

// MissingFilePolicy represents how tracks whose audio file is absent are
// handled during migration.
type MissingFilePolicy string

const (
	MissingSkip   MissingFilePolicy = "skip"
	MissingWarn   MissingFilePolicy = "include-with-warning"
	MissingLocate MissingFilePolicy = "attempt-to-locate"
)

// AnalysisSettings holds signal analysis configuration.
type AnalysisSettings struct {
	Enabled             bool   `yaml:"enabled"`
	BPMWindowSeconds    int    `yaml:"bpm_window_seconds"`
	BPMOffsetSeconds    int    `yaml:"bpm_offset_seconds"`
	KeyWindowSeconds    int    `yaml:"key_window_seconds"`
	EnergyWindowSeconds int    `yaml:"energy_window_seconds"`
	CacheMaxSize        int    `yaml:"cache_max_size"`
	CacheDir            string `yaml:"cache_dir"`
}

// SetDefaults sets default values for AnalysisSettings.
func (a *AnalysisSettings) SetDefaults() {
	// A fully zero block means analysis was not configured at all; treat
	// that as enabled rather than silently skipping every estimate.
	if !a.Enabled && a.BPMWindowSeconds == 0 && a.KeyWindowSeconds == 0 {
		a.Enabled = true
	}
	if a.BPMWindowSeconds == 0 {
		a.BPMWindowSeconds = 30
	}
	if a.BPMOffsetSeconds == 0 {
		a.BPMOffsetSeconds = 30
	}
	if a.KeyWindowSeconds == 0 {
		a.KeyWindowSeconds = 20
	}
	if a.EnergyWindowSeconds == 0 {
		a.EnergyWindowSeconds = 15
	}
	if a.CacheMaxSize == 0 {
		a.CacheMaxSize = 1000
	}
}

// Validate validates AnalysisSettings.
func (a *AnalysisSettings) Validate() error {
	if a.BPMWindowSeconds < 1 || a.BPMWindowSeconds > 120 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid bpm_window_seconds: %d. Must be between 1 and 120", a.BPMWindowSeconds),
		}
	}
	if a.BPMOffsetSeconds < 0 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid bpm_offset_seconds: %d. Must not be negative", a.BPMOffsetSeconds),
		}
	}
	if a.KeyWindowSeconds < 1 || a.KeyWindowSeconds > 120 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid key_window_seconds: %d. Must be between 1 and 120", a.KeyWindowSeconds),
		}
	}
	if a.EnergyWindowSeconds < 1 || a.EnergyWindowSeconds > 120 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid energy_window_seconds: %d. Must be between 1 and 120", a.EnergyWindowSeconds),
		}
	}
	return nil
}

// MigrationSettings holds migration configuration settings.
type MigrationSettings struct {
	Workers int `yaml:"workers"`

	CueRetention      CueRetention      `yaml:"cue_retention"`
	MissingFilePolicy MissingFilePolicy `yaml:"missing_file_policy"`

	MapHotCuesToMemory bool `yaml:"map_hotcues_to_memory"`
	MapMemoryToHotCues bool `yaml:"map_memory_to_hotcues"`
	RefreshMetadata    bool `yaml:"refresh_metadata"`

	JobPersistenceEnabled bool   `yaml:"job_persistence_enabled"`
	JobPath               string `yaml:"job_path"`

	Analysis AnalysisSettings `yaml:"analysis"`
}

// SetDefaults sets default values for MigrationSettings.
func (m *MigrationSettings) SetDefaults() {
	if m.Workers == 0 {
		m.Workers = 4
	}
	if m.CueRetention == "" {
		m.CueRetention = CueKeepAll
	}
	if m.MissingFilePolicy == "" {
		m.MissingFilePolicy = MissingSkip
	}
	if !m.JobPersistenceEnabled && m.JobPath == "" {
		m.JobPersistenceEnabled = true
	}
	m.Analysis.SetDefaults()
}

// Validate validates MigrationSettings.
func (m *MigrationSettings) Validate() error {
	if m.Workers < 1 || m.Workers > 16 {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid workers: %d. Must be between 1 and 16", m.Workers),
		}
	}

	if m.CueRetention != CueKeepAll && m.CueRetention != CueFirstEight && m.CueRetention != CueDropAll {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid cue_retention: %s. Must be one of: keep-all, first-8, drop-all", m.CueRetention),
		}
	}

	if m.MissingFilePolicy != MissingSkip && m.MissingFilePolicy != MissingWarn && m.MissingFilePolicy != MissingLocate {
		return &ConfigError{
			Message: fmt.Sprintf(
				"Invalid missing_file_policy: %s. Must be one of: skip, include-with-warning, attempt-to-locate",
				m.MissingFilePolicy,
			),
		}
	}

	return m.Analysis.Validate()
}

// HistorySettings holds run history and log configuration settings.
type HistorySettings struct {
	HistoryPath      string `yaml:"history_path"`      // Path to history directory (default: job_path/history)
	HistoryRetention int    `yaml:"history_retention"` // Number of runs to keep (0 = unlimited, default: 0)
	SnapshotInterval int    `yaml:"snapshot_interval"` // Progress snapshot interval in seconds (default: 10)

	LogPath string `yaml:"log_path"` // Path to log file (configurable)
}

// SetDefaults sets default values for HistorySettings.
func (h *HistorySettings) SetDefaults() {
	if h.SnapshotInterval <= 0 {
		h.SnapshotInterval = 10
	}
	if h.HistoryRetention < 0 {
		h.HistoryRetention = 0 // Treat negative as unlimited
	}
	// HistoryPath and LogPath are resolved by the caller from the job path.
}

// Config represents the main configuration model.
type Config struct {
	Version   string            `yaml:"version"`
	Migration MigrationSettings `yaml:"migration"`
	History   HistorySettings   `yaml:"history"`
	Folders   []string          `yaml:"folders"`
}

// Validate validates Config.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid version: %s. Expected 1.0", c.Version),
		}
	}

	c.Migration.SetDefaults()
	if err := c.Migration.Validate(); err != nil {
		return err
	}

	c.History.SetDefaults()

	// Folder existence is checked at registration time, not here, so a
	// config referencing an unplugged drive still loads for inspection.
	return nil
}
