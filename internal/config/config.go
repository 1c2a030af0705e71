// Package config loads engine configuration from YAML with environment
// overrides. A zero-value file is valid; every field has a working default.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine configuration
type Config struct {
	// DataDir is where the SQLite database and legacy schedule files live
	DataDir string `yaml:"data_dir"`

	// AgentID identifies this agent instance in session keys
	AgentID string `yaml:"agent_id"`

	// MaxRounds caps the orchestrator's tool round-trips per turn (default: 24)
	MaxRounds int `yaml:"max_rounds"`

	// MaxHistory is the number of recent messages loaded per turn (default: 100)
	MaxHistory int `yaml:"max_history"`

	// Truncation budgets for tool output
	Truncation TruncationConfig `yaml:"truncation"`

	// Scheduler settings
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Security policy applied to conversations without an explicit policy
	Security SecurityConfig `yaml:"security"`

	// Server settings for the HTTP/WebSocket boundary
	Server ServerConfig `yaml:"server"`

	// Workspace is the directory tools may touch by default
	Workspace string `yaml:"workspace"`

	// Model selects the registered LLM provider
	Model ModelConfig `yaml:"model"`

	// Identity is the agent's system-prompt persona
	Identity string `yaml:"identity"`
}

// ModelConfig selects and configures the LLM provider. Providers register
// themselves by name; Options passes provider-specific settings through
// untouched.
type ModelConfig struct {
	Provider string            `yaml:"provider"`
	Options  map[string]string `yaml:"options"`
}

// TruncationConfig bounds tool output fed back to the model
type TruncationConfig struct {
	MaxLines int `yaml:"max_lines"` // default: 2000
	MaxBytes int `yaml:"max_bytes"` // default: 49152 (~48 KB)
}

// SchedulerConfig controls autonomous firing
type SchedulerConfig struct {
	// TurnTimeout is the wall-clock bound per scheduled agent turn (default: 5m)
	TurnTimeout time.Duration `yaml:"turn_timeout"`
}

// SecurityConfig is the default tool policy for new conversations
type SecurityConfig struct {
	Profile string   `yaml:"profile"` // "full" or "" (list-based)
	Allow   []string `yaml:"allow"`
	Deny    []string `yaml:"deny"`
}

// ServerConfig holds the boundary listener settings
type ServerConfig struct {
	Addr string `yaml:"addr"` // default: 127.0.0.1:7600
}

// Default returns a config with all defaults applied
func Default() *Config {
	home, _ := os.UserHomeDir()
	c := &Config{
		DataDir:    filepath.Join(home, ".lumen"),
		AgentID:    "lumen",
		MaxRounds:  24,
		MaxHistory: 100,
		Truncation: TruncationConfig{MaxLines: 2000, MaxBytes: 48 * 1024},
		Scheduler:  SchedulerConfig{TurnTimeout: 5 * time.Minute},
		Security:   SecurityConfig{Profile: "full"},
		Server:     ServerConfig{Addr: "127.0.0.1:7600"},
		Model:      ModelConfig{Provider: "echo"},
	}
	c.Workspace = filepath.Join(c.DataDir, "workspace")
	return c
}

// Load reads the YAML config at path, falling back to defaults for every
// unset field. A missing file returns defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.AgentID == "" {
		c.AgentID = d.AgentID
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = d.MaxRounds
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = d.MaxHistory
	}
	if c.Truncation.MaxLines <= 0 {
		c.Truncation.MaxLines = d.Truncation.MaxLines
	}
	if c.Truncation.MaxBytes <= 0 {
		c.Truncation.MaxBytes = d.Truncation.MaxBytes
	}
	if c.Scheduler.TurnTimeout <= 0 {
		c.Scheduler.TurnTimeout = d.Scheduler.TurnTimeout
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Workspace == "" {
		c.Workspace = filepath.Join(c.DataDir, "workspace")
	}
	if c.Model.Provider == "" {
		c.Model.Provider = d.Model.Provider
	}
}

// DatabasePath returns the SQLite database location under DataDir
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "lumen.db")
}

// LegacySchedulePath returns the pre-migration flat schedule file location
func (c *Config) LegacySchedulePath() string {
	return filepath.Join(c.DataDir, "cron", "jobs.json")
}
