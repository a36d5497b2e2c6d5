// Package config loads and validates the kernel configuration: workspace
// roots, tool tier, read-back limits, onboarding state location and logging.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"neurodeck/internal/catalog"
	"neurodeck/internal/readback"
)

// Config holds all neurodeck configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Workspace sandbox
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Tool catalog
	Tools ToolsConfig `yaml:"tools"`

	// Screen read-back limits
	ReadBack ReadBackConfig `yaml:"readback"`

	// Onboarding gate
	Onboarding OnboardingConfig `yaml:"onboarding"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// WorkspaceConfig configures the path sandbox for file tools.
type WorkspaceConfig struct {
	// DefaultRoot anchors relative tool paths.
	DefaultRoot string `yaml:"default_root"`

	// AllowedRoots are additional directories file tools may touch.
	AllowedRoots []string `yaml:"allowed_roots"`
}

// ToolsConfig configures the tool catalog.
type ToolsConfig struct {
	// Tier selects the capability tier: none, standard, experimental.
	Tier string `yaml:"tier"`

	// TierTools overrides the built-in tool list per tier.
	TierTools map[string][]string `yaml:"tier_tools"`

	// CommandTimeout bounds run_command execution.
	CommandTimeout string `yaml:"command_timeout"`
}

// ReadBackConfig configures read_screen payload limits.
type ReadBackConfig struct {
	// DefaultMaxChars is the snippet size when the caller omits max_chars.
	DefaultMaxChars int `yaml:"default_max_chars"`

	// MaxCharsCeiling caps caller-requested snippet sizes.
	MaxCharsCeiling int `yaml:"max_chars_ceiling"`
}

// OnboardingConfig configures the first-run gate.
type OnboardingConfig struct {
	// Required forces the restricted catalog until complete_onboarding.
	Required bool `yaml:"required"`

	// DatabasePath is the SQLite file holding onboarding and memory state.
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	return &Config{
		Name:    "neurodeck",
		Version: "0.3.0",

		Workspace: WorkspaceConfig{
			DefaultRoot: cwd,
		},

		Tools: ToolsConfig{
			Tier:           string(catalog.TierStandard),
			CommandTimeout: "60s",
		},

		ReadBack: ReadBackConfig{
			DefaultMaxChars: readback.DefaultMaxChars,
			MaxCharsCeiling: readback.MaxCharsCeiling,
		},

		Onboarding: OnboardingConfig{
			Required:     false,
			DatabasePath: filepath.Join(".neurodeck", "state.db"),
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if root := os.Getenv("NEURODECK_WORKSPACE_ROOT"); root != "" {
		c.Workspace.DefaultRoot = root
	}
	if tier := os.Getenv("NEURODECK_TOOL_TIER"); tier != "" {
		c.Tools.Tier = tier
	}
	if path := os.Getenv("NEURODECK_DB"); path != "" {
		c.Onboarding.DatabasePath = path
	}
	if level := os.Getenv("NEURODECK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetCommandTimeout returns the run_command timeout as a duration.
func (c *Config) GetCommandTimeout() time.Duration {
	d, err := time.ParseDuration(c.Tools.CommandTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// Tier returns the parsed capability tier.
func (c *Config) Tier() (catalog.Tier, error) {
	return catalog.ParseTier(c.Tools.Tier)
}

// CatalogOptions converts the config into catalog build options. Unknown
// tier keys in tier_tools are skipped.
func (c *Config) CatalogOptions() catalog.Options {
	opts := catalog.Options{
		OnboardingRequired: c.Onboarding.Required,
	}
	if len(c.Tools.TierTools) == 0 {
		return opts
	}

	opts.TierTools = make(map[catalog.Tier][]string, len(c.Tools.TierTools))
	for key, names := range c.Tools.TierTools {
		tier, err := catalog.ParseTier(key)
		if err != nil {
			continue
		}
		opts.TierTools[tier] = names
	}
	return opts
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Workspace.DefaultRoot == "" {
		return fmt.Errorf("workspace default_root not configured")
	}
	if !filepath.IsAbs(c.Workspace.DefaultRoot) {
		return fmt.Errorf("workspace default_root must be absolute: %s", c.Workspace.DefaultRoot)
	}

	if _, err := catalog.ParseTier(c.Tools.Tier); err != nil {
		return err
	}

	if c.ReadBack.DefaultMaxChars <= 0 {
		return fmt.Errorf("readback default_max_chars must be positive")
	}
	if c.ReadBack.MaxCharsCeiling < c.ReadBack.DefaultMaxChars {
		return fmt.Errorf("readback max_chars_ceiling %d is below default_max_chars %d",
			c.ReadBack.MaxCharsCeiling, c.ReadBack.DefaultMaxChars)
	}

	return nil
}
