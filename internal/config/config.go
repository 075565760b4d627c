// Package config holds refinery configuration, loaded from
// .refinery/config.yaml with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all refinery configuration.
type Config struct {
	// Engine settings
	Engine EngineConfig `yaml:"engine"`

	// Oracle (Deliberator) configuration
	Oracle OracleConfig `yaml:"oracle"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig configures the refactor executor.
type EngineConfig struct {
	DryRun        bool    `yaml:"dry_run"`
	BudgetCap     float64 `yaml:"budget_cap"`     // currency units
	StrictRewrite bool    `yaml:"strict_rewrite"` // iterative violation-driven rewrites
	AlignToRules  bool    `yaml:"align_to_rules"` // drive strict rewrites with the rule checker
	AllFiles      bool    `yaml:"all_files"`      // include unsupported file types
	KeepBackups   bool    `yaml:"keep_backups"`   // retain .orig undo copies
	MaxRounds     int     `yaml:"max_rounds"`
}

// OracleConfig configures the Gemini deliberator.
type OracleConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			BudgetCap: 5.0,
			MaxRounds: 3,
		},
		Oracle: OracleConfig{
			Model:     "gemini-3-flash-preview",
			MaxTokens: 65536,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".refinery", "config.yaml")
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist.
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
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Oracle.APIKey = key
	}
	if key := os.Getenv("REFINERY_API_KEY"); key != "" {
		c.Oracle.APIKey = key
	}
	if model := os.Getenv("REFINERY_MODEL"); model != "" {
		c.Oracle.Model = model
	}
	if cap := os.Getenv("REFINERY_BUDGET"); cap != "" {
		if v, err := strconv.ParseFloat(cap, 64); err == nil && v > 0 {
			c.Engine.BudgetCap = v
		}
	}
	if debug := os.Getenv("REFINERY_DEBUG"); debug == "1" || debug == "true" {
		c.Logging.DebugMode = true
	}
}
