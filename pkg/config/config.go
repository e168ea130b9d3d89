// Package config loads and persists the workspace configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigPath is the workspace-relative location of the config file.
const ConfigPath = ".patchsmith/config.json"

// Config holds the per-workspace builder settings.
type Config struct {
	Version string `json:"version"`

	// Provider and model selection
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Endpoint string `json:"endpoint,omitempty"`

	// Run budgets
	MaxSteps     int `json:"max_steps,omitempty"`
	MaxToolCalls int `json:"max_tool_calls,omitempty"`

	// Output protocol defaults
	Mode   string `json:"mode,omitempty"`
	Format string `json:"format,omitempty"`

	// Interpreter fallback for targeted prose in patch_json mode
	FallbackToInterpreter bool `json:"fallback_to_interpreter,omitempty"`

	// SkipPrompt disables interactive prompts for non-interactive runs
	SkipPrompt bool `json:"skip_prompt,omitempty"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		Version:               "1",
		Provider:              "openai",
		Model:                 "gpt-4o-mini",
		Endpoint:              "https://api.openai.com/v1",
		MaxSteps:              8,
		MaxToolCalls:          16,
		Mode:                  "patch_json",
		Format:                "search_replace",
		FallbackToInterpreter: true,
	}
}

// Load reads the workspace config, falling back to defaults when the file
// does not exist.
func Load(rootDir string) (*Config, error) {
	path := filepath.Join(rootDir, ConfigPath)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config file, creating the workspace directory if needed.
func (c *Config) Save(rootDir string) error {
	path := filepath.Join(rootDir, ConfigPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
