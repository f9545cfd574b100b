// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the configuration file when no --config
// flag is given.
const EnvironmentVariable = "BUREAU_INSPECT_CONFIG"

// Config is the configuration of bureau-inspect.
type Config struct {
	// Probe configures the connection to the instrumented application.
	Probe ProbeConfig `yaml:"probe"`

	// Search configures the search lines of the panes.
	Search SearchConfig `yaml:"search"`

	// Kinds names the kinds each pane filters on.
	Kinds KindsConfig `yaml:"kinds"`

	// Log configures diagnostic logging.
	Log LogConfig `yaml:"log"`
}

// ProbeConfig configures the probe connection.
type ProbeConfig struct {
	// Network is "unix" or "tcp".
	// Default: unix
	Network string `yaml:"network"`

	// Address is the socket path or host:port of the probe.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/bureau-inspect.sock
	Address string `yaml:"address"`

	// Compression configures compression of messages sent to the probe.
	Compression CompressionConfig `yaml:"compression"`
}

// CompressionConfig configures LZ4 compression of message payloads.
type CompressionConfig struct {
	// Enabled turns compression on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// MinimumSize is the smallest payload, in bytes, worth compressing.
	// Default: 32
	MinimumSize int `yaml:"minimum_size"`
}

// SearchConfig configures search lines.
type SearchConfig struct {
	// Mode is "substring" or "fuzzy".
	// Default: substring
	Mode string `yaml:"mode"`
}

// KindsConfig names the kinds reported by the probe for each pane.
// The defaults are Qt class names.
type KindsConfig struct {
	Widget         string `yaml:"widget"`
	GraphicsScene  string `yaml:"graphics_scene"`
	ItemModel      string `yaml:"item_model"`
	ModelCell      string `yaml:"model_cell"`
	StateMachine   string `yaml:"state_machine"`
	State          string `yaml:"state"`
	Transition     string `yaml:"transition"`
	ScriptEngine   string `yaml:"script_engine"`
	WebPage        string `yaml:"web_page"`
	SelectionModel string `yaml:"selection_model"`
	Connection     string `yaml:"connection"`
	MetaType       string `yaml:"meta_type"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Output, if set, is a file receiving every log record as JSON in
	// addition to the status bar.
	Output string `yaml:"output"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	cfg := &Config{
		Probe: ProbeConfig{
			Network: "unix",
			Address: "${XDG_RUNTIME_DIR:-/tmp}/bureau-inspect.sock",
			Compression: CompressionConfig{
				Enabled:     true,
				MinimumSize: 32,
			},
		},
		Search: SearchConfig{
			Mode: "substring",
		},
		Kinds: KindsConfig{
			Widget:         "QWidget",
			GraphicsScene:  "QGraphicsScene",
			ItemModel:      "QAbstractItemModel",
			ModelCell:      "QModelIndex",
			StateMachine:   "QStateMachine",
			State:          "QAbstractState",
			Transition:     "QAbstractTransition",
			ScriptEngine:   "QScriptEngine",
			WebPage:        "QWebPage",
			SelectionModel: "QItemSelectionModel",
			Connection:     "QMetaObject::Connection",
			MetaType:       "QMetaType",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
	cfg.expandVariables()
	return cfg
}

// Load loads configuration from the file named by BUREAU_INSPECT_CONFIG.
// If the variable is not set, the defaults are returned.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merged over
// the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	// Expansion happens after the merge, so that a file overriding the
	// address sees the same variables as the default.
	cfg.Probe.Address = ""

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if cfg.Probe.Address == "" {
		cfg.Probe.Address = Default().Probe.Address
	}
	cfg.expandVariables()
	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":            os.Getenv("HOME"),
		"XDG_RUNTIME_DIR": os.Getenv("XDG_RUNTIME_DIR"),
	}
	c.Probe.Address = expandVars(c.Probe.Address, vars)
	c.Log.Output = expandVars(c.Log.Output, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	networks := []string{"unix", "tcp"}
	if !slices.Contains(networks, c.Probe.Network) {
		errs = append(errs, fmt.Errorf("probe.network must be one of: %v", networks))
	}
	if c.Probe.Address == "" {
		errs = append(errs, fmt.Errorf("probe.address is required"))
	}
	if c.Probe.Compression.MinimumSize < 0 {
		errs = append(errs, fmt.Errorf("probe.compression.minimum_size must not be negative, got %d", c.Probe.Compression.MinimumSize))
	}

	modes := []string{"substring", "fuzzy"}
	if !slices.Contains(modes, c.Search.Mode) {
		errs = append(errs, fmt.Errorf("search.mode must be one of: %v", modes))
	}

	kinds := []struct {
		name  string
		value string
	}{
		{"kinds.widget", c.Kinds.Widget},
		{"kinds.graphics_scene", c.Kinds.GraphicsScene},
		{"kinds.item_model", c.Kinds.ItemModel},
		{"kinds.model_cell", c.Kinds.ModelCell},
		{"kinds.state_machine", c.Kinds.StateMachine},
		{"kinds.state", c.Kinds.State},
		{"kinds.transition", c.Kinds.Transition},
		{"kinds.script_engine", c.Kinds.ScriptEngine},
		{"kinds.web_page", c.Kinds.WebPage},
		{"kinds.selection_model", c.Kinds.SelectionModel},
		{"kinds.connection", c.Kinds.Connection},
		{"kinds.meta_type", c.Kinds.MetaType},
	}
	for _, kind := range kinds {
		if kind.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", kind.name))
		}
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
