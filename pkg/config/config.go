// Package config handles NornGeo configuration via YAML files and
// environment variables.
//
// Configuration Precedence (highest to lowest):
//  1. Environment variables (NORNGEO_*)
//  2. Config file (norngeo.yaml)
//  3. Built-in defaults
//
// Environment Variables:
//   - NORNGEO_HTTP_ADDR=":7664"
//   - NORNGEO_ENGINE="memory" or "badger"
//   - NORNGEO_DATA_DIR="./data"
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/norngeo/norngeo/pkg/layer"
)

// Storage engine names accepted by Config.Engine.
const (
	EngineMemory = "memory"
	EngineBadger = "badger"
)

// Config holds the server configuration.
type Config struct {
	// HTTPAddr is the listen address of the query server.
	HTTPAddr string `yaml:"http_addr"`

	// Engine selects the storage backend: "memory" or "badger".
	Engine string `yaml:"engine"`

	// DataDir is the Badger data directory. Ignored for the memory engine.
	DataDir string `yaml:"data_dir"`

	// Layers declares the spatial layers to create at startup.
	Layers []LayerConfig `yaml:"layers"`
}

// LayerConfig declares one spatial layer and its geometry derivation.
type LayerConfig struct {
	Name     string       `yaml:"name"`
	Geometry layer.Config `yaml:"geometry"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		HTTPAddr: ":7664",
		Engine:   EngineMemory,
		DataDir:  "./data",
	}
}

// LoadFromFile reads a YAML config file, applies env overrides, and
// validates the result. An empty path skips the file and uses defaults
// plus environment.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays NORNGEO_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("NORNGEO_HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("NORNGEO_ENGINE"); v != "" {
		c.Engine = v
	}
	if v := os.Getenv("NORNGEO_DATA_DIR"); v != "" {
		c.DataDir = v
	}
}

// Validate checks the configuration, including every declared layer's
// geometry strategy.
func (c *Config) Validate() error {
	if c.Engine != EngineMemory && c.Engine != EngineBadger {
		return fmt.Errorf("engine must be %q or %q, got %q", EngineMemory, EngineBadger, c.Engine)
	}
	if c.Engine == EngineBadger && c.DataDir == "" {
		return fmt.Errorf("badger engine needs a data_dir")
	}

	seen := make(map[string]bool)
	for i, lc := range c.Layers {
		if lc.Name == "" {
			return fmt.Errorf("layer %d: missing name", i)
		}
		if seen[lc.Name] {
			return fmt.Errorf("layer %q declared twice", lc.Name)
		}
		seen[lc.Name] = true
		if err := lc.Geometry.Validate(); err != nil {
			return fmt.Errorf("layer %q: %w", lc.Name, err)
		}
	}
	return nil
}
