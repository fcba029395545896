// Package config loads user-level defaults for new loops from
// ~/.loopd/config.yaml. Every field is optional; command-line flags win
// over file values, which win over the built-in defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up under the user's loopd directory.
const FileName = "config.yaml"

// Config holds defaults applied when starting a loop without explicit
// flags.
type Config struct {
	Mode                string            `yaml:"mode"`
	MaxIterations       int               `yaml:"max_iterations"`
	ItemsPerIteration   int               `yaml:"items_per_iteration"`
	ReflectEvery        int               `yaml:"reflect_every"`
	ReflectInstructions string            `yaml:"reflect_instructions"`
	Templates           map[string]string `yaml:"templates"` // mode name to template path
	Debug               bool              `yaml:"debug"`
}

// Default is the configuration used when no file exists.
func Default() Config {
	return Config{
		Mode:              "build",
		ItemsPerIteration: 3,
		ReflectEvery:      5,
	}
}

// Path returns the user config file location, or "" when the home
// directory cannot be resolved.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".loopd", FileName)
}

// Load reads the user config, overlaying file values on the defaults.
// A missing file is not an error.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile reads a specific config file. A missing or empty path returns
// the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return parse(cfg, data, path)
}

func parse(base Config, data []byte, path string) (Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return base, nil
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if file.Mode != "" {
		base.Mode = file.Mode
	}
	if file.MaxIterations > 0 {
		base.MaxIterations = file.MaxIterations
	}
	if file.ItemsPerIteration > 0 {
		base.ItemsPerIteration = file.ItemsPerIteration
	}
	if file.ReflectEvery > 0 {
		base.ReflectEvery = file.ReflectEvery
	}
	if file.ReflectInstructions != "" {
		base.ReflectInstructions = file.ReflectInstructions
	}
	if len(file.Templates) > 0 {
		base.Templates = file.Templates
	}
	if file.Debug {
		base.Debug = true
	}

	if err := base.validate(path); err != nil {
		return Default(), err
	}
	return base, nil
}

func (c Config) validate(path string) error {
	switch c.Mode {
	case "build", "plan":
	default:
		return fmt.Errorf("config: %s: unknown mode %q", path, c.Mode)
	}
	return nil
}

// TemplateFor returns the template override path configured for mode, or
// "" when none is set.
func (c Config) TemplateFor(mode string) string {
	if c.Templates == nil {
		return ""
	}
	return c.Templates[mode]
}
