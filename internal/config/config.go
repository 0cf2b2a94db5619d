// Package config loads decktags settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/pbaille/decktags/internal/deckpath"
	"github.com/pbaille/decktags/internal/engine"
)

// FileName is the config file looked up in Dir()
const FileName = "config.yaml"

// Config holds everything a run can be tuned with
type Config struct {
	// Collection is the path of the Anki collection.anki2 file
	Collection string `yaml:"collection"`
	// Root limits conversion to one deck and its subdecks ("A::B")
	Root string `yaml:"root,omitempty"`
	// TagPrefix is prepended to generated tags
	TagPrefix string `yaml:"tag_prefix,omitempty"`
	// FoldCase compares tags case-insensitively, as Anki does
	FoldCase bool `yaml:"fold_case"`
	// Backup copies the collection before applying
	Backup   bool   `yaml:"backup"`
	LogLevel string `yaml:"log_level"`
	Addr     string `yaml:"addr"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		FoldCase: true,
		Backup:   true,
		LogLevel: "info",
		Addr:     ":8080",
	}
}

// Dir returns ~/.decktags
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".decktags")
}

// DefaultPath returns the default config file location
func DefaultPath() string {
	return filepath.Join(Dir(), FileName)
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Collection = expandHome(cfg.Collection)

	return cfg, nil
}

// Validate checks fields that would otherwise fail mid-run
func (c Config) Validate() error {
	if _, err := c.RootPath(); err != nil {
		return err
	}
	if _, err := deckpath.NewTagger(c.TagPrefix); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// RootPath parses Root. An empty Root gives the zero path.
func (c Config) RootPath() (deckpath.Path, error) {
	if c.Root == "" {
		return deckpath.Path{}, nil
	}
	p, err := deckpath.Parse(c.Root)
	if err != nil {
		return deckpath.Path{}, fmt.Errorf("root: %w", err)
	}
	return p, nil
}

// EngineOptions builds conversion options from c
func (c Config) EngineOptions(obs engine.Observer) (engine.Options, error) {
	root, err := c.RootPath()
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		Root:      root,
		TagPrefix: c.TagPrefix,
		FoldCase:  c.FoldCase,
		Observer:  obs,
	}, nil
}

// Level parses LogLevel
func (c Config) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return lvl, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// Save writes c to path, creating its directory
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
