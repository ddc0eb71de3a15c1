// Package internal wires the engines together behind the command
// surface.
package internal

import (
	"fmt"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/out-of-cheese-error/gooseberry/internal/hierarchy"
	"github.com/out-of-cheese-error/gooseberry/internal/remote"
	"github.com/out-of-cheese-error/gooseberry/pkg/config"
)

// ConfigEnvVar overrides the config file location when set.
const ConfigEnvVar = "GOOSEBERRY_CONFIG"

// Config is the application configuration, loaded from YAML with
// environment variable expansion.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Hypothesis HypothesisConfig `yaml:"hypothesis"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	KB         KBConfig         `yaml:"kb"`
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	LogLevel string `yaml:"log_level"`
}

// HypothesisConfig holds the annotation service credentials and scope.
type HypothesisConfig struct {
	Username  string `yaml:"username"`
	Key       string `yaml:"key"`
	Group     string `yaml:"group"`
	GroupName string `yaml:"group_name"`
	BaseURL   string `yaml:"base_url"`
	PageSize  int    `yaml:"page_size"`
}

// SQLiteConfig holds the local index location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// KBConfig holds the knowledge base layout.
type KBConfig struct {
	Dir             string            `yaml:"dir"`
	Extension       string            `yaml:"extension"`
	IndexName       string            `yaml:"index_name"`
	Hierarchy       []string          `yaml:"hierarchy"`
	Sort            []string          `yaml:"sort"`
	NestedDelimiter string            `yaml:"nested_delimiter"`
	Templates       map[string]string `yaml:"templates"`
}

// NewDefaultConfig returns a config with sensible defaults. Credentials
// come from HYPOTHESIS_USERNAME and HYPOTHESIS_KEY when present.
func NewDefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "gooseberry")
	return &Config{
		App: AppConfig{LogLevel: "info"},
		Hypothesis: HypothesisConfig{
			Username: os.Getenv("HYPOTHESIS_USERNAME"),
			Key:      os.Getenv("HYPOTHESIS_KEY"),
			BaseURL:  remote.DefaultBaseURL,
			PageSize: 200,
		},
		SQLite: SQLiteConfig{Path: filepath.Join(dataDir, "index.db")},
		KB: KBConfig{
			Dir:             filepath.Join(dataDir, "kb"),
			Extension:       "md",
			IndexName:       "index",
			Hierarchy:       []string{hierarchy.KeyTag},
			Sort:            []string{hierarchy.KeyCreated},
			NestedDelimiter: "/",
		},
	}
}

// Validate checks the whole configuration before any command runs.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.App),
		validation.Field(&c.Hypothesis),
		validation.Field(&c.SQLite),
		validation.Field(&c.KB),
	)
	if err != nil {
		return fmt.Errorf("internal: config: %w", err)
	}
	return nil
}

// Validate checks process-wide settings.
func (a AppConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.LogLevel, validation.Required,
			validation.In("debug", "info", "warn", "error")),
	)
}

// Validate checks the service credentials and paging bounds.
func (h HypothesisConfig) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Username, validation.Required),
		validation.Field(&h.Key, validation.Required),
		validation.Field(&h.BaseURL, validation.Required),
		validation.Field(&h.PageSize, validation.Min(1), validation.Max(200)),
	)
}

// Validate checks the index location.
func (s SQLiteConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Path, validation.Required),
	)
}

// Validate checks the knowledge base layout, including the grouping and
// sort keys.
func (k KBConfig) Validate() error {
	err := validation.ValidateStruct(&k,
		validation.Field(&k.Dir, validation.Required),
		validation.Field(&k.IndexName, validation.Required),
	)
	if err != nil {
		return err
	}
	spec := hierarchy.Spec{Levels: k.Hierarchy, NestedDelimiter: k.NestedDelimiter}
	if err := spec.Validate(); err != nil {
		return err
	}
	return hierarchy.SortSpec{Keys: k.Sort}.Validate()
}

// DefaultConfigPath resolves the config file location: the override
// env var when set, otherwise the user config dir.
func DefaultConfigPath() string {
	if p := os.Getenv(ConfigEnvVar); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "gooseberry.yaml"
	}
	return filepath.Join(dir, "gooseberry", "config.yaml")
}

// LoadConfig reads the config at path, falling back to defaults when
// the file does not exist.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := config.LoadWithDefaults(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
