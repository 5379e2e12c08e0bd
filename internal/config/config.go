// Package config loads sift.yaml through viper. Every key has a default, so
// a missing file means a default run, and SIFT_* environment variables
// override file values (SIFT_CACHE_BACKEND for cache.backend).
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jward/sift/internal/finders"
)

// FileName is the config file looked up in the working directory.
const FileName = "sift.yaml"

// Cache backends.
const (
	BackendSQLite = "sqlite"
	BackendDir    = "dir"
	BackendNone   = "none"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatText  = "text"
	FormatSARIF = "sarif"
)

// Config is the decoded configuration.
type Config struct {
	Workers     int           `mapstructure:"workers"`      // 0 means one per CPU
	Languages   []string      `mapstructure:"languages"`    // empty means every supported language
	TypeTimeout time.Duration `mapstructure:"type_timeout"` // bound on each type query

	Log     LogConfig     `mapstructure:"log"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Scripts ScriptsConfig `mapstructure:"scripts"`
	Parser  ParserConfig  `mapstructure:"parser"`
	Output  OutputConfig  `mapstructure:"output"`
	Finders FindersConfig `mapstructure:"finders"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type CacheConfig struct {
	Backend            string `mapstructure:"backend"`
	Path               string `mapstructure:"path"` // empty means the backend's default under .sift
	ContentFingerprint bool   `mapstructure:"content_fingerprint"`
}

type ScriptsConfig struct {
	Dir string `mapstructure:"dir"`
}

type ParserConfig struct {
	Strict bool `mapstructure:"strict"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// FindersConfig selects and tunes the built-in finders.
type FindersConfig struct {
	Enabled          []string `mapstructure:"enabled"` // empty means all built-ins
	MaxFunctionLines int      `mapstructure:"max_function_lines"`
	AllowedNumbers   []string `mapstructure:"allowed_numbers"`
	CountMagicOnly   bool     `mapstructure:"count_magic_only"`
}

// Options converts the finder settings for finders.All and finders.ByName.
func (f FindersConfig) Options() finders.Options {
	return finders.Options{
		MaxFunctionLines: f.MaxFunctionLines,
		AllowedNumbers:   f.AllowedNumbers,
		CountMagicOnly:   f.CountMagicOnly,
	}
}

// NewViper returns a viper instance with every default set and SIFT_*
// environment overrides enabled. Callers may bind flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("sift")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	fo := finders.DefaultOptions()

	v.SetDefault("workers", 0)
	v.SetDefault("languages", []string{})
	v.SetDefault("type_timeout", "2s")

	v.SetDefault("log.level", "")
	v.SetDefault("log.json", false)

	v.SetDefault("cache.backend", BackendSQLite)
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.content_fingerprint", false)

	v.SetDefault("scripts.dir", "")
	v.SetDefault("parser.strict", false)
	v.SetDefault("output.format", FormatText)

	v.SetDefault("finders.enabled", []string{})
	v.SetDefault("finders.max_function_lines", fo.MaxFunctionLines)
	v.SetDefault("finders.allowed_numbers", fo.AllowedNumbers)
	v.SetDefault("finders.count_magic_only", false)
}

// Load reads path into v and decodes the result. With an empty path,
// sift.yaml is looked up in the working directory and may be absent; an
// explicit path must exist.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: reading %s: %w", FileName, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	var cfg Config
	if err := NewViper().Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: decoding defaults: %v", err))
	}
	return &cfg
}

// Validate rejects values no component accepts.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	if c.TypeTimeout < 0 {
		return fmt.Errorf("config: type_timeout must not be negative, got %s", c.TypeTimeout)
	}
	if !slices.Contains([]string{BackendSQLite, BackendDir, BackendNone}, c.Cache.Backend) {
		return fmt.Errorf("config: unknown cache.backend %q (want sqlite, dir or none)", c.Cache.Backend)
	}
	if !slices.Contains([]string{FormatJSON, FormatText, FormatSARIF}, c.Output.Format) {
		return fmt.Errorf("config: unknown output.format %q (want json, text or sarif)", c.Output.Format)
	}
	return nil
}

// CachePath returns the configured cache location, or the backend's default
// under root/.sift.
func (c *Config) CachePath(root string) string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	switch c.Cache.Backend {
	case BackendDir:
		return filepath.Join(root, ".sift", "cache")
	default:
		return filepath.Join(root, ".sift", "cache.db")
	}
}
