// Package config loads unityscope settings from flags, UNITYSCOPE_* environment
// variables and an optional unityscope.yaml file.
package config

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/unityscope/pkg/assetindex"
	"github.com/jingkaihe/unityscope/pkg/db"
	"github.com/jingkaihe/unityscope/pkg/document"
)

// EnvPrefix is prepended to every environment variable, with dots in keys
// replaced by underscores (scan.on_error is UNITYSCOPE_SCAN_ON_ERROR).
const EnvPrefix = "UNITYSCOPE"

// Config is the resolved configuration.
type Config struct {
	Root      string         `mapstructure:"root" json:"root" yaml:"root"`
	Scan      ScanSettings   `mapstructure:"scan" json:"scan" yaml:"scan"`
	Document  DocumentConfig `mapstructure:"document" json:"document" yaml:"document"`
	Cache     CacheConfig    `mapstructure:"cache" json:"cache" yaml:"cache"`
	LogLevel  string         `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
	LogFormat string         `mapstructure:"log_format" json:"log_format" yaml:"log_format"`
}

// ScanSettings controls how the asset index is built.
type ScanSettings struct {
	Extensions  []string `mapstructure:"extensions" json:"extensions" yaml:"extensions"`
	Exclude     []string `mapstructure:"exclude" json:"exclude" yaml:"exclude"`
	OnError     string   `mapstructure:"on_error" json:"on_error" yaml:"on_error"`
	OnDuplicate string   `mapstructure:"on_duplicate" json:"on_duplicate" yaml:"on_duplicate"`
}

// DocumentConfig controls document loads and saves.
type DocumentConfig struct {
	ContainerKey string `mapstructure:"container_key" json:"container_key" yaml:"container_key"`
	AtomicWrite  bool   `mapstructure:"atomic_write" json:"atomic_write" yaml:"atomic_write"`
}

// CacheConfig locates the index snapshot database. An empty path means
// db.DefaultDBPath().
type CacheConfig struct {
	Path string `mapstructure:"path" json:"path" yaml:"path"`
}

// SetDefaults registers the default of every key so environment variables are
// picked up for all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("scan.extensions", append([]string(nil), assetindex.DefaultExtensions...))
	v.SetDefault("scan.exclude", []string{})
	v.SetDefault("scan.on_error", string(assetindex.ErrorPolicyAbort))
	v.SetDefault("scan.on_duplicate", string(assetindex.DuplicateLastWins))
	v.SetDefault("document.container_key", document.DefaultContainerKey)
	v.SetDefault("document.atomic_write", true)
	v.SetDefault("cache.path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")
}

// Configure prepares v for environment and config file lookups. A missing
// config file is not an error; a malformed one is.
func Configure(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("unityscope")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.unityscope")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return cfg, errors.Wrap(err, "failed to create config decoder")
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return cfg, errors.Wrap(err, "failed to decode configuration")
	}

	cfg.Scan.Extensions = trimAll(cfg.Scan.Extensions)
	cfg.Scan.Exclude = trimAll(cfg.Scan.Exclude)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

// Validate rejects settings no command could run with.
func (c Config) Validate() error {
	if c.Root == "" {
		return errors.New("root must not be empty")
	}
	if c.Document.ContainerKey == "" {
		return errors.New("document.container_key must not be empty")
	}
	switch c.LogFormat {
	case "fmt", "json":
	default:
		return errors.Errorf("invalid log_format %q, expected fmt or json", c.LogFormat)
	}
	return errors.Wrap(c.ScanConfig().Validate(), "invalid scan configuration")
}

// ScanConfig converts the scan section for assetindex.Build.
func (c Config) ScanConfig() assetindex.ScanConfig {
	return assetindex.ScanConfig{
		Extensions:  c.Scan.Extensions,
		Exclude:     c.Scan.Exclude,
		OnError:     assetindex.ErrorPolicy(c.Scan.OnError),
		OnDuplicate: assetindex.DuplicatePolicy(c.Scan.OnDuplicate),
	}
}

// DocumentOptions converts the document section for document.NewStore.
func (c Config) DocumentOptions() []document.Option {
	return []document.Option{
		document.WithContainerKey(c.Document.ContainerKey),
		document.WithAtomicWrite(c.Document.AtomicWrite),
	}
}

// CachePath returns the configured cache database path or the default one.
func (c Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	return db.DefaultDBPath()
}
