// Package config loads railyard settings from TOML files and RAILYARD_*
// environment variables.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/chazu/railyard/pkg/errors"
)

// FileName is the config file looked up in the working directory and in
// the user config directory.
const FileName = "railyard.toml"

// Config is the full set of railyard settings.
type Config struct {
	Layout LayoutConfig `mapstructure:"layout" toml:"layout"`
	Log    LogConfig    `mapstructure:"log" toml:"log"`
	Store  StoreConfig  `mapstructure:"store" toml:"store"`
	Script ScriptConfig `mapstructure:"script" toml:"script"`
	Mesh   MeshConfig   `mapstructure:"mesh" toml:"mesh"`
}

type LayoutConfig struct {
	SnapToleranceM     float64      `mapstructure:"snap_tolerance_m" toml:"snap_tolerance_m"`
	SnapSearchRadiusM  float64      `mapstructure:"snap_search_radius_m" toml:"snap_search_radius_m"`
	SnapSearchAngleDeg float64      `mapstructure:"snap_search_angle_deg" toml:"snap_search_angle_deg"`
	AntiParallelDot    float64      `mapstructure:"anti_parallel_dot" toml:"anti_parallel_dot"`
	Bounds             BoundsConfig `mapstructure:"bounds" toml:"bounds"`
}

// BoundsConfig is the work surface rectangle on the XZ plane. All zeros
// means unbounded.
type BoundsConfig struct {
	MinX float64 `mapstructure:"min_x" toml:"min_x"`
	MaxX float64 `mapstructure:"max_x" toml:"max_x"`
	MinZ float64 `mapstructure:"min_z" toml:"min_z"`
	MaxZ float64 `mapstructure:"max_z" toml:"max_z"`
}

// Enabled reports whether a non-empty rectangle is configured.
func (b BoundsConfig) Enabled() bool {
	return b.MaxX > b.MinX && b.MaxZ > b.MinZ
}

type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json"`
	Level string `mapstructure:"level" toml:"level"`
}

type StoreConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

type ScriptConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
}

type MeshConfig struct {
	Cells int `mapstructure:"cells" toml:"cells"`
}

// SetDefaults configures default values for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("layout.snap_tolerance_m", 0.002)
	v.SetDefault("layout.snap_search_radius_m", 0.03)
	v.SetDefault("layout.snap_search_angle_deg", 15.0)
	v.SetDefault("layout.anti_parallel_dot", -0.999)
	v.SetDefault("layout.bounds.min_x", 0.0)
	v.SetDefault("layout.bounds.max_x", 0.0)
	v.SetDefault("layout.bounds.min_z", 0.0)
	v.SetDefault("layout.bounds.max_z", 0.0)

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")

	v.SetDefault("store.path", "railyard.db")

	v.SetDefault("script.timeout_seconds", 5)

	v.SetDefault("mesh.cells", 64)
}

// New returns a viper instance with defaults and env binding but no files.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("RAILYARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads configuration. An explicit path must exist; otherwise the
// user config and then ./railyard.toml are merged if present, the latter
// taking precedence. Environment variables override files.
func Load(path string) (*Config, error) {
	v := New()

	if path != "" {
		if err := mergeFile(v, path); err != nil {
			return nil, err
		}
	} else {
		for _, p := range SearchPaths() {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if err := mergeFile(v, p); err != nil {
				return nil, err
			}
		}
	}

	return unmarshal(v)
}

// SearchPaths lists the default config locations, lowest precedence first.
func SearchPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "railyard", FileName))
	}
	return append(paths, FileName)
}

func mergeFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.MergeInConfig(); err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	return nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with no files or environment applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects settings the layout engine cannot work with.
func (c *Config) Validate() error {
	l := c.Layout
	if l.SnapToleranceM <= 0 {
		return errors.Newf("layout.snap_tolerance_m must be positive, got %g", l.SnapToleranceM)
	}
	if l.SnapSearchRadiusM < l.SnapToleranceM {
		return errors.Newf("layout.snap_search_radius_m (%g) must be at least snap_tolerance_m (%g)",
			l.SnapSearchRadiusM, l.SnapToleranceM)
	}
	if l.AntiParallelDot >= 0 || l.AntiParallelDot < -1 {
		return errors.Newf("layout.anti_parallel_dot must be in [-1, 0), got %g", l.AntiParallelDot)
	}
	if c.Script.TimeoutSeconds <= 0 {
		return errors.Newf("script.timeout_seconds must be positive, got %d", c.Script.TimeoutSeconds)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, errors.Wrap(err, "encode config")
	}
	return buf.Bytes(), nil
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.WithHint(
			errors.Newf("config file %s already exists", path),
			"remove it first or edit it directly")
	}
	data, err := Default().Encode()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create config dir %s", dir)
		}
	}
	header := []byte("# railyard configuration\n\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return errors.Wrapf(err, "write config file %s", path)
	}
	return nil
}
