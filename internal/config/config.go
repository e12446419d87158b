// Package config loads the telemetry configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Storage and index drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Defaults applied to fields left empty.
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultLockTimeout = 10 * time.Second
	DefaultLockTTL     = 30 * time.Second
	DefaultKinds       = "kinds.yaml"
	DefaultCommands    = "commands.yaml"
	DefaultStorePath   = ".telemetry/datasets"
	DefaultRedisAddr   = "localhost:6379"
	DefaultPrefix      = "telemetry:"
	DefaultHTTPAddr    = ":8080"
)

// StoreConfig selects the keyed artifact storage.
type StoreConfig struct {
	Driver    string `yaml:"driver" toml:"driver"`
	Path      string `yaml:"path" toml:"path"`
	RedisAddr string `yaml:"redis_addr" toml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db" toml:"redis_db"`
	Prefix    string `yaml:"prefix" toml:"prefix"`
}

// IndexConfig selects the relational index.
type IndexConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// Config is the resolved configuration.
type Config struct {
	LogLevel    string
	LogFormat   string
	Workers     int
	LockTimeout time.Duration
	LockTTL     time.Duration
	Kinds       string
	Commands    string
	Store       StoreConfig
	Index       IndexConfig
	HTTPAddr    string
}

// fileConfig mirrors Config with durations kept as text.
type fileConfig struct {
	LogLevel    string      `yaml:"log_level" toml:"log_level"`
	LogFormat   string      `yaml:"log_format" toml:"log_format"`
	Workers     int         `yaml:"workers" toml:"workers"`
	LockTimeout string      `yaml:"lock_timeout" toml:"lock_timeout"`
	LockTTL     string      `yaml:"lock_ttl" toml:"lock_ttl"`
	Kinds       string      `yaml:"kinds" toml:"kinds"`
	Commands    string      `yaml:"commands" toml:"commands"`
	Store       StoreConfig `yaml:"store" toml:"store"`
	Index       IndexConfig `yaml:"index" toml:"index"`
	HTTPAddr    string      `yaml:"http_addr" toml:"http_addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		LockTimeout: DefaultLockTimeout,
		LockTTL:     DefaultLockTTL,
		Kinds:       DefaultKinds,
		Commands:    DefaultCommands,
		Store:       StoreConfig{Driver: DriverFile, Path: DefaultStorePath},
		Index:       IndexConfig{Driver: DriverMemory},
		HTTPAddr:    DefaultHTTPAddr,
	}
}

// Load reads a YAML or TOML file, chosen by extension, and applies defaults.
// A missing file yields the defaults. Relative kinds and store paths are
// resolved against the file's directory.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for _, p := range []*string{&cfg.Kinds, &cfg.Commands} {
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	if cfg.Store.Driver == DriverFile && !filepath.IsAbs(cfg.Store.Path) {
		cfg.Store.Path = filepath.Join(dir, cfg.Store.Path)
	}
	return cfg, nil
}

// Parse decodes data as TOML when ext is ".toml" and as YAML otherwise.
func Parse(data []byte, ext string) (Config, error) {
	var raw fileConfig
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return Config{}, err
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, err
		}
	}
	return raw.resolve()
}

func (raw fileConfig) resolve() (Config, error) {
	cfg := Config{
		LogLevel:  raw.LogLevel,
		LogFormat: raw.LogFormat,
		Workers:   raw.Workers,
		Kinds:     raw.Kinds,
		Commands:  raw.Commands,
		Store:     raw.Store,
		Index:     raw.Index,
		HTTPAddr:  raw.HTTPAddr,
	}

	var err error
	if cfg.LockTimeout, err = duration("lock_timeout", raw.LockTimeout); err != nil {
		return Config{}, err
	}
	if cfg.LockTTL, err = duration("lock_ttl", raw.LockTTL); err != nil {
		return Config{}, err
	}

	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func duration(field, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = def.LockTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = def.LockTTL
	}
	if c.Kinds == "" {
		c.Kinds = def.Kinds
	}
	if c.Commands == "" {
		c.Commands = def.Commands
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = def.HTTPAddr
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DriverFile
	}
	switch c.Store.Driver {
	case DriverFile:
		if c.Store.Path == "" {
			c.Store.Path = DefaultStorePath
		}
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			c.Store.RedisAddr = DefaultRedisAddr
		}
		if c.Store.Prefix == "" {
			c.Store.Prefix = DefaultPrefix
		}
	}

	if c.Index.Driver == "" {
		c.Index.Driver = DriverMemory
	}
}

// Validate rejects unknown drivers and incomplete settings.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverRedis:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Index.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Index.DSN == "" {
			return errors.New("postgres index requires a dsn")
		}
	default:
		return fmt.Errorf("unknown index driver %q", c.Index.Driver)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}
