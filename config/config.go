package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rustyeddy/optrack/archive"
	"github.com/rustyeddy/optrack/filter"
	"gopkg.in/yaml.v3"
)

// Config represents the complete optrack configuration
type Config struct {
	DB      DBConfig      `json:"db" yaml:"db" toml:"db"`
	Input   InputConfig   `json:"input" yaml:"input" toml:"input"`
	Filter  FilterConfig  `json:"filter" yaml:"filter" toml:"filter"`
	Output  OutputConfig  `json:"output" yaml:"output" toml:"output"`
	Lock    LockConfig    `json:"lock" yaml:"lock" toml:"lock"`
	Archive ArchiveConfig `json:"archive" yaml:"archive" toml:"archive"`
	Log     LogConfig     `json:"log" yaml:"log" toml:"log"`
}

// DBConfig selects the store
type DBConfig struct {
	Driver   string `json:"driver" yaml:"driver" toml:"driver"` // "sqlite" or "postgres"
	Path     string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	DSN      string `json:"dsn,omitempty" yaml:"dsn,omitempty" toml:"dsn,omitempty"`
	MaxConns int    `json:"max_conns,omitempty" yaml:"max_conns,omitempty" toml:"max_conns,omitempty"`
}

// InputConfig describes the export being imported
type InputConfig struct {
	Format      string `json:"format" yaml:"format" toml:"format"` // only "schwab" for now
	File        string `json:"file,omitempty" yaml:"file,omitempty" toml:"file,omitempty"`
	GroupByDate bool   `json:"group_by_date" yaml:"group_by_date" toml:"group_by_date"`
}

// FilterConfig holds the default listing filter
type FilterConfig struct {
	Symbol     string      `json:"symbol,omitempty" yaml:"symbol,omitempty" toml:"symbol,omitempty"`
	Underlying string      `json:"underlying,omitempty" yaml:"underlying,omitempty" toml:"underlying,omitempty"`
	Range      RangeConfig `json:"range" yaml:"range" toml:"range"`
}

// RangeConfig bounds are dates in output.date_format (or YYYY-MM-DD)
type RangeConfig struct {
	Start string `json:"start,omitempty" yaml:"start,omitempty" toml:"start,omitempty"`
	End   string `json:"end,omitempty" yaml:"end,omitempty" toml:"end,omitempty"`
}

// OutputConfig controls listing output
type OutputConfig struct {
	// DateFormat is a Go layout ("01/02/2006") or strftime ("%m/%d/%Y").
	DateFormat    string `json:"date_format" yaml:"date_format" toml:"date_format"`
	MaxTableWidth int    `json:"max_table_width" yaml:"max_table_width" toml:"max_table_width"`
	Format        string `json:"format" yaml:"format" toml:"format"` // table, org or csv
}

// LockConfig selects the single-writer lock
type LockConfig struct {
	Type  string      `json:"type" yaml:"type" toml:"type"` // "file", "redis" or "none"
	TTL   string      `json:"ttl" yaml:"ttl" toml:"ttl"`    // e.g. "5m"
	Redis RedisConfig `json:"redis" yaml:"redis" toml:"redis"`
}

type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty" toml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty" toml:"db,omitempty"`
}

// ArchiveConfig selects where raw exports are kept
type ArchiveConfig struct {
	Type     string           `json:"type" yaml:"type" toml:"type"` // "none", "dir" or "s3"
	Dir      string           `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`
	Compress bool             `json:"compress" yaml:"compress" toml:"compress"` // store as .xz
	S3       archive.S3Config `json:"s3" yaml:"s3" toml:"s3"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty" toml:"pretty"`
}

// LockTTL converts the ttl string to time.Duration
func (l LockConfig) LockTTL() (time.Duration, error) {
	if l.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(l.TTL)
}

// Load reads path (when given) over the defaults, loads .env if present and
// applies OPTRACK_* environment overrides, then validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (TOML, YAML or JSON) without
// consulting the environment.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.decodeFile(path); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("parse toml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse json config: %w", err)
		}
	default:
		// Try YAML first, fall back to JSON
		if err := yaml.Unmarshal(data, c); err != nil {
			if err := json.Unmarshal(data, c); err != nil {
				return fmt.Errorf("parse config (tried YAML and JSON): %w", err)
			}
		}
	}
	return nil
}

// SaveToFile saves configuration to a file, formatted by extension
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(c)
		data = []byte(b.String())
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			return fmt.Errorf("db.path is required for sqlite")
		}
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("db.driver must be 'sqlite' or 'postgres'")
	}
	if c.Input.Format != "schwab" {
		return fmt.Errorf("input.format must be 'schwab'")
	}
	if c.Output.DateFormat == "" {
		return fmt.Errorf("output.date_format is required")
	}
	if c.Output.MaxTableWidth < 0 {
		return fmt.Errorf("output.max_table_width must not be negative")
	}
	switch c.Output.Format {
	case "table", "org", "csv":
	default:
		return fmt.Errorf("output.format must be 'table', 'org' or 'csv'")
	}
	if _, err := c.ListFilter(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	switch c.Lock.Type {
	case "none", "file":
	case "redis":
		if c.Lock.Redis.Addr == "" {
			return fmt.Errorf("lock.redis.addr is required for redis")
		}
	default:
		return fmt.Errorf("lock.type must be 'none', 'file' or 'redis'")
	}
	if _, err := c.Lock.LockTTL(); err != nil {
		return fmt.Errorf("lock.ttl: %w", err)
	}
	switch c.Archive.Type {
	case "none":
	case "dir":
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir is required for dir")
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return fmt.Errorf("archive.s3.bucket is required for s3")
		}
		if c.Archive.S3.Region == "" {
			return fmt.Errorf("archive.s3.region is required for s3")
		}
	default:
		return fmt.Errorf("archive.type must be 'none', 'dir' or 's3'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		DB: DBConfig{
			Driver: "sqlite",
			Path:   "./optrack.db",
		},
		Input: InputConfig{
			Format: "schwab",
		},
		Output: OutputConfig{
			DateFormat:    "01/02/2006",
			MaxTableWidth: 120,
			Format:        "table",
		},
		Lock: LockConfig{
			Type: "file",
			TTL:  "10m",
		},
		Archive: ArchiveConfig{
			Type: "none",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DateLayout returns output.date_format as a Go time layout.
func (c *Config) DateLayout() string {
	return Layout(c.Output.DateFormat)
}

var strftime = regexp.MustCompile(`%[a-zA-Z%]`)

// Layout converts the common strftime directives to a Go layout. Strings
// without a '%' are assumed to already be Go layouts.
func Layout(f string) string {
	if !strings.Contains(f, "%") {
		return f
	}
	return strftime.ReplaceAllStringFunc(f, func(d string) string {
		switch d {
		case "%Y":
			return "2006"
		case "%y":
			return "06"
		case "%m":
			return "01"
		case "%d":
			return "02"
		case "%b":
			return "Jan"
		case "%H":
			return "15"
		case "%M":
			return "04"
		case "%S":
			return "05"
		case "%%":
			return "%"
		default:
			return d
		}
	})
}

// ListFilter builds the default listing filter from the filter section.
func (c *Config) ListFilter() (filter.Filter, error) {
	f := filter.Filter{Symbol: c.Filter.Symbol, Underlying: c.Filter.Underlying}
	var err error
	if f.Start, err = filter.ParseDate(c.DateLayout(), c.Filter.Range.Start); err != nil {
		return filter.Filter{}, fmt.Errorf("range.start: %w", err)
	}
	if f.End, err = filter.ParseDate(c.DateLayout(), c.Filter.Range.End); err != nil {
		return filter.Filter{}, fmt.Errorf("range.end: %w", err)
	}
	if _, err := filter.Compile(f); err != nil {
		return filter.Filter{}, err
	}
	return f, nil
}
