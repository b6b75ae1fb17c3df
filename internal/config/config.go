// =============================================================================
// Invoice Batch Import - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Values are resolved in
// three layers, later layers winning:
//   1. Built-in defaults (applyDefaults)
//   2. The YAML configuration file (config.yaml by default)
//   3. Environment variables, optionally seeded from a .env file
//
// ENVIRONMENT OVERRIDES:
//   DATABASE_URL           store.database_url
//   STORE_DRIVER           store.driver
//   SERVER_ADDR            server.addr
//   LOG_MODE               log.mode
//   IMPORT_WORKERS         import.workers
//   IMPORT_SUBMIT_TIMEOUT  import.submit_timeout
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Report formats understood by the report package.
const (
	FormatJSON    = "json"
	FormatXML     = "xml"
	FormatSummary = "summary"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the whole application configuration.
type Config struct {
	Log    LogSettings    `yaml:"log"`
	Store  StoreSettings  `yaml:"store"`
	Import ImportSettings `yaml:"import"`
	Server ServerSettings `yaml:"server"`
	Inbox  InboxSettings  `yaml:"inbox"`
}

// LogSettings controls the structured logger.
type LogSettings struct {
	// Mode is "development" (console, colored levels) or "production" (JSON).
	Mode string `yaml:"mode"`
}

// StoreSettings selects and configures the persistence backend.
type StoreSettings struct {
	// Driver is "postgres" or "memory".
	Driver string `yaml:"driver"`

	// DatabaseURL is a postgres:// connection string (postgres driver only).
	DatabaseURL string `yaml:"database_url"`

	// MaxConns caps the connection pool size. 0 keeps the pgxpool default.
	MaxConns int32 `yaml:"max_conns"`

	// Migrate creates missing tables when the postgres backend is opened.
	Migrate bool `yaml:"migrate"`

	// SeedCustomers pre-populates the memory driver's customer table.
	SeedCustomers []string `yaml:"seed_customers"`
}

// ImportSettings controls parsing and submission of one batch.
type ImportSettings struct {
	// Delimiter separates fields. Accepts ",", ";", "|", "tab" or "\t".
	Delimiter string `yaml:"delimiter"`

	// Encoding of delimited input: "UTF-8", "ISO-8859-1" or "Windows-1252".
	Encoding string `yaml:"encoding"`

	// Lenient tolerates ragged rows and stray quotes instead of failing the
	// batch with a parse error.
	Lenient bool `yaml:"lenient"`

	// Workers bounds how many invoices are submitted concurrently.
	// 1 processes invoices strictly sequentially.
	Workers int `yaml:"workers"`

	// SubmitTimeout bounds the lookup and persistence calls of one invoice.
	SubmitTimeout time.Duration `yaml:"submit_timeout"`

	// RequiredFields are header columns that must be non-blank on an invoice.
	RequiredFields []string `yaml:"required_fields"`
}

// ServerSettings configures the HTTP upload endpoint.
type ServerSettings struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// InboxSettings configures directory-based imports.
type InboxSettings struct {
	// Enabled schedules the inbox job when running "serve".
	Enabled bool `yaml:"enabled"`

	InputDir   string `yaml:"input_dir"`
	ArchiveDir string `yaml:"archive_dir"`
	OutputDir  string `yaml:"output_dir"`

	// Schedule is a robfig/cron expression such as "@every 1m" or "*/5 * * * *".
	Schedule string `yaml:"schedule"`
	TimeZone string `yaml:"time_zone"`

	// ReportFormat is "json", "xml" or "summary".
	ReportFormat string `yaml:"report_format"`
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration file at path, applies defaults and
// environment overrides, and validates the result. A missing file is not an
// error: defaults and environment still apply.
func Load(path string) (*Config, error) {
	// .env never overrides variables that are already set.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyDefaults(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "development"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverPostgres
	}
	if cfg.Import.Delimiter == "" {
		cfg.Import.Delimiter = ","
	}
	if cfg.Import.Encoding == "" {
		cfg.Import.Encoding = "UTF-8"
	}
	if cfg.Import.Workers == 0 {
		cfg.Import.Workers = 1
	}
	if cfg.Import.SubmitTimeout == 0 {
		cfg.Import.SubmitTimeout = 10 * time.Second
	}
	if cfg.Import.RequiredFields == nil {
		cfg.Import.RequiredFields = []string{"CustomerName"}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Inbox.InputDir == "" {
		cfg.Inbox.InputDir = "./input"
	}
	if cfg.Inbox.ArchiveDir == "" {
		cfg.Inbox.ArchiveDir = "./input_archive"
	}
	if cfg.Inbox.OutputDir == "" {
		cfg.Inbox.OutputDir = "./output"
	}
	if cfg.Inbox.Schedule == "" {
		cfg.Inbox.Schedule = "@every 1m"
	}
	if cfg.Inbox.TimeZone == "" {
		cfg.Inbox.TimeZone = "UTC"
	}
	if cfg.Inbox.ReportFormat == "" {
		cfg.Inbox.ReportFormat = FormatJSON
	}
}

func applyEnv(cfg *Config) error {
	if v := env("DATABASE_URL"); v != "" {
		cfg.Store.DatabaseURL = v
	}
	if v := env("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := env("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := env("LOG_MODE"); v != "" {
		cfg.Log.Mode = v
	}
	if v := env("IMPORT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IMPORT_WORKERS: %w", err)
		}
		cfg.Import.Workers = n
	}
	if v := env("IMPORT_SUBMIT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("IMPORT_SUBMIT_TIMEOUT: %w", err)
		}
		cfg.Import.SubmitTimeout = d
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Store.Driver)
	}
	if c.Import.Workers < 1 {
		return fmt.Errorf("import.workers must be at least 1, got %d", c.Import.Workers)
	}
	if c.Import.SubmitTimeout < 0 {
		return fmt.Errorf("import.submit_timeout must not be negative")
	}
	if _, err := c.Import.Comma(); err != nil {
		return err
	}
	switch strings.ToUpper(c.Import.Encoding) {
	case "UTF-8", "UTF8", "ISO-8859-1", "LATIN1", "WINDOWS-1252", "CP1252":
	default:
		return fmt.Errorf("import.encoding %q is not supported", c.Import.Encoding)
	}
	switch c.Inbox.ReportFormat {
	case FormatJSON, FormatXML, FormatSummary:
	default:
		return fmt.Errorf("inbox.report_format %q is not supported", c.Inbox.ReportFormat)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be at least 1")
	}
	return nil
}

// Comma resolves the configured delimiter to a single rune.
func (s ImportSettings) Comma() (rune, error) {
	switch s.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		return '\t', nil
	case "pipe", "PIPE":
		return '|', nil
	case "semicolon":
		return ';', nil
	}
	r := []rune(s.Delimiter)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("import.delimiter %q must be a single character", s.Delimiter)
	}
	return r[0], nil
}
