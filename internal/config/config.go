// Package config loads sqlweave settings from YAML files.
//
// Example file:
//
//	driver: sqlite
//	dsn: /var/lib/app/app.db
//	pool:
//	  strategy: dual
//	  max_connections: 4
//	logging:
//	  level: debug
//	  format: json
//	  sensitive_fields: [password, api_key]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"

	"github.com/coregx/sqlweave/internal/cache"
	"github.com/coregx/sqlweave/internal/core"
	"github.com/coregx/sqlweave/internal/driver"
	"github.com/coregx/sqlweave/internal/logger"
	"github.com/coregx/sqlweave/internal/tracer"
)

// DefaultTracerName is the instrumentation name used when tracing is enabled
// without one.
const DefaultTracerName = "github.com/coregx/sqlweave"

// Config holds the settings of one database.
type Config struct {
	// Driver is a driver registry key. Default: "sqlite".
	Driver string `yaml:"driver"`
	// DSN is passed to the driver. Default for sqlite: ":memory:".
	DSN string `yaml:"dsn"`

	Pool         PoolConfig        `yaml:"pool"`
	Transactions TransactionConfig `yaml:"transactions"`
	StmtCache    StmtCacheConfig   `yaml:"stmt_cache"`
	Logging      LoggingConfig     `yaml:"logging"`
	Tracing      TracingConfig     `yaml:"tracing"`
}

// PoolConfig selects and sizes the pool.
type PoolConfig struct {
	// Strategy is one of singleton, bounded or dual. Empty lets the driver choose.
	Strategy       string `yaml:"strategy"`
	MaxConnections int    `yaml:"max_connections"`
	NoWait         bool   `yaml:"no_wait"`
	// HealthCheckInterval accepts Go durations ("30s"). Zero disables checks.
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

// TransactionConfig controls transaction nesting.
type TransactionConfig struct {
	// Nested enables savepoints for nested transactions. Default: true.
	Nested *bool `yaml:"nested"`
}

// StmtCacheConfig sizes the prepared statement cache.
type StmtCacheConfig struct {
	// Capacity is the per-connection limit. Negative disables the cache.
	// Default: cache.DefaultStmtCacheCapacity.
	Capacity int `yaml:"capacity"`
}

// LoggingConfig configures the slog logger built by Logger.
type LoggingConfig struct {
	// Level is debug, info, warn, error or off. Default: off.
	Level string `yaml:"level"`
	// Format is text or json. Default: text.
	Format          string   `yaml:"format"`
	SensitiveFields []string `yaml:"sensitive_fields"`
}

// TracingConfig enables OpenTelemetry spans through the global provider.
type TracingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data, applies defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg = cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// defaults returns a copy of cfg with default values applied.
func (cfg Config) defaults() Config {
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.DSN == "" && strings.HasPrefix(cfg.Driver, "sqlite") {
		cfg.DSN = ":memory:"
	}
	if cfg.Transactions.Nested == nil {
		nested := true
		cfg.Transactions.Nested = &nested
	}
	if cfg.StmtCache.Capacity == 0 {
		cfg.StmtCache.Capacity = cache.DefaultStmtCacheCapacity
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "off"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Name == "" {
		cfg.Tracing.Name = DefaultTracerName
	}
	return cfg
}

// Validate reports settings no driver could honour.
func (cfg Config) Validate() error {
	var errs []error
	if cfg.DSN == "" {
		errs = append(errs, fmt.Errorf("dsn is required for driver %q", cfg.Driver))
	}
	switch driver.Strategy(cfg.Pool.Strategy) {
	case driver.StrategyAuto, driver.StrategySingleton, driver.StrategyBounded, driver.StrategyDual:
	default:
		errs = append(errs, fmt.Errorf("unknown pool strategy %q", cfg.Pool.Strategy))
	}
	if cfg.Pool.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("pool.max_connections must not be negative, got %d", cfg.Pool.MaxConnections))
	}
	if cfg.Pool.HealthCheckInterval < 0 {
		errs = append(errs, fmt.Errorf("pool.health_check_interval must not be negative, got %s", cfg.Pool.HealthCheckInterval))
	}
	if _, _, err := parseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if f := cfg.Logging.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unknown logging format %q", f))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func parseLevel(s string) (slog.Level, bool, error) {
	switch strings.ToLower(s) {
	case "off", "none":
		return 0, false, nil
	case "debug":
		return slog.LevelDebug, true, nil
	case "info":
		return slog.LevelInfo, true, nil
	case "warn", "warning":
		return slog.LevelWarn, true, nil
	case "error":
		return slog.LevelError, true, nil
	}
	return 0, false, fmt.Errorf("unknown logging level %q", s)
}

// Logger builds the configured logger writing to w. It returns a
// logger.NoopLogger when logging is off.
func (cfg Config) Logger(w io.Writer) logger.Logger {
	level, on, err := parseLevel(cfg.Logging.Level)
	if err != nil || !on {
		return &logger.NoopLogger{}
	}
	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Logging.Format == "json" {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return logger.NewSlogAdapter(slog.New(h).With("driver", cfg.Driver))
}

// CoreOptions returns the connection settings, logging to w.
func (cfg Config) CoreOptions(w io.Writer) []core.Option {
	opts := []core.Option{
		core.WithLogger(cfg.Logger(w)),
		core.WithNestedTransactions(cfg.Transactions.Nested == nil || *cfg.Transactions.Nested),
	}
	if cfg.StmtCache.Capacity > 0 {
		opts = append(opts, core.WithStmtCacheCapacity(cfg.StmtCache.Capacity))
	}
	if len(cfg.Logging.SensitiveFields) > 0 {
		opts = append(opts, core.WithSensitiveFields(cfg.Logging.SensitiveFields...))
	}
	if cfg.Tracing.Enabled {
		opts = append(opts, core.WithTracer(tracer.NewOtelTracer(otel.Tracer(cfg.Tracing.Name))))
	}
	return opts
}

// DriverOptions returns the pool settings. coreCfg is shared by every
// connection of the pool and may be nil.
func (cfg Config) DriverOptions(coreCfg *core.Config) driver.Options {
	return driver.Options{
		Config:              coreCfg,
		Strategy:            driver.Strategy(cfg.Pool.Strategy),
		MaxConnections:      cfg.Pool.MaxConnections,
		NoWait:              cfg.Pool.NoWait,
		HealthCheckInterval: cfg.Pool.HealthCheckInterval,
	}
}
