package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
	Retry  RetryConfig  `yaml:"retry" mapstructure:"retry"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ImportConfig configures the import engine.
type ImportConfig struct {
	DefaultStrategy        string   `yaml:"default_strategy" mapstructure:"default_strategy"`
	MaxRows                int      `yaml:"max_rows" mapstructure:"max_rows"`
	AliasesPath            string   `yaml:"aliases_path" mapstructure:"aliases_path"`
	ContactUpdatableFields []string `yaml:"contact_updatable_fields" mapstructure:"contact_updatable_fields"`
	CompanyUpdatableFields []string `yaml:"company_updatable_fields" mapstructure:"company_updatable_fields"`
	FreeMailDomains        []string `yaml:"free_mail_domains" mapstructure:"free_mail_domains"`
}

// RetryConfig configures retries of transient datastore failures.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADIMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "leadimport.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", 32<<20)
	v.SetDefault("import.default_strategy", "skip")
	v.SetDefault("import.max_rows", 50000)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 200)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("retry.multiplier", 2.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. All problems are
// reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
	}

	switch mode {
	case "migrate":
	case "import", "serve":
		switch c.Import.DefaultStrategy {
		case "skip", "update", "create_new":
		default:
			errs = append(errs, fmt.Sprintf("import.default_strategy must be skip, update or create_new, got %q", c.Import.DefaultStrategy))
		}
		if c.Import.MaxRows < 0 {
			errs = append(errs, "import.max_rows must be >= 0")
		}
		if mode == "serve" {
			if c.Server.Port <= 0 {
				errs = append(errs, "server.port must be > 0")
			}
			if c.Server.RateLimitRPS < 0 || c.Server.RateBurst < 0 {
				errs = append(errs, "server.rate_limit_rps and server.rate_burst must be >= 0")
			}
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
