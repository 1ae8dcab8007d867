package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/purchase-planner/internal/optimizer"
)

// Config holds the full application configuration.
type Config struct {
	Optimizer OptimizerConfig `yaml:"optimizer" mapstructure:"optimizer"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// OptimizerConfig holds the search constraints. Amounts are kept as text so
// they convert to decimals without float rounding.
type OptimizerConfig struct {
	MinimumOrder          string `yaml:"minimum_order" mapstructure:"minimum_order"`
	MaxVendorCombinations int    `yaml:"max_vendor_combinations" mapstructure:"max_vendor_combinations"`
	EarlyStopTolerance    string `yaml:"early_stop_tolerance" mapstructure:"early_stop_tolerance"`
	Dominance             bool   `yaml:"dominance" mapstructure:"dominance"`
	Workers               int    `yaml:"workers" mapstructure:"workers"`
}

// CatalogConfig configures where offers are read from.
type CatalogConfig struct {
	DataDir         string `yaml:"data_dir" mapstructure:"data_dir"`
	LoadConcurrency int    `yaml:"load_concurrency" mapstructure:"load_concurrency"`
}

// StoreConfig configures the plan database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API. OptimizeTimeout bounds each
// optimize request; MaxVendorCombinations caps the vendor limit a request may
// ask for; MaxBodyBytes caps the request body.
type ServerConfig struct {
	Port                  int           `yaml:"port" mapstructure:"port"`
	RatePerSecond         float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	OptimizeTimeout       time.Duration `yaml:"optimize_timeout" mapstructure:"optimize_timeout"`
	MaxVendorCombinations int           `yaml:"max_vendor_combinations" mapstructure:"max_vendor_combinations"`
	MaxBodyBytes          int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
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
	v.SetEnvPrefix("PLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("optimizer.minimum_order", "50")
	v.SetDefault("optimizer.max_vendor_combinations", 4)
	v.SetDefault("optimizer.early_stop_tolerance", "0.05")
	v.SetDefault("optimizer.dominance", true)
	v.SetDefault("optimizer.workers", 1)
	v.SetDefault("catalog.data_dir", "var/data")
	v.SetDefault("catalog.load_concurrency", 4)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "planner.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 5)
	v.SetDefault("server.optimize_timeout", "30s")
	v.SetDefault("server.max_vendor_combinations", 6)
	v.SetDefault("server.max_body_bytes", 4<<20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// ApplySearchConfig overrides the optimizer settings with the KEY=VALUE
// pairs of a legacy search.cfg file. Only MINIMUM_ORDER and
// MAX_VENDOR_COMBINATIONS are read; other keys belong to the scraper.
func ApplySearchConfig(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("dotenv")
	if err := v.ReadInConfig(); err != nil {
		return eris.Wrapf(err, "config: read search config %s", path)
	}

	if v.IsSet("minimum_order") {
		cfg.Optimizer.MinimumOrder = strings.TrimSpace(v.GetString("minimum_order"))
	}
	if v.IsSet("max_vendor_combinations") {
		n := v.GetInt("max_vendor_combinations")
		if n == 0 && strings.TrimSpace(v.GetString("max_vendor_combinations")) != "0" {
			return eris.Errorf("config: %s: MAX_VENDOR_COMBINATIONS is not a number", path)
		}
		cfg.Optimizer.MaxVendorCombinations = n
	}
	return nil
}

// Options converts the optimizer section into optimizer options.
func (c OptimizerConfig) Options() (optimizer.Options, error) {
	minimum, err := decimal.NewFromString(c.MinimumOrder)
	if err != nil {
		return optimizer.Options{}, eris.Wrapf(err, "config: optimizer.minimum_order %q", c.MinimumOrder)
	}
	tolerance, err := decimal.NewFromString(c.EarlyStopTolerance)
	if err != nil {
		return optimizer.Options{}, eris.Wrapf(err, "config: optimizer.early_stop_tolerance %q", c.EarlyStopTolerance)
	}
	return optimizer.Options{
		MinimumOrder:       minimum,
		MaxVendors:         c.MaxVendorCombinations,
		EarlyStopTolerance: tolerance,
		DisableDominance:   !c.Dominance,
		Workers:            c.Workers,
	}, nil
}

// Validate checks the settings a command relies on. mode is one of
// "optimize", "plans" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "optimize", "serve":
		errs = append(errs, c.validateOptimizer()...)
		if c.Catalog.LoadConcurrency < 1 || c.Catalog.LoadConcurrency > 64 {
			errs = append(errs, "catalog.load_concurrency must be between 1 and 64")
		}
	case "plans":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, "store.driver must be sqlite, postgres or none")
	}
	if c.Store.Driver != "none" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RatePerSecond <= 0 {
			errs = append(errs, "server.rate_per_second must be > 0")
		}
		if c.Server.OptimizeTimeout <= 0 {
			errs = append(errs, "server.optimize_timeout must be > 0")
		}
		if c.Server.MaxVendorCombinations < 1 {
			errs = append(errs, "server.max_vendor_combinations must be >= 1")
		} else if c.Optimizer.MaxVendorCombinations > c.Server.MaxVendorCombinations {
			errs = append(errs, "optimizer.max_vendor_combinations must not exceed server.max_vendor_combinations")
		}
		if c.Server.MaxBodyBytes <= 0 {
			errs = append(errs, "server.max_body_bytes must be > 0")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateOptimizer() []string {
	var errs []string
	o := c.Optimizer
	if m, err := decimal.NewFromString(o.MinimumOrder); err != nil {
		errs = append(errs, "optimizer.minimum_order must be a number")
	} else if m.IsNegative() {
		errs = append(errs, "optimizer.minimum_order must be >= 0")
	}
	if o.MaxVendorCombinations < 1 {
		errs = append(errs, "optimizer.max_vendor_combinations must be >= 1")
	}
	if tol, err := decimal.NewFromString(o.EarlyStopTolerance); err != nil {
		errs = append(errs, "optimizer.early_stop_tolerance must be a number")
	} else if tol.IsNegative() {
		errs = append(errs, "optimizer.early_stop_tolerance must be >= 0")
	}
	if o.Workers < 1 {
		errs = append(errs, "optimizer.workers must be >= 1")
	}
	return errs
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
