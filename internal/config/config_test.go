package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "50", cfg.Optimizer.MinimumOrder)
	assert.Equal(t, 4, cfg.Optimizer.MaxVendorCombinations)
	assert.Equal(t, "0.05", cfg.Optimizer.EarlyStopTolerance)
	assert.True(t, cfg.Optimizer.Dominance)
	assert.Equal(t, 1, cfg.Optimizer.Workers)
	assert.Equal(t, "var/data", cfg.Catalog.DataDir)
	assert.Equal(t, 4, cfg.Catalog.LoadConcurrency)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "planner.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 5.0, cfg.Server.RatePerSecond, 0.001)
	assert.Equal(t, 30*time.Second, cfg.Server.OptimizeTimeout)
	assert.Equal(t, 6, cfg.Server.MaxVendorCombinations)
	assert.Equal(t, int64(4<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
optimizer:
  minimum_order: 30.5
  max_vendor_combinations: 2
  dominance: false
store:
  driver: postgres
  database_url: postgres://localhost/planner
server:
  optimize_timeout: 2m
  max_vendor_combinations: 3
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "30.5", cfg.Optimizer.MinimumOrder)
	assert.Equal(t, 2, cfg.Optimizer.MaxVendorCombinations)
	assert.False(t, cfg.Optimizer.Dominance)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2*time.Minute, cfg.Server.OptimizeTimeout)
	assert.Equal(t, 3, cfg.Server.MaxVendorCombinations)
	// Defaults still apply for unset values
	assert.Equal(t, "0.05", cfg.Optimizer.EarlyStopTolerance)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
optimizer:
  max_vendor_combinations: 2
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PLANNER_OPTIMIZER_MAX_VENDOR_COMBINATIONS", "6")
	t.Setenv("PLANNER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Optimizer.MaxVendorCombinations)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("optimizer: [\n"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestApplySearchConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "search.cfg")
	content := `# scraper settings
BASE_URL="https://shop.example"
MINIMUM_ORDER=75.50
MAX_VENDOR_COMBINATIONS='3'
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := validDefaults()
	require.NoError(t, ApplySearchConfig(cfg, path))
	assert.Equal(t, "75.50", cfg.Optimizer.MinimumOrder)
	assert.Equal(t, 3, cfg.Optimizer.MaxVendorCombinations)

	opts, err := cfg.Optimizer.Options()
	require.NoError(t, err)
	assert.Equal(t, "75.5", opts.MinimumOrder.String())
	assert.Equal(t, 3, opts.MaxVendors)
}

func TestApplySearchConfig_PartialAndMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "search.cfg")
	require.NoError(t, os.WriteFile(path, []byte("MINIMUM_ORDER=0\n"), 0644))

	cfg := validDefaults()
	require.NoError(t, ApplySearchConfig(cfg, path))
	assert.Equal(t, "0", cfg.Optimizer.MinimumOrder)
	assert.Equal(t, 4, cfg.Optimizer.MaxVendorCombinations)

	err := ApplySearchConfig(cfg, filepath.Join(dir, "absent.cfg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read search config")
}

func TestApplySearchConfig_BadNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.cfg")
	require.NoError(t, os.WriteFile(path, []byte("MAX_VENDOR_COMBINATIONS=many\n"), 0644))

	err := ApplySearchConfig(validDefaults(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a number")
}

func TestOptimizerOptions(t *testing.T) {
	cfg := validDefaults()
	cfg.Optimizer.Dominance = false
	cfg.Optimizer.Workers = 3

	opts, err := cfg.Optimizer.Options()
	require.NoError(t, err)
	assert.Equal(t, "50", opts.MinimumOrder.String())
	assert.Equal(t, "0.05", opts.EarlyStopTolerance.String())
	assert.True(t, opts.DisableDominance)
	assert.Equal(t, 3, opts.Workers)

	cfg.Optimizer.MinimumOrder = "fifty"
	_, err = cfg.Optimizer.Options()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "optimizer.minimum_order")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func validDefaults() *Config {
	return &Config{
		Optimizer: OptimizerConfig{
			MinimumOrder:          "50",
			MaxVendorCombinations: 4,
			EarlyStopTolerance:    "0.05",
			Dominance:             true,
			Workers:               1,
		},
		Catalog: CatalogConfig{DataDir: "var/data", LoadConcurrency: 4},
		Store:   StoreConfig{Driver: "sqlite", DatabaseURL: "planner.db"},
		Server: ServerConfig{
			Port:                  8080,
			RatePerSecond:         5,
			OptimizeTimeout:       30 * time.Second,
			MaxVendorCombinations: 6,
			MaxBodyBytes:          4 << 20,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults optimize", mode: "optimize"},
		{name: "defaults serve", mode: "serve"},
		{name: "plans ignores optimizer", mode: "plans", mutate: func(c *Config) { c.Optimizer.MaxVendorCombinations = 0 }},
		{name: "no store", mode: "optimize", mutate: func(c *Config) { c.Store.Driver = "none"; c.Store.DatabaseURL = "" }},
		{name: "unknown mode", mode: "unknown", wantErr: "unknown mode"},
		{name: "negative minimum", mode: "optimize", mutate: func(c *Config) { c.Optimizer.MinimumOrder = "-1" }, wantErr: "minimum_order must be >= 0"},
		{name: "bad minimum", mode: "optimize", mutate: func(c *Config) { c.Optimizer.MinimumOrder = "lots" }, wantErr: "minimum_order must be a number"},
		{name: "zero cap", mode: "optimize", mutate: func(c *Config) { c.Optimizer.MaxVendorCombinations = 0 }, wantErr: "max_vendor_combinations must be >= 1"},
		{name: "negative tolerance", mode: "optimize", mutate: func(c *Config) { c.Optimizer.EarlyStopTolerance = "-0.01" }, wantErr: "early_stop_tolerance must be >= 0"},
		{name: "zero workers", mode: "serve", mutate: func(c *Config) { c.Optimizer.Workers = 0 }, wantErr: "workers must be >= 1"},
		{name: "concurrency bounds", mode: "optimize", mutate: func(c *Config) { c.Catalog.LoadConcurrency = 65 }, wantErr: "load_concurrency must be between 1 and 64"},
		{name: "bad driver", mode: "plans", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "store.driver must be"},
		{name: "missing database url", mode: "plans", mutate: func(c *Config) { c.Store.DatabaseURL = "" }, wantErr: "store.database_url is required"},
		{name: "invalid port", mode: "serve", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port must be > 0"},
		{name: "invalid rate", mode: "serve", mutate: func(c *Config) { c.Server.RatePerSecond = 0 }, wantErr: "rate_per_second must be > 0"},
		{name: "no optimize timeout", mode: "serve", mutate: func(c *Config) { c.Server.OptimizeTimeout = 0 }, wantErr: "optimize_timeout must be > 0"},
		{name: "zero vendor ceiling", mode: "serve", mutate: func(c *Config) { c.Server.MaxVendorCombinations = 0 }, wantErr: "server.max_vendor_combinations must be >= 1"},
		{name: "default above ceiling", mode: "serve", mutate: func(c *Config) { c.Optimizer.MaxVendorCombinations = 7 }, wantErr: "must not exceed server.max_vendor_combinations"},
		{name: "zero body limit", mode: "serve", mutate: func(c *Config) { c.Server.MaxBodyBytes = 0 }, wantErr: "max_body_bytes must be > 0"},
		{name: "optimize ignores server limits", mode: "optimize", mutate: func(c *Config) { c.Server.OptimizeTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Optimizer.MaxVendorCombinations = 0
	cfg.Server.Port = -1

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_vendor_combinations")
	assert.Contains(t, err.Error(), "server.port")
}
