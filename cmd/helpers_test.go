//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/purchase-planner/internal/config"
)

// writeFixture writes content to dir/name and returns the path.
func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// hardwareFixture lays out a shopping list and per-product offer files.
// Shop A alone costs 65.00, Shop B alone 69.00, and no split between the
// two meets a minimum order of 50.
func hardwareFixture(t *testing.T) (listPath, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	require.NoError(t, os.Mkdir(dataDir, 0o755))

	writeFixture(t, dataDir, "cable.csv", `name,price,shipping,vendor,url
Cable 2m,40,5,Shop A,https://a.example/cable
Cable 2m,45,0,Shop B,
`)
	writeFixture(t, dataDir, "plug.csv", `nome_prodotto,prezzo,spedizione,venditore
Plug,10,5,Shop A
Plug,"12,00",0,Shop B
`)
	listPath = writeFixture(t, dir, "hardware.txt", "# weekend project\ncable\nplug,2\n")
	return listPath, dataDir
}

func testConfig(t *testing.T, dataDir string) *config.Config {
	t.Helper()
	return &config.Config{
		Optimizer: config.OptimizerConfig{
			MinimumOrder:          "50",
			MaxVendorCombinations: 4,
			EarlyStopTolerance:    "0.05",
			Dominance:             true,
			Workers:               1,
		},
		Catalog: config.CatalogConfig{DataDir: dataDir, LoadConcurrency: 2},
		Store:   config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "plans.db")},
		Server: config.ServerConfig{
			Port:                  8080,
			RatePerSecond:         100,
			OptimizeTimeout:       10 * time.Second,
			MaxVendorCombinations: 8,
			MaxBodyBytes:          1 << 20,
		},
		Log: config.LogConfig{Level: "info", Format: "json"},
	}
}
