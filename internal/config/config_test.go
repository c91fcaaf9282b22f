package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/natural-conversion/internal/codebook"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 1024, cfg.Grid.BlockWidth)
	assert.Equal(t, []int{2003, 2015}, cfg.Tiles.Years)
	assert.Equal(t, 1296, cfg.Tiles.Planner().Count())
	assert.Equal(t, 1992, cfg.Inputs.InitialYear)
	assert.Equal(t, "lc_{year}.ncg", cfg.Inputs.Cover)
	assert.Equal(t, "natural_conversion", cfg.Output.Prefix)
	assert.Equal(t, codebook.DefaultMatrixLayout(), cfg.Codebook.Transitions.Matrix)
	assert.Equal(t, codebook.KindLegend, cfg.Codebook.CoverRecode.Kind)
	assert.Equal(t, "Legend", cfg.Codebook.CoverRecode.Legend.Sheet)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Backoff)
	assert.Equal(t, "", cfg.Ledger.Driver)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
tiles:
  years: [2015]
  width: 30
inputs:
  dir: /data/esa
  transition: "trans_{initial}-{final}.ncg"
codebook:
  transitions:
    path: codes.yaml
retry:
  backoff: 2s
ledger:
  driver: sqlite
  dsn: runs.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []int{2015}, cfg.Tiles.Years)
	assert.Equal(t, 30, cfg.Tiles.Width)
	assert.Equal(t, 10, cfg.Tiles.Height)
	assert.Equal(t, "/data/esa", cfg.Inputs.Dir)
	assert.Equal(t, "trans_{initial}-{final}.ncg", cfg.Inputs.Transition)
	assert.Equal(t, "codes.yaml", cfg.Codebook.Transitions.Path)
	assert.Equal(t, 2*time.Second, cfg.Retry.Backoff)
	assert.Equal(t, "sqlite", cfg.Ledger.Driver)
	// Defaults still apply for unset values
	assert.Equal(t, 1024, cfg.Grid.BlockHeight)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
output:
  store: out
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("NATCONV_OUTPUT_STORE", "ftp://ftp.example.com/tiles")
	t.Setenv("NATCONV_LOG_LEVEL", "warn")
	t.Setenv("NATCONV_WORKERS", "6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ftp://ftp.example.com/tiles", cfg.Output.Store)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 6, cfg.Workers)
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

func validDefaults(t *testing.T) *Config {
	t.Helper()
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Codebook.Transitions.Path = "codes.yaml"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{"tile ok", "tile", func(*Config) {}, ""},
		{"run ok", "run", func(*Config) {}, ""},
		{"missing codebook", "tile", func(c *Config) { c.Codebook.Transitions.Path = "" }, "codebook.transitions.path is required"},
		{"missing store", "tile", func(c *Config) { c.Output.Store = "" }, "output.store is required"},
		{"bad tiles", "tile", func(c *Config) { c.Tiles.Years = nil }, "no years configured"},
		{"tile year before initial", "tile", func(c *Config) { c.Tiles.Years = []int{1990, 2015} }, "1990 is not after"},
		{"bad block", "run", func(c *Config) { c.Grid.BlockWidth = 0 }, "grid.block_width"},
		{"years reversed", "run", func(c *Config) { c.Inputs.FinalYear = 1990 }, "final_year"},
		{"ledger missing driver", "ledger", func(*Config) {}, "ledger.driver is required"},
		{"ledger missing dsn", "ledger", func(c *Config) { c.Ledger.Driver = "sqlite" }, "ledger.dsn is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults(t)
			tt.mutate(cfg)
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
