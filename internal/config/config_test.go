package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesTemplatesAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "config.toml"))
	assert.FileExists(t, filepath.Join(dir, "credentials.toml"))

	assert.Equal(t, 1000000.0, cfg.Demo.SeedCash)
	assert.Equal(t, 2*time.Second, cfg.Demo.QuoteTimeout)
	assert.Equal(t, filepath.Join(dir, "demo_trading.db"), cfg.Demo.DBPath)
	assert.False(t, cfg.Demo.AllowShort)
	assert.Equal(t, "NSE", cfg.Demo.DefaultExchange)
	assert.False(t, cfg.HasZerodha())
}

func TestLoad_ReadsFileAndNormalizesKeys(t *testing.T) {
	dir := t.TempDir()
	content := `
[demo]
seed_cash = 500000.0
quote_timeout = "500ms"
allow_short = true

[demo.quotes]
RELIANCE = 2500.0

[demo.lot_sizes]
"NFO:NIFTY" = 75
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 500000.0, cfg.Demo.SeedCash)
	assert.Equal(t, 500*time.Millisecond, cfg.Demo.QuoteTimeout)
	assert.True(t, cfg.Demo.AllowShort)
	assert.Equal(t, 2500.0, cfg.Demo.Quotes["RELIANCE"])
	assert.Equal(t, 75, cfg.Demo.LotSizes["NFO:NIFTY"])
}

func TestValidate(t *testing.T) {
	cfg := Default(t.TempDir())
	require.NoError(t, cfg.Validate())

	cfg.Demo.SeedCash = -1
	assert.Error(t, cfg.Validate())

	cfg = Default(t.TempDir())
	cfg.Demo.LotSizes = map[string]int{"NFO:NIFTY": 0}
	assert.Error(t, cfg.Validate())

	cfg = Default(t.TempDir())
	cfg.Demo.QuoteTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestLoad_ServerDefaultsAndCredentialEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZERODHA_API_KEY", "key")
	t.Setenv("ZERODHA_ACCESS_TOKEN", "token")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.True(t, cfg.Security.AuditEnabled)
	assert.Equal(t, filepath.Join(dir, "audit"), cfg.Security.AuditDir)
	assert.Equal(t, "key", cfg.Credentials.Zerodha.APIKey)
	assert.True(t, cfg.HasZerodha())
}
