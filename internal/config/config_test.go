package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FMP_API_KEY", "test-key")
	t.Setenv("SCREENER_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.FMPAPIKey)
	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, "per_symbol", cfg.EnrichStrategy)
	assert.Equal(t, 15*time.Minute, cfg.ScreenerCacheTTL)
	assert.Equal(t, []string{"NYSE", "NASDAQ", "AMEX"}, cfg.Screener.Exchanges)
	assert.Equal(t, "US", cfg.Screener.Country)
	assert.Equal(t, 2_000_000_000.0, cfg.Screener.MinMarketCap)
	assert.Equal(t, int64(500_000), cfg.Screener.MinVolume)
	assert.False(t, cfg.Screener.IncludeAllShareClasses)
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("FMP_API_KEY", "")
	t.Setenv("SCREENER_DATA_DIR", t.TempDir())

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FMP_API_KEY")
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	t.Setenv("FMP_API_KEY", "test-key")
	t.Setenv("SCREENER_DATA_DIR", t.TempDir())
	t.Setenv("ENRICH_STRATEGY", "psychic")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENRICH_STRATEGY")
}

func TestLoadParsesExchangeList(t *testing.T) {
	t.Setenv("FMP_API_KEY", "test-key")
	t.Setenv("SCREENER_DATA_DIR", t.TempDir())
	t.Setenv("SCREENER_EXCHANGES", "LSE, XETRA ,PAR")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"LSE", "XETRA", "PAR"}, cfg.Screener.Exchanges)
}
