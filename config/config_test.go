package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trademaestro/internal/adapters/logger"
)

// clearEnv blanks every variable LoadConfig reads so host values
// cannot leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"SYMBOLS", "STRATEGY", "CYCLE_INTERVAL_SECONDS", "DEFAULT_LOT",
		"MAX_POSITIONS", "MAX_RISK_PER_TRADE", "MIN_CONFIDENCE",
		"DATA_SOURCE", "BINANCE_API_KEY", "BINANCE_API_SECRET", "IS_TESTNET",
		"DB_PATH", "SIM_SEED", "LOG_LEVEL", "STRATEGY_PARAMS_FILE",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"EURUSD", "GBPUSD", "USDJPY"}, cfg.Symbols)
	assert.Equal(t, "scalping", cfg.Strategy)
	assert.Equal(t, 60*time.Second, cfg.Interval)
	assert.Equal(t, 0.01, cfg.DefaultLot)
	assert.Equal(t, 3, cfg.Risk.MaxPositions)
	assert.Equal(t, 0.02, cfg.Risk.MaxRiskPerTrade)
	assert.Equal(t, 0.6, cfg.Risk.MinConfidence)
	assert.Equal(t, "sim", cfg.DataSource)
	assert.Equal(t, "./data/trademaestro.db", cfg.DBPath)
	assert.Equal(t, int64(42), cfg.SimSeed)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
}

func TestLoadConfigOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYMBOLS", "EURUSD, AUDUSD")
	t.Setenv("STRATEGY", "Swing")
	t.Setenv("CYCLE_INTERVAL_SECONDS", "15")
	t.Setenv("DEFAULT_LOT", "0.5")
	t.Setenv("MAX_POSITIONS", "5")
	t.Setenv("MAX_RISK_PER_TRADE", "0.01")
	t.Setenv("MIN_CONFIDENCE", "0.7")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SIM_SEED", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"EURUSD", "AUDUSD"}, cfg.Symbols)
	assert.Equal(t, "swing", cfg.Strategy)
	assert.Equal(t, 15*time.Second, cfg.Interval)
	assert.Equal(t, 0.5, cfg.DefaultLot)
	assert.Equal(t, 5, cfg.Risk.MaxPositions)
	assert.Equal(t, 0.01, cfg.Risk.MaxRiskPerTrade)
	assert.Equal(t, 0.7, cfg.Risk.MinConfidence)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, int64(7), cfg.SimSeed)
}

func TestLoadConfigBinanceSource(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_SOURCE", "binance")
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_API_SECRET", "secret")
	t.Setenv("IS_TESTNET", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "binance", cfg.DataSource)
	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, "secret", cfg.SecretKey)
	assert.False(t, cfg.IsTestnet)
}

func TestLoadConfigAccumulatesErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("CYCLE_INTERVAL_SECONDS", "not-a-number")
	t.Setenv("MAX_RISK_PER_TRADE", "1.5")
	t.Setenv("DATA_SOURCE", "kraken")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CYCLE_INTERVAL_SECONDS")
	assert.Contains(t, err.Error(), "MAX_RISK_PER_TRADE")
	assert.Contains(t, err.Error(), "DATA_SOURCE")
}

func TestLoadConfigRejectsNonPositiveValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("CYCLE_INTERVAL_SECONDS", "0")
	t.Setenv("DEFAULT_LOT", "-1")
	t.Setenv("MAX_POSITIONS", "0")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CYCLE_INTERVAL_SECONDS must be positive")
	assert.Contains(t, err.Error(), "DEFAULT_LOT must be positive")
	assert.Contains(t, err.Error(), "MAX_POSITIONS must be positive")
}

func TestLoadConfigStrategyParamsFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	content := "scalping:\n  RSIOversold: 25\n  ConfidenceThreshold: 0.7\nswing:\n  MinRewardRisk: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("STRATEGY_PARAMS_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Contains(t, cfg.Overrides, "scalping")
	assert.Equal(t, 25.0, cfg.Overrides["scalping"]["RSIOversold"])
	assert.Equal(t, 0.7, cfg.Overrides["scalping"]["ConfidenceThreshold"])
	assert.Equal(t, 2.0, cfg.Overrides["swing"]["MinRewardRisk"])
}

func TestLoadConfigMissingParamsFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("STRATEGY_PARAMS_FILE", "/nonexistent/params.yaml")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRATEGY_PARAMS_FILE")
}
