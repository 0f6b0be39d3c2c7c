package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trademaestro/internal/adapters/logger"
	"trademaestro/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Trading
	Symbols    []string // Symbols scanned each cycle
	Strategy   string   // Strategy active at startup ("scalping" or "swing")
	Interval   time.Duration
	DefaultLot float64

	// Risk
	Risk domain.RiskLimits

	// Data source: "sim" for the paper gateway, "binance" for live klines
	DataSource string

	// Binance API (only needed when DataSource is "binance")
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Optional YAML file overriding strategy parameters
	StrategyParamsFile string
	Overrides          map[string]map[string]float64

	// Database
	DBPath string

	// Simulation
	SimSeed int64

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	symbolsStr := getEnv("SYMBOLS", "EURUSD,GBPUSD,USDJPY")
	for _, s := range strings.Split(symbolsStr, ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.Symbols = append(cfg.Symbols, s)
		}
	}
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must list at least one symbol")
	}

	cfg.Strategy = strings.ToLower(getEnv("STRATEGY", "scalping"))

	intervalSeconds, err := getEnvAsIntRequired("CYCLE_INTERVAL_SECONDS", 60)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CYCLE_INTERVAL_SECONDS: %v", err))
	} else if intervalSeconds <= 0 {
		errs = append(errs, "CYCLE_INTERVAL_SECONDS must be positive")
	}
	cfg.Interval = time.Duration(intervalSeconds) * time.Second

	cfg.DefaultLot, err = getEnvAsFloatRequired("DEFAULT_LOT", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_LOT: %v", err))
	} else if cfg.DefaultLot <= 0 {
		errs = append(errs, "DEFAULT_LOT must be positive")
	}

	cfg.Risk.MaxPositions, err = getEnvAsIntRequired("MAX_POSITIONS", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITIONS: %v", err))
	} else if cfg.Risk.MaxPositions <= 0 {
		errs = append(errs, "MAX_POSITIONS must be positive")
	}

	cfg.Risk.MaxRiskPerTrade, err = getEnvAsFloatRequired("MAX_RISK_PER_TRADE", 0.02)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_RISK_PER_TRADE: %v", err))
	} else if cfg.Risk.MaxRiskPerTrade <= 0 || cfg.Risk.MaxRiskPerTrade >= 1.0 {
		errs = append(errs, "MAX_RISK_PER_TRADE must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.Risk.MinConfidence = getEnvAsFloat("MIN_CONFIDENCE", 0.6)
	if cfg.Risk.MinConfidence < 0 || cfg.Risk.MinConfidence > 1.0 {
		errs = append(errs, "MIN_CONFIDENCE must be between 0.0 and 1.0")
	}

	cfg.DataSource = strings.ToLower(getEnv("DATA_SOURCE", "sim"))
	switch cfg.DataSource {
	case "sim":
	case "binance":
		cfg.APIKey = getEnv("BINANCE_API_KEY", "")
		cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
		cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true)
	default:
		errs = append(errs, fmt.Sprintf("unknown DATA_SOURCE %q (must be sim or binance)", cfg.DataSource))
	}

	cfg.DBPath = getEnv("DB_PATH", "./data/trademaestro.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	simSeed, err := getEnvAsIntRequired("SIM_SEED", 42)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SIM_SEED: %v", err))
	}
	cfg.SimSeed = int64(simSeed)

	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	cfg.StrategyParamsFile = getEnv("STRATEGY_PARAMS_FILE", "")
	if cfg.StrategyParamsFile != "" {
		cfg.Overrides, err = loadStrategyParams(cfg.StrategyParamsFile)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid STRATEGY_PARAMS_FILE: %v", err))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// loadStrategyParams reads per-strategy parameter overrides from a YAML file
// shaped as strategy name -> parameter name -> value.
func loadStrategyParams(path string) (map[string]map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	overrides := make(map[string]map[string]float64)
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}
	return overrides, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
