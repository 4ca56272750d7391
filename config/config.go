package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	BinanceConfig    BinanceConfig    `json:"binance"`
	DatabaseConfig   DatabaseConfig   `json:"database"`
	RedisConfig      RedisConfig      `json:"redis"`
	VaultConfig      VaultConfig      `json:"vault"`
	ServerConfig     ServerConfig     `json:"server"`
	TradingConfig    TradingConfig    `json:"trading"`
	AnalysisConfig   AnalysisConfig   `json:"analysis"`
	SupervisorConfig SupervisorConfig `json:"supervisor"`
	LoggingConfig    LoggingConfig    `json:"logging"`
}

// BinanceConfig holds exchange connectivity settings. API keys are per-user
// and live in the credential store, never here.
type BinanceConfig struct {
	BaseURL        string `json:"base_url"`
	TestNet        bool   `json:"testnet"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// VaultConfig holds HashiCorp Vault configuration for per-user API keys.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
	// Fallback file used when Vault is disabled; encrypted with a key
	// derived from LocalPassphrase.
	LocalPath       string `json:"local_path"`
	LocalPassphrase string `json:"local_passphrase"`
}

type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`
	WriteTimeout    int    `json:"write_timeout"`
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// TradingConfig holds the decision gate and sizing parameters.
type TradingConfig struct {
	ExecuteThreshold       float64  `json:"execute_threshold"` // combined score needed to fire (0-100)
	ConfluenceWeight       float64  `json:"confluence_weight"` // blend weight of confluence vs pattern score (0-1)
	MinRewardRiskAuto      float64  `json:"min_reward_risk_auto"`
	MinRewardRiskChecklist float64  `json:"min_reward_risk_checklist"`
	MinBalance             float64  `json:"min_balance"` // balance floor in quote currency
	DefaultLeverage        int      `json:"default_leverage"`
	MaxLeverage            int      `json:"max_leverage"`
	AnalysisIntervalSecs   int      `json:"analysis_interval_secs"`
	Symbols                []string `json:"symbols"`
	HigherTimeframe        string   `json:"higher_timeframe"`
	EntryTimeframe         string   `json:"entry_timeframe"`
	KlineLimit             int      `json:"kline_limit"`
}

// AnalysisConfig holds the liquidity-sweep engine parameters.
type AnalysisConfig struct {
	MinZoneStrength   float64 `json:"min_zone_strength"`   // zones below this are not sweep candidates
	SweepThresholdPct float64 `json:"sweep_threshold_pct"` // pierce threshold around a zone, in percent
	MaxActiveEntries  int     `json:"max_active_entries"`  // entry cap over the trailing window
	EntryWindowMins   int     `json:"entry_window_mins"`
	RetentionHours    int     `json:"retention_hours"` // zone/sweep/entry eviction age
}

type SupervisorConfig struct {
	PollIntervalSecs  int     `json:"poll_interval_secs"`
	QuantityTolerance float64 `json:"quantity_tolerance"` // relative tolerance for quantity reconstruction
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"`
}

func Load() (*Config, error) {
	// Base config from file; env overrides take precedence.
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	cfg.BinanceConfig.TestNet = getEnvOrDefault("BINANCE_TESTNET", boolString(cfg.BinanceConfig.TestNet)) == "true"
	cfg.BinanceConfig.TimeoutSeconds = getEnvIntOrDefault("BINANCE_TIMEOUT_SECONDS", cfg.BinanceConfig.TimeoutSeconds)

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", boolString(cfg.VaultConfig.Enabled)) == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", boolString(cfg.VaultConfig.TLSEnabled)) == "true"
	cfg.VaultConfig.LocalPath = getEnvOrDefault("VAULT_LOCAL_PATH", cfg.VaultConfig.LocalPath)
	cfg.VaultConfig.LocalPassphrase = getEnvOrDefault("VAULT_LOCAL_PASSPHRASE", cfg.VaultConfig.LocalPassphrase)

	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	cfg.TradingConfig.ExecuteThreshold = getEnvFloatOrDefault("TRADING_EXECUTE_THRESHOLD", cfg.TradingConfig.ExecuteThreshold)
	cfg.TradingConfig.ConfluenceWeight = getEnvFloatOrDefault("TRADING_CONFLUENCE_WEIGHT", cfg.TradingConfig.ConfluenceWeight)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", boolString(cfg.LoggingConfig.JSONFormat)) == "true"
}

func applyDefaults(cfg *Config) {
	if cfg.BinanceConfig.BaseURL == "" {
		cfg.BinanceConfig.BaseURL = "https://api.binance.com"
	}
	if cfg.BinanceConfig.TimeoutSeconds <= 0 {
		cfg.BinanceConfig.TimeoutSeconds = 10
	}
	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.VaultConfig.Address == "" {
		cfg.VaultConfig.Address = "http://localhost:8200"
	}
	if cfg.VaultConfig.MountPath == "" {
		cfg.VaultConfig.MountPath = "secret"
	}
	if cfg.VaultConfig.SecretPath == "" {
		cfg.VaultConfig.SecretPath = "smc-bot/api-keys"
	}
	if cfg.VaultConfig.LocalPath == "" {
		cfg.VaultConfig.LocalPath = "credentials.enc"
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.ReadTimeout == 0 {
		cfg.ServerConfig.ReadTimeout = 30
	}
	if cfg.ServerConfig.WriteTimeout == 0 {
		cfg.ServerConfig.WriteTimeout = 30
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}
	if cfg.TradingConfig.ExecuteThreshold == 0 {
		cfg.TradingConfig.ExecuteThreshold = 80
	}
	if cfg.TradingConfig.ConfluenceWeight == 0 {
		cfg.TradingConfig.ConfluenceWeight = 0.6
	}
	if cfg.TradingConfig.MinRewardRiskAuto == 0 {
		cfg.TradingConfig.MinRewardRiskAuto = 2.5
	}
	if cfg.TradingConfig.MinRewardRiskChecklist == 0 {
		cfg.TradingConfig.MinRewardRiskChecklist = 3.0
	}
	if cfg.TradingConfig.MinBalance == 0 {
		cfg.TradingConfig.MinBalance = 100
	}
	if cfg.TradingConfig.DefaultLeverage == 0 {
		cfg.TradingConfig.DefaultLeverage = 10
	}
	if cfg.TradingConfig.MaxLeverage == 0 {
		cfg.TradingConfig.MaxLeverage = 125
	}
	if cfg.TradingConfig.AnalysisIntervalSecs == 0 {
		cfg.TradingConfig.AnalysisIntervalSecs = 60
	}
	if len(cfg.TradingConfig.Symbols) == 0 {
		cfg.TradingConfig.Symbols = []string{"BTCUSDT"}
	}
	if cfg.TradingConfig.HigherTimeframe == "" {
		cfg.TradingConfig.HigherTimeframe = "1h"
	}
	if cfg.TradingConfig.EntryTimeframe == "" {
		cfg.TradingConfig.EntryTimeframe = "15m"
	}
	if cfg.TradingConfig.KlineLimit == 0 {
		cfg.TradingConfig.KlineLimit = 100
	}
	if cfg.AnalysisConfig.MinZoneStrength == 0 {
		cfg.AnalysisConfig.MinZoneStrength = 60
	}
	if cfg.AnalysisConfig.SweepThresholdPct == 0 {
		cfg.AnalysisConfig.SweepThresholdPct = 0.1
	}
	if cfg.AnalysisConfig.MaxActiveEntries == 0 {
		cfg.AnalysisConfig.MaxActiveEntries = 3
	}
	if cfg.AnalysisConfig.EntryWindowMins == 0 {
		cfg.AnalysisConfig.EntryWindowMins = 60
	}
	if cfg.AnalysisConfig.RetentionHours == 0 {
		cfg.AnalysisConfig.RetentionHours = 24
	}
	if cfg.SupervisorConfig.PollIntervalSecs == 0 {
		cfg.SupervisorConfig.PollIntervalSecs = 10
	}
	if cfg.SupervisorConfig.QuantityTolerance == 0 {
		cfg.SupervisorConfig.QuantityTolerance = 1e-6
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}
}

// BinanceTimeout returns the request timeout for exchange calls.
func (c *Config) BinanceTimeout() time.Duration {
	return time.Duration(c.BinanceConfig.TimeoutSeconds) * time.Second
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// GenerateSampleConfig creates a sample configuration file.
func GenerateSampleConfig(filename string) error {
	config := Config{}
	applyDefaults(&config)
	config.DatabaseConfig.User = "smcbot"
	config.DatabaseConfig.Database = "smcbot"
	config.BinanceConfig.TestNet = true
	config.RedisConfig.Enabled = true

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
