package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/rewired-gh/dexrisk/internal/models"
	"github.com/rewired-gh/dexrisk/internal/strategy"
)

// Config represents the complete application configuration
type Config struct {
	Account   string          `mapstructure:"account"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// StrategyConfig holds the risk strategy parameters
type StrategyConfig struct {
	Symbol                         string  `mapstructure:"symbol"`
	RiskFactor                     float64 `mapstructure:"risk_factor"`
	HistoricalDataCount            int     `mapstructure:"historical_data_count"`
	MinimumTradingVolumePercentage float64 `mapstructure:"minimum_trading_volume_percentage"`
	MaximumVolatility              float64 `mapstructure:"maximum_volatility"`
	OrderBookDepth                 int     `mapstructure:"order_book_depth"`
	DepthParticipation             float64 `mapstructure:"depth_participation"`
	DryRun                         bool    `mapstructure:"dry_run"`
}

// ExchangeConfig holds DEX API configuration
type ExchangeConfig struct {
	APIURL         string        `mapstructure:"api_url"`
	OrderURL       string        `mapstructure:"order_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	RateLimit      float64       `mapstructure:"rate_limit"`
}

// SchedulerConfig holds cycle scheduling configuration
type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds decision journal configuration
type StorageConfig struct {
	DBPath       string `mapstructure:"db_path"`
	MaxDecisions int    `mapstructure:"max_decisions"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// requiredKeys have no defaults; a missing key is a startup error.
var requiredKeys = []string{
	"account",
	"strategy.symbol",
	"strategy.risk_factor",
	"strategy.historical_data_count",
	"strategy.minimum_trading_volume_percentage",
	"strategy.maximum_volatility",
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	// DEXRISK_STRATEGY_SYMBOL overrides strategy.symbol
	v.SetEnvPrefix("DEXRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range requiredKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	for _, key := range requiredKeys {
		if !v.IsSet(key) {
			return nil, fmt.Errorf("missing required config key %s", key)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for optional configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("strategy.order_book_depth", 100)
	v.SetDefault("strategy.depth_participation", 0.1)
	v.SetDefault("strategy.dry_run", false)

	v.SetDefault("exchange.api_url", "https://dex.api.mainnet.metalx.com")
	v.SetDefault("exchange.timeout", "30s")
	v.SetDefault("exchange.max_retries", 3)
	v.SetDefault("exchange.retry_delay_base", "1s")
	v.SetDefault("exchange.rate_limit", 5.0)

	v.SetDefault("scheduler.interval", "5m")

	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.max_decisions", 10000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("account is required")
	}

	// Validate Strategy config
	if _, _, err := models.ParseSymbol(c.Strategy.Symbol); err != nil {
		return fmt.Errorf("strategy.symbol: %w", err)
	}
	if c.Strategy.RiskFactor <= 0 {
		return fmt.Errorf("strategy.risk_factor must be positive")
	}
	if c.Strategy.HistoricalDataCount < 2 {
		return fmt.Errorf("strategy.historical_data_count must be at least 2")
	}
	if c.Strategy.MinimumTradingVolumePercentage < 0 {
		return fmt.Errorf("strategy.minimum_trading_volume_percentage must not be negative")
	}
	if c.Strategy.MaximumVolatility <= 0 {
		return fmt.Errorf("strategy.maximum_volatility must be positive")
	}
	if c.Strategy.OrderBookDepth < 1 || c.Strategy.OrderBookDepth > 1000 {
		return fmt.Errorf("strategy.order_book_depth must be between 1 and 1000")
	}
	if c.Strategy.DepthParticipation <= 0 || c.Strategy.DepthParticipation > 1 {
		return fmt.Errorf("strategy.depth_participation must be in (0, 1]")
	}

	// Validate Exchange config
	if c.Exchange.APIURL == "" {
		return fmt.Errorf("exchange.api_url is required")
	}
	if c.Exchange.OrderURL == "" && !c.Strategy.DryRun {
		return fmt.Errorf("exchange.order_url is required unless strategy.dry_run is set")
	}
	if c.Exchange.Timeout <= 0 {
		return fmt.Errorf("exchange.timeout must be positive")
	}
	if c.Exchange.MaxRetries < 1 {
		return fmt.Errorf("exchange.max_retries must be at least 1")
	}
	if c.Exchange.RateLimit <= 0 {
		return fmt.Errorf("exchange.rate_limit must be positive")
	}

	if c.Scheduler.Interval < 10*time.Second {
		return fmt.Errorf("scheduler.interval must be at least 10 seconds")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.MaxDecisions < 1 {
		return fmt.Errorf("storage.max_decisions must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// EngineConfig returns the immutable engine configuration
func (c *Config) EngineConfig() strategy.Config {
	return strategy.Config{
		Account:               c.Account,
		Symbol:                c.Strategy.Symbol,
		RiskFactor:            decimal.NewFromFloat(c.Strategy.RiskFactor),
		HistoricalDataCount:   c.Strategy.HistoricalDataCount,
		MinimumVolumeFraction: decimal.NewFromFloat(c.Strategy.MinimumTradingVolumePercentage),
		MaximumVolatility:     decimal.NewFromFloat(c.Strategy.MaximumVolatility),
		OrderBookDepth:        c.Strategy.OrderBookDepth,
		DepthParticipation:    decimal.NewFromFloat(c.Strategy.DepthParticipation),
	}
}
