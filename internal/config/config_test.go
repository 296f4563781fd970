package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const validConfig = `
account: trader1

strategy:
  symbol: XPR_XMD
  risk_factor: 0.05
  historical_data_count: 24
  minimum_trading_volume_percentage: 0.8
  maximum_volatility: 0.1

exchange:
  api_url: "https://dex.example.com"
  order_url: "http://localhost:8787/orders"

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

storage:
  db_path: "./data/test.db"

logging:
  level: "info"
  format: "json"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Account != "trader1" {
		t.Errorf("Unexpected account: %q", cfg.Account)
	}
	if cfg.Strategy.Symbol != "XPR_XMD" {
		t.Errorf("Unexpected symbol: %q", cfg.Strategy.Symbol)
	}
	if cfg.Strategy.RiskFactor != 0.05 {
		t.Errorf("Unexpected risk factor: %f", cfg.Strategy.RiskFactor)
	}
	if cfg.Strategy.HistoricalDataCount != 24 {
		t.Errorf("Unexpected historical data count: %d", cfg.Strategy.HistoricalDataCount)
	}

	// defaults
	if cfg.Strategy.OrderBookDepth != 100 {
		t.Errorf("Unexpected order book depth: %d", cfg.Strategy.OrderBookDepth)
	}
	if cfg.Strategy.DepthParticipation != 0.1 {
		t.Errorf("Unexpected depth participation: %f", cfg.Strategy.DepthParticipation)
	}
	if cfg.Scheduler.Interval != 5*time.Minute {
		t.Errorf("Unexpected interval: %v", cfg.Scheduler.Interval)
	}
	if cfg.Exchange.Timeout != 30*time.Second {
		t.Errorf("Unexpected timeout: %v", cfg.Exchange.Timeout)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	ec := cfg.EngineConfig()
	if ec.Symbol != "XPR_XMD" || ec.Account != "trader1" {
		t.Errorf("Unexpected engine config: %+v", ec)
	}
	if ec.MaximumVolatility.String() != "0.1" {
		t.Errorf("Unexpected maximum volatility: %s", ec.MaximumVolatility)
	}
}

func TestLoad_MissingRequiredKey(t *testing.T) {
	content := strings.Replace(validConfig, "  risk_factor: 0.05\n", "", 1)
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Expected error for missing risk_factor")
	}
	if !strings.Contains(err.Error(), "strategy.risk_factor") {
		t.Errorf("Error should name the missing key: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DEXRISK_STRATEGY_SYMBOL", "XBTC_XMD")
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Strategy.Symbol != "XBTC_XMD" {
		t.Errorf("Expected env override, got %q", cfg.Strategy.Symbol)
	}
}

func TestLoad_OrderURLHasNoDefault(t *testing.T) {
	content := strings.Replace(validConfig, "  order_url: \"http://localhost:8787/orders\"\n", "", 1)
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Exchange.OrderURL != "" {
		t.Fatalf("Expected empty order url, got %q", cfg.Exchange.OrderURL)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "exchange.order_url") {
		t.Errorf("Expected order_url validation error, got %v", err)
	}

	cfg.Strategy.DryRun = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("Dry run should not need an order url: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func validStruct() *Config {
	return &Config{
		Account: "trader1",
		Strategy: StrategyConfig{
			Symbol:                         "XPR_XMD",
			RiskFactor:                     0.05,
			HistoricalDataCount:            24,
			MinimumTradingVolumePercentage: 0.8,
			MaximumVolatility:              0.1,
			OrderBookDepth:                 100,
			DepthParticipation:             0.1,
		},
		Exchange: ExchangeConfig{
			APIURL:     "https://dex.example.com",
			OrderURL:   "http://localhost:8787/orders",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RateLimit:  5,
		},
		Scheduler: SchedulerConfig{Interval: time.Minute},
		Storage:   StorageConfig{MaxDecisions: 100},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing account", func(c *Config) { c.Account = "" }, true},
		{"bad symbol", func(c *Config) { c.Strategy.Symbol = "XPRXMD" }, true},
		{"zero risk factor", func(c *Config) { c.Strategy.RiskFactor = 0 }, true},
		{"history too short", func(c *Config) { c.Strategy.HistoricalDataCount = 1 }, true},
		{"negative volume fraction", func(c *Config) { c.Strategy.MinimumTradingVolumePercentage = -1 }, true},
		{"zero max volatility", func(c *Config) { c.Strategy.MaximumVolatility = 0 }, true},
		{"participation above one", func(c *Config) { c.Strategy.DepthParticipation = 1.5 }, true},
		{"missing order url", func(c *Config) { c.Exchange.OrderURL = "" }, true},
		{"missing order url in dry run", func(c *Config) {
			c.Exchange.OrderURL = ""
			c.Strategy.DryRun = true
		}, false},
		{"interval too short", func(c *Config) { c.Scheduler.Interval = time.Second }, true},
		{"missing telegram token when enabled", func(c *Config) {
			c.Telegram = TelegramConfig{Enabled: true, ChatID: "1"}
		}, true},
		{"invalid log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validStruct()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
