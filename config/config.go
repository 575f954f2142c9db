// Package config loads and validates the trading pipeline configuration
// from YAML, JSON, or TOML files.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete pipeline configuration.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account" toml:"account"`
	Assets   []AssetConfig  `json:"assets" yaml:"assets" toml:"assets"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy" toml:"strategy"`
	Risk     RiskConfig     `json:"risk" yaml:"risk" toml:"risk"`
	Broker   BrokerConfig   `json:"broker" yaml:"broker" toml:"broker"`
	Engine   EngineConfig   `json:"engine" yaml:"engine" toml:"engine"`
	Journal  JournalConfig  `json:"journal" yaml:"journal" toml:"journal"`
}

// AccountConfig contains account initialization parameters.
type AccountConfig struct {
	ID       string  `json:"id" yaml:"id" toml:"id"`
	Currency string  `json:"currency" yaml:"currency" toml:"currency"`
	Cash     float64 `json:"cash" yaml:"cash" toml:"cash"`
}

// AssetConfig names one symbol/timeframe pair to trade.
type AssetConfig struct {
	Symbol    string `json:"symbol" yaml:"symbol" toml:"symbol"`
	Timeframe string `json:"timeframe" yaml:"timeframe" toml:"timeframe"`
}

// StrategyConfig selects a registered strategy and its parameters.
type StrategyConfig struct {
	Name      string  `json:"name" yaml:"name" toml:"name"`
	Fast      int     `json:"fast,omitempty" yaml:"fast,omitempty" toml:"fast,omitempty"`
	Slow      int     `json:"slow,omitempty" yaml:"slow,omitempty" toml:"slow,omitempty"`
	RSIPeriod int     `json:"rsi_period,omitempty" yaml:"rsi_period,omitempty" toml:"rsi_period,omitempty"`
	ATRPeriod int     `json:"atr_period,omitempty" yaml:"atr_period,omitempty" toml:"atr_period,omitempty"`
	ATRMult   float64 `json:"atr_mult,omitempty" yaml:"atr_mult,omitempty" toml:"atr_mult,omitempty"`
	Lookback  int     `json:"lookback,omitempty" yaml:"lookback,omitempty" toml:"lookback,omitempty"`
}

// RiskConfig contains the sizer and the hard limits.
type RiskConfig struct {
	RiskFraction        float64 `json:"risk_fraction" yaml:"risk_fraction" toml:"risk_fraction"`
	MinStrength         float64 `json:"min_strength,omitempty" yaml:"min_strength,omitempty" toml:"min_strength,omitempty"`
	MinQuantity         float64 `json:"min_quantity,omitempty" yaml:"min_quantity,omitempty" toml:"min_quantity,omitempty"`
	MaxPositionNotional float64 `json:"max_position_notional" yaml:"max_position_notional" toml:"max_position_notional"`
	MaxGrossExposure    float64 `json:"max_gross_exposure" yaml:"max_gross_exposure" toml:"max_gross_exposure"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct,omitempty" yaml:"max_drawdown_pct,omitempty" toml:"max_drawdown_pct,omitempty"`
	MaxOrdersPerCycle   int     `json:"max_orders_per_cycle,omitempty" yaml:"max_orders_per_cycle,omitempty" toml:"max_orders_per_cycle,omitempty"`
	AllowShort          bool    `json:"allow_short,omitempty" yaml:"allow_short,omitempty" toml:"allow_short,omitempty"`
	AllowReduce         bool    `json:"allow_reduce,omitempty" yaml:"allow_reduce,omitempty" toml:"allow_reduce,omitempty"`
}

// BrokerConfig contains execution model parameters.
type BrokerConfig struct {
	TakerFeeRate   float64 `json:"taker_fee_rate" yaml:"taker_fee_rate" toml:"taker_fee_rate"`
	MakerFeeRate   float64 `json:"maker_fee_rate,omitempty" yaml:"maker_fee_rate,omitempty" toml:"maker_fee_rate,omitempty"`
	SlippageBps    float64 `json:"slippage_bps,omitempty" yaml:"slippage_bps,omitempty" toml:"slippage_bps,omitempty"`
	ImpactBps      float64 `json:"impact_bps,omitempty" yaml:"impact_bps,omitempty" toml:"impact_bps,omitempty"`
	JitterBps      float64 `json:"jitter_bps,omitempty" yaml:"jitter_bps,omitempty" toml:"jitter_bps,omitempty"`
	LatencyMs      int     `json:"latency_ms,omitempty" yaml:"latency_ms,omitempty" toml:"latency_ms,omitempty"`
	LatencyJitter  int     `json:"latency_jitter_ms,omitempty" yaml:"latency_jitter_ms,omitempty" toml:"latency_jitter_ms,omitempty"`
	Seed           int64   `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty"`
	AllowShort     bool    `json:"allow_short,omitempty" yaml:"allow_short,omitempty" toml:"allow_short,omitempty"`
}

// EngineConfig contains loop parameters.
type EngineConfig struct {
	Mode       string `json:"mode" yaml:"mode" toml:"mode"` // "paper", "backtest" or "live"
	Iterations int    `json:"iterations" yaml:"iterations" toml:"iterations"`
	Sleep      string `json:"sleep,omitempty" yaml:"sleep,omitempty" toml:"sleep,omitempty"` // e.g. "5s", "1m"
}

// ParseSleep converts the sleep string to a time.Duration.
func (e EngineConfig) ParseSleep() (time.Duration, error) {
	if e.Sleep == "" {
		return 0, nil
	}
	return time.ParseDuration(e.Sleep)
}

// JournalConfig contains journaling parameters.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type" toml:"type"` // "memory", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty" toml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty" toml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty" toml:"db_path,omitempty"`
}

// LoadFromFile loads configuration from a file, picking the parser by
// extension: .toml uses TOML, .yaml/.yml uses YAML, .json uses JSON, and
// anything else tries YAML then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	switch filepath.Ext(path) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse TOML config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse JSON config: %w", err)
		}
	default:
		if yamlErr := yaml.Unmarshal(data, cfg); yamlErr != nil {
			if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
				return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", yamlErr)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file, picking the encoder by
// extension the same way LoadFromFile picks the parser.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".toml":
		var buf bytes.Buffer
		if err = toml.NewEncoder(&buf).Encode(c); err == nil {
			data = buf.Bytes()
		}
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Cash <= 0 {
		return fmt.Errorf("account.cash must be positive")
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("at least one asset is required")
	}
	seen := make(map[string]bool, len(c.Assets))
	for i, a := range c.Assets {
		if a.Symbol == "" {
			return fmt.Errorf("assets[%d].symbol is required", i)
		}
		if a.Timeframe == "" {
			return fmt.Errorf("assets[%d].timeframe is required", i)
		}
		if seen[a.Symbol] {
			return fmt.Errorf("duplicate asset symbol %s", a.Symbol)
		}
		seen[a.Symbol] = true
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if c.Risk.RiskFraction <= 0 || c.Risk.RiskFraction > 1 {
		return fmt.Errorf("risk.risk_fraction must be between 0 and 1")
	}
	if c.Risk.MaxPositionNotional < 0 || c.Risk.MaxGrossExposure < 0 {
		return fmt.Errorf("risk limits must not be negative")
	}
	if c.Risk.MaxDrawdownPct < 0 || c.Risk.MaxDrawdownPct >= 1 {
		return fmt.Errorf("risk.max_drawdown_pct must be in [0, 1)")
	}
	if c.Broker.TakerFeeRate < 0 || c.Broker.SlippageBps < 0 {
		return fmt.Errorf("broker fee and slippage rates must not be negative")
	}
	switch c.Engine.Mode {
	case "paper", "backtest", "live":
	default:
		return fmt.Errorf("engine.mode must be 'paper', 'backtest' or 'live'")
	}
	if c.Engine.Iterations < 0 {
		return fmt.Errorf("engine.iterations must not be negative")
	}
	if _, err := c.Engine.ParseSleep(); err != nil {
		return fmt.Errorf("engine.sleep: %w", err)
	}
	switch c.Journal.Type {
	case "memory":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'memory', 'csv' or 'sqlite'")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:       "PAPER-001",
			Currency: "USD",
			Cash:     10000,
		},
		Assets: []AssetConfig{
			{Symbol: "BTC-USD", Timeframe: "1h"},
		},
		Strategy: StrategyConfig{
			Name:      "ema-cross",
			Fast:      20,
			Slow:      50,
			RSIPeriod: 14,
			ATRPeriod: 14,
			ATRMult:   1.5,
		},
		Risk: RiskConfig{
			RiskFraction:        0.1,
			MinStrength:         0.1,
			MinQuantity:         1,
			MaxPositionNotional: 5000,
			MaxGrossExposure:    8000,
			MaxDrawdownPct:      0.25,
			MaxOrdersPerCycle:   4,
			AllowReduce:         true,
		},
		Broker: BrokerConfig{
			TakerFeeRate: 0.001,
			SlippageBps:  2,
			LatencyMs:    50,
		},
		Engine: EngineConfig{
			Mode:       "paper",
			Iterations: 100,
			Sleep:      "5s",
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./trades.csv",
			EquityFile: "./equity.csv",
		},
	}
}

// LiveEnv holds venue credentials loaded from the environment. Values
// never appear in config files; a .env file is loaded if present.
type LiveEnv struct {
	APIKey    string
	APISecret string
}

// LoadLiveEnv reads PAPERTRADER_API_KEY and PAPERTRADER_API_SECRET,
// loading a .env file from the working directory first when one exists.
func LoadLiveEnv() (LiveEnv, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return LiveEnv{}, fmt.Errorf("load .env: %w", err)
		}
	}
	env := LiveEnv{
		APIKey:    os.Getenv("PAPERTRADER_API_KEY"),
		APISecret: os.Getenv("PAPERTRADER_API_SECRET"),
	}
	if env.APIKey == "" || env.APISecret == "" {
		return LiveEnv{}, fmt.Errorf("PAPERTRADER_API_KEY and PAPERTRADER_API_SECRET must be set for live mode")
	}
	return env, nil
}
