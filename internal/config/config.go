// Package config provides configuration management for the risk gate.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	riskerr "riskgate/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Guard    GuardConfig    `mapstructure:"guard"`
	Selector SelectorConfig `mapstructure:"selector"`
	Exposure ExposureConfig `mapstructure:"exposure"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Capital  CapitalConfig  `mapstructure:"capital"`
	Gate     GateConfig     `mapstructure:"gate"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// CalendarConfig holds session calendar configuration.
type CalendarConfig struct {
	Timezone string   `mapstructure:"timezone"`
	Open     string   `mapstructure:"open"`  // "09:30"
	Close    string   `mapstructure:"close"` // "16:00"
	Holidays []string `mapstructure:"holidays"`
}

// GuardConfig holds the post-open cooldown guard configuration.
type GuardConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	CooldownMinutes int  `mapstructure:"cooldown_minutes"`
}

// SelectorConfig holds option contract selection configuration.
type SelectorConfig struct {
	Underlyings         []string `mapstructure:"underlyings"`
	NoNewPositionsAfter string   `mapstructure:"no_new_positions_after"`
	Prefer0DTEBefore    string   `mapstructure:"prefer_0dte_before"`
	MaxBidAskSpread     float64  `mapstructure:"max_bid_ask_spread"`
}

// ExposureConfig holds options exposure limits.
type ExposureConfig struct {
	MaxContractsPerTrade int     `mapstructure:"max_contracts_per_trade"`
	MaxContractsPerDay   int     `mapstructure:"max_contracts_per_day"`
	MaxAbsNetDelta       float64 `mapstructure:"max_abs_net_delta"`
	MaxAbsNetGamma       float64 `mapstructure:"max_abs_net_gamma"`
	MaxAbsNetGamma0DTE   float64 `mapstructure:"max_abs_net_gamma_0dte"`
	CutoffAfter          string  `mapstructure:"cutoff_after"`
	// Ad hoc calibration constants carried from the strategy layer;
	// kept configurable rather than hard-coded.
	RiskOffTightening  float64 `mapstructure:"risk_off_tightening"`
	MacroEventWidening float64 `mapstructure:"macro_event_widening"`
}

// LimitsConfig holds generic numeric risk limits. Omitted values leave
// the corresponding rule disabled.
type LimitsConfig struct {
	MaxDailyLoss            *float64 `mapstructure:"max_daily_loss"`
	MaxOrderNotional        *float64 `mapstructure:"max_order_notional"`
	MaxTradesPerDay         *int     `mapstructure:"max_trades_per_day"`
	MaxPerSymbolExposureUSD *float64 `mapstructure:"max_per_symbol_exposure_usd"`
	MaxContractsPerSymbol   *float64 `mapstructure:"max_contracts_per_symbol"`
	MaxGammaExposureAbs     *float64 `mapstructure:"max_gamma_exposure_abs"`
}

// CapitalConfig holds daily capital snapshot configuration.
type CapitalConfig struct {
	Tenant    string `mapstructure:"tenant"`
	Account   string `mapstructure:"account"`
	StorePath string `mapstructure:"store_path"`
}

// GateConfig holds orchestrator-level thresholds.
type GateConfig struct {
	MaxDrawdownPct        float64 `mapstructure:"max_drawdown_pct"`
	StrategyDailyLossHalt float64 `mapstructure:"strategy_daily_loss_halt"`
	Strategy              string  `mapstructure:"strategy"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/riskgate"
	}
	return filepath.Join(home, ".config", "riskgate")
}

// Load loads configuration from the specified directory. If configDir is
// empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		// Missing file: run on defaults, but leave a template behind.
		if err := writeTemplate(configDir); err != nil {
			return nil, fmt.Errorf("writing config template: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(DefaultConfigDir(), "logs", "riskgate.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("calendar.timezone", "America/New_York")
	v.SetDefault("calendar.open", "09:30")
	v.SetDefault("calendar.close", "16:00")

	v.SetDefault("guard.enabled", true)
	v.SetDefault("guard.cooldown_minutes", 5)

	v.SetDefault("selector.underlyings", []string{"SPY", "QQQ"})
	v.SetDefault("selector.no_new_positions_after", "15:30")
	v.SetDefault("selector.prefer_0dte_before", "14:30")
	v.SetDefault("selector.max_bid_ask_spread", 0.25)

	v.SetDefault("exposure.max_contracts_per_trade", 5)
	v.SetDefault("exposure.max_contracts_per_day", 20)
	v.SetDefault("exposure.max_abs_net_delta", 100.0)
	v.SetDefault("exposure.max_abs_net_gamma", 10.0)
	v.SetDefault("exposure.max_abs_net_gamma_0dte", 5.0)
	v.SetDefault("exposure.cutoff_after", "15:30")
	v.SetDefault("exposure.risk_off_tightening", 0.8)
	v.SetDefault("exposure.macro_event_widening", 1.25)

	v.SetDefault("capital.tenant", "default")
	v.SetDefault("capital.account", "primary")
	v.SetDefault("capital.store_path", filepath.Join(DefaultConfigDir(), "riskgate.db"))

	v.SetDefault("gate.max_drawdown_pct", 10.0)
	v.SetDefault("gate.strategy_daily_loss_halt", 0.0)
	v.SetDefault("gate.strategy", "default")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RISKGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RISKGATE_TENANT"); v != "" {
		cfg.Capital.Tenant = v
	}
	if v := os.Getenv("RISKGATE_ACCOUNT"); v != "" {
		cfg.Capital.Account = v
	}
	if v := os.Getenv("RISKGATE_STORE_PATH"); v != "" {
		cfg.Capital.StorePath = v
	}
}

// Validate checks the configuration for values that would make the gate
// unsafe to run.
func (c *Config) Validate() error {
	if c.Selector.MaxBidAskSpread < 0 {
		return fmt.Errorf("%w: selector.max_bid_ask_spread must be >= 0", riskerr.ErrConfigInvalid)
	}
	if c.Exposure.RiskOffTightening <= 0 || c.Exposure.RiskOffTightening > 1 {
		return fmt.Errorf("%w: exposure.risk_off_tightening must be in (0, 1]", riskerr.ErrConfigInvalid)
	}
	if c.Exposure.MacroEventWidening < 1 {
		return fmt.Errorf("%w: exposure.macro_event_widening must be >= 1", riskerr.ErrConfigInvalid)
	}
	if c.Gate.MaxDrawdownPct < 0 || c.Gate.MaxDrawdownPct > 100 {
		return fmt.Errorf("%w: gate.max_drawdown_pct must be in [0, 100]", riskerr.ErrConfigInvalid)
	}
	return nil
}
