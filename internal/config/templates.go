package config

import (
	"os"
	"path/filepath"
)

const configTemplate = `# riskgate configuration

[logging]
level = "info"
console = true
file = true

[calendar]
timezone = "America/New_York"
open = "09:30"
close = "16:00"
# holidays = ["2026-01-01", "2026-07-03"]

[guard]
enabled = true
cooldown_minutes = 5

[selector]
underlyings = ["SPY", "QQQ"]
no_new_positions_after = "15:30"
prefer_0dte_before = "14:30"
max_bid_ask_spread = 0.25

[exposure]
max_contracts_per_trade = 5
max_contracts_per_day = 20
max_abs_net_delta = 100.0
max_abs_net_gamma = 10.0
max_abs_net_gamma_0dte = 5.0
cutoff_after = "15:30"
risk_off_tightening = 0.8
macro_event_widening = 1.25

[limits]
# Every rule here is optional; omit a key to disable its rule.
# max_daily_loss = 1000.0
# max_order_notional = 25000.0
# max_trades_per_day = 10
# max_per_symbol_exposure_usd = 50000.0
# max_contracts_per_symbol = 10
# max_gamma_exposure_abs = 5.0

[capital]
tenant = "default"
account = "primary"

[gate]
max_drawdown_pct = 10.0
strategy_daily_loss_halt = 0.0
strategy = "default"
`

// writeTemplate writes a commented default config file so a first run
// leaves something editable behind.
func writeTemplate(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(configTemplate), 0644)
}
