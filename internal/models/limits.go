package models

// RiskLimits holds the toggleable numeric thresholds for the generic
// limit evaluator. A nil field disables its rule entirely.
type RiskLimits struct {
	MaxDailyLoss            *float64 `json:"max_daily_loss,omitempty" mapstructure:"max_daily_loss"`
	MaxOrderNotional        *float64 `json:"max_order_notional,omitempty" mapstructure:"max_order_notional"`
	MaxTradesPerDay         *int     `json:"max_trades_per_day,omitempty" mapstructure:"max_trades_per_day"`
	MaxPerSymbolExposureUSD *float64 `json:"max_per_symbol_exposure_usd,omitempty" mapstructure:"max_per_symbol_exposure_usd"`
	MaxContractsPerSymbol   *float64 `json:"max_contracts_per_symbol,omitempty" mapstructure:"max_contracts_per_symbol"`
	MaxGammaExposureAbs     *float64 `json:"max_gamma_exposure_abs,omitempty" mapstructure:"max_gamma_exposure_abs"`
}

// Normalized returns a copy with negative thresholds clamped to zero,
// each rule's neutral floor. The receiver is never mutated.
func (l RiskLimits) Normalized() RiskLimits {
	out := RiskLimits{}
	out.MaxDailyLoss = clampFloat(l.MaxDailyLoss)
	out.MaxOrderNotional = clampFloat(l.MaxOrderNotional)
	out.MaxTradesPerDay = clampInt(l.MaxTradesPerDay)
	out.MaxPerSymbolExposureUSD = clampFloat(l.MaxPerSymbolExposureUSD)
	out.MaxContractsPerSymbol = clampFloat(l.MaxContractsPerSymbol)
	out.MaxGammaExposureAbs = clampFloat(l.MaxGammaExposureAbs)
	return out
}

func clampFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	if c < 0 {
		c = 0
	}
	return &c
}

func clampInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	if c < 0 {
		c = 0
	}
	return &c
}

// AccountState is the caller-supplied telemetry the limit evaluator
// checks against. A nil field means that telemetry is unavailable; an
// enabled rule that needs it denies rather than silently skipping.
type AccountState struct {
	DailyPnL           *float64 `json:"daily_pnl,omitempty"`
	TradesToday        *int     `json:"trades_today,omitempty"`
	CurrentPositionQty *float64 `json:"current_position_qty,omitempty"`
	CurrentContractQty *float64 `json:"current_contract_qty,omitempty"`
}
