// Package limits provides the generic numeric risk-limit evaluator.
package limits

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"riskgate/internal/models"
)

// Evaluator checks a trade against toggleable numeric limits. Unlike the
// options exposure path it aggregates every failing rule so operators
// see the full picture in one decision. Pure and safe for concurrent use.
type Evaluator struct {
	logger zerolog.Logger
}

// New creates an Evaluator. Denials are logged through logger exactly
// once per evaluation.
func New(logger zerolog.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Evaluate runs the structural checks and every enabled rule. Expected
// business conditions never raise; an enabled rule whose telemetry is
// missing denies with its *_missing code rather than silently skipping.
func (e *Evaluator) Evaluate(trade models.OrderIntent, account models.AccountState, riskLimits models.RiskLimits) models.RiskDecision {
	decision := models.NewAllowedDecision()
	lim := riskLimits.Normalized()

	e.structural(&decision, trade)

	// Max daily loss.
	if lim.MaxDailyLoss != nil {
		if account.DailyPnL == nil {
			decision.Deny("max_daily_loss", models.ReasonDailyPnLMissing,
				"max_daily_loss enabled but daily_pnl unavailable", nil)
		} else {
			loss := math.Max(0, -*account.DailyPnL)
			meta := map[string]float64{"daily_loss": loss, "limit": *lim.MaxDailyLoss}
			if loss > *lim.MaxDailyLoss {
				decision.Deny("max_daily_loss", models.ReasonMaxDailyLossExceeded,
					fmt.Sprintf("daily loss %.2f exceeds limit %.2f", loss, *lim.MaxDailyLoss), meta)
			} else {
				decision.Pass("max_daily_loss", meta)
			}
		}
	}

	// Max order notional.
	if lim.MaxOrderNotional != nil {
		meta := map[string]float64{"notional": trade.Notional, "limit": *lim.MaxOrderNotional}
		if trade.Notional > *lim.MaxOrderNotional {
			decision.Deny("max_order_notional", models.ReasonMaxOrderNotionalExceeded,
				fmt.Sprintf("notional %.2f exceeds limit %.2f", trade.Notional, *lim.MaxOrderNotional), meta)
		} else {
			decision.Pass("max_order_notional", meta)
		}
	}

	// Max trades per day, counting this trade.
	if lim.MaxTradesPerDay != nil {
		if account.TradesToday == nil {
			decision.Deny("max_trades_per_day", models.ReasonTradesTodayMissing,
				"max_trades_per_day enabled but trades_today unavailable", nil)
		} else {
			meta := map[string]float64{"trades_today": float64(*account.TradesToday), "limit": float64(*lim.MaxTradesPerDay)}
			if *account.TradesToday+1 > *lim.MaxTradesPerDay {
				decision.Deny("max_trades_per_day", models.ReasonMaxTradesPerDayExceeded,
					fmt.Sprintf("trade %d would exceed daily limit %d", *account.TradesToday+1, *lim.MaxTradesPerDay), meta)
			} else {
				decision.Pass("max_trades_per_day", meta)
			}
		}
	}

	// Max per-symbol exposure in USD, on the signed projected position.
	if lim.MaxPerSymbolExposureUSD != nil {
		if account.CurrentPositionQty == nil {
			decision.Deny("max_per_symbol_exposure_usd", models.ReasonCurrentPositionQtyMissing,
				"max_per_symbol_exposure_usd enabled but current_position_qty unavailable", nil)
		} else {
			projected := project(*account.CurrentPositionQty, trade)
			exposureUSD := math.Abs(projected) * trade.Price
			meta := map[string]float64{
				"current_qty":   *account.CurrentPositionQty,
				"projected_qty": projected,
				"exposure_usd":  exposureUSD,
				"limit":         *lim.MaxPerSymbolExposureUSD,
			}
			increasing := math.Abs(projected) > math.Abs(*account.CurrentPositionQty)
			if increasing && exposureUSD > *lim.MaxPerSymbolExposureUSD {
				decision.Deny("max_per_symbol_exposure_usd", models.ReasonMaxPerSymbolExposureExceeded,
					fmt.Sprintf("projected exposure %.2f exceeds limit %.2f", exposureUSD, *lim.MaxPerSymbolExposureUSD), meta)
			} else {
				decision.Pass("max_per_symbol_exposure_usd", meta)
			}
		}
	}

	// Max contracts per symbol, same signed projection at contract level.
	if lim.MaxContractsPerSymbol != nil && trade.AssetClass == models.AssetOption {
		if account.CurrentContractQty == nil {
			decision.Deny("max_contracts_per_symbol", models.ReasonCurrentContractQtyMissing,
				"max_contracts_per_symbol enabled but current_contract_qty unavailable", nil)
		} else {
			projected := project(*account.CurrentContractQty, trade)
			meta := map[string]float64{
				"current_contracts":   *account.CurrentContractQty,
				"projected_contracts": projected,
				"limit":               *lim.MaxContractsPerSymbol,
			}
			increasing := math.Abs(projected) > math.Abs(*account.CurrentContractQty)
			if increasing && math.Abs(projected) > *lim.MaxContractsPerSymbol {
				decision.Deny("max_contracts_per_symbol", models.ReasonMaxContractsPerSymbolExceeded,
					fmt.Sprintf("projected %d contracts exceeds limit %.0f", int(math.Abs(projected)), *lim.MaxContractsPerSymbol), meta)
			} else {
				decision.Pass("max_contracts_per_symbol", meta)
			}
		}
	}

	// Max incremental gamma exposure per order. Fails closed when gamma
	// is absent while the rule is enabled.
	if lim.MaxGammaExposureAbs != nil {
		if trade.Gamma == nil {
			decision.Deny("max_gamma_exposure", models.ReasonGammaMissing,
				"max_gamma_exposure_abs enabled but gamma unavailable", nil)
		} else {
			signedQty := float64(trade.Quantity) * trade.Side.Sign()
			incremental := *trade.Gamma * signedQty * trade.Multiplier()
			meta := map[string]float64{"incremental_gamma": incremental, "limit": *lim.MaxGammaExposureAbs}
			if math.Abs(incremental) > *lim.MaxGammaExposureAbs {
				decision.Deny("max_gamma_exposure", models.ReasonMaxGammaExposureExceeded,
					fmt.Sprintf("|incremental gamma| %.4f exceeds limit %.4f", math.Abs(incremental), *lim.MaxGammaExposureAbs), meta)
			} else {
				decision.Pass("max_gamma_exposure", meta)
			}
		}
	}

	if !decision.Allowed {
		e.logDenial(trade, decision, lim)
	}

	return decision
}

// structural applies the always-on validity checks.
func (e *Evaluator) structural(decision *models.RiskDecision, trade models.OrderIntent) {
	if strings.TrimSpace(trade.Symbol) == "" {
		decision.Deny("structural", models.ReasonInvalidSymbol, "symbol is blank", nil)
	}
	if !trade.Side.Valid() {
		decision.Deny("structural", models.ReasonInvalidSide,
			fmt.Sprintf("side %q is not buy or sell", trade.Side), nil)
	}
	if trade.Quantity <= 0 {
		decision.Deny("structural", models.ReasonInvalidQuantity, "quantity must be positive", nil)
	}
	if trade.Price <= 0 {
		decision.Deny("structural", models.ReasonInvalidPrice, "price must be positive", nil)
	}
	if trade.Notional <= 0 {
		decision.Deny("structural", models.ReasonInvalidNotional, "notional must be positive", nil)
	}
	if decision.Allowed {
		decision.Pass("structural", nil)
	}
}

// project applies the trade to a signed position quantity.
func project(current float64, trade models.OrderIntent) float64 {
	if trade.Side == models.SideBuy {
		return current + float64(trade.Quantity)
	}
	return current - float64(trade.Quantity)
}

// logDenial emits the single synchronous audit line for a denial.
func (e *Evaluator) logDenial(trade models.OrderIntent, decision models.RiskDecision, lim models.RiskLimits) {
	evt := e.logger.Warn().
		Str("event", "limit_denial").
		Str("symbol", trade.Symbol).
		Str("side", string(trade.Side)).
		Int("quantity", trade.Quantity).
		Float64("price", trade.Price).
		Float64("notional", trade.Notional).
		Strs("reject_reason_codes", decision.ReasonCodes)
	if lim.MaxDailyLoss != nil {
		evt = evt.Float64("max_daily_loss", *lim.MaxDailyLoss)
	}
	if lim.MaxOrderNotional != nil {
		evt = evt.Float64("max_order_notional", *lim.MaxOrderNotional)
	}
	if lim.MaxTradesPerDay != nil {
		evt = evt.Int("max_trades_per_day", *lim.MaxTradesPerDay)
	}
	if lim.MaxPerSymbolExposureUSD != nil {
		evt = evt.Float64("max_per_symbol_exposure_usd", *lim.MaxPerSymbolExposureUSD)
	}
	if lim.MaxContractsPerSymbol != nil {
		evt = evt.Float64("max_contracts_per_symbol", *lim.MaxContractsPerSymbol)
	}
	if lim.MaxGammaExposureAbs != nil {
		evt = evt.Float64("max_gamma_exposure_abs", *lim.MaxGammaExposureAbs)
	}
	evt.Msg("Trade denied by limits")
}
