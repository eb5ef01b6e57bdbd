// Package exposure evaluates options intents against greek and
// contract-count limits.
package exposure

import (
	"fmt"
	"math"
	"time"

	"riskgate/internal/models"
	"riskgate/pkg/utils"
)

// Limits holds the caps applied to a single evaluation.
type Limits struct {
	MaxContractsPerTrade int
	MaxContractsPerDay   int
	MaxAbsNetDelta       float64
	MaxAbsNetGamma       float64
	MaxAbsNetGamma0DTE   float64
}

// Config configures the evaluator's time rules and regime calibration.
type Config struct {
	// CutoffAfter is the local time after which risk-increasing trades
	// are denied, "HH:MM".
	CutoffAfter string
	// TighteningFactor multiplies the delta/gamma caps when the regime
	// hint calls for tightening.
	TighteningFactor float64
}

// Evaluator applies the exposure rules. It is a pure function of its
// inputs; the caller supplies now for reproducibility. Safe for
// concurrent use.
type Evaluator struct {
	loc          *time.Location
	cutoffMinute int
	tightening   float64
}

// New creates an Evaluator.
func New(cfg Config, loc *time.Location) (*Evaluator, error) {
	cutoff, err := utils.ParseClock(cfg.CutoffAfter)
	if err != nil {
		return nil, fmt.Errorf("cutoff_after: %w", err)
	}
	tightening := cfg.TighteningFactor
	if tightening <= 0 || tightening > 1 {
		tightening = 1.0
	}
	return &Evaluator{loc: loc, cutoffMinute: cutoff, tightening: tightening}, nil
}

// cloneMetrics copies the metric map so each rule's audit record is a
// stable snapshot; caps computed by later rules never leak into earlier
// results.
func cloneMetrics(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Evaluate runs the exposure rules in a fixed order and returns on the
// first failing rule. Every computed metric is attached to the decision
// for audit regardless of the outcome.
func (e *Evaluator) Evaluate(intent models.OrderIntent, book models.ExposureSnapshot, regime *models.RegimeHint, limits Limits, now time.Time) models.RiskDecision {
	decision := models.NewAllowedDecision()
	local := now.In(e.loc)

	factor := 1.0
	if regime.Tightens() {
		factor = e.tightening
	}

	sign := intent.Side.Sign()
	mult := intent.Multiplier()
	contracts := intent.Quantity

	metrics := map[string]float64{
		"trade_contracts":        float64(contracts),
		"contracts_traded_today": float64(book.ContractsTradedToday),
		"net_delta_before":       book.NetDelta,
		"net_gamma_before":       book.NetGamma,
		"tightening_factor":      factor,
		"side_sign":              sign,
		"multiplier":             mult,
	}

	var deltaContrib, netDeltaAfter float64
	if intent.Delta != nil {
		deltaContrib = *intent.Delta * mult * float64(contracts) * sign
		netDeltaAfter = book.NetDelta + deltaContrib
		metrics["delta_contrib"] = deltaContrib
		metrics["net_delta_after"] = netDeltaAfter
	}
	var gammaContrib, netGammaAfter float64
	if intent.Gamma != nil {
		gammaContrib = *intent.Gamma * mult * float64(contracts) * sign
		netGammaAfter = book.NetGamma + gammaContrib
		metrics["gamma_contrib"] = gammaContrib
		metrics["net_gamma_after"] = netGammaAfter
	}

	is0DTE := intent.Expiry != nil && utils.SameDate(*intent.Expiry, local, e.loc)
	if is0DTE {
		metrics["dte"] = 0
	} else if intent.Expiry != nil {
		metrics["dte"] = utils.DateOf(*intent.Expiry, e.loc).Sub(utils.DateOf(local, e.loc)).Hours() / 24
	}

	// Rule 1: contracts per trade.
	if contracts > limits.MaxContractsPerTrade {
		decision.Deny("max_contracts_per_trade", models.ReasonMaxContractsPerTrade,
			fmt.Sprintf("%d contracts exceeds per-trade limit %d", contracts, limits.MaxContractsPerTrade), cloneMetrics(metrics))
		return decision
	}
	decision.Pass("max_contracts_per_trade", cloneMetrics(metrics))

	// Rule 2: contracts per day.
	if book.ContractsTradedToday+contracts > limits.MaxContractsPerDay {
		decision.Deny("max_contracts_per_day", models.ReasonMaxContractsPerDay,
			fmt.Sprintf("%d contracts today plus %d exceeds daily limit %d",
				book.ContractsTradedToday, contracts, limits.MaxContractsPerDay), cloneMetrics(metrics))
		return decision
	}
	decision.Pass("max_contracts_per_day", cloneMetrics(metrics))

	// Rule 3: time-of-day cutoff. After the cutoff only risk-reducing
	// trades pass; missing greeks on a non-closing trade deny, never
	// default to allow.
	if utils.MinuteOfDay(local) >= e.cutoffMinute {
		switch {
		case intent.Delta == nil && intent.Gamma == nil && !intent.IsClosing():
			decision.Deny("time_of_day_cutoff", models.ReasonTimeOfDayCutoff,
				"after cutoff with no greeks and not a closing trade", cloneMetrics(metrics))
			return decision
		case intent.Delta != nil && math.Abs(netDeltaAfter) > math.Abs(book.NetDelta):
			decision.Deny("time_of_day_cutoff", models.ReasonTimeOfDayCutoff,
				"after cutoff and trade increases absolute net delta", cloneMetrics(metrics))
			return decision
		case intent.Gamma != nil && math.Abs(netGammaAfter) > math.Abs(book.NetGamma):
			decision.Deny("time_of_day_cutoff", models.ReasonTimeOfDayCutoff,
				"after cutoff and trade increases absolute net gamma", cloneMetrics(metrics))
			return decision
		}
	}
	decision.Pass("time_of_day_cutoff", cloneMetrics(metrics))

	// Rule 4: net delta cap.
	if intent.Delta != nil {
		capDelta := limits.MaxAbsNetDelta * factor
		metrics["delta_cap"] = capDelta
		if math.Abs(netDeltaAfter) > capDelta {
			decision.Deny("max_net_delta", models.ReasonMaxNetDelta,
				fmt.Sprintf("|net delta after| %.2f exceeds cap %.2f", math.Abs(netDeltaAfter), capDelta), cloneMetrics(metrics))
			return decision
		}
	}
	decision.Pass("max_net_delta", cloneMetrics(metrics))

	// Rule 5: net gamma cap, with the tighter 0DTE cap when the contract
	// expires on the snapshot-local calendar date.
	if intent.Gamma != nil {
		base := limits.MaxAbsNetGamma
		if is0DTE {
			base = limits.MaxAbsNetGamma0DTE
		}
		capGamma := base * factor
		metrics["gamma_cap"] = capGamma
		if math.Abs(netGammaAfter) > capGamma {
			decision.Deny("max_net_gamma", models.ReasonMaxNetGamma,
				fmt.Sprintf("|net gamma after| %.4f exceeds cap %.4f", math.Abs(netGammaAfter), capGamma), cloneMetrics(metrics))
			return decision
		}
	}
	decision.Pass("max_net_gamma", cloneMetrics(metrics))

	return decision
}
