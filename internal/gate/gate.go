// Package gate composes the guards, the selector, and the evaluators
// with system-wide kill switches into one audited admission decision.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"riskgate/internal/calendar"
	"riskgate/internal/capital"
	riskerr "riskgate/internal/errors"
	"riskgate/internal/exposure"
	"riskgate/internal/guard"
	"riskgate/internal/limits"
	"riskgate/internal/logging"
	"riskgate/internal/models"
	"riskgate/internal/selector"
	"riskgate/internal/shadow"
)

// shadowNamespace seeds the deterministic handoff id. Fixed so the same
// intent id always maps to the same shadow id.
var shadowNamespace = uuid.MustParse("5f2de1c3-9a77-4d5b-8f01-7b1f6f3f9d42")

// ControlState is one consistent read of the external kill switches.
type ControlState struct {
	TradingEnabled   bool
	Equity           float64
	HighWaterMark    float64
	StrategyDailyPnL float64
}

// ControlReader reads the external control plane. Reads may be
// eventually consistent; a failed read biases toward denial.
type ControlReader interface {
	Read(ctx context.Context) (ControlState, error)
}

// AccountSnapshot is the broker-side account read used to anchor the
// day's capital snapshot.
type AccountSnapshot struct {
	Equity      float64
	Cash        float64
	BuyingPower float64
	UpdatedAt   time.Time
}

// AccountReader reads the current account state for a tenant/account.
type AccountReader interface {
	Read(ctx context.Context, tenant, account string) (AccountSnapshot, error)
}

// Config holds orchestrator-level thresholds.
type Config struct {
	Tenant  string
	Account string
	// MaxDrawdownPct halts all trading once equity has fallen this far
	// from the high-water mark, in percent. Zero disables the breaker.
	MaxDrawdownPct float64
	// StrategyDailyLossHalt halts the strategy once its daily P&L is at
	// or below the negated threshold. Zero disables the halt.
	StrategyDailyLossHalt float64
	// MacroEventSpreadWidening scales the selector's spread guard when
	// the regime hint flags a macro event, since quotes legitimately
	// widen around scheduled releases. Must be >= 1; zero disables it.
	MacroEventSpreadWidening float64
}

// Request carries everything one evaluation needs. All reads are
// caller-supplied; the orchestrator performs no market data fetches.
type Request struct {
	Intent   models.OrderIntent
	Snapshot *models.MarketSnapshot // required for options needing resolution
	Book     models.ExposureSnapshot
	Account  models.AccountState
	Regime   *models.RegimeHint
	Limits   models.RiskLimits
	Caps     exposure.Limits
}

// Result pairs the decision with the resolution and handoff artifacts.
type Result struct {
	Decision models.RiskDecision
	Contract *models.ResolvedContract
	Record   *shadow.Record
}

// Orchestrator is the fixed-order admission state machine. The order is
// deliberate: cheap global checks run before per-symbol work, and the
// first failing step supplies the surfaced reason.
type Orchestrator struct {
	cal      calendar.SessionCalendar
	guard    *guard.MarketOpenGuard
	selector *selector.Selector
	exposure *exposure.Evaluator
	limits   *limits.Evaluator
	controls ControlReader
	accounts AccountReader
	capital  capital.Store
	executor shadow.Executor
	cfg      Config
	logger   zerolog.Logger
}

// New wires an Orchestrator.
func New(
	cal calendar.SessionCalendar,
	openGuard *guard.MarketOpenGuard,
	sel *selector.Selector,
	expo *exposure.Evaluator,
	lim *limits.Evaluator,
	controls ControlReader,
	accounts AccountReader,
	capStore capital.Store,
	executor shadow.Executor,
	cfg Config,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cal:      cal,
		guard:    openGuard,
		selector: sel,
		exposure: expo,
		limits:   lim,
		controls: controls,
		accounts: accounts,
		capital:  capStore,
		executor: executor,
		cfg:      cfg,
		logger:   logger,
	}
}

// Evaluate runs the gate. Business denials come back as a RiskDecision;
// integrity and store failures come back as a non-nil error the caller
// must treat as a halt, never as a deny.
func (o *Orchestrator) Evaluate(ctx context.Context, req Request) (Result, error) {
	intent := req.Intent
	decision := models.NewAllowedDecision()
	result := Result{}

	now := o.cal.Now()
	if req.Snapshot != nil {
		now = req.Snapshot.Timestamp.In(o.cal.Location())
	}

	// Control plane first. A read failure is a denial, not an open gate.
	state, err := o.controls.Read(ctx)
	if err != nil {
		decision.Deny("controls", models.ReasonControlReadFailed,
			fmt.Sprintf("control state unavailable: %v", err), nil)
		result.Decision = decision
		logging.LogDenial(o.logger, intent, decision)
		return result, nil
	}

	if !state.TradingEnabled {
		decision.Deny("kill_switch", models.ReasonTradingDisabled, "system trading flag is off", nil)
		result.Decision = decision
		logging.LogDenial(o.logger, intent, decision)
		return result, nil
	}
	decision.Pass("kill_switch", nil)

	if o.cfg.MaxDrawdownPct > 0 && state.HighWaterMark > 0 {
		drawdownPct := (state.HighWaterMark - state.Equity) / state.HighWaterMark * 100
		meta := map[string]float64{
			"equity":          state.Equity,
			"high_water_mark": state.HighWaterMark,
			"drawdown_pct":    drawdownPct,
		}
		if drawdownPct >= o.cfg.MaxDrawdownPct {
			decision.Deny("drawdown_breaker", models.ReasonDrawdownHalt,
				fmt.Sprintf("drawdown %.2f%% breaches limit %.2f%%", drawdownPct, o.cfg.MaxDrawdownPct), meta)
			result.Decision = decision
			logging.LogDenial(o.logger, intent, decision)
			return result, nil
		}
		decision.Pass("drawdown_breaker", meta)
	}

	if o.cfg.StrategyDailyLossHalt > 0 {
		meta := map[string]float64{
			"strategy_daily_pnl": state.StrategyDailyPnL,
			"halt_threshold":     o.cfg.StrategyDailyLossHalt,
		}
		if state.StrategyDailyPnL <= -o.cfg.StrategyDailyLossHalt {
			decision.Deny("strategy_daily_halt", models.ReasonStrategyDailyHalt,
				fmt.Sprintf("strategy daily P&L %.2f at or below halt threshold -%.2f",
					state.StrategyDailyPnL, o.cfg.StrategyDailyLossHalt), meta)
			result.Decision = decision
			logging.LogDenial(o.logger, intent, decision)
			return result, nil
		}
		decision.Pass("strategy_daily_halt", meta)
	}

	gd := o.guard.Decide(now)
	if !gd.Allowed {
		decision.Deny("market_open_guard", models.ReasonMarketOpenCooldown, gd.Reason,
			map[string]float64{"seconds_until_allowed": float64(gd.SecondsUntilAllowed)})
		result.Decision = decision
		logging.LogDenial(o.logger, intent, decision)
		return result, nil
	}
	decision.Pass("market_open_guard", nil)

	// The capital anchor is created at or after the session open, never
	// earlier: a pre-open equity reading must not become the day's
	// immutable anchor. Outside the session the intent is denied without
	// touching the store.
	if !o.cal.IsTradingDay(now) || now.Before(o.cal.MarketOpen(now)) || !now.Before(o.cal.MarketClose(now)) {
		decision.Deny("session_window", models.ReasonSessionClosed,
			"market session is not open", nil)
		result.Decision = decision
		logging.LogDenial(o.logger, intent, decision)
		return result, nil
	}
	decision.Pass("session_window", nil)

	// Capital anchor: created once per day, verified on every read.
	// Integrity failures here halt the caller.
	if err := o.ensureCapitalAnchor(ctx, now); err != nil {
		logging.LogHardError(logging.WithIntent(o.logger, intent.ID, intent.Symbol), "capital_anchor", err)
		return result, err
	}

	if intent.NeedsResolution() {
		if req.Snapshot == nil {
			decision.Deny("contract_resolution", models.ReasonEmptyChain,
				"options intent requires a market snapshot", nil)
			result.Decision = decision
			logging.LogDenial(o.logger, intent, decision)
			return result, nil
		}
		contract, err := o.selector.Resolve(o.resolutionHint(intent, req.Regime), *req.Snapshot)
		if err != nil {
			se, ok := riskerr.AsSelection(err)
			if !ok {
				logging.LogHardError(logging.WithIntent(o.logger, intent.ID, intent.Symbol), "contract_resolution", err)
				return result, err
			}
			decision.Deny("contract_resolution", se.Reason, se.Explanation, nil)
			result.Decision = decision
			logging.LogDenial(o.logger, intent, decision)
			return result, nil
		}
		result.Contract = contract
		intent = applyContract(intent, contract)
		decision.Pass("contract_resolution", map[string]float64{"strike": contract.Strike})
	}

	var ruleDecision models.RiskDecision
	if intent.AssetClass == models.AssetOption {
		ruleDecision = o.exposure.Evaluate(intent, req.Book, req.Regime, req.Caps, now)
	} else {
		ruleDecision = o.limits.Evaluate(intent, req.Account, req.Limits)
	}
	for _, r := range ruleDecision.RuleResults {
		decision.AddRule(r)
		if !r.Allowed {
			ruleLogger := logging.WithRule(o.logger, r.RuleID)
			ruleLogger.Debug().
				Str("reason_code", r.ReasonCode).
				Msg("Rule failed")
		}
	}
	if !ruleDecision.Allowed {
		decision.Message = ruleDecision.Message
		result.Decision = decision
		logging.LogDenial(o.logger, intent, decision)
		return result, nil
	}

	// Idempotent shadow handoff. The id is a pure function of
	// the intent id, so replays land on the same stored record.
	shadowID := ShadowID(intent.ID)
	record, err := o.executor.Execute(ctx, intent, shadowID)
	if err != nil {
		logging.LogHardError(logging.WithIntent(o.logger, intent.ID, intent.Symbol), "shadow_handoff", err)
		return result, riskerr.Wrap(err, "shadow handoff failed")
	}
	result.Record = record
	result.Decision = decision
	logging.LogAllowance(o.logger, intent, shadowID)
	return result, nil
}

// resolutionHint builds the selector hint, widening the spread guard on
// macro-event regimes when configured.
func (o *Orchestrator) resolutionHint(intent models.OrderIntent, regime *models.RegimeHint) selector.Hint {
	hint := selector.Hint{Right: intent.Right}
	if regime != nil && regime.MacroEvent && o.cfg.MacroEventSpreadWidening > 1 {
		hint.SpreadScale = o.cfg.MacroEventSpreadWidening
	}
	return hint
}

// ShadowID derives the deterministic handoff id for an intent id.
func ShadowID(intentID string) string {
	return uuid.NewSHA1(shadowNamespace, []byte(intentID)).String()
}

// ensureCapitalAnchor guarantees today's snapshot exists and is valid
// for this evaluation instant.
func (o *Orchestrator) ensureCapitalAnchor(ctx context.Context, now time.Time) error {
	acct, err := o.accounts.Read(ctx, o.cfg.Tenant, o.cfg.Account)
	if err != nil {
		return riskerr.Wrap(err, "account read failed")
	}

	snap, err := capital.New(o.cal, o.cfg.Tenant, o.cfg.Account, now,
		acct.Equity, acct.Cash, acct.BuyingPower)
	if err != nil {
		return err
	}

	stored, err := capital.GetOrCreateOnce(ctx, o.capital, snap)
	if err != nil {
		return err
	}
	if err := stored.Verify(); err != nil {
		return err
	}
	if err := stored.AssertDateMatch(calendar.DayKey(now, o.cal.Location())); err != nil {
		return err
	}
	return stored.AssertTradeWindow(now)
}

// applyContract copies the resolved contract's terms onto the intent for
// the downstream evaluators.
func applyContract(intent models.OrderIntent, c *models.ResolvedContract) models.OrderIntent {
	strike := c.Strike
	expiry := c.Expiry
	intent.Symbol = c.Symbol
	intent.Strike = &strike
	intent.Expiry = &expiry
	intent.Right = c.Right
	intent.ContractMultiplier = c.Multiplier
	if intent.Delta == nil && c.Delta != nil {
		d := *c.Delta
		intent.Delta = &d
	}
	return intent
}
