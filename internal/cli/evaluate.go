package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"riskgate/internal/calendar"
	"riskgate/internal/capital"
	"riskgate/internal/exposure"
	"riskgate/internal/gate"
	"riskgate/internal/guard"
	"riskgate/internal/limits"
	"riskgate/internal/logging"
	"riskgate/internal/models"
	"riskgate/internal/resilience"
	"riskgate/internal/selector"
	"riskgate/internal/shadow"
)

// evaluateRequest is the JSON envelope accepted by the evaluate command.
// Everything the gate needs arrives in one document; nothing is fetched.
type evaluateRequest struct {
	Intent        models.OrderIntent      `json:"intent"`
	Snapshot      *models.MarketSnapshot  `json:"snapshot,omitempty"`
	Book          models.ExposureSnapshot `json:"book"`
	AccountState  models.AccountState     `json:"account_state"`
	Regime        *models.RegimeHint      `json:"regime,omitempty"`
	BrokerAccount *brokerAccount          `json:"broker_account,omitempty"`
	Controls      *controlDoc             `json:"controls,omitempty"`
}

type brokerAccount struct {
	Equity      float64 `json:"equity"`
	Cash        float64 `json:"cash"`
	BuyingPower float64 `json:"buying_power"`
}

type controlDoc struct {
	TradingEnabled   bool    `json:"trading_enabled"`
	Equity           float64 `json:"equity"`
	HighWaterMark    float64 `json:"high_water_mark"`
	StrategyDailyPnL float64 `json:"strategy_daily_pnl"`
}

// docControls serves the control state parsed from the request document.
type docControls struct {
	doc *controlDoc
}

func (c docControls) Read(context.Context) (gate.ControlState, error) {
	if c.doc == nil {
		return gate.ControlState{}, fmt.Errorf("no control state in request")
	}
	return gate.ControlState{
		TradingEnabled:   c.doc.TradingEnabled,
		Equity:           c.doc.Equity,
		HighWaterMark:    c.doc.HighWaterMark,
		StrategyDailyPnL: c.doc.StrategyDailyPnL,
	}, nil
}

// docAccounts serves the broker account parsed from the request document.
type docAccounts struct {
	acct *brokerAccount
}

func (a docAccounts) Read(context.Context, string, string) (gate.AccountSnapshot, error) {
	if a.acct == nil {
		return gate.AccountSnapshot{}, fmt.Errorf("no broker account in request")
	}
	return gate.AccountSnapshot{
		Equity:      a.acct.Equity,
		Cash:        a.acct.Cash,
		BuyingPower: a.acct.BuyingPower,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

func newEvaluateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate [request-file]",
		Short: "Evaluate a trade intent",
		Long: `Evaluate a proposed trade against the full gate: kill switches,
drawdown and daily-loss halts, the market-open guard, contract
resolution for options, and the exposure or limit rules.

The request is a JSON document read from the given file, or from stdin
when the argument is omitted or "-". An allowed trade is handed to the
paper executor; the command exits non-zero on a denial.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			req, err := readEvaluateRequest(args)
			if err != nil {
				return err
			}

			orch, err := buildOrchestrator(app, req, logging.FromContext(cmd.Context()))
			if err != nil {
				return err
			}

			res, err := orch.Evaluate(cmd.Context(), gate.Request{
				Intent:   req.Intent,
				Snapshot: req.Snapshot,
				Book:     req.Book,
				Account:  req.AccountState,
				Regime:   req.Regime,
				Limits: models.RiskLimits{
					MaxDailyLoss:            app.Config.Limits.MaxDailyLoss,
					MaxOrderNotional:        app.Config.Limits.MaxOrderNotional,
					MaxTradesPerDay:         app.Config.Limits.MaxTradesPerDay,
					MaxPerSymbolExposureUSD: app.Config.Limits.MaxPerSymbolExposureUSD,
					MaxContractsPerSymbol:   app.Config.Limits.MaxContractsPerSymbol,
					MaxGammaExposureAbs:     app.Config.Limits.MaxGammaExposureAbs,
				},
				Caps: exposure.Limits{
					MaxContractsPerTrade: app.Config.Exposure.MaxContractsPerTrade,
					MaxContractsPerDay:   app.Config.Exposure.MaxContractsPerDay,
					MaxAbsNetDelta:       app.Config.Exposure.MaxAbsNetDelta,
					MaxAbsNetGamma:       app.Config.Exposure.MaxAbsNetGamma,
					MaxAbsNetGamma0DTE:   app.Config.Exposure.MaxAbsNetGamma0DTE,
				},
			})
			if err != nil {
				output.Error("Evaluation aborted: %v", err)
				return err
			}

			if output.IsJSON() {
				if err := output.JSON(res); err != nil {
					return err
				}
			} else {
				printDecision(output, res)
			}

			if !res.Decision.Allowed {
				return fmt.Errorf("trade denied: %s", strings.Join(res.Decision.ReasonCodes, ", "))
			}
			return nil
		},
	}
	return cmd
}

func readEvaluateRequest(args []string) (*evaluateRequest, error) {
	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("opening request file: %w", err)
		}
		defer f.Close()
		r = f
	}

	req := &evaluateRequest{}
	dec := json.NewDecoder(r)
	if err := dec.Decode(req); err != nil {
		return nil, fmt.Errorf("parsing request: %w", err)
	}
	return req, nil
}

func buildOrchestrator(app *App, req *evaluateRequest, logger zerolog.Logger) (*gate.Orchestrator, error) {
	cfg := app.Config

	cal, err := calendar.New(calendar.Config{
		Timezone: cfg.Calendar.Timezone,
		Open:     cfg.Calendar.Open,
		Close:    cfg.Calendar.Close,
		Holidays: cfg.Calendar.Holidays,
	})
	if err != nil {
		return nil, fmt.Errorf("building calendar: %w", err)
	}

	sel, err := selector.New(selector.Config{
		Underlyings:         cfg.Selector.Underlyings,
		NoNewPositionsAfter: cfg.Selector.NoNewPositionsAfter,
		Prefer0DTEBefore:    cfg.Selector.Prefer0DTEBefore,
		MaxBidAskSpread:     cfg.Selector.MaxBidAskSpread,
	}, cal.Location())
	if err != nil {
		return nil, fmt.Errorf("building selector: %w", err)
	}

	expo, err := exposure.New(exposure.Config{
		CutoffAfter:      cfg.Exposure.CutoffAfter,
		TighteningFactor: cfg.Exposure.RiskOffTightening,
	}, cal.Location())
	if err != nil {
		return nil, fmt.Errorf("building exposure evaluator: %w", err)
	}

	var capStore capital.Store
	var recStore shadow.RecordStore
	if app.Store != nil {
		capStore = app.Store
		recStore = app.Store
	} else {
		capStore = capital.NewMemoryStore()
	}

	return gate.New(
		cal,
		guard.New(cal, guard.Config{
			Enabled:  cfg.Guard.Enabled,
			Cooldown: time.Duration(cfg.Guard.CooldownMinutes) * time.Minute,
		}),
		sel,
		expo,
		limits.New(logger),
		gate.NewGuardedControls(
			docControls{doc: req.Controls},
			resilience.NewBreaker("controls", resilience.DefaultConfig()),
		),
		docAccounts{acct: req.BrokerAccount},
		capStore,
		shadow.NewPaperExecutor(0, recStore),
		gate.Config{
			Tenant:                   cfg.Capital.Tenant,
			Account:                  cfg.Capital.Account,
			MaxDrawdownPct:           cfg.Gate.MaxDrawdownPct,
			StrategyDailyLossHalt:    cfg.Gate.StrategyDailyLossHalt,
			MacroEventSpreadWidening: cfg.Exposure.MacroEventWidening,
		},
		logger,
	), nil
}

func printDecision(output *Output, res gate.Result) {
	if res.Contract != nil {
		output.Info("Resolved contract: %s", res.Contract.Symbol)
	}
	if res.Decision.Allowed {
		output.Success("ALLOW")
		if res.Record != nil {
			output.Dim("shadow id: %s", res.Record.ID)
		}
	} else {
		output.Error("DENY: %s", strings.Join(res.Decision.ReasonCodes, ", "))
		if res.Decision.Message != "" {
			output.Dim("%s", res.Decision.Message)
		}
	}

	if len(res.Decision.RuleResults) > 0 {
		output.Println()
		table := NewTable(output, "RULE", "RESULT", "REASON")
		for _, r := range res.Decision.RuleResults {
			verdict := output.Green("pass")
			if !r.Allowed {
				verdict = output.Red("deny")
			}
			table.AddRow(r.RuleID, verdict, r.ReasonCode)
		}
		table.Render()
	}
}
