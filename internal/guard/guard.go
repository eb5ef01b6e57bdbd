// Package guard provides the post-open cooldown check.
package guard

import (
	"fmt"
	"time"

	"riskgate/internal/calendar"
)

// Config configures the market-open guard. Enabled false or a
// non-positive cooldown disables enforcement entirely.
type Config struct {
	Enabled  bool
	Cooldown time.Duration
}

// Decision is the guard verdict for a single instant.
type Decision struct {
	Allowed             bool   `json:"allowed"`
	Reason              string `json:"reason"`
	SecondsUntilAllowed int    `json:"seconds_until_allowed,omitempty"`
}

// MarketOpenGuard blocks trading during a cooldown window right after
// session open. It owns exactly one time window; the selector and the
// exposure evaluator own their own cutoffs with different semantics.
type MarketOpenGuard struct {
	cal calendar.SessionCalendar
	cfg Config
}

// New creates a MarketOpenGuard.
func New(cal calendar.SessionCalendar, cfg Config) *MarketOpenGuard {
	return &MarketOpenGuard{cal: cal, cfg: cfg}
}

// Decide evaluates the cooldown window at now. Pre-open and non-trading
// days are allowed with an informational reason; the guard never blocks
// pre-open activity.
func (g *MarketOpenGuard) Decide(now time.Time) Decision {
	if !g.cfg.Enabled || g.cfg.Cooldown <= 0 {
		return Decision{Allowed: true, Reason: "cooldown disabled"}
	}

	now = now.In(g.cal.Location())
	if !g.cal.IsTradingDay(now) {
		return Decision{Allowed: true, Reason: "not a trading day"}
	}

	open := g.cal.MarketOpen(now)
	if now.Before(open) {
		return Decision{Allowed: true, Reason: "before session open"}
	}

	boundary := open.Add(g.cfg.Cooldown)
	if now.Before(boundary) {
		remaining := int(boundary.Sub(now).Seconds())
		return Decision{
			Allowed:             false,
			Reason:              fmt.Sprintf("within post-open cooldown until %s", boundary.Format("15:04:05")),
			SecondsUntilAllowed: remaining,
		}
	}

	return Decision{Allowed: true, Reason: "cooldown elapsed"}
}
