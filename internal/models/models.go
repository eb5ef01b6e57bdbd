// Package models provides domain models for the risk gate.
package models

import (
	"strings"
	"time"
)

// Side represents the side of a proposed trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether the side is one of the two supported values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// AssetClass represents the asset class of a proposed trade.
type AssetClass string

const (
	AssetEquity AssetClass = "equity"
	AssetOption AssetClass = "option"
)

// OptionRight represents a call or a put.
type OptionRight string

const (
	RightCall OptionRight = "call"
	RightPut  OptionRight = "put"
)

// PositionEffect distinguishes opening trades from closing trades.
type PositionEffect string

const (
	EffectOpen  PositionEffect = "open"
	EffectClose PositionEffect = "close"
)

// OrderIntent is a proposed trade submitted for evaluation. It is
// constructed by the caller per evaluation and never mutated by the gate.
// Extra carries unknown upstream fields opaquely; it never influences
// decision logic.
type OrderIntent struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Side       Side       `json:"side"`
	Quantity   int        `json:"quantity"`
	Price      float64    `json:"price"`
	Notional   float64    `json:"notional"`
	AssetClass AssetClass `json:"asset_class"`

	// Optional greeks, per share.
	Delta *float64 `json:"delta,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`

	// Optional option fields.
	Strike             *float64       `json:"strike,omitempty"`
	Expiry             *time.Time     `json:"expiry,omitempty"`
	Right              OptionRight    `json:"right,omitempty"`
	PositionEffect     PositionEffect `json:"position_effect,omitempty"`
	ContractMultiplier float64        `json:"contract_multiplier,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`
}

// IsClosing reports whether the intent is explicitly a closing trade.
func (i *OrderIntent) IsClosing() bool {
	return i.PositionEffect == EffectClose
}

// Multiplier returns the contract multiplier, defaulting to 100 shares
// per contract when unset.
func (i *OrderIntent) Multiplier() float64 {
	if i.ContractMultiplier > 0 {
		return i.ContractMultiplier
	}
	return 100
}

// NeedsResolution reports whether an options intent still needs a
// concrete contract resolved from the chain.
func (i *OrderIntent) NeedsResolution() bool {
	return i.AssetClass == AssetOption && (i.Strike == nil || i.Expiry == nil)
}

// OptionQuote is a single row of an option chain.
type OptionQuote struct {
	Symbol     string      `json:"symbol"` // provider symbol
	Strike     float64     `json:"strike"`
	Expiry     time.Time   `json:"expiry"`
	Right      OptionRight `json:"right"`
	Bid        *float64    `json:"bid,omitempty"`
	Ask        *float64    `json:"ask,omitempty"`
	Delta      *float64    `json:"delta,omitempty"`
	Multiplier float64     `json:"multiplier,omitempty"`
}

// Spread returns the bid/ask spread and whether both sides are quoted.
func (q *OptionQuote) Spread() (float64, bool) {
	if q.Bid == nil || q.Ask == nil {
		return 0, false
	}
	return *q.Ask - *q.Bid, true
}

// MarketSnapshot is a point-in-time read of the market supplied by the
// caller. Its timestamp is the authority for "now" in all time rules.
type MarketSnapshot struct {
	Timestamp  time.Time     `json:"timestamp"`
	Underlying string        `json:"underlying"`
	Spot       float64       `json:"spot"`
	Quotes     []OptionQuote `json:"quotes"`
}

// ResolvedContract is the output of option contract selection.
type ResolvedContract struct {
	Symbol     string      `json:"symbol"`
	Strike     float64     `json:"strike"`
	Expiry     time.Time   `json:"expiry"`
	Right      OptionRight `json:"right"`
	Multiplier float64     `json:"multiplier"`
	Delta      *float64    `json:"delta,omitempty"`
}

// ExposureSnapshot is the caller-aggregated current book state. It is
// supplied fresh per call and never persisted by the gate.
type ExposureSnapshot struct {
	OpenContracts        int     `json:"open_contracts"`
	ContractsTradedToday int     `json:"contracts_traded_today"`
	NetDelta             float64 `json:"net_delta"`
	NetGamma             float64 `json:"net_gamma"`
}

// RegimeHint is an optional caller-supplied market regime signal. It is
// passed per call, never read from ambient state.
type RegimeHint struct {
	RiskOff    bool   `json:"risk_off"`
	Volatility string `json:"volatility,omitempty"` // low, normal, elevated, high
	// MacroEvent marks a scheduled release window (CPI, FOMC). It widens
	// the selection spread guard; it never loosens exposure caps.
	MacroEvent bool `json:"macro_event,omitempty"`
}

// Tightens reports whether the hint calls for tightened greek caps.
// Malformed or unknown volatility values are treated as neutral.
func (h *RegimeHint) Tightens() bool {
	if h == nil {
		return false
	}
	if h.RiskOff {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(h.Volatility)) {
	case "high", "elevated":
		return true
	}
	return false
}
