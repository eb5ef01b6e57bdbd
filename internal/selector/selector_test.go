package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	riskerr "riskgate/internal/errors"
	"riskgate/internal/models"
)

var ny = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

func testSelector(t *testing.T) *Selector {
	t.Helper()
	s, err := New(Config{
		Underlyings:         []string{"SPY", "QQQ"},
		NoNewPositionsAfter: "15:30",
		Prefer0DTEBefore:    "14:30",
		MaxBidAskSpread:     0.25,
	}, ny)
	require.NoError(t, err)
	return s
}

func fp(v float64) *float64 { return &v }

// 2026-01-23 is a Friday.
func at(t *testing.T, clock string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", "2026-01-23 "+clock, ny)
	require.NoError(t, err)
	return ts
}

func day(t *testing.T, date string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", date, ny)
	require.NoError(t, err)
	return d
}

func callQuote(strike float64, expiry time.Time, bid, ask float64) models.OptionQuote {
	return models.OptionQuote{
		Strike: strike,
		Expiry: expiry,
		Right:  models.RightCall,
		Bid:    fp(bid),
		Ask:    fp(ask),
	}
}

func requireSelection(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	se, ok := riskerr.AsSelection(err)
	require.True(t, ok, "expected a selection error, got %v", err)
	assert.Equal(t, reason, se.Reason)
}

func TestResolveNearestOTMCall(t *testing.T) {
	s := testSelector(t)
	now := at(t, "11:00")
	today := day(t, "2026-01-23")

	snap := models.MarketSnapshot{
		Timestamp:  now,
		Underlying: "SPY",
		Spot:       479.90,
		Quotes: []models.OptionQuote{
			callQuote(475, today, 5.10, 5.25),
			callQuote(480, today, 1.20, 1.30),
			callQuote(485, today, 0.40, 0.50),
		},
	}

	c, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	require.NoError(t, err)
	assert.Equal(t, 480.0, c.Strike)
	assert.Equal(t, "SPY_012326C480", c.Symbol)
	assert.Equal(t, 100.0, c.Multiplier)
}

func TestResolveSpreadScaleWidensLiquidityGuard(t *testing.T) {
	s := testSelector(t)
	now := at(t, "11:00")
	today := day(t, "2026-01-23")

	// 0.30 spread at the nearest OTM strike, past the base 0.25 cap.
	snap := models.MarketSnapshot{
		Timestamp:  now,
		Underlying: "SPY",
		Spot:       479.90,
		Quotes: []models.OptionQuote{
			callQuote(480, today, 1.10, 1.40),
		},
	}

	_, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	requireSelection(t, err, models.ReasonLiquidityGuard)

	c, err := s.Resolve(Hint{Right: models.RightCall, SpreadScale: 1.25}, snap)
	require.NoError(t, err)
	assert.Equal(t, 480.0, c.Strike)

	// Scales at or below 1 leave the cap untouched.
	_, err = s.Resolve(Hint{Right: models.RightCall, SpreadScale: 0.5}, snap)
	requireSelection(t, err, models.ReasonLiquidityGuard)
}

func TestResolveNearestOTMPut(t *testing.T) {
	s := testSelector(t)
	now := at(t, "11:00")
	today := day(t, "2026-01-23")

	snap := models.MarketSnapshot{
		Timestamp:  now,
		Underlying: "SPY",
		Spot:       479.90,
		Quotes: []models.OptionQuote{
			{Strike: 475, Expiry: today, Right: models.RightPut, Bid: fp(0.80), Ask: fp(0.90)},
			{Strike: 479, Expiry: today, Right: models.RightPut, Bid: fp(1.10), Ask: fp(1.20)},
			{Strike: 480, Expiry: today, Right: models.RightPut, Bid: fp(1.50), Ask: fp(1.60)},
		},
	}

	c, err := s.Resolve(Hint{Right: models.RightPut}, snap)
	require.NoError(t, err)
	// 480 is not strictly below spot; 479 is the nearest strictly OTM put.
	assert.Equal(t, 479.0, c.Strike)
	assert.Equal(t, "SPY_012326P479", c.Symbol)
}

func TestResolveNoNewPositionsLate(t *testing.T) {
	s := testSelector(t)
	snap := models.MarketSnapshot{
		Timestamp:  at(t, "15:30"),
		Underlying: "SPY",
		Spot:       479.90,
		Quotes:     []models.OptionQuote{callQuote(480, day(t, "2026-01-23"), 1.20, 1.30)},
	}

	_, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	requireSelection(t, err, models.ReasonTimeGuardNoNewPositions)
}

func TestResolveUnsupportedUnderlying(t *testing.T) {
	s := testSelector(t)
	snap := models.MarketSnapshot{
		Timestamp:  at(t, "11:00"),
		Underlying: "GME",
		Spot:       25,
		Quotes:     []models.OptionQuote{callQuote(26, day(t, "2026-01-23"), 0.50, 0.60)},
	}

	_, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	requireSelection(t, err, models.ReasonUnsupportedUnderlying)
}

func TestResolveEmptyChain(t *testing.T) {
	s := testSelector(t)
	snap := models.MarketSnapshot{
		Timestamp:  at(t, "11:00"),
		Underlying: "SPY",
		Spot:       479.90,
	}

	_, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	requireSelection(t, err, models.ReasonEmptyChain)
}

func TestResolveNoEligibleExpiry(t *testing.T) {
	s := testSelector(t)
	snap := models.MarketSnapshot{
		Timestamp:  at(t, "11:00"),
		Underlying: "SPY",
		Spot:       479.90,
		Quotes: []models.OptionQuote{
			// Expired yesterday, and a put when a call is requested.
			callQuote(480, day(t, "2026-01-22"), 1.20, 1.30),
			{Strike: 479, Expiry: day(t, "2026-01-23"), Right: models.RightPut, Bid: fp(1.0), Ask: fp(1.1)},
		},
	}

	_, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	requireSelection(t, err, models.ReasonNoEligibleExpiry)
}

func TestResolveNoOTMStrike(t *testing.T) {
	s := testSelector(t)
	snap := models.MarketSnapshot{
		Timestamp:  at(t, "11:00"),
		Underlying: "SPY",
		Spot:       490,
		Quotes: []models.OptionQuote{
			callQuote(480, day(t, "2026-01-23"), 10.0, 10.1),
			callQuote(485, day(t, "2026-01-23"), 5.0, 5.1),
		},
	}

	_, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	requireSelection(t, err, models.ReasonNoOTMStrike)
}

func TestResolveLiquidityGuardWideSpread(t *testing.T) {
	s := testSelector(t)
	today := day(t, "2026-01-23")
	snap := models.MarketSnapshot{
		Timestamp:  at(t, "11:00"),
		Underlying: "SPY",
		Spot:       479.90,
		Quotes: []models.OptionQuote{
			callQuote(480, today, 1.00, 1.40), // spread 0.40 > 0.25
			callQuote(485, today, 0.40, 0.45), // liquid but farther OTM
		},
	}

	// The nearest OTM strike is illiquid; selection fails rather than
	// widening to 485.
	_, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	requireSelection(t, err, models.ReasonLiquidityGuard)
}

func TestResolveLiquidityGuardMissingSide(t *testing.T) {
	s := testSelector(t)
	today := day(t, "2026-01-23")
	snap := models.MarketSnapshot{
		Timestamp:  at(t, "11:00"),
		Underlying: "SPY",
		Spot:       479.90,
		Quotes: []models.OptionQuote{
			{Strike: 480, Expiry: today, Right: models.RightCall, Bid: fp(1.20)}, // no ask
		},
	}

	_, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	requireSelection(t, err, models.ReasonLiquidityGuard)
}

func TestResolvePrefers0DTEEarly(t *testing.T) {
	s := testSelector(t)
	today := day(t, "2026-01-23")
	nextWeek := day(t, "2026-01-30")
	snap := models.MarketSnapshot{
		Timestamp:  at(t, "11:00"),
		Underlying: "SPY",
		Spot:       479.90,
		Quotes: []models.OptionQuote{
			callQuote(480, today, 1.20, 1.30),
			callQuote(480, nextWeek, 3.20, 3.30),
		},
	}

	c, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	require.NoError(t, err)
	assert.Equal(t, today, c.Expiry)
}

func TestResolveFlipsToNextExpiryLate(t *testing.T) {
	s := testSelector(t)
	today := day(t, "2026-01-23")
	nextWeek := day(t, "2026-01-30")
	snap := models.MarketSnapshot{
		Timestamp:  at(t, "14:30"),
		Underlying: "SPY",
		Spot:       479.90,
		Quotes: []models.OptionQuote{
			callQuote(480, today, 1.20, 1.30),
			callQuote(480, nextWeek, 3.20, 3.30),
		},
	}

	c, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	require.NoError(t, err)
	assert.Equal(t, nextWeek, c.Expiry)
}

func TestResolveLateWithOnly0DTEKeepsIt(t *testing.T) {
	s := testSelector(t)
	today := day(t, "2026-01-23")
	snap := models.MarketSnapshot{
		Timestamp:  at(t, "14:45"),
		Underlying: "SPY",
		Spot:       479.90,
		Quotes:     []models.OptionQuote{callQuote(480, today, 1.20, 1.30)},
	}

	c, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	require.NoError(t, err)
	assert.Equal(t, today, c.Expiry)
}

func TestResolveTieBreaksOnSpreadThenSymbol(t *testing.T) {
	s := testSelector(t)
	today := day(t, "2026-01-23")
	tight := callQuote(480, today, 1.24, 1.30)
	tight.Symbol = "B"
	tight.Delta = fp(0.31)
	wide := callQuote(480, today, 1.20, 1.30)
	wide.Symbol = "A"
	wide.Delta = fp(0.29)
	snap := models.MarketSnapshot{
		Timestamp:  at(t, "11:00"),
		Underlying: "SPY",
		Spot:       479.90,
		Quotes:     []models.OptionQuote{wide, tight},
	}

	c, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	require.NoError(t, err)
	// Both pass the guard; the smaller spread (0.06 on "B") wins.
	require.NotNil(t, c.Delta)
	assert.Equal(t, 0.31, *c.Delta)
}

func TestResolveQuoteMultiplierCarries(t *testing.T) {
	s := testSelector(t)
	today := day(t, "2026-01-23")
	q := callQuote(480, today, 1.20, 1.30)
	q.Multiplier = 10
	snap := models.MarketSnapshot{
		Timestamp:  at(t, "11:00"),
		Underlying: "SPY",
		Spot:       479.90,
		Quotes:     []models.OptionQuote{q},
	}

	c, err := s.Resolve(Hint{Right: models.RightCall}, snap)
	require.NoError(t, err)
	assert.Equal(t, 10.0, c.Multiplier)
}

func TestFormatSymbol(t *testing.T) {
	cases := []struct {
		underlying string
		expiry     string
		right      models.OptionRight
		strike     float64
		want       string
	}{
		{"SPY", "2026-01-23", models.RightCall, 480, "SPY_012326C480"},
		{"SPY", "2026-01-23", models.RightPut, 479, "SPY_012326P479"},
		{"QQQ", "2026-12-04", models.RightCall, 402.5, "QQQ_120426C402p5"},
	}
	for _, tc := range cases {
		expiry, err := time.ParseInLocation("2006-01-02", tc.expiry, ny)
		require.NoError(t, err)
		assert.Equal(t, tc.want, FormatSymbol(tc.underlying, expiry, tc.right, tc.strike))
	}
}
