// Package selector resolves a concrete option contract from a market
// snapshot. Every step fails closed with a specific reason; there are no
// silent fallbacks.
package selector

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	riskerr "riskgate/internal/errors"
	"riskgate/internal/models"
	"riskgate/pkg/utils"
)

// Config configures contract selection.
type Config struct {
	// Underlyings is the allow-list of supported underlyings.
	Underlyings []string
	// NoNewPositionsAfter is the hard local-time stop, "HH:MM".
	NoNewPositionsAfter string
	// Prefer0DTEBefore is the local time before which same-day expiries
	// are preferred, "HH:MM".
	Prefer0DTEBefore string
	// MaxBidAskSpread is the widest acceptable quote spread.
	MaxBidAskSpread float64
}

// Hint narrows the selection to the caller's requested contract shape.
type Hint struct {
	Right models.OptionRight
	// SpreadScale widens the liquidity guard's spread cap for this one
	// resolution. Values <= 1 leave the cap unchanged.
	SpreadScale float64
}

// Selector resolves contracts deterministically from snapshots. It is a
// pure function of its inputs and safe for concurrent use.
type Selector struct {
	cfg          Config
	loc          *time.Location
	noNewAfter   int
	prefer0Until int
	allowed      map[string]bool
}

// New creates a Selector. The location defines snapshot-local time for
// all time rules.
func New(cfg Config, loc *time.Location) (*Selector, error) {
	noNew, err := utils.ParseClock(cfg.NoNewPositionsAfter)
	if err != nil {
		return nil, fmt.Errorf("no_new_positions_after: %w", err)
	}
	prefer, err := utils.ParseClock(cfg.Prefer0DTEBefore)
	if err != nil {
		return nil, fmt.Errorf("prefer_0dte_before: %w", err)
	}
	allowed := make(map[string]bool, len(cfg.Underlyings))
	for _, u := range cfg.Underlyings {
		allowed[u] = true
	}
	return &Selector{
		cfg:          cfg,
		loc:          loc,
		noNewAfter:   noNew,
		prefer0Until: prefer,
		allowed:      allowed,
	}, nil
}

// Resolve picks the contract for hint from snapshot, or returns a
// *errors.SelectionError naming the step that failed.
func (s *Selector) Resolve(hint Hint, snap models.MarketSnapshot) (*models.ResolvedContract, error) {
	local := snap.Timestamp.In(s.loc)

	// Hard stop: no new positions late in the session.
	if utils.MinuteOfDay(local) >= s.noNewAfter {
		return nil, riskerr.NewSelectionError(
			models.ReasonTimeGuardNoNewPositions,
			fmt.Sprintf("no new positions after %s local", s.cfg.NoNewPositionsAfter),
			map[string]string{"snapshot_time": local.Format("15:04:05")},
		)
	}

	if !s.allowed[snap.Underlying] {
		return nil, riskerr.NewSelectionError(
			models.ReasonUnsupportedUnderlying,
			fmt.Sprintf("underlying %q is not on the allow-list", snap.Underlying),
			map[string]string{"underlying": snap.Underlying},
		)
	}

	if len(snap.Quotes) == 0 {
		return nil, riskerr.NewSelectionError(
			models.ReasonEmptyChain,
			"snapshot carries no option quotes",
			map[string]string{"underlying": snap.Underlying},
		)
	}

	today := utils.DateOf(local, s.loc)
	var eligible []models.OptionQuote
	for _, q := range snap.Quotes {
		if q.Right != hint.Right {
			continue
		}
		if utils.DateOf(q.Expiry, s.loc).Before(today) {
			continue
		}
		eligible = append(eligible, q)
	}
	if len(eligible) == 0 {
		return nil, riskerr.NewSelectionError(
			models.ReasonNoEligibleExpiry,
			fmt.Sprintf("no %s quotes with expiry on or after %s", hint.Right, today.Format("2006-01-02")),
			map[string]string{"right": string(hint.Right)},
		)
	}

	expiry := s.chooseExpiry(eligible, today, local)

	var strikes []float64
	seen := make(map[float64]bool)
	for _, q := range eligible {
		if !utils.SameDate(q.Expiry, expiry, s.loc) {
			continue
		}
		if !seen[q.Strike] {
			seen[q.Strike] = true
			strikes = append(strikes, q.Strike)
		}
	}
	if len(strikes) == 0 {
		return nil, riskerr.NewSelectionError(
			models.ReasonNoStrikesForExpiry,
			fmt.Sprintf("no strikes for expiry %s", expiry.Format("2006-01-02")),
			map[string]string{"expiry": expiry.Format("2006-01-02")},
		)
	}

	strike, ok := chooseStrike(strikes, snap.Spot, hint.Right)
	if !ok {
		return nil, riskerr.NewSelectionError(
			models.ReasonNoOTMStrike,
			fmt.Sprintf("no strictly OTM %s strike around spot %s", hint.Right, strconv.FormatFloat(snap.Spot, 'f', -1, 64)),
			map[string]string{"spot": strconv.FormatFloat(snap.Spot, 'f', -1, 64)},
		)
	}

	var candidates []models.OptionQuote
	for _, q := range eligible {
		if q.Strike == strike && utils.SameDate(q.Expiry, expiry, s.loc) {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return nil, riskerr.NewSelectionError(
			models.ReasonNoStrikeMatch,
			fmt.Sprintf("no quote at expiry %s strike %s", expiry.Format("2006-01-02"), strconv.FormatFloat(strike, 'f', -1, 64)),
			nil,
		)
	}

	// Liquidity guard. Quotes missing a side are ineligible, never
	// defaulted, and the nearest-OTM strike is never skipped in favor of
	// a more liquid farther strike.
	maxSpread := s.cfg.MaxBidAskSpread
	if hint.SpreadScale > 1 {
		maxSpread *= hint.SpreadScale
	}
	var survivors []models.OptionQuote
	for _, q := range candidates {
		spread, ok := q.Spread()
		if !ok {
			continue
		}
		if spread > maxSpread {
			continue
		}
		survivors = append(survivors, q)
	}
	if len(survivors) == 0 {
		return nil, riskerr.NewSelectionError(
			models.ReasonLiquidityGuard,
			fmt.Sprintf("no candidate at strike %s with spread <= %s",
				strconv.FormatFloat(strike, 'f', -1, 64),
				strconv.FormatFloat(maxSpread, 'f', -1, 64)),
			map[string]string{"strike": strconv.FormatFloat(strike, 'f', -1, 64)},
		)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		si, _ := survivors[i].Spread()
		sj, _ := survivors[j].Spread()
		if si != sj {
			return si < sj
		}
		return survivors[i].Symbol < survivors[j].Symbol
	})
	winner := survivors[0]

	multiplier := winner.Multiplier
	if multiplier <= 0 {
		multiplier = 100
	}

	return &models.ResolvedContract{
		Symbol:     FormatSymbol(snap.Underlying, expiry, hint.Right, strike),
		Strike:     strike,
		Expiry:     utils.DateOf(expiry, s.loc),
		Right:      hint.Right,
		Multiplier: multiplier,
		Delta:      winner.Delta,
	}, nil
}

// chooseExpiry picks the expiry among eligible quotes. Early in the day
// the earliest eligible expiry wins (0DTE preferred); late in the day a
// same-day expiry is passed over for the earliest future one when any
// exists.
func (s *Selector) chooseExpiry(eligible []models.OptionQuote, today, local time.Time) time.Time {
	uniq := make(map[string]time.Time)
	for _, q := range eligible {
		d := utils.DateOf(q.Expiry, s.loc)
		uniq[d.Format("2006-01-02")] = d
	}
	expiries := make([]time.Time, 0, len(uniq))
	for _, d := range uniq {
		expiries = append(expiries, d)
	}
	sort.Slice(expiries, func(i, j int) bool { return expiries[i].Before(expiries[j]) })

	earliest := expiries[0]
	if utils.MinuteOfDay(local) < s.prefer0Until {
		return earliest
	}
	if earliest.Equal(today) {
		for _, d := range expiries[1:] {
			if d.After(today) {
				return d
			}
		}
	}
	return earliest
}

// chooseStrike picks the strictly out-of-the-money strike nearest spot:
// the minimum strike above spot for calls, the maximum below for puts.
func chooseStrike(strikes []float64, spot float64, right models.OptionRight) (float64, bool) {
	found := false
	var best float64
	for _, k := range strikes {
		switch right {
		case models.RightCall:
			if k > spot && (!found || k < best) {
				best, found = k, true
			}
		case models.RightPut:
			if k < spot && (!found || k > best) {
				best, found = k, true
			}
		}
	}
	return best, found
}
