package selector

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	riskerr "riskgate/internal/errors"
	"riskgate/internal/models"
)

// Property: for any chain, a resolved call strike is strictly above spot
// and a resolved put strike is strictly below spot. Resolution never
// returns an at- or in-the-money strike.
func TestProperty_ResolvedStrikeStrictlyOTM(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	spotGen := gen.Float64Range(100, 600)
	strikeCountGen := gen.IntRange(1, 30)
	rightGen := gen.OneConstOf(models.RightCall, models.RightPut)

	properties.Property("resolved strike is strictly OTM", prop.ForAll(
		func(spot float64, strikeCount int, right models.OptionRight) bool {
			s := testSelector(t)
			now := at(t, "11:00")
			expiry := day(t, "2026-01-23")

			// Strike ladder in $5 steps straddling spot.
			base := float64(int(spot/5)) * 5
			quotes := make([]models.OptionQuote, 0, strikeCount)
			for i := 0; i < strikeCount; i++ {
				k := base + float64(i-strikeCount/2)*5
				bid := 1.00
				ask := 1.10
				quotes = append(quotes, models.OptionQuote{
					Strike: k,
					Expiry: expiry,
					Right:  right,
					Bid:    &bid,
					Ask:    &ask,
				})
			}

			snap := models.MarketSnapshot{
				Timestamp:  now,
				Underlying: "SPY",
				Spot:       spot,
				Quotes:     quotes,
			}

			c, err := s.Resolve(Hint{Right: right}, snap)
			if err != nil {
				// A denial is fine; it must be a classified selection error.
				_, ok := riskerr.AsSelection(err)
				return ok
			}

			if right == models.RightCall {
				return c.Strike > spot
			}
			return c.Strike < spot
		},
		spotGen,
		strikeCountGen,
		rightGen,
	))

	properties.TestingRun(t)
}

// Property: the liquidity guard never widens the strike. Whenever the
// nearest OTM strike fails the spread check, resolution fails; it never
// silently resolves a farther strike.
func TestProperty_LiquidityGuardNeverWidensStrike(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	spreadGen := gen.Float64Range(0, 1)

	properties.Property("illiquid nearest strike fails rather than widening", prop.ForAll(
		func(nearSpread float64) bool {
			s := testSelector(t)
			now := at(t, "11:00")
			expiry := day(t, "2026-01-23")
			spot := 479.90

			nearBid := 1.00
			nearAsk := nearBid + nearSpread
			farBid := 0.40
			farAsk := 0.45

			snap := models.MarketSnapshot{
				Timestamp:  now,
				Underlying: "SPY",
				Spot:       spot,
				Quotes: []models.OptionQuote{
					{Strike: 480, Expiry: expiry, Right: models.RightCall, Bid: &nearBid, Ask: &nearAsk},
					{Strike: 485, Expiry: expiry, Right: models.RightCall, Bid: &farBid, Ask: &farAsk},
				},
			}

			c, err := s.Resolve(Hint{Right: models.RightCall}, snap)
			if nearSpread <= 0.25 {
				return err == nil && c.Strike == 480
			}
			se, ok := riskerr.AsSelection(err)
			return ok && se.Reason == models.ReasonLiquidityGuard
		},
		spreadGen,
	))

	properties.TestingRun(t)
}
