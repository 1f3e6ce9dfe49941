package bankroll

import (
	"github.com/shopspring/decimal"

	"footy-quant/internal/market"
	"footy-quant/internal/picks"
)

// Limits are the hard exposure caps, as fractions of bankroll. Stake
// arithmetic is exact decimal so repeated caps cannot drift.
type Limits struct {
	PerMatchCap decimal.Decimal // max combined stake on one match
	PerDayCap   decimal.Decimal // max cumulative stake per day
}

// NewLimits builds Limits from config fractions.
func NewLimits(perMatch, perDay float64) Limits {
	return Limits{
		PerMatchCap: decimal.NewFromFloat(perMatch),
		PerDayCap:   decimal.NewFromFloat(perDay),
	}
}

// Stake is the sized bet for one pick.
type Stake struct {
	PickID   string
	Market   market.Market
	Fraction decimal.Decimal // fraction of bankroll
	Amount   decimal.Decimal // bankroll units
	Capped   bool
}

// Sizer converts Kelly fractions into stakes under the exposure limits.
// A sizer is owned by a single worker; it is not safe for concurrent use.
type Sizer struct {
	limits      Limits
	bankroll    decimal.Decimal
	dayExposure decimal.Decimal
}

// NewSizer creates a sizer for the given bankroll (in bankroll units).
func NewSizer(bankroll float64, limits Limits) *Sizer {
	return &Sizer{
		limits:   limits,
		bankroll: decimal.NewFromFloat(bankroll),
	}
}

// ResetDay clears the cumulative daily exposure. Called by the orchestrator
// at the day boundary.
func (s *Sizer) ResetDay() {
	s.dayExposure = decimal.Zero
}

// DayExposure returns the cumulative staked fraction for the current day.
func (s *Sizer) DayExposure() decimal.Decimal {
	return s.dayExposure
}

// SizeMatch sizes the recommended picks of one match, in ranking order.
// Rules applied, in order:
//   - only recommended picks are staked, one per market group;
//   - each stake starts from the pick's capped Kelly fraction;
//   - positively correlated picks share a single per-match cap;
//   - the combined match stake never exceeds the per-match cap;
//   - the running daily total never exceeds the per-day cap.
func (s *Sizer) SizeMatch(ranked []picks.QuantPick) []Stake {
	var out []Stake
	seenGroup := make(map[string]bool)
	matchTotal := decimal.Zero

	for i := range ranked {
		p := &ranked[i]
		if !p.Recommended() || p.KellyFraction <= 0 {
			continue
		}
		group := p.Market.Group()
		if seenGroup[group] {
			continue
		}
		seenGroup[group] = true

		frac := decimal.NewFromFloat(p.KellyFraction)
		capped := false

		// Correlated picks share one cap: the correlated cluster so far
		// plus this stake must fit inside the per-match cap.
		correlatedTotal := frac
		for _, prev := range out {
			if Correlated(prev.Market, p.Market) {
				correlatedTotal = correlatedTotal.Add(prev.Fraction)
			}
		}
		if correlatedTotal.GreaterThan(s.limits.PerMatchCap) {
			frac = frac.Sub(correlatedTotal.Sub(s.limits.PerMatchCap))
			capped = true
		}

		if remaining := s.limits.PerMatchCap.Sub(matchTotal); frac.GreaterThan(remaining) {
			frac = remaining
			capped = true
		}
		if remaining := s.limits.PerDayCap.Sub(s.dayExposure); frac.GreaterThan(remaining) {
			frac = remaining
			capped = true
		}
		if frac.LessThanOrEqual(decimal.Zero) {
			continue
		}

		matchTotal = matchTotal.Add(frac)
		s.dayExposure = s.dayExposure.Add(frac)
		out = append(out, Stake{
			PickID:   p.ID,
			Market:   p.Market,
			Fraction: frac,
			Amount:   frac.Mul(s.bankroll).Round(2),
			Capped:   capped,
		})
	}
	return out
}

// Correlated reports whether two selections on the same match win together
// more often than chance: goals markets pointing the same way, picks on the
// same winner, and a decisive winner with an overs market.
func Correlated(a, b market.Market) bool {
	if a.Group() == b.Group() {
		return true
	}
	if goalsLean(a) != 0 && goalsLean(a) == goalsLean(b) {
		return true
	}
	if winnerSide(a) != 0 && winnerSide(a) == winnerSide(b) {
		return true
	}
	if winnerSide(a) != 0 && goalsLean(b) > 0 {
		return true
	}
	if winnerSide(b) != 0 && goalsLean(a) > 0 {
		return true
	}
	return false
}

// goalsLean is +1 for high-scoring selections, -1 for low-scoring ones.
func goalsLean(m market.Market) int {
	switch m {
	case market.Over15, market.Over25, market.Over35, market.BTTSYes:
		return 1
	case market.Under15, market.Under25, market.Under35, market.BTTSNo:
		return -1
	}
	return 0
}

// winnerSide is +1 for home-leaning winner selections, -1 for away-leaning.
func winnerSide(m market.Market) int {
	switch m {
	case market.Home, market.DC1X:
		return 1
	case market.Away, market.DCX2:
		return -1
	}
	return 0
}
