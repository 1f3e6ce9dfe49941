package picks

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"footy-quant/internal/config"
	"footy-quant/internal/intel"
	"footy-quant/internal/market"
	"footy-quant/internal/signals"
)

// Probability gates: estimates outside this band are too extreme to price.
const (
	minProb = 0.02
	maxProb = 0.98

	// baseScoreScale converts edge into composite-score points before the
	// confidence and sweet-spot multipliers: a 5% edge is worth 10 points.
	baseScoreScale = 200
)

// BuilderConfig carries the tunables of the pick builder.
type BuilderConfig struct {
	MinEdge       float64
	KellyFraction float64
	KellyCap      float64
	SignalWeights config.SignalWeights
}

// Builder combines model probabilities with bookmaker prices into ranked,
// scored QuantPicks.
type Builder struct {
	cfg BuilderConfig
}

// NewBuilder creates a pick builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build walks the market catalogue and produces every candidate that
// survives the probability, price and edge gates. Trap-filtered candidates
// are kept with a zeroed score. The returned slice is ranked: score
// descending, then edge, then confidence, then market id.
//
// When both team intelligence rows are missing the probabilities come from
// the flat fallback model, so any edge against the book is fabricated by
// the prices alone. Such builds flag every pick low-coverage and surface
// at most one recommendation.
func (b *Builder) Build(mc *intel.MatchContext, probs map[market.Market]float64, confidence float64, now time.Time) ([]QuantPick, GateStats) {
	var stats GateStats
	var out []QuantPick

	lowCoverage := !mc.HomeIntel.Trusted() && !mc.AwayIntel.Trusted()
	contributions := evalSignals(mc)

	for _, m := range market.Catalogue {
		p, ok := probs[m]
		if !ok {
			continue
		}
		stats.Considered++

		if p < minProb || p > maxProb {
			stats.SkippedProb++
			continue
		}

		odds, ok := mc.Odds.Price(m)
		if !ok {
			stats.SkippedOdds++
			continue
		}

		edge := p*odds - 1
		if edge <= b.cfg.MinEdge {
			stats.SkippedEdge++
			continue
		}

		pick := b.scorePick(mc, m, p, odds, edge, confidence, lowCoverage, contributions, now)
		if pick.TrapFiltered {
			stats.TrapFiltered++
		} else {
			stats.Emitted++
		}
		out = append(out, pick)
	}

	rank(out)
	if lowCoverage {
		out = coverageGate(out, &stats)
	}
	return out, stats
}

// coverageGate keeps the single best-ranked recommendation of a
// low-coverage build and drops the rest. Non-recommended picks stay in the
// output for audit.
func coverageGate(out []QuantPick, stats *GateStats) []QuantPick {
	kept := out[:0]
	seen := false
	for i := range out {
		if out[i].Recommended() {
			if seen {
				stats.CoverageSkipped++
				stats.Emitted--
				continue
			}
			seen = true
		}
		kept = append(kept, out[i])
	}
	return kept
}

// scorePick computes the composite score, Kelly sizing and audit fields for
// one surviving candidate.
func (b *Builder) scorePick(mc *intel.MatchContext, m market.Market, p, odds, edge, confidence float64,
	lowCoverage bool, contributions []namedContribution, now time.Time) QuantPick {

	sweetMult := signals.SweetSpotMultiplier(edge)
	layers := make(map[string]float64)

	value := edge * baseScoreScale * confidence * sweetMult
	layers["value"] = value

	score := value
	for _, c := range contributions {
		v, ok := c.contribution[m]
		if !ok || v == 0 {
			continue
		}
		weighted := v * float64(b.cfg.SignalWeights[c.name])
		layers[c.name] = weighted
		score += weighted
	}

	pick := QuantPick{
		ID:            uuid.New().String(),
		MatchID:       mc.MatchID,
		Market:        m,
		Side:          m.Side(),
		Odds:          odds,
		Probability:   p,
		Edge:          edge,
		KellyFraction: KellyFraction(p, odds, b.cfg.KellyFraction, b.cfg.KellyCap),
		Confidence:    confidence,
		SweetSpot:     signals.IsSweetSpot(edge),
		LowCoverage:   lowCoverage,
		LayerScores:   layers,
		CreatedAt:     now,
	}

	if trap := signals.TrapMatch(mc.Traps, m); trap != nil {
		pick.TrapFiltered = true
		score = 0
	}

	pick.Score = int(math.Round(score))
	pick.Label = labelFor(pick.Score)
	pick.Rationale = rationale(mc, &pick)
	return pick
}

// KellyFraction computes the capped fractional-Kelly stake for a decimal
// price: k = (b*p - q) / b with b = odds-1, scaled by fraction and capped.
func KellyFraction(p, odds, fraction, maxStake float64) float64 {
	if odds <= 1 || p <= 0 || p >= 1 {
		return 0
	}
	b := odds - 1
	q := 1 - p
	k := (b*p - q) / b
	k = math.Max(0, k) * fraction
	return math.Min(k, maxStake)
}

type namedContribution struct {
	name         string
	contribution signals.Contribution
}

func evalSignals(mc *intel.MatchContext) []namedContribution {
	stack := signals.Stack()
	out := make([]namedContribution, 0, len(stack))
	for _, sig := range stack {
		if c := sig.Eval(mc); c != nil {
			out = append(out, namedContribution{name: sig.Name, contribution: c})
		}
	}
	return out
}

// rank orders picks by score, breaking ties on edge, then confidence, then
// market id so identical inputs always produce identical output order.
func rank(out []QuantPick) {
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Edge != b.Edge {
			return a.Edge > b.Edge
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Market < b.Market
	})
}

func rationale(mc *intel.MatchContext, p *QuantPick) string {
	s := fmt.Sprintf("%s %s vs %s @ %.2f: model %.1f%% vs implied %.1f%% (edge %+.1f%%)",
		p.Side, mc.HomeTeam, mc.AwayTeam, p.Odds,
		p.Probability*100, market.ImpliedProb(p.Odds)*100, p.Edge*100)
	if fair, ok := mc.Odds.FairProb(p.Market); ok {
		s += fmt.Sprintf(", no-vig %.1f%%", fair*100)
	}
	if p.SweetSpot {
		s += ", sweet-spot edge"
	}
	if p.LowCoverage {
		s += ", thin context data"
	}
	if p.Edge > 0.15 {
		s += ", suspect edge discounted"
	}
	if p.TrapFiltered {
		s += ", known trap pattern"
	}
	return s
}
