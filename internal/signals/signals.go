package signals

import (
	"footy-quant/internal/intel"
	"footy-quant/internal/market"
	"footy-quant/internal/mathutil"
)

// Contribution maps a market to a signed score contribution in [-1, 1].
type Contribution map[market.Market]float64

// Signal is one independent scorer over the match context. Signals are pure:
// same context, same output.
type Signal struct {
	Name string
	Eval func(*intel.MatchContext) Contribution
}

// Stack returns the full ordered signal stack. Weights are applied by the
// pick builder, not here.
func Stack() []Signal {
	return []Signal{
		{Name: "momentum", Eval: Momentum},
		{Name: "h2h", Eval: HeadToHead},
		{Name: "tactical", Eval: Tactical},
		{Name: "referee", Eval: Referee},
	}
}

// Momentum boosts the side with the better short-term form, proportional to
// the signed momentum differential.
func Momentum(mc *intel.MatchContext) Contribution {
	if mc.HomeMomentum == nil || mc.AwayMomentum == nil {
		return nil
	}
	diff := mathutil.Clamp(mc.HomeMomentum.Score-mc.AwayMomentum.Score, -1, 1)
	if diff == 0 {
		return nil
	}
	return Contribution{
		market.Home: diff,
		market.Away: -diff,
		market.DC1X: diff / 2,
		market.DCX2: -diff / 2,
	}
}

// h2hMinMatches is the meeting count below which head-to-head history is
// considered noise.
const h2hMinMatches = 5

// h2hWeight is the blend weight for a head-to-head row: min(total/20, 0.5).
func h2hWeight(total int) float64 {
	w := float64(total) / 20
	if w > 0.5 {
		w = 0.5
	}
	return w
}

// HeadToHead nudges BTTS and Over markets toward the historical tendency of
// this pairing.
func HeadToHead(mc *intel.MatchContext) Contribution {
	h := mc.H2H
	if h == nil || h.TotalMatches < h2hMinMatches {
		return nil
	}
	w := h2hWeight(h.TotalMatches)

	bttsLean := mathutil.Clamp((h.BTTSPct-0.5)*2*w, -1, 1)
	overLean := mathutil.Clamp((h.Over25Pct-0.5)*2*w, -1, 1)

	return Contribution{
		market.BTTSYes: bttsLean,
		market.BTTSNo:  -bttsLean,
		market.Over25:  overLean,
		market.Under25: -overLean,
	}
}

// Tactical leans BTTS and Over markets toward the tactical-matrix cell for
// this style pairing, weighted by its sample size.
func Tactical(mc *intel.MatchContext) Contribution {
	entry := mc.Tactical
	if entry == nil || entry.SampleSize <= 0 {
		return nil
	}
	w := float64(entry.SampleSize) / 30
	if w > 0.4 {
		w = 0.4
	}

	bttsLean := mathutil.Clamp((entry.BTTSProbability-0.5)*2*w, -1, 1)
	overLean := mathutil.Clamp((entry.Over25Prob-0.5)*2*w, -1, 1)

	return Contribution{
		market.BTTSYes: bttsLean,
		market.BTTSNo:  -bttsLean,
		market.Over25:  overLean,
		market.Under25: -overLean,
	}
}

// Referee shifts total-goals markets toward the referee's tendency.
func Referee(mc *intel.MatchContext) Contribution {
	ref := mc.Referee
	if ref == nil {
		return nil
	}

	var lean float64
	switch ref.Tendency {
	case "over":
		lean = mathutil.Clamp(0.2+ref.GoalsModifier, 0, 1)
	case "under":
		lean = -mathutil.Clamp(0.2-ref.GoalsModifier, 0, 1)
	default:
		return nil
	}

	return Contribution{
		market.Over15:  lean / 2,
		market.Under15: -lean / 2,
		market.Over25:  lean,
		market.Under25: -lean,
		market.Over35:  lean / 2,
		market.Under35: -lean / 2,
	}
}

// TrapMatch returns the stored trap matching the selection, if any.
func TrapMatch(traps []intel.MarketTrap, m market.Market) *intel.MarketTrap {
	for i := range traps {
		if traps[i].Matches(m) {
			return &traps[i]
		}
	}
	return nil
}

// Sweet-spot bands: edges between 3% and 8% are empirically the most
// reliable; edges above 15% usually mean the model is missing something.
const (
	sweetSpotLow  = 0.03
	sweetSpotHigh = 0.08
	suspectEdge   = 0.15
)

// SweetSpotMultiplier scales the composite score by edge band.
func SweetSpotMultiplier(edge float64) float64 {
	switch {
	case edge >= sweetSpotLow && edge <= sweetSpotHigh:
		return 1.25
	case edge > suspectEdge:
		return 0.8
	}
	return 1.0
}

// IsSweetSpot reports whether the edge sits in the reliable band.
func IsSweetSpot(edge float64) bool {
	return edge >= sweetSpotLow && edge <= sweetSpotHigh
}

// BlendH2H blends BTTS and Over 2.5 model probabilities toward the
// historical head-to-head rates, weight min(total/20, 0.5). Complement
// markets are recomputed so pair sums stay at 1.
func BlendH2H(probs map[market.Market]float64, h *intel.HeadToHead) {
	if h == nil || h.TotalMatches < h2hMinMatches {
		return
	}
	w := h2hWeight(h.TotalMatches)

	probs[market.BTTSYes] = (1-w)*probs[market.BTTSYes] + w*h.BTTSPct
	probs[market.BTTSNo] = 1 - probs[market.BTTSYes]
	probs[market.Over25] = (1-w)*probs[market.Over25] + w*h.Over25Pct
	probs[market.Under25] = 1 - probs[market.Over25]
}
