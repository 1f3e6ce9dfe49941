package montecarlo

import (
	"context"
	"math/rand"

	"footy-quant/internal/intel"
	"footy-quant/internal/market"
	"footy-quant/internal/mathutil"
)

const (
	// cancelCheckInterval is how many samples run between cooperative
	// cancellation checks.
	cancelCheckInterval = 1024

	// copulaShift is the probability mass moved onto (or off) the
	// both-teams-score outcome when the two styles covary.
	copulaShift = 0.05

	// tacticalBlendCap bounds the tactical-matrix weight regardless of
	// sample size.
	tacticalBlendCap    = 0.4
	tacticalFullSamples = 30
)

// Params are the simulator inputs. Seed must be set by the caller so runs
// are reproducible; the simulator itself never reads system randomness.
type Params struct {
	HomeXG    float64
	AwayXG    float64
	HomeStyle intel.Style
	AwayStyle intel.Style
	Tactical  *intel.TacticalEntry
	Coverage  float64 // context coverage fraction, feeds confidence
	Samples   int
	Seed      int64
}

// Outcome is the joint-distribution summary over the market catalogue.
type Outcome struct {
	Probabilities map[market.Market]float64
	Confidence    float64
	Samples       int
	AvgTotalGoals float64
	Aborted       bool
}

// Simulate draws Samples independent (home, away) goal pairs from Poisson
// distributions parameterised by the adjusted xG values, applies the
// style covariance correction and the tactical-matrix blend, and reports
// probabilities for every market in the catalogue.
//
// Cancellation is cooperative: ctx is checked every 1024 samples. An
// aborted run returns Confidence 0 and no probabilities.
func Simulate(ctx context.Context, p Params) Outcome {
	if p.Samples <= 0 {
		p.Samples = 10_000
	}
	rng := rand.New(rand.NewSource(p.Seed))

	var (
		homeWins, draws, awayWins       int
		over15, over25, over35, bttsYes int
		totalGoals                      int
	)

	for i := 0; i < p.Samples; i++ {
		if i%cancelCheckInterval == 0 && ctx.Err() != nil {
			return Outcome{Aborted: true}
		}

		hg := mathutil.PoissonSample(rng, p.HomeXG)
		ag := mathutil.PoissonSample(rng, p.AwayXG)
		total := hg + ag

		switch {
		case hg > ag:
			homeWins++
		case hg == ag:
			draws++
		default:
			awayWins++
		}
		if total > 1 {
			over15++
		}
		if total > 2 {
			over25++
		}
		if total > 3 {
			over35++
		}
		if hg > 0 && ag > 0 {
			bttsYes++
		}
		totalGoals += total
	}

	n := float64(p.Samples)
	pHome := float64(homeWins) / n
	pDraw := float64(draws) / n
	pAway := float64(awayWins) / n
	pOver15 := float64(over15) / n
	pOver25 := float64(over25) / n
	pOver35 := float64(over35) / n
	pBTTS := float64(bttsYes) / n

	pBTTS, pOver25 = applyStyleCovariance(p.HomeStyle, p.AwayStyle, pBTTS, pOver25)
	pBTTS, pOver25 = blendTactical(p.Tactical, pBTTS, pOver25)

	probs := map[market.Market]float64{
		market.Home:    pHome,
		market.Draw:    pDraw,
		market.Away:    pAway,
		market.DC1X:    pHome + pDraw,
		market.DCX2:    pDraw + pAway,
		market.DC12:    pHome + pAway,
		market.Over15:  pOver15,
		market.Under15: 1 - pOver15,
		market.Over25:  pOver25,
		market.Under25: 1 - pOver25,
		market.Over35:  pOver35,
		market.Under35: 1 - pOver35,
		market.BTTSYes: pBTTS,
		market.BTTSNo:  1 - pBTTS,
	}

	return Outcome{
		Probabilities: probs,
		Confidence:    confidence(pHome, p.Samples, p.Coverage, p.Tactical),
		Samples:       p.Samples,
		AvgTotalGoals: float64(totalGoals) / n,
	}
}

// applyStyleCovariance shifts both-score mass when the two styles covary:
// two pressing/attacking sides produce more open games than independent
// Poisson margins imply, two defensive sides fewer.
func applyStyleCovariance(home, away intel.Style, pBTTS, pOver25 float64) (float64, float64) {
	var shift float64
	switch {
	case home.OffensiveClass() && away.OffensiveClass():
		shift = copulaShift
	case home.DefensiveClass() && away.DefensiveClass():
		shift = -copulaShift
	default:
		return pBTTS, pOver25
	}
	pBTTS = mathutil.Clamp(pBTTS+shift, 0, 1)
	pOver25 = mathutil.Clamp(pOver25+shift/2, 0, 1)
	return pBTTS, pOver25
}

// blendTactical mixes the tactical-matrix historical rates into the
// empirical estimate, weighted by matrix sample size: min(sample/30, 0.4).
func blendTactical(entry *intel.TacticalEntry, pBTTS, pOver25 float64) (float64, float64) {
	if entry == nil || entry.SampleSize <= 0 {
		return pBTTS, pOver25
	}
	w := float64(entry.SampleSize) / tacticalFullSamples
	if w > tacticalBlendCap {
		w = tacticalBlendCap
	}
	pBTTS = (1-w)*pBTTS + w*entry.BTTSProbability
	pOver25 = (1-w)*pOver25 + w*entry.Over25Prob
	return pBTTS, pOver25
}

// confidence folds three signals into [0, 1]: the precision of the win
// probability estimate, the context coverage, and the tactical-matrix
// sample size.
func confidence(pHome float64, samples int, coverage float64, entry *intel.TacticalEntry) float64 {
	se := mathutil.BinomialStdErr(pHome, samples)
	seComponent := 1 / (1 + 200*se)

	matrixComponent := 0.0
	if entry != nil {
		matrixComponent = float64(entry.SampleSize) / tacticalFullSamples
		if matrixComponent > 1 {
			matrixComponent = 1
		}
	}

	return mathutil.Clamp(0.3*seComponent+0.5*coverage+0.2*matrixComponent, 0, 1)
}
