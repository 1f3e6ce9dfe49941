package picks

import (
	"time"

	"footy-quant/internal/market"
)

// Recommendation labels by composite-score band.
const (
	LabelStrong = "STRONG"
	LabelMedium = "MEDIUM"
	LabelLight  = "LIGHT"
	LabelInfo   = "INFO"
)

// QuantPick is the engine's output for one selection. Immutable once
// stored; outcome data lives in a separate row.
type QuantPick struct {
	ID      string
	MatchID string
	Market  market.Market
	Side    string

	Odds          float64 // opening decimal price
	Probability   float64 // model probability
	Edge          float64 // prob*odds - 1
	KellyFraction float64 // fraction of bankroll, capped
	Confidence    float64

	Score int
	Label string

	SweetSpot       bool
	TrapFiltered    bool
	RealityRejected bool
	LowCoverage     bool // built on fallback team data

	LayerScores map[string]float64
	Rationale   string
	CreatedAt   time.Time
}

// Recommended reports whether the pick should be surfaced to the user.
// Trap-filtered and reality-rejected picks are stored for audit only.
func (p *QuantPick) Recommended() bool {
	return !p.TrapFiltered && !p.RealityRejected
}

// Label maps a composite score to its recommendation band.
func labelFor(score int) string {
	switch {
	case score >= 60:
		return LabelStrong
	case score >= 30:
		return LabelMedium
	case score >= 10:
		return LabelLight
	}
	return LabelInfo
}

// GateStats counts what happened to each candidate market during a build.
type GateStats struct {
	Considered      int
	SkippedProb     int // probability outside [0.02, 0.98]
	SkippedOdds     int // market not priced by the book
	SkippedEdge     int // edge at or below the minimum
	TrapFiltered    int
	RealityRejected int
	CoverageSkipped int // ranked below the single low-coverage slot
	Emitted         int
}
