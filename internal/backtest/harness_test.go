package backtest

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"footy-quant/internal/config"
	"footy-quant/internal/engine"
	"footy-quant/internal/intel"
	"footy-quant/internal/market"
	"footy-quant/internal/picks"
	"footy-quant/internal/store"
)

// fakeData serves historical matches and odds from memory.
type fakeData struct {
	matches []store.Match
	opening map[string]map[string]market.OddsMap // match -> book -> odds
	closing map[string]market.OddsMap
}

func (f *fakeData) FinishedMatches(_ context.Context) ([]store.Match, error) {
	return f.matches, nil
}

func (f *fakeData) OpeningOddsByBook(_ context.Context, matchID string) (map[string]market.OddsMap, error) {
	return f.opening[matchID], nil
}

func (f *fakeData) ClosingOdds(_ context.Context, matchID string, _ time.Time) (market.OddsMap, error) {
	return f.closing[matchID], nil
}

// emptySource has no context at all; the fallback model still runs.
type emptySource struct{}

func (emptySource) TeamIntel(context.Context, string, string) (*intel.TeamIntelligence, error) {
	return nil, nil
}
func (emptySource) TeamClass(context.Context, string, string) (*intel.TeamClass, error) {
	return nil, nil
}
func (emptySource) TeamMomentum(context.Context, string) (*intel.TeamMomentum, error) {
	return nil, nil
}
func (emptySource) HeadToHead(context.Context, string, string) (*intel.HeadToHead, error) {
	return nil, nil
}
func (emptySource) Referee(context.Context, string) (*intel.RefereeIntelligence, error) {
	return nil, nil
}
func (emptySource) TacticalEntry(context.Context, intel.Style, intel.Style) (*intel.TacticalEntry, error) {
	return nil, nil
}
func (emptySource) MarketTraps(context.Context, string) ([]intel.MarketTrap, error) {
	return nil, nil
}

func kickoff(i int) time.Time {
	return time.Date(2026, 1, 1, 15, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

// coinFlipData builds n finished matches where the home side wins every
// second one, priced at even odds on both outcomes.
func coinFlipData(n int) *fakeData {
	data := &fakeData{
		opening: make(map[string]map[string]market.OddsMap),
		closing: make(map[string]market.OddsMap),
	}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("m%02d", i)
		hg, ag := 1, 0
		if i%2 == 1 {
			hg, ag = 0, 1
		}
		data.matches = append(data.matches, store.Match{
			MatchID: id, HomeTeam: "Alpha", AwayTeam: "Beta",
			KickoffTime: kickoff(i), HomeGoals: hg, AwayGoals: ag, Finished: true,
		})
		odds := market.OddsMap{market.Home: 2.0, market.Away: 2.0}
		data.opening[id] = map[string]market.OddsMap{"bookie": odds}
		data.closing[id] = odds
	}
	return data
}

// TestRunAggregatesCoinFlips drives the report through a synthetic pick
// stream: one home pick per match at evens, model probability 3% above
// fair value, line never moving. Half the picks win.
func TestRunAggregatesCoinFlips(t *testing.T) {
	data := coinFlipData(30)
	h := New(emptySource{}, data, config.Load())
	h.analyze = func(_ context.Context, req engine.MatchRequest, _ time.Time) (*engine.Result, error) {
		p := picks.QuantPick{
			ID: req.MatchID + "-home", MatchID: req.MatchID,
			Market: market.Home, Side: "HOME",
			Odds: 2.0, Probability: 0.515, Edge: 0.515*2.0 - 1,
			Score: 20, Label: picks.LabelLight,
		}
		return &engine.Result{MatchID: req.MatchID, Picks: []picks.QuantPick{p}}, nil
	}

	report, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Matches != 30 || report.Analyzed != 30 || report.Failed != 0 {
		t.Fatalf("counts = %d/%d/%d", report.Matches, report.Analyzed, report.Failed)
	}
	if report.Overall.Picks != 30 || report.Overall.Wins != 15 {
		t.Fatalf("picks/wins = %d/%d", report.Overall.Picks, report.Overall.Wins)
	}
	if wr := report.Overall.WinRate(); wr != 0.5 {
		t.Errorf("win rate = %.3f, want 0.500", wr)
	}
	if !closeTo(report.Overall.MeanEdge, 0.03) {
		t.Errorf("mean edge = %.4f, want 0.03", report.Overall.MeanEdge)
	}
	if !closeTo(report.Overall.MeanCLV, 0) {
		t.Errorf("mean clv = %.4f, want 0 with an unmoving line", report.Overall.MeanCLV)
	}
	// 15 wins at +1, 15 losses at -1: flat ROI is zero.
	if !closeTo(report.Overall.ROI(), 0) {
		t.Errorf("roi = %.4f, want 0", report.Overall.ROI())
	}
	// Evens on both outcomes is a vig-free book.
	if !closeTo(report.MeanOverround, 0) {
		t.Errorf("mean overround = %.4f, want 0", report.MeanOverround)
	}

	home := report.ByMarket[market.Home]
	if home == nil || home.Picks != 30 {
		t.Errorf("per-market breakdown missing: %+v", home)
	}
}

func TestRunSkipsFailedMatch(t *testing.T) {
	data := coinFlipData(3)
	h := New(emptySource{}, data, config.Load())
	h.analyze = func(_ context.Context, req engine.MatchRequest, _ time.Time) (*engine.Result, error) {
		if req.MatchID == "m01" {
			return nil, fmt.Errorf("simulated analysis failure")
		}
		return &engine.Result{MatchID: req.MatchID}, nil
	}

	report, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("failed = %d, want 1", report.Failed)
	}
	if report.Analyzed != 2 {
		t.Errorf("analyzed = %d, want 2", report.Analyzed)
	}
}

func TestRunSkipsUnpricedMatch(t *testing.T) {
	data := coinFlipData(2)
	delete(data.opening, "m00")

	h := New(emptySource{}, data, config.Load())
	h.analyze = func(_ context.Context, req engine.MatchRequest, _ time.Time) (*engine.Result, error) {
		return &engine.Result{MatchID: req.MatchID}, nil
	}

	report, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Analyzed != 1 || report.Failed != 0 {
		t.Errorf("analyzed/failed = %d/%d, want 1/0", report.Analyzed, report.Failed)
	}
}

func TestRunIgnoresNonRecommendedPicks(t *testing.T) {
	data := coinFlipData(1)
	h := New(emptySource{}, data, config.Load())
	h.analyze = func(_ context.Context, req engine.MatchRequest, _ time.Time) (*engine.Result, error) {
		return &engine.Result{MatchID: req.MatchID, Picks: []picks.QuantPick{
			{MatchID: req.MatchID, Market: market.Home, Odds: 2.0, TrapFiltered: true},
			{MatchID: req.MatchID, Market: market.Away, Odds: 2.0, RealityRejected: true},
		}}, nil
	}

	report, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Overall.Picks != 0 {
		t.Errorf("filtered picks leaked into the report: %d", report.Overall.Picks)
	}
}

func TestRunReportsOverround(t *testing.T) {
	data := coinFlipData(2)
	vigged := market.OddsMap{market.Home: 1.90, market.Away: 1.90}
	for id := range data.opening {
		data.opening[id] = map[string]market.OddsMap{"bookie": vigged}
	}

	h := New(emptySource{}, data, config.Load())
	h.analyze = func(_ context.Context, req engine.MatchRequest, _ time.Time) (*engine.Result, error) {
		return &engine.Result{MatchID: req.MatchID}, nil
	}

	report, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := 2/1.90 - 1
	if !closeTo(report.MeanOverround, want) {
		t.Errorf("mean overround = %.4f, want %.4f", report.MeanOverround, want)
	}
}

func TestRunEndToEndWithRealEngine(t *testing.T) {
	cfg := config.Load()
	cfg.MCSamples = 5000
	cfg.MCSeed = 42

	data := coinFlipData(4)
	report, err := New(emptySource{}, data, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Analyzed != 4 || report.Failed != 0 {
		t.Errorf("analyzed/failed = %d/%d", report.Analyzed, report.Failed)
	}
}

// fixedIntelSource serves one intelligence row with a fixed update stamp.
type fixedIntelSource struct {
	emptySource
	row *intel.TeamIntelligence
}

func (f fixedIntelSource) TeamIntel(context.Context, string, string) (*intel.TeamIntelligence, error) {
	return f.row, nil
}

func TestAsOfSourceDropsFutureIntel(t *testing.T) {
	cutoff := time.Date(2026, 1, 10, 15, 0, 0, 0, time.UTC)
	row := &intel.TeamIntelligence{TeamName: "Alpha", MatchesAnalyzed: 10}

	tests := []struct {
		name      string
		updatedAt time.Time
		want      bool
	}{
		{"stamped before kickoff", cutoff.Add(-time.Hour), true},
		{"stamped at kickoff", cutoff, true},
		{"stamped after kickoff", cutoff.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row.UpdatedAt = tt.updatedAt
			src := asOfSource{src: fixedIntelSource{row: row}, cutoff: cutoff}
			ti, err := src.TeamIntel(context.Background(), "Alpha", "")
			if err != nil {
				t.Fatalf("TeamIntel: %v", err)
			}
			if got := ti != nil; got != tt.want {
				t.Errorf("visible = %v, want %v", got, tt.want)
			}
		})
	}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
