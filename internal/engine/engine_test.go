package engine

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"footy-quant/internal/config"
	"footy-quant/internal/intel"
	"footy-quant/internal/market"
	"footy-quant/internal/picks"
)

// fakeSource is an in-memory ContextSource seeded per test.
type fakeSource struct {
	intelRows map[string]*intel.TeamIntelligence
	classRows map[string]*intel.TeamClass
	momentum  map[string]*intel.TeamMomentum
	h2h       *intel.HeadToHead
	referee   *intel.RefereeIntelligence
	tactical  *intel.TacticalEntry
	traps     map[string][]intel.MarketTrap
}

func (f *fakeSource) TeamIntel(_ context.Context, team, _ string) (*intel.TeamIntelligence, error) {
	return f.intelRows[team], nil
}

func (f *fakeSource) TeamClass(_ context.Context, team, _ string) (*intel.TeamClass, error) {
	return f.classRows[team], nil
}

func (f *fakeSource) TeamMomentum(_ context.Context, team string) (*intel.TeamMomentum, error) {
	return f.momentum[team], nil
}

func (f *fakeSource) HeadToHead(_ context.Context, _, _ string) (*intel.HeadToHead, error) {
	return f.h2h, nil
}

func (f *fakeSource) Referee(_ context.Context, _ string) (*intel.RefereeIntelligence, error) {
	return f.referee, nil
}

func (f *fakeSource) TacticalEntry(_ context.Context, _, _ intel.Style) (*intel.TacticalEntry, error) {
	return f.tactical, nil
}

func (f *fakeSource) MarketTraps(_ context.Context, team string) ([]intel.MarketTrap, error) {
	return f.traps[team], nil
}

// memStore captures persisted picks.
type memStore struct {
	saved []picks.QuantPick
}

func (s *memStore) SavePicks(_ context.Context, list []picks.QuantPick) error {
	s.saved = append(s.saved, list...)
	return nil
}

func fullSource() *fakeSource {
	return &fakeSource{
		intelRows: map[string]*intel.TeamIntelligence{
			"Liverpool": {
				TeamName: "Liverpool", MatchesAnalyzed: 20,
				HomeGoalsScoredAvg: 2.4, HomeGoalsConcededAvg: 0.9,
				AwayGoalsScoredAvg: 1.9, AwayGoalsConcededAvg: 1.1,
				CleanSheetRate: 0.45, BTTSRate: 0.55, Style: "attacking",
				UpdatedAt: time.Now(),
			},
			"Sunderland": {
				TeamName: "Sunderland", MatchesAnalyzed: 18,
				HomeGoalsScoredAvg: 1.1, HomeGoalsConcededAvg: 1.4,
				AwayGoalsScoredAvg: 0.8, AwayGoalsConcededAvg: 1.9,
				CleanSheetRate: 0.22, BTTSRate: 0.50, Style: "defensive",
				UpdatedAt: time.Now(),
			},
		},
		classRows: map[string]*intel.TeamClass{
			"Liverpool":  {TeamName: "Liverpool", Tier: "S", HomeFortressFactor: 1.12, AwayWeaknessFactor: 1.0},
			"Sunderland": {TeamName: "Sunderland", Tier: "C", HomeFortressFactor: 1.0, AwayWeaknessFactor: 1.08},
		},
		momentum: map[string]*intel.TeamMomentum{
			"Liverpool":  {TeamName: "Liverpool", Score: 0.6, FormString: "WWWDW", PointsLast5: 13},
			"Sunderland": {TeamName: "Sunderland", Score: -0.4, FormString: "LLDLW", PointsLast5: 4},
		},
		h2h: &intel.HeadToHead{
			TeamA: "Liverpool", TeamB: "Sunderland",
			TotalMatches: 10, BTTSPct: 0.40, Over25Pct: 0.60, AvgGoals: 2.8,
		},
		referee: &intel.RefereeIntelligence{
			Name: "M. Oliver", AvgCards: 3.5, AvgGoalsPerGame: 2.9,
			GoalsModifier: 0.1, Tendency: "over",
		},
		tactical: &intel.TacticalEntry{
			StyleA: intel.StyleAttacking, StyleB: intel.StyleDefensive,
			BTTSProbability: 0.45, Over25Prob: 0.55,
			AvgGoalsTotal: 2.6, SampleSize: 40, ConfidenceLevel: 0.8,
		},
		traps: map[string][]intel.MarketTrap{},
	}
}

func testConfig() config.Config {
	cfg := config.Load()
	cfg.MCSamples = 5000
	cfg.MCSeed = 42
	cfg.LockDir = "" // locking covered by its own test
	return cfg
}

func fullOdds() market.OddsMap {
	return market.OddsMap{
		market.Home: 1.45, market.Draw: 4.60, market.Away: 7.50,
		market.DC1X: 1.12, market.DCX2: 2.70, market.DC12: 1.20,
		market.Over15: 1.25, market.Under15: 4.00,
		market.Over25: 1.75, market.Under25: 2.10,
		market.Over35: 2.90, market.Under35: 1.42,
		market.BTTSYes: 2.00, market.BTTSNo: 1.80,
	}
}

func liverpoolRequest() MatchRequest {
	return MatchRequest{
		MatchID:     "pl-2026-lfc-sun",
		HomeTeam:    "Liverpool",
		AwayTeam:    "Sunderland",
		Competition: "premier_league",
		Referee:     "M. Oliver",
		Kickoff:     time.Date(2026, 1, 17, 15, 0, 0, 0, time.UTC),
		Odds:        fullOdds(),
	}
}

func TestAnalyzeMatchFullContext(t *testing.T) {
	store := &memStore{}
	e := New(fullSource(), store, nil, testConfig())

	res, err := e.AnalyzeMatch(context.Background(), liverpoolRequest())
	if err != nil {
		t.Fatalf("AnalyzeMatch: %v", err)
	}

	if res.Stats.Coverage != 1.0 {
		t.Errorf("coverage = %.2f, want 1.0", res.Stats.Coverage)
	}
	if res.Stats.Confidence <= 0.5 {
		t.Errorf("confidence = %.2f, want > 0.5 with full context", res.Stats.Confidence)
	}
	if res.Stats.HomeXG <= res.Stats.AwayXG {
		t.Errorf("home xg %.2f should exceed away xg %.2f for a tier S home side",
			res.Stats.HomeXG, res.Stats.AwayXG)
	}
	if len(res.XGTrace) == 0 {
		t.Error("expected a populated xg trace")
	}
	if res.Stats.Emitted == 0 {
		t.Error("expected at least one emitted pick with a priced catalogue")
	}
	if len(store.saved) != len(res.Picks) {
		t.Errorf("stored %d picks, result has %d", len(store.saved), len(res.Picks))
	}

	// Ranked output: scores never increase.
	for i := 1; i < len(res.Picks); i++ {
		if res.Picks[i].Score > res.Picks[i-1].Score {
			t.Errorf("picks not ranked: %d before %d", res.Picks[i-1].Score, res.Picks[i].Score)
		}
	}
}

func TestAnalyzeMatchDeterministic(t *testing.T) {
	e := New(fullSource(), nil, nil, testConfig())

	a, err := e.AnalyzeMatch(context.Background(), liverpoolRequest())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := e.AnalyzeMatch(context.Background(), liverpoolRequest())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(a.Picks) != len(b.Picks) {
		t.Fatalf("pick counts differ: %d vs %d", len(a.Picks), len(b.Picks))
	}
	for i := range a.Picks {
		if a.Picks[i].Market != b.Picks[i].Market ||
			a.Picks[i].Probability != b.Picks[i].Probability ||
			a.Picks[i].Score != b.Picks[i].Score {
			t.Errorf("pick %d differs between seeded runs: %+v vs %+v",
				i, a.Picks[i], b.Picks[i])
		}
	}
}

func TestAnalyzeMatchEmptyContext(t *testing.T) {
	empty := &fakeSource{
		intelRows: map[string]*intel.TeamIntelligence{},
		classRows: map[string]*intel.TeamClass{},
		momentum:  map[string]*intel.TeamMomentum{},
		traps:     map[string][]intel.MarketTrap{},
	}
	e := New(empty, nil, nil, testConfig())

	res, err := e.AnalyzeMatch(context.Background(), liverpoolRequest())
	if err != nil {
		t.Fatalf("AnalyzeMatch: %v", err)
	}

	if res.Stats.Coverage != 0 {
		t.Errorf("coverage = %.2f, want 0", res.Stats.Coverage)
	}
	if res.Stats.Confidence > 0.3 {
		t.Errorf("confidence = %.2f, must not exceed 0.3 without context", res.Stats.Confidence)
	}
	// Both sides fall back to the same flat expected goals.
	if res.Stats.HomeXG != res.Stats.AwayXG {
		t.Errorf("fallback xg asymmetric: %.2f vs %.2f", res.Stats.HomeXG, res.Stats.AwayXG)
	}

	// The fallback model fabricates edges from the prices alone, so at
	// most one pick may surface and every pick carries the flag.
	recommended := 0
	for _, p := range res.Picks {
		if !p.LowCoverage {
			t.Errorf("pick %s not flagged low coverage", p.Market)
		}
		if p.Recommended() {
			recommended++
		}
	}
	if recommended > 1 {
		t.Errorf("%d picks recommended without any context, want at most 1", recommended)
	}
	if res.Stats.Emitted > 1 {
		t.Errorf("stats.Emitted = %d without any context, want at most 1", res.Stats.Emitted)
	}
}

func TestAnalyzeMatchDeadlineAbort(t *testing.T) {
	cfg := testConfig()
	cfg.MCSamples = 2_000_000 // long enough to straddle the cancel check

	e := New(fullSource(), nil, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.AnalyzeMatch(ctx, liverpoolRequest())
	if err == nil {
		t.Fatal("expected context error")
	}
	if !res.Stats.Aborted {
		t.Error("aborted flag not set")
	}
	if len(res.Picks) != 0 {
		t.Errorf("aborted run emitted %d picks", len(res.Picks))
	}
	if res.Stats.FatalErrors == 0 || len(res.Errors) == 0 {
		t.Errorf("aborted run must surface the failure: fatal=%d errors=%d",
			res.Stats.FatalErrors, len(res.Errors))
	}
}

func TestAnalyzeMatchValidation(t *testing.T) {
	e := New(fullSource(), nil, nil, testConfig())

	tests := []struct {
		name string
		mut  func(*MatchRequest)
	}{
		{"missing match id", func(r *MatchRequest) { r.MatchID = "" }},
		{"missing home team", func(r *MatchRequest) { r.HomeTeam = "" }},
		{"missing away team", func(r *MatchRequest) { r.AwayTeam = "" }},
		{"no odds", func(r *MatchRequest) { r.Odds = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := liverpoolRequest()
			tt.mut(&req)
			res, err := e.AnalyzeMatch(context.Background(), req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if len(res.Picks) != 0 {
				t.Errorf("invalid request emitted %d picks", len(res.Picks))
			}
			if res.Stats.FatalErrors != 1 || len(res.Errors) != 1 {
				t.Errorf("envelope fatal=%d errors=%d, want 1/1",
					res.Stats.FatalErrors, len(res.Errors))
			}
		})
	}
}

// failStore rejects every write.
type failStore struct{}

func (failStore) SavePicks(context.Context, []picks.QuantPick) error {
	return errors.New("disk full")
}

func TestAnalyzeMatchStoreFailure(t *testing.T) {
	e := New(fullSource(), failStore{}, nil, testConfig())

	res, err := e.AnalyzeMatch(context.Background(), liverpoolRequest())
	if err == nil {
		t.Fatal("expected a persistence error")
	}
	if len(res.Picks) != 0 {
		t.Errorf("failed persistence returned %d picks", len(res.Picks))
	}
	if res.Stats.FatalErrors != 1 {
		t.Errorf("stats.FatalErrors = %d, want 1", res.Stats.FatalErrors)
	}
	if len(res.Errors) == 0 {
		t.Error("fatal error missing from the envelope")
	}
}

func TestAnalyzeMatchTrapFiltered(t *testing.T) {
	src := fullSource()
	src.traps["Sunderland"] = []intel.MarketTrap{
		{TeamName: "Sunderland", MarketGroup: "total_2_5", Direction: "OVER_25", Note: "historical trap"},
	}
	e := New(src, nil, nil, testConfig())

	res, err := e.AnalyzeMatch(context.Background(), liverpoolRequest())
	if err != nil {
		t.Fatalf("AnalyzeMatch: %v", err)
	}

	for _, p := range res.Picks {
		if p.Market == market.Over25 {
			if !p.TrapFiltered {
				t.Error("over 2.5 pick not trap filtered")
			}
			if p.Recommended() {
				t.Error("trap filtered pick must not be recommended")
			}
		}
	}
}

func TestMatchLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := acquireLock(dir, "m/1")
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}

	if _, err := acquireLock(dir, "m/1"); !errors.Is(err, ErrMatchLocked) {
		t.Errorf("second acquire: err = %v, want ErrMatchLocked", err)
	}

	// A different match is unaffected.
	other, err := acquireLock(dir, "m/2")
	if err != nil {
		t.Errorf("other match: %v", err)
	}
	other.release()

	lock.release()
	relocked, err := acquireLock(dir, "m/1")
	if err != nil {
		t.Errorf("reacquire after release: %v", err)
	}
	relocked.release()
}

func TestMatchLockBreaksStale(t *testing.T) {
	dir := t.TempDir()

	lock, err := acquireLock(dir, "stale")
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	old := time.Now().Add(-staleLockAge - time.Minute)
	if err := os.Chtimes(lock.path, old, old); err != nil {
		t.Fatalf("aging lock file: %v", err)
	}

	fresh, err := acquireLock(dir, "stale")
	if err != nil {
		t.Fatalf("stale lock not broken: %v", err)
	}
	fresh.release()
}
