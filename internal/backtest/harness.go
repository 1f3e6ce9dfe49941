package backtest

import (
	"context"
	"log/slog"
	"time"

	"footy-quant/internal/config"
	"footy-quant/internal/engine"
	"footy-quant/internal/intel"
	"footy-quant/internal/market"
	"footy-quant/internal/store"
)

// Source is the historical data surface the harness replays from.
// store.DB satisfies it.
type Source interface {
	FinishedMatches(ctx context.Context) ([]store.Match, error)
	OpeningOddsByBook(ctx context.Context, matchID string) (map[string]market.OddsMap, error)
	ClosingOdds(ctx context.Context, matchID string, kickoff time.Time) (market.OddsMap, error)
}

// Harness replays finished matches through the live analysis pipeline with
// opening odds and context reconstructed as of kickoff, then settles the
// emitted picks against the known final scores.
type Harness struct {
	src  intel.ContextSource
	data Source
	cfg  config.Config

	// analyze is swappable so report aggregation can be tested against a
	// synthetic pick stream.
	analyze func(ctx context.Context, req engine.MatchRequest, kickoff time.Time) (*engine.Result, error)
}

// New creates a harness over the given context source and historical data.
func New(src intel.ContextSource, data Source, cfg config.Config) *Harness {
	// Replay is single-process; the per-match worker lock does not apply.
	cfg.LockDir = ""

	h := &Harness{src: src, data: data, cfg: cfg}
	h.analyze = h.engineAnalyze
	return h
}

// engineAnalyze runs the real engine with context frozen at kickoff.
func (h *Harness) engineAnalyze(ctx context.Context, req engine.MatchRequest, kickoff time.Time) (*engine.Result, error) {
	e := engine.New(asOfSource{src: h.src, cutoff: kickoff}, nil, nil, h.cfg)
	return e.AnalyzeMatch(ctx, req)
}

// Run replays every finished match. A single match failure is logged and
// skipped; the run continues.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	matches, err := h.data.FinishedMatches(ctx)
	if err != nil {
		return nil, err
	}

	report := newReport()
	report.Matches = len(matches)

	for _, m := range matches {
		if err := h.replayMatch(ctx, m, report); err != nil {
			report.Failed++
			slog.Warn("backtest match skipped", "match", m.MatchID, "err", err)
		}
	}
	report.finalize()
	return report, nil
}

func (h *Harness) replayMatch(ctx context.Context, m store.Match, report *Report) error {
	books, err := h.data.OpeningOddsByBook(ctx, m.MatchID)
	if err != nil {
		return err
	}
	opening := market.Consensus(bookList(books))
	if len(opening) == 0 {
		// No odds were ever collected; nothing to replay.
		return nil
	}

	res, err := h.analyze(ctx, engine.MatchRequest{
		MatchID:     m.MatchID,
		HomeTeam:    m.HomeTeam,
		AwayTeam:    m.AwayTeam,
		Competition: m.Competition,
		Referee:     m.Referee,
		Kickoff:     m.KickoffTime,
		Odds:        opening,
	}, m.KickoffTime)
	if err != nil {
		return err
	}

	closing, err := h.data.ClosingOdds(ctx, m.MatchID, m.KickoffTime)
	if err != nil {
		return err
	}

	report.Analyzed++
	report.noteOverround(opening.Overround("1x2"))
	for _, p := range res.Picks {
		if !p.Recommended() {
			continue
		}
		won := p.Market.Settle(m.HomeGoals, m.AwayGoals)

		clv, hasCLV := 0.0, false
		if c, ok := closing[p.Market]; ok && c > 1.01 {
			clv = p.Odds/c - 1
			hasCLV = true
		}
		report.add(p.Market, p.Edge, p.Odds, won, clv, hasCLV)
	}
	return nil
}

func bookList(books map[string]market.OddsMap) []market.OddsMap {
	out := make([]market.OddsMap, 0, len(books))
	for _, b := range books {
		out = append(out, b)
	}
	return out
}

// asOfSource filters context reads to what was known at the cutoff time,
// so a replayed match cannot see statistics computed after it was played.
// Only team intelligence rows carry an update stamp; the remaining tables
// are slow-moving reference data passed through unchanged.
type asOfSource struct {
	src    intel.ContextSource
	cutoff time.Time
}

func (a asOfSource) TeamIntel(ctx context.Context, team, competition string) (*intel.TeamIntelligence, error) {
	ti, err := a.src.TeamIntel(ctx, team, competition)
	if err != nil {
		return nil, err
	}
	if ti != nil && ti.UpdatedAt.After(a.cutoff) {
		return nil, nil
	}
	return ti, nil
}

func (a asOfSource) TeamClass(ctx context.Context, team, competition string) (*intel.TeamClass, error) {
	return a.src.TeamClass(ctx, team, competition)
}

func (a asOfSource) TeamMomentum(ctx context.Context, team string) (*intel.TeamMomentum, error) {
	return a.src.TeamMomentum(ctx, team)
}

func (a asOfSource) HeadToHead(ctx context.Context, teamA, teamB string) (*intel.HeadToHead, error) {
	return a.src.HeadToHead(ctx, teamA, teamB)
}

func (a asOfSource) Referee(ctx context.Context, name string) (*intel.RefereeIntelligence, error) {
	return a.src.Referee(ctx, name)
}

func (a asOfSource) TacticalEntry(ctx context.Context, styleA, styleB intel.Style) (*intel.TacticalEntry, error) {
	return a.src.TacticalEntry(ctx, styleA, styleB)
}

func (a asOfSource) MarketTraps(ctx context.Context, team string) ([]intel.MarketTrap, error) {
	return a.src.MarketTraps(ctx, team)
}
