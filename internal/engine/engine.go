package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"footy-quant/internal/alerts"
	"footy-quant/internal/config"
	"footy-quant/internal/intel"
	"footy-quant/internal/market"
	"footy-quant/internal/montecarlo"
	"footy-quant/internal/picks"
	"footy-quant/internal/signals"
	"footy-quant/internal/xg"
)

// PickStore is the persistence surface the engine writes picks to.
type PickStore interface {
	SavePicks(ctx context.Context, list []picks.QuantPick) error
}

// MatchRequest is the input for one fixture analysis. Odds must carry at
// least one priced market; everything else degrades to fallbacks.
type MatchRequest struct {
	MatchID     string
	HomeTeam    string
	AwayTeam    string
	Competition string
	Referee     string
	Kickoff     time.Time

	Odds     market.OddsMap
	Absences []intel.Absence
}

// Stats is the per-match analysis summary stored alongside the picks.
type Stats struct {
	picks.GateStats

	Coverage      float64
	Confidence    float64
	HomeXG        float64
	AwayXG        float64
	AvgTotalGoals float64
	Samples       int
	Aborted       bool
	FatalErrors   int
}

// Result is the analysis envelope for one match. Errors collects per-entity
// read failures, which leave the picks valid, and any fatal failure, which
// empties the pick list and bumps Stats.FatalErrors.
type Result struct {
	MatchID string
	Picks   []picks.QuantPick
	Stats   Stats
	XGTrace []xg.Step
	Errors  []error
}

// Engine runs the full analysis pipeline for one match: context prefetch,
// expected goals, Monte Carlo simulation, signal scoring, reality check,
// persistence and alerting.
type Engine struct {
	prefetcher *intel.Prefetcher
	builder    *picks.Builder
	rules      []picks.RealityRule
	notifier   *alerts.Notifier
	store      PickStore
	cfg        config.Config
}

// New creates an engine. store and notifier may be nil; analysis then runs
// without persistence or alerting.
func New(src intel.ContextSource, store PickStore, notifier *alerts.Notifier, cfg config.Config) *Engine {
	return &Engine{
		prefetcher: intel.NewPrefetcher(src, cfg.CompetitionFilter),
		builder: picks.NewBuilder(picks.BuilderConfig{
			MinEdge:       cfg.MinEdge,
			KellyFraction: cfg.KellyFraction,
			KellyCap:      cfg.KellyCap,
			SignalWeights: cfg.SignalWeights,
		}),
		rules:    picks.DefaultRealityRules(),
		notifier: notifier,
		store:    store,
		cfg:      cfg,
	}
}

// AnalyzeMatch runs the pipeline for one fixture. A context deadline is
// honoured cooperatively: a run aborted mid-simulation returns a Result
// with Aborted set and no picks, together with the context error.
func (e *Engine) AnalyzeMatch(ctx context.Context, req MatchRequest) (*Result, error) {
	res := &Result{MatchID: req.MatchID}

	if err := validate(req); err != nil {
		return fail(res, err)
	}

	if e.cfg.LockDir != "" {
		lock, err := acquireLock(e.cfg.LockDir, req.MatchID)
		if err != nil {
			return fail(res, err)
		}
		defer lock.release()
	}

	mc, ctxErrs, err := e.prefetcher.Fetch(ctx, req.MatchID, req.HomeTeam, req.AwayTeam,
		req.Competition, req.Referee, req.Kickoff)
	if err != nil {
		return fail(res, fmt.Errorf("prefetching context for %s: %w", req.MatchID, err))
	}
	res.Errors = ctxErrs
	mc.Odds = req.Odds
	mc.Absences = req.Absences

	est := xg.Compute(mc)
	res.XGTrace = est.Trace
	res.Stats.HomeXG = est.HomeXG
	res.Stats.AwayXG = est.AwayXG
	res.Stats.Coverage = mc.Coverage()

	seed := e.cfg.MCSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	out := montecarlo.Simulate(ctx, montecarlo.Params{
		HomeXG:    est.HomeXG,
		AwayXG:    est.AwayXG,
		HomeStyle: mc.HomeStyle(),
		AwayStyle: mc.AwayStyle(),
		Tactical:  mc.Tactical,
		Coverage:  res.Stats.Coverage,
		Samples:   e.cfg.MCSamples,
		Seed:      seed,
	})
	if out.Aborted {
		res.Stats.Aborted = true
		slog.Warn("simulation aborted", "match", req.MatchID, "err", ctx.Err())
		return fail(res, ctx.Err())
	}
	res.Stats.Confidence = out.Confidence
	res.Stats.AvgTotalGoals = out.AvgTotalGoals
	res.Stats.Samples = out.Samples

	signals.BlendH2H(out.Probabilities, mc.H2H)

	list, gates := e.builder.Build(mc, out.Probabilities, out.Confidence, time.Now().UTC())
	rejected := picks.ApplyRealityCheck(mc, list, e.rules)
	gates.RealityRejected = rejected
	gates.Emitted -= rejected
	res.Picks = list
	res.Stats.GateStats = gates

	if e.store != nil && len(list) > 0 {
		if err := e.store.SavePicks(ctx, list); err != nil {
			res.Picks = nil
			return fail(res, fmt.Errorf("persisting picks for %s: %w", req.MatchID, err))
		}
	}

	if e.notifier != nil {
		for _, p := range list {
			e.notifier.AlertPick(req.HomeTeam, req.AwayTeam, p)
		}
	}

	slog.Info("match analyzed",
		"match", req.MatchID,
		"home_xg", fmt.Sprintf("%.2f", est.HomeXG),
		"away_xg", fmt.Sprintf("%.2f", est.AwayXG),
		"coverage", fmt.Sprintf("%.2f", res.Stats.Coverage),
		"confidence", fmt.Sprintf("%.2f", out.Confidence),
		"picks", gates.Emitted,
		"context_errors", len(ctxErrs),
	)
	return res, nil
}

// fail records a fatal error in the result envelope and returns it
// alongside the error. Fatal results carry an empty pick list.
func fail(res *Result, err error) (*Result, error) {
	res.Errors = append(res.Errors, err)
	res.Stats.FatalErrors++
	return res, err
}

func validate(req MatchRequest) error {
	switch {
	case req.MatchID == "":
		return fmt.Errorf("match request missing match id")
	case req.HomeTeam == "" || req.AwayTeam == "":
		return fmt.Errorf("match %s missing team names", req.MatchID)
	case len(req.Odds) == 0:
		return fmt.Errorf("match %s has no priced markets", req.MatchID)
	}
	return nil
}
