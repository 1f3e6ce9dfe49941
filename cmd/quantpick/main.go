package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"footy-quant/internal/alerts"
	"footy-quant/internal/bankroll"
	"footy-quant/internal/config"
	"footy-quant/internal/engine"
	"footy-quant/internal/market"
	"footy-quant/internal/names"
	"footy-quant/internal/store"
)

func main() {
	var (
		matchID     = flag.String("match", "", "match id (required)")
		home        = flag.String("home", "", "home team name (required)")
		away        = flag.String("away", "", "away team name (required)")
		competition = flag.String("competition", "", "competition id")
		referee     = flag.String("referee", "", "appointed referee")
		kickoffStr  = flag.String("kickoff", "", "kickoff time, RFC3339 (default: in 24h)")
		oddsStr     = flag.String("odds", "", "comma-separated market=price pairs (required)")
		aliasPath   = flag.String("aliases", "", "path to team alias table (JSON)")
		bankrollAmt = flag.Float64("bankroll", 1000, "bankroll in stake units")
		timeout     = flag.Duration("timeout", 30*time.Second, "analysis deadline")
	)
	flag.Parse()

	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if *matchID == "" || *home == "" || *away == "" || *oddsStr == "" {
		flag.Usage()
		os.Exit(2)
	}

	odds, err := parseOdds(*oddsStr)
	if err != nil {
		slog.Error("bad odds argument", "err", err)
		os.Exit(2)
	}

	kickoff := time.Now().Add(24 * time.Hour)
	if *kickoffStr != "" {
		kickoff, err = time.Parse(time.RFC3339, *kickoffStr)
		if err != nil {
			slog.Error("bad kickoff argument", "err", err)
			os.Exit(2)
		}
	}

	resolver, err := loadResolver(*aliasPath)
	if err != nil {
		slog.Error("loading alias table", "err", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DBPath, resolver)
	if err != nil {
		slog.Error("opening store", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	notifier := alerts.NewNotifier(5 * time.Minute)
	e := engine.New(db, db, notifier, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, err := e.AnalyzeMatch(ctx, engine.MatchRequest{
		MatchID:     *matchID,
		HomeTeam:    *home,
		AwayTeam:    *away,
		Competition: *competition,
		Referee:     *referee,
		Kickoff:     kickoff,
		Odds:        odds,
	})
	if err != nil {
		slog.Error("analysis failed", "match", *matchID, "err", err)
		os.Exit(1)
	}

	// Record the analysed prices as the opening snapshot for CLV tracking.
	if err := db.UpsertMatch(ctx, store.Match{
		MatchID: *matchID, HomeTeam: *home, AwayTeam: *away,
		Competition: *competition, Referee: *referee, KickoffTime: kickoff,
	}); err != nil {
		slog.Warn("recording match row", "err", err)
	}
	now := time.Now().UTC()
	for m, price := range odds {
		if err := db.AddSnapshot(ctx, *matchID, "manual", m, price, now); err != nil {
			slog.Warn("recording odds snapshot", "market", string(m), "err", err)
		}
	}

	sizer := bankroll.NewSizer(*bankrollAmt, bankroll.NewLimits(cfg.PerMatchStakeCap, cfg.PerDayStakeCap))
	stakes := sizer.SizeMatch(res.Picks)

	fmt.Printf("%s vs %s: %d picks (%d recommended), coverage %.0f%%, confidence %.2f\n",
		*home, *away, len(res.Picks), res.Stats.Emitted, res.Stats.Coverage*100, res.Stats.Confidence)
	for _, s := range stakes {
		fmt.Printf("  stake %s: %s units (%.2f%% of bankroll)\n",
			s.Market.Side(), s.Amount.StringFixed(2), s.Fraction.InexactFloat64()*100)
	}
}

// parseOdds decodes "home=1.45,over_2_5=1.75" into an odds map.
func parseOdds(s string) (market.OddsMap, error) {
	odds := make(market.OddsMap)
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("bad pair %q, want market=price", pair)
		}
		m := market.Market(kv[0])
		if !m.Valid() {
			return nil, fmt.Errorf("unknown market %q", kv[0])
		}
		price, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad price for %s: %w", kv[0], err)
		}
		odds[m] = price
	}
	return odds, nil
}

// loadResolver reads an optional JSON alias table mapping canonical team
// name to its variants.
func loadResolver(path string) (*names.Resolver, error) {
	if path == "" {
		return names.NewResolver(nil), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var table map[string][]string
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return names.NewResolver(table), nil
}
