package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"footy-quant/internal/backtest"
	"footy-quant/internal/config"
	"footy-quant/internal/names"
	"footy-quant/internal/store"
)

func main() {
	var (
		aliasPath = flag.String("aliases", "", "path to team alias table (JSON)")
		resolve   = flag.Bool("resolve", true, "settle outstanding picks before replaying")
	)
	flag.Parse()

	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	resolver := names.NewResolver(nil)
	if *aliasPath != "" {
		raw, err := os.ReadFile(*aliasPath)
		if err != nil {
			slog.Error("reading alias table", "err", err)
			os.Exit(1)
		}
		var table map[string][]string
		if err := json.Unmarshal(raw, &table); err != nil {
			slog.Error("decoding alias table", "err", err)
			os.Exit(1)
		}
		resolver = names.NewResolver(table)
	}

	db, err := store.Open(cfg.DBPath, resolver)
	if err != nil {
		slog.Error("opening store", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	if *resolve {
		n, err := db.ResolveAll(ctx)
		if err != nil {
			slog.Error("resolving picks", "err", err)
			os.Exit(1)
		}
		if n > 0 {
			slog.Info("picks settled", "count", n)
		}
	}

	report, err := backtest.New(db, db, cfg).Run(ctx)
	if err != nil {
		slog.Error("backtest failed", "err", err)
		os.Exit(1)
	}

	fmt.Print(report.String())

	clv, err := db.CLVReport(ctx)
	if err != nil {
		slog.Error("clv report failed", "err", err)
		os.Exit(1)
	}
	if clv.Picks > 0 {
		fmt.Printf("stored picks: %d settled, %d with closing line, mean CLV %+.2f%%, beat close %d\n",
			clv.Picks, clv.WithCLV, clv.MeanCLVPct*100, clv.BeatClose)
	}
}
