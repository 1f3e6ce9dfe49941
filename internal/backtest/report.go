package backtest

import (
	"fmt"
	"sort"
	"strings"

	"footy-quant/internal/market"
)

// MarketReport aggregates settled picks for one market (or the whole run).
type MarketReport struct {
	Picks  int
	Wins   int
	Profit float64 // flat one-unit stakes

	MeanEdge float64
	MeanCLV  float64
	clvCount int

	edgeSum float64
	clvSum  float64
}

// WinRate is the fraction of settled picks that won.
func (r *MarketReport) WinRate() float64 {
	if r.Picks == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Picks)
}

// ROI is profit per unit staked.
func (r *MarketReport) ROI() float64 {
	if r.Picks == 0 {
		return 0
	}
	return r.Profit / float64(r.Picks)
}

func (r *MarketReport) add(edge, odds float64, won bool, clv float64, hasCLV bool) {
	r.Picks++
	r.edgeSum += edge
	if won {
		r.Wins++
		r.Profit += odds - 1
	} else {
		r.Profit -= 1
	}
	if hasCLV {
		r.clvSum += clv
		r.clvCount++
	}
}

func (r *MarketReport) finalize() {
	if r.Picks > 0 {
		r.MeanEdge = r.edgeSum / float64(r.Picks)
	}
	if r.clvCount > 0 {
		r.MeanCLV = r.clvSum / float64(r.clvCount)
	}
}

// Report is the aggregate outcome of one backtest run.
type Report struct {
	Matches  int
	Analyzed int
	Failed   int

	// MeanOverround is the average bookmaker margin on the opening 1X2
	// line across analyzed matches.
	MeanOverround float64

	Overall  MarketReport
	ByMarket map[market.Market]*MarketReport

	overroundSum   float64
	overroundCount int
}

func newReport() *Report {
	return &Report{ByMarket: make(map[market.Market]*MarketReport)}
}

func (r *Report) add(m market.Market, edge, odds float64, won bool, clv float64, hasCLV bool) {
	r.Overall.add(edge, odds, won, clv, hasCLV)
	mr, ok := r.ByMarket[m]
	if !ok {
		mr = &MarketReport{}
		r.ByMarket[m] = mr
	}
	mr.add(edge, odds, won, clv, hasCLV)
}

func (r *Report) noteOverround(v float64) {
	r.overroundSum += v
	r.overroundCount++
}

func (r *Report) finalize() {
	r.Overall.finalize()
	for _, mr := range r.ByMarket {
		mr.finalize()
	}
	if r.overroundCount > 0 {
		r.MeanOverround = r.overroundSum / float64(r.overroundCount)
	}
}

// String renders the report, one line per market in catalogue order.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backtest: %d matches, %d analyzed, %d failed, mean 1X2 overround %+.1f%%\n",
		r.Matches, r.Analyzed, r.Failed, r.MeanOverround*100)
	fmt.Fprintf(&b, "overall: %d picks, WR %.1f%%, ROI %+.1f%%, mean edge %+.1f%%, mean CLV %+.2f%%\n",
		r.Overall.Picks, r.Overall.WinRate()*100, r.Overall.ROI()*100,
		r.Overall.MeanEdge*100, r.Overall.MeanCLV*100)

	markets := make([]market.Market, 0, len(r.ByMarket))
	for m := range r.ByMarket {
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i] < markets[j] })
	for _, m := range markets {
		mr := r.ByMarket[m]
		fmt.Fprintf(&b, "  %-10s %3d picks, WR %.1f%%, ROI %+.1f%%, mean edge %+.1f%%, mean CLV %+.2f%%\n",
			m, mr.Picks, mr.WinRate()*100, mr.ROI()*100, mr.MeanEdge*100, mr.MeanCLV*100)
	}
	return b.String()
}
