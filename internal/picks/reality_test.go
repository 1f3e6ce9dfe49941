package picks

import (
	"strings"
	"testing"

	"footy-quant/internal/intel"
	"footy-quant/internal/market"
)

func pickFor(m market.Market) QuantPick {
	return QuantPick{MatchID: "m1", Market: m, Side: m.Side(), Rationale: "test"}
}

func TestRealityCheckBTTSGoallessAway(t *testing.T) {
	mc := &intel.MatchContext{
		AwayIntel: &intel.TeamIntelligence{MatchesAnalyzed: 8, AwayGoalsScoredAvg: 0},
	}
	out := []QuantPick{pickFor(market.BTTSYes), pickFor(market.Home)}

	rejected := ApplyRealityCheck(mc, out, DefaultRealityRules())
	if rejected != 1 {
		t.Fatalf("rejected = %d, expected 1", rejected)
	}
	if !out[0].RealityRejected {
		t.Error("btts_yes should be rejected when away side never scores away")
	}
	if out[1].RealityRejected {
		t.Error("home pick should survive")
	}
	if !strings.Contains(out[0].Rationale, "rejected by") {
		t.Errorf("rationale should note the veto: %q", out[0].Rationale)
	}
}

func TestRealityCheckCleanSheetWall(t *testing.T) {
	mc := &intel.MatchContext{
		HomeIntel: &intel.TeamIntelligence{MatchesAnalyzed: 10, CleanSheetRate: 0.8, HomeGoalsScoredAvg: 2.0},
	}
	out := []QuantPick{pickFor(market.BTTSYes)}

	if got := ApplyRealityCheck(mc, out, DefaultRealityRules()); got != 1 {
		t.Errorf("rejected = %d, expected 1", got)
	}
	if !out[0].RealityRejected {
		t.Error("btts_yes should be rejected against a 80%% clean-sheet side")
	}
}

func TestRealityCheckOverDryFixture(t *testing.T) {
	mc := &intel.MatchContext{
		HomeIntel: &intel.TeamIntelligence{MatchesAnalyzed: 10, HomeGoalsScoredAvg: 0.4},
		AwayIntel: &intel.TeamIntelligence{MatchesAnalyzed: 10, AwayGoalsScoredAvg: 0.3},
	}
	out := []QuantPick{pickFor(market.Over25)}

	if got := ApplyRealityCheck(mc, out, DefaultRealityRules()); got != 1 {
		t.Errorf("rejected = %d, expected 1", got)
	}
}

func TestRealityCheckPassesWithMissingContext(t *testing.T) {
	mc := &intel.MatchContext{}
	out := []QuantPick{pickFor(market.BTTSYes), pickFor(market.Over25), pickFor(market.Home)}

	if got := ApplyRealityCheck(mc, out, DefaultRealityRules()); got != 0 {
		t.Errorf("rejected = %d, expected 0 without hard facts", got)
	}
}

func TestRealityCheckSkipsTrapFiltered(t *testing.T) {
	mc := &intel.MatchContext{
		AwayIntel: &intel.TeamIntelligence{MatchesAnalyzed: 8, AwayGoalsScoredAvg: 0},
	}
	p := pickFor(market.BTTSYes)
	p.TrapFiltered = true
	out := []QuantPick{p}

	if got := ApplyRealityCheck(mc, out, DefaultRealityRules()); got != 0 {
		t.Errorf("trap-filtered picks should not be double-counted, rejected = %d", got)
	}
}
