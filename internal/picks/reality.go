package picks

import (
	"fmt"

	"footy-quant/internal/intel"
	"footy-quant/internal/market"
)

// RealityRule vetoes a pick whose implied story contradicts a hard fact in
// the context. Rules look at observed history, never at model
// probabilities; they are additive and data-driven.
type RealityRule struct {
	Name string
	Veto func(mc *intel.MatchContext, p *QuantPick) (bool, string)
}

// DefaultRealityRules returns the standard veto set.
func DefaultRealityRules() []RealityRule {
	return []RealityRule{
		{
			Name: "btts_vs_goalless_away_attack",
			Veto: func(mc *intel.MatchContext, p *QuantPick) (bool, string) {
				if p.Market != market.BTTSYes {
					return false, ""
				}
				if mc.AwayIntel.Trusted() && mc.AwayIntel.AwayGoalsScoredAvg == 0 {
					return true, "away side has not scored away from home"
				}
				return false, ""
			},
		},
		{
			Name: "btts_vs_shutout_defence",
			Veto: func(mc *intel.MatchContext, p *QuantPick) (bool, string) {
				if p.Market != market.BTTSYes {
					return false, ""
				}
				if mc.HomeIntel.Trusted() && mc.HomeIntel.CleanSheetRate >= 0.7 {
					return true, fmt.Sprintf("home side keeps a clean sheet in %.0f%% of matches", mc.HomeIntel.CleanSheetRate*100)
				}
				if mc.AwayIntel.Trusted() && mc.AwayIntel.CleanSheetRate >= 0.7 {
					return true, fmt.Sprintf("away side keeps a clean sheet in %.0f%% of matches", mc.AwayIntel.CleanSheetRate*100)
				}
				return false, ""
			},
		},
		{
			Name: "over_vs_dry_fixture",
			Veto: func(mc *intel.MatchContext, p *QuantPick) (bool, string) {
				if p.Market != market.Over25 && p.Market != market.Over35 {
					return false, ""
				}
				if !mc.HomeIntel.Trusted() || !mc.AwayIntel.Trusted() {
					return false, ""
				}
				if mc.HomeIntel.HomeGoalsScoredAvg+mc.AwayIntel.AwayGoalsScoredAvg < 1.0 {
					return true, "combined scoring averages below one goal"
				}
				return false, ""
			},
		},
		{
			Name: "winner_vs_goalless_attack",
			Veto: func(mc *intel.MatchContext, p *QuantPick) (bool, string) {
				switch p.Market {
				case market.Home:
					if mc.HomeIntel.Trusted() && mc.HomeIntel.HomeGoalsScoredAvg == 0 {
						return true, "home side has not scored at home"
					}
				case market.Away:
					if mc.AwayIntel.Trusted() && mc.AwayIntel.AwayGoalsScoredAvg == 0 {
						return true, "away side has not scored away from home"
					}
				}
				return false, ""
			},
		},
	}
}

// ApplyRealityCheck runs the veto rules over built picks. Rejected picks
// stay in the slice flagged is_reality_rejected, so they are stored for
// audit but never surfaced. Returns the number of rejections.
func ApplyRealityCheck(mc *intel.MatchContext, out []QuantPick, rules []RealityRule) int {
	rejected := 0
	for i := range out {
		p := &out[i]
		if p.TrapFiltered {
			continue
		}
		for _, rule := range rules {
			veto, reason := rule.Veto(mc, p)
			if !veto {
				continue
			}
			p.RealityRejected = true
			p.Rationale += fmt.Sprintf(", rejected by %s (%s)", rule.Name, reason)
			rejected++
			break
		}
	}
	return rejected
}
