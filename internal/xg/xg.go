package xg

import (
	"fmt"
	"strings"

	"footy-quant/internal/intel"
	"footy-quant/internal/mathutil"
)

// Model constants. Attack is weighted above opponent defence in the base
// blend; multipliers come from the tier matchup table.
const (
	FallbackGoalsAvg = 1.3
	AttackWeight     = 0.6
	DefenseWeight    = 0.4

	MinXG = 0.2
	MaxXG = 4.0

	MomentumStep    = 0.05 // per 0.5 of momentum differential
	MomentumClip    = 0.15
	AbsenceUnitCap  = 0.10 // per absent starter, as a share of base xG
	AbsenceTotalCap = 0.25
)

// Step records one adjustment applied to the pair of expected-goals values,
// so a stored pick can be audited back to its inputs.
type Step struct {
	Stage  string
	HomeXG float64
	AwayXG float64
	Note   string
}

// Estimate is the adjusted expected-goals output with its audit trail.
type Estimate struct {
	HomeXG float64
	AwayXG float64
	Trace  []Step
}

// Compute derives the adjusted expected goals for both sides from the match
// context. Missing entities degrade to documented fallbacks; the function
// never fails.
func Compute(mc *intel.MatchContext) Estimate {
	var est Estimate

	homeAttack := FallbackGoalsAvg
	homeDefense := FallbackGoalsAvg
	awayAttack := FallbackGoalsAvg
	awayDefense := FallbackGoalsAvg

	if mc.HomeIntel.Trusted() {
		homeAttack = mc.HomeIntel.HomeGoalsScoredAvg
		homeDefense = mc.HomeIntel.HomeGoalsConcededAvg
	}
	if mc.AwayIntel.Trusted() {
		awayAttack = mc.AwayIntel.AwayGoalsScoredAvg
		awayDefense = mc.AwayIntel.AwayGoalsConcededAvg
	}

	home := AttackWeight*homeAttack + DefenseWeight*awayDefense
	away := AttackWeight*awayAttack + DefenseWeight*homeDefense
	est.record("base", home, away,
		fmt.Sprintf("attack/defence blend home=%.2f/%.2f away=%.2f/%.2f", homeAttack, awayDefense, awayAttack, homeDefense))

	home, away = applyTier(&est, mc, home, away)
	home, away = applyFortress(&est, mc, home, away)
	home, away = applyMomentum(&est, mc, home, away)
	home, away = applyAbsences(&est, mc, home, away)
	home, away = applyReferee(&est, mc, home, away)

	home = mathutil.Clamp(home, MinXG, MaxXG)
	away = mathutil.Clamp(away, MinXG, MaxXG)
	est.record("clamp", home, away, fmt.Sprintf("bounded to [%.1f, %.1f]", MinXG, MaxXG))

	est.HomeXG = home
	est.AwayXG = away
	return est
}

// TierMultipliers returns the (home, away) multipliers for a tier
// differential delta = tier(home) - tier(away).
func TierMultipliers(delta int) (float64, float64) {
	switch {
	case delta >= 2:
		return 1.25, 0.75
	case delta == 1:
		return 1.10, 0.90
	case delta == -1:
		return 0.90, 1.10
	case delta <= -2:
		return 0.75, 1.25
	}
	return 1.0, 1.0
}

func applyTier(est *Estimate, mc *intel.MatchContext, home, away float64) (float64, float64) {
	if mc.HomeClass == nil && mc.AwayClass == nil {
		return home, away
	}
	delta := mc.HomeClass.TierValue() - mc.AwayClass.TierValue()
	hm, am := TierMultipliers(delta)
	if hm == 1.0 && am == 1.0 {
		return home, away
	}
	home *= hm
	away *= am
	est.record("tier", home, away, fmt.Sprintf("delta=%+d multipliers %.2fx/%.2fx", delta, hm, am))
	return home, away
}

func applyFortress(est *Estimate, mc *intel.MatchContext, home, away float64) (float64, float64) {
	changed := false
	if mc.HomeClass != nil && mc.HomeClass.HomeFortressFactor > 0 {
		home *= mc.HomeClass.HomeFortressFactor
		changed = true
	}
	if mc.AwayClass != nil && mc.AwayClass.AwayWeaknessFactor > 0 {
		away *= mc.AwayClass.AwayWeaknessFactor
		changed = true
	}
	if changed {
		est.record("fortress", home, away, "home fortress / away weakness factors")
	}
	return home, away
}

func applyMomentum(est *Estimate, mc *intel.MatchContext, home, away float64) (float64, float64) {
	if mc.HomeMomentum == nil || mc.AwayMomentum == nil {
		return home, away
	}
	diff := mc.HomeMomentum.Score - mc.AwayMomentum.Score
	adj := mathutil.Clamp(diff/0.5*MomentumStep, -MomentumClip, MomentumClip)
	if adj == 0 {
		return home, away
	}
	home *= 1 + adj
	away *= 1 - adj
	est.record("momentum", home, away, fmt.Sprintf("differential %+.2f adjustment %+.1f%%", diff, adj*100))
	return home, away
}

// applyAbsences deducts xG for each absent starter named in the team class,
// per-player limited to 10% of base xG, with the total deduction capped.
func applyAbsences(est *Estimate, mc *intel.MatchContext, home, away float64) (float64, float64) {
	if len(mc.Absences) == 0 {
		return home, away
	}

	homeDed := absenceDeduction(mc.HomeClass, mc.Absences, home)
	awayDed := absenceDeduction(mc.AwayClass, mc.Absences, away)
	if homeDed == 0 && awayDed == 0 {
		return home, away
	}

	home -= homeDed
	away -= awayDed
	est.record("absences", home, away,
		fmt.Sprintf("star absences deducted %.2f home / %.2f away", homeDed, awayDed))
	return home, away
}

func absenceDeduction(class *intel.TeamClass, absences []intel.Absence, baseXG float64) float64 {
	if class == nil {
		return 0
	}
	total := 0.0
	for _, star := range class.StarPlayers {
		for _, abs := range absences {
			if strings.EqualFold(star, abs.Player) {
				ded := abs.Impact
				if unit := AbsenceUnitCap * baseXG; ded > unit {
					ded = unit
				}
				total += ded
			}
		}
	}
	if total > AbsenceTotalCap {
		total = AbsenceTotalCap
	}
	return total
}

// applyReferee splits the referee's goals modifier over both sides in
// proportion to their current xG share.
func applyReferee(est *Estimate, mc *intel.MatchContext, home, away float64) (float64, float64) {
	if mc.Referee == nil || mc.Referee.GoalsModifier == 0 {
		return home, away
	}
	sum := home + away
	if sum <= 0 {
		return home, away
	}
	mod := mc.Referee.GoalsModifier
	home += mod * home / sum
	away += mod * away / sum
	est.record("referee", home, away, fmt.Sprintf("%s goals modifier %+.2f", mc.Referee.Name, mod))
	return home, away
}

func (e *Estimate) record(stage string, home, away float64, note string) {
	e.Trace = append(e.Trace, Step{Stage: stage, HomeXG: home, AwayXG: away, Note: note})
}
