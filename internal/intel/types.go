package intel

import (
	"time"

	"footy-quant/internal/market"
)

// Style is the closed tactical vocabulary used by the tactical matrix.
type Style string

const (
	StyleAttacking  Style = "attacking"
	StyleDefensive  Style = "defensive"
	StyleHighPress  Style = "high_press"
	StyleParkTheBus Style = "park_the_bus"
	StyleCounter    Style = "counter"
	StylePossession Style = "possession"
	StyleBalanced   Style = "balanced"
)

// styleAliases folds collector-specific labels onto the closed vocabulary.
var styleAliases = map[string]Style{
	"attacking":          StyleAttacking,
	"offensive":          StyleAttacking,
	"balanced_offensive": StyleAttacking,
	"defensive":          StyleDefensive,
	"balanced_defensive": StyleDefensive,
	"high_press":         StyleHighPress,
	"gegenpress":         StyleHighPress,
	"park_the_bus":       StyleParkTheBus,
	"ultra_defensive":    StyleParkTheBus,
	"counter":            StyleCounter,
	"counter_attack":     StyleCounter,
	"possession":         StylePossession,
	"balanced":           StyleBalanced,
}

// NormalizeStyle maps any collector label to the closed vocabulary.
// Unknown labels fall back to balanced.
func NormalizeStyle(raw string) Style {
	if s, ok := styleAliases[raw]; ok {
		return s
	}
	return StyleBalanced
}

// OffensiveClass reports whether the style belongs to the attacking/pressing
// family that raises both-score covariance.
func (s Style) OffensiveClass() bool {
	return s == StyleAttacking || s == StyleHighPress
}

// DefensiveClass reports whether the style belongs to the defensive family
// that suppresses both-score covariance.
func (s Style) DefensiveClass() bool {
	return s == StyleDefensive || s == StyleParkTheBus
}

// TeamIntelligence is the rolling statistical profile of one team, written
// by the external collectors and read-only to the engine.
type TeamIntelligence struct {
	TeamName             string
	Competition          string
	MatchesAnalyzed      int
	HomeGoalsScoredAvg   float64
	HomeGoalsConcededAvg float64
	AwayGoalsScoredAvg   float64
	AwayGoalsConcededAvg float64
	XGForAvg             float64
	XGAgainstAvg         float64
	CleanSheetRate       float64
	BTTSRate             float64
	Style                string
	UpdatedAt            time.Time
}

// Trusted reports whether the row carries enough data to be used as-is.
// Rows that fail this check are treated as missing and cost coverage.
func (ti *TeamIntelligence) Trusted() bool {
	if ti == nil || ti.MatchesAnalyzed < 1 {
		return false
	}
	if ti.CleanSheetRate < 0 || ti.CleanSheetRate > 1 || ti.BTTSRate < 0 || ti.BTTSRate > 1 {
		return false
	}
	if ti.HomeGoalsScoredAvg < 0 || ti.HomeGoalsConcededAvg < 0 ||
		ti.AwayGoalsScoredAvg < 0 || ti.AwayGoalsConcededAvg < 0 {
		return false
	}
	return true
}

// Tier values: S=5, A=4, B=3, C=2, D=1.
var tierValues = map[string]int{"S": 5, "A": 4, "B": 3, "C": 2, "D": 1}

// TeamClass is the competition-aware strength classification of a team.
type TeamClass struct {
	TeamName           string
	Competition        string
	Tier               string
	HomeFortressFactor float64
	AwayWeaknessFactor float64
	StarPlayers        []string
}

// TierValue maps the tier letter to its ordinal value. Unknown tiers read
// as mid-table B so a bad row cannot produce an extreme adjustment.
func (tc *TeamClass) TierValue() int {
	if tc == nil {
		return 3
	}
	if v, ok := tierValues[tc.Tier]; ok {
		return v
	}
	return 3
}

// TeamMomentum is the rolling short-term form of a team.
type TeamMomentum struct {
	TeamName    string
	Score       float64 // signed, in [-1, 1]
	FormString  string  // e.g. "WWDLW", most recent first
	PointsLast5 int
}

// HeadToHead aggregates the historical meetings of an ordered pair.
type HeadToHead struct {
	TeamA        string
	TeamB        string
	TotalMatches int
	BTTSPct      float64 // in [0, 1]
	Over25Pct    float64 // in [0, 1]
	AvgGoals     float64
}

// TacticalEntry is one cell of the tactical matrix: what historically
// happens when style A meets style B.
type TacticalEntry struct {
	StyleA          Style
	StyleB          Style
	BTTSProbability float64
	Over25Prob      float64
	AvgGoalsTotal   float64
	SampleSize      int
	ConfidenceLevel float64
}

// RefereeIntelligence is the profile of the appointed referee.
type RefereeIntelligence struct {
	Name            string
	AvgCards        float64
	AvgGoalsPerGame float64
	GoalsModifier   float64 // signed xG-sum adjustment
	Tendency        string  // "over", "under" or "neutral"
}

// MarketTrap is a stored adverse pattern: picks on this team, market group
// and direction have been systematically losing despite apparent edge.
type MarketTrap struct {
	TeamName    string
	MarketGroup string // market group id, e.g. "btts", "total_2_5", "1x2"
	Direction   string // side label, e.g. "BTTS_YES", "OVER_25", "HOME"
	Note        string
}

// Matches reports whether the trap applies to the given selection.
func (mt MarketTrap) Matches(m market.Market) bool {
	return mt.MarketGroup == m.Group() && mt.Direction == m.Side()
}

// Absence is one missing player from an external availability feed.
type Absence struct {
	Player string
	Impact float64 // estimated xG cost, >= 0
}

// MatchContext aggregates everything the engine needs for one match. All
// entity pointers are optional: a nil field means the collectors had
// nothing for it, and the engine degrades instead of failing.
type MatchContext struct {
	MatchID     string
	HomeTeam    string
	AwayTeam    string
	Competition string
	KickoffTime time.Time

	Odds market.OddsMap

	HomeIntel    *TeamIntelligence
	AwayIntel    *TeamIntelligence
	HomeClass    *TeamClass
	AwayClass    *TeamClass
	HomeMomentum *TeamMomentum
	AwayMomentum *TeamMomentum
	H2H          *HeadToHead
	Referee      *RefereeIntelligence
	Tactical     *TacticalEntry
	Traps        []MarketTrap

	Absences []Absence
}

// contextEntities is the number of optional entity slots counted by Coverage.
const contextEntities = 9

// Coverage returns the fraction of optional context entities present,
// in [0, 1]. Untrusted intelligence rows count as missing.
func (mc *MatchContext) Coverage() float64 {
	n := 0
	if mc.HomeIntel.Trusted() {
		n++
	}
	if mc.AwayIntel.Trusted() {
		n++
	}
	if mc.HomeClass != nil {
		n++
	}
	if mc.AwayClass != nil {
		n++
	}
	if mc.HomeMomentum != nil {
		n++
	}
	if mc.AwayMomentum != nil {
		n++
	}
	if mc.H2H != nil {
		n++
	}
	if mc.Referee != nil {
		n++
	}
	if mc.Tactical != nil {
		n++
	}
	return float64(n) / float64(contextEntities)
}

// HomeStyle returns the normalised tactical style of the home side.
func (mc *MatchContext) HomeStyle() Style {
	if mc.HomeIntel == nil {
		return StyleBalanced
	}
	return NormalizeStyle(mc.HomeIntel.Style)
}

// AwayStyle returns the normalised tactical style of the away side.
func (mc *MatchContext) AwayStyle() Style {
	if mc.AwayIntel == nil {
		return StyleBalanced
	}
	return NormalizeStyle(mc.AwayIntel.Style)
}
