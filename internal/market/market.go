package market

// Market represents a single bookmaker selection in the fixed catalogue.
type Market string

const (
	Home    Market = "home"
	Draw    Market = "draw"
	Away    Market = "away"
	DC1X    Market = "dc_1x"
	DCX2    Market = "dc_x2"
	DC12    Market = "dc_12"
	Over15  Market = "over_1_5"
	Under15 Market = "under_1_5"
	Over25  Market = "over_2_5"
	Under25 Market = "under_2_5"
	Over35  Market = "over_3_5"
	Under35 Market = "under_3_5"
	BTTSYes Market = "btts_yes"
	BTTSNo  Market = "btts_no"
)

// Catalogue is the ordered list of every recognised market. Order is stable
// and used as the final tie-break when ranking picks.
var Catalogue = []Market{
	Home, Draw, Away,
	DC1X, DCX2, DC12,
	Over15, Under15,
	Over25, Under25,
	Over35, Under35,
	BTTSYes, BTTSNo,
}

// Valid reports whether m is part of the catalogue.
func (m Market) Valid() bool {
	for _, c := range Catalogue {
		if c == m {
			return true
		}
	}
	return false
}

// Group returns the market family, used for per-market stake caps and
// complement bookkeeping.
func (m Market) Group() string {
	switch m {
	case Home, Draw, Away:
		return "1x2"
	case DC1X, DCX2, DC12:
		return "double_chance"
	case Over15, Under15:
		return "total_1_5"
	case Over25, Under25:
		return "total_2_5"
	case Over35, Under35:
		return "total_3_5"
	case BTTSYes, BTTSNo:
		return "btts"
	}
	return ""
}

// Side returns the canonical side label stored on picks (HOME, OVER_25, ...).
func (m Market) Side() string {
	switch m {
	case Home:
		return "HOME"
	case Draw:
		return "DRAW"
	case Away:
		return "AWAY"
	case DC1X:
		return "DC_1X"
	case DCX2:
		return "DC_X2"
	case DC12:
		return "DC_12"
	case Over15:
		return "OVER_15"
	case Under15:
		return "UNDER_15"
	case Over25:
		return "OVER_25"
	case Under25:
		return "UNDER_25"
	case Over35:
		return "OVER_35"
	case Under35:
		return "UNDER_35"
	case BTTSYes:
		return "BTTS_YES"
	case BTTSNo:
		return "BTTS_NO"
	}
	return ""
}

// Complement returns the market whose probability is 1 minus this one's.
// Every catalogue market has exactly one complement: the complement of a
// single 1X2 outcome is the double chance covering the other two.
func (m Market) Complement() Market {
	switch m {
	case Home:
		return DCX2
	case Draw:
		return DC12
	case Away:
		return DC1X
	case DC1X:
		return Away
	case DCX2:
		return Home
	case DC12:
		return Draw
	case Over15:
		return Under15
	case Under15:
		return Over15
	case Over25:
		return Under25
	case Under25:
		return Over25
	case Over35:
		return Under35
	case Under35:
		return Over35
	case BTTSYes:
		return BTTSNo
	case BTTSNo:
		return BTTSYes
	}
	return ""
}

// GoalLine returns the total-goals line for over/under markets and false
// for everything else.
func (m Market) GoalLine() (float64, bool) {
	switch m {
	case Over15, Under15:
		return 1.5, true
	case Over25, Under25:
		return 2.5, true
	case Over35, Under35:
		return 3.5, true
	}
	return 0, false
}

// Settle reports whether the market won given the final score.
func (m Market) Settle(homeGoals, awayGoals int) bool {
	total := homeGoals + awayGoals
	switch m {
	case Home:
		return homeGoals > awayGoals
	case Draw:
		return homeGoals == awayGoals
	case Away:
		return awayGoals > homeGoals
	case DC1X:
		return homeGoals >= awayGoals
	case DCX2:
		return awayGoals >= homeGoals
	case DC12:
		return homeGoals != awayGoals
	case Over15:
		return total > 1
	case Under15:
		return total < 2
	case Over25:
		return total > 2
	case Under25:
		return total < 3
	case Over35:
		return total > 3
	case Under35:
		return total < 4
	case BTTSYes:
		return homeGoals > 0 && awayGoals > 0
	case BTTSNo:
		return homeGoals == 0 || awayGoals == 0
	}
	return false
}
