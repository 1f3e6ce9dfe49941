package market

// OddsMap holds the bookmaker's decimal price for each offered market.
// Missing markets are simply absent from the map.
type OddsMap map[Market]float64

// ImpliedProb converts a decimal price to its implied probability.
// Example: 2.00 → 0.5, 1.25 → 0.8
func ImpliedProb(decimalOdds float64) float64 {
	if decimalOdds <= 1 {
		return 0
	}
	return 1.0 / decimalOdds
}

// RemoveVig removes the overround from a two-way market proportionally.
// Returns true probabilities that sum to 1.0.
//
// trueProbA = impliedA / (impliedA + impliedB)
// trueProbB = impliedB / (impliedA + impliedB)
func RemoveVig(impliedA, impliedB float64) (float64, float64) {
	if impliedA <= 0 || impliedB <= 0 {
		return 0, 0
	}
	total := impliedA + impliedB
	return impliedA / total, impliedB / total
}

// FairProb returns the no-vig probability of m, devigged against its
// complement price. When the complement is not offered the raw implied
// probability is returned instead.
func (o OddsMap) FairProb(m Market) (float64, bool) {
	price, ok := o.Price(m)
	if !ok {
		return 0, false
	}
	comp, ok := o.Price(m.Complement())
	if !ok {
		return ImpliedProb(price), true
	}
	fair, _ := RemoveVig(ImpliedProb(price), ImpliedProb(comp))
	return fair, true
}

// Overround returns the bookmaker margin on a market group: the sum of the
// implied probabilities of all priced selections in the group, minus 1.
// Returns 0 when fewer than two selections of the group are priced.
func (o OddsMap) Overround(group string) float64 {
	sum := 0.0
	count := 0
	for _, m := range Catalogue {
		if m.Group() != group {
			continue
		}
		if price, ok := o[m]; ok && price > 1 {
			sum += ImpliedProb(price)
			count++
		}
	}
	if count < 2 {
		return 0
	}
	return sum - 1
}

// Consensus combines the prices of several books into one odds map by
// averaging the implied probabilities per market and converting back to a
// decimal price. Markets priced by no book are absent from the result.
func Consensus(books []OddsMap) OddsMap {
	if len(books) == 0 {
		return nil
	}
	if len(books) == 1 {
		return books[0]
	}
	out := make(OddsMap)
	for _, m := range Catalogue {
		sum := 0.0
		n := 0
		for _, b := range books {
			if price, ok := b.Price(m); ok {
				sum += ImpliedProb(price)
				n++
			}
		}
		if n == 0 {
			continue
		}
		out[m] = float64(n) / sum
	}
	return out
}

// Price returns the decimal odds for m and whether the book offers it.
// Prices at or below 1.01 are treated as not offered.
func (o OddsMap) Price(m Market) (float64, bool) {
	price, ok := o[m]
	if !ok || price <= 1.01 {
		return 0, false
	}
	return price, true
}
