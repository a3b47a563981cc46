package domain

// KellySize computes a half-Kelly position size in bankroll currency units.
//
// For price p in (0,1) and confidence c in (0,1], let b = 1/p - 1 and
// f* = max(0, (b*c - (1-c)) / b). The returned size is
// min(maxPositionPct*bankroll, 0.5*f**bankroll). Any degenerate input
// (p outside (0,1), c <= 0, or non-positive bankroll) yields 0.
func KellySize(confidence, price, bankroll, maxPositionPct float64) float64 {
	if price <= 0 || price >= 1 || confidence <= 0 || bankroll <= 0 {
		return 0
	}

	b := 1/price - 1
	if b <= 0 {
		return 0
	}

	fStar := (b*confidence - (1 - confidence)) / b
	if fStar < 0 {
		fStar = 0
	}

	capped := maxPositionPct * bankroll
	halfKelly := 0.5 * fStar * bankroll

	if halfKelly < capped {
		return halfKelly
	}
	return capped
}
