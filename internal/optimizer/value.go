package optimizer

import "math"

const (
	// ValueTolerance is the single tolerance used when comparing expected
	// values. Two values closer than this are a tie.
	ValueTolerance = 1e-12

	// IntegerTolerance bounds how far a monetary input may sit from an
	// integer before it is rejected as fractional.
	IntegerTolerance = 1e-9
)

// Ownership returns the fraction of a team's final pot owned by a bid of
// size bid when the rest of the market has bid market. Negative market
// predictions are clamped to zero.
func Ownership(market float64, bid int) float64 {
	if bid <= 0 {
		return 0
	}
	market = math.Max(market, 0)
	total := market + float64(bid)
	if total <= 0 {
		return 0
	}
	return float64(bid) / total
}

// ExpectedValue is the expected return of bidding bid on a team worth
// expectedPoints when owned outright. It is increasing and concave in bid.
func ExpectedValue(expectedPoints, market float64, bid int) float64 {
	return expectedPoints * Ownership(market, bid)
}

// MarginalValue returns the value gained by moving a bid from `from` to `to`
func MarginalValue(expectedPoints, market float64, from, to int) float64 {
	return ExpectedValue(expectedPoints, market, to) - ExpectedValue(expectedPoints, market, from)
}

// valuesEqual reports whether a and b tie under ValueTolerance
func valuesEqual(a, b float64) bool {
	return math.Abs(a-b) <= ValueTolerance
}
