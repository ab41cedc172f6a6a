package optimizer

import (
	"math"
)

// Constraints bounds a single allocation run. All amounts are budget points.
type Constraints struct {
	Budget     int `json:"budget"`
	MinBid     int `json:"min_bid"`
	MaxPerTeam int `json:"max_per_team"`
	MinTeams   int `json:"min_teams"`
	MaxTeams   int `json:"max_teams"`
}

// ConstraintsInput is the caller-facing form of Constraints. Amounts arrive
// as JSON numbers and must be integer valued.
type ConstraintsInput struct {
	Budget     float64 `json:"budget"`
	MinBid     float64 `json:"min_bid"`
	MaxPerTeam float64 `json:"max_per_team"`
	MinTeams   float64 `json:"min_teams"`
	MaxTeams   float64 `json:"max_teams"`
}

// ParseConstraints converts boundary input into Constraints, rejecting
// fractional amounts rather than truncating them, then validates the result.
func ParseConstraints(input ConstraintsInput) (Constraints, error) {
	var constraints Constraints
	fields := []struct {
		name  string
		value float64
		dest  *int
	}{
		{"budget", input.Budget, &constraints.Budget},
		{"min_bid", input.MinBid, &constraints.MinBid},
		{"max_per_team", input.MaxPerTeam, &constraints.MaxPerTeam},
		{"min_teams", input.MinTeams, &constraints.MinTeams},
		{"max_teams", input.MaxTeams, &constraints.MaxTeams},
	}

	for _, field := range fields {
		amount, err := ParseAmount(field.name, field.value)
		if err != nil {
			return Constraints{}, err
		}
		*field.dest = amount
	}

	if err := constraints.Validate(); err != nil {
		return Constraints{}, err
	}
	return constraints, nil
}

// ParseAmount returns value as an int if it is integer valued within
// IntegerTolerance.
func ParseAmount(field string, value float64) (int, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, invalidField(field, "must be a finite number, got %v", value)
	}
	rounded := math.Round(value)
	if math.Abs(value-rounded) > IntegerTolerance {
		return 0, invalidField(field, "must be a whole number of points, got %v", value)
	}
	if rounded > math.MaxInt32 || rounded < math.MinInt32 {
		return 0, invalidField(field, "out of range: %v", value)
	}
	return int(rounded), nil
}

// Validate checks the constraints are well formed. It does not check
// feasibility against a candidate table; see CheckFeasibility.
func (c Constraints) Validate() error {
	if c.Budget <= 0 {
		return invalidField("budget", "must be positive, got %d", c.Budget)
	}
	if c.MinBid <= 0 {
		return invalidField("min_bid", "must be positive, got %d", c.MinBid)
	}
	if c.MaxPerTeam <= 0 {
		return invalidField("max_per_team", "must be positive, got %d", c.MaxPerTeam)
	}
	if c.MinBid > c.MaxPerTeam {
		return invalidField("min_bid", "min_bid %d exceeds max_per_team %d", c.MinBid, c.MaxPerTeam)
	}
	if c.MinTeams < 0 {
		return invalidField("min_teams", "must not be negative, got %d", c.MinTeams)
	}
	if c.MaxTeams <= 0 {
		return invalidField("max_teams", "must be positive, got %d", c.MaxTeams)
	}
	if c.MinTeams > c.MaxTeams {
		return invalidField("min_teams", "min_teams %d exceeds max_teams %d", c.MinTeams, c.MaxTeams)
	}
	return nil
}

// ValidateCandidates checks every candidate row is usable
func ValidateCandidates(candidates []Candidate) error {
	seen := make(map[string]bool, len(candidates))
	for i, candidate := range candidates {
		if candidate.TeamKey == "" {
			return invalidField("team_key", "row %d has an empty team_key", i)
		}
		if seen[candidate.TeamKey] {
			return invalidField("team_key", "duplicate team_key %q", candidate.TeamKey)
		}
		seen[candidate.TeamKey] = true

		points := candidate.ExpectedTeamPoints
		if math.IsNaN(points) || math.IsInf(points, 0) || points < 0 {
			return invalidField("expected_team_points", "team %q has invalid value %v", candidate.TeamKey, points)
		}
		market := candidate.PredictedTeamTotalBids
		if math.IsNaN(market) || math.IsInf(market, 0) {
			return invalidField("predicted_team_total_bids", "team %q has invalid value %v", candidate.TeamKey, market)
		}
	}
	return nil
}

// EffectiveMaxTeams caps MaxTeams at the number of candidates
func (c Constraints) EffectiveMaxTeams(numCandidates int) int {
	if numCandidates < c.MaxTeams {
		return numCandidates
	}
	return c.MaxTeams
}

// CheckFeasibility rejects constraint/candidate combinations that cannot
// produce any valid portfolio. It runs before any optimization work.
func CheckFeasibility(candidates []Candidate, c Constraints) error {
	if c.MinTeams*c.MinBid > c.Budget {
		return infeasible("budget %d cannot cover min_teams %d at min_bid %d (%d needed)",
			c.Budget, c.MinTeams, c.MinBid, c.MinTeams*c.MinBid)
	}
	if c.MinTeams > len(candidates) {
		return infeasible("min_teams %d exceeds the %d available candidates", c.MinTeams, len(candidates))
	}
	maxTeams := c.EffectiveMaxTeams(len(candidates))
	if maxTeams*c.MaxPerTeam < c.Budget {
		return infeasible("budget %d cannot be spent by %d teams capped at %d each",
			c.Budget, maxTeams, c.MaxPerTeam)
	}
	return nil
}

// ValidatePortfolio checks a finished portfolio against every invariant.
// A failure here is an allocator bug, not a caller error.
func ValidatePortfolio(portfolio *Portfolio, candidates []Candidate, c Constraints) error {
	if portfolio == nil {
		return invariant("", "allocator returned no portfolio")
	}
	strategy := portfolio.Strategy

	if err := validateBudgetSpent(portfolio, c); err != nil {
		return err
	}
	if err := validateBidBounds(portfolio, c); err != nil {
		return err
	}
	if err := validateTeamCount(portfolio, c); err != nil {
		return err
	}

	known := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		known[candidate.TeamKey] = true
	}
	selected := make(map[string]bool, len(portfolio.Bids))
	for _, bid := range portfolio.Bids {
		if !known[bid.TeamKey] {
			return invariant(strategy, "bid on unknown team %q", bid.TeamKey)
		}
		if selected[bid.TeamKey] {
			return invariant(strategy, "team %q selected twice", bid.TeamKey)
		}
		selected[bid.TeamKey] = true
	}

	return nil
}

func validateBudgetSpent(portfolio *Portfolio, c Constraints) error {
	total := 0
	for _, bid := range portfolio.Bids {
		total += bid.BidAmount
	}
	if total != portfolio.TotalBid {
		return invariant(portfolio.Strategy, "total_bid %d does not match bids sum %d", portfolio.TotalBid, total)
	}
	if total != c.Budget {
		return invariant(portfolio.Strategy, "spent %d of budget %d", total, c.Budget)
	}
	return nil
}

func validateBidBounds(portfolio *Portfolio, c Constraints) error {
	for _, bid := range portfolio.Bids {
		if bid.BidAmount < c.MinBid || bid.BidAmount > c.MaxPerTeam {
			return invariant(portfolio.Strategy, "bid %d on %q outside [%d, %d]",
				bid.BidAmount, bid.TeamKey, c.MinBid, c.MaxPerTeam)
		}
	}
	return nil
}

func validateTeamCount(portfolio *Portfolio, c Constraints) error {
	count := len(portfolio.Bids)
	if count < c.MinTeams || count > c.MaxTeams {
		return invariant(portfolio.Strategy, "selected %d teams, want [%d, %d]", count, c.MinTeams, c.MaxTeams)
	}
	return nil
}
