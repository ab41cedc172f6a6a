package optimizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintsValidate(t *testing.T) {
	valid := Constraints{Budget: 100, MinBid: 1, MaxPerTeam: 40, MinTeams: 2, MaxTeams: 8}

	tests := []struct {
		name   string
		mutate func(c *Constraints)
		field  string
	}{
		{"valid", func(c *Constraints) {}, ""},
		{"zero budget", func(c *Constraints) { c.Budget = 0 }, "budget"},
		{"zero min bid", func(c *Constraints) { c.MinBid = 0 }, "min_bid"},
		{"negative max per team", func(c *Constraints) { c.MaxPerTeam = -1 }, "max_per_team"},
		{"min bid above cap", func(c *Constraints) { c.MinBid = 50 }, "min_bid"},
		{"min teams above max", func(c *Constraints) { c.MinTeams = 9 }, "min_teams"},
		{"zero max teams", func(c *Constraints) { c.MinTeams = 0; c.MaxTeams = 0 }, "max_teams"},
		{"zero min teams allowed", func(c *Constraints) { c.MinTeams = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsInvalidInput(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestParseConstraints_RejectsFractionalPoints(t *testing.T) {
	_, err := ParseConstraints(ConstraintsInput{Budget: 100.5, MinBid: 1, MaxPerTeam: 10, MinTeams: 1, MaxTeams: 5})
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
	assert.Contains(t, err.Error(), "budget")

	_, err = ParseConstraints(ConstraintsInput{Budget: 100, MinBid: 1, MaxPerTeam: 10.25, MinTeams: 1, MaxTeams: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_per_team")
}

func TestParseConstraints_AcceptsRoundTripNoise(t *testing.T) {
	c, err := ParseConstraints(ConstraintsInput{
		Budget:     100 + 1e-12,
		MinBid:     1,
		MaxPerTeam: 10 - 1e-12,
		MinTeams:   2,
		MaxTeams:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, Constraints{Budget: 100, MinBid: 1, MaxPerTeam: 10, MinTeams: 2, MaxTeams: 5}, c)
}

func TestParseAmount_NonFinite(t *testing.T) {
	_, err := ParseAmount("budget", math.NaN())
	assert.True(t, IsInvalidInput(err))

	_, err = ParseAmount("budget", math.Inf(1))
	assert.True(t, IsInvalidInput(err))
}

func TestValidateCandidates(t *testing.T) {
	assert.NoError(t, ValidateCandidates(scenarioCandidates()))

	duplicate := append(scenarioCandidates(), Candidate{TeamKey: "t1", ExpectedTeamPoints: 5})
	err := ValidateCandidates(duplicate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	err = ValidateCandidates([]Candidate{{TeamKey: "", ExpectedTeamPoints: 5}})
	assert.Contains(t, err.Error(), "team_key")

	err = ValidateCandidates([]Candidate{{TeamKey: "a", ExpectedTeamPoints: -1}})
	assert.Contains(t, err.Error(), "expected_team_points")

	err = ValidateCandidates([]Candidate{{TeamKey: "a", ExpectedTeamPoints: 1, PredictedTeamTotalBids: math.NaN()}})
	assert.Contains(t, err.Error(), "predicted_team_total_bids")

	// negative market predictions are upstream noise, clamped by the value function
	assert.NoError(t, ValidateCandidates([]Candidate{{TeamKey: "a", ExpectedTeamPoints: 1, PredictedTeamTotalBids: -0.3}}))
}

func TestCheckFeasibility_MinTeamsAtMinBidExceedsBudget(t *testing.T) {
	candidates := make([]Candidate, 6)
	for i := range candidates {
		candidates[i] = Candidate{TeamKey: string(rune('a' + i)), ExpectedTeamPoints: 10, PredictedTeamTotalBids: 5}
	}
	c := Constraints{Budget: 40, MinBid: 10, MaxPerTeam: 20, MinTeams: 5, MaxTeams: 6}

	err := CheckFeasibility(candidates, c)
	require.Error(t, err)
	assert.True(t, IsInfeasible(err))
	assert.Contains(t, err.Error(), "50 needed")

	for _, strategy := range Strategies() {
		allocator, err := NewAllocator(strategy, DefaultAllocatorOptions())
		require.NoError(t, err)
		_, err = allocator.Allocate(candidates, c)
		assert.True(t, IsInfeasible(err), "strategy %s", strategy)
	}
}

func TestCheckFeasibility_CapsTooTight(t *testing.T) {
	c := Constraints{Budget: 30, MinBid: 1, MaxPerTeam: 7, MinTeams: 1, MaxTeams: 3}
	err := CheckFeasibility(scenarioCandidates(), c)
	assert.True(t, IsInfeasible(err))

	c.MinTeams = 5
	c.MaxTeams = 5
	err = CheckFeasibility(scenarioCandidates(), c)
	assert.True(t, IsInfeasible(err))
}

func TestValidatePortfolio(t *testing.T) {
	candidates := scenarioCandidates()
	c := scenarioConstraints()

	good := newPortfolio(StrategyDP, candidates, []int{7, 3, 0, 0})
	assert.NoError(t, ValidatePortfolio(good, candidates, c))

	tests := []struct {
		name string
		bids []int
	}{
		{"budget not spent", []int{6, 3, 0, 0}},
		{"bid above cap", []int{8, 2, 0, 0}},
		{"too few teams", []int{7, 0, 0, 0}},
		{"too many teams", []int{4, 3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePortfolio(newPortfolio(StrategyDP, candidates, tt.bids), candidates, c)
			require.Error(t, err)
			assert.True(t, IsInvariantViolation(err))
			assert.False(t, IsInvalidInput(err))

			var invErr *InvariantError
			assert.ErrorAs(t, err, &invErr)
		})
	}

	unknown := &Portfolio{Strategy: StrategyDP, Bids: []Bid{{TeamKey: "zz", BidAmount: 5}, {TeamKey: "t1", BidAmount: 5}}, TotalBid: 10}
	assert.True(t, IsInvariantViolation(ValidatePortfolio(unknown, candidates, c)))
}
