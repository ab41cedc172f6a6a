package optimizer

import (
	"fmt"
	"math"
	"math/rand"
)

// scenarioCandidates is the four-team field used throughout the tests:
// same market, descending expected points.
func scenarioCandidates() []Candidate {
	return []Candidate{
		{TeamKey: "t1", ExpectedTeamPoints: 100, PredictedTeamTotalBids: 10},
		{TeamKey: "t2", ExpectedTeamPoints: 60, PredictedTeamTotalBids: 10},
		{TeamKey: "t3", ExpectedTeamPoints: 40, PredictedTeamTotalBids: 10},
		{TeamKey: "t4", ExpectedTeamPoints: 20, PredictedTeamTotalBids: 10},
	}
}

func scenarioConstraints() Constraints {
	return Constraints{Budget: 10, MinTeams: 2, MaxTeams: 3, MaxPerTeam: 7, MinBid: 1}
}

// bruteForceBest enumerates every admissible bid vector and returns the best
// total value, or -Inf when nothing is feasible.
func bruteForceBest(candidates []Candidate, c Constraints) float64 {
	best := math.Inf(-1)
	var walk func(i, spent, teams int, value float64)
	walk = func(i, spent, teams int, value float64) {
		if i == len(candidates) {
			if spent == c.Budget && teams >= c.MinTeams && teams <= c.MaxTeams && value > best {
				best = value
			}
			return
		}
		walk(i+1, spent, teams, value)
		if teams == c.MaxTeams {
			return
		}
		for bid := c.MinBid; bid <= c.MaxPerTeam && spent+bid <= c.Budget; bid++ {
			walk(i+1, spent+bid, teams+1, value+candidates[i].Value(bid))
		}
	}
	walk(0, 0, 0, 0)
	return best
}

// randomScenario builds a small deterministic instance from seed
func randomScenario(seed int64, minBid int) ([]Candidate, Constraints) {
	rng := rand.New(rand.NewSource(seed))
	n := 3 + rng.Intn(4)
	candidates := make([]Candidate, n)
	for i := range candidates {
		candidates[i] = Candidate{
			TeamKey:                fmt.Sprintf("team_%02d", i),
			ExpectedTeamPoints:     float64(rng.Intn(200)) + rng.Float64(),
			PredictedTeamTotalBids: float64(rng.Intn(40)) + rng.Float64(),
		}
	}
	minTeams := 1 + rng.Intn(2)
	c := Constraints{
		Budget:     5 + rng.Intn(20),
		MinBid:     minBid,
		MaxPerTeam: minBid + 2 + rng.Intn(8),
		MinTeams:   minTeams,
		MaxTeams:   minTeams + rng.Intn(3),
	}
	return candidates, c
}

func bidsByTeam(p *Portfolio) map[string]int {
	out := make(map[string]int, len(p.Bids))
	for _, bid := range p.Bids {
		out[bid.TeamKey] = bid.BidAmount
	}
	return out
}

// uniformField builds n identical teams with distinct keys
func uniformField(n int) []Candidate {
	candidates := make([]Candidate, n)
	for i := range candidates {
		candidates[i] = Candidate{
			TeamKey:                fmt.Sprintf("team_%05d", i),
			ExpectedTeamPoints:     50,
			PredictedTeamTotalBids: 20,
		}
	}
	return candidates
}
