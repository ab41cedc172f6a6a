package optimizer

import "sort"

// Strategy names an allocation algorithm
type Strategy string

const (
	StrategyDP        Strategy = "dp"
	StrategyGreedy    Strategy = "greedy"
	StrategyWaterfill Strategy = "waterfill"
)

// Candidate is one team row of the candidate table
type Candidate struct {
	TeamKey                string  `json:"team_key"`
	ExpectedTeamPoints     float64 `json:"expected_team_points"`
	PredictedTeamTotalBids float64 `json:"predicted_team_total_bids"` // other participants' bids only
	Score                  float64 `json:"score,omitempty"`           // informational ranking, ignored by allocators
}

// Value returns the expected return of placing bid on this candidate
func (c Candidate) Value(bid int) float64 {
	return ExpectedValue(c.ExpectedTeamPoints, c.PredictedTeamTotalBids, bid)
}

// Bid is one selected team and the points placed on it
type Bid struct {
	TeamKey   string  `json:"team_key"`
	BidAmount int     `json:"bid_amount"`
	Score     float64 `json:"score"` // expected return of this bid
}

// Portfolio is the output of an allocator
type Portfolio struct {
	Strategy   Strategy `json:"strategy"`
	Bids       []Bid    `json:"bids"`
	TotalBid   int      `json:"total_bid"`
	TotalValue float64  `json:"total_value"`
}

// Records returns the list-of-records view used for JSON reporting
func (p *Portfolio) Records() []map[string]interface{} {
	records := make([]map[string]interface{}, len(p.Bids))
	for i, bid := range p.Bids {
		records[i] = map[string]interface{}{
			"team_key":   bid.TeamKey,
			"bid_amount": bid.BidAmount,
			"score":      bid.Score,
		}
	}
	return records
}

// BidFor returns the amount bid on teamKey, or 0 if the team was not selected
func (p *Portfolio) BidFor(teamKey string) int {
	for _, bid := range p.Bids {
		if bid.TeamKey == teamKey {
			return bid.BidAmount
		}
	}
	return 0
}

// newPortfolio builds a portfolio from parallel candidate/bid slices, dropping
// zero bids and ordering by bid descending then team key.
func newPortfolio(strategy Strategy, candidates []Candidate, bids []int) *Portfolio {
	portfolio := &Portfolio{
		Strategy: strategy,
		Bids:     make([]Bid, 0, len(bids)),
	}

	for i, amount := range bids {
		if amount == 0 {
			continue
		}
		value := candidates[i].Value(amount)
		portfolio.Bids = append(portfolio.Bids, Bid{
			TeamKey:   candidates[i].TeamKey,
			BidAmount: amount,
			Score:     value,
		})
		portfolio.TotalBid += amount
		portfolio.TotalValue += value
	}

	sort.SliceStable(portfolio.Bids, func(i, j int) bool {
		if portfolio.Bids[i].BidAmount != portfolio.Bids[j].BidAmount {
			return portfolio.Bids[i].BidAmount > portfolio.Bids[j].BidAmount
		}
		return portfolio.Bids[i].TeamKey < portfolio.Bids[j].TeamKey
	})

	return portfolio
}
