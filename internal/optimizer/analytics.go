package optimizer

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PortfolioSummary holds reporting metrics for a finished portfolio
type PortfolioSummary struct {
	Strategy      Strategy `json:"strategy"`
	TeamsSelected int      `json:"teams_selected"`
	TotalBid      int      `json:"total_bid"`
	TotalValue    float64  `json:"total_value"`
	ValuePerPoint float64  `json:"value_per_point"`
	MeanBid       float64  `json:"mean_bid"`
	BidStdDev     float64  `json:"bid_std_dev"`
	Concentration float64  `json:"concentration"` // Herfindahl index of bid shares
	MeanOwnership float64  `json:"mean_ownership"`
	PointsCovered float64  `json:"points_covered"` // expected points of every selected team
}

// AllocatorComparison reports how far the greedy heuristic fell short of the DP
type AllocatorComparison struct {
	DPValue     float64 `json:"dp_value"`
	GreedyValue float64 `json:"greedy_value"`
	Gap         float64 `json:"gap"`
	GapPercent  float64 `json:"gap_percent"`
}

// SummarizePortfolio computes reporting metrics. Candidates supply the
// market and expected points of each selected team.
func SummarizePortfolio(portfolio *Portfolio, candidates []Candidate) PortfolioSummary {
	summary := PortfolioSummary{
		Strategy:      portfolio.Strategy,
		TeamsSelected: len(portfolio.Bids),
		TotalBid:      portfolio.TotalBid,
		TotalValue:    portfolio.TotalValue,
	}
	if len(portfolio.Bids) == 0 || portfolio.TotalBid == 0 {
		return summary
	}

	byKey := make(map[string]Candidate, len(candidates))
	for _, candidate := range candidates {
		byKey[candidate.TeamKey] = candidate
	}

	amounts := make([]float64, len(portfolio.Bids))
	ownership := make([]float64, len(portfolio.Bids))
	for i, bid := range portfolio.Bids {
		amounts[i] = float64(bid.BidAmount)
		candidate := byKey[bid.TeamKey]
		ownership[i] = Ownership(candidate.PredictedTeamTotalBids, bid.BidAmount)
		summary.PointsCovered += candidate.ExpectedTeamPoints
	}

	summary.ValuePerPoint = portfolio.TotalValue / float64(portfolio.TotalBid)
	summary.MeanBid, summary.BidStdDev = stat.MeanStdDev(amounts, nil)
	if math.IsNaN(summary.BidStdDev) {
		summary.BidStdDev = 0
	}
	summary.MeanOwnership = stat.Mean(ownership, nil)

	shares := make([]float64, len(amounts))
	copy(shares, amounts)
	floats.Scale(1/floats.Sum(amounts), shares)
	summary.Concentration = floats.Dot(shares, shares)

	return summary
}

// ComparePortfolios reports the DP's advantage over the greedy result
func ComparePortfolios(dpPortfolio, greedyPortfolio *Portfolio) AllocatorComparison {
	comparison := AllocatorComparison{
		DPValue:     dpPortfolio.TotalValue,
		GreedyValue: greedyPortfolio.TotalValue,
		Gap:         dpPortfolio.TotalValue - greedyPortfolio.TotalValue,
	}
	if dpPortfolio.TotalValue > 0 {
		comparison.GapPercent = comparison.Gap / dpPortfolio.TotalValue * 100
	}
	return comparison
}
