package optimizer

import (
	"time"

	"github.com/sirupsen/logrus"
)

// WaterfillBids spreads budget over k teams as if placing one point at a
// time round robin: every team gets budget/k and the first budget%k get one
// more. It fails if the budget cannot fit under maxPerTeam.
func WaterfillBids(k, budget, maxPerTeam int) ([]int, error) {
	if k <= 0 {
		return nil, invalidField("k", "must be positive, got %d", k)
	}
	if budget < 0 {
		return nil, invalidField("budget", "must not be negative, got %d", budget)
	}
	if maxPerTeam <= 0 {
		return nil, invalidField("max_per_team", "must be positive, got %d", maxPerTeam)
	}
	if int64(budget) > int64(k)*int64(maxPerTeam) {
		return nil, infeasible("budget %d does not fit in %d teams capped at %d", budget, k, maxPerTeam)
	}

	// budget <= k*maxPerTeam, so base+1 <= maxPerTeam whenever extra > 0
	base, extra := budget/k, budget%k
	bids := make([]int, k)
	for i := range bids {
		bids[i] = base
		if i < extra {
			bids[i]++
		}
	}
	return bids, nil
}

// WaterfillAllocator is the flat baseline: it picks the fewest top-ranked
// teams able to absorb the budget and spreads it evenly across them.
type WaterfillAllocator struct {
	logger *logrus.Entry
}

// NewWaterfillAllocator creates the baseline allocator
func NewWaterfillAllocator() *WaterfillAllocator {
	return &WaterfillAllocator{
		logger: logrus.WithField("component", "waterfill_allocator"),
	}
}

// SetLogger replaces the allocator's logger
func (w *WaterfillAllocator) SetLogger(logger *logrus.Entry) {
	w.logger = logger.WithField("component", "waterfill_allocator")
}

// Strategy implements Allocator
func (w *WaterfillAllocator) Strategy() Strategy {
	return StrategyWaterfill
}

// Allocate implements Allocator
func (w *WaterfillAllocator) Allocate(candidates []Candidate, c Constraints) (*Portfolio, error) {
	started := time.Now()
	if portfolio, err := prepare(StrategyWaterfill, candidates, c); portfolio != nil || err != nil {
		return portfolio, err
	}

	k, err := w.teamCount(len(candidates), c)
	if err != nil {
		return nil, err
	}

	amounts, err := WaterfillBids(k, c.Budget, c.MaxPerTeam)
	if err != nil {
		return nil, err
	}

	order := rankByEntryValue(candidates, c.MinBid)
	bids := make([]int, len(candidates))
	for slot, amount := range amounts {
		bids[order[slot]] = amount
	}

	w.logger.WithFields(logrus.Fields{
		"candidates":  len(candidates),
		"team_count":  k,
		"constraints": describeConstraints(c),
	}).Debug("Waterfill distribution computed")

	return finish(w.logger, newPortfolio(StrategyWaterfill, candidates, bids), candidates, c, started)
}

// teamCount picks the smallest k in range that can absorb the budget under
// the cap while still paying min_bid to each team.
func (w *WaterfillAllocator) teamCount(numCandidates int, c Constraints) (int, error) {
	low := c.MinTeams
	if low < 1 {
		low = 1
	}
	high := c.EffectiveMaxTeams(numCandidates)

	for k := low; k <= high; k++ {
		if k*c.MaxPerTeam >= c.Budget && k*c.MinBid <= c.Budget {
			return k, nil
		}
	}
	return 0, infeasible("no team count in [%d, %d] spreads budget %d evenly within [%d, %d] per team",
		low, high, c.Budget, c.MinBid, c.MaxPerTeam)
}
