package optimizer

import (
	"time"

	"github.com/sirupsen/logrus"
)

// GreedyAllocator is the marginal-value hill climber. It seeds the team
// count floor at min_bid, then repeatedly awards the next increment to the
// option with the best value per point. It never revisits an award, so the
// result is a local optimum only.
type GreedyAllocator struct {
	step    int
	maxWork int64
	logger  *logrus.Entry
}

// DefaultMaxGreedyWork bounds the option evaluations of one greedy run
// (growth iterations x candidates)
const DefaultMaxGreedyWork int64 = 50_000_000

// greedyOption is one legal next award during the growth phase
type greedyOption struct {
	index int
	cost  int
	rate  float64
}

// NewGreedyAllocator creates a greedy allocator awarding step points per
// growth iteration. Non-positive steps fall back to 1 and non-positive
// maxWork to DefaultMaxGreedyWork.
func NewGreedyAllocator(step int, maxWork int64) *GreedyAllocator {
	if step <= 0 {
		step = 1
	}
	if maxWork <= 0 {
		maxWork = DefaultMaxGreedyWork
	}
	return &GreedyAllocator{
		step:    step,
		maxWork: maxWork,
		logger:  logrus.WithField("component", "greedy_allocator"),
	}
}

// SetLogger replaces the allocator's logger
func (g *GreedyAllocator) SetLogger(logger *logrus.Entry) {
	g.logger = logger.WithField("component", "greedy_allocator")
}

// Strategy implements Allocator
func (g *GreedyAllocator) Strategy() Strategy {
	return StrategyGreedy
}

// Step returns the growth increment in points
func (g *GreedyAllocator) Step() int {
	return g.step
}

// MaxWork returns the configured work limit
func (g *GreedyAllocator) MaxWork() int64 {
	return g.maxWork
}

// CheckSize rejects inputs whose growth phase could exceed the work limit.
// Every iteration places at least step points except team entries, one
// capped award per team and the final award.
func (g *GreedyAllocator) CheckSize(numCandidates int, c Constraints) error {
	if numCandidates <= 0 {
		return nil
	}
	iterations := int64(c.Budget)/int64(g.step) + 2*int64(c.EffectiveMaxTeams(numCandidates)) + 1
	if iterations > g.maxWork/int64(numCandidates) {
		return invalidField("budget", "greedy growth for %d candidates at budget %d (step %d) exceeds the work limit of %d; lower the budget or raise the step",
			numCandidates, c.Budget, g.step, g.maxWork)
	}
	return nil
}

// Allocate implements Allocator
func (g *GreedyAllocator) Allocate(candidates []Candidate, c Constraints) (*Portfolio, error) {
	started := time.Now()
	if portfolio, err := prepare(StrategyGreedy, candidates, c); portfolio != nil || err != nil {
		return portfolio, err
	}
	if err := g.CheckSize(len(candidates), c); err != nil {
		return nil, err
	}

	maxTeams := c.EffectiveMaxTeams(len(candidates))
	bids := make([]int, len(candidates))

	// Seeding: team values are independent, so taking the top min_teams by
	// entry value is the same as picking the best remaining team each round.
	order := rankByEntryValue(candidates, c.MinBid)
	for _, idx := range order[:c.MinTeams] {
		bids[idx] = c.MinBid
	}
	selected := c.MinTeams
	remaining := c.Budget - c.MinTeams*c.MinBid

	g.logger.WithFields(logrus.Fields{
		"seeded_teams": selected,
		"remaining":    remaining,
		"constraints":  describeConstraints(c),
	}).Debug("Greedy seeding complete")

	iterations := 0
	for remaining > 0 {
		option, ok := g.bestOption(candidates, bids, selected, maxTeams, remaining, c)
		if !ok {
			break
		}
		if bids[option.index] == 0 {
			selected++
		}
		bids[option.index] += option.cost
		remaining -= option.cost
		iterations++
	}

	if remaining > 0 {
		g.logger.WithFields(logrus.Fields{
			"remaining":  remaining,
			"selected":   selected,
			"iterations": iterations,
		}).Warn("Greedy allocation could not place the full budget")
		return nil, infeasible("greedy allocation left %d of budget %d unplaced under %s",
			remaining, c.Budget, describeConstraints(c))
	}

	g.logger.WithFields(logrus.Fields{
		"iterations": iterations,
		"selected":   selected,
	}).Debug("Greedy growth complete")

	return finish(g.logger, newPortfolio(StrategyGreedy, candidates, bids), candidates, c, started)
}

// bestOption scans every legal award and returns the one with the highest
// marginal value per point. Ties go to the lexically smaller team key.
func (g *GreedyAllocator) bestOption(candidates []Candidate, bids []int, selected, maxTeams, remaining int, c Constraints) (greedyOption, bool) {
	best := greedyOption{index: -1}

	for i, candidate := range candidates {
		var option greedyOption
		current := bids[i]

		switch {
		case current > 0:
			headroom := c.MaxPerTeam - current
			if headroom <= 0 {
				continue
			}
			inc := minInt(g.step, headroom, remaining)
			gain := candidate.Value(current+inc) - candidate.Value(current)
			option = greedyOption{index: i, cost: inc, rate: gain / float64(inc)}
		case selected < maxTeams && remaining >= c.MinBid:
			option = greedyOption{index: i, cost: c.MinBid, rate: candidate.Value(c.MinBid) / float64(c.MinBid)}
		default:
			continue
		}

		if best.index < 0 || option.rate > best.rate+ValueTolerance ||
			(valuesEqual(option.rate, best.rate) && candidate.TeamKey < candidates[best.index].TeamKey) {
			best = option
		}
	}

	return best, best.index >= 0
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
