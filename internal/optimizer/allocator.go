package optimizer

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Allocator chooses integer bids for a subset of candidates
type Allocator interface {
	Strategy() Strategy
	Allocate(candidates []Candidate, constraints Constraints) (*Portfolio, error)
}

// AllocatorOptions tunes the allocators built by NewAllocator
type AllocatorOptions struct {
	GreedyStep    int   `json:"greedy_step"`
	MaxGreedyWork int64 `json:"max_greedy_work"`
	MaxDPStates   int64 `json:"max_dp_states"`
	Logger        *logrus.Entry
}

// SizeChecker is implemented by allocators whose work grows with the budget
type SizeChecker interface {
	CheckSize(numCandidates int, constraints Constraints) error
}

// DefaultAllocatorOptions returns the options used when none are configured
func DefaultAllocatorOptions() AllocatorOptions {
	return AllocatorOptions{
		GreedyStep:    1,
		MaxGreedyWork: DefaultMaxGreedyWork,
		MaxDPStates:   DefaultMaxDPStates,
	}
}

// NewAllocator returns the allocator for strategy
func NewAllocator(strategy Strategy, opts AllocatorOptions) (Allocator, error) {
	var allocator Allocator
	switch strategy {
	case StrategyDP, "":
		allocator = NewDPAllocator(opts.MaxDPStates)
	case StrategyGreedy:
		allocator = NewGreedyAllocator(opts.GreedyStep, opts.MaxGreedyWork)
	case StrategyWaterfill:
		allocator = NewWaterfillAllocator()
	default:
		return nil, invalidField("strategy", "unknown strategy %q", strategy)
	}

	if opts.Logger != nil {
		if l, ok := allocator.(interface{ SetLogger(*logrus.Entry) }); ok {
			l.SetLogger(opts.Logger)
		}
	}
	return allocator, nil
}

// ParseStrategy maps a caller-supplied name to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyDP, StrategyGreedy, StrategyWaterfill:
		return Strategy(name), nil
	case "":
		return StrategyDP, nil
	}
	return "", invalidField("strategy", "unknown strategy %q", name)
}

// Strategies lists every supported strategy
func Strategies() []Strategy {
	return []Strategy{StrategyDP, StrategyGreedy, StrategyWaterfill}
}

// prepare runs the shared pre-optimization checks. When it returns a
// non-nil portfolio the allocator must return it without further work.
func prepare(strategy Strategy, candidates []Candidate, c Constraints) (*Portfolio, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateCandidates(candidates); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		if c.MinTeams == 0 {
			return &Portfolio{Strategy: strategy, Bids: []Bid{}}, nil
		}
		return nil, invalidField("candidates", "no candidates supplied")
	}
	if err := CheckFeasibility(candidates, c); err != nil {
		return nil, err
	}
	return nil, nil
}

// finish validates a portfolio and logs the run summary
func finish(logger *logrus.Entry, portfolio *Portfolio, candidates []Candidate, c Constraints, started time.Time) (*Portfolio, error) {
	if err := ValidatePortfolio(portfolio, candidates, c); err != nil {
		logger.WithError(err).Error("Allocator produced an invalid portfolio")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"teams_selected": len(portfolio.Bids),
		"total_bid":      portfolio.TotalBid,
		"total_value":    portfolio.TotalValue,
		"duration":       time.Since(started),
	}).Info("Allocation completed")

	return portfolio, nil
}

// rankByEntryValue returns candidate indexes ordered by value per point at
// bid, best first. Ties go to the lexically smaller team key.
func rankByEntryValue(candidates []Candidate, bid int) []int {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := candidates[order[a]], candidates[order[b]]
		va := ca.Value(bid) / float64(bid)
		vb := cb.Value(bid) / float64(bid)
		if !valuesEqual(va, vb) {
			return va > vb
		}
		return ca.TeamKey < cb.TeamKey
	})
	return order
}

func describeConstraints(c Constraints) string {
	return fmt.Sprintf("budget=%d min_bid=%d max_per_team=%d teams=[%d,%d]",
		c.Budget, c.MinBid, c.MaxPerTeam, c.MinTeams, c.MaxTeams)
}
