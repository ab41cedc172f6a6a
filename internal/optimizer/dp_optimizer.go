package optimizer

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMaxDPStates bounds the backtrack table (items x budget x teams)
const DefaultMaxDPStates int64 = 20_000_000

// dpTransitionsPerState scales the state limit into a bound on relaxation
// work (items x budget x teams x bid levels)
const dpTransitionsPerState int64 = 50

// DPAllocator solves the allocation exactly with a knapsack dynamic program
// over (item, spent, teams selected). Working tables are allocated per call
// so one allocator can serve concurrent requests.
type DPAllocator struct {
	maxStates int64
	logger    *logrus.Entry
}

// DPStats describes the table built by one DP run
type DPStats struct {
	Items            int           `json:"items"`
	TableCells       int64         `json:"table_cells"`
	Transitions      int64         `json:"transitions"`
	TeamsSelected    int           `json:"teams_selected"`
	OptimizationTime time.Duration `json:"optimization_time"`
}

// dpTable holds the rolling value layers and the backtrack cube. keep is a
// flat arena indexed by (item, spent, k); 0 means the item was skipped.
type dpTable struct {
	budget int
	width  int // maxTeams + 1
	cur    []float64
	next   []float64
	keep   []int32
}

func newDPTable(items, budget, maxTeams int) *dpTable {
	width := maxTeams + 1
	layer := (budget + 1) * width
	t := &dpTable{
		budget: budget,
		width:  width,
		cur:    make([]float64, layer),
		next:   make([]float64, layer),
		keep:   make([]int32, items*layer),
	}
	negInf := math.Inf(-1)
	for i := range t.cur {
		t.cur[i] = negInf
	}
	t.cur[0] = 0
	return t
}

func (t *dpTable) cell(spent, k int) int {
	return spent*t.width + k
}

func (t *dpTable) keepLayer(item int) []int32 {
	size := (t.budget + 1) * t.width
	return t.keep[item*size : (item+1)*size]
}

// NewDPAllocator creates an exact allocator. maxStates caps the backtrack
// table size; non-positive values use DefaultMaxDPStates.
func NewDPAllocator(maxStates int64) *DPAllocator {
	if maxStates <= 0 {
		maxStates = DefaultMaxDPStates
	}
	return &DPAllocator{
		maxStates: maxStates,
		logger:    logrus.WithField("component", "dp_allocator"),
	}
}

// SetLogger replaces the allocator's logger
func (dp *DPAllocator) SetLogger(logger *logrus.Entry) {
	dp.logger = logger.WithField("component", "dp_allocator")
}

// Strategy implements Allocator
func (dp *DPAllocator) Strategy() Strategy {
	return StrategyDP
}

// MaxStates returns the configured table size limit
func (dp *DPAllocator) MaxStates() int64 {
	return dp.maxStates
}

// Allocate implements Allocator
func (dp *DPAllocator) Allocate(candidates []Candidate, c Constraints) (*Portfolio, error) {
	portfolio, _, err := dp.AllocateWithStats(candidates, c)
	return portfolio, err
}

// AllocateWithStats runs the DP and also reports the size of the table it built
func (dp *DPAllocator) AllocateWithStats(candidates []Candidate, c Constraints) (*Portfolio, DPStats, error) {
	started := time.Now()
	stats := DPStats{Items: len(candidates)}

	if portfolio, err := prepare(StrategyDP, candidates, c); portfolio != nil || err != nil {
		return portfolio, stats, err
	}

	maxTeams := c.EffectiveMaxTeams(len(candidates))
	cells, err := dp.tableCells(len(candidates), c)
	if err != nil {
		return nil, stats, err
	}
	stats.TableCells = cells

	dp.logger.WithFields(logrus.Fields{
		"candidates":  len(candidates),
		"table_cells": stats.TableCells,
		"constraints": describeConstraints(c),
	}).Debug("Building DP table")

	table := newDPTable(len(candidates), c.Budget, maxTeams)
	values := bidValues(candidates, c)
	for i := range candidates {
		stats.Transitions += dp.relaxItem(table, i, values[i], maxTeams, c)
	}

	bestK, ok := dp.selectTeamCount(table, maxTeams, c)
	if !ok {
		stats.OptimizationTime = time.Since(started)
		return nil, stats, infeasible("no team count in [%d, %d] spends budget %d exactly within [%d, %d] per team",
			c.MinTeams, maxTeams, c.Budget, c.MinBid, c.MaxPerTeam)
	}

	bids, err := dp.backtrack(table, len(candidates), bestK, c)
	if err != nil {
		dp.logger.WithError(err).Error("DP backtracking failed")
		return nil, stats, err
	}

	stats.TeamsSelected = bestK
	stats.OptimizationTime = time.Since(started)

	dp.logger.WithFields(logrus.Fields{
		"transitions":    stats.Transitions,
		"teams_selected": bestK,
		"best_value":     table.cur[table.cell(c.Budget, bestK)],
	}).Debug("DP table solved")

	portfolio, err := finish(dp.logger, newPortfolio(StrategyDP, candidates, bids), candidates, c, started)
	return portfolio, stats, err
}

// CheckSize rejects inputs whose backtrack table would exceed the state limit
func (dp *DPAllocator) CheckSize(numCandidates int, c Constraints) error {
	_, err := dp.tableCells(numCandidates, c)
	return err
}

// tableCells returns items x (budget+1) x (maxTeams+1) after checking both
// the table size and the number of transitions relaxing it would take.
// Bounds are checked by division first so huge budgets cannot wrap.
func (dp *DPAllocator) tableCells(numCandidates int, c Constraints) (int64, error) {
	if numCandidates <= 0 {
		return 0, nil
	}
	items := int64(numCandidates)
	columns := int64(c.Budget) + 1
	teams := int64(c.EffectiveMaxTeams(numCandidates))
	if teams < 1 {
		teams = 1
	}
	if columns > dp.maxStates/items/(teams+1) {
		return 0, invalidField("budget", "DP table for %d candidates at budget %d exceeds the limit of %d states; lower the budget or use the greedy strategy",
			numCandidates, c.Budget, dp.maxStates)
	}

	maxTransitions := int64(math.MaxInt64)
	if dp.maxStates <= maxTransitions/dpTransitionsPerState {
		maxTransitions = dp.maxStates * dpTransitionsPerState
	}
	levels := int64(c.MaxPerTeam - c.MinBid + 1)
	if budgetLevels := int64(c.Budget - c.MinBid + 1); budgetLevels < levels {
		levels = budgetLevels
	}
	if levels > 1 && levels > maxTransitions/(items*columns*teams) {
		return 0, invalidField("max_per_team", "DP relaxation for %d candidates at budget %d with bids up to %d exceeds the limit of %d transitions; lower max_per_team or use the greedy strategy",
			numCandidates, c.Budget, c.MaxPerTeam, maxTransitions)
	}
	return items * columns * (teams + 1), nil
}

// bidValues evaluates the value function once per (item, admissible bid).
// values[i][b-MinBid] is the value of bidding b on item i.
func bidValues(candidates []Candidate, c Constraints) [][]float64 {
	levels := c.MaxPerTeam - c.MinBid + 1
	if maxLevels := c.Budget - c.MinBid + 1; maxLevels < levels {
		levels = maxLevels
	}
	if levels < 0 {
		levels = 0
	}

	values := make([][]float64, len(candidates))
	for i, candidate := range candidates {
		values[i] = make([]float64, levels)
		for j := range values[i] {
			values[i][j] = candidate.Value(c.MinBid + j)
		}
	}
	return values
}

// relaxItem applies item i's skip and select transitions, moving table.next
// into table.cur when done. Equal values prefer the larger bid; a skip
// counts as bid 0.
func (dp *DPAllocator) relaxItem(table *dpTable, item int, values []float64, maxTeams int, c Constraints) int64 {
	copy(table.next, table.cur)
	keep := table.keepLayer(item)
	var transitions int64

	for spent := 0; spent <= table.budget; spent++ {
		for k := 0; k < maxTeams; k++ {
			base := table.cur[table.cell(spent, k)]
			if math.IsInf(base, -1) {
				continue
			}

			maxBid := c.MaxPerTeam
			if room := table.budget - spent; room < maxBid {
				maxBid = room
			}
			for bid := c.MinBid; bid <= maxBid; bid++ {
				target := table.cell(spent+bid, k+1)
				candidate := base + values[bid-c.MinBid]
				existing := table.next[target]
				transitions++

				switch {
				case math.IsInf(existing, -1), candidate > existing+ValueTolerance:
				case valuesEqual(candidate, existing) && int32(bid) > keep[target]:
				default:
					continue
				}
				table.next[target] = candidate
				keep[target] = int32(bid)
			}
		}
	}

	table.cur, table.next = table.next, table.cur
	return transitions
}

// selectTeamCount picks the k in [MinTeams, maxTeams] with the best value
// at full budget. Ties prefer the smaller k.
func (dp *DPAllocator) selectTeamCount(table *dpTable, maxTeams int, c Constraints) (int, bool) {
	bestK := -1
	bestValue := math.Inf(-1)
	for k := c.MinTeams; k <= maxTeams; k++ {
		value := table.cur[table.cell(c.Budget, k)]
		if math.IsInf(value, -1) {
			continue
		}
		if bestK < 0 || value > bestValue+ValueTolerance {
			bestK = k
			bestValue = value
		}
	}
	return bestK, bestK >= 0
}

// backtrack walks the items in reverse, reading each recorded bid. It must
// land exactly on (spent=0, k=0).
func (dp *DPAllocator) backtrack(table *dpTable, items, bestK int, c Constraints) ([]int, error) {
	bids := make([]int, items)
	spent, k := c.Budget, bestK

	for i := items - 1; i >= 0; i-- {
		bid := int(table.keepLayer(i)[table.cell(spent, k)])
		if bid == 0 {
			continue
		}
		if bid < c.MinBid || bid > c.MaxPerTeam || bid > spent || k == 0 {
			return nil, invariant(StrategyDP, "item %d recorded bid %d at state (spent=%d, k=%d)", i, bid, spent, k)
		}
		bids[i] = bid
		spent -= bid
		k--
	}

	if spent != 0 || k != 0 {
		return nil, invariant(StrategyDP, "backtracking ended at (spent=%d, k=%d), want (0, 0)", spent, k)
	}
	return bids, nil
}
