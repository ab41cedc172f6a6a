package optimizer

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAllocator(t *testing.T) {
	opts := DefaultAllocatorOptions()
	opts.GreedyStep = 4
	opts.MaxDPStates = 1234
	opts.MaxGreedyWork = 5678
	opts.Logger = logrus.WithField("test", t.Name())

	tests := []struct {
		strategy Strategy
		want     Strategy
	}{
		{"", StrategyDP},
		{StrategyDP, StrategyDP},
		{StrategyGreedy, StrategyGreedy},
		{StrategyWaterfill, StrategyWaterfill},
	}
	for _, tt := range tests {
		allocator, err := NewAllocator(tt.strategy, opts)
		require.NoError(t, err)
		assert.Equal(t, tt.want, allocator.Strategy())
	}

	allocator, err := NewAllocator(StrategyGreedy, opts)
	require.NoError(t, err)
	assert.Equal(t, 4, allocator.(*GreedyAllocator).Step())
	assert.Equal(t, int64(5678), allocator.(*GreedyAllocator).MaxWork())

	allocator, err = NewAllocator(StrategyDP, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), allocator.(*DPAllocator).MaxStates())

	_, err = NewAllocator("simplex", opts)
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
	assert.Contains(t, err.Error(), "strategy")
}

func TestSizeCheckers(t *testing.T) {
	opts := DefaultAllocatorOptions()
	for _, s := range []Strategy{StrategyDP, StrategyGreedy} {
		allocator, err := NewAllocator(s, opts)
		require.NoError(t, err)
		checker, ok := allocator.(SizeChecker)
		require.True(t, ok, s)
		assert.NoError(t, checker.CheckSize(4, scenarioConstraints()))
	}

	allocator, err := NewAllocator(StrategyWaterfill, opts)
	require.NoError(t, err)
	_, ok := allocator.(SizeChecker)
	assert.False(t, ok, "waterfill work is linear in the team count")
}

func TestParseStrategy(t *testing.T) {
	for _, s := range Strategies() {
		parsed, err := ParseStrategy(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	parsed, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyDP, parsed)

	_, err = ParseStrategy("DP")
	assert.True(t, IsInvalidInput(err))
}

func TestAllStrategiesProduceValidPortfolios(t *testing.T) {
	candidates, c := scenarioCandidates(), scenarioConstraints()
	for _, s := range Strategies() {
		allocator, err := NewAllocator(s, DefaultAllocatorOptions())
		require.NoError(t, err)

		portfolio, err := allocator.Allocate(candidates, c)
		require.NoError(t, err, s)
		assert.Equal(t, s, portfolio.Strategy)
		assert.NoError(t, ValidatePortfolio(portfolio, candidates, c))
	}
}

func TestPortfolio_RecordsAndBidFor(t *testing.T) {
	portfolio := newPortfolio(StrategyDP, scenarioCandidates(), []int{3, 0, 7, 0})

	require.Len(t, portfolio.Bids, 2)
	assert.Equal(t, "t3", portfolio.Bids[0].TeamKey, "larger bid first")
	assert.Equal(t, 3, portfolio.BidFor("t1"))
	assert.Equal(t, 0, portfolio.BidFor("t2"))

	records := portfolio.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "t3", records[0]["team_key"])
	assert.Equal(t, 7, records[0]["bid_amount"])
	assert.InDelta(t, ExpectedValue(40, 10, 7), records[0]["score"], 1e-12)
}

func TestRankByEntryValue_TiesByKey(t *testing.T) {
	candidates := []Candidate{
		{TeamKey: "b", ExpectedTeamPoints: 10, PredictedTeamTotalBids: 1},
		{TeamKey: "a", ExpectedTeamPoints: 10, PredictedTeamTotalBids: 1},
		{TeamKey: "c", ExpectedTeamPoints: 20, PredictedTeamTotalBids: 1},
	}
	assert.Equal(t, []int{2, 1, 0}, rankByEntryValue(candidates, 1))
}
