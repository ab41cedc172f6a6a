package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/calcutta-sim/internal/models"
	"github.com/stitts-dev/calcutta-sim/internal/optimizer"
)

func saveTestRun(t *testing.T, repo *RunRepository, hash string) *models.AllocationRun {
	t.Helper()
	portfolio := &optimizer.Portfolio{
		Strategy:   optimizer.StrategyGreedy,
		Bids:       []optimizer.Bid{{TeamKey: "t1", BidAmount: 4, Score: 10}, {TeamKey: "t2", BidAmount: 1, Score: 2}},
		TotalBid:   5,
		TotalValue: 12,
	}
	c := optimizer.Constraints{Budget: 5, MinBid: 1, MaxPerTeam: 4, MinTeams: 1, MaxTeams: 2}
	run, err := models.NewAllocationRun(hash, map[string]string{"hash": hash}, c, 2, portfolio, nil, time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), run))
	return run
}

func TestRunRepository_SaveGetList(t *testing.T) {
	repo := NewRunRepository(newTestDB(t), nil)
	ctx := context.Background()

	first := saveTestRun(t, repo, "first")
	second := saveTestRun(t, repo, "second")

	loaded, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", loaded.RequestHash)
	assert.Len(t, loaded.Bids, 2)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)

	runs, total, err := repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, runs, 1)
	assert.Contains(t, []uuid.UUID{first.ID, second.ID}, runs[0].ID)
}

func TestRunRepository_DeleteOlderThan(t *testing.T) {
	db := newTestDB(t)
	repo := NewRunRepository(db, nil)
	ctx := context.Background()

	old := saveTestRun(t, repo, "old")
	fresh := saveTestRun(t, repo, "fresh")

	longAgo := time.Now().Add(-90 * 24 * time.Hour)
	require.NoError(t, db.Model(&models.AllocationRun{}).Where("id = ?", old.ID).Update("created_at", longAgo).Error)

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = repo.Get(ctx, fresh.ID)
	assert.NoError(t, err)

	var orphanBids int64
	require.NoError(t, db.Model(&models.AllocationBid{}).Where("run_id = ?", old.ID).Count(&orphanBids).Error)
	assert.Zero(t, orphanBids)
}
