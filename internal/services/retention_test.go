package services

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionService_Purge(t *testing.T) {
	db := newTestDB(t)
	repo := NewRunRepository(db, nil)
	metrics := NewMetrics()
	saveTestRun(t, repo, "a")
	saveTestRun(t, repo, "b")

	svc := NewRetentionService(repo, metrics, logrus.New(), "0 3 * * *", 7)

	deleted, err := svc.Purge(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted, "nothing is older than a week")

	svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	deleted, err = svc.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, 2.0, metricValue(t, metrics.Registry(), "calcutta_runs_purged_total", nil))
}

func TestRetentionService_StartStop(t *testing.T) {
	repo := NewRunRepository(newTestDB(t), nil)
	svc := NewRetentionService(repo, nil, logrus.New(), "@every 1h", 30)

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())
	assert.Error(t, svc.Start(), "double start rejected")

	svc.Stop()
	assert.False(t, svc.IsRunning())
	svc.Stop()
}

func TestRetentionService_BadSchedule(t *testing.T) {
	svc := NewRetentionService(nil, nil, logrus.New(), "not a schedule", 30)
	err := svc.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a schedule")
	assert.False(t, svc.IsRunning())
}

func TestRetentionService_DisabledWindow(t *testing.T) {
	svc := NewRetentionService(nil, nil, logrus.New(), "0 3 * * *", 0)
	require.NoError(t, svc.Start())
	assert.False(t, svc.IsRunning())
}
