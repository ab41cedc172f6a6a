package services

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stitts-dev/calcutta-sim/internal/models"
	"github.com/stitts-dev/calcutta-sim/internal/optimizer"
	"github.com/stitts-dev/calcutta-sim/pkg/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(gormDB))
	t.Cleanup(func() { sqlDB.Close() })
	return database.Wrap(gormDB)
}

func testRequest() AllocationRequest {
	return AllocationRequest{
		Constraints: optimizer.ConstraintsInput{Budget: 10, MinBid: 1, MaxPerTeam: 7, MinTeams: 2, MaxTeams: 3},
		Candidates: []optimizer.Candidate{
			{TeamKey: "t1", ExpectedTeamPoints: 100, PredictedTeamTotalBids: 10},
			{TeamKey: "t2", ExpectedTeamPoints: 60, PredictedTeamTotalBids: 10},
			{TeamKey: "t3", ExpectedTeamPoints: 40, PredictedTeamTotalBids: 10},
			{TeamKey: "t4", ExpectedTeamPoints: 20, PredictedTeamTotalBids: 10},
		},
	}
}

// fieldOf builds n identical candidates with distinct keys
func fieldOf(n int) []optimizer.Candidate {
	candidates := make([]optimizer.Candidate, n)
	for i := range candidates {
		candidates[i] = optimizer.Candidate{
			TeamKey:                fmt.Sprintf("team_%05d", i),
			ExpectedTeamPoints:     50,
			PredictedTeamTotalBids: 20,
		}
	}
	return candidates
}

// metricValue returns the value of a counter or the sample count of a
// histogram matching name and labels, or 0 when absent
func metricValue(t *testing.T, reg prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter != nil {
				return metric.Counter.GetValue()
			}
			if metric.Histogram != nil {
				return float64(metric.Histogram.GetSampleCount())
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok {
			if want != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}
