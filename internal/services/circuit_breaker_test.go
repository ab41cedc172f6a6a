package services

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerService_TripsAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreakerService(3, time.Minute, logrus.New())
	failing := func() (interface{}, error) { return nil, errors.New("down") }

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(BreakerDatabase, failing)
		require.Error(t, err)
		assert.Equal(t, gobreaker.StateClosed, cb.GetState(BreakerDatabase))
	}

	_, err := cb.Execute(BreakerDatabase, failing)
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, cb.GetState(BreakerDatabase))

	_, err = cb.Execute(BreakerDatabase, func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	assert.Equal(t, gobreaker.StateClosed, cb.GetState(BreakerRedis), "breakers are independent")
	assert.Equal(t, "open", cb.States()[BreakerDatabase])
}

func TestCircuitBreakerService_SuccessResetsStreak(t *testing.T) {
	cb := NewCircuitBreakerService(2, time.Minute, logrus.New())

	_, _ = cb.Execute(BreakerRedis, func() (interface{}, error) { return nil, errors.New("blip") })
	_, err := cb.Execute(BreakerRedis, func() (interface{}, error) { return 1, nil })
	require.NoError(t, err)
	_, _ = cb.Execute(BreakerRedis, func() (interface{}, error) { return nil, errors.New("blip") })

	assert.Equal(t, gobreaker.StateClosed, cb.GetState(BreakerRedis))
	assert.Equal(t, uint32(1), cb.GetCounts(BreakerRedis).ConsecutiveFailures)
}

func TestCircuitBreakerService_UnknownServiceUnprotected(t *testing.T) {
	cb := NewCircuitBreakerService(1, time.Minute, logrus.New())
	result, err := cb.Execute("nope", func() (interface{}, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, gobreaker.StateClosed, cb.GetState("nope"))
	assert.Equal(t, gobreaker.Counts{}, cb.GetCounts("nope"))
}
