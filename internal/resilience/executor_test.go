package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docextract/internal/config"
	"docextract/internal/resilience"
)

func fastPolicy(attempts int, breaker bool) resilience.Policy {
	return resilience.Policy{
		MaxAttempts:             attempts,
		InitialBackoff:          time.Millisecond,
		MaxBackoff:              2 * time.Millisecond,
		Multiplier:              2,
		BreakerEnabled:          breaker,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func retryable(err error) resilience.Classification {
	return resilience.Classification{Retryable: true, RecordFailure: true}
}

func TestExecute_SuccessCallsOnce(t *testing.T) {
	exec := resilience.NewExecutor(fastPolicy(3, true), zap.NewNop())

	calls := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	}, retryable)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_RetriesTemporaryFailure(t *testing.T) {
	exec := resilience.NewExecutor(fastPolicy(3, false), zap.NewNop())

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) resilience.Classification {
		return resilience.Classification{Retryable: errors.Is(err, errTemp), RecordFailure: true}
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecute_DoesNotRetryPermanentFailure(t *testing.T) {
	exec := resilience.NewExecutor(fastPolicy(3, false), zap.NewNop())

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) resilience.Classification {
		return resilience.Classification{}
	})

	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, attempts)
}

func TestExecute_SingleAttemptByDefault(t *testing.T) {
	exec := resilience.NewExecutor(resilience.Policy{}, nil)

	attempts := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errors.New("fail")
	}, retryable)

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestExecute_OpensCircuitAfterFailures(t *testing.T) {
	exec := resilience.NewExecutor(fastPolicy(1, true), zap.NewNop())

	errTemp := errors.New("temporary")
	require.NoError(t, exec.Ready("op"))
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, retryable)
		assert.ErrorIs(t, err, errTemp)
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, retryable)

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, resilience.IsCircuitOpen(err))
	assert.ErrorIs(t, exec.Ready("op"), gobreaker.ErrOpenState)
}

func TestExecute_UnrecordedFailuresKeepCircuitClosed(t *testing.T) {
	exec := resilience.NewExecutor(fastPolicy(1, true), zap.NewNop())

	errBad := errors.New("bad input")
	for i := 0; i < 5; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errBad
		}, func(error) resilience.Classification {
			return resilience.Classification{Retryable: false, RecordFailure: false}
		})
		assert.ErrorIs(t, err, errBad)
		assert.False(t, resilience.IsCircuitOpen(err))
	}
}

func TestExecute_StopsRetryingWhenContextDone(t *testing.T) {
	exec := resilience.NewExecutor(resilience.Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Second,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(ctx, "op", func(context.Context) error {
		attempts++
		cancel()
		return errTemp
	}, retryable)

	assert.ErrorIs(t, err, errTemp)
	assert.Equal(t, 1, attempts)
}

func TestExecute_NilCallback(t *testing.T) {
	exec := resilience.NewExecutor(resilience.DefaultPolicy(), nil)

	err := exec.Execute(context.Background(), "op", nil, nil)

	assert.Error(t, err)
}

func TestPolicyFromConfig(t *testing.T) {
	p := resilience.PolicyFromConfig(config.ResilienceConfig{
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     time.Second,
		RetryMultiplier:     3,
		BreakerEnabled:      true,
		BreakerMinRequests:  4,
	}, 2)

	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.InitialBackoff)
	assert.Equal(t, 3.0, p.Multiplier)
	assert.Equal(t, uint32(4), p.BreakerMinRequests)
}
