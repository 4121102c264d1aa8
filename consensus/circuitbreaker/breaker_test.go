// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/log"

	"github.com/luxfi/safety/utils/timer/mockable"
)

var errTest = errors.New("non-nil error")

func newTestBreaker(t *testing.T, config Config) (*CircuitBreaker, *mockable.Clock) {
	t.Helper()

	clock := &mockable.Clock{}
	clock.Set(time.Unix(1_700_000_000, 0))
	metrics, err := NewMetrics("test", prometheus.NewRegistry())
	require.NoError(t, err)
	cb, err := New(config, clock, log.NewNoOpLogger(), metrics)
	require.NoError(t, err)
	return cb, clock
}

func testConfig() Config {
	return Config{
		Name:             "test",
		FailureThreshold: 3,
		OpenDuration:     10 * time.Second,
		SuccessThreshold: 2,
		OperationTimeout: time.Second,
	}
}

func TestConfigVerify(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "missing name", modify: func(c *Config) { c.Name = "" }, wantErr: ErrMissingName},
		{name: "zero failure threshold", modify: func(c *Config) { c.FailureThreshold = 0 }, wantErr: ErrInvalidFailureThreshold},
		{name: "zero success threshold", modify: func(c *Config) { c.SuccessThreshold = 0 }, wantErr: ErrInvalidSuccessThreshold},
		{name: "zero open duration", modify: func(c *Config) { c.OpenDuration = 0 }, wantErr: ErrInvalidOpenDuration},
		{name: "negative timeout", modify: func(c *Config) { c.OperationTimeout = -1 }, wantErr: ErrInvalidOperationTimeout},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := testConfig()
			test.modify(&config)
			require.ErrorIs(t, config.Verify(), test.wantErr)
		})
	}
}

func TestOpensAfterFailureThreshold(t *testing.T) {
	for n := 3; n <= 6; n++ {
		cb, _ := newTestBreaker(t, testConfig())
		for i := 0; i < n; i++ {
			cb.RecordFailure()
		}
		require.Equal(t, Open, cb.State())
		require.False(t, cb.AllowRequest())
	}
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	require := require.New(t)

	cb, _ := newTestBreaker(t, testConfig())
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	require.Equal(Closed, cb.State())
	require.Equal(uint32(2), cb.Stats().ConsecutiveFailures)
}

func TestHalfOpenAfterOpenDuration(t *testing.T) {
	require := require.New(t)

	cb, clock := newTestBreaker(t, testConfig())
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.Equal(Open, cb.State())

	clock.Advance(9 * time.Second)
	require.False(cb.AllowRequest())
	require.Equal(Open, cb.State())

	clock.Advance(time.Second)
	require.True(cb.AllowRequest())
	require.Equal(HalfOpen, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	require := require.New(t)

	cb, clock := newTestBreaker(t, testConfig())
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	clock.Advance(10 * time.Second)
	require.Equal(HalfOpen, cb.State())

	cb.RecordFailure()
	require.Equal(Open, cb.State())
	require.Equal(clock.Time(), cb.Stats().OpenedAt)
}

func TestHalfOpenSuccessesClose(t *testing.T) {
	require := require.New(t)

	cb, clock := newTestBreaker(t, testConfig())
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	clock.Advance(10 * time.Second)
	require.Equal(HalfOpen, cb.State())

	cb.RecordSuccess()
	require.Equal(HalfOpen, cb.State())
	cb.RecordSuccess()
	require.Equal(Closed, cb.State())

	stats := cb.Stats()
	require.Zero(stats.ConsecutiveFailures)
	require.Zero(stats.ConsecutiveSuccesses)
	require.True(stats.OpenedAt.IsZero())
	require.Equal(uint64(3), stats.StateChanges)
}

func TestExecute(t *testing.T) {
	require := require.New(t)

	cb, _ := newTestBreaker(t, testConfig())

	require.NoError(cb.Execute(func() error { return nil }))

	err := cb.Execute(func() error { return errTest })
	require.ErrorIs(err, errTest)
	require.ErrorIs(err, ErrOperationFailed)
	var opErr *OperationError
	require.ErrorAs(err, &opErr)
	require.Equal("test", opErr.Breaker)

	require.Error(cb.Execute(func() error { return errTest }))
	require.Error(cb.Execute(func() error { return errTest }))
	require.Equal(Open, cb.State())

	ran := false
	err = cb.Execute(func() error {
		ran = true
		return nil
	})
	require.ErrorIs(err, ErrCircuitOpen)
	require.False(ran)

	stats := cb.Stats()
	require.Equal(uint64(5), stats.TotalRequests)
	require.Equal(uint64(1), stats.TotalSuccesses)
	require.Equal(uint64(3), stats.TotalFailures)
	require.Equal(uint64(1), stats.TotalRejections)
}

func TestExecuteWithFallback(t *testing.T) {
	require := require.New(t)

	cb, _ := newTestBreaker(t, testConfig())
	fallback := func() int { return -1 }

	got := ExecuteWithFallback(cb, func() (int, error) { return 7, nil }, fallback)
	require.Equal(7, got)

	got = ExecuteWithFallback(cb, func() (int, error) { return 7, errTest }, fallback)
	require.Equal(-1, got)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	require.Equal(Open, cb.State())
	got = ExecuteWithFallback(cb, func() (int, error) { return 7, nil }, fallback)
	require.Equal(-1, got)
}

func TestExecuteContextTimeout(t *testing.T) {
	require := require.New(t)

	config := testConfig()
	config.OperationTimeout = time.Millisecond
	cb, _ := newTestBreaker(t, config)

	err := cb.ExecuteContext(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(err, context.DeadlineExceeded)
	require.Equal(uint64(1), cb.Stats().TotalFailures)
}

func TestReset(t *testing.T) {
	require := require.New(t)

	cb, _ := newTestBreaker(t, testConfig())
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.Equal(Open, cb.State())

	cb.Reset()
	require.Equal(Closed, cb.State())
	require.True(cb.AllowRequest())
	require.Equal(uint64(3), cb.Stats().TotalFailures)
}

func TestConcurrentRecording(t *testing.T) {
	require := require.New(t)

	config := testConfig()
	config.FailureThreshold = 1_000
	cb, _ := newTestBreaker(t, config)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cb.RecordFailure()
				_ = cb.AllowRequest()
			}
		}()
	}
	wg.Wait()

	stats := cb.Stats()
	require.Equal(uint64(1_000), stats.TotalFailures)
	require.Equal(uint64(1_000), stats.TotalRequests)
	require.Equal(Open.String(), stats.State)
	require.Equal(uint64(1), stats.StateChanges)
}
