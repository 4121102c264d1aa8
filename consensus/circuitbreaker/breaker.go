// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package circuitbreaker implements a three-state breaker that fails fast when a
// dependency keeps failing, and the AI-layer composition of named breakers that
// guards the weight-consensus, commit-reveal and emission call sites.
//
// A breaker starts Closed. FailureThreshold consecutive failures trip it Open,
// where every call is rejected. Once OpenDuration has elapsed the next query
// moves it to HalfOpen, where calls are let through as probes: SuccessThreshold
// consecutive successes close it, a single failure opens it again.
//
// Breakers read the wall clock. Their state only decides whether this node
// attempts a local call and never feeds a value that has to match across
// nodes.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/safety/utils/timer/mockable"
)

var (
	// ErrCircuitOpen is returned when a call is rejected without being run.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrOperationFailed matches every *OperationError.
	ErrOperationFailed = errors.New("operation failed")
)

// State of a breaker.
type State uint8

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// OperationError wraps the error of an operation that ran and failed.
type OperationError struct {
	Breaker string
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Breaker, ErrOperationFailed, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func (*OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}

// Stats is a point-in-time copy of a breaker's counters.
type Stats struct {
	Name                 string    `json:"name"`
	State                string    `json:"state"`
	ConsecutiveFailures  uint32    `json:"consecutiveFailures"`
	ConsecutiveSuccesses uint32    `json:"consecutiveSuccesses"`
	OpenedAt             time.Time `json:"openedAt"`
	TotalRequests        uint64    `json:"totalRequests"`
	TotalSuccesses       uint64    `json:"totalSuccesses"`
	TotalFailures        uint64    `json:"totalFailures"`
	TotalRejections      uint64    `json:"totalRejections"`
	StateChanges         uint64    `json:"stateChanges"`
}

// CircuitBreaker is safe for concurrent use. Every state transition and the
// counter update that caused it happen under a single write-lock acquisition.
type CircuitBreaker struct {
	config  Config
	clock   *mockable.Clock
	log     log.Logger
	metrics *Metrics

	mu        sync.RWMutex
	state     State
	failures  uint32
	successes uint32
	openedAt  time.Time

	totalRequests   uint64
	totalSuccesses  uint64
	totalFailures   uint64
	totalRejections uint64
	stateChanges    uint64
}

// New returns a Closed breaker. A nil clock follows the system time.
func New(config Config, clock *mockable.Clock, log log.Logger, metrics *Metrics) (*CircuitBreaker, error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = &mockable.Clock{}
	}
	cb := &CircuitBreaker{
		config:  config,
		clock:   clock,
		log:     log,
		metrics: metrics,
	}
	metrics.observeState(config.Name, Closed)
	return cb, nil
}

func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

func (cb *CircuitBreaker) Config() Config {
	return cb.config
}

// State returns the current state after applying a due Open -> HalfOpen
// transition.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.checkOpenTimeout(cb.clock.Time())
	return cb.state
}

// AllowRequest reports whether a call may proceed. Calls are allowed while
// Closed and, as probes, while HalfOpen.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++
	cb.checkOpenTimeout(cb.clock.Time())
	return cb.state != Open
}

// RecordSuccess registers a call that completed successfully.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.clock.Time()
	cb.checkOpenTimeout(now)
	cb.totalSuccesses++

	switch cb.state {
	case Closed:
		cb.failures = 0
	case HalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionTo(Closed, now)
		}
	case Open:
		// A call that started before the breaker tripped; it does not count
		// towards recovery.
	}
}

// RecordFailure registers a call that failed.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.clock.Time()
	cb.checkOpenTimeout(now)
	cb.totalFailures++
	cb.metrics.observeFailure(cb.config.Name)

	switch cb.state {
	case Closed:
		cb.failures++
		cb.successes = 0
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(Open, now)
		}
	case HalfOpen:
		cb.failures++
		cb.transitionTo(Open, now)
	case Open:
		cb.failures++
	}
}

// RecordRejected registers a call that was not attempted because the breaker
// was open.
func (cb *CircuitBreaker) RecordRejected() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRejections++
	cb.metrics.observeRejection(cb.config.Name)
}

// Execute runs op if the breaker allows it and records the outcome.
// It returns ErrCircuitOpen without running op when the breaker is open, and
// an *OperationError when op fails.
func (cb *CircuitBreaker) Execute(op func() error) error {
	if !cb.AllowRequest() {
		cb.RecordRejected()
		return fmt.Errorf("%s: %w", cb.config.Name, ErrCircuitOpen)
	}
	if err := op(); err != nil {
		cb.RecordFailure()
		return &OperationError{Breaker: cb.config.Name, Err: err}
	}
	cb.RecordSuccess()
	return nil
}

// ExecuteContext is Execute with OperationTimeout applied to ctx. An op that
// returns because the deadline passed is recorded as a failure.
func (cb *CircuitBreaker) ExecuteContext(ctx context.Context, op func(context.Context) error) error {
	return cb.Execute(func() error {
		if cb.config.OperationTimeout <= 0 {
			return op(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, cb.config.OperationTimeout)
		defer cancel()
		return op(ctx)
	})
}

// ExecuteValue is Execute for operations that produce a value.
func ExecuteValue[T any](cb *CircuitBreaker, op func() (T, error)) (T, error) {
	var result T
	err := cb.Execute(func() error {
		var err error
		result, err = op()
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// ExecuteWithFallback returns the result of op, or of fallback when the
// breaker is open or op fails.
func ExecuteWithFallback[T any](cb *CircuitBreaker, op func() (T, error), fallback func() T) T {
	result, err := ExecuteValue(cb, op)
	if err != nil {
		cb.log.Debug("using fallback",
			log.String("breaker", cb.config.Name),
			log.Err(err),
		)
		return fallback()
	}
	return result
}

// Stats returns a copy of the breaker counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.checkOpenTimeout(cb.clock.Time())
	return Stats{
		Name:                 cb.config.Name,
		State:                cb.state.String(),
		ConsecutiveFailures:  cb.failures,
		ConsecutiveSuccesses: cb.successes,
		OpenedAt:             cb.openedAt,
		TotalRequests:        cb.totalRequests,
		TotalSuccesses:       cb.totalSuccesses,
		TotalFailures:        cb.totalFailures,
		TotalRejections:      cb.totalRejections,
		StateChanges:         cb.stateChanges,
	}
}

// Reset forces the breaker Closed and clears the consecutive counters.
// Cumulative counters are kept.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.transitionTo(Closed, cb.clock.Time())
	cb.failures = 0
	cb.successes = 0
}

// checkOpenTimeout moves an Open breaker to HalfOpen once OpenDuration has
// elapsed. cb.mu must be write-locked.
func (cb *CircuitBreaker) checkOpenTimeout(now time.Time) {
	if cb.state == Open && now.Sub(cb.openedAt) >= cb.config.OpenDuration {
		cb.transitionTo(HalfOpen, now)
	}
}

// transitionTo must be called with cb.mu write-locked.
func (cb *CircuitBreaker) transitionTo(to State, now time.Time) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.stateChanges++

	switch to {
	case Open:
		cb.successes = 0
		cb.openedAt = now
	case HalfOpen:
		cb.successes = 0
	case Closed:
		cb.failures = 0
		cb.successes = 0
		cb.openedAt = time.Time{}
	}

	cb.metrics.observeTransition(cb.config.Name, to)
	cb.log.Info("circuit breaker state changed",
		log.String("breaker", cb.config.Name),
		log.Stringer("from", from),
		log.Stringer("to", to),
		log.Uint32("failures", cb.failures),
	)
}
