// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package circuitbreaker

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidFailureThreshold = errors.New("failure threshold must be positive")
	ErrInvalidSuccessThreshold = errors.New("success threshold must be positive")
	ErrInvalidOpenDuration     = errors.New("open duration must be positive")
	ErrInvalidOperationTimeout = errors.New("operation timeout must not be negative")
	ErrMissingName             = errors.New("breaker name must not be empty")
)

// Config parameterizes a single CircuitBreaker.
type Config struct {
	// Name labels the breaker in logs, metrics and summaries.
	Name string `json:"name"`

	// FailureThreshold is the number of consecutive failures, while Closed,
	// that trips the breaker Open.
	FailureThreshold uint32 `json:"failure-threshold"`

	// OpenDuration is how long the breaker rejects calls before it lets probe
	// calls through in HalfOpen.
	OpenDuration time.Duration `json:"open-duration"`

	// SuccessThreshold is the number of consecutive successes, while HalfOpen,
	// needed to close the breaker again.
	SuccessThreshold uint32 `json:"success-threshold"`

	// OperationTimeout bounds a single wrapped operation when it is run through
	// ExecuteContext. Zero disables the deadline.
	OperationTimeout time.Duration `json:"operation-timeout"`
}

// DefaultConfig returns the production defaults for a breaker named name.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		OpenDuration:     30 * time.Second,
		SuccessThreshold: 2,
		OperationTimeout: 10 * time.Second,
	}
}

// Verify returns an error if the config can't drive a breaker.
func (c Config) Verify() error {
	switch {
	case c.Name == "":
		return ErrMissingName
	case c.FailureThreshold == 0:
		return fmt.Errorf("%w: %q", ErrInvalidFailureThreshold, c.Name)
	case c.SuccessThreshold == 0:
		return fmt.Errorf("%w: %q", ErrInvalidSuccessThreshold, c.Name)
	case c.OpenDuration <= 0:
		return fmt.Errorf("%w: %q", ErrInvalidOpenDuration, c.Name)
	case c.OperationTimeout < 0:
		return fmt.Errorf("%w: %q", ErrInvalidOperationTimeout, c.Name)
	default:
		return nil
	}
}
