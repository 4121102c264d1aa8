// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package circuitbreaker

import (
	"github.com/luxfi/log"

	"github.com/luxfi/safety/utils/timer/mockable"
)

// Names of the AI-layer breakers.
const (
	WeightConsensusName = "weight_consensus"
	CommitRevealName    = "commit_reveal"
	EmissionName        = "emission"
)

// AILayerConfig holds one Config per AI-layer call site. The Name field of
// each entry is overwritten with the canonical breaker name.
type AILayerConfig struct {
	WeightConsensus Config `json:"weight-consensus"`
	CommitReveal    Config `json:"commit-reveal"`
	Emission        Config `json:"emission"`
}

func DefaultAILayerConfig() AILayerConfig {
	return AILayerConfig{
		WeightConsensus: DefaultConfig(WeightConsensusName),
		CommitReveal:    DefaultConfig(CommitRevealName),
		Emission:        DefaultConfig(EmissionName),
	}
}

func (c AILayerConfig) named() AILayerConfig {
	c.WeightConsensus.Name = WeightConsensusName
	c.CommitReveal.Name = CommitRevealName
	c.Emission.Name = EmissionName
	return c
}

func (c AILayerConfig) Verify() error {
	c = c.named()
	for _, cfg := range []Config{c.WeightConsensus, c.CommitReveal, c.Emission} {
		if err := cfg.Verify(); err != nil {
			return err
		}
	}
	return nil
}

// AILayer groups the breakers that keep failures of the AI subsystems out of
// the consensus hot path.
type AILayer struct {
	weightConsensus *CircuitBreaker
	commitReveal    *CircuitBreaker
	emission        *CircuitBreaker
}

// Summary is the observability view of the AI-layer breakers.
type Summary struct {
	Healthy  bool    `json:"healthy"`
	Breakers []Stats `json:"breakers"`
}

func NewAILayer(config AILayerConfig, clock *mockable.Clock, log log.Logger, metrics *Metrics) (*AILayer, error) {
	config = config.named()
	if clock == nil {
		clock = &mockable.Clock{}
	}
	weightConsensus, err := New(config.WeightConsensus, clock, log, metrics)
	if err != nil {
		return nil, err
	}
	commitReveal, err := New(config.CommitReveal, clock, log, metrics)
	if err != nil {
		return nil, err
	}
	emission, err := New(config.Emission, clock, log, metrics)
	if err != nil {
		return nil, err
	}
	return &AILayer{
		weightConsensus: weightConsensus,
		commitReveal:    commitReveal,
		emission:        emission,
	}, nil
}

func (a *AILayer) WeightConsensus() *CircuitBreaker {
	return a.weightConsensus
}

func (a *AILayer) CommitReveal() *CircuitBreaker {
	return a.commitReveal
}

func (a *AILayer) Emission() *CircuitBreaker {
	return a.emission
}

func (a *AILayer) all() []*CircuitBreaker {
	return []*CircuitBreaker{a.weightConsensus, a.commitReveal, a.emission}
}

// IsHealthy returns true when every breaker is Closed.
func (a *AILayer) IsHealthy() bool {
	for _, cb := range a.all() {
		if cb.State() != Closed {
			return false
		}
	}
	return true
}

func (a *AILayer) Summary() Summary {
	s := Summary{
		Healthy:  true,
		Breakers: make([]Stats, 0, 3),
	}
	for _, cb := range a.all() {
		stats := cb.Stats()
		if stats.State != Closed.String() {
			s.Healthy = false
		}
		s.Breakers = append(s.Breakers, stats)
	}
	return s
}

// Reset closes every breaker.
func (a *AILayer) Reset() {
	for _, cb := range a.all() {
		cb.Reset()
	}
}
