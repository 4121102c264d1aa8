// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config aggregates the configuration of every safety component.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/luxfi/safety/consensus/circuitbreaker"
	"github.com/luxfi/safety/consensus/commitreveal"
	"github.com/luxfi/safety/consensus/epoch"
	"github.com/luxfi/safety/consensus/randao"
	"github.com/luxfi/safety/consensus/slashing"
)

type Config struct {
	CircuitBreakers circuitbreaker.AILayerConfig `json:"circuit-breakers"`
	CommitReveal    commitreveal.Config          `json:"commit-reveal"`
	Randao          randao.Config                `json:"randao"`
	Slashing        slashing.Config              `json:"slashing"`
	Epoch           epoch.Config                 `json:"epoch"`
}

func Default() Config {
	return Config{
		CircuitBreakers: circuitbreaker.DefaultAILayerConfig(),
		CommitReveal:    commitreveal.DefaultConfig,
		Randao:          randao.DefaultConfig,
		Slashing:        slashing.DefaultConfig,
		Epoch:           epoch.DefaultConfig,
	}
}

// GetConfig parses b over the defaults. Fields missing from b keep their
// default value.
func GetConfig(b []byte) (*Config, error) {
	c := Default()
	if len(b) > 0 {
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := c.Verify(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Verify() error {
	if err := c.CircuitBreakers.Verify(); err != nil {
		return fmt.Errorf("invalid circuit-breakers config: %w", err)
	}
	if err := c.CommitReveal.Verify(); err != nil {
		return fmt.Errorf("invalid commit-reveal config: %w", err)
	}
	if err := c.Randao.Verify(); err != nil {
		return fmt.Errorf("invalid randao config: %w", err)
	}
	if err := c.Slashing.Verify(); err != nil {
		return fmt.Errorf("invalid slashing config: %w", err)
	}
	if err := c.Epoch.Verify(); err != nil {
		return fmt.Errorf("invalid epoch config: %w", err)
	}
	return nil
}
