// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/safety/config"
)

var (
	errNoValidators      = errors.New("at least one validator is required")
	errNoEpochs          = errors.New("at least one epoch is required")
	errTooManySubnets    = errors.New("too many subnets")
	errInvalidStakeRange = errors.New("min stake must be positive and at most max stake")
	errPercentTooLarge   = errors.New("percent exceeds 100")
	errTooManyByzantine  = errors.New("more double signers than validators")
)

var DefaultConfig = Config{
	Validators:      16,
	Subnets:         2,
	Epochs:          10,
	MinStake:        1_000,
	MaxStake:        100_000,
	WithholdPercent: 10,
	OfflinePercent:  5,
	DoubleSigners:   1,
	Seed:            1,
	Safety:          config.Default(),
}

type Config struct {
	Validators int `json:"validators"`
	Subnets    int `json:"subnets"`
	Epochs     int `json:"epochs"`

	MinStake uint64 `json:"min-stake"`
	MaxStake uint64 `json:"max-stake"`

	// WithholdPercent of validators skip their reveals in a given epoch.
	WithholdPercent uint64 `json:"withhold-percent"`
	// OfflinePercent of validators miss every block of a given epoch.
	OfflinePercent uint64 `json:"offline-percent"`
	// DoubleSigners validators sign two blocks at one height every epoch.
	DoubleSigners int `json:"double-signers"`

	// Seed makes every run with the same config identical.
	Seed uint64 `json:"seed"`

	Safety config.Config `json:"safety"`
}

// GetConfig parses b over DefaultConfig and verifies the result.
func GetConfig(b []byte) (*Config, error) {
	c := DefaultConfig
	if len(b) > 0 {
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("failed to parse simulator config: %w", err)
		}
	}
	if err := c.Verify(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Verify() error {
	switch {
	case c.Validators <= 0:
		return errNoValidators
	case c.Epochs <= 0:
		return errNoEpochs
	case c.Subnets < 0 || c.Subnets > 1<<16:
		return errTooManySubnets
	case c.MinStake == 0 || c.MinStake > c.MaxStake:
		return errInvalidStakeRange
	case c.WithholdPercent > 100 || c.OfflinePercent > 100:
		return errPercentTooLarge
	case c.DoubleSigners < 0 || c.DoubleSigners > c.Validators:
		return errTooManyByzantine
	default:
		return c.Safety.Verify()
	}
}
