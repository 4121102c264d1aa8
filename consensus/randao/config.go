// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package randao

import "errors"

var (
	errZeroMaxReveals   = errors.New("max reveals per epoch must be positive")
	errZeroMaxCommits   = errors.New("max commitments per epoch must be positive")
	errMinAboveMax      = errors.New("min reveals exceeds max reveals per epoch")
	errZeroHistorySize  = errors.New("history size must be positive")
	errNegativeMinCount = errors.New("min reveals must not be negative")
)

var DefaultConfig = Config{
	MinRevealsForEpoch:     1,
	MaxRevealsPerEpoch:     10_000,
	MaxCommitmentsPerEpoch: 10_000,
	HistorySize:            4_096,
}

type Config struct {
	// MinRevealsForEpoch is the number of reveals required to finalize an
	// epoch.
	MinRevealsForEpoch int `json:"min-reveals-for-epoch"`

	// MaxRevealsPerEpoch bounds the per-epoch reveal list.
	MaxRevealsPerEpoch int `json:"max-reveals-per-epoch"`

	// MaxCommitmentsPerEpoch bounds the per-epoch commitment set.
	MaxCommitmentsPerEpoch int `json:"max-commitments-per-epoch"`

	// HistorySize is the number of finalized epoch mixes kept in memory.
	HistorySize int `json:"history-size"`
}

func (c Config) Verify() error {
	switch {
	case c.MinRevealsForEpoch < 0:
		return errNegativeMinCount
	case c.MaxRevealsPerEpoch <= 0:
		return errZeroMaxReveals
	case c.MinRevealsForEpoch > c.MaxRevealsPerEpoch:
		return errMinAboveMax
	case c.HistorySize <= 0:
		return errZeroHistorySize
	case c.MaxCommitmentsPerEpoch <= 0:
		return errZeroMaxCommits
	default:
		return nil
	}
}
