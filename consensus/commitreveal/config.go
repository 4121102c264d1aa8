// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package commitreveal

import (
	"errors"
	"fmt"
)

var (
	errZeroWindow         = errors.New("commit and reveal windows must be positive")
	errNegativeMinCommits = errors.New("min commits must not be negative")
	errPercentTooLarge    = errors.New("percent must be at most 100")
	errZeroHistorySize    = errors.New("history size must be positive")
)

var DefaultConfig = Config{
	CommitWindow: 100,
	RevealWindow: 100,
	MinCommits:   1,
	SlashPercent: 1,
	BurnPercent:  50,
	HistorySize:  256,
}

// Config is shared by every subnet. All windows are in blocks.
type Config struct {
	CommitWindow uint64 `json:"commit-window"`
	RevealWindow uint64 `json:"reveal-window"`

	// MinCommits is the number of reveals an epoch needs before it can be
	// finalized.
	MinCommits int `json:"min-commits"`

	// SlashPercent of stake is taken from validators that committed but did
	// not reveal. BurnPercent of the slashed amount is burned, the rest goes
	// to the treasury.
	SlashPercent uint64 `json:"slash-percent"`
	BurnPercent  uint64 `json:"burn-percent"`

	// HistorySize is the number of finalized epochs kept in memory across all
	// subnets.
	HistorySize int `json:"history-size"`
}

func (c Config) Verify() error {
	switch {
	case c.CommitWindow == 0 || c.RevealWindow == 0:
		return errZeroWindow
	case c.MinCommits < 0:
		return errNegativeMinCommits
	case c.SlashPercent > 100:
		return fmt.Errorf("slash %w: %d", errPercentTooLarge, c.SlashPercent)
	case c.BurnPercent > 100:
		return fmt.Errorf("burn %w: %d", errPercentTooLarge, c.BurnPercent)
	case c.HistorySize <= 0:
		return errZeroHistorySize
	default:
		return nil
	}
}

// EpochLength is the number of blocks from commit start to finalization.
func (c Config) EpochLength() uint64 {
	return c.CommitWindow + c.RevealWindow
}
