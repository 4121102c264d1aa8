// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package slashing

import "errors"

var (
	errZeroMaxMissedBlocks     = errors.New("max missed blocks must be positive")
	errZeroJailDuration        = errors.New("jail duration must be positive")
	errZeroTrackedHeights      = errors.New("max tracked heights must be positive")
	errZeroSignaturesPerHeight = errors.New("max signatures per height must be positive")
	errZeroMaxEvents           = errors.New("max events must be positive")
)

var DefaultConfig = Config{
	MaxMissedBlocks:        100,
	JailDuration:           10_000,
	MinSlashAmount:         1,
	MaxTrackedHeights:      1_024,
	MaxSignaturesPerHeight: 1_024,
	MaxEvents:              4_096,
}

type Config struct {
	// MaxMissedBlocks consecutive missed blocks make a validator offline.
	MaxMissedBlocks uint64 `json:"max-missed-blocks"`

	// JailDuration is the number of blocks a jailed validator sits out.
	JailDuration uint64 `json:"jail-duration"`

	// MinSlashAmount is the floor of every slash, before capping at stake.
	MinSlashAmount uint64 `json:"min-slash-amount"`

	// MaxTrackedHeights bounds the heights with recorded block signatures.
	// The lowest height is dropped first.
	MaxTrackedHeights int `json:"max-tracked-heights"`

	// MaxSignaturesPerHeight bounds the signatures recorded at one height.
	MaxSignaturesPerHeight int `json:"max-signatures-per-height"`

	// MaxEvents is the number of slash events kept in memory.
	MaxEvents int `json:"max-events"`
}

func (c Config) Verify() error {
	switch {
	case c.MaxMissedBlocks == 0:
		return errZeroMaxMissedBlocks
	case c.JailDuration == 0:
		return errZeroJailDuration
	case c.MaxTrackedHeights <= 0:
		return errZeroTrackedHeights
	case c.MaxSignaturesPerHeight <= 0:
		return errZeroSignaturesPerHeight
	case c.MaxEvents <= 0:
		return errZeroMaxEvents
	default:
		return nil
	}
}
