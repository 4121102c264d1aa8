// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package randao

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/luxfi/ids"
)

// CalculateSelectionThreshold maps a stake share onto [0, MaxUint64]:
//
//	threshold = (stake/total)*MaxUint64 + (stake%total)*MaxUint64/total
//
// The first term is computed with saturation and the second with a 128-bit
// intermediate product, so no input overflows. The result is clamped to
// MaxUint64. A zero total stake selects nobody.
func CalculateSelectionThreshold(stake, totalStake uint64) uint64 {
	if totalStake == 0 {
		return 0
	}

	whole := stake / totalStake
	if whole > 0 {
		// whole*MaxUint64 >= MaxUint64 for any whole >= 1.
		return math.MaxUint64
	}

	// (stake % totalStake) < totalStake, so hi < totalStake and Div64 can't
	// overflow.
	hi, lo := bits.Mul64(stake%totalStake, math.MaxUint64)
	fraction, _ := bits.Div64(hi, lo, totalStake)
	return fraction
}

// VRFOutputBelowThreshold interprets the first 8 bytes of output as a
// big-endian integer and compares it with threshold.
func VRFOutputBelowThreshold(output ids.ID, threshold uint64) bool {
	return binary.BigEndian.Uint64(output[:8]) < threshold
}

// IsSelected reports whether output selects a validator holding stake out of
// totalStake.
func IsSelected(output ids.ID, stake, totalStake uint64) bool {
	return VRFOutputBelowThreshold(output, CalculateSelectionThreshold(stake, totalStake))
}

// SelectionOutput derives a validator-specific draw from an epoch mix.
func SelectionOutput(mix ids.ID, validator ids.NodeID) ids.ID {
	var padded ids.ID
	copy(padded[:], validator.Bytes())
	return Mix(mix, padded)
}
