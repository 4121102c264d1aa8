// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package commitreveal

import (
	"encoding/binary"

	"github.com/luxfi/ids"

	"github.com/luxfi/safety/utils/hashing"
)

// SaltLength is the size of the secret salt mixed into a commitment.
const SaltLength = 32

const weightLen = 4 // uid(2) || value(2)

// ComputeCommitHash returns keccak256(uid_0 || value_0 || ... || uid_n || value_n || salt)
// with every uid and value encoded as big-endian uint16.
func ComputeCommitHash(weights []Weight, salt [SaltLength]byte) ids.ID {
	buf := make([]byte, len(weights)*weightLen)
	for i, w := range weights {
		offset := i * weightLen
		binary.BigEndian.PutUint16(buf[offset:], w.UID)
		binary.BigEndian.PutUint16(buf[offset+2:], w.Value)
	}
	return hashing.Keccak256(buf, salt[:])
}

// VerifyCommitHash reports whether weights and salt open commitHash.
func VerifyCommitHash(commitHash ids.ID, weights []Weight, salt [SaltLength]byte) bool {
	return ComputeCommitHash(weights, salt) == commitHash
}
