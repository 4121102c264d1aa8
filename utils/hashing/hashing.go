// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hashing holds the hash function every node must agree on bit-for-bit.
// Commit-reveal commitments and the RANDAO mix both use it.
package hashing

import (
	"golang.org/x/crypto/sha3"

	"github.com/luxfi/ids"
)

// HashLen is the output size of Keccak256 in bytes.
const HashLen = 32

// Keccak256 hashes the concatenation of chunks with legacy (pre-NIST) Keccak-256.
func Keccak256(chunks ...[]byte) ids.ID {
	h := sha3.NewLegacyKeccak256()
	for _, chunk := range chunks {
		_, _ = h.Write(chunk)
	}
	var out ids.ID
	h.Sum(out[:0])
	return out
}
