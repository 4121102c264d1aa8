// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package slashing

import (
	"bytes"
	"slices"

	"github.com/google/btree"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/safety/utils/hashing"
)

const defaultTreeDegree = 2

// Two conflicting signatures prove double signing, so no more are kept per
// validator and height.
const maxConflictingSignatures = 2

type signature struct {
	blockHash ids.ID
	sigHash   ids.ID
}

type heightSignatures struct {
	count       int
	byValidator map[ids.NodeID][]signature
	reported    set.Set[ids.NodeID]
}

// signatureTracker groups block signatures by height and block hash. It keeps
// at most maxHeights heights and maxPerHeight signatures per height.
type signatureTracker struct {
	maxHeights   int
	maxPerHeight int

	heights  *btree.BTreeG[uint64]
	byHeight map[uint64]*heightSignatures
}

func newSignatureTracker(maxHeights, maxPerHeight int) *signatureTracker {
	return &signatureTracker{
		maxHeights:   maxHeights,
		maxPerHeight: maxPerHeight,
		heights: btree.NewG(defaultTreeDegree, func(a, b uint64) bool {
			return a < b
		}),
		byHeight: make(map[uint64]*heightSignatures),
	}
}

func (t *signatureTracker) record(height uint64, blockHash ids.ID, validator ids.NodeID, sigHash ids.ID) error {
	hs, ok := t.byHeight[height]
	if !ok {
		if t.heights.Len() >= t.maxHeights {
			lowest, _ := t.heights.Min()
			if height < lowest {
				return ErrHeightNotTracked
			}
			t.heights.DeleteMin()
			delete(t.byHeight, lowest)
		}
		hs = &heightSignatures{
			byValidator: make(map[ids.NodeID][]signature),
			reported:    set.NewSet[ids.NodeID](0),
		}
		t.byHeight[height] = hs
		t.heights.ReplaceOrInsert(height)
	}

	sigs := hs.byValidator[validator]
	if len(sigs) >= maxConflictingSignatures {
		return nil
	}
	for _, sig := range sigs {
		if sig.blockHash == blockHash {
			return nil
		}
	}
	if hs.count >= t.maxPerHeight {
		return ErrTooManySignatures
	}
	hs.byValidator[validator] = append(sigs, signature{
		blockHash: blockHash,
		sigHash:   sigHash,
	})
	hs.count++
	return nil
}

// conflicts returns evidence for every validator that signed two different
// blocks at height and was not reported before, ordered by validator.
func (t *signatureTracker) conflicts(height uint64) []Evidence {
	hs, ok := t.byHeight[height]
	if !ok {
		return nil
	}

	var evidence []Evidence
	for validator, sigs := range hs.byValidator {
		if len(sigs) < maxConflictingSignatures || hs.reported.Contains(validator) {
			continue
		}
		hs.reported.Add(validator)

		a, b := sigs[0], sigs[1]
		if bytes.Compare(a.blockHash[:], b.blockHash[:]) > 0 {
			a, b = b, a
		}
		evidence = append(evidence, Evidence{
			Validator:    validator,
			Reason:       DoubleSigning,
			Height:       height,
			EvidenceHash: hashing.Keccak256(a.blockHash[:], a.sigHash[:], b.blockHash[:], b.sigHash[:]),
		})
	}
	slices.SortFunc(evidence, func(a, b Evidence) int {
		return bytes.Compare(a.Validator.Bytes(), b.Validator.Bytes())
	})
	return evidence
}

// prune drops every height below cutoff and returns how many were dropped.
func (t *signatureTracker) prune(cutoff uint64) int {
	var stale []uint64
	t.heights.AscendLessThan(cutoff, func(height uint64) bool {
		stale = append(stale, height)
		return true
	})
	for _, height := range stale {
		t.heights.Delete(height)
		delete(t.byHeight, height)
	}
	return len(stale)
}

func (t *signatureTracker) len() int {
	return t.heights.Len()
}
