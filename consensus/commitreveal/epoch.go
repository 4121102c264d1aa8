// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package commitreveal

import (
	"math"
	"slices"

	"github.com/luxfi/ids"

	safemath "github.com/luxfi/safety/utils/math"
)

// SubnetID identifies an independently scored subnet.
type SubnetID uint16

// Phase of a subnet epoch. Phases only move forward.
type Phase uint8

const (
	Committing Phase = iota
	Revealing
	Finalizing
	Finalized
)

func (p Phase) String() string {
	switch p {
	case Committing:
		return "committing"
	case Revealing:
		return "revealing"
	case Finalizing:
		return "finalizing"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Weight is a validator's score for the participant with the given uid.
type Weight struct {
	UID   uint16 `json:"uid"`
	Value uint16 `json:"value"`
}

// WeightCommit is one validator's commitment in an epoch. CommitHash is never
// modified once stored; the reveal fields are written at most once.
type WeightCommit struct {
	Validator   ids.NodeID       `json:"validator"`
	SubnetID    SubnetID         `json:"subnetID"`
	CommitHash  ids.ID           `json:"commitHash"`
	CommittedAt uint64           `json:"committedAt"`
	Revealed    bool             `json:"revealed"`
	Weights     []Weight         `json:"weights,omitempty"`
	Salt        [SaltLength]byte `json:"-"`
}

// SlashingResult names a validator that committed but never revealed.
type SlashingResult struct {
	Validator    ids.NodeID `json:"validator"`
	SlashPercent uint64     `json:"slashPercent"`
	BurnPercent  uint64     `json:"burnPercent"`
}

// Split divides a slashed amount into the burned part and the treasury part.
func (r SlashingResult) Split(slashed uint64) (burn uint64, treasury uint64) {
	burn, err := safemath.Percent(slashed, r.BurnPercent)
	if err != nil || burn > slashed {
		burn = slashed
	}
	return burn, slashed - burn
}

// FinalizationResult is the outcome of a finalized subnet epoch.
type FinalizationResult struct {
	SubnetID    SubnetID         `json:"subnetID"`
	Epoch       uint64           `json:"epoch"`
	FinalizedAt uint64           `json:"finalizedAt"`
	Weights     []Weight         `json:"weights"`
	CommitCount int              `json:"commitCount"`
	RevealCount int              `json:"revealCount"`
	Slashes     []SlashingResult `json:"slashes"`
}

// EpochInfo is a read-only snapshot of a subnet epoch.
type EpochInfo struct {
	SubnetID    SubnetID `json:"subnetID"`
	Epoch       uint64   `json:"epoch"`
	Phase       Phase    `json:"phase"`
	CommitStart uint64   `json:"commitStart"`
	RevealStart uint64   `json:"revealStart"`
	FinalizeAt  uint64   `json:"finalizeAt"`
	CommitCount int      `json:"commitCount"`
	RevealCount int      `json:"revealCount"`
}

type aggregate struct {
	sum   uint64
	count uint64
}

// subnetEpoch is the mutable state of one (subnet, epoch) round.
type subnetEpoch struct {
	subnetID    SubnetID
	epoch       uint64
	phase       Phase
	commitStart uint64
	revealStart uint64
	finalizeAt  uint64

	commits     []*WeightCommit
	byValidator map[ids.NodeID]*WeightCommit
	revealCount int

	// aggregates is updated on every reveal so finalization never rescans
	// the commits.
	aggregates map[uint16]*aggregate
}

func newSubnetEpoch(subnetID SubnetID, epoch, startHeight uint64, config Config) *subnetEpoch {
	revealStart := safemath.SaturatingAdd(startHeight, config.CommitWindow)
	return &subnetEpoch{
		subnetID:    subnetID,
		epoch:       epoch,
		phase:       Committing,
		commitStart: startHeight,
		revealStart: revealStart,
		finalizeAt:  safemath.SaturatingAdd(revealStart, config.RevealWindow),
		byValidator: make(map[ids.NodeID]*WeightCommit),
		aggregates:  make(map[uint16]*aggregate),
	}
}

// phaseAt is the phase implied by height alone.
func (e *subnetEpoch) phaseAt(height uint64) Phase {
	switch {
	case height >= e.finalizeAt:
		return Finalizing
	case height >= e.revealStart:
		return Revealing
	default:
		return Committing
	}
}

// updatePhase advances the phase to the one implied by height. It never moves
// backwards and never leaves Finalized.
func (e *subnetEpoch) updatePhase(height uint64) Phase {
	if next := e.phaseAt(height); e.phase != Finalized && next > e.phase {
		e.phase = next
	}
	return e.phase
}

func (e *subnetEpoch) addReveal(weights []Weight) {
	for _, w := range weights {
		agg, ok := e.aggregates[w.UID]
		if !ok {
			agg = &aggregate{}
			e.aggregates[w.UID] = agg
		}
		agg.sum += uint64(w.Value)
		agg.count++
	}
}

// averages returns the mean weight per uid, sorted by uid.
func (e *subnetEpoch) averages() []Weight {
	weights := make([]Weight, 0, len(e.aggregates))
	for uid, agg := range e.aggregates {
		avg := agg.sum / agg.count
		weights = append(weights, Weight{
			UID:   uid,
			Value: uint16(min(avg, math.MaxUint16)),
		})
	}
	slices.SortFunc(weights, func(a, b Weight) int {
		return int(a.UID) - int(b.UID)
	})
	return weights
}

func (e *subnetEpoch) info() EpochInfo {
	return EpochInfo{
		SubnetID:    e.subnetID,
		Epoch:       e.epoch,
		Phase:       e.phase,
		CommitStart: e.commitStart,
		RevealStart: e.revealStart,
		FinalizeAt:  e.finalizeAt,
		CommitCount: len(e.commits),
		RevealCount: e.revealCount,
	}
}
