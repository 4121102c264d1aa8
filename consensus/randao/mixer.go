// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package randao accumulates the chain's shared randomness.
//
// Every epoch, each participating validator first commits to
// keccak256(reveal) and later discloses reveal. Each accepted reveal updates
// the rolling mix:
//
//	mix = keccak256(mix || reveal)
//
// The update is a left fold, so the mix depends on the order in which reveals
// are applied. Nodes agree on the mix only if they apply reveals in the same
// order, which the caller guarantees by applying them in block order.
//
// The mix is never reset between epochs; a validator who withholds a reveal
// can only choose between two outcomes it cannot predict in advance.
package randao

import (
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/safety/utils/hashing"
)

// Reveal is an accepted reveal of the current epoch.
type Reveal struct {
	Validator ids.NodeID `json:"validator"`
	Value     ids.ID     `json:"value"`
	Height    uint64     `json:"height"`
}

// Stats describe the mixer's current epoch and lifetime counters.
type Stats struct {
	CurrentEpoch       uint64 `json:"currentEpoch"`
	CurrentMix         ids.ID `json:"currentMix"`
	Commitments        int    `json:"commitments"`
	Reveals            int    `json:"reveals"`
	TotalReveals       uint64 `json:"totalReveals"`
	TotalMismatches    uint64 `json:"totalMismatches"`
	FinalizedEpochs    uint64 `json:"finalizedEpochs"`
	RetainedEpochMixes int    `json:"retainedEpochMixes"`
}

// ComputeCommitment returns the commitment a validator publishes for reveal.
func ComputeCommitment(reveal ids.ID) ids.ID {
	return hashing.Keccak256(reveal[:])
}

// Mix returns keccak256(mix || reveal).
func Mix(mix ids.ID, reveal ids.ID) ids.ID {
	return hashing.Keccak256(mix[:], reveal[:])
}

// Mixer is safe for concurrent use.
type Mixer struct {
	config  Config
	log     log.Logger
	metrics *Metrics

	mu           sync.RWMutex
	currentMix   ids.ID
	currentEpoch uint64

	commitments      map[ids.NodeID]ids.ID
	commitmentHashes set.Set[ids.ID]
	reveals          []Reveal
	revealed         set.Set[ids.NodeID]

	// history maps epoch -> final mix. Only read with Peek, so the oldest
	// epoch is evicted first.
	history *lru.Cache

	totalReveals    uint64
	totalMismatches uint64
	finalizedEpochs uint64
}

// New returns a mixer at epoch 0 whose mix starts at seed.
func New(config Config, seed ids.ID, log log.Logger, metrics *Metrics) (*Mixer, error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}
	history, err := lru.New(config.HistorySize)
	if err != nil {
		return nil, err
	}
	return &Mixer{
		config:           config,
		log:              log,
		metrics:          metrics,
		currentMix:       seed,
		commitments:      make(map[ids.NodeID]ids.ID),
		commitmentHashes: set.NewSet[ids.ID](0),
		revealed:         set.NewSet[ids.NodeID](0),
		history:          history,
	}, nil
}

// SubmitCommitment registers validator's commitment for the current epoch.
func (m *Mixer) SubmitCommitment(validator ids.NodeID, commitment ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case commitment == ids.Empty:
		return m.reject(ErrZeroCommitment, validator)
	case m.hasCommitted(validator):
		return m.reject(ErrAlreadyCommitted, validator)
	case m.commitmentHashes.Contains(commitment):
		return m.reject(ErrDuplicateCommitment, validator)
	case len(m.commitments) >= m.config.MaxCommitmentsPerEpoch:
		return m.reject(ErrTooManyCommitments, validator)
	}

	m.commitments[validator] = commitment
	m.commitmentHashes.Add(commitment)
	return nil
}

// MixReveal checks reveal against validator's commitment and folds it into
// the mix.
func (m *Mixer) MixReveal(validator ids.NodeID, reveal ids.ID, height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.revealed.Contains(validator) {
		return m.reject(ErrAlreadyRevealed, validator)
	}
	commitment, ok := m.commitments[validator]
	if !ok {
		return m.reject(ErrNoCommitment, validator)
	}
	if len(m.reveals) >= m.config.MaxRevealsPerEpoch {
		return m.reject(ErrTooManyReveals, validator)
	}
	if ComputeCommitment(reveal) != commitment {
		m.totalMismatches++
		m.metrics.markRejected(ErrCommitmentMismatch)
		m.log.Warn("randao reveal does not match commitment",
			log.Uint64("epoch", m.currentEpoch),
			log.Stringer("validator", validator),
			log.Uint64("height", height),
		)
		return ErrCommitmentMismatch
	}

	m.currentMix = Mix(m.currentMix, reveal)
	m.reveals = append(m.reveals, Reveal{
		Validator: validator,
		Value:     reveal,
		Height:    height,
	})
	m.revealed.Add(validator)
	m.totalReveals++
	m.metrics.markReveal()
	return nil
}

// FinalizeEpoch records the current mix as the epoch's output, advances the
// epoch and clears the per-epoch commitments and reveals. The mix itself is
// carried into the next epoch.
func (m *Mixer) FinalizeEpoch() (ids.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if have := len(m.reveals); have < m.config.MinRevealsForEpoch {
		m.log.Warn("not enough randao reveals to finalize epoch",
			log.Uint64("epoch", m.currentEpoch),
			log.Int("reveals", have),
			log.Int("required", m.config.MinRevealsForEpoch),
		)
		return ids.Empty, &InsufficientRevealsError{
			Have: have,
			Need: m.config.MinRevealsForEpoch,
		}
	}

	mix := m.currentMix
	epoch := m.currentEpoch
	m.history.Add(epoch, mix)
	m.log.Info("finalized randao epoch",
		log.Uint64("epoch", epoch),
		log.Int("reveals", len(m.reveals)),
		log.Stringer("mix", mix),
	)

	m.currentEpoch++
	m.finalizedEpochs++
	m.commitments = make(map[ids.NodeID]ids.ID)
	m.commitmentHashes = set.NewSet[ids.ID](0)
	m.reveals = nil
	m.revealed = set.NewSet[ids.NodeID](0)
	m.metrics.markFinalized(m.currentEpoch)
	return mix, nil
}

func (m *Mixer) HasCommitted(validator ids.NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.hasCommitted(validator)
}

func (m *Mixer) hasCommitted(validator ids.NodeID) bool {
	_, ok := m.commitments[validator]
	return ok
}

func (m *Mixer) HasRevealed(validator ids.NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.revealed.Contains(validator)
}

func (m *Mixer) RevealCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.reveals)
}

// Reveals returns the current epoch's reveals in the order they were mixed.
func (m *Mixer) Reveals() []Reveal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.reveals)
}

func (m *Mixer) CurrentMix() ids.ID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.currentMix
}

func (m *Mixer) CurrentEpoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.currentEpoch
}

// EpochMix returns the final mix of a finalized epoch, if still retained.
func (m *Mixer) EpochMix(epoch uint64) (ids.ID, bool) {
	v, ok := m.history.Peek(epoch)
	if !ok {
		return ids.Empty, false
	}
	return v.(ids.ID), true
}

func (m *Mixer) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		CurrentEpoch:       m.currentEpoch,
		CurrentMix:         m.currentMix,
		Commitments:        len(m.commitments),
		Reveals:            len(m.reveals),
		TotalReveals:       m.totalReveals,
		TotalMismatches:    m.totalMismatches,
		FinalizedEpochs:    m.finalizedEpochs,
		RetainedEpochMixes: m.history.Len(),
	}
}

func (m *Mixer) reject(err error, validator ids.NodeID) error {
	m.metrics.markRejected(err)
	m.log.Debug("rejected randao submission",
		log.Uint64("epoch", m.currentEpoch),
		log.Stringer("validator", validator),
		log.Err(err),
	)
	return err
}
