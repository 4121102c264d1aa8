// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package commitreveal keeps validators from copying each other's subnet
// weights. Each subnet epoch runs three height-driven phases:
//
//  1. COMMIT: a validator submits keccak256(weights || salt)
//  2. REVEAL: the validator discloses weights and salt, which must open the commit
//  3. FINALIZE: revealed weights are averaged per uid and validators that
//     committed without revealing are reported for slashing
//
// Phases are a pure function of block height, so every node applying the same
// blocks agrees on them.
package commitreveal

import (
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

type historyKey struct {
	subnetID SubnetID
	epoch    uint64
}

// Stats are cumulative counters of the manager.
type Stats struct {
	TotalCommits        uint64 `json:"totalCommits"`
	TotalReveals        uint64 `json:"totalReveals"`
	TotalHashMismatches uint64 `json:"totalHashMismatches"`
	TotalFinalized      uint64 `json:"totalFinalized"`
	TotalUnrevealed     uint64 `json:"totalUnrevealed"`
	ActiveEpochs        int    `json:"activeEpochs"`
	HistoryLen          int    `json:"historyLen"`
}

// Manager owns the current epoch of every subnet. It is safe for concurrent
// use, but mutations must be applied in block order by a single caller for
// nodes to agree.
type Manager struct {
	config  Config
	log     log.Logger
	metrics *Metrics

	mu     sync.RWMutex
	epochs map[SubnetID]*subnetEpoch
	// history is only read with Peek, so eviction follows insertion order.
	history *lru.Cache

	totalCommits        uint64
	totalReveals        uint64
	totalHashMismatches uint64
	totalFinalized      uint64
	totalUnrevealed     uint64
}

func NewManager(config Config, log log.Logger, metrics *Metrics) (*Manager, error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}
	history, err := lru.New(config.HistorySize)
	if err != nil {
		return nil, err
	}
	return &Manager{
		config:  config,
		log:     log,
		metrics: metrics,
		epochs:  make(map[SubnetID]*subnetEpoch),
		history: history,
	}, nil
}

func (m *Manager) Config() Config {
	return m.config
}

// StartEpoch opens the commit window of epoch for subnetID at startHeight,
// replacing the subnet's previous epoch. Epoch numbers must increase.
func (m *Manager) StartEpoch(subnetID SubnetID, epoch uint64, startHeight uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.epochs[subnetID]; ok {
		if epoch <= prev.epoch {
			return fmt.Errorf("%w: subnet %d epoch %d <= %d", ErrEpochNotAdvanced, subnetID, epoch, prev.epoch)
		}
		if prev.phase != Finalized && len(prev.commits) > 0 {
			m.log.Warn("abandoning unfinalized epoch",
				log.Uint32("subnetID", uint32(subnetID)),
				log.Uint64("epoch", prev.epoch),
				log.Int("commits", len(prev.commits)),
				log.Int("reveals", prev.revealCount),
			)
		}
	}

	state := newSubnetEpoch(subnetID, epoch, startHeight, m.config)
	m.epochs[subnetID] = state
	m.log.Debug("started commit-reveal epoch",
		log.Uint32("subnetID", uint32(subnetID)),
		log.Uint64("epoch", epoch),
		log.Uint64("commitStart", state.commitStart),
		log.Uint64("revealStart", state.revealStart),
		log.Uint64("finalizeAt", state.finalizeAt),
	)
	return nil
}

// CommitWeights records validator's commitment for the subnet's current epoch.
func (m *Manager) CommitWeights(subnetID SubnetID, validator ids.NodeID, commitHash ids.ID, height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.epochs[subnetID]
	if !ok {
		return m.reject(ErrNoActiveEpoch, subnetID, validator)
	}
	if state.updatePhase(height) != Committing {
		return m.reject(ErrNotInCommitPhase, subnetID, validator)
	}
	if _, ok := state.byValidator[validator]; ok {
		return m.reject(ErrAlreadyCommitted, subnetID, validator)
	}

	commit := &WeightCommit{
		Validator:   validator,
		SubnetID:    subnetID,
		CommitHash:  commitHash,
		CommittedAt: height,
	}
	state.commits = append(state.commits, commit)
	state.byValidator[validator] = commit
	m.totalCommits++
	m.metrics.markCommit()
	return nil
}

// RevealWeights opens validator's commitment and folds the weights into the
// epoch aggregates.
func (m *Manager) RevealWeights(
	subnetID SubnetID,
	validator ids.NodeID,
	weights []Weight,
	salt [SaltLength]byte,
	height uint64,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.epochs[subnetID]
	if !ok {
		return m.reject(ErrNoActiveEpoch, subnetID, validator)
	}
	if state.updatePhase(height) != Revealing {
		return m.reject(ErrNotInRevealPhase, subnetID, validator)
	}
	commit, ok := state.byValidator[validator]
	if !ok {
		return m.reject(ErrNoCommitFound, subnetID, validator)
	}
	if commit.Revealed {
		return m.reject(ErrAlreadyRevealed, subnetID, validator)
	}
	if !VerifyCommitHash(commit.CommitHash, weights, salt) {
		m.totalHashMismatches++
		m.metrics.markRejected(ErrHashMismatch)
		m.log.Warn("weight reveal does not match commitment",
			log.Uint32("subnetID", uint32(subnetID)),
			log.Uint64("epoch", state.epoch),
			log.Stringer("validator", validator),
			log.Stringer("commitHash", commit.CommitHash),
		)
		return ErrHashMismatch
	}

	commit.Revealed = true
	commit.Weights = slices.Clone(weights)
	commit.Salt = salt
	state.revealCount++
	state.addReveal(weights)

	m.totalReveals++
	m.metrics.markReveal()
	return nil
}

// FinalizeEpochWithSlashing closes the subnet's epoch. It returns the averaged
// weights and a SlashingResult for every validator that committed but did not
// reveal. The epoch becomes immutable.
func (m *Manager) FinalizeEpochWithSlashing(subnetID SubnetID, height uint64) (*FinalizationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.epochs[subnetID]
	if !ok {
		return nil, ErrNoActiveEpoch
	}
	if state.updatePhase(height) != Finalizing {
		return nil, ErrNotInFinalizePhase
	}
	if state.revealCount < m.config.MinCommits {
		m.log.Warn("not enough reveals to finalize epoch",
			log.Uint32("subnetID", uint32(subnetID)),
			log.Uint64("epoch", state.epoch),
			log.Int("reveals", state.revealCount),
			log.Int("required", m.config.MinCommits),
		)
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientReveals, state.revealCount, m.config.MinCommits)
	}

	result := &FinalizationResult{
		SubnetID:    subnetID,
		Epoch:       state.epoch,
		FinalizedAt: height,
		Weights:     state.averages(),
		CommitCount: len(state.commits),
		RevealCount: state.revealCount,
	}
	for _, commit := range state.commits {
		if commit.Revealed {
			continue
		}
		result.Slashes = append(result.Slashes, SlashingResult{
			Validator:    commit.Validator,
			SlashPercent: m.config.SlashPercent,
			BurnPercent:  m.config.BurnPercent,
		})
	}
	state.phase = Finalized

	m.history.Add(historyKey{subnetID: subnetID, epoch: state.epoch}, result)
	m.totalFinalized++
	m.totalUnrevealed += uint64(len(result.Slashes))
	m.metrics.markFinalized(len(result.Slashes))

	m.log.Info("finalized commit-reveal epoch",
		log.Uint32("subnetID", uint32(subnetID)),
		log.Uint64("epoch", state.epoch),
		log.Int("weights", len(result.Weights)),
		log.Int("reveals", result.RevealCount),
		log.Int("unrevealed", len(result.Slashes)),
	)
	return result, nil
}

// Phase returns the current phase of the subnet's epoch as of its last
// update.
func (m *Manager) Phase(subnetID SubnetID) (Phase, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.epochs[subnetID]
	if !ok {
		return 0, false
	}
	return state.phase, true
}

// UpdatePhase advances the subnet's phase to height and returns it.
func (m *Manager) UpdatePhase(subnetID SubnetID, height uint64) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.epochs[subnetID]
	if !ok {
		return 0, ErrNoActiveEpoch
	}
	return state.updatePhase(height), nil
}

// Epoch returns a snapshot of the subnet's current epoch.
func (m *Manager) Epoch(subnetID SubnetID) (EpochInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.epochs[subnetID]
	if !ok {
		return EpochInfo{}, false
	}
	return state.info(), true
}

// Commit returns a copy of validator's commitment in the subnet's current
// epoch.
func (m *Manager) Commit(subnetID SubnetID, validator ids.NodeID) (WeightCommit, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.epochs[subnetID]
	if !ok {
		return WeightCommit{}, false
	}
	commit, ok := state.byValidator[validator]
	if !ok {
		return WeightCommit{}, false
	}
	c := *commit
	c.Weights = slices.Clone(commit.Weights)
	return c, true
}

// History returns the finalization result of a past epoch if it is still
// retained.
func (m *Manager) History(subnetID SubnetID, epoch uint64) (*FinalizationResult, bool) {
	v, ok := m.history.Peek(historyKey{subnetID: subnetID, epoch: epoch})
	if !ok {
		return nil, false
	}
	return v.(*FinalizationResult), true
}

// Subnets returns every subnet with an epoch, in ascending order.
func (m *Manager) Subnets() []SubnetID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subnets := make([]SubnetID, 0, len(m.epochs))
	for subnetID := range m.epochs {
		subnets = append(subnets, subnetID)
	}
	slices.Sort(subnets)
	return subnets
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := 0
	for _, state := range m.epochs {
		if state.phase != Finalized {
			active++
		}
	}
	return Stats{
		TotalCommits:        m.totalCommits,
		TotalReveals:        m.totalReveals,
		TotalHashMismatches: m.totalHashMismatches,
		TotalFinalized:      m.totalFinalized,
		TotalUnrevealed:     m.totalUnrevealed,
		ActiveEpochs:        active,
		HistoryLen:          m.history.Len(),
	}
}

func (m *Manager) reject(err error, subnetID SubnetID, validator ids.NodeID) error {
	m.metrics.markRejected(err)
	m.log.Debug("rejected weight submission",
		log.Uint32("subnetID", uint32(subnetID)),
		log.Stringer("validator", validator),
		log.Err(err),
	)
	return err
}
