// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package slashing applies stake penalties for offline, double-signing and
// fraudulent validators, and jails the ones whose offence warrants it.
//
// Every decision is a function of block height and the order in which
// evidence is applied. Missed-block counters and signature records are bounded
// and pruned by age.
package slashing

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/google/btree"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	safemath "github.com/luxfi/safety/utils/math"
)

// ValidatorSet is the stake registry the engine penalizes.
//
// GetValidator, SlashStake, ActivateValidator and DeactivateValidator are only
// called while the set's lock is held. The engine always acquires its own lock
// before the set's lock; implementations must never call back into the engine
// while holding theirs.
type ValidatorSet interface {
	sync.Locker

	GetValidator(nodeID ids.NodeID) (Validator, bool)
	SlashStake(nodeID ids.NodeID, amount uint64) error
	ActivateValidator(nodeID ids.NodeID) error
	DeactivateValidator(nodeID ids.NodeID) error
}

type missedBlocks struct {
	count      uint64
	lastHeight uint64
}

type releaseEntry struct {
	releaseAt uint64
	validator ids.NodeID
}

func (e releaseEntry) Less(o releaseEntry) bool {
	if e.releaseAt != o.releaseAt {
		return e.releaseAt < o.releaseAt
	}
	return bytes.Compare(e.validator.Bytes(), o.validator.Bytes()) < 0
}

// Stats are the engine's current sizes and lifetime counters.
type Stats struct {
	Jailed          int    `json:"jailed"`
	TrackedHeights  int    `json:"trackedHeights"`
	TrackedMissed   int    `json:"trackedMissed"`
	RetainedEvents  int    `json:"retainedEvents"`
	TotalSlashes    uint64 `json:"totalSlashes"`
	TotalSlashed    uint64 `json:"totalSlashed"`
	TotalJailed     uint64 `json:"totalJailed"`
	TotalUnjailed   uint64 `json:"totalUnjailed"`
	TotalDoubleSign uint64 `json:"totalDoubleSign"`
}

// Manager is safe for concurrent use. Lock order: Manager, then ValidatorSet.
type Manager struct {
	config     Config
	validators ValidatorSet
	log        log.Logger
	metrics    *Metrics

	mu         sync.RWMutex
	missed     map[ids.NodeID]*missedBlocks
	signatures *signatureTracker
	jailed     map[ids.NodeID]JailStatus
	releases   *btree.BTreeG[releaseEntry]
	events     []SlashEvent

	totalSlashes    uint64
	totalSlashed    uint64
	totalJailed     uint64
	totalUnjailed   uint64
	totalDoubleSign uint64
}

func NewManager(config Config, validators ValidatorSet, log log.Logger, metrics *Metrics) (*Manager, error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}
	return &Manager{
		config:     config,
		validators: validators,
		log:        log,
		metrics:    metrics,
		missed:     make(map[ids.NodeID]*missedBlocks),
		signatures: newSignatureTracker(config.MaxTrackedHeights, config.MaxSignaturesPerHeight),
		jailed:     make(map[ids.NodeID]JailStatus),
		releases:   btree.NewG(defaultTreeDegree, releaseEntry.Less),
	}, nil
}

// RecordMissedBlock counts a block validator should have signed at height.
func (m *Manager) RecordMissedBlock(validator ids.NodeID, height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.missed[validator]
	if !ok {
		mb = &missedBlocks{}
		m.missed[validator] = mb
	}
	mb.count++
	mb.lastHeight = max(mb.lastHeight, height)
}

// RecordSignedBlock resets validator's missed-block counter.
func (m *Manager) RecordSignedBlock(validator ids.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.missed, validator)
}

// CheckOffline returns Offline evidence once validator has missed
// MaxMissedBlocks blocks in a row. The counter restarts after evidence is
// produced.
func (m *Manager) CheckOffline(validator ids.NodeID, height uint64) (Evidence, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.missed[validator]
	if !ok || mb.count < m.config.MaxMissedBlocks {
		return Evidence{}, false
	}
	delete(m.missed, validator)
	m.metrics.markOffline()
	m.log.Info("validator offline",
		log.Stringer("validator", validator),
		log.Uint64("missedBlocks", mb.count),
		log.Uint64("height", height),
	)
	return Evidence{
		Validator: validator,
		Reason:    Offline,
		Height:    height,
	}, true
}

// RecordBlockSignature records that validator signed blockHash at height.
func (m *Manager) RecordBlockSignature(height uint64, blockHash ids.ID, validator ids.NodeID, sigHash ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.signatures.record(height, blockHash, validator, sigHash); err != nil {
		m.log.Debug("dropped block signature",
			log.Uint64("height", height),
			log.Stringer("validator", validator),
			log.Err(err),
		)
		return err
	}
	return nil
}

// CheckDoubleSigning returns evidence for every validator that signed two
// different blocks at height. Each offender is reported once per height.
func (m *Manager) CheckDoubleSigning(height uint64) []Evidence {
	m.mu.Lock()
	defer m.mu.Unlock()

	evidence := m.signatures.conflicts(height)
	for _, e := range evidence {
		m.log.Warn("double signing detected",
			log.Stringer("validator", e.Validator),
			log.Uint64("height", height),
			log.Stringer("evidenceHash", e.EvidenceHash),
		)
	}
	m.totalDoubleSign += uint64(len(evidence))
	m.metrics.markDoubleSigns(len(evidence))
	return evidence
}

// Slash applies evidence at currentHeight, jailing the validator when the
// reason calls for it.
//
// If the stake was slashed but the validator could not be deactivated, the
// event is returned together with an error matching ErrJail.
func (m *Manager) Slash(evidence Evidence, currentHeight uint64) (*SlashEvent, error) {
	return m.slash(evidence, currentHeight, evidence.Reason.Jails())
}

// SlashAndJail applies evidence and jails the validator regardless of the
// reason's own policy.
func (m *Manager) SlashAndJail(evidence Evidence, currentHeight uint64) (*SlashEvent, error) {
	return m.slash(evidence, currentHeight, true)
}

func (m *Manager) slash(evidence Evidence, currentHeight uint64, jail bool) (*SlashEvent, error) {
	percent := evidence.Reason.SlashPercent()
	if percent > 100 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPercent, evidence.Reason)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.validators.Lock()
	defer m.validators.Unlock()

	validator, ok := m.validators.GetValidator(evidence.Validator)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrValidatorNotFound, evidence.Validator)
	}
	// A drained validator has nothing left to slash but is still jailed.
	if validator.Stake == 0 && !jail {
		return nil, fmt.Errorf("%w: %s", ErrNoStake, evidence.Validator)
	}

	amount, err := slashAmount(validator.Stake, percent, m.config.MinSlashAmount)
	if err != nil {
		return nil, err
	}
	if amount > 0 {
		if err := m.validators.SlashStake(evidence.Validator, amount); err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrSlashStake, evidence.Validator, err)
		}
	}

	event := SlashEvent{
		Validator:    evidence.Validator,
		Reason:       evidence.Reason,
		Height:       evidence.Height,
		EvidenceHash: evidence.EvidenceHash,
		StakeBefore:  validator.Stake,
		Amount:       amount,
		ExecutedAt:   currentHeight,
	}
	m.totalSlashes++
	m.totalSlashed = safemath.SaturatingAdd(m.totalSlashed, amount)
	m.metrics.markSlash(evidence.Reason, amount)

	var jailErr error
	if jail {
		jailErr = m.jail(evidence.Validator, evidence.Reason, currentHeight)
		event.Jailed = jailErr == nil
	}
	m.appendEvent(event)

	m.log.Info("slashed validator",
		log.Stringer("validator", evidence.Validator),
		log.Stringer("reason", evidence.Reason),
		log.Uint64("stake", validator.Stake),
		log.Uint64("amount", amount),
		log.Bool("jailed", event.Jailed),
		log.Uint64("height", currentHeight),
	)
	return &event, jailErr
}

// jail deactivates validator until currentHeight+JailDuration. An already
// jailed validator keeps its original release height. Both locks are held.
func (m *Manager) jail(validator ids.NodeID, reason Reason, currentHeight uint64) error {
	if _, ok := m.jailed[validator]; ok {
		return nil
	}
	if err := m.validators.DeactivateValidator(validator); err != nil {
		m.log.Error("failed to deactivate validator",
			log.Stringer("validator", validator),
			log.Err(err),
		)
		return fmt.Errorf("%w %s: %w", ErrJail, validator, err)
	}

	status := JailStatus{
		Validator: validator,
		JailedAt:  currentHeight,
		ReleaseAt: safemath.SaturatingAdd(currentHeight, m.config.JailDuration),
		Reason:    reason,
	}
	m.jailed[validator] = status
	m.releases.ReplaceOrInsert(releaseEntry{
		releaseAt: status.ReleaseAt,
		validator: validator,
	})
	m.totalJailed++
	m.metrics.setJailed(len(m.jailed))
	return nil
}

func (m *Manager) appendEvent(event SlashEvent) {
	if len(m.events) >= m.config.MaxEvents {
		m.events = slices.Delete(m.events, 0, len(m.events)-m.config.MaxEvents+1)
	}
	m.events = append(m.events, event)
}

// ProcessUnjail releases every validator whose release height is at or below
// currentHeight and returns them in release order. A validator that cannot
// be reactivated stays jailed and is retried on the next call.
func (m *Manager) ProcessUnjail(currentHeight uint64) []ids.NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := m.releases.Min()
	if !ok || next.releaseAt > currentHeight {
		return nil
	}

	m.validators.Lock()
	defer m.validators.Unlock()

	var (
		released []ids.NodeID
		retry    []releaseEntry
	)
	for {
		next, ok := m.releases.Min()
		if !ok || next.releaseAt > currentHeight {
			break
		}
		m.releases.DeleteMin()

		if err := m.validators.ActivateValidator(next.validator); err != nil {
			m.log.Warn("failed to reactivate validator",
				log.Stringer("validator", next.validator),
				log.Err(err),
			)
			retry = append(retry, next)
			continue
		}
		delete(m.jailed, next.validator)
		released = append(released, next.validator)
		m.log.Info("released validator from jail",
			log.Stringer("validator", next.validator),
			log.Uint64("height", currentHeight),
		)
	}
	for _, entry := range retry {
		m.releases.ReplaceOrInsert(entry)
	}
	m.totalUnjailed += uint64(len(released))
	m.metrics.markUnjailed(len(released))
	m.metrics.setJailed(len(m.jailed))
	return released
}

// CleanupOldEvidence drops signature records and missed-block counters last
// touched more than maxAge blocks before currentHeight.
func (m *Manager) CleanupOldEvidence(currentHeight, maxAge uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if currentHeight <= maxAge {
		return
	}
	cutoff := currentHeight - maxAge

	heights := m.signatures.prune(cutoff)
	counters := 0
	for validator, mb := range m.missed {
		if mb.lastHeight < cutoff {
			delete(m.missed, validator)
			counters++
		}
	}
	if heights > 0 || counters > 0 {
		m.log.Debug("pruned slashing evidence",
			log.Uint64("cutoff", cutoff),
			log.Int("heights", heights),
			log.Int("missedCounters", counters),
		)
	}
}

func (m *Manager) IsJailed(validator ids.NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.jailed[validator]
	return ok
}

func (m *Manager) JailStatus(validator ids.NodeID) (JailStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.jailed[validator]
	return status, ok
}

// MissedBlocks returns validator's current run of missed blocks.
func (m *Manager) MissedBlocks(validator ids.NodeID) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if mb, ok := m.missed[validator]; ok {
		return mb.count
	}
	return 0
}

// Events returns the retained slash events, oldest first.
func (m *Manager) Events() []SlashEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.events)
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Jailed:          len(m.jailed),
		TrackedHeights:  m.signatures.len(),
		TrackedMissed:   len(m.missed),
		RetainedEvents:  len(m.events),
		TotalSlashes:    m.totalSlashes,
		TotalSlashed:    m.totalSlashed,
		TotalJailed:     m.totalJailed,
		TotalUnjailed:   m.totalUnjailed,
		TotalDoubleSign: m.totalDoubleSign,
	}
}

// slashAmount is max(stake*percent/100, minAmount), capped at stake.
func slashAmount(stake, percent, minAmount uint64) (uint64, error) {
	amount, err := safemath.Percent(stake, percent)
	if err != nil {
		return 0, err
	}
	return min(max(amount, minAmount), stake), nil
}
