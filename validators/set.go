// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validators holds an in-memory stake registry that the slashing
// engine can penalize.
package validators

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/luxfi/ids"

	"github.com/luxfi/safety/consensus/slashing"

	safemath "github.com/luxfi/safety/utils/math"
)

var (
	ErrUnknownValidator   = errors.New("unknown validator")
	ErrDuplicateValidator = errors.New("validator already registered")
	ErrZeroStake          = errors.New("stake must be positive")

	_ slashing.ValidatorSet = (*Set)(nil)
)

// Set is a validator registry guarded by a single mutex.
//
// The slashing.ValidatorSet methods expect the caller to hold the lock. Every
// other method acquires it itself.
type Set struct {
	lock       sync.Mutex
	validators map[ids.NodeID]*slashing.Validator
}

func NewSet() *Set {
	return &Set{
		validators: make(map[ids.NodeID]*slashing.Validator),
	}
}

func (s *Set) Lock() {
	s.lock.Lock()
}

func (s *Set) Unlock() {
	s.lock.Unlock()
}

func (s *Set) GetValidator(nodeID ids.NodeID) (slashing.Validator, bool) {
	v, ok := s.validators[nodeID]
	if !ok {
		return slashing.Validator{}, false
	}
	return *v, true
}

func (s *Set) SlashStake(nodeID ids.NodeID, amount uint64) error {
	v, ok := s.validators[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownValidator, nodeID)
	}
	stake, err := safemath.Sub(v.Stake, amount)
	if err != nil {
		return fmt.Errorf("slashing %d from %s: %w", amount, nodeID, err)
	}
	v.Stake = stake
	return nil
}

func (s *Set) ActivateValidator(nodeID ids.NodeID) error {
	return s.setActive(nodeID, true)
}

func (s *Set) DeactivateValidator(nodeID ids.NodeID) error {
	return s.setActive(nodeID, false)
}

func (s *Set) setActive(nodeID ids.NodeID, active bool) error {
	v, ok := s.validators[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownValidator, nodeID)
	}
	v.Active = active
	return nil
}

// Add registers an active validator with stake.
func (s *Set) Add(nodeID ids.NodeID, stake uint64) error {
	if stake == 0 {
		return ErrZeroStake
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.validators[nodeID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateValidator, nodeID)
	}
	s.validators[nodeID] = &slashing.Validator{
		NodeID: nodeID,
		Stake:  stake,
		Active: true,
	}
	return nil
}

// Remove deletes a validator. Removing an unknown validator is a no-op.
func (s *Set) Remove(nodeID ids.NodeID) {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.validators, nodeID)
}

// Get is the locking counterpart of GetValidator.
func (s *Set) Get(nodeID ids.NodeID) (slashing.Validator, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.GetValidator(nodeID)
}

// Active returns the active validators ordered by node ID.
func (s *Set) Active() []slashing.Validator {
	s.lock.Lock()
	defer s.lock.Unlock()

	active := make([]slashing.Validator, 0, len(s.validators))
	for _, nodeID := range s.sortedIDs() {
		if v := s.validators[nodeID]; v.Active {
			active = append(active, *v)
		}
	}
	return active
}

// TotalActiveStake sums the stake of active validators.
func (s *Set) TotalActiveStake() (uint64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var (
		total uint64
		err   error
	)
	for _, v := range s.validators {
		if !v.Active {
			continue
		}
		total, err = safemath.Add(total, v.Stake)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

func (s *Set) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.validators)
}

func (s *Set) sortedIDs() []ids.NodeID {
	return slices.SortedFunc(maps.Keys(s.validators), func(a, b ids.NodeID) int {
		return bytes.Compare(a.Bytes(), b.Bytes())
	})
}
