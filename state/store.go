// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state persists the outputs of finalized epochs: RANDAO mixes,
// subnet weight finalizations and applied slashes.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"

	"github.com/luxfi/safety/consensus/commitreveal"
	"github.com/luxfi/safety/consensus/slashing"
)

var (
	mixPrefix          = []byte("mix")
	finalizationPrefix = []byte("finalization")
	slashPrefix        = []byte("slash")
	metadataPrefix     = []byte("metadata")

	slashCountKey   = []byte("slashCount")
	lastMixEpochKey = []byte("lastMixEpoch")

	errCountOverflow = errors.New("record count overflow")
)

type weightRecord struct {
	UID   uint16 `serialize:"true"`
	Value uint16 `serialize:"true"`
}

type finalizationRecord struct {
	SubnetID    uint16         `serialize:"true"`
	Epoch       uint64         `serialize:"true"`
	FinalizedAt uint64         `serialize:"true"`
	Weights     []weightRecord `serialize:"true"`
	CommitCount uint32         `serialize:"true"`
	RevealCount uint32         `serialize:"true"`
	Unrevealed  []ids.NodeID   `serialize:"true"`
}

// SlashRecord is the persisted form of a slashing.SlashEvent.
type SlashRecord struct {
	Validator    ids.NodeID `serialize:"true" json:"validator"`
	Reason       string     `serialize:"true" json:"reason"`
	SlashPercent uint64     `serialize:"true" json:"slashPercent"`
	Height       uint64     `serialize:"true" json:"height"`
	EvidenceHash ids.ID     `serialize:"true" json:"evidenceHash"`
	StakeBefore  uint64     `serialize:"true" json:"stakeBefore"`
	Amount       uint64     `serialize:"true" json:"amount"`
	Burned       uint64     `serialize:"true" json:"burned"`
	Treasury     uint64     `serialize:"true" json:"treasury"`
	Jailed       bool       `serialize:"true" json:"jailed"`
	ExecutedAt   uint64     `serialize:"true" json:"executedAt"`
}

// NewSlashRecord converts event. burned and treasury split the slashed amount
// when the slash came from the commit-reveal penalty; otherwise both are zero.
func NewSlashRecord(event *slashing.SlashEvent, burned, treasury uint64) *SlashRecord {
	return &SlashRecord{
		Validator:    event.Validator,
		Reason:       event.Reason.String(),
		SlashPercent: event.Reason.SlashPercent(),
		Height:       event.Height,
		EvidenceHash: event.EvidenceHash,
		StakeBefore:  event.StakeBefore,
		Amount:       event.Amount,
		Burned:       burned,
		Treasury:     treasury,
		Jailed:       event.Jailed,
		ExecutedAt:   event.ExecutedAt,
	}
}

// Store is safe for concurrent use.
type Store struct {
	mixDB          database.Database
	finalizationDB database.Database
	slashDB        database.Database
	metadataDB     database.Database

	// slashLock serializes appends to the slash log.
	slashLock sync.Mutex
}

func New(db database.Database) *Store {
	return &Store{
		mixDB:          prefixdb.New(mixPrefix, db),
		finalizationDB: prefixdb.New(finalizationPrefix, db),
		slashDB:        prefixdb.New(slashPrefix, db),
		metadataDB:     prefixdb.New(metadataPrefix, db),
	}
}

// PutEpochMix stores the final RANDAO mix of epoch.
func (s *Store) PutEpochMix(epoch uint64, mix ids.ID) error {
	if err := database.PutID(s.mixDB, database.PackUInt64(epoch), mix); err != nil {
		return fmt.Errorf("failed to write mix of epoch %d: %w", epoch, err)
	}
	return database.PutUInt64(s.metadataDB, lastMixEpochKey, epoch)
}

// GetEpochMix returns database.ErrNotFound if epoch was never stored.
func (s *Store) GetEpochMix(epoch uint64) (ids.ID, error) {
	return database.GetID(s.mixDB, database.PackUInt64(epoch))
}

// LastMixEpoch returns the most recently stored epoch, or
// database.ErrNotFound.
func (s *Store) LastMixEpoch() (uint64, error) {
	return database.GetUInt64(s.metadataDB, lastMixEpochKey)
}

func finalizationKey(subnetID commitreveal.SubnetID, epoch uint64) []byte {
	key := make([]byte, 2+database.Uint64Size)
	binary.BigEndian.PutUint16(key, uint16(subnetID))
	binary.BigEndian.PutUint64(key[2:], epoch)
	return key
}

func (s *Store) PutFinalization(result *commitreveal.FinalizationResult) error {
	record := finalizationRecord{
		SubnetID:    uint16(result.SubnetID),
		Epoch:       result.Epoch,
		FinalizedAt: result.FinalizedAt,
		Weights:     make([]weightRecord, len(result.Weights)),
		CommitCount: uint32(result.CommitCount),
		RevealCount: uint32(result.RevealCount),
		Unrevealed:  make([]ids.NodeID, len(result.Slashes)),
	}
	for i, w := range result.Weights {
		record.Weights[i] = weightRecord{UID: w.UID, Value: w.Value}
	}
	for i, slash := range result.Slashes {
		record.Unrevealed[i] = slash.Validator
	}

	bytes, err := Codec.Marshal(CodecVersion, &record)
	if err != nil {
		return fmt.Errorf("failed to marshal finalization: %w", err)
	}
	return s.finalizationDB.Put(finalizationKey(result.SubnetID, result.Epoch), bytes)
}

// GetFinalization returns the stored finalization of subnetID's epoch. The
// slash percentages of the returned result are not persisted and are left
// zero.
func (s *Store) GetFinalization(subnetID commitreveal.SubnetID, epoch uint64) (*commitreveal.FinalizationResult, error) {
	bytes, err := s.finalizationDB.Get(finalizationKey(subnetID, epoch))
	if err != nil {
		return nil, err
	}
	var record finalizationRecord
	if _, err := Codec.Unmarshal(bytes, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal finalization: %w", err)
	}

	result := &commitreveal.FinalizationResult{
		SubnetID:    commitreveal.SubnetID(record.SubnetID),
		Epoch:       record.Epoch,
		FinalizedAt: record.FinalizedAt,
		Weights:     make([]commitreveal.Weight, len(record.Weights)),
		CommitCount: int(record.CommitCount),
		RevealCount: int(record.RevealCount),
	}
	for i, w := range record.Weights {
		result.Weights[i] = commitreveal.Weight{UID: w.UID, Value: w.Value}
	}
	for _, validator := range record.Unrevealed {
		result.Slashes = append(result.Slashes, commitreveal.SlashingResult{Validator: validator})
	}
	return result, nil
}

// AddSlash appends record to the slash log and returns its index.
func (s *Store) AddSlash(record *SlashRecord) (uint64, error) {
	s.slashLock.Lock()
	defer s.slashLock.Unlock()

	count, err := s.slashCount()
	if err != nil {
		return 0, err
	}
	if count == ^uint64(0) {
		return 0, errCountOverflow
	}
	bytes, err := Codec.Marshal(CodecVersion, record)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal slash: %w", err)
	}

	if err := s.slashDB.Put(database.PackUInt64(count), bytes); err != nil {
		return 0, fmt.Errorf("failed to write slash %d: %w", count, err)
	}
	return count, database.PutUInt64(s.metadataDB, slashCountKey, count+1)
}

// Slashes returns every persisted slash in insertion order.
func (s *Store) Slashes() ([]*SlashRecord, error) {
	it := s.slashDB.NewIterator()
	defer it.Release()

	var records []*SlashRecord
	for it.Next() {
		record := &SlashRecord{}
		if _, err := Codec.Unmarshal(it.Value(), record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal slash: %w", err)
		}
		records = append(records, record)
	}
	return records, it.Error()
}

func (s *Store) SlashCount() (uint64, error) {
	s.slashLock.Lock()
	defer s.slashLock.Unlock()

	return s.slashCount()
}

func (s *Store) slashCount() (uint64, error) {
	count, err := database.GetUInt64(s.metadataDB, slashCountKey)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return count, err
}
