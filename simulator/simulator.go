// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package simulator drives the safety components through a deterministic
// sequence of epochs with honest, withholding, offline and double-signing
// validators.
package simulator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/safety/consensus/circuitbreaker"
	"github.com/luxfi/safety/consensus/commitreveal"
	"github.com/luxfi/safety/consensus/epoch"
	"github.com/luxfi/safety/consensus/randao"
	"github.com/luxfi/safety/consensus/slashing"
	"github.com/luxfi/safety/state"
	"github.com/luxfi/safety/utils/hashing"
	"github.com/luxfi/safety/validators"
)

const (
	namespace       = "safety"
	weightsPerVote  = 4
	maxPrepareProcs = 8
)

// EpochSummary describes one simulated epoch.
type EpochSummary struct {
	Epoch       uint64 `json:"epoch"`
	Mix         ids.ID `json:"mix"`
	Reveals     int    `json:"reveals"`
	Selected    int    `json:"selected"`
	Finalized   int    `json:"finalized"`
	Slashes     int    `json:"slashes"`
	Jailed      int    `json:"jailed"`
	ActiveStake uint64 `json:"activeStake"`
}

// StakeSummary describes the final stake distribution.
type StakeSummary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

type Result struct {
	Epochs   []EpochSummary         `json:"epochs"`
	Stakes   StakeSummary           `json:"stakes"`
	Breakers circuitbreaker.Summary `json:"breakers"`
	Slashing slashing.Stats         `json:"slashing"`
}

type participant struct {
	nodeID       ids.NodeID
	doubleSigner bool
}

// payload is everything a participant submits in one epoch. It only depends
// on the seed, so it can be prepared off the application path.
type payload struct {
	active   bool
	offline  bool
	withhold bool

	randaoReveal ids.ID
	weights      [][]commitreveal.Weight
	salts        [][commitreveal.SaltLength]byte
}

type Simulator struct {
	config Config
	log    log.Logger

	participants []participant
	subnets      []commitreveal.SubnetID
	seeds        map[uint64]ids.ID

	validators   *validators.Set
	breakers     *circuitbreaker.AILayer
	mixer        *randao.Mixer
	commitReveal *commitreveal.Manager
	slasher      *slashing.Manager
	store        *state.Store
	processor    *epoch.Processor
}

func New(config Config, registerer prometheus.Registerer, log log.Logger) (*Simulator, error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}

	breakerMetrics, err := circuitbreaker.NewMetrics(namespace, registerer)
	if err != nil {
		return nil, err
	}
	randaoMetrics, err := randao.NewMetrics(namespace, registerer)
	if err != nil {
		return nil, err
	}
	commitRevealMetrics, err := commitreveal.NewMetrics(namespace, registerer)
	if err != nil {
		return nil, err
	}
	slashingMetrics, err := slashing.NewMetrics(namespace, registerer)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		config:     config,
		log:        log,
		seeds:      make(map[uint64]ids.ID),
		validators: validators.NewSet(),
		store:      state.New(memdb.New()),
	}

	safety := config.Safety
	s.breakers, err = circuitbreaker.NewAILayer(safety.CircuitBreakers, nil, log, breakerMetrics)
	if err != nil {
		return nil, err
	}
	s.mixer, err = randao.New(safety.Randao, s.draw("genesis", 0, 0), log, randaoMetrics)
	if err != nil {
		return nil, err
	}
	s.commitReveal, err = commitreveal.NewManager(safety.CommitReveal, log, commitRevealMetrics)
	if err != nil {
		return nil, err
	}
	s.slasher, err = slashing.NewManager(safety.Slashing, s.validators, log, slashingMetrics)
	if err != nil {
		return nil, err
	}
	s.processor, err = epoch.NewProcessor(safety.Epoch, epoch.Components{
		Breakers:     s.breakers,
		Randao:       s.mixer,
		CommitReveal: s.commitReveal,
		Slashing:     s.slasher,
		Store:        s.store,
		Seed:         s,
		Subnets:      s,
	}, log)
	if err != nil {
		return nil, err
	}

	stakeRange := config.MaxStake - config.MinStake + 1
	for i := range config.Validators {
		h := s.draw("validator", 0, i)
		var nodeID ids.NodeID
		copy(nodeID[:], h[:])
		stake := config.MinStake
		if stakeRange != 0 {
			stake += binary.BigEndian.Uint64(h[24:]) % stakeRange
		}
		if err := s.validators.Add(nodeID, stake); err != nil {
			return nil, err
		}
		s.participants = append(s.participants, participant{
			nodeID:       nodeID,
			doubleSigner: i >= config.Validators-config.DoubleSigners,
		})
	}
	for i := range config.Subnets {
		s.subnets = append(s.subnets, commitreveal.SubnetID(i))
	}
	return s, nil
}

// SetSeed records the seed of each epoch.
func (s *Simulator) SetSeed(epoch uint64, seed ids.ID) error {
	s.seeds[epoch] = seed
	return nil
}

func (s *Simulator) ActiveSubnets() []commitreveal.SubnetID {
	return s.subnets
}

func (s *Simulator) Store() *state.Store {
	return s.store
}

// Run simulates every configured epoch.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	epochLength := s.config.Safety.CommitReveal.EpochLength()
	for _, subnetID := range s.subnets {
		if err := s.commitReveal.StartEpoch(subnetID, 1, 0); err != nil {
			return nil, err
		}
	}

	result := &Result{}
	for e := uint64(1); e <= uint64(s.config.Epochs); e++ {
		summary, err := s.runEpoch(ctx, e, (e-1)*epochLength, epochLength)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", e, err)
		}
		result.Epochs = append(result.Epochs, summary)
	}

	result.Stakes = s.stakeSummary()
	result.Breakers = s.breakers.Summary()
	result.Slashing = s.slasher.Stats()
	return result, nil
}

func (s *Simulator) runEpoch(ctx context.Context, e, start, length uint64) (EpochSummary, error) {
	payloads, err := s.prepare(ctx, e)
	if err != nil {
		return EpochSummary{}, err
	}

	summary := EpochSummary{Epoch: e}
	revealHeight := start + s.config.Safety.CommitReveal.CommitWindow
	for height := start; height < start+length; height++ {
		switch height {
		case start:
			if err := s.commit(payloads, height); err != nil {
				return summary, err
			}
		case revealHeight:
			reveals, err := s.reveal(payloads, height)
			if err != nil {
				return summary, err
			}
			summary.Reveals = reveals
		}
		slashes, err := s.sign(payloads, height, height == start+1)
		if err != nil {
			return summary, err
		}
		summary.Slashes += slashes
	}

	slashes, err := s.checkOffline(payloads, start+length-1)
	if err != nil {
		return summary, err
	}
	summary.Slashes += slashes

	report, err := s.processor.ProcessBoundary(ctx, epoch.Boundary{
		Epoch:  e,
		Height: start + length,
	})
	if err != nil {
		return summary, err
	}
	summary.Mix = report.Mix
	summary.Finalized = len(report.Finalizations)
	summary.Slashes += len(report.Slashes)
	summary.Jailed = s.slasher.Stats().Jailed

	summary.ActiveStake, err = s.validators.TotalActiveStake()
	if err != nil {
		return summary, err
	}
	if report.Mix != ids.Empty {
		for _, v := range s.validators.Active() {
			output := randao.SelectionOutput(report.Mix, v.NodeID)
			if randao.IsSelected(output, v.Stake, summary.ActiveStake) {
				summary.Selected++
			}
		}
	}

	s.log.Info("simulated epoch",
		log.Uint64("epoch", e),
		log.Int("reveals", summary.Reveals),
		log.Int("selected", summary.Selected),
		log.Int("finalized", summary.Finalized),
		log.Int("slashes", summary.Slashes),
		log.Int("jailed", summary.Jailed),
	)
	return summary, nil
}

// prepare derives every participant's payload concurrently. Nothing here
// touches component state.
func (s *Simulator) prepare(ctx context.Context, e uint64) ([]payload, error) {
	randaoEpoch := s.mixer.CurrentEpoch()
	payloads := make([]payload, len(s.participants))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPrepareProcs)
	for i, p := range s.participants {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, ok := s.validators.Get(p.nodeID)
			if !ok || !v.Active {
				return nil
			}
			payloads[i] = s.newPayload(e, randaoEpoch, i)
			return nil
		})
	}
	return payloads, g.Wait()
}

func (s *Simulator) newPayload(e, randaoEpoch uint64, i int) payload {
	behavior := s.draw("behavior", e, i)
	p := payload{
		active:       true,
		withhold:     uint64(behavior[0])%100 < s.config.WithholdPercent,
		offline:      uint64(behavior[1])%100 < s.config.OfflinePercent,
		randaoReveal: s.draw("randao", randaoEpoch, i),
		weights:      make([][]commitreveal.Weight, len(s.subnets)),
		salts:        make([][commitreveal.SaltLength]byte, len(s.subnets)),
	}
	for j := range s.subnets {
		raw := s.draw(fmt.Sprintf("weights/%d", j), e, i)
		weights := make([]commitreveal.Weight, weightsPerVote)
		for k := range weights {
			weights[k] = commitreveal.Weight{
				UID:   uint16(k),
				Value: binary.BigEndian.Uint16(raw[2*k:]),
			}
		}
		p.weights[j] = weights
		p.salts[j] = s.draw(fmt.Sprintf("salt/%d", j), e, i)
	}
	return p
}

func (s *Simulator) commit(payloads []payload, height uint64) error {
	for i, p := range payloads {
		if !p.active {
			continue
		}
		nodeID := s.participants[i].nodeID
		err := s.mixer.SubmitCommitment(nodeID, randao.ComputeCommitment(p.randaoReveal))
		// A commitment survives an epoch that could not be finalized.
		if err != nil && !errors.Is(err, randao.ErrAlreadyCommitted) {
			return err
		}
		for j, subnetID := range s.subnets {
			hash := commitreveal.ComputeCommitHash(p.weights[j], p.salts[j])
			err := s.commitReveal.CommitWeights(subnetID, nodeID, hash, height)
			if err != nil && !commitreveal.IsExpected(err) {
				return err
			}
		}
	}
	return nil
}

func (s *Simulator) reveal(payloads []payload, height uint64) (int, error) {
	reveals := 0
	for i, p := range payloads {
		if !p.active || p.withhold {
			continue
		}
		nodeID := s.participants[i].nodeID
		err := s.mixer.MixReveal(nodeID, p.randaoReveal, height)
		switch {
		case err == nil:
			reveals++
		case errors.Is(err, randao.ErrAlreadyRevealed):
		default:
			return reveals, err
		}
		for j, subnetID := range s.subnets {
			err := s.commitReveal.RevealWeights(subnetID, nodeID, p.weights[j], p.salts[j], height)
			if err != nil && !commitreveal.IsExpected(err) && !errors.Is(err, commitreveal.ErrNoCommitFound) {
				return reveals, err
			}
		}
	}
	return reveals, nil
}

// sign records one block of signatures. Double signers also sign a
// conflicting block when conflict is set, which is slashed immediately.
func (s *Simulator) sign(payloads []payload, height uint64, conflict bool) (int, error) {
	blockHash := s.draw("block", height, 0)
	for i, p := range payloads {
		if !p.active {
			continue
		}
		nodeID := s.participants[i].nodeID
		if p.offline {
			s.slasher.RecordMissedBlock(nodeID, height)
			continue
		}
		s.slasher.RecordSignedBlock(nodeID)
		if err := s.recordSignature(height, blockHash, i); err != nil {
			return 0, err
		}
		if conflict && s.participants[i].doubleSigner {
			if err := s.recordSignature(height, s.draw("fork", height, 0), i); err != nil {
				return 0, err
			}
		}
	}
	if !conflict {
		return 0, nil
	}

	slashes := 0
	for _, evidence := range s.slasher.CheckDoubleSigning(height) {
		applied, err := s.apply(evidence, height)
		if err != nil {
			return slashes, err
		}
		if applied {
			slashes++
		}
	}
	return slashes, nil
}

func (s *Simulator) recordSignature(height uint64, blockHash ids.ID, i int) error {
	nodeID := s.participants[i].nodeID
	sigHash := hashing.Keccak256(blockHash[:], nodeID.Bytes())
	err := s.slasher.RecordBlockSignature(height, blockHash, nodeID, sigHash)
	if errors.Is(err, slashing.ErrTooManySignatures) || errors.Is(err, slashing.ErrHeightNotTracked) {
		return nil
	}
	return err
}

func (s *Simulator) checkOffline(payloads []payload, height uint64) (int, error) {
	slashes := 0
	for i, p := range payloads {
		if !p.active || !p.offline {
			continue
		}
		evidence, ok := s.slasher.CheckOffline(s.participants[i].nodeID, height)
		if !ok {
			continue
		}
		applied, err := s.apply(evidence, height)
		if err != nil {
			return slashes, err
		}
		if applied {
			slashes++
		}
	}
	return slashes, nil
}

// apply slashes evidence and persists the event. A validator whose stake is
// already exhausted is skipped.
func (s *Simulator) apply(evidence slashing.Evidence, height uint64) (bool, error) {
	event, err := s.slasher.Slash(evidence, height)
	if errors.Is(err, slashing.ErrNoStake) {
		return false, nil
	}
	if event == nil {
		return false, err
	}
	if _, storeErr := s.store.AddSlash(state.NewSlashRecord(event, 0, 0)); storeErr != nil {
		return true, storeErr
	}
	return true, err
}

func (s *Simulator) stakeSummary() StakeSummary {
	stakes := make([]float64, 0, len(s.participants))
	for _, p := range s.participants {
		v, ok := s.validators.Get(p.nodeID)
		if !ok {
			continue
		}
		stakes = append(stakes, float64(v.Stake))
	}
	if len(stakes) == 0 {
		return StakeSummary{}
	}
	slices.Sort(stakes)
	mean, std := stat.MeanStdDev(stakes, nil)
	return StakeSummary{
		Mean:   mean,
		StdDev: std,
		Median: stat.Quantile(0.5, stat.Empirical, stakes, nil),
		Min:    stakes[0],
		Max:    stakes[len(stakes)-1],
	}
}

// draw is the simulator's only source of randomness.
func (s *Simulator) draw(tag string, n uint64, i int) ids.ID {
	var buf [8 + 8 + 8]byte
	binary.BigEndian.PutUint64(buf[:], s.config.Seed)
	binary.BigEndian.PutUint64(buf[8:], n)
	binary.BigEndian.PutUint64(buf[16:], uint64(i))
	return hashing.Keccak256([]byte(tag), buf[:])
}
