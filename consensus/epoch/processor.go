// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package epoch drives the consensus-safety components across an epoch
// boundary. The steps always run in this order:
//
//  1. compute scores (weight_consensus breaker)
//  2. distribute rewards (emission breaker), using the scores of step 1
//  3. finalize the RANDAO epoch and seed the next one
//  4. governance housekeeping
//  5. jail releases, evidence pruning and validator rotation
//  6. finalize every subnet's commit-reveal epoch (commit_reveal breaker),
//     slash unrevealed validators and open the next commit window
//  7. scoring housekeeping
//
// The RANDAO mix is produced after rewards so it cannot influence them.
package epoch

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/safety/consensus/circuitbreaker"
	"github.com/luxfi/safety/consensus/commitreveal"
	"github.com/luxfi/safety/consensus/randao"
	"github.com/luxfi/safety/consensus/slashing"
	"github.com/luxfi/safety/state"
)

var errMissingComponent = errors.New("missing component")

// Components are the handles a boundary touches. Breakers, Randao,
// CommitReveal and Slashing are required; a nil external collaborator skips
// its step and a nil Store disables persistence.
type Components struct {
	Breakers     *circuitbreaker.AILayer
	Randao       *randao.Mixer
	CommitReveal *commitreveal.Manager
	Slashing     *slashing.Manager
	Store        *state.Store

	Scores     ScoreComputer
	Rewards    RewardDistributor
	Seed       SeedSink
	Governance Governance
	Rotation   ValidatorRotation
	Subnets    SubnetRegistry
	Scoring    ScoringHousekeeper
}

// Processor must be called from the block-application path only.
type Processor struct {
	config     Config
	components Components
	log        log.Logger
}

func NewProcessor(config Config, components Components, log log.Logger) (*Processor, error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}
	switch {
	case components.Breakers == nil:
		return nil, fmt.Errorf("%w: breakers", errMissingComponent)
	case components.Randao == nil:
		return nil, fmt.Errorf("%w: randao", errMissingComponent)
	case components.CommitReveal == nil:
		return nil, fmt.Errorf("%w: commit-reveal", errMissingComponent)
	case components.Slashing == nil:
		return nil, fmt.Errorf("%w: slashing", errMissingComponent)
	}
	return &Processor{
		config:     config,
		components: components,
		log:        log,
	}, nil
}

// ProcessBoundary runs every boundary step. Step failures are recorded in the
// report and never stop later steps; only a cancelled ctx does.
func (p *Processor) ProcessBoundary(ctx context.Context, b Boundary) (*Report, error) {
	r := &Report{Boundary: b}
	steps := []func(context.Context, *Report){
		p.computeScores,
		p.distributeRewards,
		p.finalizeRandao,
		p.governance,
		p.rotate,
		p.finalizeSubnets,
		p.scoring,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		step(ctx, r)
	}

	p.log.Info("processed epoch boundary",
		log.Uint64("epoch", b.Epoch),
		log.Uint64("height", b.Height),
		log.Stringer("mix", r.Mix),
		log.Int("finalizedSubnets", len(r.Finalizations)),
		log.Int("slashes", len(r.Slashes)),
	)
	return r, nil
}

func (p *Processor) computeScores(ctx context.Context, r *Report) {
	scores := p.components.Scores
	if scores == nil {
		r.add(StepScores, Skipped, nil)
		return
	}
	err := p.components.Breakers.WeightConsensus().ExecuteContext(ctx, func(ctx context.Context) error {
		return scores.ComputeScores(ctx, r.Boundary.Epoch)
	})
	p.record(r, StepScores, err)
}

func (p *Processor) distributeRewards(ctx context.Context, r *Report) {
	rewards := p.components.Rewards
	if rewards == nil {
		r.add(StepRewards, Skipped, nil)
		return
	}
	// Rewards are only computed from this epoch's scores.
	if res, _ := r.Result(StepScores); res.Err != nil {
		p.log.Warn("skipping rewards without fresh scores",
			log.Uint64("epoch", r.Boundary.Epoch),
			log.Err(res.Err),
		)
		r.add(StepRewards, Skipped, res.Err)
		return
	}
	err := p.components.Breakers.Emission().ExecuteContext(ctx, func(ctx context.Context) error {
		return rewards.DistributeRewards(ctx, r.Boundary.Epoch)
	})
	p.record(r, StepRewards, err)
}

func (p *Processor) finalizeRandao(_ context.Context, r *Report) {
	mixer := p.components.Randao
	randaoEpoch := mixer.CurrentEpoch()
	mix, err := mixer.FinalizeEpoch()
	if err != nil {
		// The mix keeps accumulating into the next attempt.
		r.add(StepRandao, Failed, err)
		return
	}
	r.Mix = mix

	if seed := p.components.Seed; seed != nil {
		if err := seed.SetSeed(r.Boundary.Epoch+1, mix); err != nil {
			p.log.Error("failed to set epoch seed",
				log.Uint64("epoch", r.Boundary.Epoch+1),
				log.Err(err),
			)
			r.add(StepRandao, Failed, err)
			return
		}
	}
	if store := p.components.Store; store != nil {
		if err := store.PutEpochMix(randaoEpoch, mix); err != nil {
			p.log.Error("failed to persist randao mix",
				log.Uint64("randaoEpoch", randaoEpoch),
				log.Err(err),
			)
			r.add(StepRandao, Failed, err)
			return
		}
	}
	r.add(StepRandao, Done, nil)
}

func (p *Processor) governance(ctx context.Context, r *Report) {
	governance := p.components.Governance
	if governance == nil {
		r.add(StepGovernance, Skipped, nil)
		return
	}
	p.record(r, StepGovernance, governance.GovernanceHousekeeping(ctx, r.Boundary.Height))
}

func (p *Processor) rotate(ctx context.Context, r *Report) {
	slasher := p.components.Slashing
	slasher.ProcessUnjail(r.Boundary.Height)
	slasher.CleanupOldEvidence(r.Boundary.Height, p.config.EvidenceMaxAge)

	rotation := p.components.Rotation
	if rotation == nil {
		r.add(StepRotation, Skipped, nil)
		return
	}
	p.record(r, StepRotation, rotation.RotateValidators(ctx, r.Boundary.Epoch))
}

func (p *Processor) finalizeSubnets(ctx context.Context, r *Report) {
	var errs []error
	for _, subnetID := range p.subnets() {
		if err := p.finalizeSubnet(ctx, r, subnetID); err != nil {
			errs = append(errs, err)
		}
	}
	p.record(r, StepCommitReveal, errors.Join(errs...))
}

// subnets returns every subnet with a commit-reveal epoch or registered as
// active, in ascending order.
func (p *Processor) subnets() []commitreveal.SubnetID {
	subnets := p.components.CommitReveal.Subnets()
	if registry := p.components.Subnets; registry != nil {
		subnets = append(subnets, registry.ActiveSubnets()...)
	}
	slices.Sort(subnets)
	return slices.Compact(subnets)
}

// finalizeSubnet runs under the commit_reveal breaker. Only persistence
// failures count against the breaker; every commit-reveal error is an outcome
// of the chain's own inputs.
func (p *Processor) finalizeSubnet(ctx context.Context, r *Report, subnetID commitreveal.SubnetID) error {
	var restart bool
	err := p.components.Breakers.CommitReveal().ExecuteContext(ctx, func(context.Context) error {
		result, err := p.components.CommitReveal.FinalizeEpochWithSlashing(subnetID, r.Boundary.Height)
		switch {
		case err == nil:
			restart = true
			return p.applyFinalization(r, result)
		case errors.Is(err, commitreveal.ErrNoActiveEpoch):
			restart = true
			p.log.Debug("no commit-reveal epoch to finalize",
				log.Uint32("subnetID", uint32(subnetID)),
			)
		case errors.Is(err, commitreveal.ErrInsufficientReveals):
			restart = true
			p.log.Warn("abandoning commit-reveal epoch",
				log.Uint32("subnetID", uint32(subnetID)),
				log.Err(err),
			)
		case commitreveal.IsExpected(err):
			p.log.Debug("commit-reveal epoch still running",
				log.Uint32("subnetID", uint32(subnetID)),
				log.Err(err),
			)
		default:
			p.log.Warn("failed to finalize commit-reveal epoch",
				log.Uint32("subnetID", uint32(subnetID)),
				log.Err(err),
			)
		}
		return nil
	})
	if err != nil {
		p.log.Warn("commit-reveal finalization not applied",
			log.Uint32("subnetID", uint32(subnetID)),
			log.Err(err),
		)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return err
		}
	}
	if !restart {
		return err
	}
	return errors.Join(err, p.startNextEpoch(subnetID, r.Boundary))
}

func (p *Processor) applyFinalization(r *Report, result *commitreveal.FinalizationResult) error {
	r.Finalizations = append(r.Finalizations, result)

	store := p.components.Store
	if store != nil {
		if err := store.PutFinalization(result); err != nil {
			return err
		}
	}

	var errs []error
	for _, unrevealed := range result.Slashes {
		event, err := p.components.Slashing.Slash(slashing.Evidence{
			Validator: unrevealed.Validator,
			Reason:    slashing.Custom(unrevealed.SlashPercent),
			Height:    result.FinalizedAt,
		}, r.Boundary.Height)
		if event == nil {
			p.log.Debug("could not slash unrevealed validator",
				log.Uint32("subnetID", uint32(result.SubnetID)),
				log.Stringer("validator", unrevealed.Validator),
				log.Err(err),
			)
			continue
		}
		r.Slashes = append(r.Slashes, event)
		if store == nil {
			continue
		}
		burn, treasury := unrevealed.Split(event.Amount)
		if _, err := store.AddSlash(state.NewSlashRecord(event, burn, treasury)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) startNextEpoch(subnetID commitreveal.SubnetID, b Boundary) error {
	next := b.Epoch + 1
	if info, ok := p.components.CommitReveal.Epoch(subnetID); ok && info.Epoch >= next {
		next = info.Epoch + 1
	}
	if err := p.components.CommitReveal.StartEpoch(subnetID, next, b.Height); err != nil {
		p.log.Error("failed to start commit-reveal epoch",
			log.Uint32("subnetID", uint32(subnetID)),
			log.Uint64("epoch", next),
			log.Err(err),
		)
		return err
	}
	return nil
}

func (p *Processor) scoring(ctx context.Context, r *Report) {
	scoring := p.components.Scoring
	if scoring == nil {
		r.add(StepScoring, Skipped, nil)
		return
	}
	p.record(r, StepScoring, scoring.ScoringHousekeeping(ctx, r.Boundary.Epoch))
}

func (p *Processor) record(r *Report, step Step, err error) {
	if err == nil {
		r.add(step, Done, nil)
		return
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		p.log.Debug("boundary step rejected by circuit breaker",
			log.Stringer("step", step),
			log.Err(err),
		)
		r.add(step, Skipped, err)
		return
	}
	p.log.Warn("boundary step failed",
		log.Stringer("step", step),
		log.Uint64("epoch", r.Boundary.Epoch),
		log.Err(err),
	)
	r.add(step, Failed, err)
}

// PunishFraudulentAI slashes validator for a proven fraudulent AI submission
// and always jails it.
func (p *Processor) PunishFraudulentAI(validator ids.NodeID, height uint64, evidenceHash ids.ID) (*slashing.SlashEvent, error) {
	event, err := p.components.Slashing.SlashAndJail(slashing.Evidence{
		Validator:    validator,
		Reason:       slashing.FraudulentAI,
		Height:       height,
		EvidenceHash: evidenceHash,
	}, height)
	if event == nil {
		return nil, err
	}
	if store := p.components.Store; store != nil {
		if _, storeErr := store.AddSlash(state.NewSlashRecord(event, 0, 0)); storeErr != nil {
			return event, errors.Join(err, storeErr)
		}
	}
	return event, err
}
