// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

import (
	"context"

	"github.com/luxfi/ids"

	"github.com/luxfi/safety/consensus/commitreveal"
)

// ScoreComputer produces the consensus scores of the epoch that just ended.
type ScoreComputer interface {
	ComputeScores(ctx context.Context, epoch uint64) error
}

// RewardDistributor pays out and persists the rewards of epoch.
type RewardDistributor interface {
	DistributeRewards(ctx context.Context, epoch uint64) error
}

// SeedSink receives the RANDAO output that seeds epoch.
type SeedSink interface {
	SetSeed(epoch uint64, seed ids.ID) error
}

type Governance interface {
	GovernanceHousekeeping(ctx context.Context, height uint64) error
}

type ValidatorRotation interface {
	RotateValidators(ctx context.Context, epoch uint64) error
}

// SubnetRegistry lists subnets that should run commit-reveal even if they
// never started an epoch.
type SubnetRegistry interface {
	ActiveSubnets() []commitreveal.SubnetID
}

type ScoringHousekeeper interface {
	ScoringHousekeeping(ctx context.Context, epoch uint64) error
}
