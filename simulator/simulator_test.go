// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulator

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/safety/config"
)

func testConfig() Config {
	c := DefaultConfig
	c.Validators = 8
	c.Subnets = 2
	c.Epochs = 3
	c.WithholdPercent = 0
	c.OfflinePercent = 0
	c.DoubleSigners = 0
	c.Safety = config.Default()
	c.Safety.CommitReveal.CommitWindow = 5
	c.Safety.CommitReveal.RevealWindow = 5
	c.Safety.Slashing.MaxMissedBlocks = 5
	return c
}

func run(t *testing.T, c Config) (*Simulator, *Result) {
	t.Helper()

	s, err := New(c, prometheus.NewRegistry(), log.NewNoOpLogger())
	require.NoError(t, err)
	result, err := s.Run(context.Background())
	require.NoError(t, err)
	return s, result
}

func TestConfigVerify(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "default", modify: func(*Config) {}},
		{name: "no validators", modify: func(c *Config) { c.Validators = 0 }, wantErr: errNoValidators},
		{name: "no epochs", modify: func(c *Config) { c.Epochs = 0 }, wantErr: errNoEpochs},
		{name: "too many subnets", modify: func(c *Config) { c.Subnets = 1<<16 + 1 }, wantErr: errTooManySubnets},
		{name: "zero min stake", modify: func(c *Config) { c.MinStake = 0 }, wantErr: errInvalidStakeRange},
		{name: "inverted stake range", modify: func(c *Config) { c.MinStake = c.MaxStake + 1 }, wantErr: errInvalidStakeRange},
		{name: "withhold over 100", modify: func(c *Config) { c.WithholdPercent = 101 }, wantErr: errPercentTooLarge},
		{name: "too many double signers", modify: func(c *Config) { c.DoubleSigners = c.Validators + 1 }, wantErr: errTooManyByzantine},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := testConfig()
			test.modify(&c)
			require.ErrorIs(t, c.Verify(), test.wantErr)
		})
	}
}

func TestGetConfig(t *testing.T) {
	require := require.New(t)

	c, err := GetConfig([]byte(`{"validators":4,"safety":{"randao":{"min-reveals-for-epoch":3}}}`))
	require.NoError(err)
	require.Equal(4, c.Validators)
	require.Equal(DefaultConfig.Epochs, c.Epochs)
	require.Equal(3, c.Safety.Randao.MinRevealsForEpoch)
	require.Equal(DefaultConfig.Safety.CommitReveal, c.Safety.CommitReveal)

	_, err = GetConfig([]byte(`{"validators":0}`))
	require.ErrorIs(err, errNoValidators)
}

func TestHonestRun(t *testing.T) {
	require := require.New(t)

	c := testConfig()
	s, result := run(t, c)

	require.Len(result.Epochs, c.Epochs)
	mixes := make(map[ids.ID]struct{})
	for i, summary := range result.Epochs {
		require.Equal(uint64(i+1), summary.Epoch)
		require.Equal(c.Validators, summary.Reveals)
		require.Equal(c.Subnets, summary.Finalized)
		require.Zero(summary.Slashes)
		require.Zero(summary.Jailed)
		require.NotEqual(ids.Empty, summary.Mix)
		mixes[summary.Mix] = struct{}{}
	}
	require.Len(mixes, c.Epochs)
	require.True(result.Breakers.Healthy)
	require.Zero(result.Slashing.TotalSlashes)

	require.LessOrEqual(result.Stakes.Min, result.Stakes.Median)
	require.LessOrEqual(result.Stakes.Median, result.Stakes.Max)
	require.GreaterOrEqual(result.Stakes.Mean, float64(c.MinStake))
	require.LessOrEqual(result.Stakes.Mean, float64(c.MaxStake))

	for e := uint64(1); e <= uint64(c.Epochs); e++ {
		finalization, err := s.Store().GetFinalization(0, e)
		require.NoError(err)
		require.Len(finalization.Weights, weightsPerVote)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	require := require.New(t)

	c := testConfig()
	c.WithholdPercent = 30
	c.OfflinePercent = 20
	c.DoubleSigners = 2

	_, a := run(t, c)
	_, b := run(t, c)
	require.Equal(a, b)

	c.Seed++
	_, other := run(t, c)
	require.NotEqual(a.Epochs[0].Mix, other.Epochs[0].Mix)
}

func TestDoubleSignersAreJailed(t *testing.T) {
	require := require.New(t)

	c := testConfig()
	c.DoubleSigners = 2
	_, result := run(t, c)

	require.Equal(2, result.Epochs[0].Slashes)
	require.Equal(2, result.Epochs[0].Jailed)
	require.Equal(uint64(2), result.Slashing.TotalDoubleSign)
	require.Equal(uint64(2), result.Slashing.TotalJailed)

	// Jailed validators sit out the following epochs.
	for _, summary := range result.Epochs[1:] {
		require.Equal(c.Validators-2, summary.Reveals)
		require.Zero(summary.Slashes)
	}
}

func TestOfflineValidatorsAreSlashed(t *testing.T) {
	require := require.New(t)

	c := testConfig()
	c.OfflinePercent = 100
	s, result := run(t, c)

	for _, summary := range result.Epochs {
		require.Equal(c.Validators, summary.Slashes)
		require.Zero(summary.Jailed)
	}

	count, err := s.Store().SlashCount()
	require.NoError(err)
	require.Equal(result.Slashing.TotalSlashes, count)
	require.Equal(uint64(c.Validators*c.Epochs), count)
}

func TestWithholdingStallsFinalization(t *testing.T) {
	require := require.New(t)

	c := testConfig()
	c.WithholdPercent = 100
	_, result := run(t, c)

	for _, summary := range result.Epochs {
		require.Zero(summary.Reveals)
		require.Zero(summary.Finalized)
		require.Equal(ids.Empty, summary.Mix)
		require.Zero(summary.Selected)
	}
	require.True(result.Breakers.Healthy)
}
