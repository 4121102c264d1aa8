// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package commitreveal

import (
	"crypto/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

func testConfig() Config {
	return Config{
		CommitWindow: 10,
		RevealWindow: 10,
		MinCommits:   1,
		SlashPercent: 5,
		BurnPercent:  50,
		HistorySize:  8,
	}
}

func newTestManager(t *testing.T, config Config) *Manager {
	t.Helper()

	metrics, err := NewMetrics("test", prometheus.NewRegistry())
	require.NoError(t, err)
	m, err := NewManager(config, log.NewNoOpLogger(), metrics)
	require.NoError(t, err)
	return m
}

func fixedSalt(b byte) [SaltLength]byte {
	var salt [SaltLength]byte
	for i := range salt {
		salt[i] = b
	}
	return salt
}

func TestComputeCommitHash(t *testing.T) {
	require := require.New(t)

	weights := []Weight{{UID: 0, Value: 500}, {UID: 1, Value: 500}}
	var salt [SaltLength]byte
	_, err := rand.Read(salt[:])
	require.NoError(err)

	hash := ComputeCommitHash(weights, salt)
	require.NotEqual(ids.Empty, hash)
	require.Equal(hash, ComputeCommitHash(weights, salt))

	var salt2 [SaltLength]byte
	_, err = rand.Read(salt2[:])
	require.NoError(err)
	require.NotEqual(hash, ComputeCommitHash(weights, salt2))

	reordered := []Weight{{UID: 1, Value: 500}, {UID: 0, Value: 500}}
	require.NotEqual(hash, ComputeCommitHash(reordered, salt))

	require.True(VerifyCommitHash(hash, weights, salt))
	require.False(VerifyCommitHash(hash, weights[:1], salt))
}

func TestConfigVerify(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "default", modify: func(c *Config) { *c = DefaultConfig }},
		{name: "zero commit window", modify: func(c *Config) { c.CommitWindow = 0 }, wantErr: errZeroWindow},
		{name: "zero reveal window", modify: func(c *Config) { c.RevealWindow = 0 }, wantErr: errZeroWindow},
		{name: "negative min commits", modify: func(c *Config) { c.MinCommits = -1 }, wantErr: errNegativeMinCommits},
		{name: "slash over 100", modify: func(c *Config) { c.SlashPercent = 101 }, wantErr: errPercentTooLarge},
		{name: "burn over 100", modify: func(c *Config) { c.BurnPercent = 101 }, wantErr: errPercentTooLarge},
		{name: "no history", modify: func(c *Config) { c.HistorySize = 0 }, wantErr: errZeroHistorySize},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := testConfig()
			test.modify(&config)
			require.ErrorIs(t, config.Verify(), test.wantErr)
		})
	}
}

func TestCommitRevealEndToEnd(t *testing.T) {
	require := require.New(t)

	m := newTestManager(t, testConfig())
	const subnetID SubnetID = 1
	validator := ids.GenerateTestNodeID()
	weights := []Weight{{UID: 0, Value: 500}, {UID: 1, Value: 500}}
	salt := fixedSalt(99)
	hash := ComputeCommitHash(weights, salt)

	require.NoError(m.StartEpoch(subnetID, 1, 0))

	require.NoError(m.CommitWeights(subnetID, validator, hash, 5))
	require.ErrorIs(m.CommitWeights(subnetID, validator, hash, 6), ErrAlreadyCommitted)

	require.ErrorIs(m.RevealWeights(subnetID, validator, weights, salt, 5), ErrNotInRevealPhase)

	require.NoError(m.RevealWeights(subnetID, validator, weights, salt, 15))
	require.ErrorIs(m.RevealWeights(subnetID, validator, weights, salt, 16), ErrAlreadyRevealed)

	result, err := m.FinalizeEpochWithSlashing(subnetID, 25)
	require.NoError(err)
	require.Equal([]Weight{{UID: 0, Value: 500}, {UID: 1, Value: 500}}, result.Weights)
	require.Empty(result.Slashes)
	require.Equal(uint64(1), result.Epoch)

	phase, ok := m.Phase(subnetID)
	require.True(ok)
	require.Equal(Finalized, phase)

	_, err = m.FinalizeEpochWithSlashing(subnetID, 26)
	require.ErrorIs(err, ErrNotInFinalizePhase)

	stored, ok := m.History(subnetID, 1)
	require.True(ok)
	require.Equal(result, stored)
}

func TestPhaseWindows(t *testing.T) {
	require := require.New(t)

	m := newTestManager(t, testConfig())
	const subnetID SubnetID = 3
	validator := ids.GenerateTestNodeID()

	require.ErrorIs(m.CommitWeights(subnetID, validator, ids.GenerateTestID(), 0), ErrNoActiveEpoch)

	require.NoError(m.StartEpoch(subnetID, 1, 100))
	info, ok := m.Epoch(subnetID)
	require.True(ok)
	require.Equal(uint64(100), info.CommitStart)
	require.Equal(uint64(110), info.RevealStart)
	require.Equal(uint64(120), info.FinalizeAt)

	_, err := m.FinalizeEpochWithSlashing(subnetID, 105)
	require.ErrorIs(err, ErrNotInFinalizePhase)

	phase, err := m.UpdatePhase(subnetID, 110)
	require.NoError(err)
	require.Equal(Revealing, phase)

	// A stale height never moves the phase backwards.
	phase, err = m.UpdatePhase(subnetID, 101)
	require.NoError(err)
	require.Equal(Revealing, phase)
	require.ErrorIs(m.CommitWeights(subnetID, validator, ids.GenerateTestID(), 101), ErrNotInCommitPhase)

	phase, err = m.UpdatePhase(subnetID, 120)
	require.NoError(err)
	require.Equal(Finalizing, phase)
}

func TestRevealRejections(t *testing.T) {
	require := require.New(t)

	m := newTestManager(t, testConfig())
	const subnetID SubnetID = 2
	validator := ids.GenerateTestNodeID()
	weights := []Weight{{UID: 4, Value: 100}}
	salt := fixedSalt(1)

	require.NoError(m.StartEpoch(subnetID, 7, 0))
	require.NoError(m.CommitWeights(subnetID, validator, ComputeCommitHash(weights, salt), 1))

	require.ErrorIs(m.RevealWeights(subnetID, ids.GenerateTestNodeID(), weights, salt, 12), ErrNoCommitFound)
	require.ErrorIs(m.RevealWeights(subnetID, validator, weights, fixedSalt(2), 12), ErrHashMismatch)
	require.ErrorIs(m.RevealWeights(subnetID, validator, []Weight{{UID: 4, Value: 101}}, salt, 12), ErrHashMismatch)

	commit, ok := m.Commit(subnetID, validator)
	require.True(ok)
	require.False(commit.Revealed)

	require.NoError(m.RevealWeights(subnetID, validator, weights, salt, 12))
	require.Equal(uint64(2), m.Stats().TotalHashMismatches)
}

func TestFinalizeAveragesAndSlashes(t *testing.T) {
	require := require.New(t)

	config := testConfig()
	config.MinCommits = 2
	const subnetID SubnetID = 5
	var (
		v1 = ids.GenerateTestNodeID()
		v2 = ids.GenerateTestNodeID()
		v3 = ids.GenerateTestNodeID()
		w1 = []Weight{{UID: 0, Value: 100}, {UID: 2, Value: 65535}}
		w2 = []Weight{{UID: 0, Value: 301}, {UID: 1, Value: 10}, {UID: 2, Value: 65535}}
	)

	m := newTestManager(t, config)
	require.NoError(m.StartEpoch(subnetID, 1, 0))
	require.NoError(m.CommitWeights(subnetID, v1, ComputeCommitHash(w1, fixedSalt(1)), 1))
	require.NoError(m.CommitWeights(subnetID, v2, ComputeCommitHash(w2, fixedSalt(2)), 2))
	require.NoError(m.CommitWeights(subnetID, v3, ids.GenerateTestID(), 3))
	require.NoError(m.RevealWeights(subnetID, v1, w1, fixedSalt(1), 10))
	require.NoError(m.RevealWeights(subnetID, v2, w2, fixedSalt(2), 11))

	result, err := m.FinalizeEpochWithSlashing(subnetID, 20)
	require.NoError(err)
	require.Equal([]Weight{
		{UID: 0, Value: 200},
		{UID: 1, Value: 10},
		{UID: 2, Value: 65535},
	}, result.Weights)
	require.Equal(3, result.CommitCount)
	require.Equal(2, result.RevealCount)
	require.Equal([]SlashingResult{{Validator: v3, SlashPercent: 5, BurnPercent: 50}}, result.Slashes)

	burn, treasury := result.Slashes[0].Split(1_001)
	require.Equal(uint64(500), burn)
	require.Equal(uint64(501), treasury)
}

func TestFinalizeInsufficientReveals(t *testing.T) {
	require := require.New(t)

	config := testConfig()
	config.MinCommits = 2
	m := newTestManager(t, config)
	const subnetID SubnetID = 9
	validator := ids.GenerateTestNodeID()
	weights := []Weight{{UID: 0, Value: 1}}

	require.NoError(m.StartEpoch(subnetID, 1, 0))
	require.NoError(m.CommitWeights(subnetID, validator, ComputeCommitHash(weights, fixedSalt(3)), 1))
	require.NoError(m.RevealWeights(subnetID, validator, weights, fixedSalt(3), 10))

	_, err := m.FinalizeEpochWithSlashing(subnetID, 20)
	require.ErrorIs(err, ErrInsufficientReveals)
	require.False(IsExpected(err))

	phase, ok := m.Phase(subnetID)
	require.True(ok)
	require.Equal(Finalizing, phase)
}

func TestStartEpochMustAdvance(t *testing.T) {
	require := require.New(t)

	m := newTestManager(t, testConfig())
	require.NoError(m.StartEpoch(1, 5, 0))
	require.ErrorIs(m.StartEpoch(1, 5, 20), ErrEpochNotAdvanced)
	require.ErrorIs(m.StartEpoch(1, 4, 20), ErrEpochNotAdvanced)
	require.NoError(m.StartEpoch(1, 6, 20))
	require.NoError(m.StartEpoch(0, 1, 20))

	require.Equal([]SubnetID{0, 1}, m.Subnets())
	require.Equal(2, m.Stats().ActiveEpochs)
}

func TestHistoryEvictsOldest(t *testing.T) {
	require := require.New(t)

	config := testConfig()
	config.HistorySize = 2
	config.MinCommits = 0
	m := newTestManager(t, config)

	const subnetID SubnetID = 1
	for epoch := uint64(1); epoch <= 3; epoch++ {
		start := (epoch - 1) * config.EpochLength()
		require.NoError(m.StartEpoch(subnetID, epoch, start))
		_, err := m.FinalizeEpochWithSlashing(subnetID, start+config.EpochLength())
		require.NoError(err)

		// Reads must not change the eviction order.
		_, ok := m.History(subnetID, 1)
		require.Equal(epoch < 3, ok)
	}

	_, ok := m.History(subnetID, 1)
	require.False(ok)
	_, ok = m.History(subnetID, 2)
	require.True(ok)
	_, ok = m.History(subnetID, 3)
	require.True(ok)
	require.Equal(2, m.Stats().HistoryLen)
}

func TestIsExpected(t *testing.T) {
	require := require.New(t)

	require.True(IsExpected(ErrNoActiveEpoch))
	require.True(IsExpected(ErrNotInCommitPhase))
	require.True(IsExpected(ErrNotInRevealPhase))
	require.True(IsExpected(ErrNotInFinalizePhase))
	require.False(IsExpected(ErrHashMismatch))
	require.False(IsExpected(ErrAlreadyCommitted))
}
