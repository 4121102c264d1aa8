// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/safety/consensus/circuitbreaker"
	"github.com/luxfi/safety/consensus/commitreveal"
)

func TestGetConfigDefaults(t *testing.T) {
	require := require.New(t)

	c, err := GetConfig(nil)
	require.NoError(err)
	require.Equal(Default(), *c)

	c, err = GetConfig([]byte(`{}`))
	require.NoError(err)
	require.Equal(Default(), *c)
}

func TestGetConfigOverrides(t *testing.T) {
	require := require.New(t)

	b := []byte(`{
		"commit-reveal": {"commit-window": 360, "slash-percent": 3},
		"randao": {"min-reveals-for-epoch": 4},
		"circuit-breakers": {"emission": {"failure-threshold": 9, "open-duration": 1000000000}},
		"slashing": {"jail-duration": 42}
	}`)
	c, err := GetConfig(b)
	require.NoError(err)

	require.Equal(uint64(360), c.CommitReveal.CommitWindow)
	require.Equal(commitreveal.DefaultConfig.RevealWindow, c.CommitReveal.RevealWindow)
	require.Equal(uint64(3), c.CommitReveal.SlashPercent)
	require.Equal(4, c.Randao.MinRevealsForEpoch)
	require.Equal(uint32(9), c.CircuitBreakers.Emission.FailureThreshold)
	require.Equal(time.Second, c.CircuitBreakers.Emission.OpenDuration)
	require.Equal(circuitbreaker.EmissionName, c.CircuitBreakers.Emission.Name)
	require.Equal(uint64(42), c.Slashing.JailDuration)
	require.Equal(Default().Epoch, c.Epoch)
}

func TestGetConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{name: "malformed", json: `{`},
		{name: "zero commit window", json: `{"commit-reveal": {"commit-window": 0}}`},
		{name: "min above max reveals", json: `{"randao": {"min-reveals-for-epoch": 20000}}`},
		{name: "zero failure threshold", json: `{"circuit-breakers": {"commit-reveal": {"failure-threshold": 0}}}`},
		{name: "zero jail duration", json: `{"slashing": {"jail-duration": 0}}`},
		{name: "zero evidence age", json: `{"epoch": {"evidence-max-age": 0}}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := GetConfig([]byte(test.json))
			require.Error(t, err)
		})
	}
}

func TestConfigRoundTripsThroughJSON(t *testing.T) {
	require := require.New(t)

	want := Default()
	want.Slashing.MinSlashAmount = 77
	b, err := json.Marshal(want)
	require.NoError(err)

	got, err := GetConfig(b)
	require.NoError(err)
	require.Equal(want, *got)
}
