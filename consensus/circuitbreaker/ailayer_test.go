// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/log"

	"github.com/luxfi/safety/utils/timer/mockable"
)

func TestAILayer(t *testing.T) {
	require := require.New(t)

	config := DefaultAILayerConfig()
	config.CommitReveal.Name = "ignored"
	config.CommitReveal.FailureThreshold = 1

	clock := &mockable.Clock{}
	clock.Set(time.Unix(0, 0))
	layer, err := NewAILayer(config, clock, log.NewNoOpLogger(), nil)
	require.NoError(err)

	require.Equal(WeightConsensusName, layer.WeightConsensus().Name())
	require.Equal(CommitRevealName, layer.CommitReveal().Name())
	require.Equal(EmissionName, layer.Emission().Name())
	require.True(layer.IsHealthy())

	layer.CommitReveal().RecordFailure()
	require.False(layer.IsHealthy())

	summary := layer.Summary()
	require.False(summary.Healthy)
	require.Len(summary.Breakers, 3)
	require.Equal(Open.String(), summary.Breakers[1].State)
	require.Equal(Closed.String(), summary.Breakers[0].State)

	layer.Reset()
	require.True(layer.IsHealthy())
	require.True(layer.Summary().Healthy)
}

func TestAILayerConfigVerify(t *testing.T) {
	config := DefaultAILayerConfig()
	require.NoError(t, config.Verify())

	config.Emission.SuccessThreshold = 0
	require.ErrorIs(t, config.Verify(), ErrInvalidSuccessThreshold)
}
