// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulate

import (
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/luxfi/log"

	"github.com/luxfi/safety/simulator"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "simulate",
		Short: "Runs a deterministic multi-epoch simulation and prints the result as JSON",
		RunE:  simulateFunc,
	}
	AddFlags(c.Flags())
	return c
}

func simulateFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	logger := log.NewNoOpLogger()
	if config.Verbose {
		logger = log.NewLogger("safetyctl")
	}

	sim, err := simulator.New(config.Simulator, prometheus.NewRegistry(), logger)
	if err != nil {
		return err
	}
	result, err := sim.Run(c.Context())
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	_, err = c.OutOrStdout().Write(append(b, '\n'))
	return err
}
