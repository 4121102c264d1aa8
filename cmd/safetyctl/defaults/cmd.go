// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package defaults

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/luxfi/safety/config"
	"github.com/luxfi/safety/simulator"
)

const SimulatorKey = "simulator"

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "default-config",
		Short: "Prints the default configuration as JSON",
		RunE:  defaultsFunc,
	}
	c.Flags().Bool(SimulatorKey, false, "Print the simulator configuration instead of the safety configuration")
	return c
}

func defaultsFunc(c *cobra.Command, _ []string) error {
	sim, err := c.Flags().GetBool(SimulatorKey)
	if err != nil {
		return err
	}

	var v any = config.Default()
	if sim {
		v = simulator.DefaultConfig
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = c.OutOrStdout().Write(append(b, '\n'))
	return err
}
