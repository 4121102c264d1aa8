// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/luxfi/safety/cmd/safetyctl/defaults"
	"github.com/luxfi/safety/cmd/safetyctl/simulate"
)

func main() {
	root := &cobra.Command{
		Use:           "safetyctl",
		Short:         "Inspects and exercises the consensus safety components",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		simulate.Command(),
		defaults.Command(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := root.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
