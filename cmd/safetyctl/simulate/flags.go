// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulate

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/luxfi/safety/config"
	"github.com/luxfi/safety/simulator"
)

const (
	ConfigFileKey      = "config-file"
	SafetyConfigKey    = "safety-config-file"
	ValidatorsKey      = "validators"
	SubnetsKey         = "subnets"
	EpochsKey          = "epochs"
	SeedKey            = "seed"
	WithholdPercentKey = "withhold-percent"
	OfflinePercentKey  = "offline-percent"
	DoubleSignersKey   = "double-signers"
	VerboseKey         = "verbose"
)

func AddFlags(flags *pflag.FlagSet) {
	d := simulator.DefaultConfig
	flags.String(ConfigFileKey, "", "JSON simulator config; flags override its values")
	flags.String(SafetyConfigKey, "", "JSON safety config; replaces the simulator config's safety section")
	flags.Int(ValidatorsKey, d.Validators, "Number of validators")
	flags.Int(SubnetsKey, d.Subnets, "Number of subnets running commit-reveal")
	flags.Int(EpochsKey, d.Epochs, "Number of epochs to simulate")
	flags.Uint64(SeedKey, d.Seed, "Seed of the run")
	flags.Uint64(WithholdPercentKey, d.WithholdPercent, "Percent of validators withholding reveals each epoch")
	flags.Uint64(OfflinePercentKey, d.OfflinePercent, "Percent of validators offline each epoch")
	flags.Int(DoubleSignersKey, d.DoubleSigners, "Number of double-signing validators")
	flags.Bool(VerboseKey, false, "Log component activity")
}

type Config struct {
	Simulator simulator.Config
	Verbose   bool
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	c := &Config{Simulator: simulator.DefaultConfig}
	path, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		sim, err := simulator.GetConfig(b)
		if err != nil {
			return nil, err
		}
		c.Simulator = *sim
	}

	safetyPath, err := flags.GetString(SafetyConfigKey)
	if err != nil {
		return nil, err
	}
	if safetyPath != "" {
		b, err := os.ReadFile(safetyPath)
		if err != nil {
			return nil, err
		}
		safety, err := config.GetConfig(b)
		if err != nil {
			return nil, err
		}
		c.Simulator.Safety = *safety
	}

	s := &c.Simulator
	overrides := []struct {
		key   string
		apply func() error
	}{
		{ValidatorsKey, func() (err error) { s.Validators, err = flags.GetInt(ValidatorsKey); return }},
		{SubnetsKey, func() (err error) { s.Subnets, err = flags.GetInt(SubnetsKey); return }},
		{EpochsKey, func() (err error) { s.Epochs, err = flags.GetInt(EpochsKey); return }},
		{SeedKey, func() (err error) { s.Seed, err = flags.GetUint64(SeedKey); return }},
		{WithholdPercentKey, func() (err error) { s.WithholdPercent, err = flags.GetUint64(WithholdPercentKey); return }},
		{OfflinePercentKey, func() (err error) { s.OfflinePercent, err = flags.GetUint64(OfflinePercentKey); return }},
		{DoubleSignersKey, func() (err error) { s.DoubleSigners, err = flags.GetInt(DoubleSignersKey); return }},
	}
	for _, o := range overrides {
		if path != "" && !flags.Changed(o.key) {
			continue
		}
		if err := o.apply(); err != nil {
			return nil, err
		}
	}

	c.Verbose, err = flags.GetBool(VerboseKey)
	if err != nil {
		return nil, err
	}
	return c, c.Simulator.Verify()
}
