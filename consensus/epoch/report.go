// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/safety/consensus/commitreveal"
	"github.com/luxfi/safety/consensus/slashing"
)

// Step of the boundary sequence, in execution order.
type Step uint8

const (
	StepScores Step = iota
	StepRewards
	StepRandao
	StepGovernance
	StepRotation
	StepCommitReveal
	StepScoring
)

func (s Step) String() string {
	switch s {
	case StepScores:
		return "scores"
	case StepRewards:
		return "rewards"
	case StepRandao:
		return "randao"
	case StepGovernance:
		return "governance"
	case StepRotation:
		return "rotation"
	case StepCommitReveal:
		return "commit_reveal"
	case StepScoring:
		return "scoring"
	default:
		return "unknown"
	}
}

type Status uint8

const (
	Done Status = iota
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Done:
		return "done"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type StepResult struct {
	Step   Step
	Status Status
	Err    error
}

// Boundary is the block at which Epoch ends.
type Boundary struct {
	Epoch  uint64
	Height uint64
}

// Report describes what a boundary did.
type Report struct {
	Boundary      Boundary
	Steps         []StepResult
	Mix           ids.ID
	Finalizations []*commitreveal.FinalizationResult
	Slashes       []*slashing.SlashEvent
}

// Order returns the steps in the order they ran.
func (r *Report) Order() []Step {
	order := make([]Step, len(r.Steps))
	for i, s := range r.Steps {
		order[i] = s.Step
	}
	return order
}

// Result returns the outcome of step.
func (r *Report) Result(step Step) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == step {
			return s, true
		}
	}
	return StepResult{}, false
}

func (r *Report) add(step Step, status Status, err error) {
	r.Steps = append(r.Steps, StepResult{
		Step:   step,
		Status: status,
		Err:    err,
	})
}
