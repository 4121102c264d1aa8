// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

/*
Package consensus groups the safety components that sit next to block
consensus and protect it from misbehaving validators and failing AI
subsystems.

# Components

circuitbreaker: Closed/Open/HalfOpen breakers around the AI-layer call sites
(weight consensus, commit-reveal, emission). A failing subsystem is cut off
instead of stalling block production.

commitreveal: Per-subnet commit-reveal rounds for validator weights.
Validators that commit and never reveal are reported for slashing.

randao: Commit-reveal randomness beacon. Accepted reveals are folded into a
rolling keccak256 mix that seeds validator selection.

slashing: Offline and double-sign detection, stake slashing and jailing.

epoch: Runs the boundary steps of an epoch in a fixed order, each AI-layer
step behind its breaker.

# Determinism

Every component is driven by block height and by inputs applied in block
order. Wall-clock time is only read by the circuit breakers, which gate
local work and never change replicated state.
*/
package consensus
