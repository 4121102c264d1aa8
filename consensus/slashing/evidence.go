// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package slashing

import "github.com/luxfi/ids"

// Evidence of a validator's misbehavior at Height. EvidenceHash is ids.Empty
// when the offence has no supporting artifact.
type Evidence struct {
	Validator    ids.NodeID `json:"validator"`
	Reason       Reason     `json:"-"`
	Height       uint64     `json:"height"`
	EvidenceHash ids.ID     `json:"evidenceHash"`
}

// SlashEvent is the result of applying evidence.
type SlashEvent struct {
	Validator    ids.NodeID `json:"validator"`
	Reason       Reason     `json:"-"`
	Height       uint64     `json:"height"`
	EvidenceHash ids.ID     `json:"evidenceHash"`
	StakeBefore  uint64     `json:"stakeBefore"`
	Amount       uint64     `json:"amount"`
	Jailed       bool       `json:"jailed"`
	ExecutedAt   uint64     `json:"executedAt"`
}

// JailStatus of a jailed validator. It is released once the chain reaches
// ReleaseAt.
type JailStatus struct {
	Validator ids.NodeID `json:"validator"`
	JailedAt  uint64     `json:"jailedAt"`
	ReleaseAt uint64     `json:"releaseAt"`
	Reason    Reason     `json:"-"`
}

// Validator is the slashing engine's view of a staker.
type Validator struct {
	NodeID ids.NodeID
	Stake  uint64
	Active bool
}
