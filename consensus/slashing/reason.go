// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package slashing

import "fmt"

// Kind enumerates the slashable offences.
type Kind uint8

const (
	KindOffline Kind = iota
	KindDoubleSigning
	KindInvalidBlock
	KindInvalidWeights
	KindFraudulentAI
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindOffline:
		return "offline"
	case KindDoubleSigning:
		return "double_signing"
	case KindInvalidBlock:
		return "invalid_block"
	case KindInvalidWeights:
		return "invalid_weights"
	case KindFraudulentAI:
		return "fraudulent_ai"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Reason is the offence a slash is applied for. The set of reasons is closed
// except for Custom, which carries its own percentage.
type Reason struct {
	kind    Kind
	percent uint64
}

var (
	Offline        = Reason{kind: KindOffline}
	DoubleSigning  = Reason{kind: KindDoubleSigning}
	InvalidBlock   = Reason{kind: KindInvalidBlock}
	InvalidWeights = Reason{kind: KindInvalidWeights}
	FraudulentAI   = Reason{kind: KindFraudulentAI}
)

// Custom returns a reason that slashes percent of the stake and never jails.
func Custom(percent uint64) Reason {
	return Reason{
		kind:    KindCustom,
		percent: percent,
	}
}

func (r Reason) Kind() Kind {
	return r.kind
}

// SlashPercent is the share of stake, in percent, forfeited for r.
func (r Reason) SlashPercent() uint64 {
	switch r.kind {
	case KindOffline:
		return 1
	case KindDoubleSigning:
		return 5
	case KindInvalidBlock:
		return 10
	case KindInvalidWeights:
		return 2
	case KindFraudulentAI:
		return 20
	default:
		return r.percent
	}
}

// Jails reports whether the slashing engine jails for r on its own.
// FraudulentAI is jailed by the epoch layer through SlashAndJail.
func (r Reason) Jails() bool {
	return r.kind == KindDoubleSigning || r.kind == KindInvalidBlock
}

func (r Reason) String() string {
	if r.kind == KindCustom {
		return fmt.Sprintf("custom(%d%%)", r.percent)
	}
	return r.kind.String()
}
