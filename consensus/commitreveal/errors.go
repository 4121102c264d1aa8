// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package commitreveal

import "errors"

var (
	ErrNoActiveEpoch       = errors.New("no active epoch")
	ErrNotInCommitPhase    = errors.New("not in commit phase")
	ErrNotInRevealPhase    = errors.New("not in reveal phase")
	ErrNotInFinalizePhase  = errors.New("not in finalize phase")
	ErrAlreadyCommitted    = errors.New("validator already committed")
	ErrAlreadyRevealed     = errors.New("validator already revealed")
	ErrNoCommitFound       = errors.New("no commit found")
	ErrHashMismatch        = errors.New("revealed weights do not match commit hash")
	ErrInsufficientReveals = errors.New("insufficient reveals")
	ErrEpochNotAdvanced    = errors.New("epoch must advance")
)

// IsExpected reports whether err is a steady-state outcome of driving an
// epoch (no epoch running yet, or the epoch is in another phase) rather than
// a sign of misbehavior.
func IsExpected(err error) bool {
	return errors.Is(err, ErrNoActiveEpoch) ||
		errors.Is(err, ErrNotInCommitPhase) ||
		errors.Is(err, ErrNotInRevealPhase) ||
		errors.Is(err, ErrNotInFinalizePhase)
}
