// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package randao

import (
	"errors"
	"fmt"
)

var (
	ErrZeroCommitment      = errors.New("commitment must not be zero")
	ErrAlreadyCommitted    = errors.New("validator already committed this epoch")
	ErrDuplicateCommitment = errors.New("commitment already submitted by another validator")
	ErrNoCommitment        = errors.New("validator has no commitment this epoch")
	ErrCommitmentMismatch  = errors.New("reveal does not match commitment")
	ErrAlreadyRevealed     = errors.New("validator already revealed this epoch")
	ErrTooManyReveals      = errors.New("reveal limit reached for epoch")
	ErrTooManyCommitments  = errors.New("commitment limit reached for epoch")
	ErrInsufficientReveals = errors.New("insufficient reveals")
)

// InsufficientRevealsError is returned by FinalizeEpoch. It matches
// ErrInsufficientReveals.
type InsufficientRevealsError struct {
	Have int
	Need int
}

func (e *InsufficientRevealsError) Error() string {
	return fmt.Sprintf("%s: have %d, need %d", ErrInsufficientReveals, e.Have, e.Need)
}

func (*InsufficientRevealsError) Is(target error) bool {
	return target == ErrInsufficientReveals
}
