// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package slashing

import "errors"

var (
	ErrValidatorNotFound = errors.New("validator not found")
	ErrNoStake           = errors.New("validator has no stake")
	ErrInvalidPercent    = errors.New("slash percent exceeds 100")
	ErrSlashStake        = errors.New("failed to slash stake")
	ErrJail              = errors.New("failed to jail validator")
	ErrHeightNotTracked  = errors.New("height is below every tracked height")
	ErrTooManySignatures = errors.New("signature limit reached for height")
)
