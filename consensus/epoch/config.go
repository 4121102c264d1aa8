// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

import "errors"

var errZeroEvidenceMaxAge = errors.New("evidence max age must be positive")

var DefaultConfig = Config{
	EvidenceMaxAge: 10_000,
}

type Config struct {
	// EvidenceMaxAge is the number of blocks slashing evidence is kept for.
	EvidenceMaxAge uint64 `json:"evidence-max-age"`
}

func (c Config) Verify() error {
	if c.EvidenceMaxAge == 0 {
		return errZeroEvidenceMaxAge
	}
	return nil
}
