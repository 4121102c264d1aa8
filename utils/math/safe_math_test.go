// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddSubMul(t *testing.T) {
	require := require.New(t)

	sum, err := Add[uint64](1, 2)
	require.NoError(err)
	require.Equal(uint64(3), sum)

	_, err = Add[uint64](math.MaxUint64, 1)
	require.ErrorIs(err, ErrOverflow)

	_, err = Sub[uint64](1, 2)
	require.ErrorIs(err, ErrUnderflow)

	_, err = Mul[uint16](math.MaxUint16, 2)
	require.ErrorIs(err, ErrOverflow)

	require.Equal(uint16(math.MaxUint16), SaturatingAdd[uint16](math.MaxUint16-1, 5))
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c uint64
		want    uint64
		wantErr error
	}{
		{name: "small", a: 10, b: 5, c: 100, want: 0},
		{name: "exact", a: 1_000, b: 5, c: 100, want: 50},
		{name: "wide intermediate", a: math.MaxUint64, b: 50, c: 100, want: math.MaxUint64 / 2},
		{name: "max identity", a: math.MaxUint64, b: math.MaxUint64, c: math.MaxUint64, want: math.MaxUint64},
		{name: "zero divisor", a: 1, b: 1, c: 0, wantErr: ErrDivideByZero},
		{name: "quotient overflow", a: math.MaxUint64, b: 2, c: 1, wantErr: ErrOverflow},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			got, err := MulDiv(test.a, test.b, test.c)
			require.ErrorIs(err, test.wantErr)
			require.Equal(test.want, got)
		})
	}
}
