// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"errors"
	"math/bits"
)

// Unsigned is a constraint that permits any unsigned integer type.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

var (
	ErrOverflow     = errors.New("overflow")
	ErrUnderflow    = errors.New("underflow")
	ErrDivideByZero = errors.New("divide by zero")
)

// MaxUint returns the maximum value of an unsigned integer of type T.
func MaxUint[T Unsigned]() T {
	return ^T(0)
}

// Add returns a + b, or ErrOverflow.
func Add[T Unsigned](a, b T) (T, error) {
	if a > MaxUint[T]()-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns a - b, or ErrUnderflow.
func Sub[T Unsigned](a, b T) (T, error) {
	if a < b {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Mul returns a * b, or ErrOverflow.
func Mul[T Unsigned](a, b T) (T, error) {
	if b != 0 && a > MaxUint[T]()/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}

// MulDiv returns floor(a*b/c) computed with a 128-bit intermediate product.
// It fails only when c is zero or the quotient does not fit in 64 bits.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivideByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, c)
	return quo, nil
}

// Percent returns floor(amount*percent/100). percent may exceed 100.
func Percent(amount, percent uint64) (uint64, error) {
	return MulDiv(amount, percent, 100)
}

// SaturatingAdd returns a + b clamped to the maximum value of T.
func SaturatingAdd[T Unsigned](a, b T) T {
	sum, err := Add(a, b)
	if err != nil {
		return MaxUint[T]()
	}
	return sum
}
