package math

import (
	"errors"
	"math/big"
	"sync"
)

var (
	ErrZeroAmount       = errors.New("amount must be positive")
	ErrInvalidAmount    = errors.New("amount outside representable range")
	ErrRatioUnavailable = errors.New("pool ratio unavailable")
)

// RatioScale is the fixed-point scale for pool ratios. A ratio of 1.0
// is stored as 10^18, matching the on-chain reserve encoding.
var RatioScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

type RoundingMode int

const (
	RoundDown RoundingMode = iota // Truncate toward zero (default for payouts)
	RoundHalfEven                 // Banker's rounding
	RoundUp
)

// DivideInt128 performs numerator / denominator with rounding
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()

	quotient.QuoRem(numerator, denom, remainder)

	result := quotient.Int64()

	switch roundingMode {
	case RoundHalfEven:
		// Banker's rounding: if remainder == denominator/2, round to even
		half := big.NewInt(denominator / 2)
		cmp := remainder.CmpAbs(half)

		if cmp > 0 {
			result++
		} else if cmp == 0 && denominator%2 == 0 {
			if result%2 != 0 {
				result++
			}
		}
	case RoundUp:
		if remainder.Sign() != 0 {
			result++
		}
	}

	putInt128(quotient)
	putInt128(remainder)

	return result
}

// ToInt64 narrows a big.Int intermediate back to an int64 amount.
// Settlement amounts must fit the ledger's int64 base units; anything
// wider is a corrupt input, not a value to saturate.
func ToInt64(v *big.Int) (int64, error) {
	if !v.IsInt64() {
		return 0, ErrInvalidAmount
	}
	return v.Int64(), nil
}

// MulDivRatio computes amount * numerator / denominator entirely in
// big.Int, truncating toward zero, and narrows the result to int64.
// Used for ratio-scaled conversions where numerator or denominator is
// a RatioScale-sized value.
func MulDivRatio(amount int64, numerator, denominator *big.Int) (int64, error) {
	if denominator.Sign() == 0 {
		return 0, ErrRatioUnavailable
	}

	product := getInt128()
	product.Mul(big.NewInt(amount), numerator)
	product.Quo(product, denominator)

	result, err := ToInt64(product)
	putInt128(product)
	if err != nil {
		return 0, err
	}
	if result < 0 {
		return 0, ErrInvalidAmount
	}
	return result, nil
}
