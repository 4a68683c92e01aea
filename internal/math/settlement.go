package math

import "math/big"

// Settlement constants. Amounts are integer base units of the
// respective asset; basis-point fractions always truncate toward zero.
const (
	// AirdropPerUnit is the token grant backing one entitlement unit.
	AirdropPerUnit = 10_000

	// BurnBps is the share of the granted tokens consumed by a normal
	// claim, in basis points (30%).
	BurnBps = 3_000

	// OutputMultiplier doubles the ratio-converted value of a normal burn.
	OutputMultiplier = 2

	// FeeBps is the settlement fee on any state-token output (0.5%).
	FeeBps = 50

	// BpsDenom is the basis-point denominator.
	BpsDenom = 10_000
)

// NormalBurnAmount returns the token amount burned for a normal-mode
// claim of the given entitlement units.
//
//	units * AirdropPerUnit * BurnBps / BpsDenom
func NormalBurnAmount(units int64) (int64, error) {
	if units <= 0 {
		return 0, ErrZeroAmount
	}
	granted := MultiplyInt128(units, AirdropPerUnit)
	granted.Mul(granted, big.NewInt(BurnBps))
	burn := DivideInt128(granted, BpsDenom, RoundDown)
	putInt128(granted)
	if burn <= 0 {
		return 0, ErrZeroAmount
	}
	return burn, nil
}

// NormalStateOutput converts a normal-mode burn into its gross state
// payout, fee, and net payout. ratio is RatioScale-scaled state per token.
//
//	raw = burned * ratio * OutputMultiplier / RatioScale
//	fee = raw * FeeBps / BpsDenom
func NormalStateOutput(burned int64, ratio *big.Int) (raw, fee, net int64, err error) {
	if burned <= 0 {
		return 0, 0, 0, ErrZeroAmount
	}
	if ratio == nil || ratio.Sign() <= 0 {
		return 0, 0, 0, ErrRatioUnavailable
	}

	numerator := getInt128()
	numerator.Mul(ratio, big.NewInt(OutputMultiplier))
	raw, err = MulDivRatio(burned, numerator, RatioScale)
	putInt128(numerator)
	if err != nil {
		return 0, 0, 0, err
	}
	if raw <= 0 {
		return 0, 0, 0, ErrZeroAmount
	}

	fee = applyFee(raw)
	return raw, fee, raw - fee, nil
}

// ReverseStateOutput converts tokens sold into the pool during a
// reverse day to their state-token value at the current ratio.
//
//	out = tokenIn * ratio / RatioScale
func ReverseStateOutput(tokenIn int64, ratio *big.Int) (int64, error) {
	if tokenIn <= 0 {
		return 0, ErrZeroAmount
	}
	if ratio == nil || ratio.Sign() <= 0 {
		return 0, ErrRatioUnavailable
	}
	out, err := MulDivRatio(tokenIn, ratio, RatioScale)
	if err != nil {
		return 0, err
	}
	if out <= 0 {
		return 0, ErrZeroAmount
	}
	return out, nil
}

// ReverseTokenOutput converts state tokens burned on a reverse day
// back into the day's token, at half the ratio-implied rate, then
// deducts the settlement fee.
//
//	raw = stateBurned * RatioScale / (ratio * OutputMultiplier)
func ReverseTokenOutput(stateBurned int64, ratio *big.Int) (raw, fee, net int64, err error) {
	if stateBurned <= 0 {
		return 0, 0, 0, ErrZeroAmount
	}
	if ratio == nil || ratio.Sign() <= 0 {
		return 0, 0, 0, ErrRatioUnavailable
	}

	denominator := getInt128()
	denominator.Mul(ratio, big.NewInt(OutputMultiplier))
	raw, err = MulDivRatio(stateBurned, RatioScale, denominator)
	putInt128(denominator)
	if err != nil {
		return 0, 0, 0, err
	}
	if raw <= 0 {
		return 0, 0, 0, ErrZeroAmount
	}

	fee = applyFee(raw)
	return raw, fee, raw - fee, nil
}

// MinimumReverseBurn is the state amount a reverse burn must consume:
// the full pending balance accrued by the reverse swap. Partial burns
// would strand value in the reverse pending account.
func MinimumReverseBurn(reversePending int64) int64 {
	return reversePending
}

func applyFee(raw int64) int64 {
	product := MultiplyInt128(raw, FeeBps)
	fee := DivideInt128(product, BpsDenom, RoundDown)
	putInt128(product)
	return fee
}
