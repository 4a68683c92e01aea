package math

import (
	"errors"
	"math/big"
	"testing"
)

func ratio(f float64) *big.Int {
	r := new(big.Float).Mul(big.NewFloat(f), new(big.Float).SetInt(RatioScale))
	out, _ := r.Int(nil)
	return out
}

// ============================================================================
// Test: Normal mode
// ============================================================================

func TestNormalBurnAmount(t *testing.T) {
	// 5 units grant 50_000 tokens, 30% burned.
	got, err := NormalBurnAmount(5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 15_000 {
		t.Errorf("burn = %d, want 15000", got)
	}
}

func TestNormalBurnAmount_Rejections(t *testing.T) {
	for _, units := range []int64{0, -1} {
		if _, err := NormalBurnAmount(units); !errors.Is(err, ErrZeroAmount) {
			t.Errorf("units=%d: want ErrZeroAmount, got %v", units, err)
		}
	}
}

func TestNormalStateOutput(t *testing.T) {
	// burn 15000 at ratio 2.0: raw = 15000*2*2 = 60000,
	// fee = 60000*50/10000 = 300, net = 59700.
	raw, fee, net, err := NormalStateOutput(15_000, ratio(2.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != 60_000 || fee != 300 || net != 59_700 {
		t.Errorf("got (raw=%d fee=%d net=%d), want (60000, 300, 59700)", raw, fee, net)
	}
}

func TestNormalStateOutput_Truncates(t *testing.T) {
	// ratio 0.333333333333333333: 7 * 0.333... * 2 = 4.666..., truncated to 4.
	r, _ := new(big.Int).SetString("333333333333333333", 10)
	raw, _, _, err := NormalStateOutput(7, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != 4 {
		t.Errorf("raw = %d, want 4 (truncated)", raw)
	}
}

func TestNormalStateOutput_RatioErrors(t *testing.T) {
	if _, _, _, err := NormalStateOutput(100, nil); !errors.Is(err, ErrRatioUnavailable) {
		t.Errorf("nil ratio: want ErrRatioUnavailable, got %v", err)
	}
	if _, _, _, err := NormalStateOutput(100, big.NewInt(0)); !errors.Is(err, ErrRatioUnavailable) {
		t.Errorf("zero ratio: want ErrRatioUnavailable, got %v", err)
	}
}

func TestNormalStateOutput_RoundsToZero(t *testing.T) {
	// Burn so small the truncated output is 0: the whole claim fails
	// rather than pay nothing.
	r, _ := new(big.Int).SetString("1000000000000", 10) // 1e-6
	if _, _, _, err := NormalStateOutput(1, r); !errors.Is(err, ErrZeroAmount) {
		t.Errorf("want ErrZeroAmount, got %v", err)
	}
}

// ============================================================================
// Test: Reverse mode
// ============================================================================

func TestReverseStateOutput(t *testing.T) {
	// 10000 tokens in at ratio 1.5 credit 15000 state.
	got, err := ReverseStateOutput(10_000, ratio(1.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 15_000 {
		t.Errorf("state = %d, want 15000", got)
	}
}

func TestReverseTokenOutput(t *testing.T) {
	// 15000 state burned at ratio 1.5: raw = 15000/(1.5*2) = 5000,
	// fee = 5000*50/10000 = 25, net = 4975.
	raw, fee, net, err := ReverseTokenOutput(15_000, ratio(1.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != 5_000 || fee != 25 || net != 4_975 {
		t.Errorf("got (raw=%d fee=%d net=%d), want (5000, 25, 4975)", raw, fee, net)
	}
}

func TestReverseRoundTrip_NeverProfits(t *testing.T) {
	// Selling tokens in and burning the whole credit back out must not
	// return more tokens than went in.
	ratios := []*big.Int{ratio(0.25), ratio(1.0), ratio(3.7), ratio(1234.5)}
	for _, r := range ratios {
		in := int64(1_000_000)
		state, err := ReverseStateOutput(in, r)
		if err != nil {
			t.Fatalf("ratio %s: %v", r, err)
		}
		_, _, net, err := ReverseTokenOutput(state, r)
		if err != nil {
			t.Fatalf("ratio %s: %v", r, err)
		}
		if net > in {
			t.Errorf("ratio %s: round trip returned %d for %d in", r, net, in)
		}
	}
}

func TestMinimumReverseBurn(t *testing.T) {
	if got := MinimumReverseBurn(12_345); got != 12_345 {
		t.Errorf("minimum burn = %d, want full pending 12345", got)
	}
}

// ============================================================================
// Test: Narrowing and overflow
// ============================================================================

func TestMulDivRatio_Overflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 100)
	if _, err := MulDivRatio(1<<62, huge, big.NewInt(1)); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("want ErrInvalidAmount, got %v", err)
	}
}

func TestToInt64(t *testing.T) {
	if v, err := ToInt64(big.NewInt(42)); err != nil || v != 42 {
		t.Errorf("got (%d, %v), want (42, nil)", v, err)
	}
	wide := new(big.Int).Lsh(big.NewInt(1), 64)
	if _, err := ToInt64(wide); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("want ErrInvalidAmount, got %v", err)
	}
}

func TestDivideInt128_Truncation(t *testing.T) {
	n := MultiplyInt128(7, 3) // 21
	if got := DivideInt128(n, 4, RoundDown); got != 5 {
		t.Errorf("21/4 RoundDown = %d, want 5", got)
	}
	putInt128(n)

	n = MultiplyInt128(7, 3)
	if got := DivideInt128(n, 4, RoundUp); got != 6 {
		t.Errorf("21/4 RoundUp = %d, want 6", got)
	}
	putInt128(n)
}
