package state

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
)

const testDayUs = int64(24 * 60 * 60 * 1_000_000)

// ============================================================================
// Test: DailyAccumulator
// ============================================================================

func TestDaily_LazyRollover(t *testing.T) {
	da := NewDailyAccumulator(testDayUs)
	da.Start(1_000_000)

	u := uuid.New()
	da.RecordClaim(u, "ORX", 5)
	da.RecordBurn(u, "ORX", 15_000, 300)

	// Same-day roll is a no-op.
	if closed := da.Roll(1_000_000 + testDayUs/2); closed != nil {
		t.Errorf("same-day roll closed %d days, want 0", len(closed))
	}

	// Crossing the boundary closes day 0.
	closed := da.Roll(1_000_000 + testDayUs + 1)
	if len(closed) != 1 {
		t.Fatalf("closed %d days, want 1", len(closed))
	}
	stats := closed[0]
	if stats.DayIndex != 0 || stats.Token != "ORX" || stats.TokensBurned != 15_000 {
		t.Errorf("closed stats = %+v", stats)
	}
	if stats.Participants != 1 {
		t.Errorf("participants = %d, want 1", stats.Participants)
	}

	// Rolling again on the new day is idempotent.
	if closed := da.Roll(1_000_000 + testDayUs + 2); closed != nil {
		t.Errorf("repeat roll closed %d days, want 0", len(closed))
	}

	if _, ok := da.History(0); !ok {
		t.Error("day 0 missing from history")
	}
}

func TestDaily_SkipsEmptyDays(t *testing.T) {
	da := NewDailyAccumulator(testDayUs)
	da.Start(0)

	da.RecordClaim(uuid.New(), "ORX", 1)

	// Jump four days ahead: only the day with activity closes.
	closed := da.Roll(4*testDayUs + 1)
	if len(closed) != 1 || closed[0].DayIndex != 0 {
		t.Fatalf("closed = %+v, want single day 0", closed)
	}

	// No activity on day 4, rolling past it closes nothing.
	if closed := da.Roll(6 * testDayUs); closed != nil {
		t.Errorf("empty day produced stats: %+v", closed)
	}
}

func TestDaily_UniqueSettlers(t *testing.T) {
	da := NewDailyAccumulator(testDayUs)
	da.Start(0)

	u1, u2 := uuid.New(), uuid.New()
	da.RecordClaim(u1, "ORX", 1)
	da.RecordBurn(u1, "ORX", 3_000, 30)
	da.RecordRelease(u1, "ORX", 5_970)
	da.RecordClaim(u2, "ORX", 2)

	if got := da.Current().Participants; got != 2 {
		t.Errorf("participants = %d, want 2", got)
	}
	if got := da.Current().SwapCount; got != 1 {
		t.Errorf("swap count = %d, want 1", got)
	}
}

func TestDaily_ReverseDayStats(t *testing.T) {
	da := NewDailyAccumulator(testDayUs)
	da.Start(0)

	u := uuid.New()
	da.RecordReverseSwap(u, "ORX", 10_000)
	da.RecordReverseBurn(u, "ORX", 15_000, 4_975, 25)

	stats := da.Current()
	if !stats.Reverse {
		t.Error("day should be marked reverse")
	}
	if stats.ReverseTokenIn != 10_000 || stats.StateBurned != 15_000 ||
		stats.TokensPaidOut != 4_975 || stats.FeesCollected != 25 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDaily_SnapshotRoundTrip(t *testing.T) {
	da := NewDailyAccumulator(testDayUs)
	da.Start(1_000_000)
	u := uuid.New()
	da.RecordClaim(u, "ORX", 5)
	da.Roll(1_000_000 + testDayUs + 1)
	da.RecordClaim(u, "LUMA", 2)

	restored := NewDailyAccumulator(testDayUs)
	restored.Restore(da.Snapshot())

	if _, ok := restored.History(0); !ok {
		t.Error("restored accumulator lost day 0")
	}
	if cur := restored.Current(); cur == nil || cur.Token != "LUMA" {
		t.Errorf("restored current = %+v, want open LUMA day", cur)
	}
	// Settler dedupe survives the round trip.
	restored.RecordClaim(u, "LUMA", 1)
	if got := restored.Current().Participants; got != 1 {
		t.Errorf("participants = %d, want 1", got)
	}
}

// ============================================================================
// Test: RatioCache
// ============================================================================

func TestRatioCache_StaleSequenceIgnored(t *testing.T) {
	rc := NewRatioCache()

	rc.Update("ORX", big.NewInt(2_000_000), 10, 1000)
	rc.Update("ORX", big.NewInt(9_999_999), 9, 1001) // Stale

	got, ok := rc.Get("ORX")
	if !ok || got.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Errorf("ratio = %v, want 2000000", got)
	}

	// Gaps are accepted.
	rc.Update("ORX", big.NewInt(3_000_000), 20, 1002)
	got, _ = rc.Get("ORX")
	if got.Cmp(big.NewInt(3_000_000)) != 0 {
		t.Errorf("ratio after gap = %v, want 3000000", got)
	}
}

func TestRatioCache_CopiesInput(t *testing.T) {
	rc := NewRatioCache()
	in := big.NewInt(500)
	rc.Update("ORX", in, 1, 1000)
	in.SetInt64(999) // Caller mutation must not leak in

	got, _ := rc.Get("ORX")
	if got.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("ratio = %v, want 500", got)
	}
}

func TestRatioCache_SnapshotRoundTrip(t *testing.T) {
	rc := NewRatioCache()
	big18, _ := new(big.Int).SetString("2000000000000000000", 10)
	rc.Update("ORX", big18, 7, 1000)

	restored := NewRatioCache()
	restored.Restore(rc.Snapshot())

	got, ok := restored.Get("ORX")
	if !ok || got.Cmp(big18) != 0 {
		t.Errorf("restored ratio = %v, want %v", got, big18)
	}
}
