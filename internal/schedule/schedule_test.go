package schedule_test

import (
	"AuctionLedger/internal/schedule"
	"errors"
	"testing"
	"time"
)

const dayUs = int64(24 * time.Hour / time.Microsecond)

func setTable(t *testing.T, tokens []string, startUs, limitDays int64) *schedule.Table {
	t.Helper()
	tbl := schedule.NewTable(dayUs, 4)
	if err := tbl.Set(tokens, startUs, limitDays, startUs, nil); err != nil {
		t.Fatalf("set schedule: %v", err)
	}
	return tbl
}

// ============================================================================
// Test: TimeWindow
// ============================================================================

func TestDayIndexAt_FirstDay(t *testing.T) {
	start := int64(1_000_000)
	if got := schedule.DayIndexAt(start, start, dayUs); got != 0 {
		t.Errorf("day index at start should be 0, got %d", got)
	}
	if got := schedule.DayIndexAt(start+dayUs-1, start, dayUs); got != 0 {
		t.Errorf("day index just before boundary should be 0, got %d", got)
	}
	if got := schedule.DayIndexAt(start+dayUs, start, dayUs); got != 1 {
		t.Errorf("day index at boundary should be 1, got %d", got)
	}
}

func TestWindowBounds_ExactlyOneDayWide(t *testing.T) {
	start := int64(5_000_000)
	for idx := int64(0); idx < 5; idx++ {
		lo, hi := schedule.WindowBounds(idx, start, dayUs)
		if hi-lo != dayUs {
			t.Errorf("window %d width = %d, want %d", idx, hi-lo, dayUs)
		}
		if lo != start+idx*dayUs {
			t.Errorf("window %d start = %d, want %d", idx, lo, start+idx*dayUs)
		}
	}
}

// ============================================================================
// Test: ScheduleTable
// ============================================================================

func TestTable_SetOnce(t *testing.T) {
	tbl := setTable(t, []string{"ORX", "LUMA"}, 1_000_000, 40)

	err := tbl.Set([]string{"ORX"}, 2_000_000, 40, 2_000_000, nil)
	if !errors.Is(err, schedule.ErrScheduleAlreadySet) {
		t.Errorf("second set should fail with ErrScheduleAlreadySet, got %v", err)
	}
}

func TestTable_SetValidation(t *testing.T) {
	cases := []struct {
		name      string
		tokens    []string
		startUs   int64
		limitDays int64
		nowUs     int64
		supported map[string]bool
	}{
		{"empty list", nil, 100, 40, 100, nil},
		{"duplicate token", []string{"ORX", "ORX"}, 100, 40, 100, nil},
		{"blank token", []string{"ORX", ""}, 100, 40, 100, nil},
		{"start in past", []string{"ORX"}, 100, 40, 200, nil},
		{"zero limit", []string{"ORX"}, 100, 0, 100, nil},
		{"unsupported token", []string{"ORX"}, 100, 40, 100, map[string]bool{"LUMA": true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tbl := schedule.NewTable(dayUs, 4)
			if err := tbl.Set(tc.tokens, tc.startUs, tc.limitDays, tc.nowUs, tc.supported); err == nil {
				t.Error("set should have been rejected")
			}
			if tbl.IsSet() {
				t.Error("table must remain Unset after rejected set")
			}
		})
	}
}

func TestTable_UnsetQueries(t *testing.T) {
	tbl := schedule.NewTable(dayUs, 4)

	if _, active := tbl.TokenOfDay(1_000_000); active {
		t.Error("unset table should report inactive")
	}
	if n := tbl.AppearanceCount("ORX", 1_000_000); n != 0 {
		t.Errorf("unset table appearance count = %d, want 0", n)
	}
	if _, err := tbl.DayIndex(1_000_000); !errors.Is(err, schedule.ErrScheduleNotSet) {
		t.Errorf("want ErrScheduleNotSet, got %v", err)
	}
}

// Two tokens, start T0, one-day windows, 40-day limit.
// At T0+0.5d: token A, appearance 1, normal.
// At T0+3.5d: day 3, token B, appearance (3-1)/2+1 = 2, still normal.
func TestTable_RotationExample(t *testing.T) {
	start := int64(1_000_000)
	tbl := setTable(t, []string{"A", "B"}, start, 40)

	tok, active := tbl.TokenOfDay(start + dayUs/2)
	if !active || tok != "A" {
		t.Fatalf("at T0+0.5d got (%s, %v), want (A, true)", tok, active)
	}
	if n := tbl.AppearanceCount("A", start+dayUs/2); n != 1 {
		t.Errorf("appearance of A = %d, want 1", n)
	}
	if mode := tbl.ModeFor("A", start+dayUs/2); mode != schedule.ModeNormal {
		t.Errorf("mode of A = %s, want Normal", mode)
	}

	at := start + 3*dayUs + dayUs/2
	tok, active = tbl.TokenOfDay(at)
	if !active || tok != "B" {
		t.Fatalf("at T0+3.5d got (%s, %v), want (B, true)", tok, active)
	}
	if n := tbl.AppearanceCount("B", at); n != 2 {
		t.Errorf("appearance of B = %d, want 2", n)
	}
	if mode := tbl.ModeFor("B", at); mode != schedule.ModeNormal {
		t.Errorf("mode of B = %s, want Normal", mode)
	}
}

func TestTable_ReverseEveryFourthAppearance(t *testing.T) {
	start := int64(1_000_000)
	tbl := setTable(t, []string{"A", "B"}, start, 40)

	// Appearance 4 of A is day index 6 (days 0, 2, 4, 6).
	at := start + 6*dayUs + dayUs/2
	if n := tbl.AppearanceCount("A", at); n != 4 {
		t.Fatalf("appearance of A on day 6 = %d, want 4", n)
	}
	if mode := tbl.ModeFor("A", at); mode != schedule.ModeReverse {
		t.Errorf("mode of A on 4th appearance = %s, want Reverse", mode)
	}

	// Appearance 5 (day 8) flips back to normal.
	at = start + 8*dayUs + dayUs/2
	if mode := tbl.ModeFor("A", at); mode != schedule.ModeNormal {
		t.Errorf("mode of A on 5th appearance = %s, want Normal", mode)
	}
}

func TestTable_ModeExclusivity(t *testing.T) {
	start := int64(1_000_000)
	tbl := setTable(t, []string{"A", "B", "C"}, start, 40)

	// For every (token, day) pair exactly one classification may hold,
	// and the off-rotation token must always be inactive.
	for day := int64(0); day < 40; day++ {
		at := start + day*dayUs + dayUs/3
		activeTok, _ := tbl.TokenOfDay(at)
		for _, tok := range []string{"A", "B", "C"} {
			mode := tbl.ModeFor(tok, at)
			if tok != activeTok && mode != schedule.ModeInactive {
				t.Fatalf("day %d: token %s is off-rotation but mode = %s", day, tok, mode)
			}
			if tok == activeTok && mode == schedule.ModeInactive {
				t.Fatalf("day %d: token %s is on-rotation but inactive", day, tok)
			}
		}
	}
}

func TestTable_InactiveOutsideLimit(t *testing.T) {
	start := int64(1_000_000)
	tbl := setTable(t, []string{"A", "B"}, start, 4)

	if _, active := tbl.TokenOfDay(start - 1); active {
		t.Error("schedule must be inactive before start")
	}
	if _, active := tbl.TokenOfDay(start + 4*dayUs); active {
		t.Error("schedule must be inactive after the day limit")
	}
	if _, err := tbl.DayIndex(start + 4*dayUs); !errors.Is(err, schedule.ErrScheduleInactive) {
		t.Errorf("want ErrScheduleInactive, got %v", err)
	}
}

func TestTable_AppearanceCountUnknownToken(t *testing.T) {
	start := int64(1_000_000)
	tbl := setTable(t, []string{"A", "B"}, start, 40)

	if n := tbl.AppearanceCount("ZZZ", start+dayUs/2); n != 0 {
		t.Errorf("unknown token appearance = %d, want 0", n)
	}
}

func TestTable_Restore(t *testing.T) {
	tbl := schedule.NewTable(dayUs, 4)
	tbl.Restore([]string{"A", "B"}, 1_000_000, 40)

	if !tbl.IsSet() {
		t.Fatal("restored table should be Set")
	}
	tok, active := tbl.TokenOfDay(1_000_000 + dayUs/2)
	if !active || tok != "A" {
		t.Errorf("restored table got (%s, %v), want (A, true)", tok, active)
	}
}
