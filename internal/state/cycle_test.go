package state

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

// ============================================================================
// Test: ParticipantRegistry
// ============================================================================

func TestRegistry_CapEnforced(t *testing.T) {
	reg := NewParticipantRegistry(2)

	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

	for i, u := range []uuid.UUID{u1, u2} {
		admitted, err := reg.Register(u, 1000, int64(i+1))
		if err != nil || !admitted {
			t.Fatalf("register %d: admitted=%v err=%v", i, admitted, err)
		}
	}

	_, err := reg.Register(u3, 1000, 3)
	if !errors.Is(err, ErrParticipantCapReached) {
		t.Errorf("want ErrParticipantCapReached, got %v", err)
	}
	if reg.Count() != 2 || reg.Remaining() != 0 {
		t.Errorf("count=%d remaining=%d, want 2 and 0", reg.Count(), reg.Remaining())
	}
}

func TestRegistry_IdempotentRegister(t *testing.T) {
	reg := NewParticipantRegistry(1)
	u := uuid.New()

	if admitted, err := reg.Register(u, 1000, 1); err != nil || !admitted {
		t.Fatalf("first register: admitted=%v err=%v", admitted, err)
	}
	// Re-register at cap: must not error and must not consume a slot.
	admitted, err := reg.Register(u, 2000, 2)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if admitted {
		t.Error("re-register should not report a new admission")
	}
	if reg.Count() != 1 {
		t.Errorf("count = %d, want 1", reg.Count())
	}
}

func TestRegistry_SnapshotRoundTrip(t *testing.T) {
	reg := NewParticipantRegistry(10)
	u := uuid.New()
	reg.Register(u, 1000, 1)

	restored := NewParticipantRegistry(10)
	restored.Restore(reg.Snapshot())

	if !restored.IsRegistered(u) {
		t.Error("restored registry lost a participant")
	}
}

// ============================================================================
// Test: EntitlementBook
// ============================================================================

func TestEntitlementBook_Expiry(t *testing.T) {
	book := NewEntitlementBook(100) // 100us expiry
	u := uuid.New()

	book.Mint(u, 5, 1000, "genesis-drop")
	book.Mint(u, 3, 1050, "genesis-drop")

	if got := book.ActiveUnits(u, 1060); got != 8 {
		t.Errorf("active at 1060 = %d, want 8", got)
	}
	// First grant expires at 1100.
	if got := book.ActiveUnits(u, 1100); got != 3 {
		t.Errorf("active at 1100 = %d, want 3", got)
	}
	if got := book.ActiveUnits(u, 2000); got != 0 {
		t.Errorf("active at 2000 = %d, want 0", got)
	}
	if got := book.TotalMinted(u); got != 8 {
		t.Errorf("total minted = %d, want 8", got)
	}
}

func TestEntitlementBook_RejectsNonPositiveMint(t *testing.T) {
	book := NewEntitlementBook(100)
	if err := book.Mint(uuid.New(), 0, 1000, "x"); err == nil {
		t.Error("zero mint should be rejected")
	}
}

// ============================================================================
// Test: StepState transitions
// ============================================================================

func TestStepState_NormalFlow(t *testing.T) {
	rec := &CycleRecord{Step: StepNotStarted}

	for _, next := range []StepState{StepClaimed, StepBurned, StepSwapped} {
		if err := rec.Advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	if rec.Version != 3 {
		t.Errorf("version = %d, want 3", rec.Version)
	}
}

func TestStepState_ReverseFlow(t *testing.T) {
	rec := &CycleRecord{Step: StepNotStarted}

	if err := rec.Advance(StepReverseSwapped); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := rec.Advance(StepReverseSwapped); err != nil {
		t.Fatalf("tranche re-entry: %v", err)
	}
	if err := rec.Advance(StepReverseBurned); err != nil {
		t.Fatalf("advance: %v", err)
	}
	// Terminal.
	if err := rec.Advance(StepReverseSwapped); !errors.Is(err, ErrStepPrerequisite) {
		t.Errorf("want ErrStepPrerequisite after terminal, got %v", err)
	}
}

func TestStepState_OrderingViolations(t *testing.T) {
	cases := []struct {
		from, to StepState
	}{
		{StepNotStarted, StepBurned},         // Burn without claim
		{StepNotStarted, StepSwapped},        // Swap without claim
		{StepClaimed, StepSwapped},           // Swap without burn
		{StepClaimed, StepReverseSwapped},    // Mode mix within a cycle
		{StepReverseSwapped, StepClaimed},    // Mode mix within a cycle
		{StepNotStarted, StepReverseBurned},  // Reverse burn without swap
	}

	for _, tc := range cases {
		rec := &CycleRecord{Step: tc.from}
		if err := rec.Advance(tc.to); !errors.Is(err, ErrStepPrerequisite) {
			t.Errorf("%s -> %s: want ErrStepPrerequisite, got %v", tc.from, tc.to, err)
		}
	}
}

func TestStepState_ReEntryAfterRelease(t *testing.T) {
	rec := &CycleRecord{Step: StepSwapped}
	if err := rec.Advance(StepClaimed); err != nil {
		t.Errorf("claim after release should be allowed: %v", err)
	}
}

// ============================================================================
// Test: CycleTracker
// ============================================================================

func TestCycleTracker_CycleLimit(t *testing.T) {
	ct := NewCycleTracker(2)
	u := uuid.New()

	for cycle := int64(1); cycle <= 2; cycle++ {
		if _, err := ct.GetOrCreate(CycleKey{UserID: u, Token: "ORX", Cycle: cycle}); err != nil {
			t.Fatalf("cycle %d: %v", cycle, err)
		}
	}
	_, err := ct.GetOrCreate(CycleKey{UserID: u, Token: "ORX", Cycle: 3})
	if !errors.Is(err, ErrCycleLimitExceeded) {
		t.Errorf("want ErrCycleLimitExceeded, got %v", err)
	}
	// A different token has its own budget.
	if _, err := ct.GetOrCreate(CycleKey{UserID: u, Token: "LUMA", Cycle: 1}); err != nil {
		t.Errorf("other token should be unaffected: %v", err)
	}
}

func TestCycleTracker_ConsumeMonotonic(t *testing.T) {
	ct := NewCycleTracker(10)
	u := uuid.New()
	rec, _ := ct.GetOrCreate(CycleKey{UserID: u, Token: "ORX", Cycle: 1})

	if err := ct.Consume(rec, 3, 5); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := ct.Consume(rec, 2, 5); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := ct.Consume(rec, 1, 5); !errors.Is(err, ErrInsufficientEntitlement) {
		t.Errorf("want ErrInsufficientEntitlement, got %v", err)
	}
	if rec.UnitsConsumed != 5 || ct.ConsumedUnits(u) != 5 {
		t.Errorf("consumed rec=%d user=%d, want 5 and 5", rec.UnitsConsumed, ct.ConsumedUnits(u))
	}
}

func TestCycleTracker_ConsumeScopedPerCycle(t *testing.T) {
	// Availability is per (user, token, cycle): units spent against one
	// token's cycle leave other cycles whole, and a later cycle of the
	// same token starts fresh.
	ct := NewCycleTracker(10)
	u := uuid.New()

	orx1, _ := ct.GetOrCreate(CycleKey{UserID: u, Token: "ORX", Cycle: 1})
	if err := ct.Consume(orx1, 5, 5); err != nil {
		t.Fatalf("consume: %v", err)
	}

	luma1, _ := ct.GetOrCreate(CycleKey{UserID: u, Token: "LUMA", Cycle: 1})
	if err := ct.Consume(luma1, 5, 5); err != nil {
		t.Errorf("other token's cycle should be unaffected: %v", err)
	}

	orx2, _ := ct.GetOrCreate(CycleKey{UserID: u, Token: "ORX", Cycle: 2})
	if err := ct.Consume(orx2, 5, 5); err != nil {
		t.Errorf("later cycle should replenish availability: %v", err)
	}
	if err := ct.Consume(orx2, 1, 5); !errors.Is(err, ErrInsufficientEntitlement) {
		t.Errorf("want ErrInsufficientEntitlement, got %v", err)
	}

	if got := ct.ConsumedUnits(u); got != 15 {
		t.Errorf("total consumed = %d, want 15", got)
	}
}

func TestCycleTracker_ConsumeTopUpAfterMint(t *testing.T) {
	// A cycle fully spent against the current active balance reopens
	// once the balance grows, and consumption never decreases.
	ct := NewCycleTracker(10)
	u := uuid.New()

	rec, _ := ct.GetOrCreate(CycleKey{UserID: u, Token: "ORX", Cycle: 1})
	if err := ct.Consume(rec, 5, 5); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := ct.Consume(rec, 1, 5); !errors.Is(err, ErrInsufficientEntitlement) {
		t.Errorf("want ErrInsufficientEntitlement, got %v", err)
	}
	// The active balance grew by 3 since the last spend.
	if err := ct.Consume(rec, 3, 8); err != nil {
		t.Errorf("top-up with grown entitlement: %v", err)
	}
	if rec.UnitsConsumed != 8 {
		t.Errorf("consumed = %d, want 8", rec.UnitsConsumed)
	}
}

func TestCycleTracker_NetTokensEarned(t *testing.T) {
	ct := NewCycleTracker(10)
	u := uuid.New()

	// Cycle 1: granted 50000, burned 15000 -> net 35000.
	rec1, _ := ct.GetOrCreate(CycleKey{UserID: u, Token: "ORX", Cycle: 1})
	rec1.TokensGranted = 50_000
	rec1.TokensBurned = 15_000

	// Cycle 2: granted 10000, burned 3000, already sold back 2000.
	rec2, _ := ct.GetOrCreate(CycleKey{UserID: u, Token: "ORX", Cycle: 2})
	rec2.TokensGranted = 10_000
	rec2.TokensBurned = 3_000
	rec2.ReverseTokenIn = 2_000

	if got := ct.NetTokensEarned(u, "ORX", 1, 2); got != 40_000 {
		t.Errorf("net over [1,2] = %d, want 40000", got)
	}
	// Lookback window excluding cycle 1.
	if got := ct.NetTokensEarned(u, "ORX", 2, 2); got != 5_000 {
		t.Errorf("net over [2,2] = %d, want 5000", got)
	}
	// Out-of-range cycles contribute nothing; negatives clamp to zero.
	if got := ct.NetTokensEarned(u, "ORX", -3, 0); got != 0 {
		t.Errorf("net over empty range = %d, want 0", got)
	}
}

func TestCycleTracker_SnapshotRoundTrip(t *testing.T) {
	ct := NewCycleTracker(10)
	u := uuid.New()
	rec, _ := ct.GetOrCreate(CycleKey{UserID: u, Token: "ORX", Cycle: 1})
	ct.Consume(rec, 3, 10)
	rec.Advance(StepClaimed)
	rec.TokensGranted = 30_000

	restored := NewCycleTracker(10)
	restored.Restore(ct.Snapshot())

	got, ok := restored.Get(CycleKey{UserID: u, Token: "ORX", Cycle: 1})
	if !ok {
		t.Fatal("restored tracker lost a record")
	}
	if got.UnitsConsumed != 3 || got.Step != StepClaimed || got.TokensGranted != 30_000 {
		t.Errorf("restored record = %+v", got)
	}
	if restored.ConsumedUnits(u) != 3 {
		t.Errorf("restored consumed = %d, want 3", restored.ConsumedUnits(u))
	}
}
