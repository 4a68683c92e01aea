package state

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrStepPrerequisite   = errors.New("settlement step out of order")
	ErrCycleLimitExceeded = errors.New("cycle limit exceeded for token")
)

// StepState tracks settlement progress within one (user, token, cycle)
type StepState int32

const (
	StepNotStarted StepState = iota
	StepClaimed
	StepBurned
	StepSwapped
	StepReverseSwapped
	StepReverseBurned
)

func (s StepState) String() string {
	switch s {
	case StepNotStarted:
		return "NotStarted"
	case StepClaimed:
		return "Claimed"
	case StepBurned:
		return "Burned"
	case StepSwapped:
		return "Swapped"
	case StepReverseSwapped:
		return "ReverseSwapped"
	case StepReverseBurned:
		return "ReverseBurned"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates step transitions
func (s StepState) CanTransitionTo(next StepState) bool {
	validTransitions := map[StepState][]StepState{
		StepNotStarted: {
			StepClaimed,
			StepReverseSwapped,
		},
		StepClaimed: {
			StepClaimed, // Top-up claim before burning
			StepBurned,
		},
		StepBurned: {
			StepClaimed, // Re-entry: claim again within the same cycle
			StepSwapped,
		},
		StepSwapped: {
			StepClaimed, // Re-entry after a release
			StepSwapped, // Partial releases
		},
		StepReverseSwapped: {
			StepReverseSwapped, // Sell in tranches before the burn
			StepReverseBurned,
		},
		StepReverseBurned: {}, // Terminal
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, allowedState := range allowed {
		if next == allowedState {
			return true
		}
	}
	return false
}

// CycleKey identifies one settlement cycle
type CycleKey struct {
	UserID uuid.UUID
	Token  string
	Cycle  int64 // Appearance count of the token, 1-based
}

// CycleRecord accumulates one user's settlement within a cycle.
// All amounts are cumulative and monotonically non-decreasing, so a
// replayed history always reproduces the same record.
type CycleRecord struct {
	UserID uuid.UUID
	Token  string
	Cycle  int64

	Step StepState

	// Normal mode
	UnitsConsumed int64 // Entitlement units spent
	TokensGranted int64 // Token grant backing the consumed units
	TokensBurned  int64 // Token amount burned
	PendingState  int64 // State accrued by burns, not yet released
	StateReleased int64 // Net state paid out by swaps

	// Reverse mode
	ReverseTokenIn     int64 // Tokens sold into the pool
	ReversePending     int64 // State credited by the reverse swap
	ReverseStateBurned int64 // State burned to finish the cycle
	TokensEarnedBack   int64 // Net token payout of the reverse burn

	FeesPaid  int64 // Settlement fees, in the payout asset
	SwapCount int64
	Version   int64 // Optimistic concurrency control
}

// Advance moves the record to the next step, enforcing ordering
func (cr *CycleRecord) Advance(next StepState) error {
	if !cr.Step.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s for %s cycle %d",
			ErrStepPrerequisite, cr.Step, next, cr.Token, cr.Cycle)
	}
	cr.Step = next
	cr.Version++
	return nil
}

// CycleTracker manages all cycle records
type CycleTracker struct {
	records        map[CycleKey]*CycleRecord
	cyclesPerToken map[uuid.UUID]map[string]int64 // user -> token -> opened cycles
	maxCycles      int64
}

func NewCycleTracker(maxCyclesPerToken int64) *CycleTracker {
	return &CycleTracker{
		records:        make(map[CycleKey]*CycleRecord),
		cyclesPerToken: make(map[uuid.UUID]map[string]int64),
		maxCycles:      maxCyclesPerToken,
	}
}

func (ct *CycleTracker) Get(key CycleKey) (*CycleRecord, bool) {
	rec, ok := ct.records[key]
	return rec, ok
}

// GetOrCreate opens the record for a cycle, enforcing the per-token
// cycle limit on first touch.
func (ct *CycleTracker) GetOrCreate(key CycleKey) (*CycleRecord, error) {
	if rec, ok := ct.records[key]; ok {
		return rec, nil
	}

	perToken, ok := ct.cyclesPerToken[key.UserID]
	if !ok {
		perToken = make(map[string]int64)
		ct.cyclesPerToken[key.UserID] = perToken
	}
	if perToken[key.Token] >= ct.maxCycles {
		return nil, fmt.Errorf("%w: %s has %d cycles, max %d",
			ErrCycleLimitExceeded, key.Token, perToken[key.Token], ct.maxCycles)
	}

	rec := &CycleRecord{
		UserID: key.UserID,
		Token:  key.Token,
		Cycle:  key.Cycle,
		Step:   StepNotStarted,
	}
	ct.records[key] = rec
	perToken[key.Token]++
	return rec, nil
}

// Consume spends entitlement units against a user's active balance.
// Availability is scoped to this record: the caller-supplied unexpired
// total minus what the record already consumed. Consumption within a
// record is cumulative and never decreases, and a grown active balance
// allows an incremental top-up later in the same cycle.
func (ct *CycleTracker) Consume(rec *CycleRecord, units, activeUnits int64) error {
	if units <= 0 {
		return fmt.Errorf("units must be > 0, got %d", units)
	}
	if rec.UnitsConsumed+units > activeUnits {
		return fmt.Errorf("%w: want %d, have %d active with %d spent in %s cycle %d",
			ErrInsufficientEntitlement, units, activeUnits, rec.UnitsConsumed, rec.Token, rec.Cycle)
	}

	rec.UnitsConsumed += units
	return nil
}

// ConsumedUnits sums the user's spent units across all records.
func (ct *CycleTracker) ConsumedUnits(userID uuid.UUID) int64 {
	var total int64
	for key, rec := range ct.records {
		if key.UserID == userID {
			total += rec.UnitsConsumed
		}
	}
	return total
}

// NetTokensEarned sums a user's net token gain for one token over the
// cycle range [fromCycle, toCycle]. This bounds how much a reverse
// swap may sell back: only what prior cycles actually produced.
func (ct *CycleTracker) NetTokensEarned(userID uuid.UUID, token string, fromCycle, toCycle int64) int64 {
	var net int64
	for cycle := fromCycle; cycle <= toCycle; cycle++ {
		if cycle < 1 {
			continue
		}
		rec, ok := ct.records[CycleKey{UserID: userID, Token: token, Cycle: cycle}]
		if !ok {
			continue
		}
		net += rec.TokensGranted - rec.TokensBurned + rec.TokensEarnedBack - rec.ReverseTokenIn
	}
	if net < 0 {
		return 0
	}
	return net
}

// RecordsForUser returns the user's records across all tokens
func (ct *CycleTracker) RecordsForUser(userID uuid.UUID) []*CycleRecord {
	var out []*CycleRecord
	for key, rec := range ct.records {
		if key.UserID == userID {
			out = append(out, rec)
		}
	}
	return out
}

func (ct *CycleTracker) Snapshot() []*CycleRecord {
	out := make([]*CycleRecord, 0, len(ct.records))
	for _, rec := range ct.records {
		out = append(out, rec)
	}
	return out
}

func (ct *CycleTracker) Restore(records []*CycleRecord) {
	ct.records = make(map[CycleKey]*CycleRecord, len(records))
	ct.cyclesPerToken = make(map[uuid.UUID]map[string]int64)

	for _, rec := range records {
		key := CycleKey{UserID: rec.UserID, Token: rec.Token, Cycle: rec.Cycle}
		ct.records[key] = rec

		perToken, ok := ct.cyclesPerToken[rec.UserID]
		if !ok {
			perToken = make(map[string]int64)
			ct.cyclesPerToken[rec.UserID] = perToken
		}
		perToken[rec.Token]++
	}
}
