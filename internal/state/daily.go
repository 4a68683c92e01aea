package state

import "github.com/google/uuid"

// DayStats aggregates one auction day
type DayStats struct {
	DayIndex       int64  `json:"day_index"`
	Token          string `json:"token"`
	Reverse        bool   `json:"reverse"`
	Participants   int64  `json:"participants"` // Unique settling users
	ClaimCount     int64  `json:"claim_count"`
	UnitsConsumed  int64  `json:"units_consumed"`
	TokensBurned   int64  `json:"tokens_burned"`
	StateReleased  int64  `json:"state_released"`
	ReverseTokenIn int64  `json:"reverse_token_in"`
	StateBurned    int64  `json:"state_burned"`
	TokensPaidOut  int64  `json:"tokens_paid_out"`
	FeesCollected  int64  `json:"fees_collected"`
	SwapCount      int64  `json:"swap_count"`
}

// DailyAccumulator aggregates per-day settlement stats. Rollover is
// lazy: the first event observed past a day boundary closes the prior
// day. Days with no events produce no stats row. Rolling to the same
// day twice is a no-op, so the rollover tick can fire redundantly.
type DailyAccumulator struct {
	started     bool
	startUs     int64
	dayLengthUs int64
	currentDay  int64
	current     *DayStats
	settlers    map[uuid.UUID]bool
	history     map[int64]*DayStats
}

func NewDailyAccumulator(dayLengthUs int64) *DailyAccumulator {
	return &DailyAccumulator{
		dayLengthUs: dayLengthUs,
		settlers:    make(map[uuid.UUID]bool),
		history:     make(map[int64]*DayStats),
	}
}

// Start anchors the accumulator to the schedule start
func (da *DailyAccumulator) Start(scheduleStartUs int64) {
	if da.started {
		return
	}
	da.started = true
	da.startUs = scheduleStartUs
	da.currentDay = 0
}

// Roll closes out days the clock has moved past, returning their
// stats in day order. Idempotent within a day.
func (da *DailyAccumulator) Roll(nowUs int64) []*DayStats {
	if !da.started || nowUs < da.startUs {
		return nil
	}

	dayIndex := (nowUs - da.startUs) / da.dayLengthUs
	if dayIndex <= da.currentDay {
		return nil
	}

	var closed []*DayStats
	if da.current != nil {
		da.history[da.current.DayIndex] = da.current
		closed = append(closed, da.current)
		da.current = nil
	}
	da.settlers = make(map[uuid.UUID]bool)
	da.currentDay = dayIndex
	return closed
}

// open lazily creates the stats row for the current day
func (da *DailyAccumulator) open(token string, reverse bool) *DayStats {
	if da.current == nil {
		da.current = &DayStats{
			DayIndex: da.currentDay,
			Token:    token,
			Reverse:  reverse,
		}
	}
	return da.current
}

func (da *DailyAccumulator) markSettler(userID uuid.UUID) {
	if !da.settlers[userID] {
		da.settlers[userID] = true
		da.current.Participants++
	}
}

// RecordClaim notes a normal-mode claim
func (da *DailyAccumulator) RecordClaim(userID uuid.UUID, token string, units int64) {
	stats := da.open(token, false)
	stats.ClaimCount++
	stats.UnitsConsumed += units
	da.markSettler(userID)
}

// RecordBurn notes a normal-mode token burn and its accrual fee
func (da *DailyAccumulator) RecordBurn(userID uuid.UUID, token string, burned, fee int64) {
	stats := da.open(token, false)
	stats.TokensBurned += burned
	stats.FeesCollected += fee
	da.markSettler(userID)
}

// RecordRelease notes a state payout through the router
func (da *DailyAccumulator) RecordRelease(userID uuid.UUID, token string, released int64) {
	stats := da.open(token, false)
	stats.StateReleased += released
	stats.SwapCount++
	da.markSettler(userID)
}

// RecordReverseSwap notes tokens sold into the pool on a reverse day
func (da *DailyAccumulator) RecordReverseSwap(userID uuid.UUID, token string, tokenIn int64) {
	stats := da.open(token, true)
	stats.ReverseTokenIn += tokenIn
	stats.SwapCount++
	da.markSettler(userID)
}

// RecordReverseBurn notes a reverse-day state burn and token payout
func (da *DailyAccumulator) RecordReverseBurn(userID uuid.UUID, token string, stateBurned, tokensOut, fee int64) {
	stats := da.open(token, true)
	stats.StateBurned += stateBurned
	stats.TokensPaidOut += tokensOut
	stats.FeesCollected += fee
	da.markSettler(userID)
}

// Current returns the open day's stats, nil if no events yet today
func (da *DailyAccumulator) Current() *DayStats {
	return da.current
}

// History returns a closed day's stats
func (da *DailyAccumulator) History(dayIndex int64) (*DayStats, bool) {
	stats, ok := da.history[dayIndex]
	return stats, ok
}

// DailySnapshot is the serializable accumulator state
type DailySnapshot struct {
	Started    bool        `json:"started"`
	StartUs    int64       `json:"start_us"`
	CurrentDay int64       `json:"current_day"`
	Current    *DayStats   `json:"current,omitempty"`
	Settlers   []uuid.UUID `json:"settlers,omitempty"`
	History    []*DayStats `json:"history,omitempty"`
}

func (da *DailyAccumulator) Snapshot() *DailySnapshot {
	snap := &DailySnapshot{
		Started:    da.started,
		StartUs:    da.startUs,
		CurrentDay: da.currentDay,
		Current:    da.current,
	}
	for userID := range da.settlers {
		snap.Settlers = append(snap.Settlers, userID)
	}
	for _, stats := range da.history {
		snap.History = append(snap.History, stats)
	}
	return snap
}

func (da *DailyAccumulator) Restore(snap *DailySnapshot) {
	if snap == nil {
		return
	}
	da.started = snap.Started
	da.startUs = snap.StartUs
	da.currentDay = snap.CurrentDay
	da.current = snap.Current
	da.settlers = make(map[uuid.UUID]bool, len(snap.Settlers))
	for _, userID := range snap.Settlers {
		da.settlers[userID] = true
	}
	da.history = make(map[int64]*DayStats, len(snap.History))
	for _, stats := range snap.History {
		da.history[stats.DayIndex] = stats
	}
}
