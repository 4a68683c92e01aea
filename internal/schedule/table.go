package schedule

import (
	"errors"
	"fmt"
)

// Schedule errors surfaced verbatim to callers.
var (
	ErrScheduleNotSet     = errors.New("schedule not set")
	ErrScheduleAlreadySet = errors.New("schedule already set")
	ErrScheduleInactive   = errors.New("schedule not active at this time")
	ErrWrongMode          = errors.New("wrong auction mode for this step")
)

// Mode is the auction mode for a (token, time) pair.
// Exactly one of the three holds for any query — normal and reverse are
// mutually exclusive by construction (both derive from appearance count).
type Mode int32

const (
	ModeInactive Mode = iota
	ModeNormal
	ModeReverse
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "Normal"
	case ModeReverse:
		return "Reverse"
	default:
		return "Inactive"
	}
}

// Table is the one-shot token rotation schedule.
// States: Unset | Set. The Unset→Set transition happens exactly once via
// Set; there is deliberately no way back — re-scheduling a live auction
// would let an operator move the reverse-mode days under participants.
type Table struct {
	tokens      []string
	firstIndex  map[string]int64
	startUs     int64
	dayLengthUs int64
	limitDays   int64

	reverseEvery int64

	isSet bool
}

// NewTable creates an Unset table.
// reverseEvery is the appearance modulus K: every Kth appearance of a
// token runs in reverse mode. It is fixed at construction, never at runtime.
func NewTable(dayLengthUs, reverseEvery int64) *Table {
	return &Table{
		firstIndex:   make(map[string]int64),
		dayLengthUs:  dayLengthUs,
		reverseEvery: reverseEvery,
	}
}

// Set performs the one-shot Unset→Set transition.
// Validates: non-empty distinct token list, every token supported,
// start not in the past relative to nowUs, positive day limit.
func (t *Table) Set(tokens []string, startUs, limitDays, nowUs int64, supported map[string]bool) error {
	if t.isSet {
		return ErrScheduleAlreadySet
	}
	if len(tokens) == 0 {
		return fmt.Errorf("set schedule: empty token list")
	}
	if limitDays <= 0 {
		return fmt.Errorf("set schedule: day limit must be > 0, got %d", limitDays)
	}
	if startUs < nowUs {
		return fmt.Errorf("set schedule: start %d is in the past (now %d)", startUs, nowUs)
	}

	seen := make(map[string]bool, len(tokens))
	for i, tok := range tokens {
		if tok == "" {
			return fmt.Errorf("set schedule: blank token at position %d", i)
		}
		if seen[tok] {
			return fmt.Errorf("set schedule: duplicate token %s", tok)
		}
		if supported != nil && !supported[tok] {
			return fmt.Errorf("set schedule: token %s is not supported", tok)
		}
		seen[tok] = true
	}

	t.tokens = append([]string(nil), tokens...)
	for i, tok := range t.tokens {
		t.firstIndex[tok] = int64(i)
	}
	t.startUs = startUs
	t.limitDays = limitDays
	t.isSet = true

	return nil
}

// IsSet reports whether the Unset→Set transition has happened.
func (t *Table) IsSet() bool {
	return t.isSet
}

// Tokens returns the rotation order (copy).
func (t *Table) Tokens() []string {
	return append([]string(nil), t.tokens...)
}

// StartUs returns the schedule start timestamp.
func (t *Table) StartUs() int64 {
	return t.startUs
}

// LimitDays returns the day-count limit.
func (t *Table) LimitDays() int64 {
	return t.limitDays
}

// DayLengthUs returns the fixed window width.
func (t *Table) DayLengthUs() int64 {
	return t.dayLengthUs
}

// DayIndex returns the day index containing nowUs.
// Errors: ErrScheduleNotSet, ErrScheduleInactive (before start or past limit).
func (t *Table) DayIndex(nowUs int64) (int64, error) {
	if !t.isSet {
		return 0, ErrScheduleNotSet
	}
	if nowUs < t.startUs {
		return 0, ErrScheduleInactive
	}
	idx := DayIndexAt(nowUs, t.startUs, t.dayLengthUs)
	if idx >= t.limitDays {
		return 0, ErrScheduleInactive
	}
	return idx, nil
}

// TokenOfDay returns the token active at nowUs.
// active=false when the schedule is unset, not yet started, or exhausted.
func (t *Table) TokenOfDay(nowUs int64) (string, bool) {
	idx, err := t.DayIndex(nowUs)
	if err != nil {
		return "", false
	}
	if len(t.tokens) == 0 {
		return "", false
	}
	return t.tokens[idx%int64(len(t.tokens))], true
}

// AppearanceCount returns how many times token has appeared in the rotation
// up to and including the day containing nowUs. Zero before the token's
// first scheduled day, and zero for tokens not in the schedule at all.
func (t *Table) AppearanceCount(token string, nowUs int64) int64 {
	idx, err := t.DayIndex(nowUs)
	if err != nil {
		return 0
	}
	n := int64(len(t.tokens))
	if n == 0 {
		return 0
	}
	first, ok := t.firstIndex[token]
	if !ok || idx < first {
		return 0
	}
	return (idx-first)/n + 1
}

// ModeFor classifies (token, nowUs) into exactly one of inactive, normal,
// or reverse. A token is active only on its own rotation day; every
// reverseEvery-th appearance flips to reverse.
func (t *Table) ModeFor(token string, nowUs int64) Mode {
	active, ok := t.TokenOfDay(nowUs)
	if !ok || active != token {
		return ModeInactive
	}
	count := t.AppearanceCount(token, nowUs)
	if count == 0 {
		return ModeInactive
	}
	if t.reverseEvery > 0 && count%t.reverseEvery == 0 {
		return ModeReverse
	}
	return ModeNormal
}

// ActiveWindow returns the bounds of the day window containing nowUs.
func (t *Table) ActiveWindow(nowUs int64) (int64, int64, bool) {
	idx, err := t.DayIndex(nowUs)
	if err != nil {
		return 0, 0, false
	}
	start, end := WindowBounds(idx, t.startUs, t.dayLengthUs)
	return start, end, true
}

// Restore directly sets the schedule state (used for snapshot restore only).
func (t *Table) Restore(tokens []string, startUs, limitDays int64) {
	if len(tokens) == 0 {
		return
	}
	t.tokens = append([]string(nil), tokens...)
	t.firstIndex = make(map[string]int64, len(tokens))
	for i, tok := range t.tokens {
		t.firstIndex[tok] = int64(i)
	}
	t.startUs = startUs
	t.limitDays = limitDays
	t.isSet = true
}
