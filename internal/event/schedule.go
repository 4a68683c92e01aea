package event

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleSet installs the auction rotation. Accepted exactly once;
// replays and re-sets are rejected by the schedule table.
// Idempotency key: schedule_id (UUID from the operator console).
type ScheduleSet struct {
	ScheduleID     uuid.UUID // Idempotency key
	Tokens         []string  // Rotation order
	StartUs        int64     // First window open, epoch microseconds
	LimitDays      int64     // Schedule length in days
	ConfigSequence int64     // Source sequence from the operator console
	Timestamp      time.Time // Versioned input timestamp (NOT wall-clock)
}

func (s *ScheduleSet) IdempotencyKey() string {
	return s.ScheduleID.String()
}

func (s *ScheduleSet) EventType() EventType {
	return EventTypeScheduleSet
}

func (s *ScheduleSet) Token() *string {
	return nil
}

func (s *ScheduleSet) SourceSequence() int64 {
	return s.ConfigSequence
}

// DayRolloverTick nudges the core past a day boundary so a quiet day
// still closes. The core also rolls lazily on any settlement event,
// so missed or duplicate ticks are harmless.
// Idempotency key: tick:<tick_sequence>.
type DayRolloverTick struct {
	TickID       uuid.UUID
	TickSequence int64
	Timestamp    time.Time // Versioned input timestamp (NOT wall-clock)
}

func (d *DayRolloverTick) IdempotencyKey() string {
	return d.TickID.String()
}

func (d *DayRolloverTick) EventType() EventType {
	return EventTypeDayRolloverTick
}

func (d *DayRolloverTick) Token() *string {
	return nil
}

func (d *DayRolloverTick) SourceSequence() int64 {
	return d.TickSequence
}
