package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeScheduleSet
	EventTypeVaultDeposit
	EventTypeParticipantRegistration
	EventTypeEntitlementMint
	EventTypeAuctionClaim
	EventTypeAuctionBurn
	EventTypeAuctionSwap
	EventTypeReverseSwap
	EventTypeReverseBurn
	EventTypePoolRatioUpdate
	EventTypeDayRolloverTick
	EventTypeDayClosed // Derived by core, never ingested
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Token context (nullable for global events)
	Token *string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// Token returns the token context (nil for global events)
	Token() *string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeScheduleSet:
		return "ScheduleSet"
	case EventTypeVaultDeposit:
		return "VaultDeposit"
	case EventTypeParticipantRegistration:
		return "ParticipantRegistration"
	case EventTypeEntitlementMint:
		return "EntitlementMint"
	case EventTypeAuctionClaim:
		return "AuctionClaim"
	case EventTypeAuctionBurn:
		return "AuctionBurn"
	case EventTypeAuctionSwap:
		return "AuctionSwap"
	case EventTypeReverseSwap:
		return "ReverseSwap"
	case EventTypeReverseBurn:
		return "ReverseBurn"
	case EventTypePoolRatioUpdate:
		return "PoolRatioUpdate"
	case EventTypeDayRolloverTick:
		return "DayRolloverTick"
	case EventTypeDayClosed:
		return "DayClosed"
	default:
		return "Unknown"
	}
}
