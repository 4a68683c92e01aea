// internal/event/reverse.go
package event

import (
	"time"

	"github.com/google/uuid"
)

// ReverseSwap sells previously earned tokens back into the pool on a
// reverse day, crediting ratio-priced state to the user's reverse
// pending balance. The amount is capped by recent net earnings.
// Idempotency key: swap_id.
type ReverseSwap struct {
	SwapID       uuid.UUID
	UserID       uuid.UUID
	AuctionToken string
	TokenIn      int64 // Tokens sold into the pool
	Sequence     int64
	Timestamp    time.Time
}

func (r *ReverseSwap) IdempotencyKey() string {
	return r.SwapID.String()
}

func (r *ReverseSwap) EventType() EventType {
	return EventTypeReverseSwap
}

func (r *ReverseSwap) Token() *string {
	t := r.AuctionToken
	return &t
}

func (r *ReverseSwap) SourceSequence() int64 {
	return r.Sequence
}

// ReverseBurn burns the full reverse pending balance and pays the
// token output net of the settlement fee, closing the cycle.
// Idempotency key: burn_id.
type ReverseBurn struct {
	BurnID       uuid.UUID
	UserID       uuid.UUID
	AuctionToken string
	MinOut       int64 // Router slippage floor
	Sequence     int64
	Timestamp    time.Time
}

func (r *ReverseBurn) IdempotencyKey() string {
	return r.BurnID.String()
}

func (r *ReverseBurn) EventType() EventType {
	return EventTypeReverseBurn
}

func (r *ReverseBurn) Token() *string {
	t := r.AuctionToken
	return &t
}

func (r *ReverseBurn) SourceSequence() int64 {
	return r.Sequence
}
