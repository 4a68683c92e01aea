// internal/event/auction.go
package event

import (
	"time"

	"github.com/google/uuid"
)

// AuctionClaim spends entitlement units on the day's token, fixing
// the burn obligation for those units.
// Idempotency key: claim_id.
type AuctionClaim struct {
	ClaimID      uuid.UUID
	UserID       uuid.UUID
	AuctionToken string
	Units        int64
	Sequence     int64 // Source sequence, per-token partition
	Timestamp    time.Time
}

func (a *AuctionClaim) IdempotencyKey() string {
	return a.ClaimID.String()
}

func (a *AuctionClaim) EventType() EventType {
	return EventTypeAuctionClaim
}

func (a *AuctionClaim) Token() *string {
	t := a.AuctionToken
	return &t
}

func (a *AuctionClaim) SourceSequence() int64 {
	return a.Sequence
}

// AuctionBurn executes the burn fixed by prior claims and accrues the
// ratio-priced state credit to the user's pending balance.
// Idempotency key: burn_id.
type AuctionBurn struct {
	BurnID       uuid.UUID
	UserID       uuid.UUID
	AuctionToken string
	Sequence     int64
	Timestamp    time.Time
}

func (a *AuctionBurn) IdempotencyKey() string {
	return a.BurnID.String()
}

func (a *AuctionBurn) EventType() EventType {
	return EventTypeAuctionBurn
}

func (a *AuctionBurn) Token() *string {
	t := a.AuctionToken
	return &t
}

func (a *AuctionBurn) SourceSequence() int64 {
	return a.Sequence
}

// AuctionSwap releases pending state through the swap router, net of
// the settlement fee. Amount of 0 releases the full pending balance.
// Idempotency key: swap_id.
type AuctionSwap struct {
	SwapID       uuid.UUID
	UserID       uuid.UUID
	AuctionToken string
	Amount       int64 // Pending state to release; 0 means all
	MinOut       int64 // Router slippage floor
	Sequence     int64
	Timestamp    time.Time
}

func (a *AuctionSwap) IdempotencyKey() string {
	return a.SwapID.String()
}

func (a *AuctionSwap) EventType() EventType {
	return EventTypeAuctionSwap
}

func (a *AuctionSwap) Token() *string {
	t := a.AuctionToken
	return &t
}

func (a *AuctionSwap) SourceSequence() int64 {
	return a.Sequence
}
