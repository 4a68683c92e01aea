// internal/event/entitlement.go
package event

import (
	"time"

	"github.com/google/uuid"
)

// EntitlementMint grants voucher units to a registered participant.
// Idempotency key: mint_id.
type EntitlementMint struct {
	MintID    uuid.UUID
	UserID    uuid.UUID
	Units     int64
	Origin    string // Campaign or grant source label
	Sequence  int64
	Timestamp time.Time
}

func (e *EntitlementMint) IdempotencyKey() string {
	return e.MintID.String()
}

func (e *EntitlementMint) EventType() EventType {
	return EventTypeEntitlementMint
}

func (e *EntitlementMint) Token() *string {
	return nil // Global event
}

func (e *EntitlementMint) SourceSequence() int64 {
	return e.Sequence
}
