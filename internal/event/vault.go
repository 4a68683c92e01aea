// internal/event/vault.go
package event

import (
	"time"

	"github.com/google/uuid"
)

// VaultDeposit credits the settlement vault with state tokens from
// the treasury. The vault is the sole source of pending accruals.
// Idempotency key: deposit_id.
type VaultDeposit struct {
	DepositID uuid.UUID
	Amount    int64 // State token base units
	Sequence  int64
	Timestamp time.Time
}

func (v *VaultDeposit) IdempotencyKey() string {
	return v.DepositID.String()
}

func (v *VaultDeposit) EventType() EventType {
	return EventTypeVaultDeposit
}

func (v *VaultDeposit) Token() *string {
	return nil // Global event
}

func (v *VaultDeposit) SourceSequence() int64 {
	return v.Sequence
}
