package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeVaultDeposit JournalType = iota
	JournalTypeTokenBurn
	JournalTypeSettlementAccrual
	JournalTypeSettlementFee
	JournalTypeSettlementRelease
	JournalTypeReverseFund
	JournalTypeReverseAccrual
	JournalTypeReverseStateBurn
	JournalTypeReversePayout
	JournalTypeReverseFee
	JournalTypeAdjustment
)

var journalTypeNames = [...]string{
	"vault_deposit",
	"token_burn",
	"settlement_accrual",
	"settlement_fee",
	"settlement_release",
	"reverse_fund",
	"reverse_accrual",
	"reverse_state_burn",
	"reverse_payout",
	"reverse_fee",
	"adjustment",
}

// String returns the snake_case name used in logs and metric labels.
func (jt JournalType) String() string {
	if jt >= 0 && int(jt) < len(journalTypeNames) {
		return journalTypeNames[jt]
	}
	return fmt.Sprintf("unknown_%d", int32(jt))
}

// Journal represents a single double-entry journal entry
type Journal struct {
	JournalID     uuid.UUID   // Unique identifier
	BatchID       uuid.UUID   // Groups balanced entries
	EventRef      string      // Idempotency key of source event
	Sequence      int64       // Global event sequence
	DebitAccount  AccountKey  // Account receiving debit (balance increases)
	CreditAccount AccountKey  // Account receiving credit (balance decreases)
	AssetID       AssetID     // Asset being transferred
	Amount        int64       // Base-unit amount (ALWAYS positive)
	JournalType   JournalType // Entry type
	Timestamp     int64       // Versioned input timestamp (epoch microseconds)
}

// Batch represents a balanced set of journal entries
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Validate ensures the batch is well-formed.
// Note on balance invariant: each journal entry is a balanced transfer by construction
// (a single positive amount moves from credit account to debit account). Therefore
// Σ debits == Σ credits is guaranteed per-entry. Multi-leg batches (e.g., burn with
// accrual and fee) use multiple entries under one batch_id — each individually balanced.
func (b *Batch) Validate() error {
	if len(b.Journals) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}

	for _, j := range b.Journals {
		if j.Amount <= 0 {
			return fmt.Errorf("journal %s has non-positive amount: %d", j.JournalID, j.Amount)
		}

		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}

		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
	}

	return nil
}
