package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrInsufficientVaultReserve = errors.New("insufficient vault reserve")

// BalanceTracker maintains in-memory account balances
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// === User Balance Queries ===

// GetUserPending returns state accrued by burns, not yet released
func (bt *BalanceTracker) GetUserPending(userID uuid.UUID) int64 {
	return bt.GetBalance(NewUserAccountKey(userID, SubTypePending, StateAssetID))
}

// GetUserReversePending returns state credited by a reverse swap
func (bt *BalanceTracker) GetUserReversePending(userID uuid.UUID) int64 {
	return bt.GetBalance(NewUserAccountKey(userID, SubTypeReversePending, StateAssetID))
}

// === System Balance Queries ===

// GetVaultBalance returns the settlement vault balance for an asset
func (bt *BalanceTracker) GetVaultBalance(assetID AssetID) int64 {
	return bt.GetBalance(VaultKey(assetID))
}

// GetFeesCollected returns accumulated settlement fees for an asset
func (bt *BalanceTracker) GetFeesCollected(assetID AssetID) int64 {
	return bt.GetBalance(FeesKey(assetID))
}

// GetBurnedTotal returns the cumulative burned amount for an asset
func (bt *BalanceTracker) GetBurnedTotal(assetID AssetID) int64 {
	return bt.GetBalance(BurnSinkKey(assetID))
}

// === Invariant Checks ===

// ValidateVaultReserve checks the vault can fund an outflow. Every
// accrual and payout draws on the vault; a vault that cannot cover the
// draw rejects the whole event.
func (bt *BalanceTracker) ValidateVaultReserve(assetID AssetID, required int64) error {
	balance := bt.GetVaultBalance(assetID)
	if balance < required {
		assetName, _ := GetAssetName(assetID)
		return fmt.Errorf("%w: vault %s has %d, need %d",
			ErrInsufficientVaultReserve, assetName, balance, required)
	}
	return nil
}

// ValidateSufficientPending checks a release does not exceed pending
func (bt *BalanceTracker) ValidateSufficientPending(userID uuid.UUID, required int64) error {
	pending := bt.GetUserPending(userID)
	if pending < required {
		return fmt.Errorf("insufficient pending balance: have=%d, need=%d", pending, required)
	}
	return nil
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	balance := bt.GetBalance(key)
	if balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances (should be 0 for zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() map[AssetID]int64 {
	totals := make(map[AssetID]int64)

	for key, balance := range bt.balances {
		totals[key.AssetID] += balance
	}

	return totals
}

// SetBalance directly sets a balance (used for snapshot restore)
func (bt *BalanceTracker) SetBalance(key AccountKey, balance int64) {
	bt.balances[key] = balance
}

// Snapshot returns a copy of all balances (for state hashing)
func (bt *BalanceTracker) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}
