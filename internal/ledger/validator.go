package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is balanced
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateVaultNonNegative verifies the vault never goes negative
func (v *InvariantValidator) ValidateVaultNonNegative(assetID AssetID) error {
	return v.tracker.ValidateNonNegative(VaultKey(assetID))
}

// ValidateUserPendingNonNegative checks both pending accounts
func (v *InvariantValidator) ValidateUserPendingNonNegative(userID uuid.UUID) error {
	if err := v.tracker.ValidateNonNegative(NewUserAccountKey(userID, SubTypePending, StateAssetID)); err != nil {
		return err
	}
	return v.tracker.ValidateNonNegative(NewUserAccountKey(userID, SubTypeReversePending, StateAssetID))
}

// ValidateGlobalBalance verifies system is zero-sum
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}
