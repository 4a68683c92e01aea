package ledger

import (
	"fmt"

	"AuctionLedger/internal/event"

	"github.com/google/uuid"
)

// JournalGenerator creates balanced journal batches from events
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker // Add reference for pre-checks
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

// SetSequence resets the generator sequence (used for snapshot restore)
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}

func (jg *JournalGenerator) newJournal(
	batch *Batch,
	debit, credit AccountKey,
	assetID AssetID,
	amount int64,
	journalType JournalType,
) {
	batch.Journals = append(batch.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       batch.BatchID,
		EventRef:      batch.EventRef,
		Sequence:      jg.sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		AssetID:       assetID,
		Amount:        amount,
		JournalType:   journalType,
		Timestamp:     batch.Timestamp,
	})
}

func (jg *JournalGenerator) newBatch(eventRef string, timestamp int64, capacity int) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, capacity),
	}
}

// GenerateVaultDeposit funds the settlement vault.
// Moves funds: external:treasury → system:vault (state token).
func (jg *JournalGenerator) GenerateVaultDeposit(evt *event.VaultDeposit) (*Batch, error) {
	batch := jg.newBatch(evt.DepositID.String(), evt.Timestamp.UnixMicro(), 1)

	jg.newJournal(batch,
		VaultKey(StateAssetID),
		NewExternalAccountKey(SubTypeExternalTreasury, StateAssetID),
		StateAssetID, evt.Amount, JournalTypeVaultDeposit)

	jg.sequence++
	return batch, nil
}

// GenerateNormalBurn records a normal-mode burn: the token burn from
// the participant's wallet, the net state accrual to the user's
// pending account, and the settlement fee. Accrual and fee both draw
// on the vault.
// Pre-check: vault must cover net + fee.
func (jg *JournalGenerator) GenerateNormalBurn(
	userID uuid.UUID,
	burnID uuid.UUID,
	tokenAssetID AssetID,
	burned int64,
	netState int64,
	feeState int64,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateVaultReserve(StateAssetID, netState+feeState); err != nil {
		return nil, fmt.Errorf("burn pre-check failed: %w", err)
	}

	batch := jg.newBatch(burnID.String(), timestamp, 3)

	// Token burn: external:participants → system:burned
	jg.newJournal(batch,
		BurnSinkKey(tokenAssetID),
		NewExternalAccountKey(SubTypeExternalParticipants, tokenAssetID),
		tokenAssetID, burned, JournalTypeTokenBurn)

	// Accrual: system:vault → user:pending
	jg.newJournal(batch,
		NewUserAccountKey(userID, SubTypePending, StateAssetID),
		VaultKey(StateAssetID),
		StateAssetID, netState, JournalTypeSettlementAccrual)

	// Fee: system:vault → system:fees
	if feeState > 0 {
		jg.newJournal(batch,
			FeesKey(StateAssetID),
			VaultKey(StateAssetID),
			StateAssetID, feeState, JournalTypeSettlementFee)
	}

	jg.sequence++
	return batch, nil
}

// GenerateSwapRelease pays out pending state through the swap router.
// Moves funds: user:pending → external:router.
// Pre-check: user must have sufficient pending balance.
func (jg *JournalGenerator) GenerateSwapRelease(
	userID uuid.UUID,
	swapID uuid.UUID,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficientPending(userID, amount); err != nil {
		return nil, fmt.Errorf("release pre-check failed: %w", err)
	}

	batch := jg.newBatch(swapID.String(), timestamp, 1)

	jg.newJournal(batch,
		NewExternalAccountKey(SubTypeExternalRouter, StateAssetID),
		NewUserAccountKey(userID, SubTypePending, StateAssetID),
		StateAssetID, amount, JournalTypeSettlementRelease)

	jg.sequence++
	return batch, nil
}

// GenerateReverseSwap records tokens sold into the vault and the
// state credit to the user's reverse pending account.
// Pre-check: vault must cover the state credit.
func (jg *JournalGenerator) GenerateReverseSwap(
	userID uuid.UUID,
	swapID uuid.UUID,
	tokenAssetID AssetID,
	tokenIn int64,
	stateOut int64,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateVaultReserve(StateAssetID, stateOut); err != nil {
		return nil, fmt.Errorf("reverse swap pre-check failed: %w", err)
	}

	batch := jg.newBatch(swapID.String(), timestamp, 2)

	// Tokens in: external:participants → system:vault
	jg.newJournal(batch,
		VaultKey(tokenAssetID),
		NewExternalAccountKey(SubTypeExternalParticipants, tokenAssetID),
		tokenAssetID, tokenIn, JournalTypeReverseFund)

	// State credit: system:vault → user:reverse_pending
	jg.newJournal(batch,
		NewUserAccountKey(userID, SubTypeReversePending, StateAssetID),
		VaultKey(StateAssetID),
		StateAssetID, stateOut, JournalTypeReverseAccrual)

	jg.sequence++
	return batch, nil
}

// GenerateReverseBurn closes a reverse cycle: burns the full reverse
// pending state, pays the token output, and collects the fee in the
// payout token. Payout and fee both draw on the vault's token balance.
// Pre-check: vault must cover net + fee in the token.
func (jg *JournalGenerator) GenerateReverseBurn(
	userID uuid.UUID,
	burnID uuid.UUID,
	tokenAssetID AssetID,
	stateBurned int64,
	netTokens int64,
	feeTokens int64,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateVaultReserve(tokenAssetID, netTokens+feeTokens); err != nil {
		return nil, fmt.Errorf("reverse burn pre-check failed: %w", err)
	}

	batch := jg.newBatch(burnID.String(), timestamp, 3)

	// State burn: user:reverse_pending → system:burned
	jg.newJournal(batch,
		BurnSinkKey(StateAssetID),
		NewUserAccountKey(userID, SubTypeReversePending, StateAssetID),
		StateAssetID, stateBurned, JournalTypeReverseStateBurn)

	// Token payout: system:vault → external:participants
	jg.newJournal(batch,
		NewExternalAccountKey(SubTypeExternalParticipants, tokenAssetID),
		VaultKey(tokenAssetID),
		tokenAssetID, netTokens, JournalTypeReversePayout)

	// Fee: system:vault → system:fees, in the payout token
	if feeTokens > 0 {
		jg.newJournal(batch,
			FeesKey(tokenAssetID),
			VaultKey(tokenAssetID),
			tokenAssetID, feeTokens, JournalTypeReverseFee)
	}

	jg.sequence++
	return batch, nil
}
