package ledger_test

import (
	"errors"
	"testing"

	"AuctionLedger/internal/event"
	"AuctionLedger/internal/ledger"

	"github.com/google/uuid"
)

func fundVault(bt *ledger.BalanceTracker, assetID ledger.AssetID, amount int64) {
	bt.ApplyJournal(ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.VaultKey(assetID),
		CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalTreasury, assetID),
		AssetID:       assetID,
		Amount:        amount,
	})
}

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_UserPath(t *testing.T) {
	userID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := ledger.NewUserAccountKey(userID, ledger.SubTypePending, ledger.StateAssetID)

	path := key.AccountPath()
	expected := "user:550e8400-e29b-41d4-a716-446655440000:pending:STATE"
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_SystemPath(t *testing.T) {
	key := ledger.VaultKey(ledger.StateAssetID)

	path := key.AccountPath()
	if path != "system:vault:STATE" {
		t.Errorf("got %q, want %q", path, "system:vault:STATE")
	}
}

func TestAccountKey_ExternalPath(t *testing.T) {
	key := ledger.NewExternalAccountKey(ledger.SubTypeExternalRouter, ledger.StateAssetID)

	path := key.AccountPath()
	if path != "external:router:STATE" {
		t.Errorf("got %q, want %q", path, "external:router:STATE")
	}
}

func TestRegisterAsset_Idempotent(t *testing.T) {
	first := ledger.RegisterAsset("ORX")
	second := ledger.RegisterAsset("ORX")
	if first != second {
		t.Errorf("re-registration changed asset ID: %d vs %d", first, second)
	}

	id, ok := ledger.GetAssetID("ORX")
	if !ok || id != first {
		t.Errorf("lookup got (%d, %v), want (%d, true)", id, ok, first)
	}
	name, ok := ledger.GetAssetName(first)
	if !ok || name != "ORX" {
		t.Errorf("reverse lookup got (%q, %v)", name, ok)
	}
}

func TestRegisterAsset_ConcurrentLookups(t *testing.T) {
	// Registration runs on the core goroutine while the projection
	// bridge resolves names concurrently. Raceable under -race.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1_000; i++ {
			ledger.RegisterAsset("VEX")
		}
	}()

	for i := 0; i < 1_000; i++ {
		ledger.GetAssetName(ledger.StateAssetID)
		ledger.GetAssetID("VEX")
	}
	<-done

	id, ok := ledger.GetAssetID("VEX")
	if !ok {
		t.Fatal("VEX not registered")
	}
	if name, ok := ledger.GetAssetName(id); !ok || name != "VEX" {
		t.Errorf("reverse lookup got (%q, %v)", name, ok)
	}
}

func TestGetAssetID_StatePreregistered(t *testing.T) {
	id, ok := ledger.GetAssetID(ledger.StateAsset)
	if !ok || id != ledger.StateAssetID {
		t.Errorf("state asset lookup got (%d, %v)", id, ok)
	}
}

func TestGetAssetID_Unknown(t *testing.T) {
	_, ok := ledger.GetAssetID("NEVER-SCHEDULED")
	if ok {
		t.Error("unscheduled token should not be a known asset")
	}
}

// ============================================================================
// Test: BalanceTracker
// ============================================================================

func TestBalanceTracker_InitialBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	userID := uuid.New()

	if bt.GetUserPending(userID) != 0 {
		t.Error("initial pending should be 0")
	}
	if bt.GetVaultBalance(ledger.StateAssetID) != 0 {
		t.Error("initial vault should be 0")
	}
}

func TestBalanceTracker_GlobalBalanceZeroSum(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	userID := uuid.New()

	fundVault(bt, ledger.StateAssetID, 1_000_000)

	// Accrue pending from the vault
	bt.ApplyJournal(ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewUserAccountKey(userID, ledger.SubTypePending, ledger.StateAssetID),
		CreditAccount: ledger.VaultKey(ledger.StateAssetID),
		AssetID:       ledger.StateAssetID,
		Amount:        300_000,
	})

	totals := bt.ComputeGlobalBalance()
	for aid, total := range totals {
		if total != 0 {
			t.Errorf("asset %d has non-zero global balance: %d", aid, total)
		}
	}
	if bt.GetUserPending(userID) != 300_000 {
		t.Errorf("pending = %d, want 300_000", bt.GetUserPending(userID))
	}
	if bt.GetVaultBalance(ledger.StateAssetID) != 700_000 {
		t.Errorf("vault = %d, want 700_000", bt.GetVaultBalance(ledger.StateAssetID))
	}
}

func TestBalanceTracker_ValidateVaultReserve(t *testing.T) {
	bt := ledger.NewBalanceTracker()

	err := bt.ValidateVaultReserve(ledger.StateAssetID, 100)
	if !errors.Is(err, ledger.ErrInsufficientVaultReserve) {
		t.Errorf("want ErrInsufficientVaultReserve, got %v", err)
	}

	fundVault(bt, ledger.StateAssetID, 1_000)

	if err := bt.ValidateVaultReserve(ledger.StateAssetID, 1_000); err != nil {
		t.Errorf("should have sufficient reserve: %v", err)
	}
	if err := bt.ValidateVaultReserve(ledger.StateAssetID, 1_001); err == nil {
		t.Error("expected error for 1_001 > 1_000")
	}
}

func TestBalanceTracker_Snapshot(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	fundVault(bt, ledger.StateAssetID, 999)

	snap := bt.Snapshot()
	if len(snap) == 0 {
		t.Fatal("snapshot should not be empty")
	}

	// Mutating snapshot should not affect tracker
	for k := range snap {
		snap[k] = 0
	}

	if bt.GetVaultBalance(ledger.StateAssetID) != 999 {
		t.Error("tracker balance should not be affected by snapshot mutation")
	}
}

// ============================================================================
// Test: Batch Validation
// ============================================================================

func TestBatchValidate_EmptyBatch_Fails(t *testing.T) {
	batch := &ledger.Batch{
		BatchID:  uuid.New(),
		Journals: []ledger.Journal{},
	}

	if err := batch.Validate(); err == nil {
		t.Error("empty batch should fail validation")
	}
}

func TestBatchValidate_NonPositiveAmount_Fails(t *testing.T) {
	for _, amount := range []int64{0, -100} {
		batchID := uuid.New()
		batch := &ledger.Batch{
			BatchID: batchID,
			Journals: []ledger.Journal{
				{
					JournalID:     uuid.New(),
					BatchID:       batchID,
					DebitAccount:  ledger.NewUserAccountKey(uuid.New(), ledger.SubTypePending, ledger.StateAssetID),
					CreditAccount: ledger.VaultKey(ledger.StateAssetID),
					AssetID:       ledger.StateAssetID,
					Amount:        amount,
				},
			},
		}

		if err := batch.Validate(); err == nil {
			t.Errorf("amount %d should fail validation", amount)
		}
	}
}

func TestBatchValidate_SelfTransfer_Fails(t *testing.T) {
	batchID := uuid.New()
	sameAccount := ledger.VaultKey(ledger.StateAssetID)

	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{
			{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				DebitAccount:  sameAccount,
				CreditAccount: sameAccount,
				AssetID:       ledger.StateAssetID,
				Amount:        100,
			},
		},
	}

	if err := batch.Validate(); err == nil {
		t.Error("self-transfer should fail validation")
	}
}

func TestBatchValidate_MismatchedBatchID_Fails(t *testing.T) {
	batchID := uuid.New()

	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{
			{
				JournalID:     uuid.New(),
				BatchID:       uuid.New(), // Different batch ID
				DebitAccount:  ledger.NewUserAccountKey(uuid.New(), ledger.SubTypePending, ledger.StateAssetID),
				CreditAccount: ledger.VaultKey(ledger.StateAssetID),
				AssetID:       ledger.StateAssetID,
				Amount:        100,
			},
		},
	}

	if err := batch.Validate(); err == nil {
		t.Error("mismatched batch ID should fail validation")
	}
}

// ============================================================================
// Test: JournalGenerator
// ============================================================================

func TestGenerator_VaultDeposit(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)

	batch, err := jg.GenerateVaultDeposit(&event.VaultDeposit{
		DepositID: uuid.New(),
		Amount:    1_000_000,
	})
	if err != nil {
		t.Fatalf("GenerateVaultDeposit: %v", err)
	}
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	if bt.GetVaultBalance(ledger.StateAssetID) != 1_000_000 {
		t.Errorf("vault = %d, want 1_000_000", bt.GetVaultBalance(ledger.StateAssetID))
	}
}

func TestGenerator_NormalBurnFlow(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	userID := uuid.New()
	tokenID := ledger.RegisterAsset("ORX")

	fundVault(bt, ledger.StateAssetID, 100_000)

	// Burn 15000 tokens, accrue 59700 net with a 300 fee.
	batch, err := jg.GenerateNormalBurn(userID, uuid.New(), tokenID, 15_000, 59_700, 300, 1000)
	if err != nil {
		t.Fatalf("GenerateNormalBurn: %v", err)
	}
	if len(batch.Journals) != 3 {
		t.Fatalf("journals = %d, want 3", len(batch.Journals))
	}
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	if got := bt.GetUserPending(userID); got != 59_700 {
		t.Errorf("pending = %d, want 59_700", got)
	}
	if got := bt.GetFeesCollected(ledger.StateAssetID); got != 300 {
		t.Errorf("fees = %d, want 300", got)
	}
	if got := bt.GetBurnedTotal(tokenID); got != 15_000 {
		t.Errorf("burned = %d, want 15_000", got)
	}
	if got := bt.GetVaultBalance(ledger.StateAssetID); got != 40_000 {
		t.Errorf("vault = %d, want 40_000", got)
	}

	// Release pending through the router.
	release, err := jg.GenerateSwapRelease(userID, uuid.New(), 59_700, 1001)
	if err != nil {
		t.Fatalf("GenerateSwapRelease: %v", err)
	}
	if err := bt.ApplyBatch(release); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if got := bt.GetUserPending(userID); got != 0 {
		t.Errorf("pending after release = %d, want 0", got)
	}
}

func TestGenerator_NormalBurn_VaultPreCheck(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	tokenID := ledger.RegisterAsset("ORX")

	fundVault(bt, ledger.StateAssetID, 100)

	_, err := jg.GenerateNormalBurn(uuid.New(), uuid.New(), tokenID, 15_000, 59_700, 300, 1000)
	if !errors.Is(err, ledger.ErrInsufficientVaultReserve) {
		t.Errorf("want ErrInsufficientVaultReserve, got %v", err)
	}
}

func TestGenerator_SwapRelease_PendingPreCheck(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)

	_, err := jg.GenerateSwapRelease(uuid.New(), uuid.New(), 100, 1000)
	if err == nil {
		t.Error("release with no pending should fail")
	}
}

func TestGenerator_ReverseFlow(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	userID := uuid.New()
	tokenID := ledger.RegisterAsset("LUMA")

	fundVault(bt, ledger.StateAssetID, 100_000)

	// Sell 10000 tokens in, credit 15000 state.
	swap, err := jg.GenerateReverseSwap(userID, uuid.New(), tokenID, 10_000, 15_000, 1000)
	if err != nil {
		t.Fatalf("GenerateReverseSwap: %v", err)
	}
	if err := bt.ApplyBatch(swap); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	if got := bt.GetUserReversePending(userID); got != 15_000 {
		t.Errorf("reverse pending = %d, want 15_000", got)
	}
	if got := bt.GetVaultBalance(tokenID); got != 10_000 {
		t.Errorf("token vault = %d, want 10_000", got)
	}

	// Burn the full pending, pay 4975 tokens net with a 25 fee.
	burn, err := jg.GenerateReverseBurn(userID, uuid.New(), tokenID, 15_000, 4_975, 25, 1001)
	if err != nil {
		t.Fatalf("GenerateReverseBurn: %v", err)
	}
	if err := bt.ApplyBatch(burn); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	if got := bt.GetUserReversePending(userID); got != 0 {
		t.Errorf("reverse pending after burn = %d, want 0", got)
	}
	if got := bt.GetBurnedTotal(ledger.StateAssetID); got != 15_000 {
		t.Errorf("state burned = %d, want 15_000", got)
	}
	if got := bt.GetFeesCollected(tokenID); got != 25 {
		t.Errorf("token fees = %d, want 25", got)
	}
	if got := bt.GetVaultBalance(tokenID); got != 5_000 {
		t.Errorf("token vault = %d, want 5_000", got)
	}
}

func TestGenerator_ReverseBurn_VaultPreCheck(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	tokenID := ledger.RegisterAsset("KITE")

	// Vault holds no tokens: payout must fail.
	_, err := jg.GenerateReverseBurn(uuid.New(), uuid.New(), tokenID, 15_000, 4_975, 25, 1000)
	if !errors.Is(err, ledger.ErrInsufficientVaultReserve) {
		t.Errorf("want ErrInsufficientVaultReserve, got %v", err)
	}
}

// ============================================================================
// Test: InvariantValidator
// ============================================================================

func TestInvariantValidator_GlobalBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)

	// Empty ledger — should pass
	if err := v.ValidateGlobalBalance(); err != nil {
		t.Errorf("empty ledger should have zero global balance: %v", err)
	}

	fundVault(bt, ledger.StateAssetID, 1_000_000)

	// Still zero-sum
	if err := v.ValidateGlobalBalance(); err != nil {
		t.Errorf("balanced ledger should have zero global balance: %v", err)
	}
}

func TestInvariantValidator_VaultNonNegative(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)
	userID := uuid.New()

	// Drain the vault below zero with a raw journal.
	bt.ApplyJournal(ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewUserAccountKey(userID, ledger.SubTypePending, ledger.StateAssetID),
		CreditAccount: ledger.VaultKey(ledger.StateAssetID),
		AssetID:       ledger.StateAssetID,
		Amount:        500,
	})

	if err := v.ValidateVaultNonNegative(ledger.StateAssetID); err == nil {
		t.Error("overdrawn vault should fail validation")
	}
	if err := v.ValidateUserPendingNonNegative(userID); err != nil {
		t.Errorf("pending is positive, should pass: %v", err)
	}
}
