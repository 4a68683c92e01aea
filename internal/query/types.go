package query

import "github.com/google/uuid"

// AuctionStatusResponse describes the installed rotation and the window
// that is active right now.
type AuctionStatusResponse struct {
	Tokens    []string `json:"tokens"`
	StartUs   int64    `json:"start_us"`
	LimitDays int64    `json:"limit_days"`

	// Active window, derived at query time from the schedule row.
	DayIndex      int64  `json:"day_index"`
	ActiveToken   string `json:"active_token"`
	Mode          string `json:"mode"`
	Cycle         int64  `json:"cycle"`
	WindowStartUs int64  `json:"window_start_us"`
	WindowEndUs   int64  `json:"window_end_us"`
	Expired       bool   `json:"expired"`

	AsOfSequence int64 `json:"as_of_sequence"`
}

// CycleProgressResponse is one settled cycle row for a (user, token) pair.
type CycleProgressResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Token  string    `json:"token"`
	Cycle  int64     `json:"cycle"`
	Step   string    `json:"step"`

	UnitsConsumed      int64 `json:"units_consumed"`
	TokensGranted      int64 `json:"tokens_granted"`
	TokensBurned       int64 `json:"tokens_burned"`
	PendingState       int64 `json:"pending_state"`
	StateReleased      int64 `json:"state_released"`
	ReverseTokenIn     int64 `json:"reverse_token_in"`
	ReversePending     int64 `json:"reverse_pending"`
	ReverseStateBurned int64 `json:"reverse_state_burned"`
	TokensEarnedBack   int64 `json:"tokens_earned_back"`
	FeesPaid           int64 `json:"fees_paid"`
	SwapCount          int64 `json:"swap_count"`

	AsOfSequence int64 `json:"as_of_sequence"`
}

// UserProgressResponse bundles a user's registration and all of their
// cycle rows across tokens.
type UserProgressResponse struct {
	UserID         uuid.UUID               `json:"user_id"`
	Registered     bool                    `json:"registered"`
	RegisteredAtUs int64                   `json:"registered_at_us,omitempty"`
	PendingState   int64                   `json:"pending_state"`
	ReversePending int64                   `json:"reverse_pending_state"`
	Cycles         []CycleProgressResponse `json:"cycles"`
	AsOfSequence   int64                   `json:"as_of_sequence"`
}

// DailyStatsResponse is one closed day's aggregate.
type DailyStatsResponse struct {
	DayIndex       int64  `json:"day_index"`
	Token          string `json:"token"`
	Reverse        bool   `json:"reverse"`
	Participants   int64  `json:"participants"`
	ClaimCount     int64  `json:"claim_count"`
	UnitsConsumed  int64  `json:"units_consumed"`
	TokensBurned   int64  `json:"tokens_burned"`
	StateReleased  int64  `json:"state_released"`
	ReverseTokenIn int64  `json:"reverse_token_in"`
	StateBurned    int64  `json:"state_burned"`
	TokensPaidOut  int64  `json:"tokens_paid_out"`
	FeesCollected  int64  `json:"fees_collected"`
	SwapCount      int64  `json:"swap_count"`
	ClosedAtSeq    int64  `json:"closed_at_seq"`
	AsOfSequence   int64  `json:"as_of_sequence"`
}

// CapacityResponse reports the STATE capacity ledger at a glance.
type CapacityResponse struct {
	Asset               string `json:"asset"`
	VaultReserve        int64  `json:"vault_reserve"`
	FeesAccrued         int64  `json:"fees_accrued"`
	TotalPending        int64  `json:"total_pending"`
	TotalReversePending int64  `json:"total_reverse_pending"`
	AsOfSequence        int64  `json:"as_of_sequence"`
}

// SettlementHistoryEntry is one journal leg touching a user.
type SettlementHistoryEntry struct {
	JournalID    string     `json:"journal_id"`
	Sequence     int64      `json:"sequence"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	Token        *string    `json:"token,omitempty"`
	EventType    string     `json:"event_type"`
	JournalType  int32      `json:"journal_type"`
	Amount       int64      `json:"amount"`
	Asset        string     `json:"asset"`
	TimestampUs  int64      `json:"timestamp_us"`
	AsOfSequence int64      `json:"as_of_sequence"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset represents an asset with non-zero global balance sum.
type UnbalancedAsset struct {
	Asset     string `json:"asset"`
	Imbalance int64  `json:"imbalance"`
}
