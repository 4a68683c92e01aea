package ingestion

import (
	"AuctionLedger/internal/event"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates, parses, and converts raw
// events before sending to the deterministic core.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "ScheduleSet":
		return parseScheduleSet(raw.Data)
	case "VaultDeposit":
		return parseVaultDeposit(raw.Data)
	case "ParticipantRegistration":
		return parseRegistration(raw.Data)
	case "EntitlementMint":
		return parseEntitlementMint(raw.Data)
	case "AuctionClaim":
		return parseAuctionClaim(raw.Data)
	case "AuctionBurn":
		return parseAuctionBurn(raw.Data)
	case "AuctionSwap":
		return parseAuctionSwap(raw.Data)
	case "ReverseSwap":
		return parseReverseSwap(raw.Data)
	case "ReverseBurn":
		return parseReverseBurn(raw.Data)
	case "PoolRatioUpdate":
		return parsePoolRatioUpdate(raw.Data)
	case "DayRolloverTick":
		return parseDayRolloverTick(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers.

type scheduleSetJSON struct {
	ScheduleID     string   `json:"schedule_id"`
	Tokens         []string `json:"tokens"`
	StartUs        int64    `json:"start_us"`
	LimitDays      int64    `json:"limit_days"`
	ConfigSequence int64    `json:"config_sequence"`
	TimestampUs    int64    `json:"timestamp_us"`
}

func parseScheduleSet(data []byte) (*event.ScheduleSet, error) {
	var j scheduleSetJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ScheduleSet: %w", err)
	}
	scheduleID, err := uuid.Parse(j.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("parse schedule_id: %w", err)
	}
	if len(j.Tokens) == 0 {
		return nil, fmt.Errorf("parse ScheduleSet: empty token rotation")
	}
	return &event.ScheduleSet{
		ScheduleID:     scheduleID,
		Tokens:         j.Tokens,
		StartUs:        j.StartUs,
		LimitDays:      j.LimitDays,
		ConfigSequence: j.ConfigSequence,
		Timestamp:      time.UnixMicro(j.TimestampUs),
	}, nil
}

type vaultDepositJSON struct {
	DepositID   string `json:"deposit_id"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseVaultDeposit(data []byte) (*event.VaultDeposit, error) {
	var j vaultDepositJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse VaultDeposit: %w", err)
	}
	depositID, err := uuid.Parse(j.DepositID)
	if err != nil {
		return nil, fmt.Errorf("parse deposit_id: %w", err)
	}
	return &event.VaultDeposit{
		DepositID: depositID,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type registrationJSON struct {
	RegistrationID string `json:"registration_id"`
	UserID         string `json:"user_id"`
	Sequence       int64  `json:"sequence"`
	TimestampUs    int64  `json:"timestamp_us"`
}

func parseRegistration(data []byte) (*event.ParticipantRegistration, error) {
	var j registrationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ParticipantRegistration: %w", err)
	}
	registrationID, err := uuid.Parse(j.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("parse registration_id: %w", err)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	return &event.ParticipantRegistration{
		RegistrationID: registrationID,
		UserID:         userID,
		Sequence:       j.Sequence,
		Timestamp:      time.UnixMicro(j.TimestampUs),
	}, nil
}

type entitlementMintJSON struct {
	MintID      string `json:"mint_id"`
	UserID      string `json:"user_id"`
	Units       int64  `json:"units"`
	Origin      string `json:"origin,omitempty"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseEntitlementMint(data []byte) (*event.EntitlementMint, error) {
	var j entitlementMintJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse EntitlementMint: %w", err)
	}
	mintID, err := uuid.Parse(j.MintID)
	if err != nil {
		return nil, fmt.Errorf("parse mint_id: %w", err)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	return &event.EntitlementMint{
		MintID:    mintID,
		UserID:    userID,
		Units:     j.Units,
		Origin:    j.Origin,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type auctionClaimJSON struct {
	ClaimID     string `json:"claim_id"`
	UserID      string `json:"user_id"`
	Token       string `json:"token"`
	Units       int64  `json:"units"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseAuctionClaim(data []byte) (*event.AuctionClaim, error) {
	var j auctionClaimJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AuctionClaim: %w", err)
	}
	claimID, err := uuid.Parse(j.ClaimID)
	if err != nil {
		return nil, fmt.Errorf("parse claim_id: %w", err)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	return &event.AuctionClaim{
		ClaimID:      claimID,
		UserID:       userID,
		AuctionToken: j.Token,
		Units:        j.Units,
		Sequence:     j.Sequence,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}

type auctionBurnJSON struct {
	BurnID      string `json:"burn_id"`
	UserID      string `json:"user_id"`
	Token       string `json:"token"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseAuctionBurn(data []byte) (*event.AuctionBurn, error) {
	var j auctionBurnJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AuctionBurn: %w", err)
	}
	burnID, err := uuid.Parse(j.BurnID)
	if err != nil {
		return nil, fmt.Errorf("parse burn_id: %w", err)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	return &event.AuctionBurn{
		BurnID:       burnID,
		UserID:       userID,
		AuctionToken: j.Token,
		Sequence:     j.Sequence,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}

type auctionSwapJSON struct {
	SwapID      string `json:"swap_id"`
	UserID      string `json:"user_id"`
	Token       string `json:"token"`
	Amount      int64  `json:"amount"`
	MinOut      int64  `json:"min_out"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseAuctionSwap(data []byte) (*event.AuctionSwap, error) {
	var j auctionSwapJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AuctionSwap: %w", err)
	}
	swapID, err := uuid.Parse(j.SwapID)
	if err != nil {
		return nil, fmt.Errorf("parse swap_id: %w", err)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	return &event.AuctionSwap{
		SwapID:       swapID,
		UserID:       userID,
		AuctionToken: j.Token,
		Amount:       j.Amount,
		MinOut:       j.MinOut,
		Sequence:     j.Sequence,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}

type reverseSwapJSON struct {
	SwapID      string `json:"swap_id"`
	UserID      string `json:"user_id"`
	Token       string `json:"token"`
	TokenIn     int64  `json:"token_in"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseReverseSwap(data []byte) (*event.ReverseSwap, error) {
	var j reverseSwapJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ReverseSwap: %w", err)
	}
	swapID, err := uuid.Parse(j.SwapID)
	if err != nil {
		return nil, fmt.Errorf("parse swap_id: %w", err)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	return &event.ReverseSwap{
		SwapID:       swapID,
		UserID:       userID,
		AuctionToken: j.Token,
		TokenIn:      j.TokenIn,
		Sequence:     j.Sequence,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}

type reverseBurnJSON struct {
	BurnID      string `json:"burn_id"`
	UserID      string `json:"user_id"`
	Token       string `json:"token"`
	MinOut      int64  `json:"min_out"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseReverseBurn(data []byte) (*event.ReverseBurn, error) {
	var j reverseBurnJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ReverseBurn: %w", err)
	}
	burnID, err := uuid.Parse(j.BurnID)
	if err != nil {
		return nil, fmt.Errorf("parse burn_id: %w", err)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	return &event.ReverseBurn{
		BurnID:       burnID,
		UserID:       userID,
		AuctionToken: j.Token,
		MinOut:       j.MinOut,
		Sequence:     j.Sequence,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}

type poolRatioJSON struct {
	Token         string `json:"token"`
	RatioScaled   string `json:"ratio_scaled"` // Decimal string, 10^18 scale
	RatioSequence int64  `json:"ratio_sequence"`
	TimestampUs   int64  `json:"timestamp_us"`
}

func parsePoolRatioUpdate(data []byte) (*event.PoolRatioUpdate, error) {
	var j poolRatioJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PoolRatioUpdate: %w", err)
	}
	ratio, ok := new(big.Int).SetString(j.RatioScaled, 10)
	if !ok {
		return nil, fmt.Errorf("parse ratio_scaled: invalid decimal %q", j.RatioScaled)
	}
	if ratio.Sign() <= 0 {
		return nil, fmt.Errorf("parse ratio_scaled: must be positive, got %s", j.RatioScaled)
	}
	return &event.PoolRatioUpdate{
		AuctionToken:  j.Token,
		Ratio:         ratio,
		RatioSequence: j.RatioSequence,
		Timestamp:     time.UnixMicro(j.TimestampUs),
	}, nil
}

type dayRolloverTickJSON struct {
	TickID       string `json:"tick_id"`
	TickSequence int64  `json:"tick_sequence"`
	TimestampUs  int64  `json:"timestamp_us"`
}

func parseDayRolloverTick(data []byte) (*event.DayRolloverTick, error) {
	var j dayRolloverTickJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DayRolloverTick: %w", err)
	}
	tickID, err := uuid.Parse(j.TickID)
	if err != nil {
		return nil, fmt.Errorf("parse tick_id: %w", err)
	}
	return &event.DayRolloverTick{
		TickID:       tickID,
		TickSequence: j.TickSequence,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}
