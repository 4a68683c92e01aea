package state

import "fmt"

// AuctionParams defines the capacity and cadence limits of the engine
type AuctionParams struct {
	ParticipantCap     int64 // Global cap on registered participants
	MaxTokens          int64 // Max distinct tokens a schedule may carry
	MaxCyclesPerToken  int64 // Max settled cycles per (user, token)
	ReverseEvery       int64 // Every Nth appearance of a token runs in reverse
	ReverseLookback    int64 // Cycles of normal earnings a reverse swap may return
	EntitlementExpiry  int64 // Microseconds an entitlement unit stays spendable
	DayLengthUs        int64 // Auction window length in microseconds
	SupportedTokens    map[string]bool
}

var DefaultAuctionParams = &AuctionParams{
	ParticipantCap:    50_000,
	MaxTokens:         16,
	MaxCyclesPerToken: 64,
	ReverseEvery:      4,
	ReverseLookback:   3,
	EntitlementExpiry: 30 * 24 * 60 * 60 * 1_000_000, // 30 days
	DayLengthUs:       24 * 60 * 60 * 1_000_000,
	SupportedTokens: map[string]bool{
		"ORX":  true,
		"LUMA": true,
		"KITE": true,
		"VEX":  true,
	},
}

// ValidateAuctionParams checks that parameters are within valid ranges.
func ValidateAuctionParams(p *AuctionParams) error {
	if p.ParticipantCap <= 0 {
		return fmt.Errorf("participant_cap must be > 0, got %d", p.ParticipantCap)
	}
	if p.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be > 0, got %d", p.MaxTokens)
	}
	if p.MaxCyclesPerToken <= 0 {
		return fmt.Errorf("max_cycles_per_token must be > 0, got %d", p.MaxCyclesPerToken)
	}
	if p.ReverseEvery <= 1 {
		return fmt.Errorf("reverse_every must be > 1, got %d", p.ReverseEvery)
	}
	if p.ReverseLookback <= 0 {
		return fmt.Errorf("reverse_lookback must be > 0, got %d", p.ReverseLookback)
	}
	if p.DayLengthUs <= 0 {
		return fmt.Errorf("day_length_us must be > 0, got %d", p.DayLengthUs)
	}
	if p.EntitlementExpiry <= 0 {
		return fmt.Errorf("entitlement_expiry must be > 0, got %d", p.EntitlementExpiry)
	}
	if len(p.SupportedTokens) == 0 {
		return fmt.Errorf("supported_tokens must not be empty")
	}
	return nil
}
