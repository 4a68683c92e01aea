package ingestion

import (
	"encoding/json"
	"fmt"

	"AuctionLedger/internal/event"
)

// MarshalEvent encodes a typed event back into its wire JSON form. The
// event log stores wire-format payloads so replay can feed them straight
// through ParseRawEvent.
func MarshalEvent(evt event.Event) ([]byte, error) {
	switch e := evt.(type) {
	case *event.ScheduleSet:
		return json.Marshal(scheduleSetJSON{
			ScheduleID:     e.ScheduleID.String(),
			Tokens:         e.Tokens,
			StartUs:        e.StartUs,
			LimitDays:      e.LimitDays,
			ConfigSequence: e.ConfigSequence,
			TimestampUs:    e.Timestamp.UnixMicro(),
		})
	case *event.VaultDeposit:
		return json.Marshal(vaultDepositJSON{
			DepositID:   e.DepositID.String(),
			Amount:      e.Amount,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp.UnixMicro(),
		})
	case *event.ParticipantRegistration:
		return json.Marshal(registrationJSON{
			RegistrationID: e.RegistrationID.String(),
			UserID:         e.UserID.String(),
			Sequence:       e.Sequence,
			TimestampUs:    e.Timestamp.UnixMicro(),
		})
	case *event.EntitlementMint:
		return json.Marshal(entitlementMintJSON{
			MintID:      e.MintID.String(),
			UserID:      e.UserID.String(),
			Units:       e.Units,
			Origin:      e.Origin,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp.UnixMicro(),
		})
	case *event.AuctionClaim:
		return json.Marshal(auctionClaimJSON{
			ClaimID:     e.ClaimID.String(),
			UserID:      e.UserID.String(),
			Token:       e.AuctionToken,
			Units:       e.Units,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp.UnixMicro(),
		})
	case *event.AuctionBurn:
		return json.Marshal(auctionBurnJSON{
			BurnID:      e.BurnID.String(),
			UserID:      e.UserID.String(),
			Token:       e.AuctionToken,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp.UnixMicro(),
		})
	case *event.AuctionSwap:
		return json.Marshal(auctionSwapJSON{
			SwapID:      e.SwapID.String(),
			UserID:      e.UserID.String(),
			Token:       e.AuctionToken,
			Amount:      e.Amount,
			MinOut:      e.MinOut,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp.UnixMicro(),
		})
	case *event.ReverseSwap:
		return json.Marshal(reverseSwapJSON{
			SwapID:      e.SwapID.String(),
			UserID:      e.UserID.String(),
			Token:       e.AuctionToken,
			TokenIn:     e.TokenIn,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp.UnixMicro(),
		})
	case *event.ReverseBurn:
		return json.Marshal(reverseBurnJSON{
			BurnID:      e.BurnID.String(),
			UserID:      e.UserID.String(),
			Token:       e.AuctionToken,
			MinOut:      e.MinOut,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp.UnixMicro(),
		})
	case *event.PoolRatioUpdate:
		return json.Marshal(poolRatioJSON{
			Token:         e.AuctionToken,
			RatioScaled:   e.Ratio.String(),
			RatioSequence: e.RatioSequence,
			TimestampUs:   e.Timestamp.UnixMicro(),
		})
	case *event.DayRolloverTick:
		return json.Marshal(dayRolloverTickJSON{
			TickID:       e.TickID.String(),
			TickSequence: e.TickSequence,
			TimestampUs:  e.Timestamp.UnixMicro(),
		})
	default:
		return nil, fmt.Errorf("unknown event type: %T", evt)
	}
}
