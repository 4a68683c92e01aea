package ingestion

import (
	"AuctionLedger/internal/event"
	"AuctionLedger/internal/external"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GRPCIngestService provides admin/manual event injection via gRPC.
// gRPC ingest is for operator use and manual event injection, not for
// high-throughput ingestion (use NATS for that).
type GRPCIngestService struct {
	eventChan chan<- event.Event
	balances  external.BalanceSource
}

func NewGRPCIngestService(eventChan chan<- event.Event, balances external.BalanceSource) *GRPCIngestService {
	return &GRPCIngestService{eventChan: eventChan, balances: balances}
}

// InjectVaultDeposit manually injects a VaultDeposit event.
func (s *GRPCIngestService) InjectVaultDeposit(
	ctx context.Context,
	amount int64,
) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	evt := &event.VaultDeposit{
		DepositID: uuid.New(),
		Amount:    amount,
		Sequence:  time.Now().UnixMicro(), // Admin-injected: use timestamp as sequence
		Timestamp: time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectRegistration manually injects a ParticipantRegistration event.
func (s *GRPCIngestService) InjectRegistration(
	ctx context.Context,
	userID uuid.UUID,
) error {
	evt := &event.ParticipantRegistration{
		RegistrationID: uuid.New(),
		UserID:         userID,
		Sequence:       time.Now().UnixMicro(),
		Timestamp:      time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectEntitlementMint manually injects an EntitlementMint event.
func (s *GRPCIngestService) InjectEntitlementMint(
	ctx context.Context,
	userID uuid.UUID,
	units int64,
	origin string,
) error {
	if units <= 0 {
		return fmt.Errorf("units must be positive")
	}

	evt := &event.EntitlementMint{
		MintID:    uuid.New(),
		UserID:    userID,
		Units:     units,
		Origin:    origin,
		Sequence:  time.Now().UnixMicro(),
		Timestamp: time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectReverseSwap manually injects a ReverseSwap event. The user's
// wallet balance is checked against the router before injection; the
// core itself never calls out.
func (s *GRPCIngestService) InjectReverseSwap(
	ctx context.Context,
	userID uuid.UUID,
	token string,
	tokenIn int64,
	sequence int64,
) error {
	if tokenIn <= 0 {
		return fmt.Errorf("token_in must be positive")
	}

	if s.balances != nil {
		held, err := s.balances.BalanceOf(ctx, userID, token)
		if err != nil {
			return fmt.Errorf("balance check: %w", err)
		}
		if held < tokenIn {
			return external.ErrInsufficientBalance
		}
	}

	evt := &event.ReverseSwap{
		SwapID:       uuid.New(),
		UserID:       userID,
		AuctionToken: token,
		TokenIn:      tokenIn,
		Sequence:     sequence,
		Timestamp:    time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectRolloverTick manually injects a DayRolloverTick event.
func (s *GRPCIngestService) InjectRolloverTick(
	ctx context.Context,
	tickSequence int64,
) error {
	evt := &event.DayRolloverTick{
		TickID:       uuid.New(),
		TickSequence: tickSequence,
		Timestamp:    time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
