package ingestion_test

import (
	"AuctionLedger/internal/event"
	"AuctionLedger/internal/ingestion"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseScheduleSet(t *testing.T) {
	payload := map[string]interface{}{
		"schedule_id":     "550e8400-e29b-41d4-a716-446655440000",
		"tokens":          []string{"ORX", "LUMA", "KITE"},
		"start_us":        int64(1700000000000000),
		"limit_days":      int64(90),
		"config_sequence": int64(1),
		"timestamp_us":    int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "ScheduleSet")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ss, ok := evt.(*event.ScheduleSet)
	if !ok {
		t.Fatalf("expected *event.ScheduleSet, got %T", evt)
	}

	if len(ss.Tokens) != 3 {
		t.Fatalf("tokens: got %d, want 3", len(ss.Tokens))
	}
	if ss.Tokens[0] != "ORX" || ss.Tokens[2] != "KITE" {
		t.Errorf("rotation order: got %v", ss.Tokens)
	}
	if ss.LimitDays != 90 {
		t.Errorf("limit_days: got %d, want 90", ss.LimitDays)
	}
	if ss.EventType() != event.EventTypeScheduleSet {
		t.Errorf("event type: got %v, want ScheduleSet", ss.EventType())
	}
}

func TestParseScheduleSet_EmptyRotation_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"schedule_id":     "550e8400-e29b-41d4-a716-446655440000",
		"tokens":          []string{},
		"start_us":        int64(1700000000000000),
		"limit_days":      int64(90),
		"config_sequence": int64(1),
		"timestamp_us":    int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawEvent(raw, "ScheduleSet"); err == nil {
		t.Fatal("expected error for empty token rotation")
	}
}

func TestParseVaultDeposit(t *testing.T) {
	payload := map[string]interface{}{
		"deposit_id":   "550e8400-e29b-41d4-a716-446655440000",
		"amount":       int64(5_000_000),
		"sequence":     int64(7),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "VaultDeposit")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	vd, ok := evt.(*event.VaultDeposit)
	if !ok {
		t.Fatalf("expected *event.VaultDeposit, got %T", evt)
	}

	if vd.Amount != 5_000_000 {
		t.Errorf("amount: got %d, want 5_000_000", vd.Amount)
	}
	if vd.SourceSequence() != 7 {
		t.Errorf("sequence: got %d, want 7", vd.SourceSequence())
	}
	if vd.Token() != nil {
		t.Error("vault deposit should be a global event")
	}
}

func TestParseAuctionClaim(t *testing.T) {
	payload := map[string]interface{}{
		"claim_id":     "550e8400-e29b-41d4-a716-446655440000",
		"user_id":      "660e8400-e29b-41d4-a716-446655440001",
		"token":        "ORX",
		"units":        int64(5),
		"sequence":     int64(3),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "AuctionClaim")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ac, ok := evt.(*event.AuctionClaim)
	if !ok {
		t.Fatalf("expected *event.AuctionClaim, got %T", evt)
	}

	if ac.AuctionToken != "ORX" {
		t.Errorf("token: got %s, want ORX", ac.AuctionToken)
	}
	if ac.Units != 5 {
		t.Errorf("units: got %d, want 5", ac.Units)
	}
	if ac.Token() == nil || *ac.Token() != "ORX" {
		t.Error("claim should carry a token partition")
	}
}

func TestParseAuctionSwap(t *testing.T) {
	payload := map[string]interface{}{
		"swap_id":      "550e8400-e29b-41d4-a716-446655440000",
		"user_id":      "660e8400-e29b-41d4-a716-446655440001",
		"token":        "ORX",
		"amount":       int64(0),
		"min_out":      int64(9_500),
		"sequence":     int64(12),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "AuctionSwap")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	as, ok := evt.(*event.AuctionSwap)
	if !ok {
		t.Fatalf("expected *event.AuctionSwap, got %T", evt)
	}

	if as.Amount != 0 {
		t.Errorf("amount: got %d, want 0 (full release)", as.Amount)
	}
	if as.MinOut != 9_500 {
		t.Errorf("min_out: got %d, want 9_500", as.MinOut)
	}
}

func TestParseReverseSwap(t *testing.T) {
	payload := map[string]interface{}{
		"swap_id":      "550e8400-e29b-41d4-a716-446655440000",
		"user_id":      "660e8400-e29b-41d4-a716-446655440001",
		"token":        "LUMA",
		"token_in":     int64(20_000),
		"sequence":     int64(2),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "ReverseSwap")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	rs, ok := evt.(*event.ReverseSwap)
	if !ok {
		t.Fatalf("expected *event.ReverseSwap, got %T", evt)
	}

	if rs.TokenIn != 20_000 {
		t.Errorf("token_in: got %d, want 20_000", rs.TokenIn)
	}
	if rs.AuctionToken != "LUMA" {
		t.Errorf("token: got %s, want LUMA", rs.AuctionToken)
	}
}

func TestParsePoolRatioUpdate(t *testing.T) {
	payload := map[string]interface{}{
		"token":          "ORX",
		"ratio_scaled":   "1500000000000000000",
		"ratio_sequence": int64(42),
		"timestamp_us":   int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "PoolRatioUpdate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pr, ok := evt.(*event.PoolRatioUpdate)
	if !ok {
		t.Fatalf("expected *event.PoolRatioUpdate, got %T", evt)
	}

	if pr.Ratio.String() != "1500000000000000000" {
		t.Errorf("ratio: got %s, want 1500000000000000000", pr.Ratio.String())
	}
	if pr.RatioSequence != 42 {
		t.Errorf("ratio_sequence: got %d, want 42", pr.RatioSequence)
	}
	if pr.IdempotencyKey() != "ratio:ORX:42" {
		t.Errorf("idempotency key: got %s", pr.IdempotencyKey())
	}
}

func TestParsePoolRatioUpdate_BadDecimal_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"token":          "ORX",
		"ratio_scaled":   "1.5e18",
		"ratio_sequence": int64(42),
		"timestamp_us":   int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawEvent(raw, "PoolRatioUpdate"); err == nil {
		t.Fatal("expected error for non-integer ratio string")
	}
}

func TestParsePoolRatioUpdate_NonPositive_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"token":          "ORX",
		"ratio_scaled":   "0",
		"ratio_sequence": int64(42),
		"timestamp_us":   int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawEvent(raw, "PoolRatioUpdate"); err == nil {
		t.Fatal("expected error for zero ratio")
	}
}

func TestParseDayRolloverTick(t *testing.T) {
	payload := map[string]interface{}{
		"tick_id":       "550e8400-e29b-41d4-a716-446655440000",
		"tick_sequence": int64(99),
		"timestamp_us":  int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "DayRolloverTick")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	tick, ok := evt.(*event.DayRolloverTick)
	if !ok {
		t.Fatalf("expected *event.DayRolloverTick, got %T", evt)
	}

	if tick.TickSequence != 99 {
		t.Errorf("tick_sequence: got %d, want 99", tick.TickSequence)
	}
}

func TestParseUnknownEventType_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawEvent(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawEvent(raw, "AuctionClaim")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"claim_id":     "not-a-uuid",
		"user_id":      "also-not-a-uuid",
		"token":        "ORX",
		"units":        int64(1),
		"sequence":     int64(0),
		"timestamp_us": int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "AuctionClaim")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}

func TestMarshalEventRoundTrip_Swap(t *testing.T) {
	orig := &event.AuctionSwap{
		SwapID:       uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		UserID:       uuid.MustParse("660e8400-e29b-41d4-a716-446655440001"),
		AuctionToken: "ORX",
		Amount:       0,
		MinOut:       9_500,
		Sequence:     12,
		Timestamp:    time.UnixMicro(1700000000000000),
	}

	data, err := ingestion.MarshalEvent(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	raw := ingestion.RawEvent{Data: data}
	evt, err := ingestion.ParseRawEvent(raw, orig.EventType().String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	got, ok := evt.(*event.AuctionSwap)
	if !ok {
		t.Fatalf("expected *event.AuctionSwap, got %T", evt)
	}
	if *got != *orig {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, orig)
	}
}

func TestMarshalEventRoundTrip_Ratio(t *testing.T) {
	orig := &event.PoolRatioUpdate{
		AuctionToken:  "LUMA",
		Ratio:         big.NewInt(1_500_000_000),
		RatioSequence: 42,
		Timestamp:     time.UnixMicro(1700000000000000),
	}
	orig.Ratio.Mul(orig.Ratio, big.NewInt(1_000_000_000))

	data, err := ingestion.MarshalEvent(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	raw := ingestion.RawEvent{Data: data}
	evt, err := ingestion.ParseRawEvent(raw, orig.EventType().String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	got, ok := evt.(*event.PoolRatioUpdate)
	if !ok {
		t.Fatalf("expected *event.PoolRatioUpdate, got %T", evt)
	}
	if got.Ratio.Cmp(orig.Ratio) != 0 {
		t.Errorf("ratio: got %s, want %s", got.Ratio, orig.Ratio)
	}
	if !got.Timestamp.Equal(orig.Timestamp) {
		t.Errorf("timestamp: got %v, want %v", got.Timestamp, orig.Timestamp)
	}
}
