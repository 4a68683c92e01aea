package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"AuctionLedger/internal/observability"
	"AuctionLedger/internal/schedule"
	"AuctionLedger/internal/state"
)

// ErrScheduleNotSet is returned when no rotation has been installed yet.
var ErrScheduleNotSet = fmt.Errorf("schedule not set")

// QueryService provides read-only access to projection tables. All
// responses carry as_of_sequence, the projection watermark at read time;
// callers that need read-your-writes compare it to the sequence an
// injection returned.
type QueryService struct {
	db      *sql.DB
	params  *state.AuctionParams
	metrics *observability.Metrics
}

func NewQueryService(db *sql.DB, params *state.AuctionParams, metrics *observability.Metrics) *QueryService {
	if params == nil {
		params = state.DefaultAuctionParams
	}
	return &QueryService{db: db, params: params, metrics: metrics}
}

// GetAuctionStatus returns the installed rotation and the window active
// at nowUs. The active token and mode are derived from the schedule row
// with the same arithmetic the core uses.
func (qs *QueryService) GetAuctionStatus(ctx context.Context, nowUs int64) (resp *AuctionStatusResponse, err error) {
	defer qs.observe("auction_status", time.Now(), &err)

	asOfSeq, err := qs.getWatermark(ctx, "auction_status")
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var tokens pq.StringArray
	var startUs, limitDays int64
	err = qs.db.QueryRowContext(ctx, `
		SELECT tokens, start_us, limit_days FROM projections.schedule
	`).Scan(&tokens, &startUs, &limitDays)
	if err == sql.ErrNoRows {
		return nil, ErrScheduleNotSet
	}
	if err != nil {
		return nil, err
	}

	tbl := schedule.NewTable(qs.params.DayLengthUs, qs.params.ReverseEvery)
	tbl.Restore(tokens, startUs, limitDays)

	resp = &AuctionStatusResponse{
		Tokens:       tokens,
		StartUs:      startUs,
		LimitDays:    limitDays,
		AsOfSequence: asOfSeq,
	}

	dayIdx, dayErr := tbl.DayIndex(nowUs)
	if dayErr != nil {
		// Before start or past the day limit: the rotation exists but no
		// window is active.
		resp.Expired = nowUs >= startUs
		return resp, nil
	}

	token, _ := tbl.TokenOfDay(nowUs)
	winStart, winEnd, _ := tbl.ActiveWindow(nowUs)
	resp.DayIndex = dayIdx
	resp.ActiveToken = token
	resp.Mode = tbl.ModeFor(token, nowUs).String()
	resp.Cycle = tbl.AppearanceCount(token, nowUs)
	resp.WindowStartUs = winStart
	resp.WindowEndUs = winEnd
	return resp, nil
}

// GetCycleProgress returns all settled cycle rows for a (user, token)
// pair, oldest cycle first.
func (qs *QueryService) GetCycleProgress(ctx context.Context, userID uuid.UUID, token string) (cycles []CycleProgressResponse, err error) {
	defer qs.observe("cycle_progress", time.Now(), &err)

	asOfSeq, err := qs.getWatermark(ctx, "cycle_progress")
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT cycle, step, units_consumed, tokens_granted, tokens_burned,
		       pending_state, state_released, reverse_token_in, reverse_pending,
		       reverse_state_burned, tokens_earned_back, fees_paid, swap_count
		FROM projections.cycle_progress
		WHERE user_id = $1 AND token = $2
		ORDER BY cycle
	`, userID, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c := CycleProgressResponse{UserID: userID, Token: token, AsOfSequence: asOfSeq}
		if err := rows.Scan(
			&c.Cycle, &c.Step, &c.UnitsConsumed, &c.TokensGranted, &c.TokensBurned,
			&c.PendingState, &c.StateReleased, &c.ReverseTokenIn, &c.ReversePending,
			&c.ReverseStateBurned, &c.TokensEarnedBack, &c.FeesPaid, &c.SwapCount,
		); err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// GetUserProgress returns a user's registration, STATE balances, and
// every cycle row across all tokens.
func (qs *QueryService) GetUserProgress(ctx context.Context, userID uuid.UUID) (resp *UserProgressResponse, err error) {
	defer qs.observe("user_progress", time.Now(), &err)

	asOfSeq, err := qs.getWatermark(ctx, "user_progress")
	if err != nil {
		return nil, err
	}

	resp = &UserProgressResponse{UserID: userID, AsOfSequence: asOfSeq}

	var registeredAt int64
	err = qs.db.QueryRowContext(ctx, `
		SELECT registered_at_us FROM projections.registrations WHERE user_id = $1
	`, userID).Scan(&registeredAt)
	switch {
	case err == sql.ErrNoRows:
		// Unregistered users still get a response; everything is zero.
		err = nil
	case err != nil:
		return nil, err
	default:
		resp.Registered = true
		resp.RegisteredAtUs = registeredAt
	}

	pendingPath := fmt.Sprintf("user:%s:pending:STATE", userID)
	reversePath := fmt.Sprintf("user:%s:reverse_pending:STATE", userID)
	if resp.PendingState, err = qs.getProjectedBalance(ctx, pendingPath); err != nil {
		return nil, err
	}
	if resp.ReversePending, err = qs.getProjectedBalance(ctx, reversePath); err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT token, cycle, step, units_consumed, tokens_granted, tokens_burned,
		       pending_state, state_released, reverse_token_in, reverse_pending,
		       reverse_state_burned, tokens_earned_back, fees_paid, swap_count
		FROM projections.cycle_progress
		WHERE user_id = $1
		ORDER BY token, cycle
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c := CycleProgressResponse{UserID: userID, AsOfSequence: asOfSeq}
		if err := rows.Scan(
			&c.Token, &c.Cycle, &c.Step, &c.UnitsConsumed, &c.TokensGranted, &c.TokensBurned,
			&c.PendingState, &c.StateReleased, &c.ReverseTokenIn, &c.ReversePending,
			&c.ReverseStateBurned, &c.TokensEarnedBack, &c.FeesPaid, &c.SwapCount,
		); err != nil {
			return nil, err
		}
		resp.Cycles = append(resp.Cycles, c)
	}
	return resp, rows.Err()
}

// GetDailyStats returns closed-day aggregates, newest first, with
// cursor pagination on day_index.
func (qs *QueryService) GetDailyStats(ctx context.Context, limit int, beforeDay *int64) (stats []DailyStatsResponse, err error) {
	defer qs.observe("daily_stats", time.Now(), &err)

	asOfSeq, err := qs.getWatermark(ctx, "daily_stats")
	if err != nil {
		return nil, err
	}

	query := `
		SELECT day_index, token, reverse, participants, claim_count,
		       units_consumed, tokens_burned, state_released, reverse_token_in,
		       state_burned, tokens_paid_out, fees_collected, swap_count, closed_at_seq
		FROM projections.daily_stats
	`
	args := []interface{}{}
	argIdx := 1

	if beforeDay != nil {
		query += fmt.Sprintf(" WHERE day_index < $%d", argIdx)
		args = append(args, *beforeDay)
		argIdx++
	}

	query += " ORDER BY day_index DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		d := DailyStatsResponse{AsOfSequence: asOfSeq}
		if err := rows.Scan(
			&d.DayIndex, &d.Token, &d.Reverse, &d.Participants, &d.ClaimCount,
			&d.UnitsConsumed, &d.TokensBurned, &d.StateReleased, &d.ReverseTokenIn,
			&d.StateBurned, &d.TokensPaidOut, &d.FeesCollected, &d.SwapCount, &d.ClosedAtSeq,
		); err != nil {
			return nil, err
		}
		stats = append(stats, d)
	}
	return stats, rows.Err()
}

// GetCapacity reports the STATE capacity ledger: vault reserve, accrued
// fees, and the total pending obligations across all users.
func (qs *QueryService) GetCapacity(ctx context.Context) (resp *CapacityResponse, err error) {
	defer qs.observe("capacity", time.Now(), &err)

	asOfSeq, err := qs.getWatermark(ctx, "capacity")
	if err != nil {
		return nil, err
	}

	resp = &CapacityResponse{Asset: "STATE", AsOfSequence: asOfSeq}

	if resp.VaultReserve, err = qs.getProjectedBalance(ctx, "system:vault:STATE"); err != nil {
		return nil, err
	}
	if resp.FeesAccrued, err = qs.getProjectedBalance(ctx, "system:fees:STATE"); err != nil {
		return nil, err
	}

	err = qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(balance) FILTER (WHERE account_path LIKE 'user:%:pending:STATE'), 0),
		       COALESCE(SUM(balance) FILTER (WHERE account_path LIKE 'user:%:reverse_pending:STATE'), 0)
		FROM projections.balances
		WHERE scope = 'user' AND asset = 'STATE'
	`).Scan(&resp.TotalPending, &resp.TotalReversePending)
	if err != nil {
		return nil, err
	}

	if qs.metrics != nil {
		qs.metrics.VaultReserveBalance.WithLabelValues("STATE").Set(float64(resp.VaultReserve))
	}
	return resp, nil
}

// GetSettlementHistory returns journal legs touching a user, newest
// first, with cursor pagination on sequence.
func (qs *QueryService) GetSettlementHistory(
	ctx context.Context,
	userID uuid.UUID,
	token *string,
	limit int,
	afterSequence *int64,
) (history []SettlementHistoryEntry, err error) {
	defer qs.observe("settlement_history", time.Now(), &err)

	asOfSeq, err := qs.getWatermark(ctx, "settlement_history")
	if err != nil {
		return nil, err
	}

	query := `
		SELECT journal_id, sequence, token, event_type, journal_type, amount, asset, timestamp_us
		FROM projections.settlement_history
		WHERE user_id = $1
	`
	args := []interface{}{userID}
	argIdx := 2

	if token != nil {
		query += fmt.Sprintf(" AND token = $%d", argIdx)
		args = append(args, *token)
		argIdx++
	}

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		e := SettlementHistoryEntry{AsOfSequence: asOfSeq}
		uid := userID
		e.UserID = &uid
		if err := rows.Scan(
			&e.JournalID, &e.Sequence, &e.Token, &e.EventType,
			&e.JournalType, &e.Amount, &e.Asset, &e.TimestampUs,
		); err != nil {
			return nil, err
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity in the event log and the
// zero-sum invariant in the balance projection.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (report *IntegrityReport, err error) {
	defer qs.observe("verify_integrity", time.Now(), &err)

	report = &IntegrityReport{}

	// Each event's prev_hash must equal the previous event's state_hash.
	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Double entry: every asset must sum to zero across all accounts.
	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT asset, SUM(balance) AS total
		FROM projections.balances
		GROUP BY asset
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var asset string
		var total int64
		if err := balanceRows.Scan(&asset, &total); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, UnbalancedAsset{
			Asset:     asset,
			Imbalance: total,
		})
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context, endpoint string) (int64, error) {
	var seq int64
	var lagSeconds float64
	err := qs.db.QueryRowContext(ctx, `
		SELECT last_sequence, EXTRACT(EPOCH FROM (NOW() - updated_at))
		FROM projections.watermark WHERE singleton = TRUE
	`).Scan(&seq, &lagSeconds)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err == nil && qs.metrics != nil {
		qs.metrics.QueryFreshnessLag.WithLabelValues(endpoint).Observe(lagSeconds)
	}
	return seq, err
}

func (qs *QueryService) getProjectedBalance(ctx context.Context, accountPath string) (int64, error) {
	var balance int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT balance FROM projections.balances WHERE account_path = $1
	`, accountPath).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

func (qs *QueryService) observe(endpoint string, start time.Time, errp *error) {
	if qs.metrics == nil {
		return
	}
	status := "ok"
	if *errp != nil {
		status = "error"
		qs.metrics.QueryErrors.WithLabelValues(endpoint, "internal").Inc()
	}
	qs.metrics.QueryRequests.WithLabelValues(endpoint, status).Inc()
	qs.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
