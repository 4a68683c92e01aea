package projection

import (
	"AuctionLedger/internal/ledger"
	"AuctionLedger/internal/observability"
	"AuctionLedger/internal/state"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProjectionOutput mirrors the data projection workers need.
// The orchestrator bridges between core.CoreOutput and this.
type ProjectionOutput struct {
	Sequence       int64
	EventType      string
	Token          *string
	UserID         *uuid.UUID
	Schedule       *ScheduleInfo // Set for ScheduleSet events
	Payload        []byte        // Envelope payload for derived events (DayClosed)
	CycleRecord    *state.CycleRecord
	JournalEntries []JournalEntry
	TimestampUs    int64
}

// ScheduleInfo carries the installed rotation for the schedule projection.
type ScheduleInfo struct {
	Tokens    []string
	StartUs   int64
	LimitDays int64
}

// JournalEntry is a simplified journal for projection consumption.
type JournalEntry struct {
	JournalID     string
	DebitAccount  string
	CreditAccount string
	Asset         string
	Amount        int64
	JournalType   int32
}

// ProjectionWorker updates projection tables from processed events.
// The projection channel is non-blocking with drop: if projections fall
// behind, they can be rebuilt from the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	metrics   *observability.Metrics
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput, metrics *observability.Metrics) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := pw.processOutput(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", output.Sequence, err)
				// Continue — projections are eventually consistent
				// and can be rebuilt from the event log
			}
			if pw.metrics != nil {
				pw.metrics.ProjectionUpdateDur.WithLabelValues("main").Observe(time.Since(start).Seconds())
			}

			pw.lastSeq = output.Sequence
			pw.recordDomainMetrics(output)
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, j := range output.JournalEntries {
		if err := pw.updateBalanceProjection(ctx, tx, j, output.Sequence); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
		if err := insertSettlementHistory(ctx, tx, output, j); err != nil {
			return fmt.Errorf("settlement history: %w", err)
		}
	}

	switch output.EventType {
	case "ParticipantRegistration":
		if output.UserID != nil {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO projections.registrations (user_id, registered_at_us, sequence)
				VALUES ($1, $2, $3)
				ON CONFLICT (user_id) DO NOTHING
			`, *output.UserID, output.TimestampUs, output.Sequence); err != nil {
				return fmt.Errorf("registration projection: %w", err)
			}
		}

	case "ScheduleSet":
		if output.Schedule != nil {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO projections.schedule (singleton, tokens, start_us, limit_days, updated_seq)
				VALUES (TRUE, $1, $2, $3, $4)
				ON CONFLICT (singleton) DO UPDATE
					SET tokens = $1, start_us = $2, limit_days = $3, updated_seq = $4
			`, sqlStringArray(output.Schedule.Tokens), output.Schedule.StartUs,
				output.Schedule.LimitDays, output.Sequence); err != nil {
				return fmt.Errorf("schedule projection: %w", err)
			}
		}

	case "DayClosed":
		if err := pw.upsertDailyStats(ctx, tx, output); err != nil {
			return fmt.Errorf("daily stats projection: %w", err)
		}
	}

	if output.CycleRecord != nil {
		if err := pw.upsertCycleProgress(ctx, tx, output.CycleRecord, output.Sequence); err != nil {
			return fmt.Errorf("cycle progress projection: %w", err)
		}
	}

	// Freshness watermark
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (singleton, last_sequence, updated_at)
		VALUES (TRUE, $1, NOW())
		ON CONFLICT (singleton) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// updateBalanceProjection applies one journal entry. Debits increase the
// account balance, credits decrease it, matching the in-memory tracker.
func (pw *ProjectionWorker) updateBalanceProjection(ctx context.Context, tx *sql.Tx, j JournalEntry, seq int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, scope, asset, balance, updated_seq)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_path)
		DO UPDATE SET balance = projections.balances.balance + $4, updated_seq = $5
	`, j.DebitAccount, accountScope(j.DebitAccount), j.Asset, j.Amount, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, scope, asset, balance, updated_seq)
		VALUES ($1, $2, $3, -$4, $5)
		ON CONFLICT (account_path)
		DO UPDATE SET balance = projections.balances.balance - $4, updated_seq = $5
	`, j.CreditAccount, accountScope(j.CreditAccount), j.Asset, j.Amount, seq); err != nil {
		return err
	}

	return nil
}

func (pw *ProjectionWorker) upsertCycleProgress(ctx context.Context, tx *sql.Tx, rec *state.CycleRecord, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.cycle_progress
			(user_id, token, cycle, step, units_consumed, tokens_granted, tokens_burned,
			 pending_state, state_released, reverse_token_in, reverse_pending,
			 reverse_state_burned, tokens_earned_back, fees_paid, swap_count, updated_seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (user_id, token, cycle) DO UPDATE SET
			step = $4, units_consumed = $5, tokens_granted = $6, tokens_burned = $7,
			pending_state = $8, state_released = $9, reverse_token_in = $10,
			reverse_pending = $11, reverse_state_burned = $12, tokens_earned_back = $13,
			fees_paid = $14, swap_count = $15, updated_seq = $16
	`, rec.UserID, rec.Token, rec.Cycle, rec.Step.String(),
		rec.UnitsConsumed, rec.TokensGranted, rec.TokensBurned,
		rec.PendingState, rec.StateReleased, rec.ReverseTokenIn, rec.ReversePending,
		rec.ReverseStateBurned, rec.TokensEarnedBack, rec.FeesPaid, rec.SwapCount, seq)
	return err
}

func (pw *ProjectionWorker) upsertDailyStats(ctx context.Context, tx *sql.Tx, output ProjectionOutput) error {
	var stats state.DayStats
	if err := json.Unmarshal(output.Payload, &stats); err != nil {
		return fmt.Errorf("unmarshal day stats: %w", err)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.daily_stats
			(day_index, token, reverse, participants, claim_count, units_consumed,
			 tokens_burned, state_released, reverse_token_in, state_burned,
			 tokens_paid_out, fees_collected, swap_count, closed_at_seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (day_index) DO NOTHING
	`, stats.DayIndex, stats.Token, stats.Reverse, stats.Participants,
		stats.ClaimCount, stats.UnitsConsumed, stats.TokensBurned,
		stats.StateReleased, stats.ReverseTokenIn, stats.StateBurned,
		stats.TokensPaidOut, stats.FeesCollected, stats.SwapCount, output.Sequence)
	return err
}

// recordDomainMetrics feeds the settlement metric families. Projections
// may drop events under load, so these are operational signals, not
// authoritative totals.
func (pw *ProjectionWorker) recordDomainMetrics(output ProjectionOutput) {
	if pw.metrics == nil {
		return
	}

	token := ""
	if output.Token != nil {
		token = *output.Token
	}

	switch output.EventType {
	case "AuctionClaim", "AuctionBurn", "AuctionSwap", "ReverseSwap", "ReverseBurn":
		pw.metrics.SettlementSteps.WithLabelValues(token, output.EventType).Inc()
	case "DayClosed":
		var stats state.DayStats
		if err := json.Unmarshal(output.Payload, &stats); err == nil {
			pw.metrics.DaysClosed.WithLabelValues(stats.Token).Inc()
			pw.metrics.DayParticipants.WithLabelValues(stats.Token).Set(float64(stats.Participants))
			pw.metrics.CurrentDayIndex.Set(float64(stats.DayIndex + 1))
			pw.metrics.UnitsConsumed.WithLabelValues(stats.Token).Add(float64(stats.UnitsConsumed))
		}
	}

	for _, j := range output.JournalEntries {
		switch ledger.JournalType(j.JournalType) {
		case ledger.JournalTypeTokenBurn:
			pw.metrics.TokensBurned.WithLabelValues(token).Add(float64(j.Amount))
		case ledger.JournalTypeSettlementRelease:
			pw.metrics.StateReleased.WithLabelValues(token).Add(float64(j.Amount))
		case ledger.JournalTypeReverseFund:
			pw.metrics.ReverseTokenIn.WithLabelValues(token).Add(float64(j.Amount))
		case ledger.JournalTypeReversePayout:
			pw.metrics.TokensPaidOut.WithLabelValues(token).Add(float64(j.Amount))
		case ledger.JournalTypeSettlementFee, ledger.JournalTypeReverseFee:
			pw.metrics.FeesCollected.WithLabelValues(token).Add(float64(j.Amount))
		}
	}
}

// accountScope extracts the namespace prefix from an account path,
// e.g. "user:<uuid>:pending:STATE" -> "user".
func accountScope(path string) string {
	if i := strings.IndexByte(path, ':'); i > 0 {
		return path[:i]
	}
	return "unknown"
}

// sqlStringArray renders a Postgres text[] literal. lib/pq accepts
// array literals as text parameters.
func sqlStringArray(items []string) string {
	escaped := make([]string, len(items))
	for i, s := range items {
		escaped[i] = `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return "{" + strings.Join(escaped, ",") + "}"
}

// RebuildProjections rebuilds balance projections from the event log.
// Cycle progress and daily stats reflow as the core re-emits events
// during replay.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.cycle_progress`,
		`TRUNCATE projections.daily_stats`,
		`TRUNCATE projections.settlement_history`,
		`DELETE FROM projections.watermark`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Debits increase balances
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, scope, asset, balance, updated_seq)
		SELECT
			j.debit_account AS account_path,
			split_part(j.debit_account, ':', 1) AS scope,
			split_part(j.debit_account, ':', array_length(string_to_array(j.debit_account, ':'), 1)) AS asset,
			SUM(j.amount) AS balance,
			MAX(j.sequence) AS updated_seq
		FROM event_log.journal j
		GROUP BY j.debit_account
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	// Credits decrease balances
	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, scope, asset, balance, updated_seq)
		SELECT
			j.credit_account AS account_path,
			split_part(j.credit_account, ':', 1) AS scope,
			split_part(j.credit_account, ':', array_length(string_to_array(j.credit_account, ':'), 1)) AS asset,
			-SUM(j.amount) AS balance,
			MAX(j.sequence) AS updated_seq
		FROM event_log.journal j
		GROUP BY j.credit_account
		ON CONFLICT (account_path) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    updated_seq = GREATEST(projections.balances.updated_seq, EXCLUDED.updated_seq)
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	log.Println("INFO: projection rebuild complete")
	return nil
}
