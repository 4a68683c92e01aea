package projection

import (
	"context"
	"database/sql"
)

// insertSettlementHistory records one journal leg in the per-user
// settlement history table. Rows are keyed by journal_id, so replayed
// events are absorbed silently.
func insertSettlementHistory(ctx context.Context, tx *sql.Tx, output ProjectionOutput, j JournalEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.settlement_history
			(sequence, journal_id, user_id, token, event_type, journal_type, amount, asset, timestamp_us)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (journal_id) DO NOTHING
	`, output.Sequence, j.JournalID, output.UserID, output.Token,
		output.EventType, j.JournalType, j.Amount, j.Asset, output.TimestampUs)
	return err
}
