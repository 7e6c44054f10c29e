package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListExpiredClientIDs returns clients whose last visit predates the cutoff
// and who have not been anonymized yet. Clients that never visited are aged
// by first_seen_at instead.
func (r *Repository) ListExpiredClientIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM clients
		WHERE anonymized_at IS NULL
		  AND COALESCE(last_visit_at, first_seen_at) < $1
		ORDER BY COALESCE(last_visit_at, first_seen_at) ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

// AnonymizeClient scrubs a client's identity fields to placeholders and
// deletes its ledger entries in one transaction. The ledger rows are no
// longer attributable once the identity is gone, so they go with it.
func (r *Repository) AnonymizeClient(ctx context.Context, id uuid.UUID, reason string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE clients SET
			primary_phone = '+anonymized-' || id::text,
			alt_phones = '{}',
			alt_emails = '{}',
			first_name = '',
			last_name = '',
			email = '',
			search_text = '',
			anonymized_at = now(),
			anonymize_reason = $2,
			updated_at = now()
		WHERE id = $1 AND anonymized_at IS NULL
	`, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM client_ledger WHERE client_id = $1`, id); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteRunsBefore prunes finalization records older than the cutoff date.
func (r *Repository) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM finalization_runs WHERE date_key < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
