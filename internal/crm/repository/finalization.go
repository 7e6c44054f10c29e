package repository

import (
	"context"
	"errors"
	"time"

	"resto_crm_backend/internal/crm/domain"

	"github.com/jackc/pgx/v5"
)

// LastSuccessDate returns the most recent dateKey finalized successfully,
// or "" when no date has ever succeeded.
func (r *Repository) LastSuccessDate(ctx context.Context) (string, error) {
	var dateKey time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT date_key FROM finalization_runs
		WHERE status = 'success'
		ORDER BY date_key DESC
		LIMIT 1
	`).Scan(&dateKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return domain.FormatDateKey(dateKey), nil
}

// ClaimDate attempts to take the processing lease for a date. The claim is a
// single conditional upsert, so two workers racing around lease expiry cannot
// both win: exactly one statement's WHERE clause sees the expired lease.
//
// Transitions covered in one statement:
//   - absent          -> running (attempt 1)
//   - failed          -> running (attempt+1, error cleared)
//   - running expired -> running (attempt+1, lease refreshed)
//
// A success record, or a running record with a live lease, blocks the claim.
func (r *Repository) ClaimDate(ctx context.Context, params ClaimDateParams) (ClaimDateResult, error) {
	leaseExpiry := time.Now().Add(params.LeaseFor)

	row := r.pool.QueryRow(ctx, `
		INSERT INTO finalization_runs (date_key, status, lease_expires_at, owner, attempt, started_at, schema_version)
		VALUES ($1, 'running', $2, $3, 1, now(), $4)
		ON CONFLICT (date_key) DO UPDATE SET
			status = 'running',
			lease_expires_at = EXCLUDED.lease_expires_at,
			owner = EXCLUDED.owner,
			attempt = finalization_runs.attempt + 1,
			error_message = '',
			finished_at = NULL
		WHERE finalization_runs.status = 'failed'
		   OR (finalization_runs.status = 'running' AND finalization_runs.lease_expires_at < now())
		RETURNING `+runColumns,
		params.DateKey, leaseExpiry, params.Owner, domain.RunSchemaVersion,
	)

	run, err := scanRun(row)
	if err == nil {
		return ClaimDateResult{Claimed: true, Run: run}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return ClaimDateResult{}, err
	}

	// Claim lost; fetch the blocking record for the caller's skip decision.
	blocking, err := r.GetRun(ctx, params.DateKey)
	if err != nil {
		return ClaimDateResult{}, err
	}
	return ClaimDateResult{Claimed: false, Run: blocking}, nil
}

// MarkRunSuccess finishes a date's record with its processed counts. Terminal.
// The owner and lease guards mirror the claim CAS: a stale worker whose lease
// was taken over cannot flip the new owner's in-flight record.
func (r *Repository) MarkRunSuccess(ctx context.Context, dateKey, owner string, processedReservations, processedClients int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE finalization_runs SET
			status = 'success',
			finished_at = now(),
			processed_reservations = $2,
			processed_clients = $3,
			error_message = ''
		WHERE date_key = $1 AND status = 'running'
		  AND owner = $4 AND lease_expires_at > now()
	`, dateKey, processedReservations, processedClients, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRunFailed records a processing failure; the date stays retryable. Same
// ownership guard as MarkRunSuccess.
func (r *Repository) MarkRunFailed(ctx context.Context, dateKey, owner, message string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE finalization_runs SET
			status = 'failed',
			finished_at = now(),
			error_message = $2
		WHERE date_key = $1 AND status = 'running'
		  AND owner = $3 AND lease_expires_at > now()
	`, dateKey, message, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun fetches the finalization record for one date.
func (r *Repository) GetRun(ctx context.Context, dateKey string) (domain.FinalizationRun, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM finalization_runs WHERE date_key = $1`, dateKey)
	run, err := scanRun(row)
	if err != nil {
		return domain.FinalizationRun{}, notFound(err)
	}
	return run, nil
}

// ListRuns returns recent finalization records, newest date first, for the
// operational health view.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]domain.FinalizationRun, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+runColumns+` FROM finalization_runs ORDER BY date_key DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]domain.FinalizationRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}
