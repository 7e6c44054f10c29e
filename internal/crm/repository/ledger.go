package repository

import (
	"context"
	"errors"
	"time"

	"resto_crm_backend/internal/crm/domain"
	"resto_crm_backend/platform/textnorm"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HasLedgerEntry reports whether a reservation already has a ledger entry.
func (r *Repository) HasLedgerEntry(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM client_ledger WHERE reservation_id = $1)`,
		reservationID,
	).Scan(&exists)
	return exists, err
}

// RecordOutcome performs the per-reservation unit of work in one transaction:
// resolve or create the client for the reservation's phone key, merge identity
// additively, back-fill the reservation's client_id, and append the ledger
// entry. The unique constraint on reservation_id turns a replayed insert into
// a no-op instead of a duplicate.
func (r *Repository) RecordOutcome(ctx context.Context, params RecordOutcomeParams) (RecordOutcomeResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return RecordOutcomeResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	client, created, err := getOrCreateClient(ctx, tx, params.Seed)
	if err != nil {
		return RecordOutcomeResult{}, err
	}

	if params.Reservation.ClientID == nil {
		if _, err := tx.Exec(ctx,
			`UPDATE reservations SET client_id = $1 WHERE id = $2 AND client_id IS NULL`,
			client.ID, params.Reservation.ID,
		); err != nil {
			return RecordOutcomeResult{}, err
		}
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO client_ledger (date_key, client_id, reservation_id, outcome, points)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (reservation_id) DO NOTHING
	`, params.DateKey, client.ID, params.Reservation.ID, string(params.Outcome), params.Points)
	if err != nil {
		return RecordOutcomeResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return RecordOutcomeResult{}, err
	}

	return RecordOutcomeResult{
		ClientID:      client.ID,
		ClientCreated: created,
		Inserted:      tag.RowsAffected() > 0,
	}, nil
}

// getOrCreateClient looks up the client by phone key under a row lock, merging
// identity additively on match and inserting a fresh record otherwise.
func getOrCreateClient(ctx context.Context, tx pgx.Tx, seed domain.ClientSeed) (domain.Client, bool, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE primary_phone = $1 FOR UPDATE`,
		seed.PhoneKey,
	)
	existing, err := scanClient(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		client := domain.NewClient(seed, time.Now())
		client.SearchText = searchTextFor(client)
		if err := insertClient(ctx, tx, client); err != nil {
			return domain.Client{}, false, err
		}
		return client, true, nil
	case err != nil:
		return domain.Client{}, false, err
	}

	merged, changed := domain.MergeIdentity(existing, seed)
	if !changed {
		return existing, false, nil
	}

	merged.SearchText = searchTextFor(merged)
	if _, err := tx.Exec(ctx, `
		UPDATE clients SET
			first_name = $2,
			last_name = $3,
			email = $4,
			alt_emails = $5,
			preferred_language = $6,
			acquisition_source = $7,
			search_text = $8,
			updated_at = now()
		WHERE id = $1
	`, merged.ID, merged.FirstName, merged.LastName, merged.Email, merged.AltEmails,
		merged.PreferredLanguage, merged.AcquisitionSource, merged.SearchText,
	); err != nil {
		return domain.Client{}, false, err
	}

	return merged, false, nil
}

func insertClient(ctx context.Context, tx pgx.Tx, client domain.Client) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO clients (
			id, primary_phone, alt_phones, alt_emails, first_name, last_name, email,
			search_text, preferred_language, acquisition_source, score_version, status,
			maintenance_state, first_seen_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`, client.ID, client.PrimaryPhone, client.AltPhones, client.AltEmails,
		client.FirstName, client.LastName, client.Email, client.SearchText,
		client.PreferredLanguage, client.AcquisitionSource, client.ScoreVersion,
		string(client.Status), string(client.MaintenanceState), client.FirstSeenAt,
	)
	return err
}

func searchTextFor(client domain.Client) string {
	fields := []string{client.FirstName, client.LastName, client.Email, client.PrimaryPhone}
	fields = append(fields, client.AltEmails...)
	return textnorm.SearchText(fields...)
}

// EntriesForClientDate returns the ledger rows for one client on one date,
// the input of the incremental aggregation fold.
func (r *Repository) EntriesForClientDate(ctx context.Context, clientID uuid.UUID, dateKey string) ([]domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, date_key, client_id, reservation_id, outcome, points, created_at
		FROM client_ledger
		WHERE client_id = $1 AND date_key = $2
		ORDER BY created_at ASC
	`, clientID, dateKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ClientIDsForDate returns the distinct clients with ledger rows on the
// date. A retry attempt aggregates from this set rather than from the rows
// it inserted itself, so entries committed by a crashed earlier attempt are
// not lost.
func (r *Repository) ClientIDsForDate(ctx context.Context, dateKey string) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT client_id FROM client_ledger WHERE date_key = $1`, dateKey)
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

// ListLedgerForClient returns a client's full outcome history, newest first.
func (r *Repository) ListLedgerForClient(ctx context.Context, clientID uuid.UUID, offset, limit int) ([]domain.LedgerEntry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM client_ledger WHERE client_id = $1`, clientID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, date_key, client_id, reservation_id, outcome, points, created_at
		FROM client_ledger
		WHERE client_id = $1
		ORDER BY date_key DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`, clientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func collectEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	entries := make([]domain.LedgerEntry, 0)
	for rows.Next() {
		var (
			entry   domain.LedgerEntry
			dateKey time.Time
			outcome string
		)
		if err := rows.Scan(&entry.ID, &dateKey, &entry.ClientID, &entry.ReservationID,
			&outcome, &entry.Points, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.DateKey = domain.FormatDateKey(dateKey)
		entry.Outcome = domain.Outcome(outcome)
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}
