package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resto_crm_backend/internal/crm/domain"

	"github.com/google/uuid"
)

// GetClient fetches one client by ID.
func (r *Repository) GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	client, err := scanClient(row)
	if err != nil {
		return domain.Client{}, notFound(err)
	}
	return client, nil
}

// GetClientByPhone fetches one client by its normalized primary phone key.
func (r *Repository) GetClientByPhone(ctx context.Context, phoneKey string) (domain.Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE primary_phone = $1`, phoneKey)
	client, err := scanClient(row)
	if err != nil {
		return domain.Client{}, notFound(err)
	}
	return client, nil
}

// ListClientsParams filters and paginates the admin client listing.
type ListClientsParams struct {
	Search string
	Status string
	Offset int
	Limit  int
}

// ListClients returns a page of clients plus the total match count.
func (r *Repository) ListClients(ctx context.Context, params ListClientsParams) ([]domain.Client, int, error) {
	where := []string{"anonymized_at IS NULL"}
	args := []any{}

	if search := strings.TrimSpace(params.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		where = append(where, fmt.Sprintf("(search_text LIKE $%d OR primary_phone LIKE $%d)", len(args), len(args)))
	}
	if params.Status != "" {
		args = append(args, params.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	whereClause := "WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM clients `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM clients %s ORDER BY last_visit_at DESC NULLS LAST, first_seen_at DESC LIMIT $%d OFFSET $%d`,
		clientColumns, whereClause, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	clients := make([]domain.Client, 0)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, client)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return clients, total, nil
}

// UpdateAggregates writes a recomputed aggregate profile back to the client.
func (r *Repository) UpdateAggregates(ctx context.Context, params UpdateAggregatesParams) error {
	breakdown, err := json.Marshal(params.ScoreBreakdown)
	if err != nil {
		return err
	}

	maintClause := ""
	if params.ClearRebuild {
		maintClause = `, maintenance_state = 'active', rebuild_reason = ''`
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET
			visits = $2,
			no_shows = $3,
			rehabilitated_no_shows = $4,
			cancellations = $5,
			late_cancellations = $6,
			departures_before_order = $7,
			last_visit_at = $8,
			score = $9,
			score_breakdown = $10,
			score_version = $11,
			status = $12,
			updated_at = now()`+maintClause+`
		WHERE id = $1
	`,
		params.ClientID,
		params.Counters.Visits,
		params.Counters.NoShows,
		params.Counters.RehabilitatedNoShows,
		params.Counters.Cancellations,
		params.Counters.LateCancellations,
		params.Counters.DeparturesBeforeOrder,
		params.LastVisitAt,
		params.Score,
		breakdown,
		params.ScoreVersion,
		string(params.Status),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkForRebuild flags a client's counters as known-stale so incremental
// aggregation skips it until a full recount runs.
func (r *Repository) MarkForRebuild(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET
			maintenance_state = 'rebuild_pending',
			rebuild_reason = $2,
			updated_at = now()
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountersFromLedger recounts a client's rolling counters from its full
// ledger history. Used by out-of-band rebuilds only; the nightly pipeline
// folds incrementally.
func (r *Repository) CountersFromLedger(ctx context.Context, id uuid.UUID) (domain.Counters, *time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT outcome, date_key
		FROM client_ledger
		WHERE client_id = $1
		ORDER BY date_key ASC
	`, id)
	if err != nil {
		return domain.Counters{}, nil, err
	}
	defer rows.Close()

	var counters domain.Counters
	var lastVisit *time.Time
	for rows.Next() {
		var outcome string
		var visitDate time.Time
		if err := rows.Scan(&outcome, &visitDate); err != nil {
			return domain.Counters{}, nil, err
		}
		parsed := domain.Outcome(outcome)
		counters.ApplyEntry(parsed)
		if parsed == domain.OutcomeCompleted || parsed == domain.OutcomeCompletedRehabilitated {
			if lastVisit == nil || visitDate.After(*lastVisit) {
				visit := visitDate
				lastVisit = &visit
			}
		}
	}
	if rows.Err() != nil {
		return domain.Counters{}, nil, rows.Err()
	}

	return counters, lastVisit, nil
}

// SetBlacklisted sets or clears the client blacklist marker.
func (r *Repository) SetBlacklisted(ctx context.Context, id uuid.UUID, blacklisted bool) error {
	var tag string
	if blacklisted {
		tag = `UPDATE clients SET blacklisted_at = now(), status = 'bad_guest', updated_at = now() WHERE id = $1`
	} else {
		tag = `UPDATE clients SET blacklisted_at = NULL, updated_at = now() WHERE id = $1`
	}
	res, err := r.pool.Exec(ctx, tag, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
