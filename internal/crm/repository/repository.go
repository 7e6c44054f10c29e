package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"resto_crm_backend/internal/crm/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository is the Postgres-backed store for the CRM bounded context.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a Repository on the given pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping checks database connectivity for health endpoints.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const clientColumns = `
	id, primary_phone, alt_phones, alt_emails, first_name, last_name, email,
	search_text, preferred_language, acquisition_source,
	visits, no_shows, rehabilitated_no_shows, cancellations, late_cancellations,
	departures_before_order, score, score_breakdown, score_version, status,
	blacklisted_at, maintenance_state, rebuild_reason,
	first_seen_at, last_visit_at, updated_at, anonymized_at, anonymize_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (domain.Client, error) {
	var (
		c         domain.Client
		breakdown []byte
		status    string
		maint     string
	)
	err := row.Scan(
		&c.ID, &c.PrimaryPhone, &c.AltPhones, &c.AltEmails, &c.FirstName, &c.LastName, &c.Email,
		&c.SearchText, &c.PreferredLanguage, &c.AcquisitionSource,
		&c.Visits, &c.NoShows, &c.RehabilitatedNoShows, &c.Cancellations, &c.LateCancellations,
		&c.DeparturesBeforeOrder, &c.Score, &breakdown, &c.ScoreVersion, &status,
		&c.BlacklistedAt, &maint, &c.RebuildReason,
		&c.FirstSeenAt, &c.LastVisitAt, &c.UpdatedAt, &c.AnonymizedAt, &c.AnonymizeReason,
	)
	if err != nil {
		return domain.Client{}, err
	}

	c.Status = domain.ClientStatus(status)
	c.MaintenanceState = domain.MaintenanceState(maint)
	if len(breakdown) > 0 {
		// A missing breakdown stays zero-valued rather than failing the read.
		_ = json.Unmarshal(breakdown, &c.ScoreBreakdown)
	}
	return c, nil
}

func scanRun(row rowScanner) (domain.FinalizationRun, error) {
	var (
		run     domain.FinalizationRun
		dateKey time.Time
		status  string
	)
	err := row.Scan(
		&run.ID, &dateKey, &status, &run.LeaseExpiresAt, &run.Owner, &run.Attempt,
		&run.StartedAt, &run.FinishedAt, &run.ProcessedReservations, &run.ProcessedClients,
		&run.ErrorMessage, &run.SchemaVersion,
	)
	if err != nil {
		return domain.FinalizationRun{}, err
	}
	run.DateKey = domain.FormatDateKey(dateKey)
	run.Status = domain.RunStatus(status)
	return run, nil
}

const runColumns = `
	id, date_key, status, lease_expires_at, owner, attempt, started_at, finished_at,
	processed_reservations, processed_clients, error_message, schema_version`

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
