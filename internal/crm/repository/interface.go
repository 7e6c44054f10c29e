package repository

import (
	"context"
	"time"

	"resto_crm_backend/internal/crm/domain"

	"github.com/google/uuid"
)

// Narrow store interfaces consumed by the service layer. *Repository
// implements all of them; tests substitute fakes.

// RunStore manages per-date finalization records and their leases.
type RunStore interface {
	// LastSuccessDate returns the most recent dateKey with status=success,
	// or "" when no date has ever succeeded.
	LastSuccessDate(ctx context.Context) (string, error)
	// ClaimDate attempts to take the processing lease for a date as one
	// atomic compare-and-swap.
	ClaimDate(ctx context.Context, params ClaimDateParams) (ClaimDateResult, error)
	// MarkRunSuccess and MarkRunFailed only apply while the given owner
	// still holds a live lease; a stale worker whose lease was taken over
	// cannot flip the record.
	MarkRunSuccess(ctx context.Context, dateKey, owner string, processedReservations, processedClients int) error
	MarkRunFailed(ctx context.Context, dateKey, owner, message string) error
}

// ClaimDateParams describes a lease acquisition attempt.
type ClaimDateParams struct {
	DateKey  string
	Owner    string
	LeaseFor time.Duration
}

// ClaimDateResult reports the outcome of a lease attempt. When Claimed is
// false, Run holds the record that blocked the claim (status success, or
// running with an unexpired lease).
type ClaimDateResult struct {
	Claimed bool
	Run     domain.FinalizationRun
}

// ReservationStore reads booking-subsystem records.
type ReservationStore interface {
	ListReservationsForDate(ctx context.Context, dateKey string) ([]domain.Reservation, error)
	ListReservationEvents(ctx context.Context, reservationID uuid.UUID) ([]domain.ReservationEvent, error)
}

// LedgerStore appends and reads client ledger entries.
type LedgerStore interface {
	// HasLedgerEntry reports whether a reservation was already ledgered.
	// This check is the idempotency guard for safe reprocessing.
	HasLedgerEntry(ctx context.Context, reservationID uuid.UUID) (bool, error)
	// RecordOutcome runs the per-reservation unit of work in one
	// transaction: resolve-or-create the client, back-fill the
	// reservation's client_id, append the ledger entry.
	RecordOutcome(ctx context.Context, params RecordOutcomeParams) (RecordOutcomeResult, error)
	EntriesForClientDate(ctx context.Context, clientID uuid.UUID, dateKey string) ([]domain.LedgerEntry, error)
	// ClientIDsForDate returns the distinct clients with ledger rows on
	// the date, including rows committed by an earlier crashed attempt.
	ClientIDsForDate(ctx context.Context, dateKey string) ([]uuid.UUID, error)
}

// RecordOutcomeParams is the per-reservation unit of work.
type RecordOutcomeParams struct {
	Reservation domain.Reservation
	Seed        domain.ClientSeed
	DateKey     string
	Outcome     domain.Outcome
	Points      int
}

// RecordOutcomeResult reports what the unit of work did.
type RecordOutcomeResult struct {
	ClientID      uuid.UUID
	ClientCreated bool
	// Inserted is false when the ledger row already existed; the unique
	// constraint on reservation_id makes the insert a no-op then.
	Inserted bool
}

// ClientStore reads and updates client aggregate profiles.
type ClientStore interface {
	GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error)
	UpdateAggregates(ctx context.Context, params UpdateAggregatesParams) error
	MarkForRebuild(ctx context.Context, id uuid.UUID, reason string) error
	// CountersFromLedger recounts a client's counters from its full ledger
	// history, for out-of-band rebuilds.
	CountersFromLedger(ctx context.Context, id uuid.UUID) (domain.Counters, *time.Time, error)
}

// UpdateAggregatesParams carries a recomputed aggregate profile.
type UpdateAggregatesParams struct {
	ClientID       uuid.UUID
	Counters       domain.Counters
	LastVisitAt    *time.Time
	Score          int
	ScoreBreakdown domain.ScoreBreakdown
	ScoreVersion   string
	Status         domain.ClientStatus
	// ClearRebuild resets maintenance_state to active after a full recount.
	ClearRebuild bool
}

// RestaurantStore reads booking-subsystem restaurant configuration.
type RestaurantStore interface {
	// ActiveRestaurant returns the single active restaurant, or nil when
	// none is configured.
	ActiveRestaurant(ctx context.Context) (*domain.Restaurant, error)
}

// RetentionStore supports the independent retention sweep.
type RetentionStore interface {
	ListExpiredClientIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	// AnonymizeClient scrubs identity fields and cascade-deletes the
	// client's ledger entries in one transaction.
	AnonymizeClient(ctx context.Context, id uuid.UUID, reason string) error
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
