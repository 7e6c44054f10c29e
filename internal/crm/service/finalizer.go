package service

import (
	"context"
	"fmt"
	"time"

	"resto_crm_backend/internal/crm/domain"
	"resto_crm_backend/internal/crm/repository"
	"resto_crm_backend/internal/events"
	"resto_crm_backend/platform/config"
	"resto_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Finalizer drives the nightly finalization pipeline: it decides which dates
// need processing and runs each through a lease-guarded, idempotent pass of
// classification, ledgering and aggregation.
type Finalizer struct {
	runs         repository.RunStore
	reservations repository.ReservationStore
	ledger       repository.LedgerStore
	restaurants  repository.RestaurantStore
	aggregator   *Aggregator
	bus          events.Bus
	cfg          config.FinalizationConfig
	log          *logger.Logger

	// now is swapped in tests.
	now func() time.Time
}

// NewFinalizer creates a Finalizer.
func NewFinalizer(
	runs repository.RunStore,
	reservations repository.ReservationStore,
	ledger repository.LedgerStore,
	restaurants repository.RestaurantStore,
	aggregator *Aggregator,
	bus events.Bus,
	cfg config.FinalizationConfig,
	log *logger.Logger,
) *Finalizer {
	return &Finalizer{
		runs:         runs,
		reservations: reservations,
		ledger:       ledger,
		restaurants:  restaurants,
		aggregator:   aggregator,
		bus:          bus,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// RunReport summarizes one scheduled invocation.
type RunReport struct {
	Skipped    bool         `json:"skipped"`
	SkipReason string       `json:"skipReason,omitempty"`
	Dates      []DateReport `json:"dates,omitempty"`
}

// DateReport summarizes the handling of one date within an invocation.
type DateReport struct {
	DateKey    string `json:"dateKey"`
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skipReason,omitempty"`
	// Blocked marks a skip caused by another worker's live lease, as
	// opposed to an already-finalized date.
	Blocked               bool   `json:"blocked,omitempty"`
	Attempt               int    `json:"attempt,omitempty"`
	ProcessedReservations int    `json:"processedReservations"`
	ProcessedClients      int    `json:"processedClients"`
}

// RunScheduled is the hourly trigger. It is a no-op outside the configured
// finalization hour in the restaurant's timezone. When it fires, it catches
// up every unfinalized date from the last success through yesterday, oldest
// first, bounded by the configured catch-up window. A failure on one date
// aborts the remaining (newer) dates; committed successes stay committed.
func (f *Finalizer) RunScheduled(ctx context.Context) (RunReport, error) {
	restaurant, err := f.restaurants.ActiveRestaurant(ctx)
	if err != nil {
		return RunReport{}, err
	}
	if restaurant == nil {
		f.log.Warn("finalization skipped", "reason", "no active restaurant")
		return RunReport{Skipped: true, SkipReason: "no active restaurant"}, nil
	}

	loc, err := time.LoadLocation(restaurant.Timezone)
	if err != nil {
		return RunReport{}, fmt.Errorf("restaurant timezone %q: %w", restaurant.Timezone, err)
	}

	localNow := f.now().In(loc)
	if localNow.Hour() != f.cfg.GetFinalizeHour() {
		return RunReport{Skipped: true, SkipReason: "outside finalization hour"}, nil
	}

	lastSuccess, err := f.runs.LastSuccessDate(ctx)
	if err != nil {
		return RunReport{}, err
	}

	yesterday := domain.YesterdayKey(f.now(), loc)
	dates, err := domain.CatchupRange(lastSuccess, yesterday, f.cfg.GetCatchupMaxDays())
	if err != nil {
		return RunReport{}, err
	}
	if len(dates) == 0 {
		return RunReport{Skipped: true, SkipReason: "nothing to finalize"}, nil
	}

	report := RunReport{Dates: make([]DateReport, 0, len(dates))}
	for _, dateKey := range dates {
		dateReport, err := f.FinalizeDate(ctx, dateKey)
		report.Dates = append(report.Dates, dateReport)
		if err != nil {
			// Newer dates are not attempted; the failed date stays
			// retryable by the next trigger.
			return report, err
		}
		if dateReport.Blocked {
			// Another worker holds this date. Finalizing past it
			// would advance the catch-up window beyond the date,
			// and if its owner then fails no later scheduled run
			// would ever select it again.
			f.log.Info("finalization stopped behind held lease", "date_key", dateKey)
			return report, nil
		}
	}

	return report, nil
}

// FinalizeDate processes one date through the lease-guarded pipeline. This is
// also the operator's force entry point: it bypasses the hourly gate but not
// the lease.
func (f *Finalizer) FinalizeDate(ctx context.Context, dateKey string) (DateReport, error) {
	if _, err := domain.ParseDateKey(dateKey); err != nil {
		return DateReport{DateKey: dateKey}, err
	}

	log := f.log.WithDateKey(dateKey)

	claim, err := f.runs.ClaimDate(ctx, repository.ClaimDateParams{
		DateKey:  dateKey,
		Owner:    f.cfg.GetWorkerTag(),
		LeaseFor: f.cfg.GetLeaseDuration(),
	})
	if err != nil {
		return DateReport{DateKey: dateKey}, err
	}

	if !claim.Claimed {
		if claim.Run.Status == domain.RunSuccess {
			log.Info("finalization date skipped", "reason", "already finalized")
			return DateReport{DateKey: dateKey, Skipped: true, SkipReason: "already finalized"}, nil
		}
		reason := "lease held by " + claim.Run.Owner
		log.Info("finalization date skipped", "reason", reason)
		return DateReport{DateKey: dateKey, Skipped: true, SkipReason: reason, Blocked: true}, nil
	}

	log.Info("finalization date claimed", "attempt", claim.Run.Attempt, "owner", claim.Run.Owner)

	processedReservations, processedClients, err := f.processDate(ctx, dateKey, claim.Run.Attempt > 1)
	if err != nil {
		if markErr := f.runs.MarkRunFailed(ctx, dateKey, f.cfg.GetWorkerTag(), err.Error()); markErr != nil {
			log.Error("failed to record finalization failure", "error", markErr)
		}
		f.bus.Publish(ctx, events.FinalizationFailed{
			BaseEvent: events.NewBaseEvent(),
			DateKey:   dateKey,
			Attempt:   claim.Run.Attempt,
			Reason:    err.Error(),
		})
		return DateReport{DateKey: dateKey, Attempt: claim.Run.Attempt}, err
	}

	if err := f.runs.MarkRunSuccess(ctx, dateKey, f.cfg.GetWorkerTag(), processedReservations, processedClients); err != nil {
		return DateReport{DateKey: dateKey, Attempt: claim.Run.Attempt}, err
	}

	log.Info("finalization date succeeded",
		"processed_reservations", processedReservations,
		"processed_clients", processedClients)

	f.bus.Publish(ctx, events.DateFinalized{
		BaseEvent:             events.NewBaseEvent(),
		DateKey:               dateKey,
		Attempt:               claim.Run.Attempt,
		ProcessedReservations: processedReservations,
		ProcessedClients:      processedClients,
	})

	return DateReport{
		DateKey:               dateKey,
		Attempt:               claim.Run.Attempt,
		ProcessedReservations: processedReservations,
		ProcessedClients:      processedClients,
	}, nil
}

// processDate classifies and ledgers every attributable reservation of the
// date, then aggregates the touched clients. On a retry attempt the touched
// set is derived from the date's full ledger, so rows committed by a crashed
// earlier attempt are still folded into their clients' counters.
func (f *Finalizer) processDate(ctx context.Context, dateKey string, retry bool) (int, int, error) {
	reservations, err := f.reservations.ListReservationsForDate(ctx, dateKey)
	if err != nil {
		return 0, 0, err
	}

	processed := 0
	touched := make([]uuid.UUID, 0)
	seen := make(map[uuid.UUID]struct{})

	for _, res := range reservations {
		seed, ok := SeedFromReservation(res)
		if !ok {
			// No phone: permanently unattributable, never ledgered.
			continue
		}

		ledgered, err := f.ledger.HasLedgerEntry(ctx, res.ID)
		if err != nil {
			return processed, 0, err
		}
		if ledgered {
			continue
		}

		var history []domain.ReservationEvent
		if res.Status == domain.ReservationCancelled {
			history, err = f.reservations.ListReservationEvents(ctx, res.ID)
			if err != nil {
				return processed, 0, err
			}
		}

		outcome, ok := Classify(res, history)
		if !ok {
			continue
		}

		result, err := f.ledger.RecordOutcome(ctx, repository.RecordOutcomeParams{
			Reservation: res,
			Seed:        seed,
			DateKey:     dateKey,
			Outcome:     outcome,
			Points:      outcome.Points(),
		})
		if err != nil {
			return processed, 0, fmt.Errorf("record outcome for reservation %s: %w", res.ID, err)
		}
		if !result.Inserted {
			continue
		}

		processed++
		if _, dup := seen[result.ClientID]; !dup {
			seen[result.ClientID] = struct{}{}
			touched = append(touched, result.ClientID)
		}
	}

	if retry {
		// An earlier attempt may have ledgered rows and crashed before
		// aggregating them. The incremental fold would miss those, so
		// recount every client ledgered on the date from full history.
		ledgered, err := f.ledger.ClientIDsForDate(ctx, dateKey)
		if err != nil {
			return processed, 0, err
		}
		processedClients, err := f.aggregator.ReaggregateClients(ctx, ledgered)
		return processed, processedClients, err
	}

	processedClients, err := f.aggregator.AggregateDate(ctx, dateKey, touched)
	if err != nil {
		return processed, processedClients, err
	}

	return processed, processedClients, nil
}
