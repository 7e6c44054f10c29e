package service

import (
	"context"
	"fmt"
	"time"

	"resto_crm_backend/internal/crm/domain"
	"resto_crm_backend/internal/crm/repository"
	"resto_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Aggregator folds newly ledgered outcomes into client aggregate profiles.
type Aggregator struct {
	clients repository.ClientStore
	ledger  repository.LedgerStore
	log     *logger.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(clients repository.ClientStore, ledger repository.LedgerStore, log *logger.Logger) *Aggregator {
	return &Aggregator{clients: clients, ledger: ledger, log: log}
}

// AggregateDate folds the given date's ledger rows into each touched
// client's persisted counters, then recomputes score and status. Clients in
// rebuild_pending are excluded: their counters are known-stale and folding
// onto them would compound the drift. Returns the number of clients updated.
func (a *Aggregator) AggregateDate(ctx context.Context, dateKey string, clientIDs []uuid.UUID) (int, error) {
	processed := 0
	for _, clientID := range clientIDs {
		updated, err := a.aggregateClient(ctx, dateKey, clientID)
		if err != nil {
			return processed, fmt.Errorf("aggregate client %s: %w", clientID, err)
		}
		if updated {
			processed++
		}
	}
	return processed, nil
}

func (a *Aggregator) aggregateClient(ctx context.Context, dateKey string, clientID uuid.UUID) (bool, error) {
	client, err := a.clients.GetClient(ctx, clientID)
	if err != nil {
		return false, err
	}

	if client.MaintenanceState == domain.MaintenanceRebuildPending {
		a.log.Warn("skipping client pending rebuild",
			"client_id", clientID, "date_key", dateKey, "reason", client.RebuildReason)
		return false, nil
	}

	entries, err := a.ledger.EntriesForClientDate(ctx, clientID, dateKey)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}

	counters := domain.Counters{
		Visits:                client.Visits,
		NoShows:               client.NoShows,
		RehabilitatedNoShows:  client.RehabilitatedNoShows,
		Cancellations:         client.Cancellations,
		LateCancellations:     client.LateCancellations,
		DeparturesBeforeOrder: client.DeparturesBeforeOrder,
	}
	lastVisit := client.LastVisitAt

	for _, entry := range entries {
		counters.ApplyEntry(entry.Outcome)
		if entry.Outcome == domain.OutcomeCompleted || entry.Outcome == domain.OutcomeCompletedRehabilitated {
			lastVisit = maxVisit(lastVisit, entry.DateKey)
		}
	}

	score, breakdown := domain.ComputeScore(counters.Visits, counters.NoShows, counters.LateCancellations)
	status := domain.DeriveStatus(counters.Visits, counters.NoShows, client.Blacklisted())

	err = a.clients.UpdateAggregates(ctx, repository.UpdateAggregatesParams{
		ClientID:       clientID,
		Counters:       counters,
		LastVisitAt:    lastVisit,
		Score:          score,
		ScoreBreakdown: breakdown,
		ScoreVersion:   domain.ScoreVersion,
		Status:         status,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReaggregateClients recounts each client from its full ledger history.
// This is the retry-attempt path: rows committed by a crashed earlier attempt
// are invisible to the incremental fold, and a full recount stays idempotent
// under replay. Clients pending rebuild remain excluded. Returns the number
// of clients updated.
func (a *Aggregator) ReaggregateClients(ctx context.Context, clientIDs []uuid.UUID) (int, error) {
	processed := 0
	for _, clientID := range clientIDs {
		client, err := a.clients.GetClient(ctx, clientID)
		if err != nil {
			return processed, fmt.Errorf("reaggregate client %s: %w", clientID, err)
		}
		if client.MaintenanceState == domain.MaintenanceRebuildPending {
			a.log.Warn("skipping client pending rebuild",
				"client_id", clientID, "reason", client.RebuildReason)
			continue
		}
		if err := a.recountFromLedger(ctx, client, false); err != nil {
			return processed, fmt.Errorf("reaggregate client %s: %w", clientID, err)
		}
		processed++
	}
	return processed, nil
}

// RebuildClient recounts a client's counters from its full ledger history and
// clears the rebuild flag. This is the out-of-band path for counters marked
// stale by a manual correction or backdated edit.
func (a *Aggregator) RebuildClient(ctx context.Context, clientID uuid.UUID) error {
	client, err := a.clients.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	return a.recountFromLedger(ctx, client, true)
}

func (a *Aggregator) recountFromLedger(ctx context.Context, client domain.Client, clearRebuild bool) error {
	counters, lastVisit, err := a.clients.CountersFromLedger(ctx, client.ID)
	if err != nil {
		return err
	}

	score, breakdown := domain.ComputeScore(counters.Visits, counters.NoShows, counters.LateCancellations)
	status := domain.DeriveStatus(counters.Visits, counters.NoShows, client.Blacklisted())

	return a.clients.UpdateAggregates(ctx, repository.UpdateAggregatesParams{
		ClientID:       client.ID,
		Counters:       counters,
		LastVisitAt:    lastVisit,
		Score:          score,
		ScoreBreakdown: breakdown,
		ScoreVersion:   domain.ScoreVersion,
		Status:         status,
		ClearRebuild:   clearRebuild,
	})
}

// MarkForRebuild flags a client so incremental aggregation leaves it alone
// until RebuildClient runs.
func (a *Aggregator) MarkForRebuild(ctx context.Context, clientID uuid.UUID, reason string) error {
	return a.clients.MarkForRebuild(ctx, clientID, reason)
}

func maxVisit(current *time.Time, dateKey string) *time.Time {
	visitDate, err := domain.ParseDateKey(dateKey)
	if err != nil {
		return current
	}
	if current == nil || visitDate.After(*current) {
		return &visitDate
	}
	return current
}
