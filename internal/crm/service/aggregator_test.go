package service

import (
	"context"
	"testing"
	"time"

	"resto_crm_backend/internal/crm/domain"

	"github.com/google/uuid"
)

func seedClient(store *fakeStore, phoneKey string) *domain.Client {
	client := domain.NewClient(domain.ClientSeed{PhoneKey: phoneKey}, nowUTC())
	store.clients[client.ID] = &client
	store.clientsByPhone[phoneKey] = client.ID
	return store.clients[client.ID]
}

func seedEntry(store *fakeStore, clientID uuid.UUID, dateKey string, outcome domain.Outcome) {
	resID := uuid.New()
	store.entries[resID] = domain.LedgerEntry{
		ID:            uuid.New(),
		DateKey:       dateKey,
		ClientID:      clientID,
		ReservationID: resID,
		Outcome:       outcome,
		Points:        outcome.Points(),
		CreatedAt:     nowUTC(),
	}
}

func TestAggregateDateFoldsEntriesIncrementally(t *testing.T) {
	store := newFakeStore()
	client := seedClient(store, "+33612345678")
	client.Visits = 4
	client.Score = 40
	seedEntry(store, client.ID, "2026-03-14", domain.OutcomeCompleted)

	agg := NewAggregator(store, store, testLogger())
	processed, err := agg.AggregateDate(context.Background(), "2026-03-14", []uuid.UUID{client.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected one client processed, got %d", processed)
	}

	if client.Visits != 5 || client.Score != 50 {
		t.Fatalf("expected fifth visit folded, got visits=%d score=%d", client.Visits, client.Score)
	}
	if client.Status != domain.StatusVIP {
		t.Fatalf("expected vip promotion at five clean visits, got %s", client.Status)
	}
	if client.ScoreVersion != domain.ScoreVersion {
		t.Fatalf("expected score version stamped, got %s", client.ScoreVersion)
	}
}

func TestReaggregateClientsRecountsFullHistory(t *testing.T) {
	store := newFakeStore()
	client := seedClient(store, "+33612345678")
	seedEntry(store, client.ID, "2026-03-13", domain.OutcomeCompleted)
	seedEntry(store, client.ID, "2026-03-14", domain.OutcomeCompleted)
	// Counters drifted: the 2026-03-13 entry was ledgered but never folded.
	client.Visits = 0
	client.Score = 0

	pending := seedClient(store, "+33698765432")
	pending.MaintenanceState = domain.MaintenanceRebuildPending
	pending.RebuildReason = "manual correction"
	seedEntry(store, pending.ID, "2026-03-14", domain.OutcomeNoShow)

	agg := NewAggregator(store, store, testLogger())
	processed, err := agg.ReaggregateClients(context.Background(), []uuid.UUID{client.ID, pending.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected only the active client recounted, got %d", processed)
	}

	if client.Visits != 2 || client.Score != 20 {
		t.Fatalf("expected full-history recount, got visits=%d score=%d", client.Visits, client.Score)
	}
	if pending.NoShows != 0 || pending.MaintenanceState != domain.MaintenanceRebuildPending {
		t.Fatalf("expected rebuild-pending client untouched, got %+v", pending)
	}
}

func TestAggregateDateSkipsClientPendingRebuild(t *testing.T) {
	store := newFakeStore()
	client := seedClient(store, "+33612345678")
	client.MaintenanceState = domain.MaintenanceRebuildPending
	client.RebuildReason = "backdated no-show correction"
	seedEntry(store, client.ID, "2026-03-14", domain.OutcomeCompleted)

	agg := NewAggregator(store, store, testLogger())
	processed, err := agg.AggregateDate(context.Background(), "2026-03-14", []uuid.UUID{client.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected rebuild-pending client skipped, got %d processed", processed)
	}
	if client.Visits != 0 {
		t.Fatalf("expected stale counters untouched, got %d visits", client.Visits)
	}
}

func TestAggregateDateIgnoresClientsWithoutEntries(t *testing.T) {
	store := newFakeStore()
	client := seedClient(store, "+33612345678")

	agg := NewAggregator(store, store, testLogger())
	processed, err := agg.AggregateDate(context.Background(), "2026-03-14", []uuid.UUID{client.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected no update without ledger rows, got %d", processed)
	}
}

func TestAggregateDateBlacklistOverridesStatus(t *testing.T) {
	store := newFakeStore()
	client := seedClient(store, "+33612345678")
	blacklistedAt := nowUTC()
	client.BlacklistedAt = &blacklistedAt
	client.Visits = 6
	seedEntry(store, client.ID, "2026-03-14", domain.OutcomeCompleted)

	agg := NewAggregator(store, store, testLogger())
	if _, err := agg.AggregateDate(context.Background(), "2026-03-14", []uuid.UUID{client.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.Status != domain.StatusBadGuest {
		t.Fatalf("expected blacklisted client pinned to bad_guest, got %s", client.Status)
	}
	if client.Score != 70 {
		t.Fatalf("score still reflects history independently of status, got %d", client.Score)
	}
}

func TestAggregateDateDoesNotRegressLastVisit(t *testing.T) {
	store := newFakeStore()
	client := seedClient(store, "+33612345678")
	recent := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	client.LastVisitAt = &recent
	seedEntry(store, client.ID, "2026-03-14", domain.OutcomeCompleted)

	agg := NewAggregator(store, store, testLogger())
	if _, err := agg.AggregateDate(context.Background(), "2026-03-14", []uuid.UUID{client.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.LastVisitAt == nil || !client.LastVisitAt.Equal(recent) {
		t.Fatalf("backfilled older date must not regress lastVisitAt, got %v", client.LastVisitAt)
	}
}

func TestRebuildClientRecountsFromFullHistory(t *testing.T) {
	store := newFakeStore()
	client := seedClient(store, "+33612345678")
	client.MaintenanceState = domain.MaintenanceRebuildPending
	client.RebuildReason = "manual correction"
	// Drifted counters.
	client.Visits = 9
	client.Score = 90

	seedEntry(store, client.ID, "2026-03-10", domain.OutcomeCompleted)
	seedEntry(store, client.ID, "2026-03-12", domain.OutcomeNoShow)
	seedEntry(store, client.ID, "2026-03-14", domain.OutcomeCompletedRehabilitated)

	agg := NewAggregator(store, store, testLogger())
	if err := agg.RebuildClient(context.Background(), client.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.Visits != 2 || client.NoShows != 1 || client.RehabilitatedNoShows != 1 {
		t.Fatalf("expected recounted counters, got %+v", client)
	}
	if client.Score != 2*10-50 {
		t.Fatalf("expected recomputed score -30, got %d", client.Score)
	}
	if client.MaintenanceState != domain.MaintenanceActive || client.RebuildReason != "" {
		t.Fatalf("expected rebuild flag cleared, got %s (%q)", client.MaintenanceState, client.RebuildReason)
	}
	if client.LastVisitAt == nil || domain.FormatDateKey(*client.LastVisitAt) != "2026-03-14" {
		t.Fatalf("expected lastVisitAt from most recent visit, got %v", client.LastVisitAt)
	}
}

func TestMarkForRebuildFlagsClient(t *testing.T) {
	store := newFakeStore()
	client := seedClient(store, "+33612345678")

	agg := NewAggregator(store, store, testLogger())
	if err := agg.MarkForRebuild(context.Background(), client.ID, "backdated edit"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.MaintenanceState != domain.MaintenanceRebuildPending || client.RebuildReason != "backdated edit" {
		t.Fatalf("expected rebuild_pending with reason, got %s (%q)", client.MaintenanceState, client.RebuildReason)
	}
}
