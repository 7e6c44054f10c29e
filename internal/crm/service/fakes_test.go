package service

import (
	"context"
	"sync"
	"time"

	"resto_crm_backend/internal/crm/domain"
	"resto_crm_backend/internal/crm/repository"
	"resto_crm_backend/internal/events"
	"resto_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// nowUTC is the frozen test clock: 03:10 UTC is 04:10 in Europe/Paris, inside
// the finalization hour of the test restaurant.
func nowUTC() time.Time {
	return time.Date(2026, 3, 15, 3, 10, 0, 0, time.UTC)
}

func testLogger() *logger.Logger {
	return logger.New("test")
}

// fakeConfig satisfies both the finalization and retention config interfaces.
type fakeConfig struct {
	hour           int
	catchupMaxDays int
	lease          time.Duration
	workerTag      string

	clientRetention    time.Duration
	runRecordRetention time.Duration
	purgeBatchSize     int
	purgeBatchesPerSec float64
}

func defaultConfig() *fakeConfig {
	return &fakeConfig{
		hour:               4,
		catchupMaxDays:     7,
		lease:              15 * time.Minute,
		workerTag:          "worker-test",
		clientRetention:    3 * 365 * 24 * time.Hour,
		runRecordRetention: 90 * 24 * time.Hour,
		purgeBatchSize:     2,
		purgeBatchesPerSec: 1000,
	}
}

func (c *fakeConfig) GetFinalizeHour() int              { return c.hour }
func (c *fakeConfig) GetCatchupMaxDays() int            { return c.catchupMaxDays }
func (c *fakeConfig) GetLeaseDuration() time.Duration   { return c.lease }
func (c *fakeConfig) GetWorkerTag() string              { return c.workerTag }
func (c *fakeConfig) GetClientRetention() time.Duration { return c.clientRetention }
func (c *fakeConfig) GetRunRecordRetention() time.Duration {
	return c.runRecordRetention
}
func (c *fakeConfig) GetPurgeBatchSize() int            { return c.purgeBatchSize }
func (c *fakeConfig) GetPurgeBatchesPerSecond() float64 { return c.purgeBatchesPerSec }

// fakeBus records published events synchronously.
type fakeBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *fakeBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *fakeBus) PublishSync(_ context.Context, event events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
	return nil
}

func (b *fakeBus) Subscribe(string, events.Handler) {}

func (b *fakeBus) eventNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.published))
	for _, e := range b.published {
		names = append(names, e.EventName())
	}
	return names
}

// fakeStore is an in-memory stand-in for the repository, implementing the
// run, reservation, ledger, client and restaurant stores.
type fakeStore struct {
	now func() time.Time

	restaurant *domain.Restaurant

	runs map[string]*domain.FinalizationRun

	reservations      map[string][]domain.Reservation
	reservationEvents map[uuid.UUID][]domain.ReservationEvent

	clients        map[uuid.UUID]*domain.Client
	clientsByPhone map[string]uuid.UUID

	entries map[uuid.UUID]domain.LedgerEntry

	// listErr, when set for a dateKey, makes ListReservationsForDate fail.
	listErr map[string]error

	// aggErr, when set, makes the next UpdateAggregates call fail once.
	aggErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		now:               nowUTC,
		restaurant:        &domain.Restaurant{ID: uuid.New(), Name: "Chez Test", Timezone: "Europe/Paris", IsActive: true},
		runs:              make(map[string]*domain.FinalizationRun),
		reservations:      make(map[string][]domain.Reservation),
		reservationEvents: make(map[uuid.UUID][]domain.ReservationEvent),
		clients:           make(map[uuid.UUID]*domain.Client),
		clientsByPhone:    make(map[string]uuid.UUID),
		entries:           make(map[uuid.UUID]domain.LedgerEntry),
		listErr:           make(map[string]error),
	}
}

var _ repository.RunStore = (*fakeStore)(nil)
var _ repository.ReservationStore = (*fakeStore)(nil)
var _ repository.LedgerStore = (*fakeStore)(nil)
var _ repository.ClientStore = (*fakeStore)(nil)
var _ repository.RestaurantStore = (*fakeStore)(nil)

func (s *fakeStore) ActiveRestaurant(context.Context) (*domain.Restaurant, error) {
	return s.restaurant, nil
}

func (s *fakeStore) LastSuccessDate(context.Context) (string, error) {
	last := ""
	for dateKey, run := range s.runs {
		if run.Status == domain.RunSuccess && dateKey > last {
			last = dateKey
		}
	}
	return last, nil
}

func (s *fakeStore) ClaimDate(_ context.Context, params repository.ClaimDateParams) (repository.ClaimDateResult, error) {
	now := s.now()
	run, ok := s.runs[params.DateKey]
	if !ok {
		created := &domain.FinalizationRun{
			ID:             uuid.New(),
			DateKey:        params.DateKey,
			Status:         domain.RunRunning,
			LeaseExpiresAt: now.Add(params.LeaseFor),
			Owner:          params.Owner,
			Attempt:        1,
			StartedAt:      now,
			SchemaVersion:  domain.RunSchemaVersion,
		}
		s.runs[params.DateKey] = created
		return repository.ClaimDateResult{Claimed: true, Run: *created}, nil
	}

	reclaimable := run.Status == domain.RunFailed ||
		(run.Status == domain.RunRunning && run.LeaseExpiresAt.Before(now))
	if !reclaimable {
		return repository.ClaimDateResult{Claimed: false, Run: *run}, nil
	}

	run.Status = domain.RunRunning
	run.LeaseExpiresAt = now.Add(params.LeaseFor)
	run.Owner = params.Owner
	run.Attempt++
	run.ErrorMessage = ""
	return repository.ClaimDateResult{Claimed: true, Run: *run}, nil
}

func (s *fakeStore) MarkRunSuccess(_ context.Context, dateKey, owner string, processedReservations, processedClients int) error {
	run, ok := s.runs[dateKey]
	if !ok || run.Status != domain.RunRunning || run.Owner != owner || !run.LeaseExpiresAt.After(s.now()) {
		return repository.ErrNotFound
	}
	finished := s.now()
	run.Status = domain.RunSuccess
	run.FinishedAt = &finished
	run.ProcessedReservations = processedReservations
	run.ProcessedClients = processedClients
	return nil
}

func (s *fakeStore) MarkRunFailed(_ context.Context, dateKey, owner, message string) error {
	run, ok := s.runs[dateKey]
	if !ok || run.Status != domain.RunRunning || run.Owner != owner || !run.LeaseExpiresAt.After(s.now()) {
		return repository.ErrNotFound
	}
	finished := s.now()
	run.Status = domain.RunFailed
	run.FinishedAt = &finished
	run.ErrorMessage = message
	return nil
}

func (s *fakeStore) ListReservationsForDate(_ context.Context, dateKey string) ([]domain.Reservation, error) {
	if err := s.listErr[dateKey]; err != nil {
		return nil, err
	}
	return s.reservations[dateKey], nil
}

func (s *fakeStore) ListReservationEvents(_ context.Context, reservationID uuid.UUID) ([]domain.ReservationEvent, error) {
	return s.reservationEvents[reservationID], nil
}

func (s *fakeStore) HasLedgerEntry(_ context.Context, reservationID uuid.UUID) (bool, error) {
	_, ok := s.entries[reservationID]
	return ok, nil
}

func (s *fakeStore) RecordOutcome(_ context.Context, params repository.RecordOutcomeParams) (repository.RecordOutcomeResult, error) {
	created := false
	clientID, ok := s.clientsByPhone[params.Seed.PhoneKey]
	if !ok {
		client := domain.NewClient(params.Seed, s.now())
		s.clients[client.ID] = &client
		s.clientsByPhone[params.Seed.PhoneKey] = client.ID
		clientID = client.ID
		created = true
	} else {
		merged, changed := domain.MergeIdentity(*s.clients[clientID], params.Seed)
		if changed {
			s.clients[clientID] = &merged
		}
	}

	if _, exists := s.entries[params.Reservation.ID]; exists {
		return repository.RecordOutcomeResult{ClientID: clientID, Inserted: false}, nil
	}

	s.entries[params.Reservation.ID] = domain.LedgerEntry{
		ID:            uuid.New(),
		DateKey:       params.DateKey,
		ClientID:      clientID,
		ReservationID: params.Reservation.ID,
		Outcome:       params.Outcome,
		Points:        params.Points,
		CreatedAt:     s.now(),
	}
	return repository.RecordOutcomeResult{ClientID: clientID, ClientCreated: created, Inserted: true}, nil
}

func (s *fakeStore) EntriesForClientDate(_ context.Context, clientID uuid.UUID, dateKey string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, entry := range s.entries {
		if entry.ClientID == clientID && entry.DateKey == dateKey {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *fakeStore) ClientIDsForDate(_ context.Context, dateKey string) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, entry := range s.entries {
		if entry.DateKey != dateKey {
			continue
		}
		if _, dup := seen[entry.ClientID]; dup {
			continue
		}
		seen[entry.ClientID] = struct{}{}
		ids = append(ids, entry.ClientID)
	}
	return ids, nil
}

func (s *fakeStore) GetClient(_ context.Context, id uuid.UUID) (domain.Client, error) {
	client, ok := s.clients[id]
	if !ok {
		return domain.Client{}, repository.ErrNotFound
	}
	return *client, nil
}

func (s *fakeStore) UpdateAggregates(_ context.Context, params repository.UpdateAggregatesParams) error {
	if s.aggErr != nil {
		err := s.aggErr
		s.aggErr = nil
		return err
	}
	client, ok := s.clients[params.ClientID]
	if !ok {
		return repository.ErrNotFound
	}
	client.Visits = params.Counters.Visits
	client.NoShows = params.Counters.NoShows
	client.RehabilitatedNoShows = params.Counters.RehabilitatedNoShows
	client.Cancellations = params.Counters.Cancellations
	client.LateCancellations = params.Counters.LateCancellations
	client.DeparturesBeforeOrder = params.Counters.DeparturesBeforeOrder
	client.LastVisitAt = params.LastVisitAt
	client.Score = params.Score
	client.ScoreBreakdown = params.ScoreBreakdown
	client.ScoreVersion = params.ScoreVersion
	client.Status = params.Status
	client.UpdatedAt = s.now()
	if params.ClearRebuild {
		client.MaintenanceState = domain.MaintenanceActive
		client.RebuildReason = ""
	}
	return nil
}

func (s *fakeStore) MarkForRebuild(_ context.Context, id uuid.UUID, reason string) error {
	client, ok := s.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	client.MaintenanceState = domain.MaintenanceRebuildPending
	client.RebuildReason = reason
	return nil
}

func (s *fakeStore) CountersFromLedger(_ context.Context, id uuid.UUID) (domain.Counters, *time.Time, error) {
	var counters domain.Counters
	var lastVisit *time.Time
	for _, entry := range s.entries {
		if entry.ClientID != id {
			continue
		}
		counters.ApplyEntry(entry.Outcome)
		if entry.Outcome == domain.OutcomeCompleted || entry.Outcome == domain.OutcomeCompletedRehabilitated {
			lastVisit = maxVisit(lastVisit, entry.DateKey)
		}
	}
	return counters, lastVisit, nil
}

// clientByPhone is a test convenience accessor.
func (s *fakeStore) clientByPhone(phoneKey string) *domain.Client {
	id, ok := s.clientsByPhone[phoneKey]
	if !ok {
		return nil
	}
	return s.clients[id]
}

func newTestFinalizer(store *fakeStore, bus *fakeBus, cfg *fakeConfig) *Finalizer {
	log := testLogger()
	aggregator := NewAggregator(store, store, log)
	f := NewFinalizer(store, store, store, store, aggregator, bus, cfg, log)
	f.now = nowUTC
	return f
}
