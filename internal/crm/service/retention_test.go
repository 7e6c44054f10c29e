package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeRetentionStore tracks which clients would expire at a given cutoff and
// records anonymization calls.
type fakeRetentionStore struct {
	mu         sync.Mutex
	expired    []uuid.UUID
	anonymized []uuid.UUID
	reasons    map[uuid.UUID]string

	runsDeleted  int64
	runCutoffGot time.Time
}

func (s *fakeRetentionStore) ListExpiredClientIDs(_ context.Context, _ time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := make([]uuid.UUID, 0, len(s.expired))
	seen := make(map[uuid.UUID]struct{}, len(s.anonymized))
	for _, id := range s.anonymized {
		seen[id] = struct{}{}
	}
	for _, id := range s.expired {
		if _, done := seen[id]; !done {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) > limit {
		remaining = remaining[:limit]
	}
	return remaining, nil
}

func (s *fakeRetentionStore) AnonymizeClient(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reasons == nil {
		s.reasons = make(map[uuid.UUID]string)
	}
	s.anonymized = append(s.anonymized, id)
	s.reasons[id] = reason
	return nil
}

func (s *fakeRetentionStore) DeleteRunsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.runCutoffGot = cutoff
	return s.runsDeleted, nil
}

func newTestPurger(store *fakeRetentionStore, bus *fakeBus, cfg *fakeConfig) *Purger {
	p := NewPurger(store, bus, cfg, testLogger())
	p.now = nowUTC
	return p
}

func TestSweepAnonymizesExpiredClientsInBatches(t *testing.T) {
	store := &fakeRetentionStore{
		expired:     []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()},
		runsDeleted: 12,
	}
	bus := &fakeBus{}
	cfg := defaultConfig() // batch size 2, so three batches

	report, err := newTestPurger(store, bus, cfg).Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.AnonymizedClients != 5 {
		t.Fatalf("expected 5 anonymized clients, got %d", report.AnonymizedClients)
	}
	if report.DeletedRuns != 12 {
		t.Fatalf("expected 12 deleted runs, got %d", report.DeletedRuns)
	}
	if len(store.anonymized) != 5 {
		t.Fatalf("expected every expired client anonymized, got %d", len(store.anonymized))
	}
	for _, reason := range store.reasons {
		if reason != "retention_expired" {
			t.Fatalf("expected retention_expired reason, got %q", reason)
		}
	}

	events := 0
	for _, name := range bus.eventNames() {
		if name == "crm.retention.client_anonymized" {
			events++
		}
	}
	if events != 5 {
		t.Fatalf("expected one event per anonymized client, got %d", events)
	}
}

func TestSweepWithNothingExpired(t *testing.T) {
	store := &fakeRetentionStore{}
	report, err := newTestPurger(store, &fakeBus{}, defaultConfig()).Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.AnonymizedClients != 0 || report.DeletedRuns != 0 {
		t.Fatalf("expected empty sweep, got %+v", report)
	}
}

func TestSweepUsesConfiguredRunRetentionCutoff(t *testing.T) {
	store := &fakeRetentionStore{}
	cfg := defaultConfig()

	if _, err := newTestPurger(store, &fakeBus{}, cfg).Sweep(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := nowUTC().Add(-cfg.runRecordRetention)
	if !store.runCutoffGot.Equal(want) {
		t.Fatalf("expected run cutoff %v, got %v", want, store.runCutoffGot)
	}
}

func TestSweepStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeRetentionStore{expired: []uuid.UUID{uuid.New()}}
	if _, err := newTestPurger(store, &fakeBus{}, defaultConfig()).Sweep(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if len(store.anonymized) != 0 {
		t.Fatalf("expected no work after cancellation, got %d", len(store.anonymized))
	}
}
