package service

import (
	"context"
	"sync"
	"time"

	"resto_crm_backend/internal/crm/repository"
	"resto_crm_backend/internal/events"
	"resto_crm_backend/platform/config"
	"resto_crm_backend/platform/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const anonymizeReason = "retention_expired"

// anonymizeParallelism bounds concurrent anonymization transactions within
// one batch. Each client is independent, so batch members can run in
// parallel without ordering concerns.
const anonymizeParallelism = 4

// Purger is the independent retention sweep: it anonymizes clients with no
// activity past the retention horizon and prunes old finalization records.
// It runs on its own schedule and shares nothing with the nightly pipeline.
type Purger struct {
	store repository.RetentionStore
	bus   events.Bus
	cfg   config.RetentionConfig
	log   *logger.Logger

	now func() time.Time
}

// NewPurger creates a Purger.
func NewPurger(store repository.RetentionStore, bus events.Bus, cfg config.RetentionConfig, log *logger.Logger) *Purger {
	return &Purger{store: store, bus: bus, cfg: cfg, log: log, now: time.Now}
}

// SweepReport summarizes one retention pass.
type SweepReport struct {
	AnonymizedClients int   `json:"anonymizedClients"`
	DeletedRuns       int64 `json:"deletedRuns"`
}

// Sweep runs one retention pass. Client anonymization is batched and
// throttled so a large backlog cannot monopolize the database.
func (p *Purger) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{}
	clientCutoff := p.now().Add(-p.cfg.GetClientRetention())

	limiter := rate.NewLimiter(rate.Limit(p.cfg.GetPurgeBatchesPerSecond()), 1)
	batchSize := p.cfg.GetPurgeBatchSize()

	for {
		if err := limiter.Wait(ctx); err != nil {
			return report, err
		}

		ids, err := p.store.ListExpiredClientIDs(ctx, clientCutoff, batchSize)
		if err != nil {
			return report, err
		}
		if len(ids) == 0 {
			break
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(anonymizeParallelism)
		for _, id := range ids {
			g.Go(func() error {
				if err := p.store.AnonymizeClient(gctx, id, anonymizeReason); err != nil {
					return err
				}
				mu.Lock()
				report.AnonymizedClients++
				mu.Unlock()
				p.bus.Publish(gctx, events.ClientAnonymized{
					BaseEvent: events.NewBaseEvent(),
					ClientID:  id,
					Reason:    anonymizeReason,
				})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}

		if len(ids) < batchSize {
			break
		}
	}

	runCutoff := p.now().Add(-p.cfg.GetRunRecordRetention())
	deleted, err := p.store.DeleteRunsBefore(ctx, runCutoff)
	if err != nil {
		return report, err
	}
	report.DeletedRuns = deleted

	p.log.JobEvent("retention", "sweep_complete",
		"anonymized_clients", report.AnonymizedClients,
		"deleted_runs", report.DeletedRuns)

	return report, nil
}
