package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resto_crm_backend/internal/crm"
	"resto_crm_backend/internal/events"
	"resto_crm_backend/internal/scheduler"
	"resto_crm_backend/platform/config"
	"resto_crm_backend/platform/db"
	"resto_crm_backend/platform/logger"
	"resto_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "worker", cfg.GetWorkerTag())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	registerAuditSubscribers(eventBus, log)

	val := validator.New()

	// Worker-side wiring: no HTTP handlers, no force enqueuer.
	crmModule := crm.NewModule(pool, eventBus, nil, val, cfg, log)

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	go periodic.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, crmModule.Finalizer(), crmModule.Purger(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

// registerAuditSubscribers logs the domain events the pipeline publishes, so
// worker logs carry an audit trail of finalized dates and anonymized clients.
func registerAuditSubscribers(bus events.Bus, log *logger.Logger) {
	bus.Subscribe("crm.finalization.date_finalized", events.HandlerFunc(func(_ context.Context, e events.Event) error {
		if ev, ok := e.(events.DateFinalized); ok {
			log.Info("date finalized",
				"dateKey", ev.DateKey,
				"attempt", ev.Attempt,
				"reservations", ev.ProcessedReservations,
				"clients", ev.ProcessedClients,
			)
		}
		return nil
	}))

	bus.Subscribe("crm.finalization.failed", events.HandlerFunc(func(_ context.Context, e events.Event) error {
		if ev, ok := e.(events.FinalizationFailed); ok {
			log.Error("date finalization failed", "dateKey", ev.DateKey, "reason", ev.Reason)
		}
		return nil
	}))

	bus.Subscribe("crm.retention.client_anonymized", events.HandlerFunc(func(_ context.Context, e events.Event) error {
		if ev, ok := e.(events.ClientAnonymized); ok {
			log.Info("client anonymized", "clientId", ev.ClientID, "reason", ev.Reason)
		}
		return nil
	}))
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
