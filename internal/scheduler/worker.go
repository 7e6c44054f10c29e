package scheduler

import (
	"context"
	"fmt"

	"resto_crm_backend/internal/crm/service"
	"resto_crm_backend/platform/config"
	"resto_crm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Finalizer is the slice of the finalization service the worker drives.
type Finalizer interface {
	RunScheduled(ctx context.Context) (service.RunReport, error)
	FinalizeDate(ctx context.Context, dateKey string) (service.DateReport, error)
}

// Purger runs the retention sweep.
type Purger interface {
	Sweep(ctx context.Context) (service.SweepReport, error)
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	finalizer Finalizer
	purger    Purger
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, finalizer Finalizer, purger Purger, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		finalizer: finalizer,
		purger:    purger,
		log:       log,
	}

	mux.HandleFunc(TaskFinalizeScheduled, w.handleFinalizeScheduled)
	mux.HandleFunc(TaskFinalizeForce, w.handleFinalizeForce)
	mux.HandleFunc(TaskRetentionSweep, w.handleRetentionSweep)

	return w, nil
}

func (w *Worker) handleFinalizeScheduled(ctx context.Context, _ *asynq.Task) error {
	report, err := w.finalizer.RunScheduled(ctx)
	if err != nil {
		return err
	}

	if report.Skipped {
		w.log.Info("scheduled finalization skipped", "reason", report.SkipReason)
		return nil
	}

	w.log.Info("scheduled finalization complete", "dates", len(report.Dates))
	return nil
}

func (w *Worker) handleFinalizeForce(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFinalizeForcePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	report, err := w.finalizer.FinalizeDate(ctx, payload.DateKey)
	if err != nil {
		return err
	}

	if report.Skipped {
		w.log.Info("forced finalization skipped", "dateKey", payload.DateKey, "reason", report.SkipReason)
		return nil
	}

	w.log.Info("forced finalization complete",
		"dateKey", payload.DateKey,
		"reservations", report.ProcessedReservations,
		"clients", report.ProcessedClients,
	)
	return nil
}

func (w *Worker) handleRetentionSweep(ctx context.Context, _ *asynq.Task) error {
	report, err := w.purger.Sweep(ctx)
	if err != nil {
		return err
	}

	w.log.Info("retention sweep complete",
		"anonymizedClients", report.AnonymizedClients,
		"deletedRuns", report.DeletedRuns,
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
