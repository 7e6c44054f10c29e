package scheduler

import (
	"context"
	"fmt"

	"resto_crm_backend/platform/config"
	"resto_crm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	// The hourly tick is cheap: the finalizer itself decides whether the
	// configured finalization hour has been reached in the restaurant's
	// timezone, so the cron entry stays timezone-agnostic.
	cronFinalizeHourly = "0 * * * *"

	// Retention runs once a day, offset from the finalization hour so the
	// two jobs never compete for the same tables.
	cronRetentionDaily = "30 5 * * *"
)

// Periodic registers the recurring CRM entries with asynq's scheduler.
// Multiple instances may run it; asynq deduplicates enqueues per entry.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
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

	sched := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Error("periodic enqueue failed", "error", err)
			}
		},
	})

	if _, err := sched.Register(cronFinalizeHourly, NewFinalizeScheduledTask(), asynq.Queue(queue)); err != nil {
		return nil, err
	}
	if _, err := sched.Register(cronRetentionDaily, NewRetentionSweepTask(), asynq.Queue(queue)); err != nil {
		return nil, err
	}

	return &Periodic{scheduler: sched, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}
