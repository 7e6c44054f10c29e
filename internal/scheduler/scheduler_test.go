package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type fakeSchedulerConfig struct {
	redisURL    string
	tlsInsecure bool
	queue       string
	concurrency int
}

func (c *fakeSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c *fakeSchedulerConfig) GetRedisTLSInsecure() bool { return c.tlsInsecure }
func (c *fakeSchedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c *fakeSchedulerConfig) GetAsynqConcurrency() int  { return c.concurrency }

func TestParseFinalizeForcePayloadRoundTrip(t *testing.T) {
	task, err := NewFinalizeForceTask(FinalizeForcePayload{DateKey: "2026-03-14"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Type() != TaskFinalizeForce {
		t.Fatalf("expected task type %s, got %s", TaskFinalizeForce, task.Type())
	}

	payload, err := ParseFinalizeForcePayload(task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.DateKey != "2026-03-14" {
		t.Fatalf("expected dateKey preserved, got %s", payload.DateKey)
	}
}

func TestParseFinalizeForcePayloadRejectsGarbage(t *testing.T) {
	task := asynq.NewTask(TaskFinalizeForce, []byte("{not json"))
	if _, err := ParseFinalizeForcePayload(task); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(&fakeSchedulerConfig{}); err == nil {
		t.Fatal("expected error without redis url")
	}
}

func TestEnqueueForceFinalizeLandsOnConfiguredQueue(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &fakeSchedulerConfig{
		redisURL: "redis://" + mr.Addr(),
		queue:    "crm",
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.EnqueueForceFinalize(context.Background(), "2026-03-14"); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer func() { _ = inspector.Close() }()

	pending, err := inspector.ListPendingTasks("crm")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending task, got %d", len(pending))
	}
	if pending[0].Type != TaskFinalizeForce {
		t.Fatalf("expected %s task, got %s", TaskFinalizeForce, pending[0].Type)
	}

	payload, err := ParseFinalizeForcePayload(asynq.NewTask(pending[0].Type, pending[0].Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.DateKey != "2026-03-14" {
		t.Fatalf("expected dateKey 2026-03-14, got %s", payload.DateKey)
	}
}

func TestRedisClientOptTLSInsecure(t *testing.T) {
	opt, err := redisClientOpt("rediss://redis.internal:6380", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatalf("expected insecure TLS config, got %+v", opt.TLSConfig)
	}

	opt, err = redisClientOpt("redis://redis.internal:6379", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.TLSConfig != nil {
		t.Fatal("expected no TLS config for plain redis url")
	}
}
