package service

import (
	"context"
	"errors"
	"testing"

	"resto_crm_backend/platform/apperr"
)

type fakeEnqueuer struct {
	dateKeys []string
	err      error
}

func (e *fakeEnqueuer) EnqueueForceFinalize(_ context.Context, dateKey string) error {
	if e.err != nil {
		return e.err
	}
	e.dateKeys = append(e.dateKeys, dateKey)
	return nil
}

func TestForceFinalizeEnqueues(t *testing.T) {
	enq := &fakeEnqueuer{}
	svc := New(nil, nil, enq, testLogger())

	if err := svc.ForceFinalize(context.Background(), "2026-03-14"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(enq.dateKeys) != 1 || enq.dateKeys[0] != "2026-03-14" {
		t.Fatalf("expected one enqueued date, got %v", enq.dateKeys)
	}
}

func TestForceFinalizeRejectsMalformedDateKey(t *testing.T) {
	svc := New(nil, nil, &fakeEnqueuer{}, testLogger())

	err := svc.ForceFinalize(context.Background(), "14/03/2026")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestForceFinalizeWithoutWorkerIsConflict(t *testing.T) {
	svc := New(nil, nil, nil, testLogger())

	err := svc.ForceFinalize(context.Background(), "2026-03-14")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestForceFinalizeWrapsEnqueueFailure(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("redis down")}
	svc := New(nil, nil, enq, testLogger())

	err := svc.ForceFinalize(context.Background(), "2026-03-14")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
	if !errors.Is(err, enq.err) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
