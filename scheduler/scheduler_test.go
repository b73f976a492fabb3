package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"pricewatch/config"
	"pricewatch/models"
)

type countingRunner struct {
	calls atomic.Int64
}

func (r *countingRunner) RunBatch(ctx context.Context) (*models.BatchResult, error) {
	r.calls.Add(1)
	return &models.BatchResult{}, nil
}

func TestStart_InvalidCron(t *testing.T) {
	sched := New(&config.SchedulerConfig{Cron: "not a cron expr"}, &countingRunner{})

	if err := sched.Start(context.Background()); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}

func TestStart_NoSchedule(t *testing.T) {
	runner := &countingRunner{}
	sched := New(&config.SchedulerConfig{}, runner)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sched.Stop()

	if runner.calls.Load() != 0 {
		t.Fatalf("no schedule must mean no runs, got %d", runner.calls.Load())
	}
}

func TestIntervalSchedule(t *testing.T) {
	runner := &countingRunner{}
	sched := New(&config.SchedulerConfig{Interval: 10 * time.Millisecond}, runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for runner.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("scheduler never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sched.Stop()
}

func TestTriggerNow(t *testing.T) {
	runner := &countingRunner{}
	sched := New(&config.SchedulerConfig{}, runner)

	if err := sched.TriggerNow(context.Background()); err != nil {
		t.Fatalf("TriggerNow failed: %v", err)
	}
	if runner.calls.Load() != 1 {
		t.Fatalf("expected 1 run, got %d", runner.calls.Load())
	}
}
