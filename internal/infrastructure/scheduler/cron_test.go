package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartupRun(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	sched := NewCronScheduler(time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx, func(time.Time) { runs.Add(1) }); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer sched.Stop(context.Background())

	deadline := time.After(time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("startup run never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStopCancelsStartupRun(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	sched := NewCronScheduler(time.Hour, time.Hour)

	if err := sched.Start(context.Background(), func(time.Time) { runs.Add(1) }); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if runs.Load() != 0 {
		t.Fatalf("expected no runs after stop, got %d", runs.Load())
	}
}

func TestStartTwiceIsNoop(t *testing.T) {
	t.Parallel()

	sched := NewCronScheduler(time.Hour, time.Hour)
	defer sched.Stop(context.Background())

	if err := sched.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("first Start error: %v", err)
	}
	if err := sched.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("second Start error: %v", err)
	}
}
