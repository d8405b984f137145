package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsScanner/internal/ports"
)

// CronScheduler fires cycles on a fixed interval and once at startup after a
// grace delay, so dependent services can finish initializing first.
type CronScheduler struct {
	interval     time.Duration
	startupDelay time.Duration

	mu   sync.Mutex
	cron *cron.Cron
	stop chan struct{}
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler configures interval and startup grace delay.
func NewCronScheduler(interval, startupDelay time.Duration) *CronScheduler {
	return &CronScheduler{interval: interval, startupDelay: startupDelay}
}

// Start registers the recurring job and arms the startup run. Calling Start
// on a running scheduler is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cron != nil {
		return nil
	}

	runner := cron.New()
	spec := fmt.Sprintf("@every %s", c.interval)
	if _, err := runner.AddFunc(spec, func() { job(time.Now()) }); err != nil {
		return fmt.Errorf("register schedule %q: %w", spec, err)
	}

	c.cron = runner
	c.stop = make(chan struct{})
	runner.Start()

	go func(stop chan struct{}) {
		timer := time.NewTimer(c.startupDelay)
		defer timer.Stop()

		select {
		case t := <-timer.C:
			job(t)
		case <-ctx.Done():
		case <-stop:
		}
	}(c.stop)

	return nil
}

// Stop halts scheduling; an in-flight job is allowed to finish.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cron == nil {
		return nil
	}

	close(c.stop)
	stopCtx := c.cron.Stop()
	c.cron = nil

	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
