package usecase

import (
	"context"
	"time"
)

// RetryPolicy bounds repeated calls against an unreliable collaborator. The
// delay before retry n is n times the base delay, so a struggling endpoint
// sees strictly increasing gaps between attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	return p
}

type sleepFunc func(context.Context, time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withRetry runs fn up to the policy's attempt cap, logging and backing off
// between failures. The last call error is returned after exhaustion.
func (p *Pipeline) withRetry(ctx context.Context, policy RetryPolicy, label string, fn func() error) error {
	policy = policy.normalized()

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		if attempt == policy.MaxAttempts {
			p.logger.Error("giving up after retries", "op", label, "attempts", attempt, "error", err)
			break
		}

		delay := time.Duration(attempt) * policy.BaseDelay
		p.logger.Warn("retrying after failure", "op", label, "attempt", attempt, "delay", delay, "error", err)
		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}

	return err
}
