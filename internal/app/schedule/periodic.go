package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rentacar/internal/app/policies"
)

// Job is one tick of a background sweep. Each call opens and closes its own
// unit of work.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) error
}

type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context, now time.Time) error
}

func (f JobFunc) Name() string { return f.JobName }

func (f JobFunc) Run(ctx context.Context, now time.Time) error { return f.Fn(ctx, now) }

// Periodic runs Job immediately and then every Interval until ctx is done.
// With a Lease configured, a tick only runs on the replica that acquires it.
type Periodic struct {
	Job      Job
	Interval time.Duration
	Lease    policies.Lease
	LeaseTTL time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

var ErrInvalidInterval = errors.New("schedule: interval must be positive")

// Run blocks until ctx is cancelled and then returns ctx.Err().
func (p *Periodic) Run(ctx context.Context) error {
	if p.Interval <= 0 {
		return ErrInvalidInterval
	}
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Periodic) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	logger := p.logger().With("job", p.Job.Name())
	if p.Lease != nil {
		ttl := p.LeaseTTL
		if ttl <= 0 {
			ttl = p.Interval
		}
		ok, err := p.Lease.Acquire(ctx, "sweep:"+p.Job.Name(), ttl)
		if err != nil {
			logger.Warn("lease acquire failed", "error", err)
			return
		}
		if !ok {
			logger.Debug("lease held elsewhere, skipping tick")
			return
		}
	}
	started := time.Now()
	if err := p.Job.Run(ctx, p.now()); err != nil {
		logger.Error("job failed", "error", err)
		return
	}
	logger.Debug("job finished", "elapsed", time.Since(started))
}

func (p *Periodic) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Periodic) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
