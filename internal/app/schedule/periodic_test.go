package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type countingLease struct {
	mu    sync.Mutex
	grant bool
	names []string
}

func (l *countingLease) Acquire(_ context.Context, name string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
	return l.grant, nil
}

func TestPeriodicRunsUntilCancelled(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	p := &Periodic{
		Job: JobFunc{JobName: "count", Fn: func(context.Context, time.Time) error {
			if runs.Add(1) >= 3 {
				cancel()
			}
			return errors.New("keeps going")
		}},
		Interval: 5 * time.Millisecond,
		Logger:   quiet,
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("periodic did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestPeriodicSkipsTickWithoutLease(t *testing.T) {
	lease := &countingLease{grant: false}
	var runs atomic.Int32
	p := &Periodic{
		Job:      JobFunc{JobName: "sweep", Fn: func(context.Context, time.Time) error { runs.Add(1); return nil }},
		Interval: time.Hour,
		Lease:    lease,
		Logger:   quiet,
	}
	p.tick(context.Background())
	assert.Zero(t, runs.Load())

	lease.grant = true
	p.tick(context.Background())
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, []string{"sweep:sweep", "sweep:sweep"}, lease.names)
}

func TestPeriodicPassesClock(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var seen time.Time
	p := &Periodic{
		Job:      JobFunc{JobName: "clock", Fn: func(_ context.Context, now time.Time) error { seen = now; return nil }},
		Interval: time.Hour,
		Now:      func() time.Time { return fixed },
		Logger:   quiet,
	}
	p.tick(context.Background())
	assert.Equal(t, fixed, seen)
}

func TestPeriodicRejectsZeroInterval(t *testing.T) {
	err := (&Periodic{Job: JobFunc{JobName: "x"}}).Run(context.Background())
	require.ErrorIs(t, err, ErrInvalidInterval)
}
