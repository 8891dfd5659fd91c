package policies

import (
	"context"
	"time"
)

// Lease grants one holder the right to run a named job for ttl. Acquire
// returns false without error when another holder has it.
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
}
