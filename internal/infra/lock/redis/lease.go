package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"rentacar/internal/app/policies"
)

// Lease grants a named job to one replica per ttl using SET NX PX. The key
// is never released early; it expires with the ttl.
type Lease struct {
	client *goredis.Client
	owner  string
	prefix string
}

func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

func NewLease(client *goredis.Client, owner string) *Lease {
	return &Lease{client: client, owner: owner, prefix: "rentacar:lease:"}
}

func (l *Lease) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+name, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire %s: %w", name, err)
	}
	return ok, nil
}

var _ policies.Lease = (*Lease)(nil)
