package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	appoutbox "rentacar/internal/app/outbox"
	infraoutbox "rentacar/internal/infra/outbox"
)

type outboxEntry struct {
	record    appoutbox.EventRecord
	state     string
	attempts  int
	next      time.Time
	lastError string
	seq       int
}

// Outbox keeps event records in memory and serves them to the relay worker
// in insertion order.
type Outbox struct {
	mu      sync.Mutex
	entries map[string]*outboxEntry
	seq     int
	wake    chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{entries: make(map[string]*outboxEntry), wake: make(chan struct{}, 1)}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	o.entries[record.ID] = &outboxEntry{record: record, state: "NEW", next: time.Now(), seq: o.seq}
	return nil
}

// Flush wakes the relay.
func (o *Outbox) Flush(ctx context.Context) error {
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

func (o *Outbox) Wake() <-chan struct{} {
	return o.wake
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*infraoutbox.Pending, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	due := make([]*outboxEntry, 0)
	for _, e := range o.entries {
		if (e.state == "NEW" || e.state == "FAILED") && !e.next.After(now) {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, j int) bool { return due[i].seq < due[j].seq })
	e := due[0]
	e.state = "CLAIMED"
	return &infraoutbox.Pending{
		ID:         e.record.ID,
		Name:       e.record.Name,
		Payload:    e.record.Payload,
		OccurredAt: e.record.OccurredAt,
		Aggregate:  e.record.Aggregate,
		Headers:    e.record.Headers,
		Attempts:   e.attempts,
	}, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, id)
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.entries[id]; ok {
		e.state = "FAILED"
		e.attempts++
		e.next = next
		e.lastError = errMsg
	}
	return nil
}

// Pending returns the records not yet published.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	entries := make([]*outboxEntry, 0, len(o.entries))
	for _, e := range o.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]appoutbox.EventRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.record)
	}
	return out
}

var (
	_ appoutbox.Outbox  = (*Outbox)(nil)
	_ infraoutbox.Store = (*Outbox)(nil)
)
