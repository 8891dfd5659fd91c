package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "rentacar/internal/app/outbox"
	domainbooking "rentacar/internal/domain/booking"
	infraoutbox "rentacar/internal/infra/outbox"
	"rentacar/internal/infra/storage/memory"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	out  []published
	fail int
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail > 0 {
		p.fail--
		return errors.New("broker unavailable")
	}
	p.out = append(p.out, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func record(id, name string, payload string) appoutbox.EventRecord {
	return appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(payload),
		OccurredAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Aggregate:  "bk-1",
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
	}
}

func TestDrainPublishesCloudEventsInOrder(t *testing.T) {
	box := memory.NewOutbox()
	require.NoError(t, box.Add(context.Background(), record("ev-1", domainbooking.EventScheduled, `{"booking_id":"bk-1"}`)))
	require.NoError(t, box.Add(context.Background(), record("ev-2", domainbooking.EventCancelled, `{"booking_id":"bk-1"}`)))
	producer := &fakeProducer{}
	w := &infraoutbox.Worker{Store: box, Producer: producer, TopicPrefix: "prod.", ID: "w-1"}

	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Empty(t, box.Pending())

	require.Len(t, producer.out, 2)
	first := producer.out[0]
	assert.Equal(t, "prod.booking.events.v1", first.topic)
	assert.Equal(t, "bk-1", first.key)
	assert.Equal(t, "application/cloudevents+json", first.headers["content-type"])
	assert.Equal(t, "00-abc-def-01", first.headers["traceparent"])

	var evt infraoutbox.CloudEvent
	require.NoError(t, json.Unmarshal(first.payload, &evt))
	assert.Equal(t, "ev-1", evt.ID)
	assert.Equal(t, "booking.scheduled.v1", evt.Type)
	assert.Equal(t, domainbooking.EventScheduled, evt.EventName())
	assert.Equal(t, "app://rentacar", evt.Source)
	assert.JSONEq(t, `{"booking_id":"bk-1"}`, string(evt.Data))
}

func TestDrainBacksOffFailedPublish(t *testing.T) {
	box := memory.NewOutbox()
	require.NoError(t, box.Add(context.Background(), record("ev-1", domainbooking.EventScheduled, `{}`)))
	producer := &fakeProducer{fail: 1}
	w := &infraoutbox.Worker{Store: box, Producer: producer, Backoff: []time.Duration{time.Hour}}

	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Empty(t, producer.out)
	assert.Len(t, box.Pending(), 1)

	sent, err = w.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent, "record is parked until its backoff elapses")
}

func TestDrainParksInvalidPayload(t *testing.T) {
	box := memory.NewOutbox()
	require.NoError(t, box.Add(context.Background(), record("ev-1", domainbooking.EventScheduled, `not json`)))
	producer := &fakeProducer{}
	w := &infraoutbox.Worker{Store: box, Producer: producer}

	_, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Empty(t, producer.out)
	assert.Len(t, box.Pending(), 1)
}

func TestRunWakesOnFlushAndStops(t *testing.T) {
	box := memory.NewOutbox()
	producer := &fakeProducer{}
	w := &infraoutbox.Worker{Store: box, Producer: producer, Wake: box.Wake(), Interval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, box.Add(context.Background(), record("ev-1", domainbooking.EventDeleted, `{}`)))
	require.NoError(t, box.Flush(context.Background()))
	require.Eventually(t, func() bool { return len(box.Pending()) == 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.ErrorIs(t, (&infraoutbox.Worker{}).Run(context.Background()), infraoutbox.ErrWorkerNotConfigured)
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "booking.events.v1", infraoutbox.TopicFor("", "booking.completed"))
	assert.Equal(t, "dev.cars.events.v1", infraoutbox.TopicFor("dev.", "cars"))
}
