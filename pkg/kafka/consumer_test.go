package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves queued messages and cancels the consumer once drained.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	r.mu.Unlock()
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeDeadLetter struct {
	mu     sync.Mutex
	parked []kafka.Message
	causes []error
}

func (d *fakeDeadLetter) Publish(_ context.Context, msg kafka.Message, lastErr error, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.parked = append(d.parked, msg)
	d.causes = append(d.causes, lastErr)
	return nil
}

func eventMessage(t *testing.T, topic string, offset int64, eventType string) kafka.Message {
	t.Helper()
	event, err := NewEvent(eventType, "ord-1", "payment", "payment-service", map[string]string{"order_id": "ord-1"})
	require.NoError(t, err)
	value, err := event.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: topic, Offset: offset, Value: value}
}

func runConsumer(t *testing.T, group string, msgs []kafka.Message, handler Handler, opts ...ConsumerOption) *fakeReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{queue: msgs, cancel: cancel}
	cfg := ConsumerConfig{GroupID: group, Topics: []string{"a", "b"}, RetryBackoff: time.Millisecond}
	c := newConsumer(reader, cfg, handler, testLogger(), opts...)

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
	return reader
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	group := "test-consumer-handles"
	var seen []string
	handler := func(_ context.Context, e *Event) error {
		seen = append(seen, e.EventType)
		return nil
	}

	reader := runConsumer(t, group, []kafka.Message{
		eventMessage(t, "ecommerce.payment.captured", 1, "payment.captured"),
		eventMessage(t, "ecommerce.payment.failed", 2, "payment.failed"),
	}, handler)

	assert.Equal(t, []string{"payment.captured", "payment.failed"}, seen)
	require.Len(t, reader.committed, 2)
	assert.True(t, reader.closed)
	assert.InDelta(t, 1, testutil.ToFloat64(ConsumerMessagesProcessed.WithLabelValues("ecommerce.payment.captured", group)), 0.001)
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	handler := func(context.Context, *Event) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}

	reader := runConsumer(t, "test-consumer-retries", []kafka.Message{eventMessage(t, "a", 1, "payment.captured")}, handler)

	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, reader.committed, 1)
}

func TestConsumer_ExhaustedRetriesGoToDeadLetter(t *testing.T) {
	group := "test-consumer-dlq"
	dlq := &fakeDeadLetter{}
	cause := errors.New("order row locked")
	var calls atomic.Int32
	handler := func(context.Context, *Event) error {
		calls.Add(1)
		return cause
	}

	reader := runConsumer(t, group, []kafka.Message{eventMessage(t, "a", 7, "payment.failed")}, handler, WithDeadLetter(dlq))

	assert.Equal(t, int32(defaultMaxRetries), calls.Load())
	require.Len(t, dlq.parked, 1)
	assert.Equal(t, int64(7), dlq.parked[0].Offset)
	assert.ErrorIs(t, dlq.causes[0], cause)
	assert.Len(t, reader.committed, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(ConsumerDLQPublished.WithLabelValues("a", group)), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(ConsumerMessagesFailed.WithLabelValues("a", group)), 0.001)
}

func TestConsumer_MalformedMessageIsParkedWithoutHandling(t *testing.T) {
	dlq := &fakeDeadLetter{}
	var calls atomic.Int32
	handler := func(context.Context, *Event) error {
		calls.Add(1)
		return nil
	}

	reader := runConsumer(t, "test-consumer-malformed", []kafka.Message{{Topic: "a", Offset: 3, Value: []byte("garbage")}}, handler, WithDeadLetter(dlq))

	assert.Zero(t, calls.Load())
	require.Len(t, dlq.parked, 1)
	assert.ErrorIs(t, dlq.causes[0], ErrMalformedEvent)
	assert.Len(t, reader.committed, 1)
}

func TestConsumer_FailureWithoutDeadLetterIsCommitted(t *testing.T) {
	handler := func(context.Context, *Event) error { return errors.New("boom") }

	reader := runConsumer(t, "test-consumer-drop", []kafka.Message{eventMessage(t, "a", 1, "payment.failed")}, handler)
	assert.Len(t, reader.committed, 1)
}

func TestNewConsumer_Defaults(t *testing.T) {
	c := newConsumer(&fakeReader{}, ConsumerConfig{GroupID: "g"}, nil, testLogger())
	assert.Equal(t, defaultMaxRetries, c.maxRetries)
	assert.Equal(t, defaultRetryBackoff, c.backoff)
	assert.Nil(t, c.dlq)
}
