package kafka

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func headerValue(headers []kafka.Header, key string) string {
	return NewHeaderCarrier(&headers).Get(key)
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"broker1:9092", "broker2:9092"})
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}

func TestProducer_Publish(t *testing.T) {
	useTraceContextPropagator(t)
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: testLogger()}
	topic := "test.producer.publish"
	before := testutil.ToFloat64(ProducerMessagesPublished.WithLabelValues(topic))

	event, err := NewEvent("order.created", "ord-1", "order", "order-engine", map[string]string{"id": "ord-1"}, WithCorrelationID("req-42"))
	require.NoError(t, err)

	ctx := ExtractTraceContext(context.Background(), []kafka.Header{{Key: "traceparent", Value: []byte(testTraceparent)}})
	require.NoError(t, p.Publish(ctx, topic, event))

	require.Len(t, w.written, 1)
	msg := w.written[0]
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, []byte("ord-1"), msg.Key)
	assert.Equal(t, "order.created", headerValue(msg.Headers, "event_type"))
	assert.Equal(t, "order-engine", headerValue(msg.Headers, "source"))
	assert.Equal(t, "req-42", headerValue(msg.Headers, "correlation_id"))
	assert.Equal(t, testTraceparent, headerValue(msg.Headers, "traceparent"))

	decoded, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.InDelta(t, before+1, testutil.ToFloat64(ProducerMessagesPublished.WithLabelValues(topic)), 0.001)
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &Producer{writer: w, logger: testLogger()}
	topic := "test.producer.error"
	before := testutil.ToFloat64(ProducerPublishErrors.WithLabelValues(topic))

	event, err := NewEvent("order.created", "ord-1", "order", "order-engine", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), topic, event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), topic)
	assert.InDelta(t, before+1, testutil.ToFloat64(ProducerPublishErrors.WithLabelValues(topic)), 0.001)
}

func TestNewProducer_NoConnectionUntilPublish(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {}} {
		err := PingBrokers(t.Context(), brokers)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no brokers configured")
	}
}
