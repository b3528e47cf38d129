package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDLQTopic(t *testing.T) {
	assert.Equal(t, "ecommerce.dlq.ecommerce.payment.captured", DLQTopic("ecommerce.payment.captured"))
	assert.Equal(t, "ecommerce.dlq.orders", DLQTopic("orders"))
}

func TestDLQProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	failedAt := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	d := &DLQProducer{writer: w, logger: testLogger(), now: func() time.Time { return failedAt }}

	original := kafka.Message{
		Topic:     "ecommerce.payment.failed",
		Partition: 2,
		Offset:    117,
		Key:       []byte("ord-1"),
		Value:     []byte(`{"event_type":"payment.failed"}`),
		Headers:   []kafka.Header{{Key: "event_type", Value: []byte("payment.failed")}},
	}

	require.NoError(t, d.Publish(context.Background(), original, errors.New("order locked"), "order-engine"))
	require.Len(t, w.written, 1)

	letter := w.written[0]
	assert.Equal(t, "ecommerce.dlq.ecommerce.payment.failed", letter.Topic)
	assert.Equal(t, original.Key, letter.Key)
	assert.Equal(t, original.Value, letter.Value)
	assert.Equal(t, "payment.failed", headerValue(letter.Headers, "event_type"))
	assert.Equal(t, "ecommerce.payment.failed", headerValue(letter.Headers, "dlq.original_topic"))
	assert.Equal(t, "2", headerValue(letter.Headers, "dlq.original_partition"))
	assert.Equal(t, "117", headerValue(letter.Headers, "dlq.original_offset"))
	assert.Equal(t, "order-engine", headerValue(letter.Headers, "dlq.consumer_group"))
	assert.Equal(t, "2025-06-15T12:00:00Z", headerValue(letter.Headers, "dlq.failed_at"))
	assert.Equal(t, "order locked", headerValue(letter.Headers, "dlq.error"))
}

func TestDLQProducer_PublishError(t *testing.T) {
	d := &DLQProducer{writer: &fakeWriter{err: errors.New("broker down")}, logger: testLogger(), now: time.Now}

	err := d.Publish(context.Background(), kafka.Message{Topic: "t"}, nil, "g")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ecommerce.dlq.t")
}
