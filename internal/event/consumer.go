package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/orderengine/pkg/kafka"
)

// Kafka topics the order engine consumes.
var (
	TopicPaymentCaptured = pkgkafka.Topic("payment", "captured")
	TopicPaymentFailed   = pkgkafka.Topic("payment", "failed")
)

// PaymentResultData is the payload of payment.captured and payment.failed.
type PaymentResultData struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Currency  string `json:"currency,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// PaymentResultHandler applies a capture outcome to an order.
type PaymentResultHandler interface {
	HandlePaymentResult(ctx context.Context, orderID string, captured bool, reason string) error
}

// PaymentConsumerConfig configures the payment result consumer.
type PaymentConsumerConfig struct {
	Brokers    []string
	GroupID    string
	MaxRetries int
}

// NewPaymentConsumer builds a deduplicating consumer over both payment result
// topics. Messages that fail every retry are parked with dlq when it is non-nil.
func NewPaymentConsumer(
	cfg PaymentConsumerConfig,
	results PaymentResultHandler,
	store pkgkafka.IdempotencyStore,
	dlq pkgkafka.DeadLetterPublisher,
	logger *slog.Logger,
) *pkgkafka.Consumer {
	var opts []pkgkafka.ConsumerOption
	if dlq != nil {
		opts = append(opts, pkgkafka.WithDeadLetter(dlq))
	}

	handler := pkgkafka.IdempotentHandler(store, HandlePaymentEvent(results, logger), logger)
	return pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:    cfg.Brokers,
		GroupID:    cfg.GroupID,
		Topics:     []string{TopicPaymentCaptured, TopicPaymentFailed},
		MinBytes:   1,
		MaxBytes:   10e6,
		MaxRetries: cfg.MaxRetries,
	}, handler, logger, opts...)
}

// HandlePaymentEvent decodes payment result events and forwards them to
// results. Unknown event types are skipped.
func HandlePaymentEvent(results PaymentResultHandler, logger *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, event *pkgkafka.Event) error {
		var captured bool
		switch event.EventType {
		case TopicPaymentCaptured:
			captured = true
		case TopicPaymentFailed:
		default:
			logger.DebugContext(ctx, "ignoring unrelated event", slog.String("event_type", event.EventType))
			return nil
		}

		var data PaymentResultData
		if err := event.UnmarshalData(&data); err != nil {
			return err
		}
		if data.OrderID == "" {
			return fmt.Errorf("%s event %s has no order id", event.EventType, event.EventID)
		}

		logger.InfoContext(ctx, "payment result received",
			slog.String("order_id", data.OrderID),
			slog.Bool("captured", captured),
		)
		return results.HandlePaymentResult(ctx, data.OrderID, captured, data.Reason)
	}
}
