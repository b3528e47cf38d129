package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/orderengine/internal/domain"
)

// EventPublisher publishes order lifecycle events. Delivery failures never
// roll back the operation that produced the event.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) error
}

// PaymentCapturer hands an order's amount due to the payment service. The
// outcome arrives later as a captured or failed event.
type PaymentCapturer interface {
	Capture(ctx context.Context, orderID string, amount decimal.Decimal, currency string) error
}

// RateCache stores the rate table between placements.
type RateCache interface {
	Get(ctx context.Context) ([]domain.CurrencyRate, time.Time, error)
	Set(ctx context.Context, rates []domain.CurrencyRate, takenAt time.Time) error
}
