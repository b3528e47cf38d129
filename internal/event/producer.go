package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/orderengine/internal/domain"
	pkgkafka "github.com/utafrali/orderengine/pkg/kafka"
	"github.com/utafrali/orderengine/pkg/logger"
)

// Kafka topics written by the order engine.
var (
	TopicOrderCreated       = pkgkafka.Topic("order", "created")
	TopicOrderStatusChanged = pkgkafka.Topic("order", "status_changed")
)

// AggregateTypeOrder is the aggregate type of every order event.
const AggregateTypeOrder = "order"

// SourceOrderEngine identifies events published by this service.
const SourceOrderEngine = "order-engine"

// publisher is the part of *pkgkafka.Producer this package needs.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// OrderCreatedData is the order.created payload. Money is rendered with two
// decimal places in the order currency.
type OrderCreatedData struct {
	OrderID         string          `json:"order_id"`
	OrderNumber     string          `json:"order_number"`
	CustomerID      *string         `json:"customer_id,omitempty"`
	Email           string          `json:"email,omitempty"`
	Status          string          `json:"status"`
	Currency        string          `json:"currency"`
	Subtotal        string          `json:"subtotal"`
	Discount        string          `json:"discount"`
	Tax             string          `json:"tax"`
	Shipping        string          `json:"shipping"`
	Total           string          `json:"total"`
	ShippingMethod  string          `json:"shipping_method"`
	PromoCode       *string         `json:"promo_code,omitempty"`
	Lines           []OrderLineData `json:"lines"`
	ShippingAddress *domain.Address `json:"shipping_address,omitempty"`
}

// OrderLineData is one line of an order.created payload.
type OrderLineData struct {
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id,omitempty"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"line_total"`
}

// OrderStatusChangedData is the order.status_changed payload.
type OrderStatusChangedData struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	Reason      string `json:"reason,omitempty"`
}

// Producer publishes order lifecycle events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates an order event producer.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderCreated publishes the order snapshot the notification service
// uses for the confirmation email.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	lines := make([]OrderLineData, len(order.Lines))
	for i, l := range order.Lines {
		lines[i] = OrderLineData{
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			ProductName: l.ProductName,
			UnitPrice:   domain.FormatMoney(l.UnitPrice),
			Quantity:    l.Quantity,
			LineTotal:   domain.FormatMoney(l.LineTotal),
		}
	}

	data := OrderCreatedData{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		Email:           order.Email,
		Status:          string(order.Status),
		Currency:        order.Currency,
		Subtotal:        domain.FormatMoney(order.Subtotal),
		Discount:        domain.FormatMoney(order.Discount),
		Tax:             domain.FormatMoney(order.Tax),
		Shipping:        domain.FormatMoney(order.Shipping),
		Total:           domain.FormatMoney(order.Total),
		ShippingMethod:  string(order.ShippingMethod),
		PromoCode:       order.PromoCode,
		Lines:           lines,
		ShippingAddress: order.ShippingAddress,
	}

	if err := p.publish(ctx, TopicOrderCreated, order, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published order.created event",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
	)
	return nil
}

// PublishOrderStatusChanged publishes a status transition.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	data := OrderStatusChangedData{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OldStatus:   string(from),
		NewStatus:   string(order.Status),
		Reason:      order.CancelReason,
	}

	if err := p.publish(ctx, TopicOrderStatusChanged, order, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published order.status_changed event",
		slog.String("order_id", order.ID),
		slog.String("old_status", string(from)),
		slog.String("new_status", string(order.Status)),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic string, order *domain.Order, data any) error {
	event, err := pkgkafka.NewEvent(topic, order.ID, AggregateTypeOrder, SourceOrderEngine, data,
		pkgkafka.WithCorrelationID(logger.CorrelationIDFromContext(ctx)),
		pkgkafka.WithMetadata("order_number", order.OrderNumber),
	)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
