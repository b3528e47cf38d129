package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/internal/repository"
	apperrors "github.com/utafrali/orderengine/pkg/errors"
	"github.com/utafrali/orderengine/pkg/tracing"
)

// OrderService implements reads and lifecycle changes for placed orders.
type OrderService struct {
	repo      repository.OrderRepository
	store     repository.Store
	publisher EventPublisher
	logger    *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(repo repository.OrderRepository, store repository.Store, publisher EventPublisher, logger *slog.Logger) *OrderService {
	return &OrderService{
		repo:      repo,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// GetOrder retrieves an order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return order, nil
}

// GetOrderByNumber retrieves an order by its human-readable number.
func (s *OrderService) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	order, err := s.repo.GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
	if err != nil {
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	return order, nil
}

// ListOrders returns a filtered, paginated list of orders.
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}
	if filter.Status != nil && !domain.IsValidStatus(string(*filter.Status)) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", *filter.Status))
	}

	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus moves an order to a new status, enforcing the lifecycle.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status, reason string) (*domain.Order, error) {
	if !domain.IsValidStatus(status) {
		statuses := make([]string, 0, len(domain.ValidStatuses()))
		for _, st := range domain.ValidStatuses() {
			statuses = append(statuses, string(st))
		}
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be one of: %s", status, strings.Join(statuses, ", ")))
	}
	return s.transition(ctx, id, domain.OrderStatus(status), reason)
}

// CancelOrder cancels an order and returns its reserved stock.
func (s *OrderService) CancelOrder(ctx context.Context, id, reason string) (*domain.Order, error) {
	return s.transition(ctx, id, domain.OrderStatusCancelled, reason)
}

// errStatusChanged reports an order that left the status a change expected.
var errStatusChanged = errors.New("order status changed")

// HandlePaymentResult applies an asynchronous capture outcome to a pending
// order. Captured orders move to processing; failed ones are cancelled and
// restocked. Results for orders that are no longer pending are ignored.
func (s *OrderService) HandlePaymentResult(ctx context.Context, orderID string, captured bool, reason string) (err error) {
	ctx, span := tracer.Start(ctx, "OrderService.HandlePaymentResult")
	defer func() { tracing.End(span, err) }()

	target := domain.OrderStatusProcessing
	if !captured {
		target = domain.OrderStatusCancelled
		if reason == "" {
			reason = "payment failed"
		}
	} else {
		reason = ""
	}

	_, err = s.transitionFrom(ctx, orderID, domain.OrderStatusPending, target, reason)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errStatusChanged), errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, apperrors.ErrNotFound):
		s.logger.WarnContext(ctx, "ignoring payment result",
			slog.String("order_id", orderID),
			slog.Bool("captured", captured),
			slog.String("reason", err.Error()),
		)
		return nil
	default:
		return err
	}
}

func (s *OrderService) transition(ctx context.Context, id string, target domain.OrderStatus, reason string) (*domain.Order, error) {
	return s.transitionFrom(ctx, id, "", target, reason)
}

// transitionFrom moves the order to target under a row lock. A non-empty
// expected status must match the locked row.
func (s *OrderService) transitionFrom(
	ctx context.Context,
	id string,
	expected, target domain.OrderStatus,
	reason string,
) (*domain.Order, error) {
	var (
		order *domain.Order
		from  domain.OrderStatus
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if expected != "" && o.Status != expected {
			return fmt.Errorf("%w: order %s is %s, not %s", errStatusChanged, o.ID, o.Status, expected)
		}
		if !o.CanTransitionTo(target) {
			return domain.InvalidTransition(o.Status, target)
		}

		if target == domain.OrderStatusCancelled {
			_, held := mergeOrderLines(o.Lines)
			for _, productID := range sortedKeys(held) {
				if err := tx.RestoreStock(ctx, productID, held[productID], o.ID); err != nil {
					return err
				}
			}
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, target, reason); err != nil {
			return err
		}

		from = o.Status
		o.Status = target
		o.CancelReason = reason
		order = o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := s.publisher.PublishOrderStatusChanged(ctx, order, from); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", order.ID),
		slog.String("old_status", string(from)),
		slog.String("new_status", string(target)),
	)
	return order, nil
}

// mergeOrderLines sums stored line quantities per product.
func mergeOrderLines(lines []domain.OrderLine) ([]LineItemInput, map[string]int) {
	in := make([]LineItemInput, len(lines))
	for i, l := range lines {
		in[i] = LineItemInput{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity}
	}
	return mergeLines(in)
}
