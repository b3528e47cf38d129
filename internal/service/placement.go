package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/internal/repository"
	apperrors "github.com/utafrali/orderengine/pkg/errors"
	"github.com/utafrali/orderengine/pkg/logger"
	"github.com/utafrali/orderengine/pkg/tracing"
	"github.com/utafrali/orderengine/pkg/validator"
)

// PricingConfig holds the store-wide pricing parameters.
type PricingConfig struct {
	BaseCurrency   string
	TaxRatePercent decimal.Decimal
	Shipping       domain.ShippingTable
}

// LineItemInput is one requested product line.
type LineItemInput struct {
	ProductID string `json:"product_id" validate:"notblank"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// PlaceOrderInput holds the parameters for placing an order. A nil
// CustomerID places a guest order.
type PlaceOrderInput struct {
	CustomerID      *string
	Email           string          `validate:"omitempty,email"`
	Lines           []LineItemInput `validate:"required,min=1,dive"`
	ShippingAddress *domain.Address `validate:"required"`
	BillingAddress  *domain.Address `validate:"required"`
	ShippingMethod  string
	Currency        string `validate:"required,currency"`
	PromoCode       string
}

// PlacementService turns a cart into a persisted, priced order.
type PlacementService struct {
	catalog   repository.CatalogReader
	store     repository.Store
	rates     *RateProvider
	publisher EventPublisher
	payments  PaymentCapturer
	pricing   PricingConfig
	logger    *slog.Logger
	now       func() time.Time

	handoffs sync.WaitGroup
}

// NewPlacementService creates a new placement service.
func NewPlacementService(
	catalog repository.CatalogReader,
	store repository.Store,
	rates *RateProvider,
	publisher EventPublisher,
	payments PaymentCapturer,
	pricing PricingConfig,
	logger *slog.Logger,
) *PlacementService {
	pricing.BaseCurrency = domain.NormalizeCurrency(pricing.BaseCurrency)
	return &PlacementService{
		catalog:   catalog,
		store:     store,
		rates:     rates,
		publisher: publisher,
		payments:  payments,
		pricing:   pricing,
		logger:    logger,
		now:       time.Now,
	}
}

// PlaceOrder validates, prices and persists an order in one transaction.
// Stock, promo usage and the order row commit together or not at all.
func (s *PlacementService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (order *domain.Order, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "PlacementService.PlaceOrder")
	defer func() {
		s.record(order, err, time.Since(start))
		tracing.End(span, err)
	}()

	if err := validator.Validate(input); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	method := domain.ShippingMethod(strings.ToLower(strings.TrimSpace(input.ShippingMethod)))
	baseShipping, err := s.pricing.Shipping.Cost(method)
	if err != nil {
		return nil, err
	}

	currency := domain.NormalizeCurrency(input.Currency)
	lines, needed := mergeLines(input.Lines)
	productIDs := sortedKeys(needed)

	table, err := s.rates.Snapshot(ctx)
	if err != nil {
		return nil, domain.PersistenceFailure(err)
	}
	if _, err := table.Lookup(currency); err != nil {
		return nil, err
	}

	for _, id := range productIDs {
		p, err := s.catalog.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, domain.ProductUnavailable(id)
			}
			return nil, domain.PersistenceFailure(err)
		}
		if !p.Purchasable() {
			return nil, domain.ProductUnavailable(id)
		}
	}

	now := s.now().UTC()
	orderID := uuid.New().String()
	order = &domain.Order{
		ID:              orderID,
		OrderNumber:     domain.NewOrderNumber(now, orderID),
		CustomerID:      input.CustomerID,
		Email:           strings.TrimSpace(input.Email),
		Status:          domain.OrderStatusPending,
		Currency:        currency,
		ShippingMethod:  method,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		locked, err := tx.LockProducts(ctx, productIDs)
		if err != nil {
			return err
		}
		for _, id := range productIDs {
			p := locked[id]
			if !p.Purchasable() {
				return domain.ProductUnavailable(id)
			}
			if !p.CanFulfil(needed[id]) {
				return domain.InsufficientStock(id, needed[id], p.Stock)
			}
		}
		for _, id := range productIDs {
			if err := tx.ReserveStock(ctx, id, needed[id], orderID); err != nil {
				return err
			}
		}

		priced := make([]domain.OrderLine, 0, len(lines))
		for _, l := range lines {
			p := locked[l.ProductID]
			unit, err := table.Convert(p.Price, p.Currency, currency)
			if err != nil {
				return err
			}
			// Lines carry the cent-rounded price; line totals and the subtotal derive from it.
			line := domain.NewOrderLine(p, l.VariantID, domain.RoundMoney(unit), l.Quantity)
			line.ID = uuid.New().String()
			line.OrderID = orderID
			priced = append(priced, line)
		}

		shipping, err := table.Convert(baseShipping, s.pricing.BaseCurrency, currency)
		if err != nil {
			return err
		}

		discount := decimal.Zero
		if code := domain.NormalizePromoCode(input.PromoCode); code != "" {
			promo, err := s.redeemablePromo(ctx, tx, table, code, currency, domain.Subtotal(priced), now)
			if err != nil {
				return err
			}
			discount, shipping = promo.Apply(domain.Subtotal(priced), shipping)
			order.PromoCode = &promo.Code
		}

		order.ApplyTotals(domain.ComputeTotals(priced, shipping, s.pricing.TaxRatePercent, discount).Rounded())
		order.Lines = priced

		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		if order.PromoCode != nil {
			if err := tx.IncrementPromoUsage(ctx, *order.PromoCode); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if domain.IsPlacementError(err) {
			return nil, err
		}
		return nil, domain.PersistenceFailure(err)
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("currency", order.Currency),
		slog.String("total", domain.FormatMoney(order.Total)),
		slog.Bool("guest", order.CustomerID == nil),
	)

	s.handOff(ctx, order)
	return order, nil
}

// redeemablePromo locks the code and validates it against the pre-discount
// subtotal in the order currency.
func (s *PlacementService) redeemablePromo(
	ctx context.Context,
	tx repository.Tx,
	table domain.RateTable,
	code, currency string,
	subtotal decimal.Decimal,
	now time.Time,
) (*domain.PromoCode, error) {
	promo, err := tx.LockPromo(ctx, code)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if promo != nil {
		if promo, err = promo.InCurrency(table, s.pricing.BaseCurrency, currency); err != nil {
			return nil, err
		}
	}
	if reason, ok := domain.ValidatePromo(promo, subtotal, now); !ok {
		return nil, domain.PromoRejected(code, reason)
	}
	return promo, nil
}

// handOff publishes order.created and requests payment capture. Both run
// after commit, detached from the request, and only log their failures.
func (s *PlacementService) handOff(ctx context.Context, order *domain.Order) {
	ctx = logger.WithOrderID(context.WithoutCancel(ctx), order.ID)
	snapshot := *order
	l := logger.WithContext(ctx, s.logger)

	s.handoffs.Add(1)
	go func() {
		defer s.handoffs.Done()

		if err := s.publisher.PublishOrderCreated(ctx, &snapshot); err != nil {
			l.ErrorContext(ctx, "failed to publish order.created event",
				slog.String("error", err.Error()),
			)
		}

		if err := s.payments.Capture(ctx, snapshot.ID, snapshot.Total, snapshot.Currency); err != nil {
			l.ErrorContext(ctx, "payment capture request failed",
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until in-flight post-commit hand-offs finish.
func (s *PlacementService) Wait() {
	s.handoffs.Wait()
}

func (s *PlacementService) record(order *domain.Order, err error, elapsed time.Duration) {
	if err == nil {
		ordersPlaced.WithLabelValues(order.Currency).Inc()
		placementDuration.WithLabelValues("placed").Observe(elapsed.Seconds())
		return
	}

	code := "INTERNAL_ERROR"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	placementFailures.WithLabelValues(code).Inc()
	placementDuration.WithLabelValues("rejected").Observe(elapsed.Seconds())
}

// mergeLines folds repeated product/variant pairs into one line and sums the
// quantity needed per product.
func mergeLines(in []LineItemInput) ([]LineItemInput, map[string]int) {
	type key struct{ product, variant string }

	index := make(map[key]int, len(in))
	merged := make([]LineItemInput, 0, len(in))
	needed := make(map[string]int, len(in))

	for _, l := range in {
		l.ProductID = strings.TrimSpace(l.ProductID)
		k := key{l.ProductID, l.VariantID}
		if i, ok := index[k]; ok {
			merged[i].Quantity += l.Quantity
		} else {
			index[k] = len(merged)
			merged = append(merged, l)
		}
		needed[l.ProductID] += l.Quantity
	}
	return merged, needed
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
