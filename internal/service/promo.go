package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/internal/repository"
	apperrors "github.com/utafrali/orderengine/pkg/errors"
	"github.com/utafrali/orderengine/pkg/validator"
)

// CreatePromoInput holds the parameters for creating a promo code. Monetary
// values are in the base currency.
type CreatePromoInput struct {
	Code       string          `validate:"required,max=32"`
	Kind       string          `validate:"required,oneof=percentage fixed free_shipping"`
	Value      decimal.Decimal
	MinOrder   decimal.Decimal
	ValidFrom  *time.Time
	ValidUntil *time.Time
	UsageCap   *int `validate:"omitempty,gte=1"`
	Inactive   bool
}

// PromoValidation is the read-only outcome of checking a code against a cart.
type PromoValidation struct {
	Code     string
	Valid    bool
	Reason   domain.RejectReason
	Kind     domain.DiscountKind
	Discount decimal.Decimal
	Currency string
}

// PromoService manages promo codes.
type PromoService struct {
	repo         repository.PromoRepository
	rates        *RateProvider
	baseCurrency string
	logger       *slog.Logger
	now          func() time.Time
}

// NewPromoService creates a new promo service.
func NewPromoService(repo repository.PromoRepository, rates *RateProvider, baseCurrency string, logger *slog.Logger) *PromoService {
	return &PromoService{
		repo:         repo,
		rates:        rates,
		baseCurrency: domain.NormalizeCurrency(baseCurrency),
		logger:       logger,
		now:          time.Now,
	}
}

// CreatePromo validates and stores a new promo code.
func (s *PromoService) CreatePromo(ctx context.Context, input CreatePromoInput) (*domain.PromoCode, error) {
	if err := validator.Validate(input); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	kind := domain.DiscountKind(input.Kind)
	switch {
	case input.Value.IsNegative():
		return nil, apperrors.InvalidInput("value must not be negative")
	case input.MinOrder.IsNegative():
		return nil, apperrors.InvalidInput("min_order must not be negative")
	case kind == domain.DiscountPercentage && input.Value.GreaterThan(decimal.NewFromInt(100)):
		return nil, apperrors.InvalidInput("percentage value must be between 0 and 100")
	case kind != domain.DiscountFreeShipping && input.Value.IsZero():
		return nil, apperrors.InvalidInput("value must be positive")
	case input.ValidFrom != nil && input.ValidUntil != nil && !input.ValidUntil.After(*input.ValidFrom):
		return nil, apperrors.InvalidInput("valid_until must be after valid_from")
	}

	now := s.now().UTC()
	promo := &domain.PromoCode{
		Code:       domain.NormalizePromoCode(input.Code),
		Kind:       kind,
		Value:      input.Value,
		MinOrder:   input.MinOrder,
		ValidFrom:  input.ValidFrom,
		ValidUntil: input.ValidUntil,
		UsageCap:   input.UsageCap,
		IsActive:   !input.Inactive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if kind == domain.DiscountFreeShipping {
		promo.Value = decimal.Zero
	}

	if err := s.repo.Create(ctx, promo); err != nil {
		return nil, fmt.Errorf("create promo code: %w", err)
	}

	s.logger.InfoContext(ctx, "promo code created",
		slog.String("code", promo.Code),
		slog.String("kind", string(promo.Kind)),
	)
	return promo, nil
}

// ValidatePromo checks a code against a subtotal in the given currency. It
// never changes the promo's usage count.
func (s *PromoService) ValidatePromo(ctx context.Context, code string, subtotal decimal.Decimal, currency string) (*PromoValidation, error) {
	code = domain.NormalizePromoCode(code)
	if code == "" {
		return nil, apperrors.InvalidInput("code is required")
	}
	if subtotal.IsNegative() {
		return nil, apperrors.InvalidInput("subtotal must not be negative")
	}
	currency = domain.NormalizeCurrency(currency)
	if currency == "" {
		currency = s.baseCurrency
	}

	promo, err := s.repo.GetByCode(ctx, code)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get promo code: %w", err)
	}

	result := &PromoValidation{Code: code, Currency: currency, Discount: decimal.Zero}
	if promo != nil {
		table, err := s.rates.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if promo, err = promo.InCurrency(table, s.baseCurrency, currency); err != nil {
			return nil, err
		}
		result.Kind = promo.Kind
	}

	reason, ok := domain.ValidatePromo(promo, subtotal, s.now())
	if !ok {
		result.Reason = reason
		return result, nil
	}

	discount, _ := promo.Apply(subtotal, decimal.Zero)
	result.Valid = true
	result.Discount = domain.RoundMoney(decimal.Min(discount, subtotal))
	return result, nil
}
