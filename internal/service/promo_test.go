package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/internal/repository/memory"
	apperrors "github.com/utafrali/orderengine/pkg/errors"
)

func newTestPromoService(t *testing.T) (*PromoService, *memory.Store) {
	t.Helper()
	store := seedStore()
	logger := newTestLogger()
	svc := NewPromoService(store, NewRateProvider(store, nil, logger), "usd", logger)
	svc.now = func() time.Time { return testNow }
	return svc, store
}

// --- CreatePromo ---

func TestCreatePromo_Success(t *testing.T) {
	svc, store := newTestPromoService(t)
	ctx := context.Background()
	usageCap := 100

	promo, err := svc.CreatePromo(ctx, CreatePromoInput{
		Code:       " summer15 ",
		Kind:       "percentage",
		Value:      dec("15"),
		ValidFrom:  timePtr(testNow),
		ValidUntil: timePtr(testNow.Add(30 * 24 * time.Hour)),
		UsageCap:   &usageCap,
	})
	require.NoError(t, err)
	assert.Equal(t, "SUMMER15", promo.Code)
	assert.True(t, promo.IsActive)
	assert.Equal(t, 0, promo.UsageCount)

	stored, err := store.GetByCode(ctx, "summer15")
	require.NoError(t, err)
	assert.Equal(t, domain.DiscountPercentage, stored.Kind)
}

func TestCreatePromo_FreeShippingIgnoresValue(t *testing.T) {
	svc, _ := newTestPromoService(t)

	promo, err := svc.CreatePromo(context.Background(), CreatePromoInput{Code: "SHIP", Kind: "free_shipping", Value: dec("7")})
	require.NoError(t, err)
	assert.True(t, promo.Value.IsZero())
}

func TestCreatePromo_Duplicate(t *testing.T) {
	svc, _ := newTestPromoService(t)

	_, err := svc.CreatePromo(context.Background(), CreatePromoInput{Code: "save10", Kind: "fixed", Value: dec("5")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
}

func TestCreatePromo_InvalidInput(t *testing.T) {
	zero := 0
	tests := []struct {
		name  string
		input CreatePromoInput
	}{
		{"missing code", CreatePromoInput{Kind: "fixed", Value: dec("5")}},
		{"unknown kind", CreatePromoInput{Code: "X", Kind: "bogo", Value: dec("5")}},
		{"negative value", CreatePromoInput{Code: "X", Kind: "fixed", Value: dec("-1")}},
		{"zero value", CreatePromoInput{Code: "X", Kind: "fixed", Value: decimal.Zero}},
		{"percentage over 100", CreatePromoInput{Code: "X", Kind: "percentage", Value: dec("101")}},
		{"negative minimum", CreatePromoInput{Code: "X", Kind: "fixed", Value: dec("5"), MinOrder: dec("-5")}},
		{"zero cap", CreatePromoInput{Code: "X", Kind: "fixed", Value: dec("5"), UsageCap: &zero}},
		{"window reversed", CreatePromoInput{
			Code: "X", Kind: "fixed", Value: dec("5"),
			ValidFrom: timePtr(testNow), ValidUntil: timePtr(testNow.Add(-time.Hour)),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestPromoService(t)
			_, err := svc.CreatePromo(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
		})
	}
}

// --- ValidatePromo ---

func TestValidatePromo_Valid(t *testing.T) {
	svc, _ := newTestPromoService(t)

	res, err := svc.ValidatePromo(context.Background(), "save10", dec("200"), "USD")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Reason)
	assert.Equal(t, "SAVE10", res.Code)
	assert.Equal(t, "20.00", domain.FormatMoney(res.Discount))
}

func TestValidatePromo_ConvertsFixedPromo(t *testing.T) {
	svc, _ := newTestPromoService(t)
	ctx := context.Background()

	// TECH20 is 20 USD off 100 USD, i.e. 10 EUR off 50 EUR.
	res, err := svc.ValidatePromo(ctx, "TECH20", dec("60"), "EUR")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "EUR", res.Currency)
	assert.Equal(t, "10.00", domain.FormatMoney(res.Discount))

	res, err = svc.ValidatePromo(ctx, "TECH20", dec("49.99"), "EUR")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, domain.RejectBelowMinOrder, res.Reason)
}

func TestValidatePromo_DiscountCappedAtSubtotal(t *testing.T) {
	svc, store := newTestPromoService(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.PromoCode{Code: "BIG", Kind: domain.DiscountFixed, Value: dec("50"), IsActive: true}))

	res, err := svc.ValidatePromo(ctx, "BIG", dec("30"), "")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, "30.00", domain.FormatMoney(res.Discount))
}

func TestValidatePromo_NotFound(t *testing.T) {
	svc, _ := newTestPromoService(t)

	res, err := svc.ValidatePromo(context.Background(), "NOPE", dec("100"), "USD")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, domain.RejectNotFound, res.Reason)
	assert.True(t, res.Discount.IsZero())
}

func TestValidatePromo_ExpiredTwiceNoSideEffects(t *testing.T) {
	svc, store := newTestPromoService(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.PromoCode{
		Code: "GONE", Kind: domain.DiscountPercentage, Value: dec("10"), IsActive: true,
		ValidUntil: timePtr(testNow.Add(-time.Minute)),
	}))

	for i := 0; i < 2; i++ {
		res, err := svc.ValidatePromo(ctx, "gone", dec("100"), "USD")
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, domain.RejectExpired, res.Reason)
	}

	promo, err := store.GetByCode(ctx, "GONE")
	require.NoError(t, err)
	assert.Equal(t, 0, promo.UsageCount)
}

func TestValidatePromo_BadInput(t *testing.T) {
	svc, _ := newTestPromoService(t)
	ctx := context.Background()

	_, err := svc.ValidatePromo(ctx, "  ", dec("10"), "USD")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.ValidatePromo(ctx, "SAVE10", dec("-1"), "USD")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.ValidatePromo(ctx, "TECH20", dec("100"), "CHF")
	assert.True(t, errors.Is(err, domain.ErrUnknownCurrency))
}
