package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/internal/repository/memory"
)

// --- Mocks ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockPublisher) PublishOrderStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	args := m.Called(ctx, order, from)
	return args.Error(0)
}

type mockCapturer struct {
	mock.Mock
}

func (m *mockCapturer) Capture(ctx context.Context, orderID string, amount decimal.Decimal, currency string) error {
	args := m.Called(ctx, orderID, amount, currency)
	return args.Error(0)
}

type mockRateCache struct {
	mock.Mock
}

func (m *mockRateCache) Get(ctx context.Context) ([]domain.CurrencyRate, time.Time, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, time.Time{}, args.Error(2)
	}
	return args.Get(0).([]domain.CurrencyRate), args.Get(1).(time.Time), args.Error(2)
}

func (m *mockRateCache) Set(ctx context.Context, rates []domain.CurrencyRate, takenAt time.Time) error {
	args := m.Called(ctx, rates, takenAt)
	return args.Error(0)
}

type mockRateRepository struct {
	mock.Mock
}

func (m *mockRateRepository) ListRates(ctx context.Context) ([]domain.CurrencyRate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CurrencyRate), args.Error(1)
}

// --- Test Helpers ---

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func testPricing() PricingConfig {
	return PricingConfig{
		BaseCurrency:   "USD",
		TaxRatePercent: dec("10"),
		Shipping: domain.ShippingTable{
			domain.ShippingStandard:  dec("10.00"),
			domain.ShippingExpress:   dec("25.00"),
			domain.ShippingOvernight: dec("45.00"),
		},
	}
}

func testRates() []domain.CurrencyRate {
	return []domain.CurrencyRate{
		{Code: "USD", Symbol: "$", Rate: dec("1"), IsActive: true},
		{Code: "EUR", Symbol: "€", Rate: dec("0.5"), IsActive: true},
		{Code: "GBP", Symbol: "£", Rate: dec("0.8"), IsActive: true},
		{Code: "JPY", Symbol: "¥", Rate: dec("150"), IsActive: false},
	}
}

func sampleAddress() *domain.Address {
	return &domain.Address{
		FullName:    "Jane Doe",
		AddressLine: "1 Market St",
		City:        "San Francisco",
		State:       "CA",
		PostalCode:  "94105",
		Country:     "US",
	}
}

// seedStore returns a store with two products and two promo codes:
// SAVE10 (10% off) and TECH20 (20 USD off orders of 100 USD or more).
func seedStore() *memory.Store {
	store := memory.New()
	store.SetRates(testRates())
	store.PutProduct(domain.Product{ID: "prod-1", Name: "Headphones", Price: dec("100.00"), Currency: "USD", Stock: 5, IsActive: true})
	store.PutProduct(domain.Product{ID: "prod-2", Name: "Cable", Price: dec("50.00"), Currency: "USD", Stock: 10, IsActive: true})
	store.PutProduct(domain.Product{ID: "prod-old", Name: "Discontinued", Price: dec("9.99"), Currency: "USD", Stock: 3, IsActive: false})

	ctx := context.Background()
	_ = store.Create(ctx, &domain.PromoCode{
		Code:       "SAVE10",
		Kind:       domain.DiscountPercentage,
		Value:      dec("10"),
		MinOrder:   decimal.Zero,
		ValidFrom:  timePtr(testNow.Add(-24 * time.Hour)),
		ValidUntil: timePtr(testNow.Add(24 * time.Hour)),
		IsActive:   true,
	})
	_ = store.Create(ctx, &domain.PromoCode{
		Code:     "TECH20",
		Kind:     domain.DiscountFixed,
		Value:    dec("20"),
		MinOrder: dec("100"),
		IsActive: true,
	})
	return store
}

func productStock(store *memory.Store, id string) int {
	p, err := store.GetProduct(context.Background(), id)
	if err != nil {
		return -1
	}
	return p.Stock
}
