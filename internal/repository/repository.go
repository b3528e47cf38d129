package repository

import (
	"context"

	"github.com/utafrali/orderengine/internal/domain"
)

// OrderFilter holds filtering and pagination parameters for listing orders.
type OrderFilter struct {
	CustomerID *string
	Status     *domain.OrderStatus
	Page       int
	PerPage    int
}

// CatalogReader is the read-only product lookup. Reads take no locks and must
// not be cached across a reservation.
type CatalogReader interface {
	// GetProduct returns the product or an error wrapping apperrors.ErrNotFound.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// RateRepository loads the currency rate table.
type RateRepository interface {
	ListRates(ctx context.Context) ([]domain.CurrencyRate, error)
}

// PromoRepository reads and writes promo codes outside a placement.
type PromoRepository interface {
	// GetByCode looks up a code case-insensitively. Missing codes wrap apperrors.ErrNotFound.
	GetByCode(ctx context.Context, code string) (*domain.PromoCode, error)
	Create(ctx context.Context, promo *domain.PromoCode) error
}

// OrderRepository reads orders.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)
}

// Tx is the unit of work a placement or status change runs in. Every write
// made through it commits or rolls back together.
type Tx interface {
	// LockProducts re-reads the given products with row locks taken in
	// ascending id order. Missing ids are absent from the result.
	LockProducts(ctx context.Context, ids []string) (map[string]*domain.Product, error)

	// ReserveStock decrements stock, increments the sold count and records a movement.
	ReserveStock(ctx context.Context, productID string, qty int, orderID string) error

	// RestoreStock is the inverse of ReserveStock.
	RestoreStock(ctx context.Context, productID string, qty int, orderID string) error

	// LockPromo reads a promo code with a row lock. Missing codes wrap apperrors.ErrNotFound.
	LockPromo(ctx context.Context, code string) (*domain.PromoCode, error)

	// IncrementPromoUsage records one redemption of code.
	IncrementPromoUsage(ctx context.Context, code string) error

	// CreateOrder inserts the order and its lines.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// LockOrder reads an order with its lines and a row lock.
	LockOrder(ctx context.Context, id string) (*domain.Order, error)

	// UpdateOrderStatus sets the status and cancel reason of an order.
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, reason string) error
}

// Store opens units of work.
type Store interface {
	// WithinTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
