package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/internal/repository"
	apperrors "github.com/utafrali/orderengine/pkg/errors"
)

// StockMovement is an in-memory stock_movements row.
type StockMovement struct {
	ProductID string
	Delta     int
	Reason    string
	OrderID   string
}

// Store is an in-memory implementation of every repository interface.
// Transactions are serialised behind one write lock and work on copies
// that replace the committed state only when fn succeeds.
type Store struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	rates     []domain.CurrencyRate
	promos    map[string]domain.PromoCode
	orders    map[string]domain.Order
	movements []StockMovement
}

var (
	_ repository.Store           = (*Store)(nil)
	_ repository.CatalogReader   = (*Store)(nil)
	_ repository.RateRepository  = (*Store)(nil)
	_ repository.PromoRepository = (*Store)(nil)
	_ repository.OrderRepository = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		promos:   make(map[string]domain.PromoCode),
		orders:   make(map[string]domain.Order),
	}
}

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// SetRates replaces the currency rate table.
func (s *Store) SetRates(rates []domain.CurrencyRate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = slices.Clone(rates)
}

// Movements returns the committed stock movements.
func (s *Store) Movements() []StockMovement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.movements)
}

// OrderCount returns the number of committed orders.
func (s *Store) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// GetProduct returns a copy of the committed product.
func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return &p, nil
}

// ListRates returns the configured rates.
func (s *Store) ListRates(_ context.Context) ([]domain.CurrencyRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rates), nil
}

// GetByCode returns a promo by its normalised code.
func (s *Store) GetByCode(_ context.Context, code string) (*domain.PromoCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.promos[domain.NormalizePromoCode(code)]
	if !ok {
		return nil, apperrors.NotFound("promo code", code)
	}
	return &p, nil
}

// Create stores a new promo code.
func (s *Store) Create(_ context.Context, p *domain.PromoCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := domain.NormalizePromoCode(p.Code)
	if _, exists := s.promos[code]; exists {
		return apperrors.AlreadyExists("promo code", "code", code)
	}
	cp := *p
	cp.Code = code
	s.promos[code] = cp
	return nil
}

// GetByID returns a committed order.
func (s *Store) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return cloneOrder(o), nil
}

// GetByNumber returns a committed order by its number.
func (s *Store) GetByNumber(_ context.Context, number string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.OrderNumber == number {
			return cloneOrder(o), nil
		}
	}
	return nil, apperrors.NotFound("order", number)
}

// List returns committed orders matching the filter, newest first.
func (s *Store) List(_ context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.CustomerID != nil && (o.CustomerID == nil || *o.CustomerID != *filter.CustomerID) {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		matched = append(matched, *cloneOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	start := 0
	if filter.Page > 1 {
		start = (filter.Page - 1) * perPage
	}
	if start >= total {
		return []domain.Order{}, total, nil
	}
	end := min(start+perPage, total)
	return matched[start:end], total, nil
}

// WithinTx runs fn against a private copy of the state and publishes it on success.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		products:  maps.Clone(s.products),
		promos:    maps.Clone(s.promos),
		orders:    maps.Clone(s.orders),
		movements: slices.Clone(s.movements),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.products = tx.products
	s.promos = tx.promos
	s.orders = tx.orders
	s.movements = tx.movements
	return nil
}

// memTx implements repository.Tx on working copies held by WithinTx.
type memTx struct {
	products  map[string]domain.Product
	promos    map[string]domain.PromoCode
	orders    map[string]domain.Order
	movements []StockMovement
}

func (t *memTx) LockProducts(_ context.Context, ids []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.products[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (t *memTx) ReserveStock(_ context.Context, productID string, qty int, orderID string) error {
	p, ok := t.products[productID]
	if !ok {
		return apperrors.NotFound("product", productID)
	}
	if p.Stock < qty {
		return domain.InsufficientStock(productID, qty, p.Stock)
	}
	p.Stock -= qty
	p.SoldCount += qty
	p.UpdatedAt = time.Now().UTC()
	t.products[productID] = p
	t.movements = append(t.movements, StockMovement{productID, -qty, domain.MovementOrderPlaced, orderID})
	return nil
}

func (t *memTx) RestoreStock(_ context.Context, productID string, qty int, orderID string) error {
	p, ok := t.products[productID]
	if !ok {
		return apperrors.NotFound("product", productID)
	}
	p.Stock += qty
	p.SoldCount = max(p.SoldCount-qty, 0)
	p.UpdatedAt = time.Now().UTC()
	t.products[productID] = p
	t.movements = append(t.movements, StockMovement{productID, qty, domain.MovementOrderCancelled, orderID})
	return nil
}

func (t *memTx) LockPromo(_ context.Context, code string) (*domain.PromoCode, error) {
	p, ok := t.promos[domain.NormalizePromoCode(code)]
	if !ok {
		return nil, apperrors.NotFound("promo code", code)
	}
	return &p, nil
}

func (t *memTx) IncrementPromoUsage(_ context.Context, code string) error {
	key := domain.NormalizePromoCode(code)
	p, ok := t.promos[key]
	if !ok {
		return apperrors.NotFound("promo code", code)
	}
	p.UsageCount++
	p.UpdatedAt = time.Now().UTC()
	t.promos[key] = p
	return nil
}

func (t *memTx) CreateOrder(_ context.Context, o *domain.Order) error {
	if _, exists := t.orders[o.ID]; exists {
		return apperrors.AlreadyExists("order", "id", o.ID)
	}
	t.orders[o.ID] = *cloneOrder(*o)
	return nil
}

func (t *memTx) LockOrder(_ context.Context, id string) (*domain.Order, error) {
	o, ok := t.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return cloneOrder(o), nil
}

func (t *memTx) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus, reason string) error {
	o, ok := t.orders[id]
	if !ok {
		return apperrors.NotFound("order", id)
	}
	o.Status = status
	o.CancelReason = reason
	o.UpdatedAt = time.Now().UTC()
	t.orders[id] = o
	return nil
}

func cloneOrder(o domain.Order) *domain.Order {
	o.Lines = slices.Clone(o.Lines)
	return &o
}
