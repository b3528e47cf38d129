package postgres

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/internal/repository"
	"github.com/utafrali/orderengine/pkg/database"
	apperrors "github.com/utafrali/orderengine/pkg/errors"
)

// Store opens ReadCommitted transactions. Rows that must not change
// concurrently are locked explicitly with SELECT ... FOR UPDATE.
type Store struct {
	pool database.DBTX
}

// NewStore creates a new PostgreSQL-backed unit-of-work store.
func NewStore(pool database.DBTX) *Store {
	return &Store{pool: pool}
}

// WithinTx runs fn in a single transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txRepository implements repository.Tx on an open pgx transaction.
type txRepository struct {
	tx pgx.Tx
}

// LockProducts locks the requested product rows. Rows are returned and
// locked in ascending id order so concurrent placements cannot deadlock.
func (r *txRepository) LockProducts(ctx context.Context, ids []string) (products map[string]*domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	ctx, end := database.TraceQuery(ctx, "LockProducts", query)
	defer func() { end(err) }()

	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	rows, err := r.tx.Query(ctx, query, sorted)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products = make(map[string]*domain.Product, len(sorted))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan locked product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked products: %w", err)
	}
	return products, nil
}

// ReserveStock decrements stock and records the movement. The stock guard in
// the UPDATE makes an oversell impossible even if the caller skipped its check.
func (r *txRepository) ReserveStock(ctx context.Context, productID string, qty int, orderID string) (err error) {
	query := `
		UPDATE products
		SET stock = stock - $2, sold_count = sold_count + $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2`

	ctx, end := database.TraceQuery(ctx, "ReserveStock", query)
	defer func() { end(err) }()

	ct, err := r.tx.Exec(ctx, query, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.InsufficientStock(productID, qty, 0)
	}
	return r.recordMovement(ctx, productID, -qty, domain.MovementOrderPlaced, orderID)
}

// RestoreStock returns reserved units to stock.
func (r *txRepository) RestoreStock(ctx context.Context, productID string, qty int, orderID string) (err error) {
	query := `
		UPDATE products
		SET stock = stock + $2, sold_count = GREATEST(sold_count - $2, 0), updated_at = NOW()
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "RestoreStock", query)
	defer func() { end(err) }()

	ct, err := r.tx.Exec(ctx, query, productID, qty)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", productID)
	}
	return r.recordMovement(ctx, productID, qty, domain.MovementOrderCancelled, orderID)
}

func (r *txRepository) recordMovement(ctx context.Context, productID string, delta int, reason, orderID string) error {
	query := `
		INSERT INTO stock_movements (product_id, quantity_change, reason, reference_id)
		VALUES ($1, $2, $3, $4)`

	if _, err := r.tx.Exec(ctx, query, productID, delta, reason, orderID); err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

// LockPromo reads a promo code and locks its row until the transaction ends.
func (r *txRepository) LockPromo(ctx context.Context, code string) (*domain.PromoCode, error) {
	return getPromo(ctx, r.tx, code, true)
}

// IncrementPromoUsage records one redemption.
func (r *txRepository) IncrementPromoUsage(ctx context.Context, code string) (err error) {
	query := `UPDATE promo_codes SET usage_count = usage_count + 1, updated_at = NOW() WHERE code = $1`

	ctx, end := database.TraceQuery(ctx, "IncrementPromoUsage", query)
	defer func() { end(err) }()

	ct, err := r.tx.Exec(ctx, query, domain.NormalizePromoCode(code))
	if err != nil {
		return fmt.Errorf("increment promo usage: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promo code", code)
	}
	return nil
}

// CreateOrder inserts the order header and its line snapshots. Amounts are
// stored in minor units and must already be rounded.
func (r *txRepository) CreateOrder(ctx context.Context, o *domain.Order) (err error) {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	ctx, end := database.TraceQuery(ctx, "CreateOrder", query)
	defer func() { end(err) }()

	shippingJSON, err := marshalAddress(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	billingJSON, err := marshalAddress(o.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}

	_, err = r.tx.Exec(ctx, query,
		o.ID,
		o.OrderNumber,
		o.CustomerID,
		o.Email,
		string(o.Status),
		o.Currency,
		domain.ToMinorUnits(o.Subtotal),
		domain.ToMinorUnits(o.Shipping),
		domain.ToMinorUnits(o.Tax),
		domain.ToMinorUnits(o.Discount),
		domain.ToMinorUnits(o.Total),
		string(o.ShippingMethod),
		o.PromoCode,
		shippingJSON,
		billingJSON,
		o.CancelReason,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	lineQuery := `
		INSERT INTO order_lines (` + lineColumns + `, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for i, l := range o.Lines {
		_, err = r.tx.Exec(ctx, lineQuery,
			l.ID,
			l.OrderID,
			l.ProductID,
			l.VariantID,
			l.ProductName,
			domain.ToMinorUnits(l.UnitPrice),
			l.Quantity,
			domain.ToMinorUnits(l.LineTotal),
			i,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	return nil
}

// LockOrder reads an order with its lines and locks the order row.
func (r *txRepository) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, r.tx, "LockOrder", `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

// UpdateOrderStatus sets the status and cancel reason.
func (r *txRepository) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, reason string) (err error) {
	query := `
		UPDATE orders
		SET status = $1, cancel_reason = $2, updated_at = NOW()
		WHERE id = $3`

	ctx, end := database.TraceQuery(ctx, "UpdateOrderStatus", query)
	defer func() { end(err) }()

	ct, err := r.tx.Exec(ctx, query, string(status), reason, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}
