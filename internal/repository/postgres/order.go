package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/internal/repository"
	"github.com/utafrali/orderengine/pkg/database"
	apperrors "github.com/utafrali/orderengine/pkg/errors"
)

const orderColumns = `id, order_number, customer_id, email, status, currency,
		subtotal_cents, shipping_cents, tax_cents, discount_cents, total_cents,
		shipping_method, promo_code, shipping_address, billing_address, cancel_reason,
		created_at, updated_at`

const lineColumns = `id, order_id, product_id, variant_id, product_name, unit_price_cents, quantity, line_total_cents`

// OrderRepository reads placed orders.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID retrieves an order and its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, r.pool, "GetOrder", `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByNumber retrieves an order by its human-readable number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return getOrder(ctx, r.pool, "GetOrderByNumber", `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
}

// List returns orders matching the filter, newest first, with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) (orders []domain.Order, total int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argIndex))
		args = append(args, *filter.CustomerID)
		argIndex++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, string(*filter.Status))
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	ctx, end := database.TraceQuery(ctx, "ListOrders", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders = make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}
	rows.Close()

	if len(orders) == 0 {
		return orders, total, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	lines, err := loadLines(ctx, r.pool, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
		if orders[i].Lines == nil {
			orders[i].Lines = []domain.OrderLine{}
		}
	}

	return orders, total, nil
}

func getOrder(ctx context.Context, q queryer, op, query, key string) (o *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	o, err = scanOrder(q.QueryRow(ctx, query, key), nil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", key)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	lines, err := loadLines(ctx, q, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[o.ID]
	if o.Lines == nil {
		o.Lines = []domain.OrderLine{}
	}
	return o, nil
}

// scanOrder reads orderColumns, plus a trailing total count when total is non-nil.
func scanOrder(row pgx.Row, total *int) (*domain.Order, error) {
	var (
		o                                  domain.Order
		status, method                     string
		subtotal, shipping, tax, disc, tot int64
		shippingJSON, billingJSON          []byte
	)

	dest := []any{
		&o.ID,
		&o.OrderNumber,
		&o.CustomerID,
		&o.Email,
		&status,
		&o.Currency,
		&subtotal,
		&shipping,
		&tax,
		&disc,
		&tot,
		&method,
		&o.PromoCode,
		&shippingJSON,
		&billingJSON,
		&o.CancelReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	}
	if total != nil {
		dest = append(dest, total)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	o.Status = domain.OrderStatus(status)
	o.ShippingMethod = domain.ShippingMethod(method)
	o.ApplyTotals(domain.Totals{
		Subtotal: domain.FromMinorUnits(subtotal),
		Shipping: domain.FromMinorUnits(shipping),
		Tax:      domain.FromMinorUnits(tax),
		Discount: domain.FromMinorUnits(disc),
		Total:    domain.FromMinorUnits(tot),
	})

	var err error
	if o.ShippingAddress, err = unmarshalAddress(shippingJSON); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if o.BillingAddress, err = unmarshalAddress(billingJSON); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}
	return &o, nil
}

// loadLines batch-loads lines for the given orders, grouped by order id.
func loadLines(ctx context.Context, q queryer, orderIDs []string) (map[string][]domain.OrderLine, error) {
	query := `SELECT ` + lineColumns + ` FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, position`

	rows, err := q.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[string][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var (
			l               domain.OrderLine
			unit, lineTotal int64
		)
		if err := rows.Scan(
			&l.ID,
			&l.OrderID,
			&l.ProductID,
			&l.VariantID,
			&l.ProductName,
			&unit,
			&l.Quantity,
			&lineTotal,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		l.UnitPrice = domain.FromMinorUnits(unit)
		l.LineTotal = domain.FromMinorUnits(lineTotal)
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order line rows: %w", err)
	}
	return byOrder, nil
}

func marshalAddress(a *domain.Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func unmarshalAddress(raw []byte) (*domain.Address, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var a domain.Address
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
