package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/pkg/database"
	apperrors "github.com/utafrali/orderengine/pkg/errors"
)

const productColumns = `id, name, price_cents, currency, stock, sold_count, is_active, updated_at`

// CatalogRepository reads products without taking locks.
type CatalogRepository struct {
	pool database.DBTX
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog reader.
func NewCatalogRepository(pool database.DBTX) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetProduct retrieves a single product by id.
func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (p *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetProduct", query)
	defer func() { end(err) }()

	p, err = scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p     domain.Product
		cents int64
	)
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&cents,
		&p.Currency,
		&p.Stock,
		&p.SoldCount,
		&p.IsActive,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Price = domain.FromMinorUnits(cents)
	return &p, nil
}
