package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/pkg/database"
	apperrors "github.com/utafrali/orderengine/pkg/errors"
)

const promoColumns = `code, kind, value::text, min_order::text, valid_from, valid_until,
		usage_cap, usage_count, is_active, created_at, updated_at`

// PromoRepository reads and creates promo codes outside a placement.
type PromoRepository struct {
	pool database.DBTX
}

// NewPromoRepository creates a new PostgreSQL-backed promo repository.
func NewPromoRepository(pool database.DBTX) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// GetByCode looks up a promo by its normalised code.
func (r *PromoRepository) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	return getPromo(ctx, r.pool, code, false)
}

// Create inserts a new promo code. Duplicate codes return apperrors.ErrAlreadyExists.
func (r *PromoRepository) Create(ctx context.Context, p *domain.PromoCode) (err error) {
	query := `
		INSERT INTO promo_codes (code, kind, value, min_order, valid_from, valid_until,
			usage_cap, usage_count, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	ctx, end := database.TraceQuery(ctx, "CreatePromo", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		p.Code,
		string(p.Kind),
		p.Value.String(),
		p.MinOrder.String(),
		p.ValidFrom,
		p.ValidUntil,
		p.UsageCap,
		p.UsageCount,
		p.IsActive,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("promo code", "code", p.Code)
		}
		return fmt.Errorf("insert promo code: %w", err)
	}
	return nil
}

func getPromo(ctx context.Context, q queryer, code string, forUpdate bool) (p *domain.PromoCode, err error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1`
	op := "GetPromo"
	if forUpdate {
		query += ` FOR UPDATE`
		op = "LockPromo"
	}

	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	p, err = scanPromo(q.QueryRow(ctx, query, domain.NormalizePromoCode(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("promo code", code)
		}
		return nil, fmt.Errorf("get promo code: %w", err)
	}
	return p, nil
}

func scanPromo(row pgx.Row) (*domain.PromoCode, error) {
	var (
		p               domain.PromoCode
		kind            string
		value, minOrder string
	)
	if err := row.Scan(
		&p.Code,
		&kind,
		&value,
		&minOrder,
		&p.ValidFrom,
		&p.ValidUntil,
		&p.UsageCap,
		&p.UsageCount,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Kind = domain.DiscountKind(kind)
	var err error
	if p.Value, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("parse promo value: %w", err)
	}
	if p.MinOrder, err = decimal.NewFromString(minOrder); err != nil {
		return nil, fmt.Errorf("parse promo minimum: %w", err)
	}
	return &p, nil
}
