package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/pkg/database"
)

// RateRepository reads the currency rate table.
type RateRepository struct {
	pool database.DBTX
}

// NewRateRepository creates a new PostgreSQL-backed rate repository.
func NewRateRepository(pool database.DBTX) *RateRepository {
	return &RateRepository{pool: pool}
}

// ListRates returns every configured currency, active or not.
func (r *RateRepository) ListRates(ctx context.Context) (rates []domain.CurrencyRate, err error) {
	query := `
		SELECT code, symbol, rate::text, is_active
		FROM currency_rates
		ORDER BY code`

	ctx, end := database.TraceQuery(ctx, "ListRates", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list currency rates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cr   domain.CurrencyRate
			rate string
		)
		if err := rows.Scan(&cr.Code, &cr.Symbol, &rate, &cr.IsActive); err != nil {
			return nil, fmt.Errorf("scan currency rate: %w", err)
		}
		if cr.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("parse rate for %s: %w", cr.Code, err)
		}
		rates = append(rates, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currency rate rows: %w", err)
	}

	return rates, nil
}
