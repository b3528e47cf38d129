package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/internal/repository"
	apperrors "github.com/utafrali/orderengine/pkg/errors"
)

// RateProvider takes rate snapshots, reading through the cache.
type RateProvider struct {
	repo   repository.RateRepository
	cache  RateCache
	logger *slog.Logger
	now    func() time.Time
}

// NewRateProvider creates a rate provider. cache may be nil.
func NewRateProvider(repo repository.RateRepository, cache RateCache, logger *slog.Logger) *RateProvider {
	return &RateProvider{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot returns an immutable rate table. Cache failures fall back to the
// database and are only logged.
func (p *RateProvider) Snapshot(ctx context.Context) (domain.RateTable, error) {
	if p.cache != nil {
		rates, takenAt, err := p.cache.Get(ctx)
		switch {
		case err == nil:
			rateCacheLookups.WithLabelValues("hit").Inc()
			return domain.NewRateTable(rates, takenAt), nil
		case errors.Is(err, apperrors.ErrNotFound):
			rateCacheLookups.WithLabelValues("miss").Inc()
		default:
			rateCacheLookups.WithLabelValues("error").Inc()
			p.logger.WarnContext(ctx, "rate cache read failed, using database",
				slog.String("error", err.Error()),
			)
		}
	}

	rates, err := p.repo.ListRates(ctx)
	if err != nil {
		return domain.RateTable{}, fmt.Errorf("load currency rates: %w", err)
	}
	takenAt := p.now().UTC()

	if p.cache != nil {
		if err := p.cache.Set(ctx, rates, takenAt); err != nil {
			p.logger.WarnContext(ctx, "rate cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	return domain.NewRateTable(rates, takenAt), nil
}

// ActiveRates lists the currencies orders can be placed in.
func (p *RateProvider) ActiveRates(ctx context.Context) ([]domain.CurrencyRate, error) {
	table, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return table.Active(), nil
}
