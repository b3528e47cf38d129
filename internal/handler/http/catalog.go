package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/internal/repository"
	"github.com/utafrali/orderengine/internal/service"
	"github.com/utafrali/orderengine/pkg/httputil"
)

// CatalogHandler serves product and currency lookups.
type CatalogHandler struct {
	catalog      repository.CatalogReader
	rates        *service.RateProvider
	baseCurrency string
	logger       *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(catalog repository.CatalogReader, rates *service.RateProvider, baseCurrency string, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:      catalog,
		rates:        rates,
		baseCurrency: domain.NormalizeCurrency(baseCurrency),
		logger:       logger,
	}
}

// GetProduct handles GET /api/v1/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toProductResponse(product)})
}

// ListCurrencies handles GET /api/v1/currencies
func (h *CatalogHandler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	rates, err := h.rates.ActiveRates(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	currencies := make([]CurrencyResponse, len(rates))
	for i, rate := range rates {
		currencies[i] = CurrencyResponse{
			Code:   rate.Code,
			Symbol: rate.Symbol,
			Rate:   rate.Rate.String(),
		}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: CurrenciesResponse{
		Base:       h.baseCurrency,
		Currencies: currencies,
	}})
}
