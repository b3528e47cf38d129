package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/orderengine/internal/service"
	"github.com/utafrali/orderengine/pkg/httputil"
)

// PromoHandler handles HTTP requests for promo code endpoints.
type PromoHandler struct {
	service *service.PromoService
	logger  *slog.Logger
}

// NewPromoHandler creates a new promo HTTP handler.
func NewPromoHandler(svc *service.PromoService, logger *slog.Logger) *PromoHandler {
	return &PromoHandler{
		service: svc,
		logger:  logger,
	}
}

// CreatePromoRequest is the JSON request body for creating a promo code.
// Value and min_order accept numbers or decimal strings in the base currency.
type CreatePromoRequest struct {
	Code       string          `json:"code" validate:"required,max=32"`
	Kind       string          `json:"kind" validate:"required,oneof=percentage fixed free_shipping"`
	Value      decimal.Decimal `json:"value" validate:"gte=0"`
	MinOrder   decimal.Decimal `json:"min_order" validate:"gte=0"`
	ValidFrom  *time.Time      `json:"valid_from"`
	ValidUntil *time.Time      `json:"valid_until"`
	UsageCap   *int            `json:"usage_cap" validate:"omitempty,gte=1"`
	Inactive   bool            `json:"inactive"`
}

// ValidatePromoRequest is the JSON request body for checking a code. An empty
// currency means the base currency.
type ValidatePromoRequest struct {
	Code     string          `json:"code" validate:"required"`
	Subtotal decimal.Decimal `json:"subtotal" validate:"gte=0"`
	Currency string          `json:"currency" validate:"omitempty,currency"`
}

// CreatePromo handles POST /api/v1/promos
func (h *PromoHandler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	var req CreatePromoRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	promo, err := h.service.CreatePromo(r.Context(), service.CreatePromoInput{
		Code:       req.Code,
		Kind:       req.Kind,
		Value:      req.Value,
		MinOrder:   req.MinOrder,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		UsageCap:   req.UsageCap,
		Inactive:   req.Inactive,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: toPromoResponse(promo)})
}

// ValidatePromo handles POST /api/v1/promos/validate. A rejected code is a
// successful lookup: the reason is reported with valid=false.
func (h *PromoHandler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req ValidatePromoRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	result, err := h.service.ValidatePromo(r.Context(), req.Code, req.Subtotal, req.Currency)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toPromoValidationResponse(result)})
}
