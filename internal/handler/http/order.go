package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/internal/repository"
	"github.com/utafrali/orderengine/internal/service"
	"github.com/utafrali/orderengine/pkg/httputil"
	"github.com/utafrali/orderengine/pkg/middleware"
	"github.com/utafrali/orderengine/pkg/pagination"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	placement *service.PlacementService
	orders    *service.OrderService
	logger    *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(placement *service.PlacementService, orders *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		placement: placement,
		orders:    orders,
		logger:    logger,
	}
}

// --- Request DTOs ---

// LineItemRequest is one requested product line.
type LineItemRequest struct {
	ProductID string `json:"product_id" validate:"notblank"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// PlaceOrderRequest is the JSON request body for placing an order. The
// customer is taken from X-User-ID; without it the order is a guest order.
type PlaceOrderRequest struct {
	Email           string            `json:"email" validate:"omitempty,email"`
	Lines           []LineItemRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingAddress *domain.Address   `json:"shipping_address" validate:"required"`
	BillingAddress  *domain.Address   `json:"billing_address" validate:"required"`
	ShippingMethod  string            `json:"shipping_method" validate:"required"`
	Currency        string            `json:"currency" validate:"required,currency"`
	PromoCode       string            `json:"promo_code" validate:"omitempty,max=32"`
}

// UpdateStatusRequest is the JSON request body for changing an order's status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// CancelOrderRequest is the optional JSON request body for cancelling an order.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// --- Handlers ---

// PlaceOrder handles POST /api/v1/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	lines := make([]service.LineItemInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = service.LineItemInput{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
		}
	}

	input := service.PlaceOrderInput{
		Email:           req.Email,
		Lines:           lines,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		ShippingMethod:  req.ShippingMethod,
		Currency:        req.Currency,
		PromoCode:       req.PromoCode,
	}
	if uid := middleware.UserIDFromContext(r.Context()); uid != "" {
		input.CustomerID = &uid
	}

	order, err := h.placement.PlaceOrder(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: toOrderResponse(order)})
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.Parse(r)
	if err != nil {
		writeBadParameter(w, err.Error())
		return
	}

	filter := repository.OrderFilter{Page: page.Page, PerPage: page.PerPage}
	if v := r.URL.Query().Get("customer_id"); v != "" {
		filter.CustomerID = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.OrderStatus(v)
		filter.Status = &status
	}

	orders, total, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(toOrderResponses(orders), total, page))
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toOrderResponse(order)})
}

// GetOrderByNumber handles GET /api/v1/orders/number/{number}
func (h *OrderHandler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrderByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toOrderResponse(order)})
}

// UpdateOrderStatus handles PUT /api/v1/orders/{id}/status
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id.String(), req.Status, req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toOrderResponse(order)})
}

// CancelOrder handles POST /api/v1/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	// The body is optional.
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = CancelOrderRequest{}
	}

	order, err := h.orders.CancelOrder(r.Context(), id.String(), req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toOrderResponse(order)})
}
