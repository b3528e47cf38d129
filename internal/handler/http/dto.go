package http

import (
	"time"

	"github.com/utafrali/orderengine/internal/domain"
	"github.com/utafrali/orderengine/internal/service"
)

// Money fields are rendered as fixed two-place strings.

// OrderLineResponse is the JSON shape of an order line.
type OrderLineResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id,omitempty"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"line_total"`
}

// OrderResponse is the JSON shape of an order.
type OrderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	CustomerID      *string             `json:"customer_id,omitempty"`
	Email           string              `json:"email,omitempty"`
	Status          string              `json:"status"`
	Currency        string              `json:"currency"`
	Subtotal        string              `json:"subtotal"`
	Discount        string              `json:"discount"`
	Tax             string              `json:"tax"`
	Shipping        string              `json:"shipping"`
	Total           string              `json:"total"`
	ShippingMethod  string              `json:"shipping_method"`
	PromoCode       *string             `json:"promo_code,omitempty"`
	ShippingAddress *domain.Address     `json:"shipping_address"`
	BillingAddress  *domain.Address     `json:"billing_address"`
	CancelReason    string              `json:"cancel_reason,omitempty"`
	Lines           []OrderLineResponse `json:"lines"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	lines := make([]OrderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = OrderLineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			ProductName: l.ProductName,
			UnitPrice:   domain.FormatMoney(l.UnitPrice),
			Quantity:    l.Quantity,
			LineTotal:   domain.FormatMoney(l.LineTotal),
		}
	}

	return OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		Email:           o.Email,
		Status:          string(o.Status),
		Currency:        o.Currency,
		Subtotal:        domain.FormatMoney(o.Subtotal),
		Discount:        domain.FormatMoney(o.Discount),
		Tax:             domain.FormatMoney(o.Tax),
		Shipping:        domain.FormatMoney(o.Shipping),
		Total:           domain.FormatMoney(o.Total),
		ShippingMethod:  string(o.ShippingMethod),
		PromoCode:       o.PromoCode,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		CancelReason:    o.CancelReason,
		Lines:           lines,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	return out
}

// ProductResponse is the JSON shape of a catalog product.
type ProductResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Stock    int    `json:"stock"`
	InStock  bool   `json:"in_stock"`
	IsActive bool   `json:"is_active"`
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:       p.ID,
		Name:     p.Name,
		Price:    domain.FormatMoney(p.Price),
		Currency: p.Currency,
		Stock:    p.Stock,
		InStock:  p.Stock > 0,
		IsActive: p.IsActive,
	}
}

// CurrencyResponse is one active currency with its rate against the base.
type CurrencyResponse struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Rate   string `json:"rate"`
}

// CurrenciesResponse lists the currencies orders can be placed in.
type CurrenciesResponse struct {
	Base       string             `json:"base"`
	Currencies []CurrencyResponse `json:"currencies"`
}

// PromoResponse is the JSON shape of a promo code. Monetary values are in the
// base currency.
type PromoResponse struct {
	Code       string     `json:"code"`
	Kind       string     `json:"kind"`
	Value      string     `json:"value"`
	MinOrder   string     `json:"min_order"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	UsageCap   *int       `json:"usage_cap,omitempty"`
	UsageCount int        `json:"usage_count"`
	IsActive   bool       `json:"is_active"`
}

func toPromoResponse(p *domain.PromoCode) PromoResponse {
	return PromoResponse{
		Code:       p.Code,
		Kind:       string(p.Kind),
		Value:      p.Value.String(),
		MinOrder:   domain.FormatMoney(p.MinOrder),
		ValidFrom:  p.ValidFrom,
		ValidUntil: p.ValidUntil,
		UsageCap:   p.UsageCap,
		UsageCount: p.UsageCount,
		IsActive:   p.IsActive,
	}
}

// PromoValidationResponse is the result of POST /api/v1/promos/validate.
type PromoValidationResponse struct {
	Code     string `json:"code"`
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Discount string `json:"discount"`
	Currency string `json:"currency"`
}

func toPromoValidationResponse(v *service.PromoValidation) PromoValidationResponse {
	return PromoValidationResponse{
		Code:     v.Code,
		Valid:    v.Valid,
		Reason:   string(v.Reason),
		Kind:     string(v.Kind),
		Discount: domain.FormatMoney(v.Discount),
		Currency: v.Currency,
	}
}
