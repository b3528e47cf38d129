package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind is the closed set of promo discount variants.
type DiscountKind string

// Discount kinds.
const (
	DiscountPercentage   DiscountKind = "percentage"
	DiscountFixed        DiscountKind = "fixed"
	DiscountFreeShipping DiscountKind = "free_shipping"
)

// DiscountKinds returns every supported discount kind.
func DiscountKinds() []DiscountKind {
	return []DiscountKind{DiscountPercentage, DiscountFixed, DiscountFreeShipping}
}

// Valid reports whether k is a supported discount kind.
func (k DiscountKind) Valid() bool {
	for _, v := range DiscountKinds() {
		if v == k {
			return true
		}
	}
	return false
}

// RejectReason is the user-facing reason a promo code cannot be used.
type RejectReason string

// Rejection reasons, listed in the order they are checked.
const (
	RejectNotFound      RejectReason = "not found"
	RejectInactive      RejectReason = "inactive"
	RejectNotYetValid   RejectReason = "not yet valid"
	RejectExpired       RejectReason = "expired"
	RejectUsageLimit    RejectReason = "usage limit reached"
	RejectBelowMinOrder RejectReason = "below minimum order"
)

// PromoCode is a redeemable discount code. Monetary fields are expressed in the
// base currency unless converted with InCurrency.
type PromoCode struct {
	Code       string          `json:"code"`
	Kind       DiscountKind    `json:"kind"`
	Value      decimal.Decimal `json:"value"`
	MinOrder   decimal.Decimal `json:"min_order"`
	ValidFrom  *time.Time      `json:"valid_from,omitempty"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	UsageCap   *int            `json:"usage_cap,omitempty"`
	UsageCount int             `json:"usage_count"`
	IsActive   bool            `json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NormalizePromoCode gives codes their canonical, case-insensitive form.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidatePromo runs the promo checks in order and returns the first failure.
// A nil promo means the code does not exist. It has no side effects.
func ValidatePromo(p *PromoCode, subtotal decimal.Decimal, now time.Time) (RejectReason, bool) {
	switch {
	case p == nil:
		return RejectNotFound, false
	case !p.IsActive:
		return RejectInactive, false
	case p.ValidFrom != nil && now.Before(*p.ValidFrom):
		return RejectNotYetValid, false
	case p.ValidUntil != nil && now.After(*p.ValidUntil):
		return RejectExpired, false
	case p.UsageCap != nil && p.UsageCount >= *p.UsageCap:
		return RejectUsageLimit, false
	case subtotal.LessThan(p.MinOrder):
		return RejectBelowMinOrder, false
	}
	return "", true
}

// InCurrency returns a copy whose monetary fields are converted from base into
// the order currency. Percentages are left alone.
func (p *PromoCode) InCurrency(table RateTable, base, currency string) (*PromoCode, error) {
	cp := *p
	minOrder, err := table.Convert(p.MinOrder, base, currency)
	if err != nil {
		return nil, err
	}
	cp.MinOrder = minOrder
	if p.Kind == DiscountFixed {
		value, err := table.Convert(p.Value, base, currency)
		if err != nil {
			return nil, err
		}
		cp.Value = value
	}
	return &cp, nil
}

// Apply returns the discount the promo grants and the shipping cost after it.
// The discount is not capped here; ComputeTotals caps it at the subtotal.
func (p *PromoCode) Apply(subtotal, shipping decimal.Decimal) (discount, shippingAfter decimal.Decimal) {
	switch p.Kind {
	case DiscountPercentage:
		return percentageDiscount(p.Value, subtotal), shipping
	case DiscountFixed:
		return fixedDiscount(p.Value), shipping
	case DiscountFreeShipping:
		return freeShipping()
	default:
		return decimal.Zero, shipping
	}
}

func percentageDiscount(percent, subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(percent).Div(hundred)
}

func fixedDiscount(value decimal.Decimal) decimal.Decimal {
	return value
}

func freeShipping() (decimal.Decimal, decimal.Decimal) {
	return decimal.Zero, decimal.Zero
}
