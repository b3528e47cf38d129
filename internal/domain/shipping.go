package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ShippingMethod identifies a flat-rate shipping option.
type ShippingMethod string

// Supported shipping methods.
const (
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
)

// ShippingMethods returns every supported method.
func ShippingMethods() []ShippingMethod {
	return []ShippingMethod{ShippingStandard, ShippingExpress, ShippingOvernight}
}

// Valid reports whether m is a supported method.
func (m ShippingMethod) Valid() bool {
	for _, s := range ShippingMethods() {
		if s == m {
			return true
		}
	}
	return false
}

// ShippingTable maps each method to its flat cost in the base currency.
type ShippingTable map[ShippingMethod]decimal.Decimal

// Cost returns the flat cost for method.
func (t ShippingTable) Cost(method ShippingMethod) (decimal.Decimal, error) {
	cost, ok := t[method]
	if !ok || !method.Valid() {
		return decimal.Decimal{}, InvalidShippingMethod(string(method))
	}
	return cost, nil
}

// ParseShippingTable builds a table from method → amount strings, e.g. the
// SHIPPING_RATES setting. Every supported method must be priced.
func ParseShippingTable(raw map[string]string) (ShippingTable, error) {
	t := make(ShippingTable, len(raw))
	for k, v := range raw {
		method := ShippingMethod(strings.ToLower(strings.TrimSpace(k)))
		if !method.Valid() {
			return nil, fmt.Errorf("unsupported shipping method %q", k)
		}
		cost, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("shipping rate for %s: %w", method, err)
		}
		if cost.IsNegative() {
			return nil, fmt.Errorf("shipping rate for %s must not be negative", method)
		}
		t[method] = cost
	}
	for _, m := range ShippingMethods() {
		if _, ok := t[m]; !ok {
			return nil, fmt.Errorf("missing shipping rate for %s", m)
		}
	}
	return t, nil
}
