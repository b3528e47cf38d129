package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock movement reasons.
const (
	MovementOrderPlaced    = "order_placed"
	MovementOrderCancelled = "order_cancelled"
)

// Product is the catalog view the engine prices and reserves against.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Stock     int             `json:"stock"`
	SoldCount int             `json:"sold_count"`
	IsActive  bool            `json:"is_active"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Purchasable reports whether the product can be ordered at all.
func (p *Product) Purchasable() bool {
	return p != nil && p.IsActive
}

// CanFulfil reports whether the current stock covers qty units.
func (p *Product) CanFulfil(qty int) bool {
	return p.Stock >= qty
}
