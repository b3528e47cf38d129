package domain

import "github.com/shopspring/decimal"

// Totals is the priced breakdown of an order, all in the order currency.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Subtotal sums unit price × quantity over lines.
func Subtotal(lines []OrderLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// ComputeTotals prices lines with the given shipping cost, tax rate (percent)
// and discount. The discount is capped at the subtotal and tax is charged on
// the discounted amount. Nothing is rounded.
func ComputeTotals(lines []OrderLine, shipping, taxRatePercent, discount decimal.Decimal) Totals {
	subtotal := Subtotal(lines)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(taxRatePercent).Div(hundred)
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    taxable.Add(tax).Add(shipping),
	}
}

// Rounded rounds every component to MoneyPlaces and recomputes the total from
// the rounded parts, so the stored figures still add up exactly.
func (t Totals) Rounded() Totals {
	r := Totals{
		Subtotal: RoundMoney(t.Subtotal),
		Discount: RoundMoney(t.Discount),
		Tax:      RoundMoney(t.Tax),
		Shipping: RoundMoney(t.Shipping),
	}
	r.Total = r.Subtotal.Sub(r.Discount).Add(r.Tax).Add(r.Shipping)
	return r
}
