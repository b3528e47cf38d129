package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyRate is a rate relative to the base currency, whose own rate is 1.
type CurrencyRate struct {
	Code     string          `json:"code"`
	Symbol   string          `json:"symbol"`
	Rate     decimal.Decimal `json:"rate"`
	IsActive bool            `json:"is_active"`
}

// NormalizeCurrency upper-cases and trims an ISO-4217 code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RateTable is an immutable snapshot of currency rates. One table is taken per
// placement and threaded through every conversion it performs.
type RateTable struct {
	rates   map[string]CurrencyRate
	takenAt time.Time
}

// NewRateTable builds a snapshot from the given rates.
func NewRateTable(rates []CurrencyRate, takenAt time.Time) RateTable {
	m := make(map[string]CurrencyRate, len(rates))
	for _, r := range rates {
		r.Code = NormalizeCurrency(r.Code)
		m[r.Code] = r
	}
	return RateTable{rates: m, takenAt: takenAt}
}

// TakenAt returns when the snapshot was read.
func (t RateTable) TakenAt() time.Time {
	return t.takenAt
}

// Lookup returns the usable rate for code. Absent, inactive and non-positive
// rates are all unknown currencies.
func (t RateTable) Lookup(code string) (CurrencyRate, error) {
	code = NormalizeCurrency(code)
	r, ok := t.rates[code]
	if !ok || !r.IsActive || !r.Rate.IsPositive() {
		return CurrencyRate{}, UnknownCurrency(code)
	}
	return r, nil
}

// Convert moves amount from one currency to another through the base currency.
// Identical codes return amount untouched, without consulting the table.
func (t RateTable) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = NormalizeCurrency(from), NormalizeCurrency(to)
	if from == to {
		return amount, nil
	}
	fromRate, err := t.Lookup(from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	toRate, err := t.Lookup(to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Div(fromRate.Rate).Mul(toRate.Rate), nil
}

// Active returns the usable rates ordered by code.
func (t RateTable) Active() []CurrencyRate {
	out := make([]CurrencyRate, 0, len(t.rates))
	for _, r := range t.rates {
		if r.IsActive && r.Rate.IsPositive() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of rates in the snapshot, active or not.
func (t RateTable) Len() int {
	return len(t.rates)
}
