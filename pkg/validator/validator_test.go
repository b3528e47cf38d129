package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineReq struct {
	ProductID string `json:"product_id" validate:"notblank"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

type orderReq struct {
	Email    string          `json:"email" validate:"omitempty,email"`
	Lines    []lineReq       `json:"lines" validate:"required,min=1,dive"`
	Currency string          `json:"currency" validate:"required,currency"`
	Method   string          `json:"shipping_method" validate:"oneof=standard express overnight"`
	Amount   decimal.Decimal `json:"amount" validate:"gte=0"`
}

func validOrderReq() orderReq {
	return orderReq{
		Email:    "buyer@example.com",
		Lines:    []lineReq{{ProductID: "p-1", Quantity: 2}},
		Currency: "usd",
		Method:   "standard",
		Amount:   decimal.RequireFromString("12.50"),
	}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(validOrderReq()))
}

func TestValidate_FieldsUseJSONNames(t *testing.T) {
	req := validOrderReq()
	req.Email = "not-an-email"
	req.Method = "drone"

	fields := fieldsOf(t, Validate(req))
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Contains(t, fields["shipping_method"], "one of")
}

func TestValidate_NestedLinePath(t *testing.T) {
	req := validOrderReq()
	req.Lines = append(req.Lines, lineReq{ProductID: "", Quantity: 0})

	fields := fieldsOf(t, Validate(req))
	assert.Equal(t, "is required", fields["lines[1].product_id"])
	assert.Equal(t, "must be greater than or equal to 1", fields["lines[1].quantity"])
}

func TestValidate_EmptyLines(t *testing.T) {
	req := validOrderReq()
	req.Lines = []lineReq{}

	fields := fieldsOf(t, Validate(req))
	assert.Equal(t, "must contain at least 1 item(s)", fields["lines"])
}

func TestValidate_CurrencyCode(t *testing.T) {
	for _, code := range []string{"US", "USDX", "U5D", "€€€"} {
		req := validOrderReq()
		req.Currency = code
		fields := fieldsOf(t, Validate(req))
		assert.Equal(t, "must be a three-letter currency code", fields["currency"], code)
	}
}

func TestValidate_NegativeDecimal(t *testing.T) {
	req := validOrderReq()
	req.Amount = decimal.RequireFromString("-0.01")

	fields := fieldsOf(t, Validate(req))
	assert.Contains(t, fields["amount"], "greater than or equal to 0")
}

func TestValidationError_Message(t *testing.T) {
	req := validOrderReq()
	req.Email = "x"

	err := Validate(req)
	require.Error(t, err)
	assert.Equal(t, "field 'email' must be a valid email address", err.Error())
}

func TestDecodeAndValidate(t *testing.T) {
	body := `{"lines":[{"product_id":"p-1","quantity":1}],"currency":"EUR","shipping_method":"express","amount":"3.10"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var req orderReq
	require.NoError(t, DecodeAndValidate(r, &req))
	assert.Equal(t, "EUR", req.Currency)
	assert.True(t, req.Amount.Equal(decimal.RequireFromString("3.10")))
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{invalid"))

	var req orderReq
	err := DecodeAndValidate(r, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestValidate_BlankProductID(t *testing.T) {
	for _, id := range []string{"", "   ", "\t\n"} {
		req := validOrderReq()
		req.Lines[0].ProductID = id

		fields := fieldsOf(t, Validate(req))
		assert.Equal(t, "is required", fields["lines[0].product_id"], "id %q", id)
	}

	req := validOrderReq()
	req.Lines[0].ProductID = " p-1 "
	assert.NoError(t, Validate(req))
}
