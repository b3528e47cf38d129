package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/orderengine/internal/domain"
	apperrors "github.com/utafrali/orderengine/pkg/errors"
	"github.com/utafrali/orderengine/pkg/httpclient"
)

const capturePath = "/api/v1/payments/capture"

// HTTPDoer executes HTTP requests. httpclient.Client and
// httpclient.CircuitBreakerClient both satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type captureRequest struct {
	OrderID  string `json:"order_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// HTTPCapturer asks the payment service to capture an order's amount due.
// The result is reported back asynchronously on the payment topics.
type HTTPCapturer struct {
	client  HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewHTTPCapturer creates a capturer for the payment service at baseURL.
func NewHTTPCapturer(client HTTPDoer, baseURL string, logger *slog.Logger) *HTTPCapturer {
	return &HTTPCapturer{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Capture requests capture of amount in currency for orderID. The order id
// doubles as the idempotency key so a retried request never charges twice.
func (c *HTTPCapturer) Capture(ctx context.Context, orderID string, amount decimal.Decimal, currency string) error {
	body, err := json.Marshal(captureRequest{
		OrderID:  orderID,
		Amount:   domain.FormatMoney(amount),
		Currency: currency,
	})
	if err != nil {
		return fmt.Errorf("marshal capture request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+capturePath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create capture request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", orderID)

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		if errors.Is(err, httpclient.ErrCircuitOpen) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apperrors.ServiceUnavailable("payment service is temporarily unavailable")
		}
		return fmt.Errorf("call payment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusCreated {
		return httpclient.ParseResponseError(resp, "payment")
	}

	c.logger.InfoContext(ctx, "payment capture requested",
		slog.String("order_id", orderID),
		slog.String("amount", domain.FormatMoney(amount)),
		slog.String("currency", currency),
	)
	return nil
}
