package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/orderengine/pkg/errors"
	"github.com/utafrali/orderengine/pkg/logger"
	"github.com/utafrali/orderengine/pkg/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *ErrorResponse {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

// --- WriteJSON ---

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, Response{Data: map[string]string{"order_number": "ORD-20250114-9F2C41AB"}})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.Contains(t, string(raw["data"]), "ORD-20250114-9F2C41AB")
	_, hasError := raw["error"]
	assert.False(t, hasError)
}

// --- WriteError ---

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"app error", apperrors.NotFound("order", "abc"), http.StatusNotFound, "NOT_FOUND"},
		{"custom app error", apperrors.New("INSUFFICIENT_STOCK", "not enough stock", http.StatusConflict, nil), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"wrapped app error", fmt.Errorf("place: %w", apperrors.InvalidInput("bad qty")), http.StatusBadRequest, "INVALID_INPUT"},
		{"sentinel not found", apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"sentinel exists", apperrors.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
		{"sentinel invalid", fmt.Errorf("qty: %w", apperrors.ErrInvalidInput), http.StatusBadRequest, "INVALID_INPUT"},
		{"sentinel conflict", apperrors.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"sentinel unavailable", apperrors.ErrServiceUnavail, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, httptest.NewRequest(http.MethodGet, "/orders", nil), tt.err, testLogger())

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestWriteError_InternalDetailHidden(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/orders", nil), errors.New("pq: password authentication failed"), testLogger())

	body := decodeError(t, rec)
	assert.Equal(t, "an internal error occurred", body.Message)
	assert.NotContains(t, body.Message, "password")
}

func TestWriteError_InvalidInputKeepsMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("quantity must be positive: %w", apperrors.ErrInvalidInput)
	WriteError(rec, httptest.NewRequest(http.MethodPost, "/orders", nil), err, testLogger())

	assert.Contains(t, decodeError(t, rec).Message, "quantity must be positive")
}

func TestWriteError_RequestID(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-123")

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx), apperrors.ErrNotFound, testLogger())
	assert.Equal(t, "corr-123", decodeError(t, rec).RequestID)

	rec = httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), apperrors.ErrNotFound, testLogger())
	assert.NotContains(t, rec.Body.String(), "request_id")
}

func TestWriteError_NilFallbackLogger(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"), nil)
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// --- WriteValidationError ---

func TestWriteValidationError_Fields(t *testing.T) {
	type req struct {
		Currency string `json:"currency" validate:"required"`
	}
	err := validator.Validate(req{})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	WriteValidationError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Equal(t, "is required", body.Fields["currency"])
}

func TestWriteValidationError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteValidationError(rec, errors.New("not a validation error"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

// --- ParseUUID ---

func TestParseUUID_Valid(t *testing.T) {
	rec := httptest.NewRecorder()
	id, ok := ParseUUID(rec, "550E8400-E29B-41D4-A716-446655440000")
	assert.True(t, ok)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id.String())
	assert.Equal(t, 0, rec.Body.Len())
}

func TestParseUUID_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc123", "not-a-uuid"} {
		rec := httptest.NewRecorder()
		_, ok := ParseUUID(rec, in)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		body := decodeError(t, rec)
		assert.Equal(t, "INVALID_PARAMETER", body.Code)
		assert.Contains(t, body.Message, in)
	}
}
