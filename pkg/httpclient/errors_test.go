package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/orderengine/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func envelope(code, msg string) string {
	return `{"error":{"code":"` + code + `","message":"` + msg + `"}}`
}

func TestParseResponseError_Mapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
		want     int
	}{
		{"not found", http.StatusNotFound, apperrors.ErrNotFound, http.StatusNotFound},
		{"bad request", http.StatusBadRequest, apperrors.ErrInvalidInput, http.StatusBadRequest},
		{"conflict", http.StatusConflict, apperrors.ErrConflict, http.StatusConflict},
		{"declined", http.StatusUnprocessableEntity, apperrors.ErrPaymentFailed, http.StatusUnprocessableEntity},
		{"payment required", http.StatusPaymentRequired, apperrors.ErrPaymentFailed, http.StatusUnprocessableEntity},
		{"unavailable", http.StatusServiceUnavailable, apperrors.ErrServiceUnavail, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseResponseError(response(tt.status, envelope("X", "card declined")), "payment")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.Equal(t, tt.want, apperrors.HTTPStatus(err))
		})
	}
}

func TestParseResponseError_KeepsDownstreamCode(t *testing.T) {
	err := ParseResponseError(response(http.StatusUnauthorized, envelope("UNAUTHORIZED", "bad token")), "payment")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "UNAUTHORIZED", appErr.Code)
	assert.Equal(t, http.StatusUnauthorized, appErr.Status)
	assert.Contains(t, appErr.Message, "bad token")
}

func TestParseResponseError_UnstructuredBody(t *testing.T) {
	err := ParseResponseError(response(http.StatusTeapot, "nope"), "payment")
	assert.EqualError(t, err, "payment returned status 418: nope")
}

func TestParseResponseError_ServerError(t *testing.T) {
	err := ParseResponseError(response(http.StatusInternalServerError, envelope("INTERNAL_ERROR", "oops")), "payment")
	assert.Contains(t, err.Error(), "payment server error (500/INTERNAL_ERROR): oops")
	var appErr *apperrors.AppError
	assert.False(t, errors.As(err, &appErr))
}
