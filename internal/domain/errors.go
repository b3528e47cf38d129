package domain

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/utafrali/orderengine/pkg/errors"
)

// Sentinel errors for the placement failure taxonomy.
var (
	ErrProductUnavailable    = errors.New("product unavailable")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInvalidShippingMethod = errors.New("invalid shipping method")
	ErrUnknownCurrency       = errors.New("unknown currency")
	ErrPromoRejected         = errors.New("promo rejected")
	ErrPersistenceFailure    = errors.New("persistence failure")
	ErrInvalidTransition     = errors.New("invalid status transition")
)

// ProductUnavailableError reports a product that is missing or inactive.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is unavailable", e.ProductID)
}

func (e *ProductUnavailableError) Unwrap() error { return ErrProductUnavailable }

// InsufficientStockError reports the first product whose stock cannot cover the request.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// UnknownCurrencyError reports a currency code that is absent or inactive in the rate table.
type UnknownCurrencyError struct {
	Code string
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("unknown currency %q", e.Code)
}

func (e *UnknownCurrencyError) Unwrap() error { return ErrUnknownCurrency }

// PromoRejectedError carries the first failing promo check.
type PromoRejectedError struct {
	Code   string
	Reason RejectReason
}

func (e *PromoRejectedError) Error() string {
	return fmt.Sprintf("promo code %q rejected: %s", e.Code, e.Reason)
}

func (e *PromoRejectedError) Unwrap() error { return ErrPromoRejected }

// InvalidTransitionError reports a status change the order lifecycle does not allow.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ProductUnavailable creates a 422 error for a missing or inactive product.
func ProductUnavailable(productID string) *apperrors.AppError {
	err := &ProductUnavailableError{ProductID: productID}
	return apperrors.New("PRODUCT_UNAVAILABLE", err.Error(), http.StatusUnprocessableEntity, err)
}

// InsufficientStock creates a 409 error naming the product that ran short.
func InsufficientStock(productID string, requested, available int) *apperrors.AppError {
	err := &InsufficientStockError{ProductID: productID, Requested: requested, Available: available}
	return apperrors.New("INSUFFICIENT_STOCK", err.Error(), http.StatusConflict, err)
}

// InvalidShippingMethod creates a 400 error for a shipping method outside the rate table.
func InvalidShippingMethod(method string) *apperrors.AppError {
	return apperrors.New("INVALID_SHIPPING_METHOD",
		fmt.Sprintf("shipping method %q is not supported", method),
		http.StatusBadRequest, ErrInvalidShippingMethod)
}

// UnknownCurrency creates a 400 error for a currency missing from the rate snapshot.
func UnknownCurrency(code string) *apperrors.AppError {
	err := &UnknownCurrencyError{Code: code}
	return apperrors.New("UNKNOWN_CURRENCY", err.Error(), http.StatusBadRequest, err)
}

// PromoRejected creates a 422 error carrying the rejection reason.
func PromoRejected(code string, reason RejectReason) *apperrors.AppError {
	err := &PromoRejectedError{Code: code, Reason: reason}
	return apperrors.New("PROMO_REJECTED", string(reason), http.StatusUnprocessableEntity, err)
}

// InvalidTransition creates a 409 error for a disallowed status change.
func InvalidTransition(from, to OrderStatus) *apperrors.AppError {
	err := &InvalidTransitionError{From: from, To: to}
	return apperrors.New("INVALID_STATUS_TRANSITION", err.Error(), http.StatusConflict, err)
}

// PersistenceFailure wraps a data store error. The cause stays reachable through errors.Is/As.
func PersistenceFailure(cause error) *apperrors.AppError {
	return apperrors.New("PERSISTENCE_FAILURE", "the order could not be stored, please retry",
		http.StatusInternalServerError, fmt.Errorf("%w: %w", ErrPersistenceFailure, cause))
}

var placementSentinels = []error{
	apperrors.ErrInvalidInput,
	ErrProductUnavailable,
	ErrInsufficientStock,
	ErrInvalidShippingMethod,
	ErrUnknownCurrency,
	ErrPromoRejected,
	ErrPersistenceFailure,
	ErrInvalidTransition,
}

// IsPlacementError reports whether err already belongs to the placement taxonomy, so it must
// not be reclassified as a persistence failure. Other app errors, such as a NotFound raised
// by a store mid-transaction, do not count.
func IsPlacementError(err error) bool {
	for _, sentinel := range placementSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
