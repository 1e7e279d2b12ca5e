package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}

type ErrorKind string

const (
	KindValidation              ErrorKind = "ValidationError"
	KindInsufficientStock       ErrorKind = "InsufficientStock"
	KindInsufficientRemoteStock ErrorKind = "InsufficientRemoteStock"
	KindInvalidTransition       ErrorKind = "InvalidTransition"
	KindGovernanceExceeded      ErrorKind = "GovernanceExceeded"
	KindRemoteUnavailable       ErrorKind = "RemoteUnavailable"
	KindRemoteRejected          ErrorKind = "RemoteRejected"
	KindNotFound                ErrorKind = "NotFound"
	KindConstraintViolation     ErrorKind = "ConstraintViolation"
)

// Shortfall names one ingredient whose availability is below the required
// quantity. Source says which side was binding ("local" or "remote").
type Shortfall struct {
	Ingredient string          `json:"ingredient"`
	Sku        string          `json:"sku"`
	Required   decimal.Decimal `json:"required"`
	Available  decimal.Decimal `json:"available"`
	Source     string          `json:"source"`
}

// AppError carries an error kind plus optional per-ingredient details so the
// API layer can respond without string parsing.
type AppError struct {
	Kind       ErrorKind   `json:"kind"`
	Message    string      `json:"message"`
	Shortfalls []Shortfall `json:"shortfalls,omitempty"`
	Err        error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func WrapAppError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{Kind: KindNotFound, Message: resource + " not found"}
}

func NewInsufficientStockError(shortfalls []Shortfall) *AppError {
	return &AppError{Kind: KindInsufficientStock, Message: "insufficient ingredient stock", Shortfalls: shortfalls}
}

func NewInsufficientRemoteStockError(shortfalls []Shortfall) *AppError {
	return &AppError{Kind: KindInsufficientRemoteStock, Message: "insufficient ingredient stock in external system", Shortfalls: shortfalls}
}

// KindOf unwraps err looking for an AppError. Store-layer sentinels map to
// their kinds so callers only ever branch on a kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, ErrorRecordNotFound) {
		return KindNotFound
	}
	return ""
}

// HTTPStatus maps an error kind to the response status.
// GovernanceExceeded is deliberately 429 so callers can tell "too expensive"
// from "invalid".
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindGovernanceExceeded:
		return http.StatusTooManyRequests
	case KindRemoteUnavailable:
		return http.StatusBadGateway
	case KindValidation, KindInsufficientStock, KindInsufficientRemoteStock,
		KindInvalidTransition, KindConstraintViolation, KindRemoteRejected:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
