package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), ""},
		{"app error", NewValidationError("bad"), KindValidation},
		{"wrapped app error", fmt.Errorf("outer: %w", NewAppError(KindRemoteUnavailable, "down")), KindRemoteUnavailable},
		{"record not found sentinel", ErrorRecordNotFound, KindNotFound},
		{"wrapped sentinel", fmt.Errorf("load: %w", ErrorRecordNotFound), KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind ErrorKind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindGovernanceExceeded, http.StatusTooManyRequests},
		{KindRemoteUnavailable, http.StatusBadGateway},
		{KindValidation, http.StatusBadRequest},
		{KindInsufficientStock, http.StatusBadRequest},
		{KindInsufficientRemoteStock, http.StatusBadRequest},
		{KindInvalidTransition, http.StatusBadRequest},
		{KindConstraintViolation, http.StatusBadRequest},
		{KindRemoteRejected, http.StatusBadRequest},
		{"", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.kind); got != tc.want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestAppError_UnwrapAndShortfalls(t *testing.T) {
	inner := errors.New("dial tcp: timeout")
	err := WrapAppError(KindRemoteUnavailable, "external system unreachable", inner)
	if !errors.Is(err, inner) {
		t.Fatal("wrapped error must unwrap to the cause")
	}

	sf := Shortfall{
		Ingredient: "Cocoa Powder",
		Sku:        "ING-COCOA",
		Required:   decimal.RequireFromString("3.5"),
		Available:  decimal.RequireFromString("1"),
		Source:     "local",
	}
	stockErr := NewInsufficientStockError([]Shortfall{sf})
	var appErr *AppError
	if !errors.As(stockErr, &appErr) {
		t.Fatal("expected AppError")
	}
	if len(appErr.Shortfalls) != 1 || appErr.Shortfalls[0].Sku != "ING-COCOA" {
		t.Fatalf("shortfalls not carried: %+v", appErr.Shortfalls)
	}
}
