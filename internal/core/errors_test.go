package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	err := NewError(CodeNotFound, "voucher %s not found", "ABC123")
	expected := "[NOT_FOUND] voucher ABC123 not found"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestDomainError_ErrorWithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeStoreUnavailable, "append failed")

	if !errors.Is(err, cause) {
		t.Error("Expected wrapped cause to be matchable via errors.Is")
	}
	if err.Error() != "[STORE_UNAVAILABLE] append failed: connection refused" {
		t.Errorf("Unexpected error text: %q", err.Error())
	}
}

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := NewError(CodeConcurrencyConflict, "expected 2, got 3")
	target := NewError(CodeConcurrencyConflict, "different message")

	if !errors.Is(err, target) {
		t.Error("Expected errors with the same code to match")
	}

	other := NewError(CodeNotFound, "different code")
	if errors.Is(err, other) {
		t.Error("Expected errors with different codes to not match")
	}
}

func TestCodeOf_WrappedDeep(t *testing.T) {
	inner := NewError(CodeInvalidState, "voucher already issued")
	outer := fmt.Errorf("handle command: %w", inner)

	if CodeOf(outer) != CodeInvalidState {
		t.Errorf("Expected code %s, got %s", CodeInvalidState, CodeOf(outer))
	}
}

func TestCodeOf_PlainError(t *testing.T) {
	if CodeOf(errors.New("plain")) != "" {
		t.Error("Expected empty code for plain error")
	}
	if CodeOf(nil) != "" {
		t.Error("Expected empty code for nil error")
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		code      string
		predicate func(error) bool
	}{
		{CodeInvalidState, IsInvalidState},
		{CodeConcurrencyConflict, IsConcurrencyConflict},
		{CodeStoreUnavailable, IsStoreUnavailable},
		{CodeAuthenticationFailed, IsAuthenticationFailed},
		{CodeDeliveryFailed, IsDeliveryFailed},
		{CodeNotFound, IsNotFound},
	}

	for _, tc := range cases {
		err := NewError(tc.code, "test")
		if !tc.predicate(err) {
			t.Errorf("Expected predicate for %s to match", tc.code)
		}
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	if Wrap(nil, CodeStoreUnavailable, "ignored") != nil {
		t.Error("Expected nil for nil cause")
	}
}
