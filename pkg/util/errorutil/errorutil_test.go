package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsCarryCodeAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"validation", NewValidationError("bad", nil), CodeValidation, http.StatusBadRequest},
		{"not found", NewNotFound("ticket", nil), CodeNotFound, http.StatusNotFound},
		{"forbidden", NewForbidden("nope"), CodeForbidden, http.StatusForbidden},
		{"already assigned", NewAlreadyAssigned(nil), CodeAlreadyAssigned, http.StatusConflict},
		{"cap", NewCustomerCapExceeded(nil), CodeCustomerCapExceeded, http.StatusConflict},
		{"priority", NewPriorityMismatch(nil), CodePriorityMismatch, http.StatusConflict},
		{"invalid state", NewInvalidState("closed", nil), CodeInvalidState, http.StatusUnprocessableEntity},
		{"conflict", NewConflict("race", nil), CodeConflict, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			if de.Code != tt.wantCode {
				t.Fatalf("Code = %q, want %q", de.Code, tt.wantCode)
			}
			if de.HTTPStatus != tt.wantStatus {
				t.Fatalf("HTTPStatus = %d, want %d", de.HTTPStatus, tt.wantStatus)
			}
			if !HasCode(tt.err, tt.wantCode) {
				t.Fatalf("HasCode(%q) = false", tt.wantCode)
			}
		})
	}
}

func TestToDomainErrorWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("socket closed")
	de := ToDomainError(cause)
	if de.Code != CodeInternal {
		t.Fatalf("Code = %q, want %q", de.Code, CodeInternal)
	}
	if !errors.Is(de, cause) {
		t.Fatal("internal error does not unwrap to its cause")
	}
}

func TestHasCodeSeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("assign: %w", NewPriorityMismatch(nil))
	if !HasCode(err, CodePriorityMismatch) {
		t.Fatal("HasCode did not unwrap")
	}
	if CodeOf(err) != CodePriorityMismatch {
		t.Fatalf("CodeOf = %q", CodeOf(err))
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatal("CodeOf plain error should be empty")
	}
	if MapError(nil) != nil {
		t.Fatal("MapError(nil) should be nil")
	}
}
