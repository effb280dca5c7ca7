package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

var errRoomTaken = errors.New("room is not available")

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFound("Room"), CodeNotFound, http.StatusNotFound},
		{"not found with id", NotFoundWithID("Bill", "abc"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad readings", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad id"), CodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", Unauthorized("expired"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("not your bill"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("duplicate bill"), CodeConflict, http.StatusConflict},
		{"invalid state", InvalidState("booking not approved"), CodeInvalidState, http.StatusConflict},
		{"internal", Internal("boom", nil), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("Mongo"), CodeUnavailable, http.StatusServiceUnavailable},
		{"upstream", Upstream("blob storage", errors.New("dial tcp")), CodeUpstream, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("StatusCode() = %d, want %d", tt.err.StatusCode(), tt.wantStatus)
			}
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "Room not found"},
			expected: "NOT_FOUND: Room not found",
		},
		{
			name:     "with underlying error",
			appErr:   Conflict("Room is not available").WithCause(errRoomTaken),
			expected: "CONFLICT: Room is not available (caused by: room is not available)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestWithCause_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("create booking: %w", Conflict("Room is not available").WithCause(errRoomTaken))

	if !errors.Is(err, errRoomTaken) {
		t.Fatal("errors.Is should find the sentinel through the AppError")
	}
	if !HasCode(err, CodeConflict) {
		t.Error("HasCode should see the wrapped AppError code")
	}
	if HasCode(err, CodeNotFound) {
		t.Error("HasCode should not match a different code")
	}
}

func TestWithDetails(t *testing.T) {
	err := Validation("validation failed", nil).WithDetails(map[string]any{"field": "water_after"})
	if err.Details["field"] != "water_after" {
		t.Errorf("expected field detail, got %v", err.Details["field"])
	}
}

func TestIsAppError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NotFound("Bill"))

	if !IsAppError(wrapped) {
		t.Error("IsAppError() should unwrap to the AppError")
	}
	if IsAppError(errors.New("plain")) {
		t.Error("IsAppError() should be false for plain errors")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Bill")
	if got := AsAppError(fmt.Errorf("wrapped: %w", appErr)); got != appErr {
		t.Error("AsAppError() should return the wrapped AppError")
	}

	plain := errors.New("socket closed")
	got := AsAppError(plain)
	if got.Code != CodeInternal {
		t.Errorf("expected internal code, got %s", got.Code)
	}
	if got.Err != plain {
		t.Error("AsAppError() should keep the original error as cause")
	}
}
