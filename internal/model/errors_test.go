package model

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ============================================================================
// Error() Interface Tests
// ============================================================================

func TestProblemDetails_Error_ReturnsFormattedMessage(t *testing.T) {
	t.Parallel()

	pd := &ProblemDetails{
		Status: http.StatusNotFound,
		Title:  "Not Found",
		Detail: "event not found",
	}

	errMsg := pd.Error()

	for _, want := range []string{"404", "Not Found", "event not found"} {
		if !strings.Contains(errMsg, want) {
			t.Errorf("error message should contain %q, got: %s", want, errMsg)
		}
	}
}

// ============================================================================
// WriteJSON Tests
// ============================================================================

func TestProblemDetails_WriteJSON(t *testing.T) {
	t.Parallel()

	pd := NewConflictError("block is assigned to another member")
	rr := httptest.NewRecorder()

	pd.WriteJSON(rr)

	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected Content-Type 'application/problem+json', got %q", ct)
	}
	if rr.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rr.Code)
	}

	var result ProblemDetails
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if result.Detail != "block is assigned to another member" {
		t.Errorf("unexpected detail %q", result.Detail)
	}
	if result.Code != ErrCodeConflict {
		t.Errorf("expected code %d, got %d", ErrCodeConflict, result.Code)
	}
}

// ============================================================================
// Constructor Tests
// ============================================================================

func TestConstructors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pd     *ProblemDetails
		status int
		title  string
		code   ErrorCode
		slug   string
	}{
		{"unauthorized", NewUnauthorizedError("missing actor"), http.StatusUnauthorized, "Unauthorized", ErrCodeUnauthorized, "unauthorized"},
		{"forbidden", NewForbiddenError("admin only"), http.StatusForbidden, "Forbidden", ErrCodeForbidden, "forbidden"},
		{"not found", NewNotFoundError("event"), http.StatusNotFound, "Not Found", ErrCodeNotFound, "not-found"},
		{"unprocessable", NewUnprocessableError("block mismatch"), http.StatusUnprocessableEntity, "Unprocessable Entity", ErrCodeInvalidInput, "unprocessable"},
		{"already exists", NewAlreadyExistsError("already queued"), http.StatusConflict, "Conflict", ErrCodeAlreadyExists, "already-exists"},
		{"conflict", NewConflictError("taken"), http.StatusConflict, "Conflict", ErrCodeConflict, "conflict"},
		{"internal", NewInternalError("boom"), http.StatusInternalServerError, "Internal Server Error", ErrCodeInternal, "internal"},
		{"bad request", NewBadRequestError("invalid request body"), http.StatusBadRequest, "Bad Request", ErrCodeInvalidInput, "bad-request"},
		{"rate limited", NewRateLimitError(60), http.StatusTooManyRequests, "Too Many Requests", ErrCodeRateLimited, "rate-limited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.pd.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.pd.Status)
			}
			if tt.pd.Title != tt.title {
				t.Errorf("expected title %q, got %q", tt.title, tt.pd.Title)
			}
			if tt.pd.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, tt.pd.Code)
			}
			if tt.pd.Type != problemTypeBase+tt.slug {
				t.Errorf("unexpected type %q", tt.pd.Type)
			}
		})
	}
}

func TestNewNotFoundError_FormatsResourceName(t *testing.T) {
	t.Parallel()

	pd := NewNotFoundError("waiting list entry")

	if pd.Detail != "waiting list entry not found" {
		t.Errorf("unexpected detail %q", pd.Detail)
	}
}

func TestNewValidationError(t *testing.T) {
	t.Parallel()

	single := NewValidationError([]FieldError{{Field: "event_id", Message: "event_id is required"}})
	if single.Detail != "event_id: event_id is required" {
		t.Errorf("unexpected detail %q", single.Detail)
	}
	if single.Status != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, single.Status)
	}
	if len(single.Errors) != 1 {
		t.Errorf("expected 1 field error, got %d", len(single.Errors))
	}

	multi := NewValidationError([]FieldError{
		{Field: "user_id", Message: "user_id is required"},
		{Field: "event_id", Message: "event_id is required"},
		{Field: "request_type", Message: "must be VOLUNTARIO, OBLIGATORIO or COBERTURA"},
	})
	if !strings.Contains(multi.Detail, "and 2 more errors") {
		t.Errorf("detail should summarize the remaining errors, got %q", multi.Detail)
	}

	empty := NewValidationError(nil)
	if empty.Detail != "One or more fields failed validation" {
		t.Errorf("unexpected detail %q", empty.Detail)
	}
}

func TestNewInternalError_EmptyDetail_UsesDefault(t *testing.T) {
	t.Parallel()

	pd := NewInternalError("")

	if pd.Detail != "An unexpected error occurred" {
		t.Errorf("expected default detail, got %q", pd.Detail)
	}
}

// ============================================================================
// Error Code Constants Tests
// ============================================================================

func TestErrorCodes_CorrectRanges(t *testing.T) {
	t.Parallel()

	ranges := map[ErrorCode]int{
		ErrCodeUnauthorized:  1,
		ErrCodeForbidden:     2,
		ErrCodeNotFound:      3,
		ErrCodeAlreadyExists: 3,
		ErrCodeConflict:      3,
		ErrCodeValidation:    4,
		ErrCodeInvalidInput:  4,
		ErrCodeRateLimited:   4,
		ErrCodeInternal:      5,
	}

	for code, thousand := range ranges {
		if int(code)/1000 != thousand {
			t.Errorf("error code %d should be in %dxxx range", code, thousand)
		}
	}
}

// ============================================================================
// JSON Serialization Tests
// ============================================================================

func TestProblemDetails_JSON_OmitsEmptyFields(t *testing.T) {
	t.Parallel()

	pd := &ProblemDetails{
		Type:   "test",
		Title:  "Test",
		Status: 400,
	}

	data, err := json.Marshal(pd)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	jsonStr := string(data)
	for _, field := range []string{"detail", "instance", "errors", "code"} {
		if strings.Contains(jsonStr, field) {
			t.Errorf("empty %s should be omitted from JSON", field)
		}
	}
}
