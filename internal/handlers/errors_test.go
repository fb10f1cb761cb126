package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"classroom/internal/service"
	"classroom/internal/validation"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: validation.ValidationError{Field: "email", Message: "invalid email format"}, want: http.StatusBadRequest},
		{name: "duplicate email", err: service.ErrDuplicateEmail, want: http.StatusConflict},
		{name: "invalid credentials", err: service.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{name: "not found", err: fmt.Errorf("get user: %w", service.ErrNotFound), want: http.StatusNotFound},
		{name: "unauthenticated", err: service.ErrUnauthenticated, want: http.StatusUnauthorized},
		{name: "session expired", err: service.ErrSessionExpired, want: http.StatusUnauthorized},
		{name: "reset token", err: service.ErrInvalidOrExpiredToken, want: http.StatusBadRequest},
		{name: "oauth state", err: fmt.Errorf("%w: expired", service.ErrInvalidState), want: http.StatusBadRequest},
		{name: "provider", err: service.ErrProviderError, want: http.StatusBadGateway},
		{name: "store unavailable", err: fmt.Errorf("failed to get user: %w: %w", service.ErrStoreUnavailable, errors.New("dial tcp")), want: http.StatusServiceUnavailable},
		{name: "forbidden", err: service.ErrForbidden, want: http.StatusForbidden},
		{name: "deactivated", err: service.ErrAccountDeactivated, want: http.StatusForbidden},
		{name: "already enrolled", err: service.ErrAlreadyEnrolled, want: http.StatusConflict},
		{name: "already submitted", err: service.ErrAlreadySubmitted, want: http.StatusConflict},
		{name: "exam closed", err: service.ErrExamClosed, want: http.StatusForbidden},
		{name: "not reviewed", err: service.ErrNotReviewed, want: http.StatusForbidden},
		{name: "unexpected", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRespondWithErrorWritesEnvelope(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondWithError(recorder, zap.NewNop().Sugar(), "lookup failed", validation.ValidationError{Field: "email", Message: "email is required"})

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["success"] != false || body["message"] != "email is required" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRespondWithErrorLogsServerErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core).Sugar()

	recorder := httptest.NewRecorder()
	respondWithError(recorder, logger, "failed to save grade", errors.New("boom"))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", recorder.Code)
	}
	if !json.Valid(recorder.Body.Bytes()) {
		t.Fatalf("expected JSON body, got %q", recorder.Body.String())
	}

	entries := logs.FilterMessage("failed to save grade").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("level = %v, want error", entries[0].Level)
	}
	if got := entries[0].ContextMap()["error"]; got != "boom" {
		t.Errorf("logged error = %v, want boom", got)
	}

	// The internal error text stays out of the response
	var body map[string]any
	_ = json.Unmarshal(recorder.Body.Bytes(), &body)
	if body["message"] != ErrInternalServerError {
		t.Errorf("message = %v, want %q", body["message"], ErrInternalServerError)
	}
}
