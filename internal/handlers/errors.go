package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"classroom/internal/service"
	"classroom/internal/validation"
)

// maxBodyBytes bounds every JSON request body
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// writeJSON writes payload as the response body with the given status
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeSuccess writes {"success": true, "message": msg} merged with fields
func writeSuccess(w http.ResponseWriter, status int, msg string, fields map[string]any) {
	body := map[string]any{"success": true}
	if msg != "" {
		body["message"] = msg
	}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeFailure writes {"success": false, "message": msg}
func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// errorStatus maps a service error to its HTTP status and client message
func errorStatus(err error) (int, string) {
	var verr validation.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, service.ErrDuplicateEmail):
		return http.StatusConflict, ErrEmailTaken
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrBadCredentials
	case errors.Is(err, service.ErrSessionExpired):
		return http.StatusUnauthorized, ErrSessionExpiredMsg
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrUnauthorized
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		return http.StatusBadRequest, ErrInvalidResetToken
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusBadRequest, ErrInvalidOAuthState
	case errors.Is(err, service.ErrProviderError):
		return http.StatusBadGateway, ErrProviderFailed
	case errors.Is(err, service.ErrAccountDeactivated):
		return http.StatusForbidden, ErrDeactivatedMsg
	case errors.Is(err, service.ErrAlreadyEnrolled):
		return http.StatusConflict, ErrAlreadyEnrolledMsg
	case errors.Is(err, service.ErrAlreadySubmitted):
		return http.StatusConflict, ErrAlreadySubmittedMsg
	case errors.Is(err, service.ErrExamClosed):
		return http.StatusForbidden, ErrExamClosedMsg
	case errors.Is(err, service.ErrNotReviewed):
		return http.StatusForbidden, ErrNotReviewedMsg
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, ErrForbiddenMsg
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, ErrNotFoundMsg
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrUnavailableMsg
	default:
		return http.StatusInternalServerError, ErrInternalServerError
	}
}

// respondWithError writes the JSON error envelope for err. Server-side
// failures are logged with the underlying error, client errors at debug.
func respondWithError(w http.ResponseWriter, logger *zap.SugaredLogger, logMsg string, err error) {
	status, userMsg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Errorw(logMsg, "status", status, "error", err)
	} else {
		logger.Debugw(logMsg, "status", status, "error", err)
	}
	writeFailure(w, status, userMsg)
}
