package handlers

import "time"

const (
	OAuthStateCookieName = "oauth_state"
	oauthStateTTL        = 10 * time.Minute

	ErrMissingFields       = "Missing required fields"
	ErrInvalidBody         = "Invalid request body"
	ErrTokenRequired       = "Token required"
	ErrEmailTaken          = "Email already registered"
	ErrBadCredentials      = "Invalid email or password"
	ErrSessionExpiredMsg   = "Session expired"
	ErrUnauthorized        = "Unauthorized"
	ErrInvalidResetToken   = "Invalid or expired token"
	ErrInvalidOAuthState   = "Invalid OAuth state"
	ErrProviderFailed      = "OAuth provider error"
	ErrForbiddenMsg        = "Forbidden"
	ErrDeactivatedMsg      = "Account deactivated"
	ErrNotFoundMsg         = "Not found"
	ErrAlreadyEnrolledMsg  = "Student already enrolled"
	ErrAlreadySubmittedMsg = "Exam already submitted"
	ErrExamClosedMsg       = "Exam is not open"
	ErrNotReviewedMsg      = "Result not yet reviewed"
	ErrUnavailableMsg      = "Service temporarily unavailable"
	ErrTooManyRequests     = "Too many requests"
	ErrInternalServerError = "Internal server error"
)
