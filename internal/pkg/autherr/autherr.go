// Package autherr defines the typed failures returned by the authentication
// and authorization core, and their mapping onto HTTP responses.
package autherr

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenDeactivated = errors.New("token deactivated")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidScope     = errors.New("invalid scope")
	ErrNotFound         = errors.New("user not found")
	ErrInactiveUser     = errors.New("inactive user")
	ErrForbidden        = errors.New("forbidden")
	ErrExternalService  = errors.New("external service error")

	// ErrResourceNotFound is returned when the target resource itself does not
	// exist. It is checked before any access decision is made.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrPaymentRequired is returned when a paid entitlement is required but
	// the principal's subscription does not grant it.
	ErrPaymentRequired = errors.New("payment required")
)

type mapping struct {
	err    error
	status int
	code   string
}

// Order matters: the first sentinel matched by errors.Is wins.
var mappings = []mapping{
	{ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{ErrTokenDeactivated, http.StatusUnauthorized, "token_deactivated"},
	{ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{ErrInvalidScope, http.StatusForbidden, "invalid_scope"},
	{ErrNotFound, http.StatusNotFound, "user_not_found"},
	{ErrInactiveUser, http.StatusForbidden, "inactive_user"},
	{ErrForbidden, http.StatusForbidden, "forbidden"},
	{ErrResourceNotFound, http.StatusNotFound, "not_found"},
	{ErrPaymentRequired, http.StatusPaymentRequired, "payment_required"},
	{ErrExternalService, http.StatusBadGateway, "external_service_error"},
}

// Status returns the HTTP status code for err. Unknown errors map to 500.
func Status(err error) int {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// Code returns a stable machine readable code for err.
func Code(err error) string {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return "internal_server_error"
}

// Message returns the message shown to API clients. Internal errors are not
// echoed back to avoid leaking details.
func Message(err error) string {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.err.Error()
		}
	}
	return "internal server error"
}

// IsAuthError reports whether err belongs to the typed taxonomy above.
func IsAuthError(err error) bool {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return true
		}
	}
	return false
}
