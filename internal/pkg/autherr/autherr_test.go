package autherr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusAndCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
		{ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
		{ErrTokenDeactivated, http.StatusUnauthorized, "token_deactivated"},
		{ErrInvalidScope, http.StatusForbidden, "invalid_scope"},
		{ErrNotFound, http.StatusNotFound, "user_not_found"},
		{ErrInactiveUser, http.StatusForbidden, "inactive_user"},
		{ErrForbidden, http.StatusForbidden, "forbidden"},
		{ErrResourceNotFound, http.StatusNotFound, "not_found"},
		{ErrPaymentRequired, http.StatusPaymentRequired, "payment_required"},
		{ErrExternalService, http.StatusBadGateway, "external_service_error"},
	}

	for _, tt := range tests {
		wrapped := fmt.Errorf("context: %w", tt.err)
		assert.Equal(t, tt.status, Status(wrapped), tt.err.Error())
		assert.Equal(t, tt.code, Code(wrapped), tt.err.Error())
		assert.True(t, IsAuthError(wrapped))
	}
}

func TestUnknownErrorIsInternal(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, http.StatusInternalServerError, Status(err))
	assert.Equal(t, "internal_server_error", Code(err))
	assert.Equal(t, "internal server error", Message(err))
	assert.False(t, IsAuthError(err))
}
