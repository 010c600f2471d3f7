package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewConflict("stale", nil))
	domainErr := ToDomainError(wrapped)
	assert.Equal(t, "CONFLICT", domainErr.Code)
	assert.Equal(t, http.StatusConflict, domainErr.HTTPStatus)

	plain := ToDomainError(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.HTTPStatus)

	assert.Nil(t, ToDomainError(nil))
}

func TestConstructors(t *testing.T) {
	cause := errors.New("bad json")
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{NewValidationError("invalid", nil), "VALIDATION_FAILED", http.StatusBadRequest},
		{NewMalformed("malformed", cause), "MALFORMED_PAYLOAD", http.StatusBadRequest},
		{NewNotFound("ticket", nil), "NOT_FOUND", http.StatusNotFound},
		{NewUnknownKind("incident"), "UNKNOWN_KIND", http.StatusNotFound},
		{NewUnauthorized("no token"), "UNAUTHORIZED", http.StatusUnauthorized},
		{NewInternalError(cause), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.True(t, IsCode(tc.err, tc.code), tc.code)
		assert.Equal(t, tc.status, ToDomainError(tc.err).HTTPStatus, tc.code)
	}
	assert.ErrorIs(t, NewMalformed("malformed", cause), cause)
	assert.Equal(t, "ticket not found", NewNotFound("ticket", nil).Error())
}
