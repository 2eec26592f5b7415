package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("title is required"), http.StatusBadRequest},
		{"auth", Auth("missing token"), http.StatusUnauthorized},
		{"authorization", Authorization("admin only"), http.StatusForbidden},
		{"not found", NotFound("letter %d not found", 3), http.StatusNotFound},
		{"invalid state", InvalidState("bad transition"), http.StatusConflict},
		{"generation", Generation("empty"), http.StatusBadGateway},
		{"external", ExternalService("smtp down"), http.StatusBadGateway},
		{"invariant", InvariantViolation("double credit"), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestWrappedErrorsKeepType(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("apply code: %w", ExternalService("payment provider unreachable").Wrap(cause))

	appErr := Get(err)
	require.NotNil(t, appErr)
	assert.Equal(t, TypeExternalService, appErr.Type)
	assert.True(t, appErr.Retryable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsValidation(Validation("x")))
	assert.True(t, IsNotFound(fmt.Errorf("wrap: %w", NotFound("x"))))
	assert.True(t, IsInvalidState(InvalidState("x")))
	assert.True(t, IsGeneration(Generation("x")))
	assert.False(t, IsNotFound(errors.New("x")))
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, IsDuplicate(errors.New("UNIQUE constraint failed: commission_payments.subscription_id")))
	assert.True(t, IsDuplicate(errors.New("Error 1062: Duplicate entry 'x' for key 'y'")))
	assert.False(t, IsDuplicate(errors.New("syntax error")))
	assert.False(t, IsDuplicate(nil))
}
