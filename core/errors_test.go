package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ValidationError("x").HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, ConflictError("x").HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, AuthenticationError().HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, InternalError("x", nil).HTTPStatus())
}

func TestAsAppError(t *testing.T) {
	cause := errors.New("disk full")

	wrapped := fmt.Errorf("outer: %w", ConflictError(MsgUsernameExists))
	assert.Equal(t, KindConflict, AsAppError(wrapped, "fallback").Kind)

	got := AsAppError(cause, "fallback")
	assert.Equal(t, KindInternal, got.Kind)
	assert.Equal(t, "fallback", got.Message)
	assert.ErrorIs(t, got, cause)
}
