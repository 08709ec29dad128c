package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("listing %s not found", "X")))
	assert.Equal(t, KindForbidden, KindOf(Forbidden("not your listing")))
	assert.Equal(t, KindValidation, KindOf(Validation("reason is required")))
	assert.Equal(t, KindConflict, KindOf(Conflict("user already exists")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := Forbidden("not your listing")
	wrapped := fmt.Errorf("find matches: %w", inner)
	assert.Equal(t, KindForbidden, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindForbidden))
}

func TestInternal_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause, "updating report")
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "updating report")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("x")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(Forbidden("x")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("x")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Conflict("x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("x")))
}
