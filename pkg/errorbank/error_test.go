package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		code   codes.Code
	}{
		{BadRequest("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{Unauthenticated("who"), http.StatusUnauthorized, codes.Unauthenticated},
		{InvalidTransition("cannot cancel at this stage"), http.StatusBadRequest, codes.FailedPrecondition},
		{Conflict("version"), http.StatusConflict, codes.Aborted},
		{NotFound("order not found"), http.StatusNotFound, codes.NotFound},
		{Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.StatusCode())
			assert.Equal(t, tc.code, tc.err.GRPCCode())
		})
	}
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("driver exploded")

	appErr := From(cause)
	assert.Equal(t, KindInternal, appErr.Kind())
	assert.Equal(t, "internal error", appErr.Message())
	assert.ErrorIs(t, appErr, cause)

	assert.Nil(t, From(nil))
}

func TestFromKeepsWrappedAppError(t *testing.T) {
	original := NotFound("order not found")
	wrapped := fmt.Errorf("handler: %w", original)

	assert.Same(t, original, From(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindConflict))
}

func TestFieldErrors(t *testing.T) {
	err := BadRequest("validation failed",
		WithFieldErrors(FieldError{Field: "items", Message: "at least one item is required"}),
		WithFieldErrors(FieldError{Field: "shippingAddress.city", Message: "is required"}),
	)

	fields := err.Fields()
	if assert.Len(t, fields, 2) {
		assert.Equal(t, "items", fields[0].Field)
		assert.Equal(t, "shippingAddress.city", fields[1].Field)
	}
}
