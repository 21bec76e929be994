package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := NewValidationError(map[string]string{"title": "required", "price": "negative"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation failed: price: negative; title: required", err.Error())
	assert.Nil(t, NewValidationError(nil))
}

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrNotFound, "not_found"},
		{fmt.Errorf("wrap: %w", ErrForbidden), "forbidden"},
		{ErrInvalidState, "invalid_state"},
		{ErrDuplicateRequest, "duplicate_request"},
		{ErrConflict, "conflict"},
		{&ValidationError{Fields: map[string]string{"a": "b"}}, "validation_error"},
		{errors.New("disk on fire"), "internal"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ErrorKind(tc.err), "%v", tc.err)
	}
}
