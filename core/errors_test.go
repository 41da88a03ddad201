package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsPermanent(t *testing.T) {
	errBad := errors.New("bad payload")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errBad},
		{name: "marked", err: Permanent(errBad), want: true},
		{name: "wrapped after marking", err: errors.Wrap(Permanent(errBad), "decoding"), want: true},
		{name: "marked after wrapping", err: Permanent(errors.Wrap(errBad, "decoding")), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPermanent(tt.err))
		})
	}

	assert.Nil(t, Permanent(nil))
	assert.Equal(t, errBad, errors.Cause(errors.Wrap(Permanent(errBad), "decoding")))
	assert.ErrorIs(t, Permanent(errBad), errBad)
}

func TestValidationError_Error(t *testing.T) {
	errTaken := errors.New("email taken")

	assert.Equal(t, "email taken", NewValidationError(errTaken).Error())
	assert.Equal(t, "id: this field is required; currency: invalid", NewValidationError(nil,
		FieldError{Field: "id", Error: "this field is required"},
		FieldError{Field: "currency", Error: "invalid"},
	).Error())
}
