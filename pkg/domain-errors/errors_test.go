package dErrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/stellarnodeN/recrusearch/pkg/domain-errors"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := dErrors.Wrap(cause, dErrors.CodeUnavailable, "ledger read failed")

	assert.ErrorIs(t, err, cause)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.Contains(t, err.Error(), "ledger read failed")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHasCode(t *testing.T) {
	err := dErrors.New(dErrors.CodeConflict, "already granted")

	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.False(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.False(t, dErrors.HasCode(errors.New("plain"), dErrors.CodeConflict))
	assert.False(t, dErrors.HasCode(nil, dErrors.CodeConflict))
}

// The code survives further wrapping with %w by other layers.
func TestCodeOfThroughWrapping(t *testing.T) {
	inner := dErrors.New(dErrors.CodeNotFound, "campaign not found")
	outer := fmt.Errorf("enroll: %w", inner)

	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(outer))
	assert.True(t, dErrors.HasCode(outer, dErrors.CodeNotFound))
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(errors.New("uncoded")))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code dErrors.Code
		want int
	}{
		{dErrors.CodeInvalidInput, http.StatusBadRequest},
		{dErrors.CodeBadRequest, http.StatusBadRequest},
		{dErrors.CodeUnauthorized, http.StatusUnauthorized},
		{dErrors.CodeForbidden, http.StatusForbidden},
		{dErrors.CodeNotFound, http.StatusNotFound},
		{dErrors.CodeConflict, http.StatusConflict},
		{dErrors.CodeTimeout, http.StatusGatewayTimeout},
		{dErrors.CodeUnavailable, http.StatusServiceUnavailable},
		{dErrors.CodeIntegrity, http.StatusUnprocessableEntity},
		{dErrors.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dErrors.ToHTTPStatus(tt.code), string(tt.code))
	}

	// Unknown codes fail closed.
	assert.Equal(t, http.StatusInternalServerError, dErrors.ToHTTPStatus(dErrors.Code("mystery")))
}

func TestNewf(t *testing.T) {
	err := dErrors.Newf(dErrors.CodeInvalidInput, "age %d out of range", 150)
	require.Error(t, err)
	assert.Equal(t, "invalid_input: age 150 out of range", err.Error())
}
