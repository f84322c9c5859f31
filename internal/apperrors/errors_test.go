package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindValidation, http.StatusBadRequest},
		{KindMismatch, http.StatusConflict},
		{KindTemplate, http.StatusInternalServerError},
		{KindUnavailable, http.StatusServiceUnavailable},
		{KindConfig, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.HTTPStatus())
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	err := Wrap(KindUnavailable, context.DeadlineExceeded, "query %s timed out", "travelers")

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "query travelers timed out", Message(err))
	assert.Contains(t, err.Error(), "[UNAVAILABLE]")
}

func TestKindOfWrappedChain(t *testing.T) {
	inner := NotFound("no record found in travelers with id %d", 7)
	outer := fmt.Errorf("load context: %w", inner)

	assert.Equal(t, KindNotFound, KindOf(outer))
	assert.True(t, Is(outer, KindNotFound))
	assert.False(t, IsRetryable(outer))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindInternal))
}

func TestFieldTypeMismatchCarriesField(t *testing.T) {
	err := FieldTypeMismatch("married", "value %q is not boolean", "maybe")
	assert.Equal(t, "married", err.Field)
	assert.Equal(t, KindFieldTypeMismatch, err.Kind)
}
