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
		{"validation", Validation("x", nil), http.StatusUnprocessableEntity},
		{"bad request", BadRequest("x"), http.StatusBadRequest},
		{"not found", NotFound("x"), http.StatusNotFound},
		{"conflict", Conflict("x"), http.StatusConflict},
		{"retryable", Retryable("x", errors.New("timeout")), http.StatusServiceUnavailable},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", NotFound("x")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(KindOf(tt.err)))
		})
	}
}

func TestInsufficientStock(t *testing.T) {
	err := InsufficientStock("book-1", "Dế Mèn", 5, 2)

	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, "book-1", err.Details["book_id"])
	assert.Equal(t, 5, err.Details["requested"])
	assert.Equal(t, 2, err.Details["available"])
	assert.Contains(t, err.Fields["quantity"], "5")
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connexion refusée")
	err := Internal(cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, GenericMessage, err.Message)
}
