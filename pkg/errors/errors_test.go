package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorString(t *testing.T) {
	inner := fmt.Errorf("db connection lost")
	withInner := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Equal(t, "INTERNAL_ERROR: something broke: db connection lost", withInner.Error())

	bare := &AppError{Code: "NOT_FOUND", Message: "product not found"}
	assert.Equal(t, "NOT_FOUND: product not found", bare.Error())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("product", "p-1"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("product", "amazon_asin", "B001"), "ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("limit must be positive"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"conflict", Conflict("stale write"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"not configured", NotConfigured("SERPAPI_API_KEY"), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail},
		{"upstream", Upstream("serpapi", fmt.Errorf("timeout")), "UPSTREAM_ERROR", http.StatusBadGateway, ErrUpstream},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NotNil(t, tc.err)
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.status, tc.err.Status)
			assert.True(t, errors.Is(tc.err, tc.sentinel))
			assert.Equal(t, tc.status, HTTPStatus(tc.err))
		})
	}
}

func TestNotConfigured_MentionsFeature(t *testing.T) {
	err := NotConfigured("ANTHROPIC_API_KEY")
	assert.Contains(t, err.Message, "ANTHROPIC_API_KEY")
}

func TestWrap_PreservesSentinel(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "get product")
	assert.Contains(t, wrapped.Error(), "get product")
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))
}

func TestHTTPStatus_Sentinels(t *testing.T) {
	assert.Equal(t, http.StatusConflict, HTTPStatus(fmt.Errorf("x: %w", ErrAlreadyExists)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("x: %w", ErrInvalidInput)))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(fmt.Errorf("x: %w", ErrServiceUnavail)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
}
