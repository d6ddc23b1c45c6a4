package types

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
		kind ErrorKind
		want int
	}{
		{ErrKindGeocodingNoResults, http.StatusNotFound},
		{ErrKindUpstreamUnavailable, http.StatusBadGateway},
		{ErrKindUpstreamCallFailed, http.StatusBadGateway},
		{ErrKindMalformedLlmOutput, http.StatusBadGateway},
		{ErrKindMalformedItinerary, http.StatusBadGateway},
		{ErrKindSchemaViolation, http.StatusBadGateway},
		{ErrKindGeocodingFailed, http.StatusBadGateway},
		{ErrKindWeatherFetchFailed, http.StatusBadGateway},
		{ErrKindInternal, http.StatusInternalServerError},
		{ErrorKind("whatever"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}

func TestAsPipelineError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	pe := NewPipelineError(ErrKindUpstreamUnavailable, cause, "cannot reach %s", "ollama")
	wrapped := fmt.Errorf("parse stage: %w", pe)

	got, ok := AsPipelineError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrKindUpstreamUnavailable, got.Kind)
	assert.Equal(t, "cannot reach ollama", got.Error())
	assert.ErrorIs(t, wrapped, cause)

	_, ok = AsPipelineError(errors.New("plain"))
	assert.False(t, ok)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", Preview("abc", 10))
	assert.Equal(t, "ab", Preview("abc", 2))
	assert.Equal(t, "€€", Preview("€€€", 2))
}
