package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	ErrKindUpstreamUnavailable ErrorKind = "UpstreamUnavailable"
	ErrKindUpstreamCallFailed  ErrorKind = "UpstreamCallFailed"
	ErrKindMalformedLlmOutput  ErrorKind = "MalformedLlmOutput"
	ErrKindMalformedItinerary  ErrorKind = "MalformedItinerary"
	ErrKindSchemaViolation     ErrorKind = "SchemaViolation"
	ErrKindGeocodingNoResults  ErrorKind = "GeocodingNoResults"
	ErrKindGeocodingFailed     ErrorKind = "GeocodingFailed"
	ErrKindWeatherFetchFailed  ErrorKind = "WeatherFetchFailed"
	ErrKindInternal            ErrorKind = "Internal"
)

// InternalErrorMessage is the only detail a caller sees for unclassified failures.
const InternalErrorMessage = "Internal error while creating plan."

// PipelineError is a recognized failure of one pipeline stage.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError builds a PipelineError; format follows fmt.Sprintf.
func NewPipelineError(kind ErrorKind, cause error, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// AsPipelineError extracts a PipelineError from an error chain.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// HTTPStatus maps a kind to the response status used at the HTTP boundary.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case ErrKindGeocodingNoResults:
		return http.StatusNotFound
	case ErrKindUpstreamUnavailable, ErrKindUpstreamCallFailed,
		ErrKindMalformedLlmOutput, ErrKindMalformedItinerary, ErrKindSchemaViolation,
		ErrKindGeocodingFailed, ErrKindWeatherFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Preview returns at most n runes of s.
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
