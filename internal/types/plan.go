package types

import (
	"encoding/json"
	"time"
)

// PlanRequest is the inbound body of POST /v1/plan.
type PlanRequest struct {
	Query string `json:"query" validate:"required,min=5,max=2000"`
}

type PlanResponse struct {
	RequestID string          `json:"request_id"`
	Summary   string          `json:"summary"`
	Itinerary []string        `json:"itinerary"`
	Parsed    TripPreferences `json:"parsed"`
	Decision  Decision        `json:"decision"`
	Weather   *WeatherInfo    `json:"weather,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// PlanRecord is one persisted request/response cycle. JSON columns are kept
// as raw messages so the store never has to know the shapes inside them.
type PlanRecord struct {
	ID              string          `json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	QueryPreview    string          `json:"query_preview"`
	ParsedJSON      json.RawMessage `json:"parsed"`
	DecisionJSON    json.RawMessage `json:"decision"`
	WeatherJSON     json.RawMessage `json:"weather,omitempty"`
	AttractionsJSON json.RawMessage `json:"attractions,omitempty"`
	ItineraryJSON   json.RawMessage `json:"itinerary"`
	Status          string          `json:"status"`
	DurationMs      int64           `json:"duration_ms"`
}

// AuditError is the error detail of a failed request's audit entry.
type AuditError struct {
	Kind       string `json:"kind,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Type       string `json:"type,omitempty"`
	Message    string `json:"message"`
}

// AuditEntry is one line of the append-only request log.
type AuditEntry struct {
	Timestamp    time.Time        `json:"ts"`
	RequestID    string           `json:"request_id"`
	Status       string           `json:"status"`
	DurationMs   int64            `json:"duration_ms"`
	QueryPreview string           `json:"query_preview"`
	Parsed       *TripPreferences `json:"parsed,omitempty"`
	Decision     *Decision        `json:"decision,omitempty"`
	ToolCalls    *[]string        `json:"tool_calls,omitempty"` // set on "ok" entries only, "[]" when no tool ran
	HasWeather   *bool            `json:"has_weather,omitempty"`
	Error        *AuditError      `json:"error,omitempty"`
}
