package itinerary

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/FACorreiaa/go-vacation-agent/internal/api/llm"
	"github.com/FACorreiaa/go-vacation-agent/internal/types"
)

const (
	// DefaultDays is the trip length used when none was requested.
	DefaultDays   = 4
	rawPreviewLen = 300
)

// Generator asks the language model for a per-day plan.
type Generator struct {
	llm     llm.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewGenerator(client llm.Client, timeout time.Duration, logger *slog.Logger) *Generator {
	return &Generator{llm: client, timeout: timeout, logger: logger}
}

// EffectiveDays returns the requested day count or DefaultDays.
func EffectiveDays(prefs types.TripPreferences) int {
	if prefs.Days != nil && *prefs.Days > 0 {
		return *prefs.Days
	}
	return DefaultDays
}

// Generate returns exactly EffectiveDays(prefs) day descriptions.
func (g *Generator) Generate(ctx context.Context, prefs types.TripPreferences, weatherSummary string) ([]string, error) {
	days := EffectiveDays(prefs)
	prompt := strings.TrimSpace(getItineraryPrompt(prefs, days, weatherSummary))

	text, err := g.llm.Generate(ctx, prompt, g.timeout)
	if err != nil {
		return nil, types.NewPipelineError(types.ErrKindUpstreamCallFailed, err, "LLM itinerary call failed: %v", err)
	}

	shape, err := decodeItinerary([]byte(llm.StripCodeFence(text)))
	if err != nil {
		return nil, types.NewPipelineError(types.ErrKindMalformedItinerary, err,
			"LLM returned an itinerary in an unexpected format: %v. Raw output: %s", err, types.Preview(text, rawPreviewLen))
	}

	if len(shape.days) != days {
		g.logger.DebugContext(ctx, "Adjusting itinerary length",
			slog.Int("returned", len(shape.days)),
			slog.Int("requested", days))
	}
	return fitToDays(shape.days, days), nil
}
