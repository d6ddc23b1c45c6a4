package trip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/FACorreiaa/go-vacation-agent/internal/api/llm"
	"github.com/FACorreiaa/go-vacation-agent/internal/types"
)

// rawPreviewLen bounds how much of a bad model reply is echoed in errors.
const rawPreviewLen = 300

var errNotAnObject = errors.New("expected a JSON object")

// Parser turns a free-text request into validated TripPreferences.
type Parser struct {
	llm      llm.Client
	timeout  time.Duration
	validate *validator.Validate
	logger   *slog.Logger
}

func NewParser(client llm.Client, timeout time.Duration, logger *slog.Logger) *Parser {
	return &Parser{
		llm:      client,
		timeout:  timeout,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

func (p *Parser) Parse(ctx context.Context, query string) (*types.TripPreferences, error) {
	prompt := strings.TrimSpace(getTripExtractionPrompt(query))

	text, err := p.llm.Generate(ctx, prompt, p.timeout)
	if err != nil {
		if errors.Is(err, llm.ErrUnreachable) {
			msg := fmt.Sprintf("Cannot reach the language model at %s.", p.llm.Endpoint())
			if h, ok := p.llm.(llm.Hinter); ok {
				msg += " " + h.UnreachableHint()
			}
			return nil, types.NewPipelineError(types.ErrKindUpstreamUnavailable, err, "%s", msg)
		}
		return nil, types.NewPipelineError(types.ErrKindUpstreamCallFailed, err, "LLM call failed: %v", err)
	}
	p.logger.DebugContext(ctx, "Trip extraction reply received", slog.Int("chars", len(text)))

	var fields map[string]any
	if err := json.Unmarshal([]byte(llm.StripCodeFence(text)), &fields); err != nil {
		return nil, types.NewPipelineError(types.ErrKindMalformedLlmOutput, err,
			"LLM returned invalid JSON: %v. Raw output: %s", err, types.Preview(text, rawPreviewLen))
	}

	// A bare null decodes into a nil map; only an object is a preference record.
	if fields == nil {
		return nil, types.NewPipelineError(types.ErrKindSchemaViolation, errNotAnObject,
			"LLM returned invalid JSON (could not parse into schema): %v. Raw output: %s", errNotAnObject, types.Preview(text, rawPreviewLen))
	}

	prefs, err := p.decodePreferences(Normalize(fields))
	if err != nil {
		return nil, types.NewPipelineError(types.ErrKindSchemaViolation, err,
			"LLM returned invalid JSON (could not parse into schema): %v. Raw output: %s", err, types.Preview(text, rawPreviewLen))
	}
	return prefs, nil
}

func (p *Parser) decodePreferences(fields map[string]any) (*types.TripPreferences, error) {
	normalized, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("re-encode normalized fields: %w", err)
	}

	var prefs types.TripPreferences
	if err := json.Unmarshal(normalized, &prefs); err != nil {
		return nil, err
	}
	cleanPreferences(&prefs)

	if err := p.validate.Struct(prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

// cleanPreferences encodes every absent value as nil rather than "".
func cleanPreferences(prefs *types.TripPreferences) {
	prefs.Month = absentIfBlank(prefs.Month)
	prefs.DepartureCity = absentIfBlank(prefs.DepartureCity)
	prefs.Destination = absentIfBlank(prefs.Destination)

	interests := make([]string, 0, len(prefs.Interests))
	for _, i := range prefs.Interests {
		if t := strings.TrimSpace(i); t != "" {
			interests = append(interests, t)
		}
	}
	prefs.Interests = interests
}

func absentIfBlank(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	switch strings.ToLower(t) {
	case "", "null", "unknown":
		return nil
	}
	return &t
}
