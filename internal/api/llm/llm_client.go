package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/FACorreiaa/go-vacation-agent/config"
)

// ErrUnreachable marks a failure to connect to the model endpoint at all.
var ErrUnreachable = errors.New("language model endpoint unreachable")

// Client is a single-shot text completion collaborator.
type Client interface {
	// Generate sends prompt and returns the raw completion text. The call is
	// abandoned after timeout.
	Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error)
	// Endpoint names where the client sends requests, for error messages.
	Endpoint() string
}

// Hinter is implemented by clients that can tell an operator how to bring
// their endpoint up.
type Hinter interface {
	UnreachableHint() string
}

// NewClient returns the client selected by cfg.Provider.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaClient(cfg.BaseURL, cfg.Model, nil), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// classifyTransportError wraps dial failures with ErrUnreachable. Deadline
// expiry stays a plain call failure.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return err
}

// StripCodeFence removes a ```json ... ``` wrapper some models put around
// their JSON replies.
func StripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
