package container

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-vacation-agent/config"
)

type nopSink struct{}

func (nopSink) IncRequest(context.Context, string)                            {}
func (nopSink) IncError(context.Context, string)                              {}
func (nopSink) ObserveRequestDuration(context.Context, string, time.Duration) {}
func (nopSink) ObserveStageDuration(context.Context, string, time.Duration)   {}
func (nopSink) IncToolCall(context.Context, string)                           {}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Repositories.Driver = DriverSQLite
	cfg.Repositories.SQLite.Path = filepath.Join(dir, "data", "plans.db")
	cfg.Audit.Path = filepath.Join(dir, "logs", "requests.jsonl")
	cfg.LLM = config.LLMConfig{Provider: "ollama", BaseURL: "http://127.0.0.1:1", Model: "llama3.2",
		ParseTimeout: time.Second, GenerateTimeout: time.Second}
	cfg.Weather = config.WeatherConfig{Timeout: time.Second, ForecastDays: 4}
	return cfg
}

func TestNewContainer_SQLite(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewContainer(context.Background(), testConfig(t), nopSink{}, logger)
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.SQLite)
	assert.Nil(t, c.Pool)
	assert.NotNil(t, c.PlanHandler)
	assert.NoError(t, c.PlanService.Ready(context.Background()))

	plans, err := c.PlanService.ListPlans(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestNewContainer_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Repositories.Driver = "mongo"
	_, err := NewContainer(context.Background(), cfg, nopSink{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "unknown repositories.driver")
}

func TestNewContainer_UnknownLLMProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "openai"
	_, err := NewContainer(context.Background(), cfg, nopSink{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "unknown llm provider")
}
