package plan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-vacation-agent/config"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/itinerary"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/trip"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/weather"
	"github.com/FACorreiaa/go-vacation-agent/internal/types"
)

// MockLLMClient is a mock implementation of llm.Client
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	args := m.Called(ctx, prompt, timeout)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Endpoint() string { return "http://localhost:11434" }

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SavePlan(ctx context.Context, rec types.PlanRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRepository) GetPlan(ctx context.Context, id string) (*types.PlanRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PlanRecord), args.Error(1)
}

func (m *MockRepository) ListPlans(ctx context.Context, limit int) ([]types.PlanRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.PlanRecord), args.Error(1)
}

func (m *MockRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []types.AuditEntry
}

func (a *recordingAudit) Append(_ context.Context, e types.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

type fakeSink struct {
	mu        sync.Mutex
	requests  map[string]int
	errors    map[string]int
	latencies map[string]int
	stages    map[string]int
	tools     map[string]int
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		requests:  map[string]int{},
		errors:    map[string]int{},
		latencies: map[string]int{},
		stages:    map[string]int{},
		tools:     map[string]int{},
	}
}

func (f *fakeSink) IncRequest(_ context.Context, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[status]++
}

func (f *fakeSink) IncError(_ context.Context, kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[kind]++
}

func (f *fakeSink) ObserveRequestDuration(_ context.Context, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latencies[status]++
}

func (f *fakeSink) ObserveStageDuration(_ context.Context, stage string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages[stage]++
}

func (f *fakeSink) IncToolCall(_ context.Context, tool string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools[tool]++
}

const lisbonQuery = "4 days in Lisbon in May, budget 800, food and culture, from Porto"

const lisbonForecast = `{
  "daily": {
    "time": ["2026-05-01", "2026-05-02", "2026-05-03", "2026-05-04"],
    "temperature_2m_max": [22.1, 23.4, 19.8, 21.0],
    "temperature_2m_min": [14.2, 15.0, 13.1, 13.9],
    "precipitation_sum": [0.0, 0.4, 7.2, 1.1]
  }
}`

type serviceFixture struct {
	svc   *ServiceImpl
	llm   *MockLLMClient
	repo  *MockRepository
	audit *recordingAudit
	sink  *fakeSink
}

func weatherServer(t *testing.T, geocodeBody string) *weather.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geocodeBody))
	})
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4", r.URL.Query().Get("forecast_days"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(lisbonForecast))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return weather.NewClient(config.WeatherConfig{
		GeocodingURL: srv.URL + "/v1/search",
		ForecastURL:  srv.URL + "/v1/forecast",
		Timeout:      time.Second,
		ForecastDays: 4,
	}, srv.Client(), discardLogger())
}

func setupServiceTest(t *testing.T, geocodeBody string, opts Options) *serviceFixture {
	t.Helper()
	client := new(MockLLMClient)
	repo := new(MockRepository)
	auditLog := &recordingAudit{}
	sink := newFakeSink()

	svc := NewServiceImpl(
		trip.NewParser(client, time.Minute, discardLogger()),
		weatherServer(t, geocodeBody),
		itinerary.NewGenerator(client, 2*time.Minute, discardLogger()),
		repo, auditLog, sink, opts, discardLogger(),
	)
	svc.newID = func() string { return "8a6e0804-2bd0-4672-b79d-d97027f9071a" }
	return &serviceFixture{svc: svc, llm: client, repo: repo, audit: auditLog, sink: sink}
}

func isParsePrompt(p string) bool {
	return strings.Contains(p, "You extract structured travel preferences")
}
func isPlanPrompt(p string) bool { return strings.Contains(p, "You are a travel planner") }

func TestServiceImpl_CreatePlan_Lisbon(t *testing.T) {
	ctx := context.Background()
	f := setupServiceTest(t, `{"results":[{"name":"Lisbon","country":"Portugal","latitude":38.72,"longitude":-9.14}]}`, Options{})

	f.llm.On("Generate", mock.Anything, mock.MatchedBy(isParsePrompt), time.Minute).
		Return(`{"days": 4, "month": "May", "budget_eur": 800, "interests": ["food", "culture"], "departure_city": "Porto", "destination": "Lisbon"}`, nil).Once()
	f.llm.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return isPlanPrompt(p) && strings.Contains(p, "2026-05-03: 13.1–19.8°C, rain 7.2mm")
	}), 2*time.Minute).
		Return(`["Day 1: Alfama", "Day 2: Belem", "Day 3: Museums", "Day 4: Time Out Market"]`, nil).Once()

	var saved types.PlanRecord
	f.repo.On("SavePlan", mock.Anything, mock.AnythingOfType("types.PlanRecord")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(types.PlanRecord) }).
		Return(nil).Once()

	resp, err := f.svc.CreatePlan(ctx, lisbonQuery)
	require.NoError(t, err)

	require.NotNil(t, resp.Parsed.Days)
	assert.Equal(t, 4, *resp.Parsed.Days)
	assert.Equal(t, "May", *resp.Parsed.Month)
	assert.Equal(t, 800, *resp.Parsed.BudgetEUR)
	assert.Equal(t, []string{"food", "culture"}, resp.Parsed.Interests)
	assert.Equal(t, "Porto", *resp.Parsed.DepartureCity)
	assert.Equal(t, "Lisbon", *resp.Parsed.Destination)
	assert.Equal(t, []types.ActionTag{types.ActionGetWeather, types.ActionGetAttractions}, resp.Decision.Actions)
	require.NotNil(t, resp.Weather)
	assert.InDelta(t, 38.72, resp.Weather.Latitude, 0.001)
	assert.Len(t, strings.Split(weather.Summarize(resp.Weather, 4), "\n"), 4)
	assert.Len(t, resp.Itinerary, 4)
	assert.Equal(t, "Planned 4 day(s) for Lisbon.", resp.Summary)
	assert.Equal(t, "8a6e0804-2bd0-4672-b79d-d97027f9071a", resp.RequestID)

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, types.StatusOK, entry.Status)
	require.NotNil(t, entry.ToolCalls)
	assert.Equal(t, []string{ToolGeocode, ToolForecast}, *entry.ToolCalls)
	require.NotNil(t, entry.HasWeather)
	assert.True(t, *entry.HasWeather)
	assert.Nil(t, entry.Error)

	assert.Equal(t, types.StatusOK, saved.Status)
	assert.Equal(t, resp.RequestID, saved.ID)
	assert.Equal(t, lisbonQuery, saved.QueryPreview)
	assert.JSONEq(t, `["Day 1: Alfama", "Day 2: Belem", "Day 3: Museums", "Day 4: Time Out Market"]`, string(saved.ItineraryJSON))
	assert.NotEmpty(t, saved.WeatherJSON)

	assert.Equal(t, 1, f.sink.requests[types.StatusOK])
	assert.Equal(t, 1, f.sink.latencies[types.StatusOK])
	assert.Empty(t, f.sink.errors)
	assert.Equal(t, 1, f.sink.stages[StageParse])
	assert.Equal(t, 1, f.sink.stages[StageWeather])
	assert.Equal(t, 1, f.sink.stages[StageItinerary])
	assert.Equal(t, 1, f.sink.tools[ToolGeocode])
	assert.Equal(t, 1, f.sink.tools[ToolForecast])

	f.llm.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestServiceImpl_CreatePlan_Atlantis(t *testing.T) {
	f := setupServiceTest(t, `{"generationtime_ms": 0.4}`, Options{})

	f.llm.On("Generate", mock.Anything, mock.MatchedBy(isParsePrompt), mock.Anything).
		Return(`{"days": 3, "month": "July", "budget_eur": null, "interests": [], "departure_city": null, "destination": "Atlantis"}`, nil).Once()

	_, err := f.svc.CreatePlan(context.Background(), "3 days in Atlantis in July")
	pe, ok := types.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindGeocodingNoResults, pe.Kind)
	assert.Equal(t, "No geocoding results for 'Atlantis'.", pe.Message)

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, types.StatusError, entry.Status)
	require.NotNil(t, entry.Error)
	assert.Equal(t, string(types.ErrKindGeocodingNoResults), entry.Error.Kind)
	assert.Equal(t, http.StatusNotFound, entry.Error.StatusCode)

	f.repo.AssertNotCalled(t, "SavePlan", mock.Anything, mock.Anything)
	f.llm.AssertNumberOfCalls(t, "Generate", 1)
	assert.Equal(t, 1, f.sink.errors[string(types.ErrKindGeocodingNoResults)])
	assert.Equal(t, 1, f.sink.requests[types.StatusError])
	assert.Equal(t, 1, f.sink.latencies[types.StatusError])
	assert.Empty(t, f.sink.tools)
}

func TestServiceImpl_CreatePlan_PersistUpstreamFailures(t *testing.T) {
	f := setupServiceTest(t, `{"results": []}`, Options{PersistUpstreamFailures: true})

	f.llm.On("Generate", mock.Anything, mock.MatchedBy(isParsePrompt), mock.Anything).
		Return(`{"days": 3, "month": "July", "budget_eur": null, "interests": null, "departure_city": null, "destination": "Atlantis"}`, nil).Once()

	var saved types.PlanRecord
	f.repo.On("SavePlan", mock.Anything, mock.AnythingOfType("types.PlanRecord")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(types.PlanRecord) }).
		Return(nil).Once()

	_, err := f.svc.CreatePlan(context.Background(), "3 days in Atlantis in July")
	require.Error(t, err)

	f.repo.AssertExpectations(t)
	assert.Equal(t, types.StatusError, saved.Status)
	assert.Contains(t, string(saved.ParsedJSON), "Atlantis")
	assert.JSONEq(t, `[]`, string(saved.ItineraryJSON))
	assert.Len(t, f.audit.entries, 1)
}

func TestServiceImpl_CreatePlan_NoDestinationSkipsWeather(t *testing.T) {
	f := setupServiceTest(t, `{"results": []}`, Options{})

	f.llm.On("Generate", mock.Anything, mock.MatchedBy(isParsePrompt), mock.Anything).
		Return(`{"days": "2", "interests": "beach"}`, nil).Once()
	f.llm.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return isPlanPrompt(p) && strings.Contains(p, weather.Unknown)
	}), mock.Anything).Return(`{"day1": "Beach", "day2": "Boat trip"}`, nil).Once()
	f.repo.On("SavePlan", mock.Anything, mock.Anything).Return(nil).Once()

	resp, err := f.svc.CreatePlan(context.Background(), "2 days somewhere with a beach")
	require.NoError(t, err)
	assert.Equal(t, []types.ActionTag{types.ActionNeedDestination}, resp.Decision.Actions)
	assert.Nil(t, resp.Weather)
	assert.Equal(t, []string{"Beach", "Boat trip"}, resp.Itinerary)
	assert.Equal(t, "Planned 2 day(s) for an open destination.", resp.Summary)

	require.Len(t, f.audit.entries, 1)
	assert.False(t, *f.audit.entries[0].HasWeather)
	line, err := json.Marshal(f.audit.entries[0])
	require.NoError(t, err)
	assert.Contains(t, string(line), `"tool_calls":[]`)
	assert.Empty(t, f.sink.tools)
	assert.Zero(t, f.sink.stages[StageWeather])
}

func TestServiceImpl_CreatePlan_UnrecognizedFailure(t *testing.T) {
	f := setupServiceTest(t, `{"results": []}`, Options{})

	f.llm.On("Generate", mock.Anything, mock.MatchedBy(isParsePrompt), mock.Anything).
		Return(`{"days": 2, "destination": null}`, nil).Once()
	f.llm.On("Generate", mock.Anything, mock.MatchedBy(isPlanPrompt), mock.Anything).
		Return(`["Day 1", "Day 2"]`, nil).Once()

	dbErr := errors.New("disk I/O error")
	f.repo.On("SavePlan", mock.Anything, mock.MatchedBy(func(rec types.PlanRecord) bool {
		return rec.Status == types.StatusOK
	})).Return(dbErr).Once()

	var failed types.PlanRecord
	f.repo.On("SavePlan", mock.Anything, mock.MatchedBy(func(rec types.PlanRecord) bool {
		return rec.Status == types.StatusError
	})).Run(func(args mock.Arguments) { failed = args.Get(1).(types.PlanRecord) }).Return(nil).Once()

	_, err := f.svc.CreatePlan(context.Background(), "2 days, surprise me")
	pe, ok := types.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindInternal, pe.Kind)
	assert.Equal(t, types.InternalErrorMessage, pe.Message)
	assert.ErrorIs(t, err, dbErr)

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, types.StatusError, entry.Status)
	require.NotNil(t, entry.Error)
	assert.Equal(t, "*errors.errorString", entry.Error.Type)
	assert.Contains(t, entry.Error.Message, "disk I/O error")

	assert.Equal(t, types.StatusError, failed.Status)
	assert.JSONEq(t, `{}`, string(failed.ParsedJSON))
	assert.JSONEq(t, `{}`, string(failed.DecisionJSON))
	assert.Nil(t, failed.WeatherJSON)
	assert.JSONEq(t, `[]`, string(failed.ItineraryJSON))
	assert.Equal(t, 1, f.sink.errors[string(types.ErrKindInternal)])
	f.repo.AssertExpectations(t)
}

func TestServiceImpl_CreatePlan_RecoversPanics(t *testing.T) {
	repo := new(MockRepository)
	auditLog := &recordingAudit{}
	svc := NewServiceImpl(panickingParser{}, nil, nil, repo, auditLog, newFakeSink(), Options{}, discardLogger())
	repo.On("SavePlan", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := svc.CreatePlan(context.Background(), "anything at all")
	pe, ok := types.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindInternal, pe.Kind)
	require.Len(t, auditLog.entries, 1)
	assert.Contains(t, auditLog.entries[0].Error.Message, "boom")
}

type panickingParser struct{}

func (panickingParser) Parse(context.Context, string) (*types.TripPreferences, error) {
	panic("boom")
}

func TestServiceImpl_CreatePlan_QueryPreviewTruncated(t *testing.T) {
	f := setupServiceTest(t, `{"results": []}`, Options{})
	f.llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("dial tcp: connection refused")).Once()

	query := strings.Repeat("á", 250)
	_, err := f.svc.CreatePlan(context.Background(), query)
	require.Error(t, err)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, strings.Repeat("á", 200), f.audit.entries[0].QueryPreview)
}

func TestServiceImpl_CreatePlan_IgnoresCallerCancellation(t *testing.T) {
	f := setupServiceTest(t, `{"results": []}`, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.llm.On("Generate", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), mock.MatchedBy(isParsePrompt), mock.Anything).
		Return(`{"days": 1}`, nil).Once()
	f.llm.On("Generate", mock.Anything, mock.MatchedBy(isPlanPrompt), mock.Anything).
		Return(`["Day 1: Rest"]`, nil).Once()
	f.repo.On("SavePlan", mock.Anything, mock.Anything).Return(nil).Once()

	resp, err := f.svc.CreatePlan(ctx, "one quiet day")
	require.NoError(t, err)
	assert.Equal(t, []string{"Day 1: Rest"}, resp.Itinerary)
}

func TestServiceImpl_GetPlan_Cached(t *testing.T) {
	repo := new(MockRepository)
	svc := NewServiceImpl(nil, nil, nil, repo, &recordingAudit{}, newFakeSink(), Options{CacheTTL: time.Minute}, discardLogger())

	rec := &types.PlanRecord{ID: "p1", Status: types.StatusOK}
	repo.On("GetPlan", mock.Anything, "p1").Return(rec, nil).Once()
	repo.On("GetPlan", mock.Anything, "missing").Return(nil, ErrPlanNotFound).Twice()

	for i := 0; i < 3; i++ {
		got, err := svc.GetPlan(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1", got.ID)
	}
	for i := 0; i < 2; i++ {
		_, err := svc.GetPlan(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrPlanNotFound)
	}
	repo.AssertExpectations(t)
}

func TestServiceImpl_ListPlans_ClampsLimit(t *testing.T) {
	repo := new(MockRepository)
	svc := NewServiceImpl(nil, nil, nil, repo, &recordingAudit{}, newFakeSink(), Options{}, discardLogger())

	repo.On("ListPlans", mock.Anything, DefaultListLimit).Return([]types.PlanRecord{}, nil).Once()
	repo.On("ListPlans", mock.Anything, MaxListLimit).Return([]types.PlanRecord{}, nil).Once()
	repo.On("ListPlans", mock.Anything, 7).Return([]types.PlanRecord{{ID: "a"}}, nil).Once()

	_, err := svc.ListPlans(context.Background(), 0)
	require.NoError(t, err)
	_, err = svc.ListPlans(context.Background(), 5000)
	require.NoError(t, err)
	plans, err := svc.ListPlans(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
	repo.AssertExpectations(t)
}
