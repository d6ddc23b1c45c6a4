package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-vacation-agent/internal/api/audit"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/itinerary"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/trip"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/weather"
	"github.com/FACorreiaa/go-vacation-agent/internal/types"
)

const (
	queryPreviewLen = 200

	StageParse     = "parse"
	StageWeather   = "weather"
	StageItinerary = "itinerary"

	ToolGeocode  = "geocode"
	ToolForecast = "forecast"

	DefaultListLimit = 20
	MaxListLimit     = 100
)

// MetricsSink receives request, error, latency and tool-call observations.
// Implementations must be safe for concurrent use.
type MetricsSink interface {
	IncRequest(ctx context.Context, status string)
	IncError(ctx context.Context, kind string)
	ObserveRequestDuration(ctx context.Context, status string, d time.Duration)
	ObserveStageDuration(ctx context.Context, stage string, d time.Duration)
	IncToolCall(ctx context.Context, tool string)
}

type TripParser interface {
	Parse(ctx context.Context, query string) (*types.TripPreferences, error)
}

type WeatherFetcher interface {
	Fetch(ctx context.Context, destination string, days int) (*types.WeatherInfo, error)
}

type ItineraryGenerator interface {
	Generate(ctx context.Context, prefs types.TripPreferences, weatherSummary string) ([]string, error)
}

var _ Service = (*ServiceImpl)(nil)

// Service runs the planning pipeline and exposes stored plans.
type Service interface {
	CreatePlan(ctx context.Context, query string) (*types.PlanResponse, error)
	GetPlan(ctx context.Context, id string) (*types.PlanRecord, error)
	ListPlans(ctx context.Context, limit int) ([]types.PlanRecord, error)
	Ready(ctx context.Context) error
}

type Options struct {
	// PersistUpstreamFailures also writes an "error" plan record when a
	// classified upstream failure ends the request.
	PersistUpstreamFailures bool
	CacheTTL                time.Duration
}

type ServiceImpl struct {
	logger    *slog.Logger
	parser    TripParser
	weather   WeatherFetcher
	generator ItineraryGenerator
	repo      Repository
	audit     audit.Logger
	metrics   MetricsSink
	cache     *cache.Cache

	persistUpstreamFailures bool
	now                     func() time.Time
	newID                   func() string
}

func NewServiceImpl(
	parser TripParser,
	weatherFetcher WeatherFetcher,
	generator ItineraryGenerator,
	repo Repository,
	auditLog audit.Logger,
	metrics MetricsSink,
	opts Options,
	logger *slog.Logger,
) *ServiceImpl {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ServiceImpl{
		logger:                  logger,
		parser:                  parser,
		weather:                 weatherFetcher,
		generator:               generator,
		repo:                    repo,
		audit:                   auditLog,
		metrics:                 metrics,
		cache:                   cache.New(ttl, 2*ttl),
		persistUpstreamFailures: opts.PersistUpstreamFailures,
		now:                     func() time.Time { return time.Now().UTC() },
		newID:                   func() string { return uuid.NewString() },
	}
}

// pipelineRun carries what each stage produced so far.
type pipelineRun struct {
	requestID    string
	queryPreview string
	startedAt    time.Time
	prefs        *types.TripPreferences
	decision     *types.Decision
	weather      *types.WeatherInfo
	toolCalls    []string
	itinerary    []string
}

// CreatePlan runs parse, decide, enrich and generate for one query, then
// records the outcome. Cancellation of ctx does not abort a started run.
func (s *ServiceImpl) CreatePlan(ctx context.Context, query string) (*types.PlanResponse, error) {
	ctx = context.WithoutCancel(ctx)
	run := &pipelineRun{
		requestID:    s.newID(),
		queryPreview: types.Preview(query, queryPreviewLen),
		startedAt:    s.now(),
	}

	ctx, span := otel.Tracer("PlanService").Start(ctx, "CreatePlan", trace.WithAttributes(
		attribute.String("plan.request_id", run.requestID),
	))
	defer span.End()

	s.logger.InfoContext(ctx, "Plan request received",
		slog.String("request_id", run.requestID),
		slog.String("query_preview", run.queryPreview))

	resp, err := s.execute(ctx, query, run)
	if err == nil {
		err = s.recordSuccess(ctx, run, resp)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan failed")
		return nil, s.recordFailure(ctx, run, err)
	}

	span.SetStatus(codes.Ok, "plan created")
	return resp, nil
}

func (s *ServiceImpl) execute(ctx context.Context, query string, run *pipelineRun) (resp *types.PlanResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	prefs, err := runStage(ctx, s, StageParse, func(ctx context.Context) (*types.TripPreferences, error) {
		return s.parser.Parse(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	run.prefs = prefs

	decision := trip.DecideActions(*prefs)
	run.decision = &decision

	weatherSummary := weather.Unknown
	if decision.Has(types.ActionGetWeather) && prefs.HasDestination() {
		info, err := runStage(ctx, s, StageWeather, func(ctx context.Context) (*types.WeatherInfo, error) {
			return s.weather.Fetch(ctx, *prefs.Destination, requestedDays(*prefs))
		})
		if err != nil {
			return nil, err
		}
		run.weather = info
		for _, tool := range []string{ToolGeocode, ToolForecast} {
			run.toolCalls = append(run.toolCalls, tool)
			s.metrics.IncToolCall(ctx, tool)
		}
		weatherSummary = weather.Summarize(info, itinerary.EffectiveDays(*prefs))
	}

	days, err := runStage(ctx, s, StageItinerary, func(ctx context.Context) ([]string, error) {
		return s.generator.Generate(ctx, *prefs, weatherSummary)
	})
	if err != nil {
		return nil, err
	}
	run.itinerary = days

	return &types.PlanResponse{
		RequestID: run.requestID,
		Summary:   planSummary(*prefs, len(days)),
		Itinerary: days,
		Parsed:    *prefs,
		Decision:  decision,
		Weather:   run.weather,
	}, nil
}

// runStage times fn under its own span and reports the duration.
func runStage[T any](ctx context.Context, s *ServiceImpl, stage string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := otel.Tracer("PlanService").Start(ctx, stage)
	defer span.End()

	started := time.Now()
	out, err := fn(ctx)
	elapsed := time.Since(started)

	s.metrics.ObserveStageDuration(ctx, stage, elapsed)
	s.logger.DebugContext(ctx, "Stage finished",
		slog.String("stage", stage),
		slog.Duration("duration", elapsed),
		slog.Bool("ok", err == nil))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage+" failed")
	} else {
		span.SetStatus(codes.Ok, stage+" done")
	}
	return out, err
}

func (s *ServiceImpl) recordSuccess(ctx context.Context, run *pipelineRun, resp *types.PlanResponse) error {
	elapsed := s.now().Sub(run.startedAt)

	rec, err := s.buildRecord(run, types.StatusOK, elapsed)
	if err != nil {
		return err
	}
	if err := s.repo.SavePlan(ctx, rec); err != nil {
		return fmt.Errorf("persist plan: %w", err)
	}

	hasWeather := run.weather != nil
	toolCalls := nonNil(run.toolCalls)
	s.appendAudit(ctx, types.AuditEntry{
		Timestamp:    s.now(),
		RequestID:    run.requestID,
		Status:       types.StatusOK,
		DurationMs:   elapsed.Milliseconds(),
		QueryPreview: run.queryPreview,
		Parsed:       run.prefs,
		Decision:     run.decision,
		ToolCalls:    &toolCalls,
		HasWeather:   &hasWeather,
	})

	s.metrics.IncRequest(ctx, types.StatusOK)
	s.metrics.ObserveRequestDuration(ctx, types.StatusOK, elapsed)
	s.logger.InfoContext(ctx, "Plan created",
		slog.String("request_id", run.requestID),
		slog.Int("days", len(resp.Itinerary)),
		slog.Int64("duration_ms", elapsed.Milliseconds()))
	return nil
}

// recordFailure writes the audit entry (and plan record where required) for
// a failed run and returns the error the caller should see.
func (s *ServiceImpl) recordFailure(ctx context.Context, run *pipelineRun, cause error) error {
	elapsed := s.now().Sub(run.startedAt)
	entry := types.AuditEntry{
		Timestamp:    s.now(),
		RequestID:    run.requestID,
		Status:       types.StatusError,
		DurationMs:   elapsed.Milliseconds(),
		QueryPreview: run.queryPreview,
	}

	var returned error
	if pe, ok := types.AsPipelineError(cause); ok && pe.Kind != types.ErrKindInternal {
		entry.Error = &types.AuditError{
			Kind:       string(pe.Kind),
			StatusCode: types.HTTPStatus(pe.Kind),
			Message:    pe.Message,
		}
		s.metrics.IncError(ctx, string(pe.Kind))
		if s.persistUpstreamFailures {
			s.saveFailureRecord(ctx, run, elapsed, false)
		}
		s.logger.WarnContext(ctx, "Plan failed",
			slog.String("request_id", run.requestID),
			slog.String("kind", string(pe.Kind)),
			slog.Any("error", cause))
		returned = pe
	} else {
		entry.Error = &types.AuditError{
			Type:    errorTypeName(cause),
			Message: cause.Error(),
		}
		s.metrics.IncError(ctx, string(types.ErrKindInternal))
		s.saveFailureRecord(ctx, run, elapsed, true)
		s.logger.ErrorContext(ctx, "Plan failed with internal error",
			slog.String("request_id", run.requestID),
			slog.Any("error", cause))
		returned = types.NewPipelineError(types.ErrKindInternal, cause, types.InternalErrorMessage)
	}

	s.appendAudit(ctx, entry)
	s.metrics.IncRequest(ctx, types.StatusError)
	s.metrics.ObserveRequestDuration(ctx, types.StatusError, elapsed)
	return returned
}

// saveFailureRecord persists an "error" record. With blank set the stage
// outputs are dropped and only empty placeholders are stored.
func (s *ServiceImpl) saveFailureRecord(ctx context.Context, run *pipelineRun, elapsed time.Duration, blank bool) {
	if blank {
		run = &pipelineRun{requestID: run.requestID, queryPreview: run.queryPreview, startedAt: run.startedAt}
	}
	rec, err := s.buildRecord(run, types.StatusError, elapsed)
	if err == nil {
		err = s.repo.SavePlan(ctx, rec)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist failed plan",
			slog.String("request_id", run.requestID),
			slog.Any("error", err))
	}
}

func (s *ServiceImpl) buildRecord(run *pipelineRun, status string, elapsed time.Duration) (types.PlanRecord, error) {
	rec := types.PlanRecord{
		ID:            run.requestID,
		CreatedAt:     run.startedAt,
		QueryPreview:  run.queryPreview,
		ParsedJSON:    json.RawMessage("{}"),
		DecisionJSON:  json.RawMessage("{}"),
		ItineraryJSON: json.RawMessage("[]"),
		Status:        status,
		DurationMs:    elapsed.Milliseconds(),
	}

	var err error
	if run.prefs != nil {
		if rec.ParsedJSON, err = json.Marshal(run.prefs); err != nil {
			return rec, fmt.Errorf("marshal preferences: %w", err)
		}
	}
	if run.decision != nil {
		if rec.DecisionJSON, err = json.Marshal(run.decision); err != nil {
			return rec, fmt.Errorf("marshal decision: %w", err)
		}
	}
	if run.weather != nil {
		if rec.WeatherJSON, err = json.Marshal(run.weather); err != nil {
			return rec, fmt.Errorf("marshal weather: %w", err)
		}
	}
	if run.itinerary != nil {
		if rec.ItineraryJSON, err = json.Marshal(run.itinerary); err != nil {
			return rec, fmt.Errorf("marshal itinerary: %w", err)
		}
	}
	return rec, nil
}

func (s *ServiceImpl) appendAudit(ctx context.Context, entry types.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "Failed to write audit entry",
			slog.String("request_id", entry.RequestID),
			slog.Any("error", err))
	}
}

func (s *ServiceImpl) GetPlan(ctx context.Context, id string) (*types.PlanRecord, error) {
	ctx, span := otel.Tracer("PlanService").Start(ctx, "GetPlan", trace.WithAttributes(
		attribute.String("plan.id", id),
	))
	defer span.End()

	if cached, found := s.cache.Get(id); found {
		if rec, ok := cached.(*types.PlanRecord); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return rec, nil
		}
	}

	rec, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrPlanNotFound) {
			s.logger.ErrorContext(ctx, "Repository failed to get plan", slog.String("plan_id", id), slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "get plan failed")
		}
		return nil, err
	}

	s.cache.Set(id, rec, cache.DefaultExpiration)
	span.SetStatus(codes.Ok, "plan retrieved")
	return rec, nil
}

// ListPlans returns the newest records first. limit is clamped to
// [1, MaxListLimit]; zero or less means DefaultListLimit.
func (s *ServiceImpl) ListPlans(ctx context.Context, limit int) ([]types.PlanRecord, error) {
	ctx, span := otel.Tracer("PlanService").Start(ctx, "ListPlans")
	defer span.End()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	span.SetAttributes(attribute.Int("plan.limit", limit))

	plans, err := s.repo.ListPlans(ctx, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to list plans", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "list plans failed")
		return nil, err
	}
	return plans, nil
}

func (s *ServiceImpl) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func requestedDays(prefs types.TripPreferences) int {
	if prefs.Days == nil {
		return 0
	}
	return *prefs.Days
}

func planSummary(prefs types.TripPreferences, days int) string {
	destination := "an open destination"
	if prefs.HasDestination() {
		destination = *prefs.Destination
	}
	return fmt.Sprintf("Planned %d day(s) for %s.", days, destination)
}

// errorTypeName reports the concrete type of the innermost wrapped error.
func errorTypeName(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
