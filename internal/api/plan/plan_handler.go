package plan

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-vacation-agent/internal/api"
	"github.com/FACorreiaa/go-vacation-agent/internal/types"
)

type Handler struct {
	planService Service
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewHandler(planService Service, logger *slog.Logger) *Handler {
	return &Handler{
		planService: planService,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
	}
}

// CreatePlan godoc
// @Summary      Plan a trip from a free-text request
// @Tags         Plans
// @Accept       json
// @Produce      json
// @Param        request body types.PlanRequest true "Trip request"
// @Success      200 {object} types.PlanResponse
// @Failure      404 {object} map[string]any "Destination could not be geocoded"
// @Failure      422 {object} map[string]any "Invalid request"
// @Failure      502 {object} map[string]any "Upstream collaborator failed"
// @Router       /v1/plan [post]
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlanHandler").Start(r.Context(), "CreatePlan", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/v1/plan"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "CreatePlan"))

	var req types.PlanRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "invalid body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		l.WarnContext(ctx, "Request validation failed", slog.Any("error", err))
		span.SetStatus(codes.Error, "validation failed")
		api.ValidationErrorResponse(w, r, err)
		return
	}

	resp, err := h.planService.CreatePlan(ctx, req.Query)
	if err != nil {
		kind, status, message := translateError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		span.SetAttributes(attribute.String("plan.error_kind", string(kind)))
		api.KindErrorResponse(w, r, status, string(kind), message)
		return
	}

	span.SetAttributes(attribute.String("plan.request_id", resp.RequestID))
	span.SetStatus(codes.Ok, "plan created")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// GetPlan godoc
// @Summary      Fetch a stored plan record
// @Tags         Plans
// @Produce      json
// @Param        planID path string true "Plan ID"
// @Success      200 {object} types.PlanRecord
// @Failure      404 {object} map[string]any
// @Router       /v1/plans/{planID} [get]
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlanHandler").Start(r.Context(), "GetPlan", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/v1/plans/{planID}"),
	))
	defer span.End()

	planID := chi.URLParam(r, "planID")
	if planID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "plan id is required")
		return
	}

	rec, err := h.planService.GetPlan(ctx, planID)
	if errors.Is(err, ErrPlanNotFound) {
		api.ErrorResponse(w, r, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to get plan", slog.String("plan_id", planID), slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to get plan")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, rec)
}

// ListPlans godoc
// @Summary      List recent plan records, newest first
// @Tags         Plans
// @Produce      json
// @Param        limit query int false "Maximum records (default 20, max 100)"
// @Success      200 {array} types.PlanRecord
// @Router       /v1/plans [get]
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlanHandler").Start(r.Context(), "ListPlans", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/v1/plans"),
	))
	defer span.End()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			api.ErrorResponse(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	plans, err := h.planService.ListPlans(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list plans", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to list plans")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, plans)
}

// Ready answers 503 while the plan store cannot be reached.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.planService.Ready(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "Readiness check failed", slog.Any("error", err))
		api.WriteJSONResponse(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// translateError is the single place pipeline failures become HTTP statuses.
func translateError(err error) (types.ErrorKind, int, string) {
	pe, ok := types.AsPipelineError(err)
	if !ok || pe.Kind == types.ErrKindInternal {
		return types.ErrKindInternal, http.StatusInternalServerError, types.InternalErrorMessage
	}
	return pe.Kind, types.HTTPStatus(pe.Kind), pe.Message
}
