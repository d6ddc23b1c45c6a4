package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/go-vacation-agent/internal/types"
)

// ErrPlanNotFound is returned when no record matches the requested id.
var ErrPlanNotFound = errors.New("plan not found")

// Repository stores one record per planning request.
type Repository interface {
	SavePlan(ctx context.Context, rec types.PlanRecord) error
	GetPlan(ctx context.Context, id string) (*types.PlanRecord, error)
	ListPlans(ctx context.Context, limit int) ([]types.PlanRecord, error)
	Ping(ctx context.Context) error
}

// pgxPool is the part of *pgxpool.Pool the repository needs.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

var _ Repository = (*PostgresRepository)(nil)

type PostgresRepository struct {
	logger *slog.Logger
	pgpool pgxPool
}

func NewPostgresRepository(pool pgxPool, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		logger: logger,
		pgpool: pool,
	}
}

const selectPlanColumns = `
	SELECT id::text, created_at, query_preview,
	       parsed_json::text, decision_json::text,
	       COALESCE(weather_json::text, ''), COALESCE(attractions_json::text, ''),
	       itinerary_json::text, status, duration_ms
	FROM plans`

func (r *PostgresRepository) SavePlan(ctx context.Context, rec types.PlanRecord) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return fmt.Errorf("invalid plan id %q: %w", rec.ID, err)
	}

	query := `
		INSERT INTO plans (
			id, created_at, query_preview,
			parsed_json, decision_json, weather_json,
			attractions_json,
			itinerary_json, status, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pgpool.Exec(ctx, query,
		id, rec.CreatedAt, rec.QueryPreview,
		string(rec.ParsedJSON), string(rec.DecisionJSON), nullableJSON(rec.WeatherJSON),
		nullableJSON(rec.AttractionsJSON),
		string(rec.ItineraryJSON), rec.Status, rec.DurationMs,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert plan", slog.String("plan_id", rec.ID), slog.Any("error", err))
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetPlan(ctx context.Context, id string) (*types.PlanRecord, error) {
	planID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrPlanNotFound
	}

	row := r.pgpool.QueryRow(ctx, selectPlanColumns+` WHERE id = $1`, planID)
	rec, err := scanPlan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) ListPlans(ctx context.Context, limit int) ([]types.PlanRecord, error) {
	rows, err := r.pgpool.Query(ctx, selectPlanColumns+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := make([]types.PlanRecord, 0, limit)
	for rows.Next() {
		rec, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating plans: %w", err)
	}
	return plans, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pgpool.Ping(ctx)
}

// rowScanner is satisfied by pgx.Row, pgx.Rows and *sql.Row(s).
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*types.PlanRecord, error) {
	var (
		rec                                    types.PlanRecord
		parsed, decision, weather, attractions string
		itinerary                              string
		createdAt                              time.Time
	)
	if err := row.Scan(&rec.ID, &createdAt, &rec.QueryPreview,
		&parsed, &decision, &weather, &attractions,
		&itinerary, &rec.Status, &rec.DurationMs); err != nil {
		return nil, err
	}
	rec.CreatedAt = createdAt.UTC()
	rec.ParsedJSON = json.RawMessage(parsed)
	rec.DecisionJSON = json.RawMessage(decision)
	rec.WeatherJSON = optionalJSON(weather)
	rec.AttractionsJSON = optionalJSON(attractions)
	rec.ItineraryJSON = json.RawMessage(itinerary)
	return &rec, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func optionalJSON(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
