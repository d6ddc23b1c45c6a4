package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/go-vacation-agent/internal/types"
)

var _ Repository = (*SQLiteRepository)(nil)

// Fixed-width so lexical order matches chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository keeps plans in a local database file.
type SQLiteRepository struct {
	logger *slog.Logger
	db     *sql.DB
}

func NewSQLiteRepository(db *sql.DB, logger *slog.Logger) *SQLiteRepository {
	return &SQLiteRepository{logger: logger, db: db}
}

const selectSQLitePlanColumns = `
	SELECT id, created_at, query_preview, parsed_json, decision_json,
	       COALESCE(weather_json, ''), COALESCE(attractions_json, ''),
	       itinerary_json, status, duration_ms
	FROM plans`

func (r *SQLiteRepository) SavePlan(ctx context.Context, rec types.PlanRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO plans (
			id, created_at, query_preview,
			parsed_json, decision_json, weather_json,
			attractions_json,
			itinerary_json, status, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UTC().Format(sqliteTimeLayout), rec.QueryPreview,
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

func (r *SQLiteRepository) GetPlan(ctx context.Context, id string) (*types.PlanRecord, error) {
	row := r.db.QueryRowContext(ctx, selectSQLitePlanColumns+` WHERE id = ?`, id)
	rec, err := scanSQLitePlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) ListPlans(ctx context.Context, limit int) ([]types.PlanRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectSQLitePlanColumns+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := make([]types.PlanRecord, 0, limit)
	for rows.Next() {
		rec, err := scanSQLitePlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, *rec)
	}
	return plans, rows.Err()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanSQLitePlan(row rowScanner) (*types.PlanRecord, error) {
	var (
		rec                                    types.PlanRecord
		createdAt                              string
		parsed, decision, weather, attractions string
		itinerary                              string
	)
	if err := row.Scan(&rec.ID, &createdAt, &rec.QueryPreview,
		&parsed, &decision, &weather, &attractions,
		&itinerary, &rec.Status, &rec.DurationMs); err != nil {
		return nil, err
	}
	ts, err := time.Parse(sqliteTimeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	rec.CreatedAt = ts
	rec.ParsedJSON = []byte(parsed)
	rec.DecisionJSON = []byte(decision)
	rec.WeatherJSON = optionalJSON(weather)
	rec.AttractionsJSON = optionalJSON(attractions)
	rec.ItineraryJSON = []byte(itinerary)
	return &rec, nil
}
