package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS plans (
    id               TEXT PRIMARY KEY,
    created_at       TEXT NOT NULL,
    query_preview    TEXT NOT NULL,
    parsed_json      TEXT NOT NULL,
    decision_json    TEXT NOT NULL,
    weather_json     TEXT,
    attractions_json TEXT,
    itinerary_json   TEXT NOT NULL,
    status           TEXT NOT NULL,
    duration_ms      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plans_created_at ON plans (created_at);
`

// OpenSQLite opens the embedded store at path in WAL mode and creates the
// plans table if it does not exist yet.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		logger.ErrorContext(ctx, "Failed to initialize sqlite schema", slog.Any("error", err))
		return nil, fmt.Errorf("initialize sqlite schema: %w", err)
	}

	logger.InfoContext(ctx, "SQLite store ready", slog.String("path", path))
	return db, nil
}
