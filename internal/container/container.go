package container

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-vacation-agent/app/db"
	"github.com/FACorreiaa/go-vacation-agent/config"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/audit"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/itinerary"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/llm"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/plan"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/trip"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/weather"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	SQLite      *sql.DB
	Audit       *audit.FileLogger
	PlanService *plan.ServiceImpl
	PlanHandler *plan.Handler
}

// NewContainer opens the configured plan store and audit log and wires the
// planning pipeline around them.
func NewContainer(ctx context.Context, cfg *config.Config, metrics plan.MetricsSink, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	repo, err := c.openRepository(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Audit, err = audit.NewFileLogger(cfg.Audit.Path, logger)
	if err != nil {
		logger.Error("Failed to open audit log", slog.Any("error", err))
		c.Close()
		return nil, err
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		logger.Error("Failed to initialize language model client", slog.Any("error", err))
		c.Close()
		return nil, err
	}
	logger.Info("Language model client ready",
		slog.String("provider", cfg.LLM.Provider),
		slog.String("endpoint", llmClient.Endpoint()),
		slog.String("model", cfg.LLM.Model))

	weatherClient := weather.NewClient(cfg.Weather, &http.Client{Timeout: cfg.Weather.Timeout + 5*time.Second}, logger)

	c.PlanService = plan.NewServiceImpl(
		trip.NewParser(llmClient, cfg.LLM.ParseTimeout, logger),
		weatherClient,
		itinerary.NewGenerator(llmClient, cfg.LLM.GenerateTimeout, logger),
		repo,
		c.Audit,
		metrics,
		plan.Options{
			PersistUpstreamFailures: cfg.Plan.PersistUpstreamFailures,
			CacheTTL:                cfg.Plan.CacheTTL,
		},
		logger,
	)
	c.PlanHandler = plan.NewHandler(c.PlanService, logger)
	return c, nil
}

func (c *Container) openRepository(ctx context.Context) (plan.Repository, error) {
	switch c.Config.Repositories.Driver {
	case DriverPostgres:
		dbConfig, err := database.NewDatabaseConfig(c.Config, c.Logger)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(dbConfig.ConnectionURL, c.Logger); err != nil {
			return nil, err
		}
		c.Pool, err = database.Init(ctx, dbConfig.ConnectionURL, c.Logger)
		if err != nil {
			return nil, err
		}
		if !database.WaitForDB(ctx, c.Pool, c.Logger) {
			return nil, fmt.Errorf("postgres not reachable at %s:%s", c.Config.Repositories.Postgres.Host, c.Config.Repositories.Postgres.Port)
		}
		return plan.NewPostgresRepository(c.Pool, c.Logger), nil

	case DriverSQLite, "":
		db, err := database.OpenSQLite(ctx, c.Config.Repositories.SQLite.Path, c.Logger)
		if err != nil {
			return nil, err
		}
		c.SQLite = db
		return plan.NewSQLiteRepository(db, c.Logger), nil

	default:
		return nil, fmt.Errorf("unknown repositories.driver %q", c.Config.Repositories.Driver)
	}
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.SQLite != nil {
		if err := c.SQLite.Close(); err != nil {
			c.Logger.Warn("Error closing sqlite store", slog.Any("error", err))
		}
	}
	if c.Audit != nil {
		if err := c.Audit.Close(); err != nil {
			c.Logger.Warn("Error closing audit log", slog.Any("error", err))
		}
	}
}
