// Package app wires the gateway's components together.
package app

import (
	"context"
	"fmt"

	"github.com/upb/llm-gateway/config"
	"github.com/upb/llm-gateway/handlers"
	"github.com/upb/llm-gateway/internal/observability"
	"github.com/upb/llm-gateway/repositories/postgres"
	"github.com/upb/llm-gateway/routing"
	"github.com/upb/llm-gateway/services/convert"
	"github.com/upb/llm-gateway/services/kb"
	"github.com/upb/llm-gateway/services/relay"
	"go.uber.org/zap"
)

// Dependencies holds all wired components of the gateway
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Table    *routing.Table
	Engine   *relay.Engine
	Handlers *handlers.Handlers

	repoFactory *postgres.RepositoryFactory
}

// NewDependencies constructs the full dependency graph. Document storage is
// optional: when the database is disabled the relay endpoints still work and
// the knowledge-base routes are simply not registered.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	table, err := routing.Load(cfg.Routing.TablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load routing table: %w", err)
	}
	logger.Info("routing table loaded",
		zap.String("path", cfg.Routing.TablePath),
		zap.Int("models", table.Len()),
		zap.String("default_model", table.DefaultModel()))

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	relayClient := relay.NewClient(logger)
	engine := relay.NewEngine(table, relayClient, metrics, logger)
	chatHandler := handlers.NewChatHandler(engine, table, logger)

	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Table:   table,
		Engine:  engine,
	}

	var healthHandler *handlers.HealthHandler
	var kbHandler *handlers.KBHandler
	if cfg.Database.Enabled {
		factory, err := postgres.NewRepositoryFactory(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := factory.GetDB().InitSchema(ctx); err != nil {
			factory.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		deps.repoFactory = factory

		converter := convert.NewClient(cfg.Converter.BaseURL, cfg.Converter.Timeout, logger)
		kbService := kb.NewService(factory.NewRepositories(), converter, logger)
		kbHandler = handlers.NewKBHandler(kbService, logger)
		healthHandler = handlers.NewHealthHandler(factory.GetDB(), logger)
	} else {
		logger.Info("database disabled, document storage unavailable")
		healthHandler = handlers.NewHealthHandler(nil, logger)
	}

	deps.Handlers = handlers.NewHandlers(chatHandler, kbHandler, healthHandler)
	return deps, nil
}

// Close releases held resources
func (d *Dependencies) Close() error {
	var firstErr error
	if d.repoFactory != nil {
		if err := d.repoFactory.Close(); err != nil {
			firstErr = err
		}
	}
	_ = d.Logger.Sync()
	return firstErr
}
