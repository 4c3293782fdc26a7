package app

import (
	"context"
	"time"

	"github.com/clearwatch/clearwatch/config"
	"github.com/clearwatch/clearwatch/middleware"
	"github.com/clearwatch/clearwatch/services/llm"
	"github.com/clearwatch/clearwatch/services/store"
	"go.uber.org/zap"
)

// Dependencies holds the query API's wired collaborators. This is the
// central dependency injection point; handlers receive it whole.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Store   *store.Store
	Analyst llm.Analyst

	// AuthMiddleware is nil when the API runs without a token secret.
	AuthMiddleware *middleware.AuthMiddleware

	startedAt time.Time
}

// NewDependencies wires the query API dependencies. Nothing here opens
// sockets or files; the store and analyst connect lazily per request.
func NewDependencies(cfg *config.Config, logger *zap.Logger) *Dependencies {
	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Store:     store.NewStore(cfg.Events.Dir, logger),
		startedAt: time.Now(),
	}

	deps.Analyst = llm.NewOllamaClient(llm.OllamaConfig{
		Model:   cfg.Worker.Model,
		BaseURL: cfg.Worker.OllamaURL,
	}, logger)

	if cfg.API.TokenSecret != "" {
		validator := middleware.NewJWTValidator(cfg.API.TokenSecret)
		deps.AuthMiddleware = middleware.NewAuthMiddleware(validator, logger)
		logger.Info("API authentication enabled")
	} else {
		logger.Warn("API token secret not set, running unauthenticated")
	}

	logger.Info("all dependencies initialized successfully")
	return deps
}

// Uptime reports how long the process has been serving.
func (d *Dependencies) Uptime() time.Duration {
	return time.Since(d.startedAt)
}

// Close flushes shutdown-sensitive state.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
	return nil
}
