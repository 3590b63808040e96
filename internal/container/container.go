package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/application/service"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/worker"
	"github.com/garyjia/expense-reimbursement/internal/interfaces/http"
	"github.com/garyjia/expense-reimbursement/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	db           *database.DB
	repositories service.Repositories
	fileStorage  port.FileStorage
	external     *ExternalBundle
	services     http.Services
	server       *http.Server
	workers      *worker.WorkerManager

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and starts the background workers.
// The HTTP server is built but not listening; run it with Server().Start.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = dbBundle.DB

	if c.repositories, err = ProvideRepositories(dbBundle, c.logger); err != nil {
		return c.abort(fmt.Errorf("failed to initialize repositories: %w", err))
	}

	if c.fileStorage, err = ProvideStorage(&c.config.Storage, c.logger); err != nil {
		return c.abort(fmt.Errorf("failed to initialize storage: %w", err))
	}

	if c.external, err = ProvideExternal(&c.config.OpenAI, &c.config.Lark, c.logger); err != nil {
		return c.abort(fmt.Errorf("failed to initialize external clients: %w", err))
	}

	c.services, err = ProvideServices(&ServiceDeps{
		Repos:    c.repositories,
		Storage:  c.fileStorage,
		External: c.external,
		Config:   c.config,
		Logger:   c.logger,
	})
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize services: %w", err))
	}

	c.server = ProvideServer(c.config, c.services, c.db, c.logger)

	c.workers, err = ProvideWorkers(&WorkerDeps{
		Attachments: c.services.Attachments,
		Backuper:    c.db,
		Config:      c.config,
		Logger:      c.logger,
	})
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize workers: %w", err))
	}
	if err := c.workers.StartAll(ctx); err != nil {
		return c.abort(fmt.Errorf("failed to start workers: %w", err))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully",
		zap.Bool("ocr_enabled", c.external.Recognizer != nil),
		zap.Bool("notifications_enabled", c.external.Notifier != nil))
	return nil
}

// abort releases what Start opened so far
func (c *Container) abort(err error) error {
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
	return err
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop server: %w", err))
		}
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	switch {
	case c.db == nil:
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
	case c.db.Ping() != nil:
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "ping failed"}
	default:
		status.Components["database"] = ComponentHealth{Healthy: true}
	}

	if c.workers != nil {
		status.Components["workers"] = ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()),
		}
	} else {
		status.Components["workers"] = ComponentHealth{Healthy: false, Message: "not initialized"}
	}

	if c.external != nil {
		status.Components["ocr"] = optional(c.external.Recognizer != nil)
		status.Components["notifier"] = optional(c.external.Notifier != nil)
	}

	for name, comp := range status.Components {
		if !comp.Healthy && name != "ocr" && name != "notifier" {
			status.Overall = false
		}
	}
	return status
}

func optional(enabled bool) ComponentHealth {
	if enabled {
		return ComponentHealth{Healthy: true}
	}
	return ComponentHealth{Healthy: false, Message: "disabled"}
}

// Server returns the HTTP server.
func (c *Container) Server() *http.Server {
	return c.server
}

// Services returns all application services.
func (c *Container) Services() http.Services {
	return c.services
}

// Repositories returns all repositories.
func (c *Container) Repositories() service.Repositories {
	return c.repositories
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
