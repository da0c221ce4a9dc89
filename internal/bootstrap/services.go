package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentinel-aoi/aoi-api/config"
	"github.com/sentinel-aoi/aoi-api/internal/adapters/blobstore"
	"github.com/sentinel-aoi/aoi-api/internal/adapters/detector"
	"github.com/sentinel-aoi/aoi-api/internal/adapters/detectrunner"
	"github.com/sentinel-aoi/aoi-api/internal/core"
	"github.com/sentinel-aoi/aoi-api/internal/data"
	"github.com/sentinel-aoi/aoi-api/internal/service"
)

// shutdownWaitTimeout bounds how long shutdown waits for each component.
const shutdownWaitTimeout = 15 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Ingest *service.IngestService
	Status *service.StatusService

	// Shared ports, exposed for the detect runner and tests.
	Queue       core.JobQueue
	Blobs       core.BlobStore
	Inspections core.InspectionRepository
	Detector    core.Detector
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient *redis.Client
	Logger      *slog.Logger
}

// NewServices wires adapters and constructs the application services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	queue, err := buildQueue(cfg, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}

	blobs, err := blobstore.NewFSStore(cfg.Blob.Root, cfg.Blob.Bucket)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("init blob store: %w", err)
	}

	det, err := detector.NewHTTPDetector(detector.HTTPDetectorOptions{URL: cfg.Detector.URL})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("init detector: %w", err)
	}

	inspections := data.NewInspectionRepo(deps.DB)

	ingest, err := service.NewIngestService(service.IngestServiceOptions{
		Blobs:  blobs,
		Queue:  queue,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("init ingest service: %w", err)
	}

	status, err := service.NewStatusService(service.StatusServiceOptions{
		Inspections: inspections,
		Queue:       queue,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("init status service: %w", err)
	}

	return ServiceContainer{
		Ingest:      ingest,
		Status:      status,
		Queue:       queue,
		Blobs:       blobs,
		Inspections: inspections,
		Detector:    det,
	}, nil
}

func buildQueue(cfg *config.AppConfig, redisClient *redis.Client) (core.JobQueue, error) {
	if cfg.Queue.Driver == "memory" {
		return data.NewMemoryQueue(&data.RealTimeProvider{}), nil
	}
	if redisClient == nil {
		return nil, errors.New("redis client is required for the redis queue driver")
	}
	queue, err := data.NewRedisQueue(data.RedisQueueOptions{
		Client:    redisClient,
		Key:       cfg.Queue.Key,
		Retention: cfg.Queue.TaskRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("init redis queue: %w", err)
	}
	return queue, nil
}

// ServiceOrchestrationConfig groups dependencies for running services.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)

	var httpServer *http.Server
	if cfg.Config.IsHTTPServerEnabled() {
		httpServer = StartHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
			ErrCh:    errCh,
		})
	}

	var backgrounds []backgroundServiceHandle
	if cfg.Config.IsDetectRunnerEnabled() {
		done, err := startDetectRunner(serviceCtx, cfg, logger, errCh)
		if err != nil {
			return err
		}
		backgrounds = append(backgrounds, backgroundServiceHandle{name: "detect runner", done: done})
	}

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  httpServer,
		logger:      logger,
		backgrounds: backgrounds,
	})
}

func startDetectRunner(
	ctx context.Context,
	cfg *ServiceOrchestrationConfig,
	logger *slog.Logger,
	errCh chan<- error,
) (<-chan struct{}, error) {
	runner, err := detectrunner.NewRunner(detectrunner.RunnerOptions{
		Logger:             logger,
		Queue:              cfg.Services.Queue,
		Blobs:              cfg.Services.Blobs,
		Detector:           cfg.Services.Detector,
		Inspections:        cfg.Services.Inspections,
		Concurrency:        cfg.Config.Detector.Workers,
		StalenessThreshold: cfg.Config.Detector.StalenessThreshold(),
		TimeLimit:          cfg.Config.Detector.TimeLimit(),
	})
	if err != nil {
		return nil, fmt.Errorf("init detect runner: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := runner.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			select {
			case errCh <- fmt.Errorf("detect runner failed: %w", runErr):
			default:
				logger.Warn("dropping detect runner error", "error", runErr)
			}
		}
	}()
	logger.Info("background service started", "service", "detect runner")
	return done, nil
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
