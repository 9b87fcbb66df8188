package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"execoj/internal/common/http/middleware"
	"execoj/internal/execution/controller"
	"execoj/internal/execution/observer"
	"execoj/internal/execution/scheduler"
	"execoj/internal/execution/service"
	"execoj/internal/execution/validator"
	appErr "execoj/pkg/errors"
	"execoj/pkg/utils/logger"
	"execoj/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultConfigPath  = "configs/execution_service.yaml"
	healthCheckTimeout = 2 * time.Second
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "execution service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	ctx := context.Background()

	b, err := openBackends(ctx, appCfg)
	defer b.close(ctx)
	if err != nil {
		return err
	}

	var metrics observer.MetricsRecorder = observer.Noop{}
	var prom *observer.PrometheusRecorder
	if !appCfg.Metrics.Disabled {
		prom = observer.NewPrometheusRecorder(appCfg.Metrics.Namespace)
		metrics = prom
	}

	gw, err := buildGateway(appCfg, b, metrics)
	if err != nil {
		return fmt.Errorf("init gateway failed: %w", err)
	}

	sched, err := scheduler.New(appCfg.Scheduler, scheduler.Options{
		Dispatcher: gw,
		Results:    b.resultStore(appCfg.Scheduler.ResultTTL),
		Publisher:  b.eventPublisher(appCfg.Kafka.Topic),
		Archiver:   b.archiver(),
		Metrics:    metrics,
	})
	if err != nil {
		return fmt.Errorf("init scheduler failed: %w", err)
	}

	svc, err := service.New(service.Config{
		Validator:     validator.New(appCfg.Validator),
		Scheduler:     sched,
		TestCases:     b.testCaseStore(appCfg.TestCases),
		LookupTimeout: appCfg.TestCases.LookupTimeout,
	})
	if err != nil {
		return fmt.Errorf("init execution service failed: %w", err)
	}

	sched.Start()

	httpServer := buildHTTPServer(appCfg, svc, prom, metrics, b.healthChecks())
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		_ = sched.Shutdown(ctx)
		return fmt.Errorf("init http listener failed: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "execution http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.String("sandboxMode", appCfg.Sandbox.Mode),
			zap.Int("categories", len(gw.Categories())))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	drainCtx, cancel := context.WithTimeout(ctx, appCfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(drainCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	if err := sched.Shutdown(drainCtx); err != nil {
		logger.Warn(ctx, "scheduler shutdown incomplete", zap.Error(err))
	}
	return nil
}

func buildHTTPServer(cfg *AppConfig, svc controller.ExecutionService, prom *observer.PrometheusRecorder, metrics observer.MetricsRecorder, checks map[string]pinger) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceContextMiddleware())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.CORS))

	router.GET("/healthz", healthHandler(checks))
	if prom != nil {
		router.GET("/metrics", gin.WrapH(prom.Handler()))
	}

	rateCfg := cfg.RateLimit
	rateCfg.OnReject = func(*gin.Context) {
		metrics.ObserveRejection("rate_limited")
	}
	api := router.Group("/api/v1")
	api.Use(middleware.NewRateLimiter(rateCfg).Middleware())
	controller.NewExecutionController(svc).RegisterRoutes(api)

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(checks map[string]pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := make(map[string]string, len(checks))
		var failed []string
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				logger.Warn(ctx, "health check failed", zap.String("backend", name), zap.Error(err))
				status[name] = "down"
				failed = append(failed, name)
				continue
			}
			status[name] = "up"
		}
		if len(failed) > 0 {
			response.Error(c, appErr.New(appErr.ServiceUnavailable).WithDetail("backends", status))
			return
		}
		response.Success(c, gin.H{"status": "ok", "backends": status})
	}
}
