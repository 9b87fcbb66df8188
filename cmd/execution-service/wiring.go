package main

import (
	"context"
	"fmt"
	"time"

	"execoj/internal/common/cache"
	"execoj/internal/common/db"
	"execoj/internal/common/mq"
	"execoj/internal/common/storage"
	"execoj/internal/execution/executor"
	"execoj/internal/execution/gateway"
	"execoj/internal/execution/observer"
	"execoj/internal/execution/repository"
	"execoj/internal/execution/sandbox"
	"execoj/internal/execution/scheduler"
	"execoj/pkg/utils/logger"

	"go.uber.org/zap"
)

// backends holds the optional infrastructure clients. A nil field means the
// backend is not configured.
type backends struct {
	redis    *cache.RedisCache
	mysql    *db.MySQL
	producer *mq.KafkaProducer
	objects  *storage.MinIOStorage
	docker   *sandbox.DockerRuntime
	archive  *repository.ArtifactArchive
}

func openBackends(ctx context.Context, cfg *AppConfig) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
		if err != nil {
			return b, fmt.Errorf("init redis failed: %w", err)
		}
		b.redis = redisCache
		logger.Info(ctx, "redis result store enabled", zap.String("addr", cfg.Redis.Addr))
	}
	if cfg.MySQL.DSN != "" {
		mysqlDB, err := db.NewMySQLWithConfig(&cfg.MySQL)
		if err != nil {
			return b, fmt.Errorf("init mysql failed: %w", err)
		}
		b.mysql = mysqlDB
		logger.Info(ctx, "mysql test case store enabled")
	}
	if cfg.Kafka.enabled() {
		producer, err := mq.NewKafkaProducer(cfg.Kafka.toMQConfig())
		if err != nil {
			return b, fmt.Errorf("init kafka failed: %w", err)
		}
		b.producer = producer
		logger.Info(ctx, "kafka event publisher enabled", zap.String("topic", cfg.Kafka.Topic))
	}
	if cfg.MinIO.Endpoint != "" {
		objects, err := storage.NewMinIOStorage(cfg.MinIO)
		if err != nil {
			return b, fmt.Errorf("init minio failed: %w", err)
		}
		b.objects = objects
		archive, err := repository.NewArtifactArchive(objects, cfg.MinIO.Bucket)
		if err != nil {
			return b, fmt.Errorf("init artifact archive failed: %w", err)
		}
		b.archive = archive
		if err := archive.Init(ctx); err != nil {
			return b, fmt.Errorf("init artifact bucket failed: %w", err)
		}
		logger.Info(ctx, "artifact archive enabled", zap.String("bucket", cfg.MinIO.Bucket))
	}
	if sandbox.Mode(cfg.Sandbox.Mode) == sandbox.ModeContainer {
		runtime, err := sandbox.NewDockerRuntime(cfg.Sandbox.DockerHost)
		if err != nil {
			return b, fmt.Errorf("init docker runtime failed: %w", err)
		}
		b.docker = runtime
		if err := runtime.Ping(ctx); err != nil {
			return b, fmt.Errorf("ping docker failed: %w", err)
		}
		logger.Info(ctx, "container sandbox enabled", zap.String("dockerHost", cfg.Sandbox.DockerHost))
	}
	return b, nil
}

func (b *backends) close(ctx context.Context) {
	if b.archive != nil {
		_ = b.archive.Close()
	}
	if b.producer != nil {
		if err := b.producer.Close(); err != nil {
			logger.Warn(ctx, "close kafka producer failed", zap.Error(err))
		}
	}
	if b.mysql != nil {
		_ = b.mysql.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.docker != nil {
		_ = b.docker.Close()
	}
}

// healthChecks lists every configured backend that can be pinged.
func (b *backends) healthChecks() map[string]pinger {
	checks := make(map[string]pinger)
	if b.redis != nil {
		checks["redis"] = b.redis
	}
	if b.mysql != nil {
		checks["mysql"] = b.mysql
	}
	if b.docker != nil {
		checks["docker"] = b.docker
	}
	return checks
}

func (b *backends) resultStore(ttl time.Duration) scheduler.ResultStore {
	if b.redis != nil {
		return repository.NewRedisResultStore(b.redis, ttl)
	}
	return repository.NewMemoryResultStore()
}

func (b *backends) eventPublisher(topic string) scheduler.EventPublisher {
	if b.producer == nil {
		return nil
	}
	return repository.NewMQEventPublisher(b.producer, topic)
}

func (b *backends) archiver() scheduler.Archiver {
	if b.archive == nil {
		return nil
	}
	return b.archive
}

func (b *backends) testCaseStore(cfg TestCaseConfig) repository.TestCaseStore {
	if b.mysql == nil {
		return nil
	}
	var cacheClient cache.Cache
	if b.redis != nil {
		cacheClient = b.redis
	}
	return repository.NewMySQLTestCaseStore(b.mysql, cacheClient, cfg.CacheTTL, cfg.EmptyTTL)
}

// buildGateway registers one executor per category profile. In local mode
// every profile is forced onto the subprocess sandbox.
func buildGateway(cfg *AppConfig, b *backends, metrics observer.MetricsRecorder) (*gateway.Gateway, error) {
	toolchains := sandbox.NewToolchains(cfg.Toolchains)
	if err := toolchains.Validate(); err != nil {
		return nil, err
	}
	factories := map[sandbox.Mode]sandbox.Factory{
		sandbox.ModeLocal: sandbox.NewLocalFactory(cfg.Sandbox.Local, toolchains),
	}
	if b.docker != nil {
		factories[sandbox.ModeContainer] = sandbox.NewContainerFactory(b.docker, cfg.Sandbox.Container, toolchains)
	}

	gw := gateway.New(metrics)
	for _, profile := range cfg.Profiles {
		mode := profile.Mode
		if sandbox.Mode(cfg.Sandbox.Mode) == sandbox.ModeLocal {
			mode = sandbox.ModeLocal
		}
		factory, ok := factories[mode]
		if !ok {
			return nil, fmt.Errorf("category %s: no %s sandbox available", profile.Category, mode)
		}
		gw.Register(profile.Category, executor.New(executor.Config{
			Profile:    profile,
			Factory:    factory,
			Visualizer: executor.VisualizerFor(profile.Category),
			Metrics:    metrics,
		}))
	}
	return gw, nil
}
