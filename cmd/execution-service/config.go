package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"execoj/internal/common/cache"
	"execoj/internal/common/db"
	"execoj/internal/common/http/middleware"
	"execoj/internal/common/mq"
	"execoj/internal/common/storage"
	"execoj/internal/execution/executor"
	"execoj/internal/execution/model"
	"execoj/internal/execution/sandbox"
	"execoj/internal/execution/scheduler"
	"execoj/internal/execution/validator"
	"execoj/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultEventTopic      = "execution.events"
	defaultArtifactBucket  = "execoj-artifacts"
	defaultMetricsPrefix   = "execoj"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// KafkaConfig holds Kafka settings. Events are published only when brokers are set.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	ClientID     string        `yaml:"clientID"`
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	RequiredAcks int           `yaml:"requiredAcks"`
	Compression  string        `yaml:"compression"`
	Async        bool          `yaml:"async"`
	Topic        string        `yaml:"topic"`
}

// SandboxConfig selects and configures the isolation strategy.
// In local mode every category runs as a host subprocess; in container mode
// each category follows its profile.
type SandboxConfig struct {
	Mode       string                  `yaml:"mode"`
	DockerHost string                  `yaml:"dockerHost"`
	Local      sandbox.LocalConfig     `yaml:"local"`
	Container  sandbox.ContainerConfig `yaml:"container"`
}

// TestCaseConfig tunes the problem test-case lookup.
type TestCaseConfig struct {
	LookupTimeout time.Duration `yaml:"lookupTimeout"`
	CacheTTL      time.Duration `yaml:"cacheTTL"`
	EmptyTTL      time.Duration `yaml:"emptyTTL"`
}

// CategoryConfig overrides the built-in profile of one category. Unset
// fields keep the default.
type CategoryConfig struct {
	Category      model.Category `yaml:"category"`
	Mode          sandbox.Mode   `yaml:"mode"`
	MinMemoryMB   int            `yaml:"minMemoryMB"`
	MinTimeoutMs  int            `yaml:"minTimeoutMs"`
	Visualization *bool          `yaml:"visualization"`
}

// MetricsConfig controls the Prometheus exposition.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	Disabled  bool   `yaml:"disabled"`
}

// AppConfig holds execution service configuration.
type AppConfig struct {
	Server     ServerConfig               `yaml:"server"`
	Logger     logger.Config              `yaml:"logger"`
	Scheduler  scheduler.Config           `yaml:"scheduler"`
	Validator  validator.Config           `yaml:"validator"`
	Sandbox    SandboxConfig              `yaml:"sandbox"`
	Toolchains []sandbox.Toolchain        `yaml:"toolchains"`
	Categories []CategoryConfig           `yaml:"categories"`
	Profiles   []executor.Profile         `yaml:"-"`
	TestCases  TestCaseConfig             `yaml:"testCases"`
	Metrics    MetricsConfig              `yaml:"metrics"`
	Redis      cache.RedisConfig          `yaml:"redis"`
	Kafka      KafkaConfig                `yaml:"kafka"`
	MySQL      db.MySQLConfig             `yaml:"mysql"`
	MinIO      storage.MinIOConfig        `yaml:"minio"`
	RateLimit  middleware.RateLimitConfig `yaml:"rateLimit"`
	CORS       middleware.CORSConfig      `yaml:"cors"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *AppConfig) applyDefaults() error {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}
	if cfg.Logger.OutputPath == "" {
		cfg.Logger.OutputPath = "stdout"
	}
	if cfg.Logger.ErrorPath == "" {
		cfg.Logger.ErrorPath = "stderr"
	}

	cfg.Scheduler.ApplyDefaults()
	if err := cfg.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}

	mode, err := sandbox.ParseMode(strings.ToLower(strings.TrimSpace(cfg.Sandbox.Mode)))
	if err != nil {
		return err
	}
	cfg.Sandbox.Mode = string(mode)
	profiles, err := mergeProfiles(executor.DefaultProfiles(), cfg.Categories)
	if err != nil {
		return err
	}
	cfg.Profiles = profiles

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = defaultEventTopic
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = defaultArtifactBucket
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = defaultMetricsPrefix
	}
	return nil
}

// mergeProfiles overlays configured category profiles on the defaults by category.
func mergeProfiles(defaults []executor.Profile, overrides []CategoryConfig) ([]executor.Profile, error) {
	byCategory := make(map[model.Category]int, len(defaults))
	out := append([]executor.Profile(nil), defaults...)
	for i, p := range out {
		byCategory[p.Category] = i
	}
	for _, o := range overrides {
		category := model.Category(strings.ToLower(strings.TrimSpace(string(o.Category))))
		if category == "" {
			return nil, fmt.Errorf("category profile without category")
		}
		i, ok := byCategory[category]
		if !ok {
			i = len(out)
			byCategory[category] = i
			out = append(out, executor.Profile{Category: category, Mode: sandbox.ModeContainer, Visualization: true})
		}
		p := out[i]
		if o.Mode != "" {
			mode, err := sandbox.ParseMode(string(o.Mode))
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", category, err)
			}
			p.Mode = mode
		}
		if o.MinMemoryMB > 0 {
			p.MinMemoryMB = o.MinMemoryMB
		}
		if o.MinTimeoutMs > 0 {
			p.MinTimeoutMs = o.MinTimeoutMs
		}
		if o.Visualization != nil {
			p.Visualization = *o.Visualization
		}
		out[i] = p
	}
	return out, nil
}

func (k KafkaConfig) enabled() bool {
	return len(k.Brokers) > 0
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	cfg := mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		WriteTimeout: k.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
		Async:        k.Async,
	}
	cfg.Compression = parseCompression(k.Compression)
	return cfg
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}
