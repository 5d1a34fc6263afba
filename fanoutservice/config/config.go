package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-condo-notifier/internal/fanout"
	"github.com/tinywideclouds/go-condo-notifier/internal/platform/expo"
	"github.com/tinywideclouds/go-condo-notifier/internal/platform/fcm"
	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type ExpoConfig struct {
	URL         string
	AccessToken string
	BatchSize   int
	Timeout     time.Duration
}

type FCMConfig struct {
	BatchSize int
}

type FanOutConfig struct {
	MaxConcurrentBatches int
	PruneInvalidTokens   bool
}

type CollectionsConfig struct {
	Users         string
	Notifications string
	Pending       string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int
	MetricsPath            string

	CorsConfig  middleware.CorsConfig
	Redis       RedisConfig
	Expo        ExpoConfig
	FCM         FCMConfig
	FanOut      FanOutConfig
	Collections CollectionsConfig

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "TOPIC_ID", "source", "env")
		cfg.TopicID = val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// Provider Overrides
	if val := os.Getenv("EXPO_ACCESS_TOKEN"); val != "" {
		logger.Debug("Overriding config value", "key", "EXPO_ACCESS_TOKEN", "source", "env")
		cfg.Expo.AccessToken = val
	}
	if val := os.Getenv("EXPO_PUSH_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "EXPO_PUSH_URL", "source", "env")
		cfg.Expo.URL = val
	}

	// Fan-out Overrides
	if val := os.Getenv("MAX_CONCURRENT_BATCHES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			logger.Debug("Overriding config value", "key", "MAX_CONCURRENT_BATCHES", "source", "env")
			cfg.FanOut.MaxConcurrentBatches = n
		}
	}
	if val := os.Getenv("PRUNE_INVALID_TOKENS"); val != "" {
		prune, _ := strconv.ParseBool(val)
		logger.Debug("Overriding config value", "key", "PRUNE_INVALID_TOKENS", "source", "env")
		cfg.FanOut.PruneInvalidTokens = prune
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if cfg.Expo.BatchSize > expo.MaxBatchSize {
		return nil, fmt.Errorf("expo.batch_size %d exceeds the provider limit of %d", cfg.Expo.BatchSize, expo.MaxBatchSize)
	}
	if cfg.FCM.BatchSize > fcm.MaxBatchSize {
		return nil, fmt.Errorf("fcm.batch_size %d exceeds the provider limit of %d", cfg.FCM.BatchSize, fcm.MaxBatchSize)
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required when redis is enabled")
	}

	applyDefaults(cfg)

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 10 * time.Minute
	}
	if cfg.Expo.URL == "" {
		cfg.Expo.URL = expo.DefaultURL
	}
	if cfg.Expo.BatchSize <= 0 {
		cfg.Expo.BatchSize = expo.MaxBatchSize
	}
	if cfg.Expo.Timeout <= 0 {
		cfg.Expo.Timeout = 30 * time.Second
	}
	if cfg.FCM.BatchSize <= 0 {
		cfg.FCM.BatchSize = fcm.MaxBatchSize
	}
	if cfg.FanOut.MaxConcurrentBatches <= 0 {
		cfg.FanOut.MaxConcurrentBatches = fanout.DefaultMaxConcurrentBatches
	}
	if cfg.Collections.Users == "" {
		cfg.Collections.Users = push.CollectionUsers
	}
	if cfg.Collections.Notifications == "" {
		cfg.Collections.Notifications = push.CollectionNotifications
	}
	if cfg.Collections.Pending == "" {
		cfg.Collections.Pending = push.CollectionPendingNotifications
	}
	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}
}
