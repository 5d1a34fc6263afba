package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
	TTL      string `yaml:"ttl"`
}

type YamlExpoConfig struct {
	URL         string `yaml:"url"`
	AccessToken string `yaml:"access_token"`
	BatchSize   int    `yaml:"batch_size"`
	Timeout     string `yaml:"timeout"`
}

type YamlFCMConfig struct {
	BatchSize int `yaml:"batch_size"`
}

type YamlFanOutConfig struct {
	MaxConcurrentBatches int  `yaml:"max_concurrent_batches"`
	PruneInvalidTokens   bool `yaml:"prune_invalid_tokens"`
}

type YamlCollectionsConfig struct {
	Users         string `yaml:"users"`
	Notifications string `yaml:"notifications"`
	Pending       string `yaml:"pending_notifications"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string                `yaml:"project_id"`
	ListenAddr             string                `yaml:"listen_addr"`
	TopicID                string                `yaml:"topic_id"`
	SubscriptionID         string                `yaml:"subscription_id"`
	SubscriptionDLQTopicID string                `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int                   `yaml:"num_pipeline_workers"`
	MetricsPath            string                `yaml:"metrics_path"`
	CorsConfig             YamlCorsConfig        `yaml:"cors"`
	RedisConfig            YamlRedisConfig       `yaml:"redis"`
	ExpoConfig             YamlExpoConfig        `yaml:"expo"`
	FCMConfig              YamlFCMConfig         `yaml:"fcm"`
	FanOutConfig           YamlFanOutConfig      `yaml:"fan_out"`
	Collections            YamlCollectionsConfig `yaml:"collections"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	redisTTL, err := parseDuration("redis.ttl", baseCfg.RedisConfig.TTL)
	if err != nil {
		return nil, err
	}
	expoTimeout, err := parseDuration("expo.timeout", baseCfg.ExpoConfig.Timeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ProjectID:      baseCfg.ProjectID,
		ListenAddr:     baseCfg.ListenAddr,
		TopicID:        baseCfg.TopicID,
		SubscriptionID: baseCfg.SubscriptionID,
		MetricsPath:    baseCfg.MetricsPath,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			TTL:      redisTTL,
		},
		Expo: ExpoConfig{
			URL:         baseCfg.ExpoConfig.URL,
			AccessToken: baseCfg.ExpoConfig.AccessToken,
			BatchSize:   baseCfg.ExpoConfig.BatchSize,
			Timeout:     expoTimeout,
		},
		FCM: FCMConfig{
			BatchSize: baseCfg.FCMConfig.BatchSize,
		},
		FanOut: FanOutConfig{
			MaxConcurrentBatches: baseCfg.FanOutConfig.MaxConcurrentBatches,
			PruneInvalidTokens:   baseCfg.FanOutConfig.PruneInvalidTokens,
		},
		Collections: CollectionsConfig{
			Users:         baseCfg.Collections.Users,
			Notifications: baseCfg.Collections.Notifications,
			Pending:       baseCfg.Collections.Pending,
		},
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
	)

	return cfg, nil
}

// parseDuration treats an empty value as unset.
func parseDuration(key, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
