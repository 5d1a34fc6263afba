package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-condo-notifier/fanoutservice/config"
)

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		raw := `
project_id: yaml-project
listen_addr: ":9000"
topic_id: yaml-topic
subscription_id: yaml-subscription
subscription_dlq_topic_id: yaml-dlq
num_pipeline_workers: 5
cors:
  allowed_origins: ["http://yaml.com"]
  role: editor
redis:
  enabled: true
  addr: "localhost:6379"
  ttl: 5m
expo:
  access_token: secret
  batch_size: 50
  timeout: 10s
fcm:
  batch_size: 250
fan_out:
  max_concurrent_batches: 4
  prune_invalid_tokens: true
collections:
  users: residents
`
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal([]byte(raw), &yamlCfg))

		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, "yaml-topic", cfg.TopicID)
		assert.Equal(t, "yaml-subscription", cfg.SubscriptionID)
		assert.Equal(t, "yaml-dlq", cfg.SubscriptionDLQTopicID)
		assert.Equal(t, 5, cfg.NumPipelineWorkers)

		assert.Equal(t, []string{"http://yaml.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, middleware.CorsRoleEditor, cfg.CorsConfig.Role)

		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
		assert.Equal(t, "secret", cfg.Expo.AccessToken)
		assert.Equal(t, 50, cfg.Expo.BatchSize)
		assert.Equal(t, 10*time.Second, cfg.Expo.Timeout)
		assert.Equal(t, 250, cfg.FCM.BatchSize)
		assert.Equal(t, 4, cfg.FanOut.MaxConcurrentBatches)
		assert.True(t, cfg.FanOut.PruneInvalidTokens)
		assert.Equal(t, "residents", cfg.Collections.Users)

		assert.NotNil(t, cfg.PubsubConsumerConfig)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:      "minimal-project",
			SubscriptionID: "minimal-sub",
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Equal(t, 0, cfg.NumPipelineWorkers)
		assert.Empty(t, cfg.ListenAddr)
		assert.Zero(t, cfg.Expo.Timeout)
	})

	t.Run("Failure - Bad duration", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:  "p",
			ExpoConfig: config.YamlExpoConfig{Timeout: "soon"},
		}

		_, err := config.NewConfigFromYaml(yamlCfg, logger)

		assert.ErrorContains(t, err, "expo.timeout")
	})
}
