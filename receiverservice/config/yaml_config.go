// --- File: receiverservice/config/yaml_config.go ---
package config

import (
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
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	Enabled    bool   `yaml:"enabled"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type YamlVapidConfig struct {
	PublicKey       string `yaml:"public_key"`
	PrivateKey      string `yaml:"private_key"`
	SubscriberEmail string `yaml:"subscriber_email"`
}

type YamlAPNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	KeyID    string `yaml:"key_id"`
	TeamID   string `yaml:"team_id"`
	BundleID string `yaml:"bundle_id"`
	Sandbox  bool   `yaml:"sandbox"`
}

type YamlDisplayConfig struct {
	ChannelID          string `yaml:"channel_id"`
	ChannelName        string `yaml:"channel_name"`
	ChannelDescription string `yaml:"channel_description"`
	RequireChannels    bool   `yaml:"require_channels"`
	Icon               string `yaml:"icon"`
	Sound              string `yaml:"sound"`
	IDStrategy         string `yaml:"id_strategy"`
	FCMRelay           bool   `yaml:"fcm_relay"`
}

type YamlLifecycleConfig struct {
	InitialState     string `yaml:"initial_state"`
	AlwaysBackground bool   `yaml:"always_background"`
}

type YamlBackgroundConfig struct {
	Mode        string `yaml:"mode"`
	TopicID     string `yaml:"topic_id"`
	HoldSeconds int    `yaml:"hold_seconds"`
}

type YamlBackendConfig struct {
	BaseURL    string `yaml:"base_url"`
	Path       string `yaml:"path"`
	DeviceType string `yaml:"device_type"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string               `yaml:"project_id"`
	ListenAddr             string               `yaml:"listen_addr"`
	TopicID                string               `yaml:"topic_id"`
	SubscriptionID         string               `yaml:"subscription_id"`
	SubscriptionDLQTopicID string               `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int                  `yaml:"num_pipeline_workers"`
	IdentityServiceURL     string               `yaml:"identity_service_url"`
	InstallationID         string               `yaml:"installation_id"`
	Storage                string               `yaml:"storage"`
	CorsConfig             YamlCorsConfig       `yaml:"cors"`
	RedisConfig            YamlRedisConfig      `yaml:"redis"`
	VapidConfig            YamlVapidConfig      `yaml:"vapid"`
	APNSConfig             YamlAPNSConfig       `yaml:"apns"`
	DisplayConfig          YamlDisplayConfig    `yaml:"display"`
	LifecycleConfig        YamlLifecycleConfig  `yaml:"lifecycle"`
	BackgroundConfig       YamlBackgroundConfig `yaml:"background"`
	BackendConfig          YamlBackendConfig    `yaml:"backend"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:          baseCfg.ProjectID,
		ListenAddr:         baseCfg.ListenAddr,
		TopicID:            baseCfg.TopicID,
		SubscriptionID:     baseCfg.SubscriptionID,
		IdentityServiceURL: baseCfg.IdentityServiceURL,
		InstallationID:     baseCfg.InstallationID,
		Storage:            baseCfg.Storage,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			TTL:      time.Duration(baseCfg.RedisConfig.TTLSeconds) * time.Second,
		},
		Vapid: VapidConfig{
			PublicKey:       baseCfg.VapidConfig.PublicKey,
			PrivateKey:      baseCfg.VapidConfig.PrivateKey,
			SubscriberEmail: baseCfg.VapidConfig.SubscriberEmail,
		},
		APNS: APNSConfig{
			Enabled:  baseCfg.APNSConfig.Enabled,
			KeyID:    baseCfg.APNSConfig.KeyID,
			TeamID:   baseCfg.APNSConfig.TeamID,
			BundleID: baseCfg.APNSConfig.BundleID,
			Sandbox:  baseCfg.APNSConfig.Sandbox,
		},
		Display: DisplayConfig{
			ChannelID:          baseCfg.DisplayConfig.ChannelID,
			ChannelName:        baseCfg.DisplayConfig.ChannelName,
			ChannelDescription: baseCfg.DisplayConfig.ChannelDescription,
			RequireChannels:    baseCfg.DisplayConfig.RequireChannels,
			Icon:               baseCfg.DisplayConfig.Icon,
			Sound:              baseCfg.DisplayConfig.Sound,
			IDStrategy:         baseCfg.DisplayConfig.IDStrategy,
			FCMRelay:           baseCfg.DisplayConfig.FCMRelay,
		},
		Lifecycle: LifecycleConfig{
			InitialState:     baseCfg.LifecycleConfig.InitialState,
			AlwaysBackground: baseCfg.LifecycleConfig.AlwaysBackground,
		},
		Background: BackgroundConfig{
			Mode:    baseCfg.BackgroundConfig.Mode,
			TopicID: baseCfg.BackgroundConfig.TopicID,
			Hold:    time.Duration(baseCfg.BackgroundConfig.HoldSeconds) * time.Second,
		},
		Backend: BackendConfig{
			BaseURL:    baseCfg.BackendConfig.BaseURL,
			Path:       baseCfg.BackendConfig.Path,
			DeviceType: baseCfg.BackendConfig.DeviceType,
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
		"installation_id", cfg.InstallationID,
	)

	return cfg, nil
}
