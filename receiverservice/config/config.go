// --- File: receiverservice/config/config.go ---
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
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// ID strategies for notification identifiers.
const (
	IDStrategySequence = "sequence"
	IDStrategyClock    = "clock"
)

// Registration storage backends.
const (
	StorageFirestore = "firestore"
	StorageMemory    = "memory"
)

// Background hand-off modes.
const (
	BackgroundPubsub = "pubsub"
	BackgroundLocal  = "local"
	BackgroundNone   = "none"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type VapidConfig struct {
	Enabled         bool
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
}

type APNSConfig struct {
	Enabled      bool
	KeyID        string
	TeamID       string
	BundleID     string
	P8KeyContent string
	Sandbox      bool
}

// DisplayConfig controls how local notifications are built.
type DisplayConfig struct {
	ChannelID          string
	ChannelName        string
	ChannelDescription string
	RequireChannels    bool
	Icon               string
	Sound              string
	IDStrategy         string
	FCMRelay           bool
}

type LifecycleConfig struct {
	InitialState     string
	AlwaysBackground bool
}

type BackgroundConfig struct {
	Mode    string
	TopicID string
	Hold    time.Duration
}

// BackendConfig points at the optional backend register-device endpoint.
type BackendConfig struct {
	BaseURL    string
	Path       string
	AuthToken  string
	DeviceType string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int
	IdentityServiceURL     string
	Storage                string

	InstallationID string
	Installation   urn.URN

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Vapid      VapidConfig
	APNS       APNSConfig
	Display    DisplayConfig
	Lifecycle  LifecycleConfig
	Background BackgroundConfig
	Backend    BackendConfig

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
	if val := os.Getenv("INSTALLATION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "INSTALLATION_ID", "source", "env")
		cfg.InstallationID = val
	}
	if val := os.Getenv("STORAGE_BACKEND"); val != "" {
		logger.Debug("Overriding config value", "key", "STORAGE_BACKEND", "source", "env")
		cfg.Storage = val
	}
	if val := os.Getenv("IDENTITY_SERVICE_URL"); val != "" {
		cfg.IdentityServiceURL = val
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

	// VAPID Overrides
	if val := os.Getenv("VAPID_PUBLIC_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PUBLIC_KEY", "source", "env")
		cfg.Vapid.PublicKey = val
	}
	if val := os.Getenv("VAPID_PRIVATE_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PRIVATE_KEY", "source", "env")
		cfg.Vapid.PrivateKey = val
	}
	if val := os.Getenv("VAPID_SUB_EMAIL"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_SUB_EMAIL", "source", "env")
		cfg.Vapid.SubscriberEmail = val
	}

	// APNs Overrides
	if val := os.Getenv("APNS_P8_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_P8_KEY", "source", "env")
		cfg.APNS.P8KeyContent = val
		cfg.APNS.Enabled = true
	}
	if val := os.Getenv("APNS_KEY_ID"); val != "" {
		cfg.APNS.KeyID = val
	}
	if val := os.Getenv("APNS_TEAM_ID"); val != "" {
		cfg.APNS.TeamID = val
	}

	// Host Overrides
	if val := os.Getenv("APP_STATE"); val != "" {
		logger.Debug("Overriding config value", "key", "APP_STATE", "source", "env")
		cfg.Lifecycle.InitialState = val
	}
	if val := os.Getenv("BACKGROUND_MODE"); val != "" {
		logger.Debug("Overriding config value", "key", "BACKGROUND_MODE", "source", "env")
		cfg.Background.Mode = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "BACKEND_URL", "source", "env")
		cfg.Backend.BaseURL = val
	}
	if val := os.Getenv("BACKEND_AUTH_TOKEN"); val != "" {
		cfg.Backend.AuthToken = val
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		var cleanOrigins []string
		for _, o := range strings.Split(corsOrigins, ",") {
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
	if cfg.InstallationID == "" {
		return nil, fmt.Errorf("installation_id is required (set via YAML or INSTALLATION_ID env var)")
	}
	installation, err := urn.Parse(cfg.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("installation_id %q is not a valid URN: %w", cfg.InstallationID, err)
	}
	cfg.Installation = installation

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}

	switch cfg.Storage {
	case "":
		cfg.Storage = StorageFirestore
	case StorageFirestore, StorageMemory:
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}

	switch cfg.Display.IDStrategy {
	case "":
		cfg.Display.IDStrategy = IDStrategySequence
	case IDStrategySequence, IDStrategyClock:
	default:
		return nil, fmt.Errorf("unknown id_strategy %q", cfg.Display.IDStrategy)
	}

	switch cfg.Background.Mode {
	case "":
		cfg.Background.Mode = BackgroundNone
	case BackgroundPubsub:
		if cfg.Background.TopicID == "" {
			return nil, fmt.Errorf("background.topic_id is required when background mode is %q", BackgroundPubsub)
		}
	case BackgroundLocal, BackgroundNone:
	default:
		return nil, fmt.Errorf("unknown background mode %q", cfg.Background.Mode)
	}
	if cfg.Background.Hold <= 0 {
		cfg.Background.Hold = time.Minute
	}

	if cfg.Vapid.PrivateKey != "" && cfg.Vapid.PublicKey != "" {
		cfg.Vapid.Enabled = true
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
