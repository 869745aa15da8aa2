// --- File: cmd/pushreceiver/main.go ---
package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	firebase "firebase.google.com/go/v4"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-push-receiver/internal/background"
	internaldisplay "github.com/tinywideclouds/go-push-receiver/internal/display"
	"github.com/tinywideclouds/go-push-receiver/internal/platform/apns"
	"github.com/tinywideclouds/go-push-receiver/internal/platform/fcm"
	"github.com/tinywideclouds/go-push-receiver/internal/platform/web"
	"github.com/tinywideclouds/go-push-receiver/internal/receiver"
	"github.com/tinywideclouds/go-push-receiver/internal/registrar"
	"github.com/tinywideclouds/go-push-receiver/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-push-receiver/internal/storage/firestore"
	"github.com/tinywideclouds/go-push-receiver/internal/storage/memory"
	"github.com/tinywideclouds/go-push-receiver/pkg/push"
	"github.com/tinywideclouds/go-push-receiver/pkg/registration"
	"github.com/tinywideclouds/go-push-receiver/receiverservice"
	"github.com/tinywideclouds/go-push-receiver/receiverservice/config"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-push-receiver")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Infrastructure Clients ---
	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("PubSub client failed", "err", err)
		os.Exit(1)
	}
	defer psClient.Close()

	// --- Registration Store (Decorated) ---
	var store registration.Store
	switch cfg.Storage {
	case config.StorageMemory:
		store = memory.NewStore()
		logger.Info("Registration store initialized", "type", "memory")
	default:
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("Firestore client failed", "err", err)
			os.Exit(1)
		}
		defer fsClient.Close()
		store = fsStore.NewFirestoreStore(fsClient)
		logger.Info("Registration store initialized", "type", "firestore")
	}

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		store = cache.NewCachedStore(store, redisClient, cfg.Redis.TTL)
		logger.Info("Registration store upgraded", "type", "redis_cached")
	}

	// --- Display Managers ---
	tray := internaldisplay.NewTray(logger)
	managers := internaldisplay.NewFanout(tray, logger)

	// A. Mobile (FCM)
	if cfg.Display.FCMRelay {
		fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID})
		if err != nil {
			logger.Error("Failed to initialize Firebase App", "err", err)
			os.Exit(1)
		}
		fcmMessaging, err := fbApp.Messaging(ctx)
		if err != nil {
			logger.Error("Failed to create FCM messaging client", "err", err)
			os.Exit(1)
		}
		managers.AddMirror(fcm.NewRelay(fcmMessaging, store, cfg.Installation, logger))
		logger.Info("FCM relay enabled")
	}

	// B. Apple (APNs)
	if cfg.APNS.Enabled {
		apnsDisplay, err := apns.NewDisplay(apns.Config{
			KeyID:        cfg.APNS.KeyID,
			TeamID:       cfg.APNS.TeamID,
			BundleID:     cfg.APNS.BundleID,
			P8KeyContent: cfg.APNS.P8KeyContent,
			Sandbox:      cfg.APNS.Sandbox,
		}, store, cfg.Installation, logger)
		if err != nil {
			logger.Error("Failed to initialize APNs display", "err", err)
			os.Exit(1)
		}
		managers.AddMirror(apnsDisplay)
		logger.Info("APNs display enabled", "bundle_id", cfg.APNS.BundleID)
	}

	// C. Web (VAPID)
	if cfg.Vapid.Enabled {
		managers.AddMirror(web.NewDisplay(web.VapidConfig{
			PublicKey:       cfg.Vapid.PublicKey,
			PrivateKey:      cfg.Vapid.PrivateKey,
			SubscriberEmail: cfg.Vapid.SubscriberEmail,
		}, store, cfg.Installation, logger))
		logger.Info("Web Push display enabled", "public_key", cfg.Vapid.PublicKey)
	} else {
		logger.Warn("VAPID keys missing in configuration. Web Push disabled.")
	}

	// --- Registration Hook ---
	registrars := registrar.Multi{registrar.NewStoreRegistrar(store, cfg.Installation)}
	if cfg.Backend.BaseURL != "" {
		registrars = append(registrars, registrar.NewBackendRegistrar(registrar.BackendConfig{
			BaseURL:    cfg.Backend.BaseURL,
			Path:       cfg.Backend.Path,
			AuthToken:  cfg.Backend.AuthToken,
			DeviceType: cfg.Backend.DeviceType,
		}, logger))
	}

	// --- Host State & Background ---
	appState, lc, err := receiverservice.NewAppState(cfg.Lifecycle, logger)
	if err != nil {
		logger.Error("Lifecycle setup failed", "err", err)
		os.Exit(1)
	}

	var publisher background.Publisher
	if cfg.Background.Mode == config.BackgroundPubsub {
		publisher = background.NewTopicPublisher(psClient, cfg.Background.TopicID)
	}
	bgSignaler, err := receiverservice.NewBackgroundSignaler(cfg.Background, cfg.Installation.String(), publisher, func(ctx context.Context) error {
		logger.Info("Background processing started")
		return nil
	}, logger)
	if err != nil {
		logger.Error("Background setup failed", "err", err)
		os.Exit(1)
	}
	var signaler push.BackgroundSignaler
	if bgSignaler != nil {
		signaler = bgSignaler
	}

	rcv := receiver.New(
		receiverservice.NewPresenter(cfg.Display, managers, logger),
		registrars,
		appState,
		signaler,
		logger,
	)

	// Taps reach the same subscribers as received messages.
	tray.OnTap(rcv.OnNotificationTapped)
	rcv.Subscribe(func(u receiver.Update) {
		if u.Tapped {
			logger.Info("Notification opened", "notification_id", u.NotificationID, "data", u.Message.Data)
		}
	})

	// --- Auth ---
	identityURL := cfg.IdentityServiceURL
	if identityURL == "" {
		identityURL = "http://localhost:3000"
	}
	jwksURL, _ := middleware.DiscoverAndValidateJWTConfig(identityURL, middleware.RSA256, logger)
	authMiddleware, _ := middleware.NewJWKSAuthMiddleware(jwksURL, logger)

	// --- Consumer & Service ---
	consumer, err := newIngestionConsumer(ctx, cfg, psClient, logger)
	if err != nil {
		logger.Error("Consumer creation failed", "err", err)
		os.Exit(1)
	}

	service, err := receiverservice.New(cfg, consumer, rcv, lc, tray, store, authMiddleware, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("Starting service...")
		if err := service.Start(ctx); err != nil {
			logger.Error("Service stopped with error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "err", err)
	}
	if bgSignaler != nil {
		bgSignaler.Wait()
	}
}

func newIngestionConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(cfg.ProjectID, cfg.PubsubConsumerConfig.SubscriptionID, "subscriptions")
	topicID := convertPubsub(cfg.ProjectID, cfg.TopicID, "topics")

	subConfig := &pubsubpb.Subscription{
		Name:                  sub,
		Topic:                 topicID,
		AckDeadlineSeconds:    10,
		EnableMessageOrdering: false,
	}
	if cfg.SubscriptionDLQTopicID != "" {
		subConfig.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     convertPubsub(cfg.ProjectID, cfg.SubscriptionDLQTopicID, "topics"),
			MaxDeliveryAttempts: 5,
		}
	}
	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
		} else {
			logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
			return nil, fmt.Errorf("could not create sub: %s", sub)
		}
	}

	return messagepipeline.NewGooglePubsubConsumer(
		messagepipeline.NewGooglePubsubConsumerDefaults(subConfig.Name), psClient, logger,
	)
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
