// --- File: receiverservice/service.go ---
package receiverservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-push-receiver/internal/api"
	"github.com/tinywideclouds/go-push-receiver/internal/pipeline"
	"github.com/tinywideclouds/go-push-receiver/pkg/push"
	"github.com/tinywideclouds/go-push-receiver/pkg/registration"
	"github.com/tinywideclouds/go-push-receiver/receiverservice/config"
)

// Receiver is the event handler plus the bits the HTTP surface reads.
type Receiver interface {
	push.EventHandler
	api.StatsSource
	api.UpdateSource
	// Wait drains fire-and-forget work.
	Wait()
}

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[pipeline.Event]
	receiver        Receiver
	logger          *slog.Logger
}

// New assembles the service: the Pub/Sub pipeline feeding the receiver, and
// the HTTP API for the host runtime. lc may be nil when the app state is not
// host-reported.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	receiver Receiver,
	lc api.StateSetter,
	inbox api.Inbox,
	store registration.Store,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Processor
	processor := pipeline.NewProcessor(receiver, logger)

	// 3. Pipeline
	streamingService, err := messagepipeline.NewStreamingService[pipeline.Event](
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.EventTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// 4. API
	receiverAPI := api.NewReceiverAPI(receiver, lc, receiver, logger)
	deviceAPI := api.NewDeviceAPI(store, cfg.Installation, logger)
	inboxAPI := api.NewInboxAPI(inbox, logger)
	updatesAPI := api.NewUpdatesAPI(receiver, logger)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	// Host runtime
	handle("PUT /api/v1/lifecycle", receiverAPI.SetLifecycle)
	handle("POST /api/v1/token", receiverAPI.RefreshToken)
	handle("POST /api/v1/messages", receiverAPI.ReceiveMessage)
	handle("GET /api/v1/stats", receiverAPI.GetStats)
	handle("GET /api/v1/updates", updatesAPI.Stream)

	// Extra delivery surfaces
	handle("POST /api/v1/register/apns", deviceAPI.RegisterAPNS)
	handle("POST /api/v1/register/web", deviceAPI.RegisterWeb)
	handle("POST /api/v1/unregister/apns", deviceAPI.UnregisterAPNS)
	handle("POST /api/v1/unregister/web", deviceAPI.UnregisterWeb)

	// Tray
	handle("GET /api/v1/notifications", inboxAPI.List)
	handle("POST /api/v1/notifications/{id}/tap", inboxAPI.Tap)
	handle("DELETE /api/v1/notifications/{id}", inboxAPI.Dismiss)

	// Global OPTIONS for the API namespace (CORS preflight)
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		receiver:        receiver,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.receiver.Wait()
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
