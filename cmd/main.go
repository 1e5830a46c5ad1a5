package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jmailbox/internal/config"
	"jmailbox/internal/decoder"
	"jmailbox/internal/handlers"
	"jmailbox/internal/logger"
	"jmailbox/internal/metrics"
	"jmailbox/internal/repository"
	"jmailbox/internal/server"
	"jmailbox/internal/service"
	"jmailbox/internal/transport"
)

const (
	connectRetryMin = 1 * time.Second
	connectRetryMax = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	// load configs/config.yml plus JMAILBOX_* overrides
	cfg, err := config.Load("configs", ".")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	reg := metrics.NewRegistry()
	ingestMetrics, err := metrics.NewIngest(reg)
	if err != nil {
		log.Fatalw("failed to register metrics", "err", err)
	}

	adapter, err := transport.New(cfg, log)
	if err != nil {
		log.Fatalw("failed to build transport", "err", err)
	}

	// wire dependencies
	repos := repository.NewRepository(cfg.Fleet.SeriesCapacity)
	services := service.NewService(repos, adapter, service.Options{
		Namespace:     cfg.Fleet.Namespace,
		CameraMarker:  cfg.Fleet.CameraMarker,
		QueueSize:     cfg.Fleet.QueueSize,
		CommandSource: cfg.Fleet.CommandSource,
		QoS:           cfg.MQTT.QoS,
		Thresholds:    service.Thresholds{Online: cfg.Liveness.Online, Offline: cfg.Liveness.Offline},
	}, ingestMetrics, log)
	apiHandler := handlers.NewHandler(services, log.Named("http"), reg).WithStreamInterval(cfg.WebSocket.Interval)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// inbound path: transport callback -> queue -> decode -> reconcile
	adapter.OnMessage(services.Ingest.Handle)
	if err := adapter.Subscribe(decoder.SubscriptionPatterns(cfg.Fleet.Namespace)); err != nil {
		log.Fatalw("failed to register subscriptions", "err", err)
	}
	go services.Ingest.Run(ctx)
	go connectTransport(ctx, adapter, log)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, adapter, log)
}

// connectTransport retries the first connection with exponential backoff.
// Later losses are handled by the client's own reconnect logic.
func connectTransport(ctx context.Context, adapter transport.Adapter, log *logger.Logger) {
	wait := connectRetryMin
	for {
		err := adapter.Connect(ctx)
		if err == nil {
			return
		}
		log.Warnw("transport_connect_failed", "err", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait *= 2
		if wait > connectRetryMax {
			wait = connectRetryMax
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, adapter transport.Adapter, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines and the broker connection
	cancel()
	adapter.Close()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
