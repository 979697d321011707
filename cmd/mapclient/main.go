package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"starmap/application/commands/bus"
	"starmap/infrastructure/config"
	"starmap/infrastructure/di"
	"starmap/infrastructure/transport/ws"
)

// transportHandle lets the container wire a caller before the WebSocket
// client exists. The session dispatches commands through the client and
// the client hands push frames back to the session, so one side has to
// bind late.
type transportHandle struct {
	client *ws.Client
}

func (t *transportHandle) Call(ctx context.Context, req bus.Request) (json.RawMessage, error) {
	return t.client.Call(ctx, req)
}

func main() {
	configPath := flag.String("config", "starmap.yaml", "path to the configuration file")
	flag.Parse()

	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	handle := &transportHandle{}
	container, err := di.InitializeContainer(cfg, handle)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	logger := container.Logger

	handle.client = ws.NewClient(
		cfg.ServerURL,
		cfg.AuthToken,
		time.Duration(cfg.Tunables.ReconnectBackoffMS)*time.Millisecond,
		container.Session.HandleFrame,
		container.Session.Resync,
		logger.Named("ws"),
	)

	// Run the connection loop in a goroutine
	go func() {
		if err := handle.client.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Connection loop stopped", zap.Error(err))
		}
	}()

	// Pick up configuration edits without a restart
	go func() {
		err := config.Watch(ctx, *configPath, logger.Named("config"), func(next *config.Config) {
			logger.Info("Configuration reloaded; transport settings apply on next reconnect")
		})
		if err != nil && ctx.Err() == nil {
			logger.Warn("Config watcher stopped", zap.Error(err))
		}
	}()

	// Debug listener: metrics and liveness
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(container.Registry, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         cfg.DebugAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting debug listener",
			zap.String("address", cfg.DebugAddress),
			zap.String("environment", cfg.Environment),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Debug listener failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Debug listener shutdown error", zap.Error(err))
	}

	// Clean up resources
	container.Session.Close()
	if err := container.Settings.Close(); err != nil {
		logger.Error("Settings store close error", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Client stopped")
}
