package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chessrelay/internal/admission"
	"chessrelay/internal/config"
	"chessrelay/internal/relay"
	"chessrelay/internal/session"
	"chessrelay/internal/ws"
)

// Application coordinates all system components. Initialization follows
// dependency order: guard and registries first, then the dispatcher that
// routes through them, then the HTTP surface.
type Application struct {
	config     *config.Config
	guard      *admission.Guard
	rooms      *session.Registry
	reaper     *session.Reaper
	registry   *ws.Registry
	dispatcher *relay.Dispatcher
	httpServer *http.Server

	cancelBackground context.CancelFunc
}

// NewApplication wires up all components from the given configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	guard := admission.NewGuard(cfg.Admission.Window, cfg.Admission.Budget)
	rooms := session.NewRegistry(cfg.Rooms.MaxSessions)
	reaper := session.NewReaper(rooms, cfg.Rooms.ReaperInterval, cfg.Rooms.GracePeriod)
	registry := ws.NewRegistry()
	dispatcher := relay.NewDispatcher(registry, rooms)
	handler := ws.NewHandler(registry, guard, dispatcher, cfg.WebSocket)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandleWebSocket)
	mux.HandleFunc("/health", healthHandler(rooms, registry))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		guard:      guard,
		rooms:      rooms,
		reaper:     reaper,
		registry:   registry,
		dispatcher: dispatcher,
		httpServer: httpServer,
	}, nil
}

// Start launches the background sweeps and the HTTP server, returning once
// the server is accepting connections.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting chessrelay on %s", app.httpServer.Addr)

	backgroundCtx, cancel := context.WithCancel(ctx)
	app.cancelBackground = cancel

	go app.guard.Run(backgroundCtx, app.config.Admission.SweepInterval)
	go app.reaper.Run(backgroundCtx)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		cancel()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("chessrelay started")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// Stop shuts down the HTTP server, then the background sweeps.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down chessrelay")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if app.cancelBackground != nil {
		app.cancelBackground()
	}

	log.Printf("chessrelay shutdown complete")
	return nil
}

// healthHandler reports liveness plus the live session and connection
// counts.
func healthHandler(rooms *session.Registry, conns *ws.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"sessions":    rooms.Len(),
			"connections": conns.Len(),
		})
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run keeps main testable: load configuration, start the application, and
// block until a shutdown signal or a fatal error.
func run() error {
	configPath := os.Getenv("CHESSRELAY_CONFIG_FILE")
	cfg := config.LoadConfigWithPrecedence(configPath)

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	appErrCh := make(chan error, 1)
	go func() {
		if err := app.Start(ctx); err != nil {
			appErrCh <- err
		}
	}()

	select {
	case err := <-appErrCh:
		return fmt.Errorf("application error: %w", err)
	case sig := <-signalCh:
		log.Printf("Received signal %v, shutting down gracefully", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		return app.Stop(shutdownCtx)
	}
}
