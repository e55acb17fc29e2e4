package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/larspage/orderdesk/internal/api/handlers"
	"github.com/larspage/orderdesk/internal/api/middleware"
	"github.com/larspage/orderdesk/internal/config"
	"github.com/larspage/orderdesk/internal/core"
	"github.com/larspage/orderdesk/internal/db"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := os.Getenv("ORDERDESK_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("ORDERDESK_JWT_SECRET must be set")
	}

	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	orderStore := db.NewOrderStore(conn)
	printerStore := db.NewPrinterStore(conn)
	jobStore := db.NewJobStore(conn)
	userStore := db.NewUserStore(conn)

	clock := core.SystemClock{}
	transports := core.DefaultTransports()

	machine := core.NewStatusMachine(orderStore, clock)
	registry := core.NewRegistry(printerStore, jobStore, transports, clock, cfg.Printers.ConnectionTimeout)
	queue := core.NewQueue(jobStore, printerStore, orderStore, clock, core.QueueConfig{
		MaxAttempts: cfg.Dispatcher.MaxAttempts,
		BackoffBase: cfg.Dispatcher.BackoffBase,
		BackoffCap:  cfg.Dispatcher.BackoffCap,
	})
	dispatcher := core.NewDispatcher(queue, printerStore, orderStore, transports, core.NewTextRenderer(), clock, core.DispatcherConfig{
		SendTimeout:     cfg.Printers.ConnectionTimeout,
		PollInterval:    cfg.Dispatcher.PollInterval,
		StaleClaimAfter: cfg.Dispatcher.StaleClaimAfter,
	})
	coordinator := core.NewCoordinator(machine, registry, queue)

	// Printer lifecycle drives the worker pool: a deleted or disabled
	// printer loses its worker, a new or re-enabled one gets one.
	registry.OnDelete(dispatcher.StopWorker)
	registry.OnEnable(dispatcher.EnsureWorker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	defer dispatcher.Stop()

	registry.StartHealthChecks(cfg.Printers.HealthCheckInterval)
	defer registry.StopHealthChecks()

	auth := middleware.NewAuth(userStore, cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	api := router.Group("/api")
	api.POST("/auth/login", auth.LoginHandler)

	authed := api.Group("")
	authed.Use(auth.RequireAuth())
	authed.POST("/auth/change-password", auth.ChangePasswordHandler)

	// Guest ordering and cancellation work without a token; cancellation
	// falls back to matching the contact info on the order.
	open := api.Group("")
	open.Use(auth.OptionalAuth())

	orderHandler := handlers.NewOrderHandler(machine)
	orderHandler.RegisterRoutes(open, authed)

	printerHandler := handlers.NewPrinterHandler(registry, queue, coordinator)
	printerHandler.RegisterRoutes(authed)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}
