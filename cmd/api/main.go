package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cartkv/cartkv/internal/api"
	"github.com/cartkv/cartkv/internal/cart"
	"github.com/cartkv/cartkv/internal/config"
	"github.com/cartkv/cartkv/internal/log"
	"github.com/cartkv/cartkv/internal/metrics"
	"github.com/cartkv/cartkv/pkg/kv"
	_ "github.com/cartkv/cartkv/pkg/kv/memory"
	_ "github.com/cartkv/cartkv/pkg/kv/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Log("cart-api"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting cart API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"backend", cfg.Store.Backend,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("cart-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Connect the key-value store; an unreachable store is fatal
	store, err := kv.NewStoreFromConfig(cfg.KV())
	if err != nil {
		logger.Fatalw("Failed to connect store", "backend", cfg.Store.Backend, "error", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		logger.Fatalw("Store ping failed", "error", err)
	}
	logger.Infow("Store connection established", "backend", cfg.Store.Backend)

	accessor := cart.New(store,
		cart.WithLogger(logger),
		cart.WithMetrics(metricsObj),
	)

	// Setup API handler and middleware
	handler := api.NewHandler(accessor, logger)
	middleware := api.NewMiddleware(logger, metricsObj)
	router := handler.Routes(middleware, cfg.Security.RateLimitRPM)

	// Add metrics endpoint
	router.Handle("/metrics", metricsHandler)

	// Setup HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
