/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the envelope ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment (flags override)
  2. Initialize logging
  3. Initialize SQLite store
  4. Build the budget engine (with read cache)
  5. Configure HTTP router and start the overdue watcher
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database
  -demo    Scenario to load at startup (implies LOAD_DEMO)

ENVIRONMENT:
  See config/config.go. PORT, DB_PATH, LOG_LEVEL, APP_ENV, CURRENCY,
  BACK_UP_INITIAL, FREE_FUND_INITIAL, PAY_DAY, CACHE_TTL, WATCH_INTERVAL,
  AUTO_SETTLE, CORS_ORIGINS, LOAD_DEMO.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the watcher
  4. Close database connection

EXAMPLES:
  # Run with file database
  DB_PATH=./data/envelope.db ./server

  # Run in memory with demo data
  ./server -db=":memory:" -demo=mid-period

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/envelope-ledger/api"
	"github.com/warp/envelope-ledger/budget"
	"github.com/warp/envelope-ledger/config"
	"github.com/warp/envelope-ledger/logging"
	"github.com/warp/envelope-ledger/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	demo := flag.String("demo", "", "demo scenario to load at startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger := logging.Init("envelope-ledger", cfg.LogLevel, cfg.AppEnv)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	engine := budget.NewEngine(store, budget.EngineConfig{
		Balances: cfg.Balances(),
		PayDay:   cfg.PayDay,
		CacheTTL: cfg.CacheTTL,
		Logger:   logger,
	})

	handler := api.NewHandler(engine, cfg.Currency)
	handler.Pinger = store
	if cfg.AppEnv == "development" || cfg.LoadDemo || *demo != "" {
		handler.Resetter = store
	}
	if *demo != "" {
		if err := handler.LoadScenarioByID(context.Background(), *demo); err != nil {
			return fmt.Errorf("load demo %s: %w", *demo, err)
		}
		logger.Info("demo scenario loaded", "scenario", *demo)
	}

	router := api.NewRouter(handler, cfg.CORSOrigins, logger)

	watcher := api.NewOverdueWatcher(engine, cfg.WatchInterval, cfg.AutoSettle, logger)
	watcher.Start()
	defer watcher.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", cfg.DBPath, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
