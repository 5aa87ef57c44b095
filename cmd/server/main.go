/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the savings-cooperative ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and the optional .env overlay
  2. Open the SQLite store (retries with backoff if the file is locked)
  3. Create the ledger engine over the store
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  --address / -a   Listen address (default: localhost:8080), env RUN_ADDRESS
  --db / -d        SQLite database path (default: caisse.db), env DATABASE_PATH
                   Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server --db="./data/caisse.db"

  # Run with in-memory database
  ./server --db=":memory:"

  # Run on a different address
  ./server --address="0.0.0.0:3000"

SEE ALSO:
  - config.go: Flag and environment parsing
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/splane2030/SplaneDev/api"
	"github.com/splane2030/SplaneDev/ledger"
	"github.com/splane2030/SplaneDev/store/sqlite"
)

func main() {
	// Configuration: defaults, then .env, then environment, then flags
	cfg := NewConfig()
	if err := cfg.LoadDotEnv(os.Getwd); err != nil {
		log.Fatalf("Failed to read .env: %v", err)
	}
	cfg.LoadEnv(os.Getenv)
	if err := cfg.ParseFlags(os.Args[1:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	// Initialize store
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	// Initialize engine and handler
	engine := ledger.NewEngine(store)
	handler := api.NewHandler(engine)

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Ledger server listening on http://%s", cfg.ListenAddr)
		log.Printf("API available at http://%s/api", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
