/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave calendar API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, LEAVE_* environment, flags)
  2. Open the configured store (SQLite or GORM)
  3. Build the booking and profile services
  4. Create API handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides LEAVE_PORT)
  -db      SQLite database path (overrides LEAVE_DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run against PostgreSQL
  LEAVE_DB_DRIVER=gorm LEAVE_DATABASE_URL=postgres://... ./server

  # Demo data endpoints on port 3000
  LEAVE_DEMO=true ./server -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go, store/gormstore/gorm.go: Database implementations
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/warp/leave-calendar/api"
	"github.com/warp/leave-calendar/config"
	"github.com/warp/leave-calendar/leave"
	"github.com/warp/leave-calendar/profile"
	"github.com/warp/leave-calendar/report/pdf"
	"github.com/warp/leave-calendar/store/gormstore"
	"github.com/warp/leave-calendar/store/sqlite"
)

// backend is what both store implementations provide.
type backend interface {
	leave.TxStore
	profile.Store
	io.Closer
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath

	// Initialize store
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	policy := leave.HistoryLenient
	if cfg.HistoryStrict {
		policy = leave.HistoryStrict
	}
	bookings := leave.NewService(store, leave.Options{
		Location:      cfg.Location(),
		HistoryPolicy: policy,
	})
	profiles := profile.NewService(store, nil)

	// Initialize handler
	handler := api.NewHandler(bookings, profiles, pdf.New(pdf.Options{FontPath: cfg.PDFFontPath}))
	handler.Ping = store.Ping
	handler.Scenarios = cfg.Demo

	// Create router
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d (driver=%s tz=%s history=%s)",
			cfg.Port, cfg.DBDriver, cfg.Timezone, policy)
		if cfg.Demo {
			log.Printf("Demo scenarios enabled at /api/scenarios")
		}
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

func openStore(cfg config.Config) (backend, error) {
	if cfg.DBDriver == config.DriverGorm {
		return gormstore.Open(cfg.DatabaseURL)
	}
	return sqlite.New(cfg.DBPath)
}
